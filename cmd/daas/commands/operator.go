package commands

import (
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/imamik/daas/cmd/daas/handlers"
)

var operatorConfigPath string

// Operator returns the command running the reconciliation engine.
func Operator() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Run the reconciliation engine and operator API",
		Long: `Run the reconciliation engine.

The operator accepts Provision, Reconfigure and Deprovision requests over
HTTP, drives each tenant server through its provisioning phases and repairs
managed resources that disappear from the cluster. Work interrupted by a
restart is resumed on the next start.

Settings come from the optional config file and DAAS_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Operator(ctrl.SetupSignalHandler(), operatorConfigPath)
		},
	}

	cmd.Flags().StringVarP(&operatorConfigPath, "config", "c", "", "Path to config file")

	return cmd
}
