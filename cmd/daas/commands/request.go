package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/daas/cmd/daas/handlers"
)

var operatorURL string

// Request returns the command submitting an action to a running operator.
func Request() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request <server-id> <action>",
		Short: "Request an action for a tenant server",
		Long: `Request an action for a tenant server.

Action is one of Provision, Reconfigure or Deprovision. The command returns
once the operator has accepted the request; progress is reported through
status events and the server record.`,
		Example: `  daas request 7f3c2a Provision
  daas request 7f3c2a Deprovision --operator-url http://daas-operator:8081`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Request(cmd.Context(), operatorURL, args[0], args[1], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&operatorURL, "operator-url", "u", "http://localhost:8081", "Base URL of the operator API")

	return cmd
}
