package commands

import (
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/imamik/daas/cmd/daas/handlers"
)

var sqlProxyConfigPath string

// SQLProxy returns the command serving the SQL execution proxy.
func SQLProxy() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql-proxy",
		Short: "Serve the SQL execution proxy",
		Long: `Serve the SQL execution proxy.

The proxy executes batches of T-SQL against tenant servers, resolving the
target server and database from the shared record store and the server's
internal service on the cluster.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.SQLProxy(ctrl.SetupSignalHandler(), sqlProxyConfigPath)
		},
	}

	cmd.Flags().StringVarP(&sqlProxyConfigPath, "config", "c", "", "Path to config file")

	return cmd
}
