// Package commands defines the CLI command structure and flag bindings.
//
// Commands parse arguments and delegate execution to the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the daas CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "daas",
		Short:         "Provision tenant SQL Server instances on Kubernetes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(Operator())
	cmd.AddCommand(SQLProxy())
	cmd.AddCommand(Request())
	cmd.AddCommand(Version())

	return cmd
}
