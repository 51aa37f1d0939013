// Package main is the entry point for the daas CLI.
//
// daas provisions per-tenant SQL Server instances on Kubernetes. The
// operator command runs the reconciliation engine and its API; the
// sql-proxy command serves the SQL execution proxy the engine and other
// services use to run T-SQL against tenant servers.
//
// Commands: operator, sql-proxy, request, version.
//
// For detailed usage information, run:
//
//	daas --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/daas/cmd/daas/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
