// Package handlers implements the business logic behind the CLI commands.
//
// Each exported function corresponds to one command and receives already
// parsed arguments. Construction of external clients goes through package
// level factory variables so tests can substitute fakes.
package handlers
