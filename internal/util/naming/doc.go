// Package naming provides consistent names for the Kubernetes objects that
// make up a tenant SQL Server.
//
// Names follow the pattern mssql-{server}-{kind} so that an operator can find
// every object of a server with a prefix search. Server ids are normalised
// into DNS-1123 labels first.
package naming
