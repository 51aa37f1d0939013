// Package labels provides consistent labeling for the Kubernetes objects
// backing a tenant SQL Server.
//
// All custom labels use the daas.io domain prefix and follow a builder
// pattern. The server-id and service-type labels are what endpoint discovery
// and the watch dispatcher select on, so every object built for a server
// must carry them.
package labels
