// Package model defines the records shared by the orchestrator, the SQL
// execution proxy and the persistence layer: tenant servers, the databases
// living on them, provisioning phases and the status change events published
// after every confirmed transition.
package model
