// Package orchestrator is the provisioning reconciliation engine.
//
// The Engine runs at most one worker per server id. A worker drives the
// server through its phases by calling the cluster client and the SQL
// execution proxy, persisting the record and publishing a StatusChanged
// event after every confirmed step.
//
// Provision direction:
//
//	None -> ReplicationResource -> NetworkService -> InitializeConfiguration -> IngressRoute
//
// Deprovision walks the same phases back to None. A failed run freezes the
// phase it reached so the next request resumes instead of restarting.
//
// The Dispatcher consumes cluster watch events and asks the Engine to
// repair servers whose resources disappeared underneath them. The API
// type accepts action requests over HTTP.
package orchestrator
