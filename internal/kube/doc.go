// Package kube is the cluster resource client used to run tenant SQL Servers.
//
// It gives typed, namespaced access to the five object kinds a server needs
// (Deployment, Service, Ingress, Pod and the admin Secret) on top of
// client-go. Absence is a value, not an error: Get reports found=false and
// Delete reports ResultAlreadyAbsent. Watches are exposed as channels whose
// producer re-establishes the stream after it drops.
//
// Ensure and Remove layer get-or-create and idempotent delete on top of the
// typed resources, retrying transient control-plane errors with backoff.
package kube
