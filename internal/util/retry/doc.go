// Package retry runs an operation on an exponential backoff schedule.
//
// Only errors the caller classifies as transient are retried; anything else,
// and any error marked with [Permanent], ends the loop at once. The kube
// package wraps every control-plane call in [Do].
package retry
