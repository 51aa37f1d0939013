package kube

import (
	"context"
	"fmt"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/imamik/daas/internal/util/retry"
)

// EnsureFuncs customise Ensure.
type EnsureFuncs[T Object] struct {
	// NeedsUpdate reports whether an existing object has drifted from desired.
	// If nil, existing objects are left untouched.
	NeedsUpdate func(existing, desired T) bool
	// Mutate copies the desired state onto the existing object before Update.
	// Required when NeedsUpdate is set.
	Mutate func(existing, desired T) T
}

// EnsureResult describes what Ensure did.
type EnsureResult string

const (
	EnsureExisted EnsureResult = "Existed"
	EnsureCreated EnsureResult = "Created"
	EnsureUpdated EnsureResult = "Updated"
)

// Ensure implements get-or-create: it returns the object named like desired,
// creating it only when absent. A create that loses a race with another
// writer re-reads the winner instead of failing. Transient errors are
// retried with the client's retry policy.
func Ensure[T Object, L runtime.Object](ctx context.Context, r *Resource[T, L], desired T, funcs EnsureFuncs[T]) (T, EnsureResult, error) {
	var (
		obj    T
		result EnsureResult
	)
	name := desired.GetName()

	err := r.owner.withRetry(ctx, fmt.Sprintf("ensure %s %s", r.kind, name), func(ctx context.Context) error {
		existing, found, err := r.Get(ctx, name)
		if err != nil {
			return err
		}

		if found {
			if funcs.NeedsUpdate != nil && funcs.Mutate != nil && funcs.NeedsUpdate(existing, desired) {
				// A conflict here means a concurrent write; the retry re-reads.
				updated, err := r.Update(ctx, funcs.Mutate(existing.DeepCopyObject().(T), desired))
				if err != nil {
					return err
				}
				obj, result = updated, EnsureUpdated
				return nil
			}
			obj, result = existing, EnsureExisted
			return nil
		}

		created, err := r.Create(ctx, desired.DeepCopyObject().(T))
		if err != nil {
			if apierrors.IsAlreadyExists(err) {
				winner, found, getErr := r.Get(ctx, name)
				if getErr != nil {
					return getErr
				}
				if found {
					obj, result = winner, EnsureExisted
					return nil
				}
			}
			return err
		}
		obj, result = created, EnsureCreated
		return nil
	}, apierrors.IsConflict)
	if err != nil {
		var zero T
		return zero, "", err
	}
	return obj, result, nil
}

// Remove deletes an object by name, treating absence as success.
// Transient errors are retried with the client's retry policy.
func Remove[T Object, L runtime.Object](ctx context.Context, r *Resource[T, L], name string) (DeleteResult, error) {
	var result DeleteResult
	err := r.owner.withRetry(ctx, fmt.Sprintf("remove %s %s", r.kind, name), func(ctx context.Context) error {
		res, err := r.Delete(ctx, name)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	return result, err
}

// withRetry runs op under the retry policy. Errors matching any of extra are
// retried in addition to transient ones.
func (c *Client) withRetry(ctx context.Context, what string, op func(context.Context) error, extra ...func(error) bool) error {
	backoff := retry.Backoff{
		Retries: c.retry.MaxRetries,
		Initial: c.retry.InitialDelay,
		Max:     c.retry.MaxDelay,
		Factor:  2,
	}
	return retry.Do(ctx, backoff, op,
		retry.If(func(err error) bool {
			if IsTransient(err) {
				return true
			}
			for _, fn := range extra {
				if fn(err) {
					return true
				}
			}
			return false
		}),
		retry.Notify(func(attempt int, err error, delay time.Duration) {
			c.log.Info("retrying control-plane call", "operation", what, "attempt", attempt, "delay", delay, "error", err.Error())
		}),
	)
}
