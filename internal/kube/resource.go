package kube

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
)

// Kind names a managed object kind.
type Kind string

const (
	KindDeployment Kind = "Deployment"
	KindService    Kind = "Service"
	KindIngress    Kind = "Ingress"
	KindPod        Kind = "Pod"
	KindSecret     Kind = "Secret"
)

// Object is what every typed resource handled here implements.
type Object interface {
	metav1.Object
	runtime.Object
}

// api is the subset of a client-go typed client this package relies on.
type api[T Object, L runtime.Object] interface {
	List(ctx context.Context, opts metav1.ListOptions) (L, error)
	Get(ctx context.Context, name string, opts metav1.GetOptions) (T, error)
	Create(ctx context.Context, obj T, opts metav1.CreateOptions) (T, error)
	Update(ctx context.Context, obj T, opts metav1.UpdateOptions) (T, error)
	Delete(ctx context.Context, name string, opts metav1.DeleteOptions) error
	Watch(ctx context.Context, opts metav1.ListOptions) (watch.Interface, error)
}

// DeleteResult is the terminal status of an idempotent delete.
type DeleteResult string

const (
	ResultDeleted       DeleteResult = "Deleted"
	ResultAlreadyAbsent DeleteResult = "AlreadyAbsent"
)

// Resource is typed CRUD and watch access to one kind.
type Resource[T Object, L runtime.Object] struct {
	owner     *Client
	kind      Kind
	namespace string
	api       func(namespace string) api[T, L]
	items     func(L) []T
}

func newResource[T Object, L runtime.Object](owner *Client, kind Kind, fn func(string) api[T, L], items func(L) []T) *Resource[T, L] {
	return &Resource[T, L]{
		owner:     owner,
		kind:      kind,
		namespace: owner.namespace,
		api:       fn,
		items:     items,
	}
}

// Kind returns the kind this resource manages.
func (r *Resource[T, L]) Kind() Kind {
	return r.kind
}

// In returns a copy of the resource scoped to another namespace.
func (r *Resource[T, L]) In(namespace string) *Resource[T, L] {
	cp := *r
	cp.namespace = namespace
	return &cp
}

// List returns every object matching the label selector, in API order.
func (r *Resource[T, L]) List(ctx context.Context, selector string) ([]T, error) {
	list, err := r.api(r.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	observeRequest(r.kind, "list", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s (%s): %w", r.kind, selector, err)
	}
	return r.items(list), nil
}

// Get fetches an object by name. A missing object yields found=false and no error.
func (r *Resource[T, L]) Get(ctx context.Context, name string) (T, bool, error) {
	var zero T
	obj, err := r.api(r.namespace).Get(ctx, name, metav1.GetOptions{})
	observeRequest(r.kind, "get", err)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("failed to get %s %s/%s: %w", r.kind, r.namespace, name, err)
	}
	return obj, true, nil
}

// Create submits a new object and returns it as accepted by the control plane.
func (r *Resource[T, L]) Create(ctx context.Context, obj T) (T, error) {
	if obj.GetNamespace() == "" {
		obj.SetNamespace(r.namespace)
	}
	created, err := r.api(r.namespace).Create(ctx, obj, metav1.CreateOptions{})
	observeRequest(r.kind, "create", err)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to create %s %s/%s: %w", r.kind, r.namespace, obj.GetName(), err)
	}
	return created, nil
}

// Update replaces an existing object. obj must carry the resourceVersion it was read at.
func (r *Resource[T, L]) Update(ctx context.Context, obj T) (T, error) {
	updated, err := r.api(r.namespace).Update(ctx, obj, metav1.UpdateOptions{})
	observeRequest(r.kind, "update", err)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to update %s %s/%s: %w", r.kind, r.namespace, obj.GetName(), err)
	}
	return updated, nil
}

// Delete removes an object. Deleting an object that does not exist succeeds
// with ResultAlreadyAbsent.
func (r *Resource[T, L]) Delete(ctx context.Context, name string) (DeleteResult, error) {
	policy := metav1.DeletePropagationBackground
	err := r.api(r.namespace).Delete(ctx, name, metav1.DeleteOptions{PropagationPolicy: &policy})
	observeRequest(r.kind, "delete", err)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return ResultAlreadyAbsent, nil
		}
		return "", fmt.Errorf("failed to delete %s %s/%s: %w", r.kind, r.namespace, name, err)
	}
	return ResultDeleted, nil
}
