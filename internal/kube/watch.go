package kube

import (
	"context"
	"math"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/watch"
)

// EventType mirrors the watch event types delivered to consumers.
type EventType = watch.EventType

const (
	EventAdded    = watch.Added
	EventModified = watch.Modified
	EventDeleted  = watch.Deleted
)

// Event is one change to a watched object.
type Event[T Object] struct {
	Kind   Kind
	Type   EventType
	Object T
}

// WatchAll streams changes to objects matching selector until ctx ends.
//
// The returned channel is closed only when ctx is cancelled. Dropped streams
// are re-established with exponential backoff from the last seen
// resourceVersion, or from scratch when that version has expired. Delivery
// is at-least-once and ordered per object; consumers de-duplicate.
func (r *Resource[T, L]) WatchAll(ctx context.Context, selector string) <-chan Event[T] {
	out := make(chan Event[T])

	go func() {
		defer close(out)

		log := r.owner.log.WithValues("kind", r.kind, "selector", selector)
		newBackoff := func() wait.Backoff {
			return wait.Backoff{
				Duration: r.owner.watchBackoff,
				Factor:   2,
				Jitter:   0.1,
				Steps:    math.MaxInt32,
				Cap:      30 * time.Second,
			}
		}
		backoff := newBackoff()
		resourceVersion := ""

		for {
			w, err := r.api(r.namespace).Watch(ctx, metav1.ListOptions{
				LabelSelector:       selector,
				ResourceVersion:     resourceVersion,
				AllowWatchBookmarks: true,
			})
			observeRequest(r.kind, "watch", err)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if apierrors.IsGone(err) || apierrors.IsResourceExpired(err) {
					resourceVersion = ""
				}
				delay := backoff.Step()
				log.V(1).Info("watch failed, retrying", "error", err.Error(), "delay", delay)
				if !sleep(ctx, delay) {
					return
				}
				continue
			}

			backoff = newBackoff()
			var ok bool
			resourceVersion, ok = r.drain(ctx, w, out, resourceVersion)
			if !ok {
				return
			}
			log.V(1).Info("watch stream ended, reconnecting", "resourceVersion", resourceVersion)
			if !sleep(ctx, r.owner.watchBackoff) {
				return
			}
		}
	}()

	return out
}

// drain forwards events until the stream ends. It returns the resourceVersion
// to resume from and false when ctx is done.
func (r *Resource[T, L]) drain(ctx context.Context, w watch.Interface, out chan<- Event[T], resourceVersion string) (string, bool) {
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return resourceVersion, false
		case ev, open := <-w.ResultChan():
			if !open {
				return resourceVersion, true
			}

			switch ev.Type {
			case watch.Error:
				status := apierrors.FromObject(ev.Object)
				if apierrors.IsGone(status) || apierrors.IsResourceExpired(status) {
					return "", true
				}
				r.owner.log.V(1).Info("watch error event", "kind", r.kind, "error", status.Error())
				return resourceVersion, true
			case watch.Bookmark:
				if obj, ok := ev.Object.(T); ok {
					resourceVersion = obj.GetResourceVersion()
				}
				continue
			}

			obj, ok := ev.Object.(T)
			if !ok {
				continue
			}
			if rv := obj.GetResourceVersion(); rv != "" {
				resourceVersion = rv
			}

			select {
			case out <- Event[T]{Kind: r.kind, Type: ev.Type, Object: obj}:
			case <-ctx.Done():
				return resourceVersion, false
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
