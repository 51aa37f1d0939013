// Package events publishes status-change notifications for servers and
// databases. Publishing is best effort: callers log failures and move on.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/go-logr/logr"

	"github.com/imamik/daas/internal/model"
)

// Publisher delivers StatusChanged events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev model.StatusChanged) error
}

// LogPublisher writes every event to a logger.
type LogPublisher struct {
	log logr.Logger
}

// NewLogPublisher returns a publisher that logs events under the "events" name.
func NewLogPublisher(log logr.Logger) *LogPublisher {
	return &LogPublisher{log: log.WithName("events")}
}

func (p *LogPublisher) Publish(_ context.Context, ev model.StatusChanged) error {
	kv := []any{
		"id", ev.ID,
		"entityKind", ev.EntityKind,
		"entityID", ev.EntityID,
		"serverID", ev.ServerID,
		"action", ev.Action,
		"status", ev.Status,
	}
	if ev.EntityKind == model.EntityServer {
		kv = append(kv, "phase", ev.Phase.String())
	}
	if ev.Error != "" {
		kv = append(kv, "error", ev.Error)
	}
	p.log.Info("status changed", kv...)
	return nil
}

// Fanout publishes to every wrapped publisher, even when some fail, and
// joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev model.StatusChanged) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []model.StatusChanged
	Err    error
}

func (r *Recorder) Publish(_ context.Context, ev model.StatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []model.StatusChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.StatusChanged, len(r.events))
	copy(out, r.events)
	return out
}

// ForEntity returns the events of one entity in publication order.
func (r *Recorder) ForEntity(id string) []model.StatusChanged {
	var out []model.StatusChanged
	for _, ev := range r.Events() {
		if ev.EntityID == id {
			out = append(out, ev)
		}
	}
	return out
}
