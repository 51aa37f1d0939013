package orchestrator

import (
	"context"
	"errors"

	"github.com/go-logr/logr"

	"github.com/imamik/daas/internal/kube"
	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/internal/store"
)

// actionRequester is the part of the Engine the dispatcher drives.
type actionRequester interface {
	RequestAction(serverID string, action model.Action) error
	Active(serverID string) bool
}

// Dispatcher turns resource deletions observed on the cluster into repair
// requests. Watch delivery is at-least-once, so every event is checked
// against the stored phase and the live cluster before acting.
type Dispatcher struct {
	engine  actionRequester
	store   store.Store
	cluster Cluster
	log     logr.Logger

	seen map[string]string
}

// NewDispatcher creates a dispatcher requesting repairs from engine.
func NewDispatcher(engine actionRequester, st store.Store, cluster Cluster, log logr.Logger) *Dispatcher {
	return &Dispatcher{
		engine:  engine,
		store:   st,
		cluster: cluster,
		log:     log.WithName("dispatcher"),
		seen:    make(map[string]string),
	}
}

// Run consumes events until the channel closes or ctx ends.
func (d *Dispatcher) Run(ctx context.Context, events <-chan ResourceEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.Handle(ctx, ev)
		}
	}
}

// Handle processes one event and reports whether a repair was requested.
func (d *Dispatcher) Handle(ctx context.Context, ev ResourceEvent) bool {
	if ev.ServerID == "" || d.duplicate(ev) {
		return false
	}
	log := d.log.WithValues("serverID", ev.ServerID, "kind", ev.Kind, "type", ev.Type)
	log.V(1).Info("resource event")

	if ev.Type != kube.EventDeleted || d.engine.Active(ev.ServerID) {
		return false
	}

	srv, err := d.store.LoadServer(ctx, ev.ServerID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error(err, "failed to load server")
		}
		return false
	}
	if srv.Status != model.StatusReady || srv.Phase < phaseOf(ev.Kind) {
		return false
	}
	if ev.Kind == kube.KindIngress && !srv.ExposeExternally {
		return false
	}

	exists, err := d.cluster.ResourceExists(ctx, ev.Kind, ev.ServerID)
	if err != nil {
		log.Error(err, "failed to confirm deletion")
		return false
	}
	if exists {
		return false
	}

	if err := d.engine.RequestAction(ev.ServerID, model.ActionReconfigure); err != nil {
		log.Error(err, "failed to request repair")
		return false
	}
	log.Info("managed resource disappeared, repair requested")
	return true
}

// duplicate reports whether the same object version was already handled.
func (d *Dispatcher) duplicate(ev ResourceEvent) bool {
	key := string(ev.Kind) + "/" + ev.Name + "/" + string(ev.Type)
	if ev.ResourceVersion != "" && d.seen[key] == ev.ResourceVersion {
		return true
	}
	d.seen[key] = ev.ResourceVersion
	return false
}
