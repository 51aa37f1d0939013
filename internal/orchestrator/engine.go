package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/imamik/daas/internal/events"
	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/internal/store"
	"github.com/imamik/daas/internal/util/keygen"
	"github.com/imamik/daas/internal/util/netutil"
)

var (
	// ErrShuttingDown is returned for requests made after Shutdown began.
	ErrShuttingDown = errors.New("orchestrator is shutting down")
	// ErrDeprovisionInProgress is returned when a running deprovision would
	// be superseded by another action.
	ErrDeprovisionInProgress = errors.New("deprovision in progress")
	// ErrInvalidAction is returned for the None action.
	ErrInvalidAction = errors.New("invalid action")
)

const (
	defaultStepTimeout     = 10 * time.Minute
	defaultPodReadyTimeout = 5 * time.Minute
	defaultPodPollInterval = 2 * time.Second
	defaultPasswordLength  = 24

	// maxSaveAttempts bounds reload-and-reapply cycles on version conflicts.
	maxSaveAttempts = 5
)

// Config holds the engine's tunables and the values every server's cluster
// objects are built from.
type Config struct {
	Image         string
	IngressDomain string
	IngressClass  string

	// StepTimeout bounds a single step. Steps are not interrupted by
	// Shutdown, so this is also the longest a shutdown waits per worker.
	StepTimeout     time.Duration
	PodReadyTimeout time.Duration
	PodPollInterval time.Duration
	PortTimeout     time.Duration
	PasswordLength  int
}

func (c Config) withDefaults() Config {
	if c.StepTimeout <= 0 {
		c.StepTimeout = defaultStepTimeout
	}
	if c.PodReadyTimeout <= 0 {
		c.PodReadyTimeout = defaultPodReadyTimeout
	}
	if c.PodPollInterval <= 0 {
		c.PodPollInterval = defaultPodPollInterval
	}
	if c.PortTimeout <= 0 {
		c.PortTimeout = netutil.SQLServerWaitTimeout
	}
	if c.PasswordLength <= 0 {
		c.PasswordLength = defaultPasswordLength
	}
	return c
}

// Dependencies are the collaborators of an Engine. Probe and NewPassword
// default to netutil.WaitForPort and keygen.GeneratePassword.
type Dependencies struct {
	Store       store.Store
	Cluster     Cluster
	SQL         SQLExecutor
	Publisher   events.Publisher
	Probe       PortProber
	NewPassword func() (string, error)
}

// worker tracks the action a server's goroutine is executing and the one
// queued behind it.
type worker struct {
	running model.Action
	pending model.Action
}

// Engine runs one worker per server id.
type Engine struct {
	cfg  Config
	deps Dependencies
	log  logr.Logger

	mu      sync.Mutex
	workers map[string]*worker
	closing bool
	wg      sync.WaitGroup
}

// New creates an Engine.
func New(cfg Config, deps Dependencies, log logr.Logger) *Engine {
	cfg = cfg.withDefaults()
	if deps.Probe == nil {
		deps.Probe = func(ctx context.Context, host string, port int, timeout time.Duration) error {
			return netutil.WaitForPort(ctx, host, port, timeout)
		}
	}
	if deps.NewPassword == nil {
		length := cfg.PasswordLength
		deps.NewPassword = func() (string, error) { return keygen.GeneratePassword(length) }
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewLogPublisher(log)
	}
	return &Engine{
		cfg:     cfg,
		deps:    deps,
		log:     log.WithName("orchestrator"),
		workers: make(map[string]*worker),
	}
}

// RequestAction queues action for a server and starts its worker if none is
// running. A queued action that has not started yet is replaced, except that
// a running or queued Deprovision only yields to another Deprovision.
func (e *Engine) RequestAction(serverID string, action model.Action) error {
	if action == model.ActionNone {
		return fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}
	if _, err := model.ParseAction(string(action)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closing {
		return ErrShuttingDown
	}

	if w, ok := e.workers[serverID]; ok {
		deprovisioning := w.running == model.ActionDeprovision || w.pending == model.ActionDeprovision
		if deprovisioning && action != model.ActionDeprovision {
			return fmt.Errorf("server %s: %w", serverID, ErrDeprovisionInProgress)
		}
		if w.pending != model.ActionNone && w.pending != action {
			e.log.V(1).Info("superseding queued action", "serverID", serverID, "queued", w.pending, "action", action)
		}
		w.pending = action
		return nil
	}

	w := &worker{pending: action}
	e.workers[serverID] = w
	e.wg.Add(1)
	activeWorkers.Inc()
	go e.work(serverID, w)
	return nil
}

// Active reports whether a worker is running for the server.
func (e *Engine) Active(serverID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.workers[serverID]
	return ok
}

// Resume re-requests the recorded action of every server left Processing
// by a previous process. It returns how many servers were resumed.
func (e *Engine) Resume(ctx context.Context) (int, error) {
	servers, err := e.deps.Store.ListServers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list servers: %w", err)
	}
	resumed := 0
	for _, srv := range servers {
		if srv.Status != model.StatusProcessing || srv.Action == model.ActionNone {
			continue
		}
		if err := e.RequestAction(srv.ID, srv.Action); err != nil {
			return resumed, err
		}
		e.log.Info("resuming interrupted action", "serverID", srv.ID, "action", srv.Action, "phase", srv.Phase)
		resumed++
	}
	return resumed, nil
}

// Shutdown stops accepting requests and waits until every worker has
// finished its current step, or ctx ends.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers: %w", ctx.Err())
	}
}

func (e *Engine) stopping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closing
}

func (e *Engine) work(serverID string, w *worker) {
	defer e.wg.Done()
	defer activeWorkers.Dec()

	for {
		e.mu.Lock()
		action := w.pending
		if action == model.ActionNone || e.closing {
			if action != model.ActionNone {
				e.log.Info("dropping queued action on shutdown", "serverID", serverID, "action", action)
			}
			delete(e.workers, serverID)
			e.mu.Unlock()
			return
		}
		w.pending = model.ActionNone
		w.running = action
		e.mu.Unlock()

		e.run(serverID, action)

		e.mu.Lock()
		w.running = model.ActionNone
		e.mu.Unlock()
	}
}

// updateServer loads the server, applies mutate and saves it. Version
// conflicts with the external layer are resolved by reloading and
// re-applying the mutation.
func (e *Engine) updateServer(ctx context.Context, id string, mutate func(*model.ServerRecord)) (*model.ServerRecord, error) {
	var lastErr error
	for range maxSaveAttempts {
		srv, err := e.deps.Store.LoadServer(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load server %s: %w", id, err)
		}
		mutate(srv)
		srv.UpdatedAt = time.Now().UTC()
		lastErr = e.deps.Store.SaveServer(ctx, srv)
		if lastErr == nil {
			return srv, nil
		}
		if !errors.Is(lastErr, store.ErrConflict) {
			break
		}
	}
	return nil, fmt.Errorf("failed to save server %s: %w", id, lastErr)
}

func (e *Engine) updateDatabase(ctx context.Context, id string, mutate func(*model.DatabaseRecord)) (*model.DatabaseRecord, error) {
	var lastErr error
	for range maxSaveAttempts {
		db, err := e.deps.Store.LoadDatabase(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load database %s: %w", id, err)
		}
		mutate(db)
		db.UpdatedAt = time.Now().UTC()
		lastErr = e.deps.Store.SaveDatabase(ctx, db)
		if lastErr == nil {
			return db, nil
		}
		if !errors.Is(lastErr, store.ErrConflict) {
			break
		}
	}
	return nil, fmt.Errorf("failed to save database %s: %w", id, lastErr)
}

// publish never fails the caller; a lost notification is logged.
func (e *Engine) publish(ctx context.Context, ev model.StatusChanged) {
	ev.ID = uuid.NewString()
	if err := e.deps.Publisher.Publish(ctx, ev); err != nil {
		e.log.Error(err, "failed to publish status change",
			"entityKind", ev.EntityKind, "entityID", ev.EntityID, "status", ev.Status)
	}
}
