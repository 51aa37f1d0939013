package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/daas/internal/kube"
	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/internal/sqlgen"
	"github.com/imamik/daas/pkg/sqlapi"
)

// step is one externally visible unit of an action. On success the server
// moves to phase and apply, if set, records what the step learned.
type step struct {
	phase model.Phase
	run   func(ctx context.Context, srv *model.ServerRecord) (apply func(*model.ServerRecord), err error)
}

func (e *Engine) run(serverID string, action model.Action) {
	started := time.Now()
	log := e.log.WithValues("serverID", serverID, "action", action)
	ctx := logr.NewContext(context.Background(), log)

	srv, err := e.begin(ctx, serverID, action)
	if err != nil {
		log.Error(err, "failed to start action")
		recordAction(action, resultFailed, started)
		return
	}
	e.publish(ctx, model.ServerEvent(srv))
	log.Info("action started", "phase", srv.Phase)

	for _, st := range e.plan(srv, action) {
		if e.stopping() {
			log.Info("shutdown requested, leaving action for resume", "phase", srv.Phase)
			recordAction(action, resultInterrupted, started)
			return
		}

		next, err := e.execute(ctx, srv, action, st)
		if err != nil {
			e.fail(ctx, log, serverID, action, err)
			recordAction(action, resultFailed, started)
			return
		}
		srv = next
	}

	srv, err = e.updateServer(ctx, serverID, func(s *model.ServerRecord) {
		if action == model.ActionDeprovision {
			s.Status = model.StatusDeprovisioned
			s.Phase = model.PhaseNone
			s.PublicEndpoint = nil
		} else {
			s.Status = model.StatusReady
		}
		s.Action = model.ActionNone
		s.LastError = ""
	})
	if err != nil {
		e.fail(ctx, log, serverID, action, err)
		recordAction(action, resultFailed, started)
		return
	}
	e.publish(ctx, model.ServerEvent(srv))
	log.Info("action completed", "status", srv.Status, "duration", time.Since(started).Round(time.Millisecond))
	recordAction(action, resultSucceeded, started)
}

// begin marks the server as processing action. A server that cannot get an
// admin password is marked failed before any step runs.
func (e *Engine) begin(ctx context.Context, serverID string, action model.Action) (*model.ServerRecord, error) {
	var genErr error
	srv, err := e.updateServer(ctx, serverID, func(s *model.ServerRecord) {
		genErr = nil
		s.Action = action
		s.Status = model.StatusProcessing
		s.LastError = ""
		if s.AdminPassword != "" || action == model.ActionDeprovision {
			return
		}
		pw, err := e.deps.NewPassword()
		if err != nil {
			genErr = fmt.Errorf("failed to generate admin password: %w", err)
			s.Status = model.StatusFailed
			s.LastError = genErr.Error()
			return
		}
		s.AdminPassword = pw
	})
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		e.publish(ctx, model.ServerEvent(srv))
		return nil, genErr
	}
	return srv, nil
}

// execute runs a step under its own timeout, detached from shutdown, then
// persists the resulting phase. Only a phase change is published.
func (e *Engine) execute(ctx context.Context, srv *model.ServerRecord, action model.Action, st step) (*model.ServerRecord, error) {
	stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	apply, err := st.run(stepCtx, srv)
	if err != nil {
		return nil, fmt.Errorf("phase %s: %w", st.phase, err)
	}

	next, err := e.updateServer(ctx, srv.ID, func(s *model.ServerRecord) {
		if action == model.ActionDeprovision {
			s.Phase = model.MinPhase(s.Phase, st.phase)
		} else {
			s.Phase = model.MaxPhase(s.Phase, st.phase)
		}
		if apply != nil {
			apply(s)
		}
	})
	if err != nil {
		return nil, err
	}
	recordPhase(action, st.phase)
	if next.Phase == srv.Phase {
		logr.FromContextOrDiscard(ctx).V(1).Info("step confirmed", "phase", next.Phase)
		return next, nil
	}
	logr.FromContextOrDiscard(ctx).Info("phase confirmed", "phase", next.Phase)
	e.publish(ctx, model.ServerEvent(next))
	return next, nil
}

// fail records the error on the server and leaves its phase untouched.
func (e *Engine) fail(ctx context.Context, log logr.Logger, serverID string, action model.Action, cause error) {
	log.Error(cause, "action failed")
	srv, err := e.updateServer(ctx, serverID, func(s *model.ServerRecord) {
		s.Status = model.StatusFailed
		s.LastError = cause.Error()
	})
	if err != nil {
		log.Error(err, "failed to record failure")
		e.publish(ctx, model.StatusChanged{
			EntityKind: model.EntityServer,
			EntityID:   serverID,
			ServerID:   serverID,
			Action:     action,
			Status:     string(model.StatusFailed),
			Error:      cause.Error(),
			Timestamp:  time.Now().UTC(),
		})
		return
	}
	e.publish(ctx, model.ServerEvent(srv))
}

// plan returns the steps of an action. Provision resumes after the phase
// already reached; Reconfigure re-runs every step since each one is
// idempotent.
func (e *Engine) plan(srv *model.ServerRecord, action model.Action) []step {
	if action == model.ActionDeprovision {
		return []step{
			{phase: model.PhaseInitializeConfiguration, run: e.removeIngress},
			{phase: model.PhaseNetworkService, run: e.dropDatabases},
			{phase: model.PhaseReplicationResource, run: e.removeService},
			{phase: model.PhaseNone, run: e.removeDeployment},
		}
	}

	all := []step{
		{phase: model.PhaseReplicationResource, run: e.ensureDeployment},
		{phase: model.PhaseNetworkService, run: e.ensureService},
		{phase: model.PhaseInitializeConfiguration, run: e.initialize},
		{phase: model.PhaseIngressRoute, run: e.ensureIngress},
	}
	if action == model.ActionReconfigure {
		return all
	}
	var steps []step
	for _, st := range all {
		if st.phase > srv.Phase {
			steps = append(steps, st)
		}
	}
	return steps
}

func (e *Engine) spec(srv *model.ServerRecord) kube.ServerSpec {
	return kube.ServerSpec{
		ServerID:      srv.ID,
		TenantID:      srv.TenantID,
		Name:          srv.Name,
		Image:         e.cfg.Image,
		MemoryLimitMB: srv.MemoryLimitMB,
		StorageSizeMB: srv.StorageSizeMB,
		IngressDomain: e.cfg.IngressDomain,
		IngressClass:  e.cfg.IngressClass,
	}
}

func (e *Engine) ensureDeployment(ctx context.Context, srv *model.ServerRecord) (func(*model.ServerRecord), error) {
	spec := e.spec(srv)
	if err := e.deps.Cluster.EnsureAdminSecret(ctx, spec, srv.AdminPassword); err != nil {
		return nil, fmt.Errorf("failed to ensure admin secret: %w", err)
	}
	if err := e.deps.Cluster.EnsureDeployment(ctx, spec); err != nil {
		return nil, fmt.Errorf("failed to ensure deployment: %w", err)
	}
	return nil, nil
}

func (e *Engine) ensureService(ctx context.Context, srv *model.ServerRecord) (func(*model.ServerRecord), error) {
	if err := e.deps.Cluster.EnsureService(ctx, e.spec(srv)); err != nil {
		return nil, fmt.Errorf("failed to ensure service: %w", err)
	}
	return nil, nil
}

// initialize waits for SQL Server to come up, caps its memory and runs the
// database sub-workflows.
func (e *Engine) initialize(ctx context.Context, srv *model.ServerRecord) (func(*model.ServerRecord), error) {
	log := logr.FromContextOrDiscard(ctx)

	if err := e.deps.Cluster.WaitForServerPod(ctx, srv.ID, e.cfg.PodPollInterval, e.cfg.PodReadyTimeout); err != nil {
		return nil, fmt.Errorf("server pod not ready: %w", err)
	}
	ep, err := e.deps.Cluster.ResolveServerEndpoint(ctx, srv.ID)
	if err != nil {
		return nil, err
	}
	if err := e.deps.Probe(ctx, ep.Host, ep.Port, e.cfg.PortTimeout); err != nil {
		return nil, fmt.Errorf("server %s not reachable: %w", ep, err)
	}
	log.V(1).Info("server reachable", "endpoint", ep.String())

	if srv.MemoryLimitMB > 0 {
		req := sqlgen.ConfigureServerMemory(srv.MemoryLimitMB).Request(srv.ID, sqlapi.MasterDatabaseID, true)
		if err := batchErr(e.deps.SQL.ExecuteCommand(ctx, req)); err != nil {
			return nil, fmt.Errorf("failed to configure server memory: %w", err)
		}
	}

	if err := e.reconcileDatabases(ctx, srv); err != nil {
		return nil, err
	}
	return nil, nil
}

// ensureIngress publishes the server when exposure is requested and
// withdraws it otherwise. Withdrawing does not move the phase back.
func (e *Engine) ensureIngress(ctx context.Context, srv *model.ServerRecord) (func(*model.ServerRecord), error) {
	if !srv.ExposeExternally {
		if err := e.deps.Cluster.DeleteIngress(ctx, srv.ID); err != nil {
			return nil, fmt.Errorf("failed to delete ingress: %w", err)
		}
		return func(s *model.ServerRecord) {
			s.PublicEndpoint = nil
			s.Phase = model.MaxPhase(srv.Phase, model.PhaseInitializeConfiguration)
		}, nil
	}

	host, err := e.deps.Cluster.EnsureIngress(ctx, e.spec(srv))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure ingress: %w", err)
	}
	return func(s *model.ServerRecord) {
		s.PublicEndpoint = &model.Endpoint{Host: host, Port: kube.SQLPort}
	}, nil
}

func (e *Engine) removeIngress(ctx context.Context, srv *model.ServerRecord) (func(*model.ServerRecord), error) {
	if err := e.deps.Cluster.DeleteIngress(ctx, srv.ID); err != nil {
		return nil, fmt.Errorf("failed to delete ingress: %w", err)
	}
	return func(s *model.ServerRecord) { s.PublicEndpoint = nil }, nil
}

func (e *Engine) removeService(ctx context.Context, srv *model.ServerRecord) (func(*model.ServerRecord), error) {
	if err := e.deps.Cluster.DeleteService(ctx, srv.ID); err != nil {
		return nil, fmt.Errorf("failed to delete service: %w", err)
	}
	return nil, nil
}

func (e *Engine) removeDeployment(ctx context.Context, srv *model.ServerRecord) (func(*model.ServerRecord), error) {
	if err := e.deps.Cluster.DeleteDeployment(ctx, srv.ID); err != nil {
		return nil, fmt.Errorf("failed to delete deployment: %w", err)
	}
	if err := e.deps.Cluster.DeleteAdminSecret(ctx, srv.ID); err != nil {
		return nil, fmt.Errorf("failed to delete admin secret: %w", err)
	}
	return nil, nil
}

// batchErr folds a transport error and engine errors of a result into one.
func batchErr(res *sqlapi.Result, err error) error {
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("empty result from sql proxy")
	}
	return res.Err()
}
