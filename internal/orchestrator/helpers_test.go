package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/daas/internal/events"
	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/internal/store"
)

const (
	testServerID = "srv-1"
	testDomain   = "db.example.com"
	testPassword = "Generated-Pa55word"
)

type fixture struct {
	engine  *Engine
	store   store.Store
	cluster *MockCluster
	sql     *MockSQL
	events  *events.Recorder
}

func newFixture() *fixture {
	return newFixtureWithStore(store.NewMemoryStore())
}

func newFixtureWithStore(st store.Store) *fixture {
	f := &fixture{
		store:   st,
		cluster: &MockCluster{},
		sql:     &MockSQL{},
		events:  &events.Recorder{},
	}
	f.engine = New(Config{IngressDomain: testDomain, StepTimeout: 5 * time.Second}, Dependencies{
		Store:       f.store,
		Cluster:     f.cluster,
		SQL:         f.sql,
		Publisher:   f.events,
		Probe:       func(context.Context, string, int, time.Duration) error { return nil },
		NewPassword: func() (string, error) { return testPassword, nil },
	}, logr.Discard())
	return f
}

// newServer returns a fresh record for testServerID; mutators adjust it.
func newServer(mutators ...func(*model.ServerRecord)) *model.ServerRecord {
	srv := &model.ServerRecord{
		ID:               testServerID,
		TenantID:         "tenant-a",
		Name:             "orders",
		Status:           model.StatusPending,
		MemoryLimitMB:    2048,
		StorageSizeMB:    10240,
		ExposeExternally: true,
	}
	for _, m := range mutators {
		m(srv)
	}
	return srv
}

func atPhase(p model.Phase, s model.Status) func(*model.ServerRecord) {
	return func(srv *model.ServerRecord) {
		srv.Phase = p
		srv.Status = s
		srv.AdminPassword = "Existing-Pa55word"
	}
}

func newDatabase(id, name string, mutators ...func(*model.DatabaseRecord)) *model.DatabaseRecord {
	db := &model.DatabaseRecord{
		ID:                   id,
		ServerID:             testServerID,
		Name:                 name,
		UserName:             name + "_owner",
		Password:             "Db-Pa55word",
		MaxPrimaryFileSizeMB: 1024,
		Status:               model.DatabasePending,
	}
	for _, m := range mutators {
		m(db)
	}
	return db
}

func (f *fixture) seed(srv *model.ServerRecord, dbs ...*model.DatabaseRecord) error {
	ctx := context.Background()
	if err := f.store.CreateServer(ctx, srv); err != nil {
		return err
	}
	for _, db := range dbs {
		if err := f.store.CreateDatabase(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

func (f *fixture) server() *model.ServerRecord {
	srv, err := f.store.LoadServer(context.Background(), testServerID)
	if err != nil {
		panic(err)
	}
	return srv
}

func (f *fixture) serverEvents() []model.StatusChanged {
	return f.events.ForEntity(testServerID)
}

func phasesOf(evs []model.StatusChanged) []model.Phase {
	out := make([]model.Phase, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Phase)
	}
	return out
}

func statusesOf(evs []model.StatusChanged) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Status)
	}
	return out
}

func hasPrefixes(stmts []string, prefixes ...string) bool {
	if len(stmts) != len(prefixes) {
		return false
	}
	for i := range stmts {
		if !strings.HasPrefix(stmts[i], prefixes[i]) {
			return false
		}
	}
	return true
}

// conflictingStore fails the next n server saves with a version conflict.
type conflictingStore struct {
	*store.MemoryStore
	conflicts atomic.Int32
}

func (s *conflictingStore) SaveServer(ctx context.Context, srv *model.ServerRecord) error {
	if s.conflicts.Add(-1) >= 0 {
		return fmt.Errorf("server %s is stale: %w", srv.ID, store.ErrConflict)
	}
	return s.MemoryStore.SaveServer(ctx, srv)
}
