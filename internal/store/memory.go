package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/imamik/daas/internal/model"
)

// MemoryStore keeps records in process memory. Callers always receive
// copies, so mutating a loaded record never changes the stored one.
type MemoryStore struct {
	mu        sync.RWMutex
	servers   map[string]model.ServerRecord
	databases map[string]model.DatabaseRecord
	now       func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		servers:   make(map[string]model.ServerRecord),
		databases: make(map[string]model.DatabaseRecord),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) CreateServer(_ context.Context, s *model.ServerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.servers[s.ID]; exists {
		return fmt.Errorf("server %s: %w", s.ID, ErrConflict)
	}
	s.Version = 1
	s.UpdatedAt = m.now()
	m.servers[s.ID] = copyServer(s)
	return nil
}

func (m *MemoryStore) LoadServer(_ context.Context, id string) (*model.ServerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.servers[id]
	if !ok {
		return nil, fmt.Errorf("server %s: %w", id, ErrNotFound)
	}
	out := copyServer(&s)
	return &out, nil
}

func (m *MemoryStore) ListServers(_ context.Context) ([]*model.ServerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.ServerRecord, 0, len(m.servers))
	for _, s := range m.servers {
		c := copyServer(&s)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveServer(_ context.Context, s *model.ServerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.servers[s.ID]
	if !ok {
		return fmt.Errorf("server %s: %w", s.ID, ErrNotFound)
	}
	if current.Version != s.Version {
		return fmt.Errorf("server %s at version %d, have %d: %w", s.ID, current.Version, s.Version, ErrConflict)
	}
	s.Version++
	s.UpdatedAt = m.now()
	m.servers[s.ID] = copyServer(s)
	return nil
}

func (m *MemoryStore) CreateDatabase(_ context.Context, d *model.DatabaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.databases[d.ID]; exists {
		return fmt.Errorf("database %s: %w", d.ID, ErrConflict)
	}
	if _, ok := m.servers[d.ServerID]; !ok {
		return fmt.Errorf("server %s of database %s: %w", d.ServerID, d.ID, ErrNotFound)
	}
	d.Version = 1
	d.UpdatedAt = m.now()
	m.databases[d.ID] = *d
	return nil
}

func (m *MemoryStore) LoadDatabase(_ context.Context, id string) (*model.DatabaseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.databases[id]
	if !ok {
		return nil, fmt.Errorf("database %s: %w", id, ErrNotFound)
	}
	return &d, nil
}

func (m *MemoryStore) ListDatabases(_ context.Context, serverID string) ([]*model.DatabaseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.DatabaseRecord
	for _, d := range m.databases {
		if d.ServerID == serverID {
			c := d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveDatabase(_ context.Context, d *model.DatabaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.databases[d.ID]
	if !ok {
		return fmt.Errorf("database %s: %w", d.ID, ErrNotFound)
	}
	if current.Version != d.Version {
		return fmt.Errorf("database %s at version %d, have %d: %w", d.ID, current.Version, d.Version, ErrConflict)
	}
	d.Version++
	d.UpdatedAt = m.now()
	m.databases[d.ID] = *d
	return nil
}

func (m *MemoryStore) DeleteDatabase(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.databases[id]; !ok {
		return fmt.Errorf("database %s: %w", id, ErrNotFound)
	}
	delete(m.databases, id)
	return nil
}

func copyServer(s *model.ServerRecord) model.ServerRecord {
	c := *s
	if s.PublicEndpoint != nil {
		ep := *s.PublicEndpoint
		c.PublicEndpoint = &ep
	}
	return c
}
