// Package store persists server and database records.
//
// Records carry a Version used for optimistic concurrency: a save succeeds
// only when the caller's Version matches the stored one, and bumps it.
package store

import (
	"context"
	"errors"

	"github.com/imamik/daas/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a record changed since it was loaded,
	// or when creating a record whose id is taken.
	ErrConflict = errors.New("record modified concurrently")
)

// Store is the persistence contract used by the orchestrator and the
// external management layer.
type Store interface {
	CreateServer(ctx context.Context, s *model.ServerRecord) error
	LoadServer(ctx context.Context, id string) (*model.ServerRecord, error)
	ListServers(ctx context.Context) ([]*model.ServerRecord, error)
	SaveServer(ctx context.Context, s *model.ServerRecord) error

	CreateDatabase(ctx context.Context, d *model.DatabaseRecord) error
	LoadDatabase(ctx context.Context, id string) (*model.DatabaseRecord, error)
	ListDatabases(ctx context.Context, serverID string) ([]*model.DatabaseRecord, error)
	SaveDatabase(ctx context.Context, d *model.DatabaseRecord) error
	DeleteDatabase(ctx context.Context, id string) error
}
