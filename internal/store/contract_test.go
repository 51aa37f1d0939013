package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/daas/internal/model"
)

// runStoreContract exercises behaviour every Store implementation shares.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	srv := &model.ServerRecord{
		ID:            "srv-1",
		TenantID:      "tenant-a",
		Name:          "Acme",
		Action:        model.ActionProvision,
		Status:        model.StatusPending,
		AdminPassword: "Secret#1",
		MemoryLimitMB: 2048,
		StorageSizeMB: 10240,
	}
	require.NoError(t, s.CreateServer(ctx, srv))
	assert.Equal(t, int64(1), srv.Version)
	assert.ErrorIs(t, s.CreateServer(ctx, &model.ServerRecord{ID: "srv-1", Name: "dup"}), ErrConflict)

	t.Run("load server", func(t *testing.T) {
		got, err := s.LoadServer(ctx, "srv-1")
		require.NoError(t, err)
		assert.Equal(t, "Acme", got.Name)
		assert.Equal(t, model.PhaseNone, got.Phase)
		assert.Nil(t, got.PublicEndpoint)

		_, err = s.LoadServer(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save server bumps version", func(t *testing.T) {
		got, err := s.LoadServer(ctx, "srv-1")
		require.NoError(t, err)

		got.Phase = model.PhaseIngressRoute
		got.Status = model.StatusReady
		got.PublicEndpoint = &model.Endpoint{Host: "mssql-srv-1.db.example.com", Port: 1433}
		require.NoError(t, s.SaveServer(ctx, got))
		assert.Equal(t, int64(2), got.Version)

		reloaded, err := s.LoadServer(ctx, "srv-1")
		require.NoError(t, err)
		assert.Equal(t, model.PhaseIngressRoute, reloaded.Phase)
		assert.Equal(t, model.StatusReady, reloaded.Status)
		require.NotNil(t, reloaded.PublicEndpoint)
		assert.Equal(t, "mssql-srv-1.db.example.com,1433", reloaded.PublicEndpoint.String())
		assert.Equal(t, int64(2), reloaded.Version)
	})

	t.Run("stale save conflicts", func(t *testing.T) {
		a, err := s.LoadServer(ctx, "srv-1")
		require.NoError(t, err)
		b, err := s.LoadServer(ctx, "srv-1")
		require.NoError(t, err)

		a.Action = model.ActionReconfigure
		require.NoError(t, s.SaveServer(ctx, a))

		b.Status = model.StatusFailed
		assert.ErrorIs(t, s.SaveServer(ctx, b), ErrConflict)

		assert.ErrorIs(t, s.SaveServer(ctx, &model.ServerRecord{ID: "missing", Version: 1}), ErrNotFound)
	})

	t.Run("list servers", func(t *testing.T) {
		require.NoError(t, s.CreateServer(ctx, &model.ServerRecord{ID: "srv-0", Name: "Other", Status: model.StatusPending, Action: model.ActionNone}))
		all, err := s.ListServers(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "srv-0", all[0].ID)
		assert.Equal(t, "srv-1", all[1].ID)
	})

	t.Run("databases", func(t *testing.T) {
		db := &model.DatabaseRecord{
			ID:                   "db-1",
			ServerID:             "srv-1",
			Name:                 "tenant_db",
			UserName:             "tenant_user",
			Password:             "Pw#12345",
			MaxPrimaryFileSizeMB: 500,
			Action:               model.ActionProvision,
			Status:               model.DatabasePending,
		}
		require.NoError(t, s.CreateDatabase(ctx, db))
		require.NoError(t, s.CreateDatabase(ctx, &model.DatabaseRecord{ID: "db-2", ServerID: "srv-1", Name: "second", Action: model.ActionNone, Status: model.DatabaseReady}))
		assert.ErrorIs(t, s.CreateDatabase(ctx, &model.DatabaseRecord{ID: "db-3", ServerID: "missing", Name: "x", Action: model.ActionNone, Status: model.DatabasePending}), ErrNotFound)

		list, err := s.ListDatabases(ctx, "srv-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "db-1", list[0].ID)

		empty, err := s.ListDatabases(ctx, "srv-0")
		require.NoError(t, err)
		assert.Empty(t, empty)

		got, err := s.LoadDatabase(ctx, "db-1")
		require.NoError(t, err)
		got.Status = model.DatabaseReady
		got.Action = model.ActionNone
		require.NoError(t, s.SaveDatabase(ctx, got))

		stale := *got
		stale.Version = 1
		assert.ErrorIs(t, s.SaveDatabase(ctx, &stale), ErrConflict)

		require.NoError(t, s.DeleteDatabase(ctx, "db-1"))
		_, err = s.LoadDatabase(ctx, "db-1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteDatabase(ctx, "db-1"), ErrNotFound)
	})
}
