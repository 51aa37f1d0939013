package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imamik/daas/internal/model"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS daas_servers (
	id                 TEXT PRIMARY KEY,
	tenant_id          TEXT NOT NULL,
	name               TEXT NOT NULL,
	action             TEXT NOT NULL,
	phase              INTEGER NOT NULL,
	status             TEXT NOT NULL,
	admin_password     TEXT NOT NULL DEFAULT '',
	memory_limit_mb    INTEGER NOT NULL,
	storage_size_mb    INTEGER NOT NULL,
	expose_externally  BOOLEAN NOT NULL DEFAULT FALSE,
	public_host        TEXT,
	public_port        INTEGER,
	last_error         TEXT NOT NULL DEFAULT '',
	version            BIGINT NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS daas_databases (
	id                       TEXT PRIMARY KEY,
	server_id                TEXT NOT NULL REFERENCES daas_servers(id),
	name                     TEXT NOT NULL,
	user_name                TEXT NOT NULL,
	password                 TEXT NOT NULL DEFAULT '',
	max_primary_file_size_mb INTEGER NOT NULL,
	max_log_file_size_mb     INTEGER NOT NULL,
	action                   TEXT NOT NULL,
	status                   TEXT NOT NULL,
	last_error               TEXT NOT NULL DEFAULT '',
	version                  BIGINT NOT NULL,
	updated_at               TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS daas_databases_server_id_idx ON daas_databases (server_id);
`

const serverColumns = `id, tenant_id, name, action, phase, status, admin_password, memory_limit_mb,
	storage_size_mb, expose_externally, public_host, public_port, last_error, version, updated_at`

const databaseColumns = `id, server_id, name, user_name, password, max_primary_file_size_mb,
	max_log_file_size_mb, action, status, last_error, version, updated_at`

// PostgresStore persists records in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig holds the pool knobs exposed through configuration.
type PoolConfig struct {
	ConnString      string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// NewPool builds a pgx pool and verifies connectivity.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.ConnString == "" {
		return nil, fmt.Errorf("conn string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse pgx pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables if they do not exist yet.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply store schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) CreateServer(ctx context.Context, s *model.ServerRecord) error {
	host, port := splitEndpoint(s.PublicEndpoint)
	now := time.Now().UTC()

	_, err := p.pool.Exec(ctx, `INSERT INTO daas_servers (`+serverColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, $14)`,
		s.ID, s.TenantID, s.Name, string(s.Action), int(s.Phase), string(s.Status), s.AdminPassword,
		s.MemoryLimitMB, s.StorageSizeMB, s.ExposeExternally, host, port, s.LastError, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("server %s: %w", s.ID, ErrConflict)
		}
		return fmt.Errorf("insert server %s: %w", s.ID, err)
	}
	s.Version = 1
	s.UpdatedAt = now
	return nil
}

func (p *PostgresStore) LoadServer(ctx context.Context, id string) (*model.ServerRecord, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+serverColumns+` FROM daas_servers WHERE id = $1`, id)
	s, err := scanServer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("server %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load server %s: %w", id, err)
	}
	return s, nil
}

func (p *PostgresStore) ListServers(ctx context.Context) ([]*model.ServerRecord, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+serverColumns+` FROM daas_servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var out []*model.ServerRecord
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SaveServer(ctx context.Context, s *model.ServerRecord) error {
	host, port := splitEndpoint(s.PublicEndpoint)
	now := time.Now().UTC()

	tag, err := p.pool.Exec(ctx, `UPDATE daas_servers SET
			tenant_id = $3, name = $4, action = $5, phase = $6, status = $7, admin_password = $8,
			memory_limit_mb = $9, storage_size_mb = $10, expose_externally = $11,
			public_host = $12, public_port = $13, last_error = $14,
			version = version + 1, updated_at = $15
		WHERE id = $1 AND version = $2`,
		s.ID, s.Version, s.TenantID, s.Name, string(s.Action), int(s.Phase), string(s.Status), s.AdminPassword,
		s.MemoryLimitMB, s.StorageSizeMB, s.ExposeExternally, host, port, s.LastError, now)
	if err != nil {
		return fmt.Errorf("update server %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return p.missOrConflict(ctx, "daas_servers", "server", s.ID)
	}
	s.Version++
	s.UpdatedAt = now
	return nil
}

func (p *PostgresStore) CreateDatabase(ctx context.Context, d *model.DatabaseRecord) error {
	now := time.Now().UTC()

	_, err := p.pool.Exec(ctx, `INSERT INTO daas_databases (`+databaseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11)`,
		d.ID, d.ServerID, d.Name, d.UserName, d.Password, d.MaxPrimaryFileSizeMB, d.MaxLogFileSizeMB,
		string(d.Action), string(d.Status), d.LastError, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("server %s of database %s: %w", d.ServerID, d.ID, ErrNotFound)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("database %s: %w", d.ID, ErrConflict)
		}
		return fmt.Errorf("insert database %s: %w", d.ID, err)
	}
	d.Version = 1
	d.UpdatedAt = now
	return nil
}

func (p *PostgresStore) LoadDatabase(ctx context.Context, id string) (*model.DatabaseRecord, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+databaseColumns+` FROM daas_databases WHERE id = $1`, id)
	d, err := scanDatabase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("database %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load database %s: %w", id, err)
	}
	return d, nil
}

func (p *PostgresStore) ListDatabases(ctx context.Context, serverID string) ([]*model.DatabaseRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+databaseColumns+` FROM daas_databases WHERE server_id = $1 ORDER BY id`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list databases of server %s: %w", serverID, err)
	}
	defer rows.Close()

	var out []*model.DatabaseRecord
	for rows.Next() {
		d, err := scanDatabase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan database: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SaveDatabase(ctx context.Context, d *model.DatabaseRecord) error {
	now := time.Now().UTC()

	tag, err := p.pool.Exec(ctx, `UPDATE daas_databases SET
			name = $3, user_name = $4, password = $5, max_primary_file_size_mb = $6,
			max_log_file_size_mb = $7, action = $8, status = $9, last_error = $10,
			version = version + 1, updated_at = $11
		WHERE id = $1 AND version = $2`,
		d.ID, d.Version, d.Name, d.UserName, d.Password, d.MaxPrimaryFileSizeMB, d.MaxLogFileSizeMB,
		string(d.Action), string(d.Status), d.LastError, now)
	if err != nil {
		return fmt.Errorf("update database %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return p.missOrConflict(ctx, "daas_databases", "database", d.ID)
	}
	d.Version++
	d.UpdatedAt = now
	return nil
}

func (p *PostgresStore) DeleteDatabase(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM daas_databases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete database %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("database %s: %w", id, ErrNotFound)
	}
	return nil
}

// missOrConflict tells a missing row from a version mismatch after an
// UPDATE touched nothing.
func (p *PostgresStore) missOrConflict(ctx context.Context, table, entity, id string) error {
	var exists bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check %s %s: %w", entity, id, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", entity, id, ErrConflict)
}

func scanServer(row pgx.Row) (*model.ServerRecord, error) {
	var (
		s          model.ServerRecord
		action     string
		phase      int
		status     string
		publicHost *string
		publicPort *int32
	)
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &action, &phase, &status, &s.AdminPassword,
		&s.MemoryLimitMB, &s.StorageSizeMB, &s.ExposeExternally, &publicHost, &publicPort,
		&s.LastError, &s.Version, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Action = model.Action(action)
	s.Phase = model.Phase(phase)
	s.Status = model.Status(status)
	if publicHost != nil && publicPort != nil {
		s.PublicEndpoint = &model.Endpoint{Host: *publicHost, Port: int(*publicPort)}
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func scanDatabase(row pgx.Row) (*model.DatabaseRecord, error) {
	var (
		d      model.DatabaseRecord
		action string
		status string
	)
	err := row.Scan(&d.ID, &d.ServerID, &d.Name, &d.UserName, &d.Password, &d.MaxPrimaryFileSizeMB,
		&d.MaxLogFileSizeMB, &action, &status, &d.LastError, &d.Version, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Action = model.Action(action)
	d.Status = model.DatabaseStatus(status)
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

func splitEndpoint(ep *model.Endpoint) (*string, *int32) {
	if ep == nil {
		return nil, nil
	}
	host := ep.Host
	port := int32(ep.Port)
	return &host, &port
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
