package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/internal/sqlgen"
	"github.com/imamik/daas/pkg/sqlapi"
)

// reconcileDatabases creates pending databases and drops those marked for
// deprovisioning. Every database is attempted; failures are joined.
func (e *Engine) reconcileDatabases(ctx context.Context, srv *model.ServerRecord) error {
	dbs, err := e.deps.Store.ListDatabases(ctx, srv.ID)
	if err != nil {
		return fmt.Errorf("failed to list databases: %w", err)
	}

	var errs []error
	for _, db := range dbs {
		switch {
		case db.NeedsDrop():
			err = e.dropDatabase(ctx, db, false)
		case db.NeedsCreate():
			err = e.createDatabase(ctx, db)
		default:
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("database %s: %w", db.Name, err))
		}
	}
	return errors.Join(errs...)
}

// createDatabase runs the create sub-workflow. A failed existence check is
// an infrastructure failure, never taken to mean the database is absent.
func (e *Engine) createDatabase(ctx context.Context, db *model.DatabaseRecord) error {
	log := logr.FromContextOrDiscard(ctx).WithValues("databaseID", db.ID, "database", db.Name)

	check, err := sqlgen.CheckDatabaseExists(db.Name)
	if err != nil {
		return e.failDatabase(ctx, db, err)
	}
	res, err := e.deps.SQL.ExecuteQuery(ctx, check.Request(db.ServerID, sqlapi.MasterDatabaseID, true))
	if err := batchErr(res, err); err != nil {
		return e.failDatabase(ctx, db, fmt.Errorf("failed to check whether database exists: %w", err))
	}

	if hasRows(res) {
		log.Info("database already exists")
	} else {
		create, err := sqlgen.CreateDatabase(sqlgen.CreateDatabaseOptions{
			DatabaseName:         db.Name,
			UserName:             db.UserName,
			Password:             db.Password,
			MaxPrimaryFileSizeMB: db.MaxPrimaryFileSizeMB,
			MaxLogFileSizeMB:     db.MaxLogFileSizeMB,
		})
		if err != nil {
			return e.failDatabase(ctx, db, err)
		}
		res, err := e.deps.SQL.ExecuteCommand(ctx, create.Request(db.ServerID, sqlapi.MasterDatabaseID, true))
		if err := batchErr(res, err); err != nil {
			return e.failDatabase(ctx, db, fmt.Errorf("failed to create database: %w", err))
		}
		log.Info("database created")
	}

	saved, err := e.updateDatabase(ctx, db.ID, func(d *model.DatabaseRecord) {
		d.Status = model.DatabaseReady
		d.Action = model.ActionNone
		d.LastError = ""
	})
	if err != nil {
		return err
	}
	e.publish(ctx, model.DatabaseEvent(saved))
	return nil
}

// dropDatabase drops the database and deletes its record. When bestEffort
// is set a failed drop is logged and the record is deleted anyway.
func (e *Engine) dropDatabase(ctx context.Context, db *model.DatabaseRecord, bestEffort bool) error {
	log := logr.FromContextOrDiscard(ctx).WithValues("databaseID", db.ID, "database", db.Name)

	current, err := e.updateDatabase(ctx, db.ID, func(d *model.DatabaseRecord) {
		d.Status = model.DatabaseDeprovisioning
		d.LastError = ""
	})
	if err != nil {
		return err
	}
	e.publish(ctx, model.DatabaseEvent(current))

	if err := e.runDrop(ctx, db); err != nil {
		if !bestEffort {
			return e.failDatabase(ctx, current, fmt.Errorf("failed to drop database: %w", err))
		}
		log.Error(err, "failed to drop database, removing record anyway")
	}
	return e.forgetDatabase(ctx, current)
}

func (e *Engine) runDrop(ctx context.Context, db *model.DatabaseRecord) error {
	drop, err := sqlgen.DropDatabase(db.Name)
	if err != nil {
		return err
	}
	return batchErr(e.deps.SQL.ExecuteCommand(ctx, drop.Request(db.ServerID, sqlapi.MasterDatabaseID, true)))
}

func (e *Engine) forgetDatabase(ctx context.Context, db *model.DatabaseRecord) error {
	if err := e.deps.Store.DeleteDatabase(ctx, db.ID); err != nil {
		return fmt.Errorf("failed to delete database record: %w", err)
	}
	gone := *db
	gone.Status = model.DatabaseDeprovisioned
	gone.Action = model.ActionNone
	e.publish(ctx, model.DatabaseEvent(&gone))
	return nil
}

// failDatabase marks the database Failed and returns cause.
func (e *Engine) failDatabase(ctx context.Context, db *model.DatabaseRecord, cause error) error {
	saved, err := e.updateDatabase(ctx, db.ID, func(d *model.DatabaseRecord) {
		d.Status = model.DatabaseFailed
		d.LastError = cause.Error()
	})
	if err != nil {
		return errors.Join(cause, err)
	}
	e.publish(ctx, model.DatabaseEvent(saved))
	return cause
}

// dropDatabases is the deprovision step for SQL objects. The server may
// already be unreachable, so drops are best effort and records are deleted
// regardless. Servers that never got past the network service have no SQL
// objects to drop.
func (e *Engine) dropDatabases(ctx context.Context, srv *model.ServerRecord) (func(*model.ServerRecord), error) {
	log := logr.FromContextOrDiscard(ctx)

	dbs, err := e.deps.Store.ListDatabases(ctx, srv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	reachable := srv.Phase >= model.PhaseInitializeConfiguration

	for _, db := range dbs {
		if reachable {
			err = e.dropDatabase(ctx, db, true)
		} else {
			err = e.forgetDatabase(ctx, db)
		}
		if err != nil {
			log.Error(err, "failed to clean up database", "databaseID", db.ID)
		}
	}
	return nil, nil
}

func hasRows(res *sqlapi.Result) bool {
	for _, rs := range res.ResultSets {
		if len(rs.Rows) > 0 {
			return true
		}
	}
	return false
}
