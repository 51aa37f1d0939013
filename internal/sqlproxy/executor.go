// Package sqlproxy executes batches of T-SQL against tenant servers.
//
// A batch targets one server and database. The Executor resolves the target
// through the record store and the cluster's internal service, opens a
// single session for the whole batch and turns every failure into a
// structured error inside the returned result.
package sqlproxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/daas/internal/kube"
	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/internal/store"
	"github.com/imamik/daas/pkg/sqlapi"
)

// RecordStore is the subset of the store the proxy reads.
type RecordStore interface {
	LoadServer(ctx context.Context, id string) (*model.ServerRecord, error)
	LoadDatabase(ctx context.Context, id string) (*model.DatabaseRecord, error)
}

// EndpointResolver finds the in-cluster endpoint of a server.
type EndpointResolver interface {
	ResolveServerEndpoint(ctx context.Context, serverID string) (model.Endpoint, error)
}

// ValidationError marks a request rejected before any resolution.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid request: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

type batchKind string

const (
	kindCommand batchKind = "command"
	kindQuery   batchKind = "query"
)

// Executor runs SQL batches. It is safe for concurrent use.
type Executor struct {
	store    RecordStore
	resolver EndpointResolver
	opener   SessionOpener
	log      logr.Logger
}

// NewExecutor wires an executor.
func NewExecutor(st RecordStore, resolver EndpointResolver, opener SessionOpener, log logr.Logger) *Executor {
	return &Executor{store: st, resolver: resolver, opener: opener, log: log.WithName("sqlproxy")}
}

// ExecuteCommand runs non-query statements. The result code is the affected
// row count of the last attempted statement, or -1 if it failed.
func (e *Executor) ExecuteCommand(ctx context.Context, req sqlapi.Request) (*sqlapi.Result, error) {
	return e.execute(ctx, kindCommand, req)
}

// ExecuteQuery runs statements and collects every result set they produce.
func (e *Executor) ExecuteQuery(ctx context.Context, req sqlapi.Request) (*sqlapi.Result, error) {
	return e.execute(ctx, kindQuery, req)
}

func (e *Executor) execute(ctx context.Context, kind batchKind, req sqlapi.Request) (*sqlapi.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	args, err := BindParameters(req.Parameters)
	if err != nil {
		return nil, &ValidationError{Err: err}
	}

	log := e.log.WithValues("serverID", req.ServerID, "databaseID", req.DatabaseID, "kind", kind)

	settings, failure := e.resolve(ctx, log, req)
	if failure != nil {
		recordBatch(kind, resultResolutionFailed)
		return failure, nil
	}

	result := &sqlapi.Result{Messages: []string{}, Errors: []sqlapi.Error{}}
	if kind == kindQuery {
		result.ResultSets = []sqlapi.ResultSet{}
	}

	session, err := e.opener.Open(ctx, settings)
	if err != nil {
		log.Error(err, "failed to open session", "host", settings.Endpoint.Host)
		result.ResultCode = -1
		result.Errors = append(result.Errors, sqlapi.Error{
			Kind:    sqlapi.ErrorKindInfrastructure,
			Message: fmt.Sprintf("Unable to connect to server %s (%s): %v", req.ServerID, settings.Endpoint, err),
		})
		recordBatch(kind, resultFailed)
		return result, nil
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.V(1).Info("closing session failed", "error", err.Error())
		}
	}()

	count := len(req.Sql)
	for i, stmt := range req.Sql {
		log.V(1).Info("executing statement", "statement", i+1, "batchCount", count)

		start := time.Now()
		var res StatementResult
		if kind == kindQuery {
			res, err = session.Query(ctx, stmt, args)
		} else {
			res, err = session.Exec(ctx, stmt, args)
		}
		observeStatement(kind, time.Since(start))

		result.Messages = append(result.Messages, res.Messages...)
		result.ResultSets = append(result.ResultSets, res.ResultSets...)

		if err == nil {
			if kind == kindQuery {
				result.ResultCode = 0
			} else {
				result.ResultCode = int(res.RowsAffected)
			}
			continue
		}

		result.ResultCode = -1
		var engineErr *EngineError
		if errors.As(err, &engineErr) {
			log.Info("engine error while executing statement", "statement", i+1, "error", engineErr.Error())
			result.Errors = append(result.Errors, engineErr.Errors...)
		} else {
			log.Error(err, "unexpected error while executing statement", "statement", i+1)
			result.Errors = append(result.Errors, sqlapi.Error{
				Kind:    sqlapi.ErrorKindInfrastructure,
				Message: fmt.Sprintf("Unexpected error while executing T-SQL: %v", err),
			})
		}

		if req.StopOnError {
			log.Info("stopping batch on first error", "statement", i+1, "batchCount", count)
			break
		}
	}

	if result.HasErrors() {
		recordBatch(kind, resultFailed)
	} else {
		recordBatch(kind, resultSucceeded)
	}
	return result, nil
}

// resolve determines connection settings, or returns the failed result to
// send back without connecting.
func (e *Executor) resolve(ctx context.Context, log logr.Logger, req sqlapi.Request) (ConnectionSettings, *sqlapi.Result) {
	fail := func(reason string) *sqlapi.Result {
		log.Info("cannot determine connection settings", "reason", reason)
		return sqlapi.Failed(fmt.Sprintf(
			"Unable to determine connection settings for database %s in server %s (%s).",
			req.DatabaseID, req.ServerID, reason))
	}

	server, err := e.store.LoadServer(ctx, req.ServerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ConnectionSettings{}, fail("server not found")
		}
		return ConnectionSettings{}, fail(fmt.Sprintf("failed to load server: %v", err))
	}

	endpoint, err := e.resolver.ResolveServerEndpoint(ctx, server.ID)
	if err != nil {
		switch {
		case errors.Is(err, kube.ErrServiceNotFound), errors.Is(err, kube.ErrPortNotFound):
			var epErr *kube.EndpointError
			if errors.As(err, &epErr) {
				return ConnectionSettings{}, fail(epErr.Err.Error())
			}
			return ConnectionSettings{}, fail(err.Error())
		default:
			return ConnectionSettings{}, fail(fmt.Sprintf("failed to look up server's associated Kubernetes Service: %v", err))
		}
	}

	settings := ConnectionSettings{
		Endpoint: endpoint,
		Database: sqlapi.MasterDatabaseID,
		User:     AdminUser,
		Password: server.AdminPassword,
	}
	if req.DatabaseID == sqlapi.MasterDatabaseID {
		return settings, nil
	}

	db, err := e.store.LoadDatabase(ctx, req.DatabaseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ConnectionSettings{}, fail("database not found")
		}
		return ConnectionSettings{}, fail(fmt.Sprintf("failed to load database: %v", err))
	}
	settings.Database = db.Name
	if !req.ExecuteAsAdminUser {
		settings.User = db.UserName
		settings.Password = db.Password
	}

	log.V(1).Info("resolved connection settings", "endpoint", endpoint.String(), "database", settings.Database)
	return settings, nil
}
