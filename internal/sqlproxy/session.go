package sqlproxy

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/daas/internal/model"
	"github.com/imamik/daas/pkg/sqlapi"
)

// AdminUser is the login used for admin and master-database requests.
const AdminUser = "sa"

// ConnectionSettings is everything needed to open a session.
type ConnectionSettings struct {
	Endpoint model.Endpoint
	Database string
	User     string
	Password string
}

// SessionOpener opens one connection for a whole batch.
type SessionOpener interface {
	Open(ctx context.Context, cs ConnectionSettings) (Session, error)
}

// Session executes statements on a single connection. Results carry the
// messages and result sets read so far even when an error is returned.
type Session interface {
	Exec(ctx context.Context, statement string, args []any) (StatementResult, error)
	Query(ctx context.Context, statement string, args []any) (StatementResult, error)
	Close() error
}

// StatementResult is the outcome of one statement.
type StatementResult struct {
	// RowsAffected is -1 when the statement reported no count.
	RowsAffected int64
	Messages     []string
	ResultSets   []sqlapi.ResultSet
}

// EngineError wraps diagnostics raised by the database engine itself, as
// opposed to connection or protocol failures.
type EngineError struct {
	Errors []sqlapi.Error
}

func (e *EngineError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		msgs = append(msgs, d.Error())
	}
	return fmt.Sprintf("engine error: %s", strings.Join(msgs, "; "))
}
