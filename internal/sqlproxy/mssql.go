package sqlproxy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/sqlexp"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/imamik/daas/pkg/sqlapi"
)

// DefaultConnectTimeout bounds login to a tenant server.
const DefaultConnectTimeout = 30 * time.Second

// MSSQLOpener opens SQL Server sessions with go-mssqldb.
type MSSQLOpener struct {
	ConnectTimeout time.Duration
	AppName        string
}

// DSN renders connection settings as a sqlserver:// URL.
func (o *MSSQLOpener) DSN(cs ConnectionSettings) string {
	timeout := o.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	appName := o.AppName
	if appName == "" {
		appName = "daas-sql-proxy"
	}

	q := url.Values{}
	q.Set("database", cs.Database)
	q.Set("connection timeout", strconv.Itoa(int(timeout.Seconds())))
	q.Set("app name", appName)
	q.Set("encrypt", "disable")

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cs.User, cs.Password),
		Host:     cs.Endpoint.Host + ":" + strconv.Itoa(cs.Endpoint.Port),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (o *MSSQLOpener) Open(ctx context.Context, cs ConnectionSettings) (Session, error) {
	connector, err := mssql.NewConnector(o.DSN(cs))
	if err != nil {
		return nil, fmt.Errorf("invalid connection settings: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)

	s, err := newSQLSession(ctx, db, true)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// sqlSession runs statements on one pinned connection. With captureMessages
// the driver reports notices, row counts and errors through
// sqlexp.ReturnMessage so informational messages are not lost.
type sqlSession struct {
	db              *sql.DB
	conn            *sql.Conn
	captureMessages bool
}

func newSQLSession(ctx context.Context, db *sql.DB, captureMessages bool) (*sqlSession, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &sqlSession{db: db, conn: conn, captureMessages: captureMessages}, nil
}

func (s *sqlSession) Close() error {
	return errors.Join(s.conn.Close(), s.db.Close())
}

func (s *sqlSession) Exec(ctx context.Context, statement string, args []any) (StatementResult, error) {
	if s.captureMessages {
		return s.run(ctx, statement, args, false)
	}

	res, err := s.conn.ExecContext(ctx, statement, args...)
	if err != nil {
		return StatementResult{}, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return StatementResult{}, err
	}
	return StatementResult{RowsAffected: n}, nil
}

func (s *sqlSession) Query(ctx context.Context, statement string, args []any) (StatementResult, error) {
	if s.captureMessages {
		return s.run(ctx, statement, args, true)
	}

	rows, err := s.conn.QueryContext(ctx, statement, args...)
	if err != nil {
		return StatementResult{}, classify(err)
	}
	defer rows.Close()

	var out StatementResult
	for {
		set, err := readResultSet(rows)
		if err != nil {
			return out, classify(err)
		}
		out.ResultSets = append(out.ResultSets, set)
		if !rows.NextResultSet() {
			break
		}
	}
	return out, classify(rows.Err())
}

// messageSource yields driver messages in arrival order. The production
// source is *sqlexp.ReturnMessage.
type messageSource interface {
	Message(ctx context.Context) sqlexp.RawMessage
}

func (s *sqlSession) run(ctx context.Context, statement string, args []any, query bool) (StatementResult, error) {
	retmsg := &sqlexp.ReturnMessage{}
	rows, err := s.conn.QueryContext(ctx, statement, append(args, retmsg)...)
	if err != nil {
		return StatementResult{}, classify(err)
	}
	defer rows.Close()
	return drain(ctx, retmsg, rows, query)
}

// drain reads messages until the last result set is done. Row-less result
// sets are only kept for queries. RowsAffected stays -1 when the statement
// reported no count, as DDL does.
func drain(ctx context.Context, msgs messageSource, rows *sql.Rows, query bool) (StatementResult, error) {
	var (
		out     = StatementResult{RowsAffected: -1}
		errs    []error
		results = true
	)
	for results {
		switch m := msgs.Message(ctx).(type) {
		case nil:
			errs = append(errs, ctx.Err())
			results = false
		case sqlexp.MsgNotice:
			out.Messages = append(out.Messages, noticeText(m.Message))
		case sqlexp.MsgNext:
			set, err := readResultSet(rows)
			if err != nil {
				errs = append(errs, err)
			}
			if query {
				out.ResultSets = append(out.ResultSets, set)
			}
		case sqlexp.MsgNextResultSet:
			results = rows.NextResultSet()
		case sqlexp.MsgRowsAffected:
			out.RowsAffected = max(out.RowsAffected, 0) + m.Count
		case sqlexp.MsgError:
			errs = append(errs, m.Error)
		}
	}
	if err := rows.Err(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return out, nil
	}
	return out, classify(errs...)
}

func noticeText(v any) string {
	if e, ok := v.(mssql.Error); ok {
		return e.Message
	}
	return fmt.Sprint(v)
}

func readResultSet(rows *sql.Rows) (sqlapi.ResultSet, error) {
	set := sqlapi.ResultSet{Rows: []sqlapi.Row{}}

	cols, err := rows.Columns()
	if err != nil {
		return set, err
	}
	binary := make([]bool, len(cols))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, t := range types {
			switch strings.ToUpper(t.DatabaseTypeName()) {
			case "VARBINARY", "BINARY", "IMAGE", "TIMESTAMP", "ROWVERSION":
				binary[i] = true
			}
		}
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return set, err
		}

		row := make(sqlapi.Row, len(cols))
		for i, name := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok && !binary[i] {
				v = string(b)
			}
			row[name] = v
		}
		set.Rows = append(set.Rows, row)
	}
	return set, nil
}

// classify turns driver errors into an *EngineError when the engine raised
// them. Anything else is returned unchanged.
func classify(errs ...error) error {
	var (
		diags []sqlapi.Error
		seen  = map[string]bool{}
		other []error
	)
	for _, err := range errs {
		if err == nil {
			continue
		}
		var me mssql.Error
		if !errors.As(err, &me) {
			other = append(other, err)
			continue
		}
		all := me.All
		if len(all) == 0 {
			all = []mssql.Error{me}
		}
		for _, e := range all {
			d := engineDiagnostic(e)
			key := fmt.Sprintf("%d/%d/%d/%s", d.Number, d.State, d.LineNumber, d.Message)
			if !seen[key] {
				seen[key] = true
				diags = append(diags, d)
			}
		}
	}
	if len(diags) == 0 {
		return errors.Join(other...)
	}
	return &EngineError{Errors: diags}
}

func engineDiagnostic(e mssql.Error) sqlapi.Error {
	return sqlapi.Error{
		Kind:       sqlapi.ErrorKindTSql,
		Message:    e.Message,
		Class:      int(e.Class),
		Number:     int(e.Number),
		State:      int(e.State),
		Procedure:  e.ProcName,
		Source:     e.ServerName,
		LineNumber: int(e.LineNo),
	}
}
