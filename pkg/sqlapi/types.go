// Package sqlapi defines the JSON contract of the SQL execution proxy and a
// client for it.
//
// A Request is an ordered batch of T-SQL statements executed on one
// connection against a tenant server. The Result carries a result code,
// informational messages, structured errors and, for queries, every result
// set read before the batch finished or stopped.
package sqlapi

import "fmt"

// MasterDatabaseID targets the server's master database using the admin login.
const MasterDatabaseID = "master"

// Routes served by the proxy.
const (
	CommandPath = "/api/v1/sql/command"
	QueryPath   = "/api/v1/sql/query"
)

// DataType names the SQL Server type a parameter is bound as.
type DataType string

const (
	NVarChar         DataType = "NVarChar"
	VarChar          DataType = "VarChar"
	NChar            DataType = "NChar"
	Char             DataType = "Char"
	Int              DataType = "Int"
	BigInt           DataType = "BigInt"
	SmallInt         DataType = "SmallInt"
	TinyInt          DataType = "TinyInt"
	Bit              DataType = "Bit"
	Float            DataType = "Float"
	Real             DataType = "Real"
	Decimal          DataType = "Decimal"
	DateTime2        DataType = "DateTime2"
	DateTime         DataType = "DateTime"
	Date             DataType = "Date"
	UniqueIdentifier DataType = "UniqueIdentifier"
	VarBinary        DataType = "VarBinary"
)

// Parameter is a named, typed value shared by every statement of a batch.
// Size limits string and binary values; zero means unbounded.
type Parameter struct {
	Name     string   `json:"name"`
	DataType DataType `json:"dataType"`
	Size     int      `json:"size,omitempty"`
	Value    any      `json:"value"`
}

// Request is a batch of statements for one server and database.
type Request struct {
	ServerID           string      `json:"serverId"`
	DatabaseID         string      `json:"databaseId"`
	Sql                []string    `json:"sql"`
	Parameters         []Parameter `json:"parameters,omitempty"`
	ExecuteAsAdminUser bool        `json:"executeAsAdminUser"`
	StopOnError        bool        `json:"stopOnError"`
}

// Validate checks the fields that must be present before any resolution happens.
func (r *Request) Validate() error {
	if r.ServerID == "" {
		return fmt.Errorf("serverId is required")
	}
	if r.DatabaseID == "" {
		return fmt.Errorf("databaseId is required")
	}
	if len(r.Sql) == 0 {
		return fmt.Errorf("at least one statement is required")
	}
	for i, stmt := range r.Sql {
		if stmt == "" {
			return fmt.Errorf("statement %d is empty", i)
		}
	}
	for _, p := range r.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameter name is required")
		}
		if p.DataType == "" {
			return fmt.Errorf("parameter %s has no data type", p.Name)
		}
	}
	return nil
}

// ErrorKind separates engine diagnostics from everything else.
type ErrorKind string

const (
	ErrorKindTSql           ErrorKind = "TSql"
	ErrorKindInfrastructure ErrorKind = "Infrastructure"
)

// Error is a structured failure recorded in a Result.
// Engine fields are zero for infrastructure errors.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Class      int       `json:"class,omitempty"`
	Number     int       `json:"number,omitempty"`
	State      int       `json:"state,omitempty"`
	Procedure  string    `json:"procedure,omitempty"`
	Source     string    `json:"source,omitempty"`
	LineNumber int       `json:"lineNumber,omitempty"`
}

func (e Error) Error() string {
	if e.Kind == ErrorKindTSql {
		return fmt.Sprintf("sql error %d (class %d, state %d, line %d): %s", e.Number, e.Class, e.State, e.LineNumber, e.Message)
	}
	return e.Message
}

// Row maps column names to scalar values; SQL NULL is a nil value.
type Row map[string]any

// ResultSet is an ordered list of rows.
type ResultSet struct {
	Rows []Row `json:"rows"`
}

// Result is the outcome of a batch. ResultCode is the affected row count of
// the last attempted command (-1 when it failed or reported no count), or 0
// for queries.
type Result struct {
	ResultCode int         `json:"resultCode"`
	Messages   []string    `json:"messages"`
	Errors     []Error     `json:"errors"`
	ResultSets []ResultSet `json:"resultSets,omitempty"`
}

// Failed builds a result holding a single infrastructure error.
func Failed(message string) *Result {
	return &Result{
		ResultCode: -1,
		Messages:   []string{},
		Errors:     []Error{{Kind: ErrorKindInfrastructure, Message: message}},
	}
}

// HasErrors reports whether any statement failed.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Err returns the first recorded error, or nil.
func (r *Result) Err() error {
	if !r.HasErrors() {
		return nil
	}
	if len(r.Errors) == 1 {
		return r.Errors[0]
	}
	return fmt.Errorf("%w (and %d more errors)", r.Errors[0], len(r.Errors)-1)
}
