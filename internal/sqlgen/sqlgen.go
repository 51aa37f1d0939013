package sqlgen

import (
	"fmt"
	"strings"

	"github.com/imamik/daas/pkg/sqlapi"
)

// DataDirectory is where SQL Server keeps database files inside the container.
const DataDirectory = "/var/opt/mssql/data"

// Batch is an ordered statement list plus the parameters it references.
type Batch struct {
	Statements []string
	Parameters []sqlapi.Parameter
}

// Request turns the batch into a proxy request for the given target.
func (b Batch) Request(serverID, databaseID string, asAdmin bool) sqlapi.Request {
	return sqlapi.Request{
		ServerID:           serverID,
		DatabaseID:         databaseID,
		Sql:                b.Statements,
		Parameters:         b.Parameters,
		ExecuteAsAdminUser: asAdmin,
		StopOnError:        true,
	}
}

// ConfigureServerMemory caps the memory SQL Server will use. sp_configure
// does not accept parameters for option values, so the number is inlined.
func ConfigureServerMemory(maxMemoryMB int) Batch {
	return Batch{Statements: []string{
		"Use [master];",
		`Exec sys.sp_configure N'show advanced options', N'1'
    Reconfigure With Override;`,
		fmt.Sprintf(`Exec sys.sp_configure N'max server memory (MB)', N'%d'
    Reconfigure With Override;`, maxMemoryMB),
		`Exec sys.sp_configure N'show advanced options', N'0'
    Reconfigure With Override;`,
	}}
}

// DatabaseNameParameter is the parameter CheckDatabaseExists binds.
const DatabaseNameParameter = "DatabaseName"

// CheckDatabaseExists returns a query yielding one row when the database exists.
func CheckDatabaseExists(databaseName string) (Batch, error) {
	if strings.TrimSpace(databaseName) == "" {
		return Batch{}, fmt.Errorf("database name is required")
	}
	return Batch{
		Statements: []string{"Select name from sys.databases Where name = @" + DatabaseNameParameter},
		Parameters: []sqlapi.Parameter{{
			Name:     DatabaseNameParameter,
			DataType: sqlapi.NVarChar,
			Size:     MaxIdentifierLength,
			Value:    databaseName,
		}},
	}, nil
}

// CreateDatabaseOptions describes a database and its owning login.
type CreateDatabaseOptions struct {
	DatabaseName         string
	UserName             string
	Password             string
	MaxPrimaryFileSizeMB int
	// MaxLogFileSizeMB defaults to MaxPrimaryFileSizeMB when zero.
	MaxLogFileSizeMB int
}

// GrowthMB is the file growth increment: 20% of the primary file size.
func GrowthMB(maxPrimaryFileSizeMB int) int {
	return int(float64(maxPrimaryFileSizeMB) * 0.2)
}

// CreateDatabase creates the database files, makes PRIMARY the default
// filegroup, and creates a login plus a user mapped to it. CREATE LOGIN
// cannot take the password as a parameter, so it is quote-escaped and inlined.
func CreateDatabase(opts CreateDatabaseOptions) (Batch, error) {
	if err := ValidateIdentifier(opts.DatabaseName); err != nil {
		return Batch{}, fmt.Errorf("invalid database name: %w", err)
	}
	if err := ValidateIdentifier(opts.UserName); err != nil {
		return Batch{}, fmt.Errorf("invalid user name: %w", err)
	}
	if strings.TrimSpace(opts.Password) == "" {
		return Batch{}, fmt.Errorf("password is required")
	}
	if opts.MaxPrimaryFileSizeMB <= 0 {
		return Batch{}, fmt.Errorf("primary file size must be positive, got %d", opts.MaxPrimaryFileSizeMB)
	}
	logSize := opts.MaxLogFileSizeMB
	if logSize <= 0 {
		logSize = opts.MaxPrimaryFileSizeMB
	}

	db := opts.DatabaseName
	user := opts.UserName
	password := EscapeLiteral(opts.Password)
	growth := GrowthMB(opts.MaxPrimaryFileSizeMB)

	return Batch{Statements: []string{
		fmt.Sprintf(`Create Database [%[1]s]
On Primary
(
    Name = N'%[1]s',
    FileName = N'%[2]s/%[1]s.mdf',
    Size = 8192KB,
    FileGrowth = %[3]dMB,
    MaxSize = %[4]dMB
)
Log On
(
    Name = N'%[1]s_log',
    FileName = N'%[2]s/%[1]s_log.ldf',
    Size = 8192KB,
    FileGrowth = %[3]dMB,
    MaxSize = %[5]dMB
)`, db, DataDirectory, growth, opts.MaxPrimaryFileSizeMB, logSize),
		fmt.Sprintf("Use [%s]", db),
		fmt.Sprintf(`If Not Exists
(
    Select name
    From sys.filegroups
    Where
        is_default=1
        And
        name = N'PRIMARY'
)
Begin
    Alter Database [%s]
    Modify FileGroup [PRIMARY] Default
End`, db),
		"Use [master]",
		fmt.Sprintf(`Create Login [%s]
With
    Password=N'%s',
    DEFAULT_DATABASE=[%s],
    CHECK_EXPIRATION=OFF,
    CHECK_POLICY=ON`, user, password, db),
		fmt.Sprintf("Use [%s]", db),
		fmt.Sprintf(`Create User [%[1]s]
    For Login [%[1]s]`, user),
	}}, nil
}

// DropDatabase kicks every other session out and drops the database.
func DropDatabase(databaseName string) (Batch, error) {
	if err := ValidateIdentifier(databaseName); err != nil {
		return Batch{}, fmt.Errorf("invalid database name: %w", err)
	}
	return Batch{Statements: []string{
		fmt.Sprintf(`Alter Database
    [%s]
Set
    SINGLE_USER With Rollback Immediate`, databaseName),
		fmt.Sprintf("Drop Database [%s]", databaseName),
	}}, nil
}
