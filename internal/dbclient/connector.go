package dbclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"librarydesk/internal/domain"
)

// QueryPage is the result of a read against a target.
type QueryPage struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	HasMore bool     `json:"hasMore"` // the limit cut the result short
}

// SchemaInfo lists the tables (or collections) of a target.
type SchemaInfo struct {
	Tables []TableInfo `json:"tables"`
}

// TableInfo describes a table/collection.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnInfo describes a column/field.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// WriteResult counts the rows written per table by WriteSnapshot.
type WriteResult struct {
	Tables map[string]int `json:"tables"`
	Total  int            `json:"total"`
}

// Connector is an open connection to an export target.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// WriteSnapshot replaces the books, authors and categories tables of
	// the target with the snapshot contents.
	WriteSnapshot(ctx context.Context, snap domain.Snapshot) (*WriteResult, error)

	// Query runs a read and returns at most limit rows. SQL targets take
	// a SELECT; Mongo targets take a JSON find document.
	Query(ctx context.Context, query string, limit int) (*QueryPage, error)

	// Introspect returns the tables and columns of the target.
	Introspect(ctx context.Context) (*SchemaInfo, error)

	Close() error
}

// NewConnector opens a Connector for the given target.
func NewConnector(target domain.ExportTarget, logger *zap.Logger) (Connector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("dbclient").With(zap.String("target", target.Name))

	switch target.Driver {
	case domain.TargetDriverSQLite:
		return newSQLiteConnector(target)
	case domain.TargetDriverMySQL:
		return newSQLConnector("mysql", mysqlDialect, buildMySQLDSN(target))
	case domain.TargetDriverPostgres:
		return newSQLConnector("postgres", postgresDialect, buildPostgresDSN(target))
	case domain.TargetDriverMongoDB:
		return newMongoConnector(target, logger)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", target.Driver)
	}
}
