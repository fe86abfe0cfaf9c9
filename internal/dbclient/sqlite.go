package dbclient

import (
	"fmt"

	_ "modernc.org/sqlite"

	"librarydesk/internal/domain"
)

// newSQLiteConnector opens (or creates) a SQLite file in WAL mode.
func newSQLiteConnector(t domain.ExportTarget) (*sqlConnector, error) {
	if t.Host == "" {
		return nil, fmt.Errorf("sqlite target %q needs a file path in host", t.Name)
	}
	return newSQLConnector("sqlite", sqliteDialect, t.Host+"?_journal_mode=WAL&_busy_timeout=5000")
}
