package domain

import "time"

// TargetDriver is the engine behind an export target.
type TargetDriver string

const (
	TargetDriverMySQL    TargetDriver = "mysql"
	TargetDriverPostgres TargetDriver = "postgres"
	TargetDriverMongoDB  TargetDriver = "mongodb"
	TargetDriverSQLite   TargetDriver = "sqlite"
)

// Valid reports whether d is one of the supported drivers.
func (d TargetDriver) Valid() bool {
	switch d {
	case TargetDriverMySQL, TargetDriverPostgres, TargetDriverMongoDB, TargetDriverSQLite:
		return true
	}
	return false
}

// ExportTarget is an external database that receives catalog snapshots.
// For sqlite, Host is the database file path.
type ExportTarget struct {
	Name     string            `json:"name" mapstructure:"name"`
	Driver   TargetDriver      `json:"driver" mapstructure:"driver"`
	Host     string            `json:"host" mapstructure:"host"`
	Port     int               `json:"port" mapstructure:"port"`
	Database string            `json:"database" mapstructure:"database"`
	Username string            `json:"username" mapstructure:"username"`
	Password string            `json:"-" mapstructure:"password"`
	SSLMode  string            `json:"sslMode" mapstructure:"ssl_mode"`
	Options  map[string]string `json:"options,omitempty" mapstructure:"options"`
}

// RunKind tells import runs from export runs in the history.
type RunKind string

const (
	RunImport RunKind = "import"
	RunExport RunKind = "export"
)

// Run is one recorded import or export. Runs are bookkeeping only; the
// catalog itself is never persisted locally.
type Run struct {
	ID          string    `json:"id"`
	Kind        RunKind   `json:"kind"`
	Trigger     string    `json:"trigger"` // "manual" | "schedule" | "file_watch"
	Source      string    `json:"source"`
	Target      string    `json:"target"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"` // "success" | "partial" | "error"
	RowsRead    int       `json:"rowsRead"`
	RowsWritten int       `json:"rowsWritten"`
	Errors      []string  `json:"errors,omitempty"`
	Error       string    `json:"error,omitempty"`
}
