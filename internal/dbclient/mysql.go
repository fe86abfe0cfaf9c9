package dbclient

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"librarydesk/internal/domain"
)

// buildMySQLDSN formats user:password@tcp(host:port)/dbname?params.
func buildMySQLDSN(t domain.ExportTarget) string {
	port := t.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		t.Username, t.Password, t.Host, port, t.Database,
	)
	if t.SSLMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}
