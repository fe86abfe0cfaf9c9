package dbclient

import (
	"fmt"

	_ "github.com/lib/pq"

	"librarydesk/internal/domain"
)

func buildPostgresDSN(t domain.ExportTarget) string {
	port := t.Port
	if port == 0 {
		port = 5432
	}
	sslMode := t.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		t.Host, port, t.Username, t.Password, t.Database, sslMode,
	)
}
