package sources

import (
	"context"
	"fmt"
	"sync"

	"librarydesk/internal/dbclient"
	"librarydesk/internal/etl"
)

// ── Database Source ────────────────────────────────────────
// Reads book rows from one of the configured database targets. Column
// names must match the import fields (aliases included), e.g.
//   SELECT title, author_id, category_id, publication_date, price FROM books

// TargetQuerier runs a read against a named target. The export service
// implements it and is injected at startup.
type TargetQuerier interface {
	QueryTarget(ctx context.Context, target, query string, limit int) (*dbclient.QueryPage, error)
}

var (
	querierMu sync.RWMutex
	querier   TargetQuerier
)

// SetTargetQuerier is called by the app at startup.
func SetTargetQuerier(q TargetQuerier) {
	querierMu.Lock()
	defer querierMu.Unlock()
	querier = q
}

func currentQuerier() (TargetQuerier, error) {
	querierMu.RLock()
	defer querierMu.RUnlock()
	if querier == nil {
		return nil, fmt.Errorf("database targets not initialized")
	}
	return querier, nil
}

// maxQueryRows caps a single database import.
const maxQueryRows = 10000

type databaseSource struct{}

func init() { etl.RegisterSource(&databaseSource{}) }

func (s *databaseSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "database",
		Label: "Database Query",
		Icon:  "IconDatabase",
		ConfigFields: []etl.ConfigField{
			{Key: "target", Label: "Target", Type: "target", Required: true, Help: "Name of a configured database target"},
			{Key: "query", Label: "Query", Type: "textarea", Required: true, Help: "SELECT statement, or a JSON find document for MongoDB"},
		},
	}
}

func (s *databaseSource) query(ctx context.Context, cfg etl.SourceConfig, limit int) (*dbclient.QueryPage, error) {
	target, _ := cfg["target"].(string)
	query, _ := cfg["query"].(string)
	if target == "" || query == "" {
		return nil, fmt.Errorf("target and query are required")
	}
	q, err := currentQuerier()
	if err != nil {
		return nil, err
	}
	return q.QueryTarget(ctx, target, query, limit)
}

func (s *databaseSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	page, err := s.query(ctx, cfg, 1)
	if err != nil {
		return nil, err
	}
	return etl.SchemaOf(page.Columns...), nil
}

func (s *databaseSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	return streamRecords(ctx, func() ([]etl.Record, error) {
		page, err := s.query(ctx, cfg, maxQueryRows)
		if err != nil {
			return nil, fmt.Errorf("execute: %w", err)
		}
		if page.HasMore {
			return nil, fmt.Errorf("query returned more than %d rows", maxQueryRows)
		}
		return pageRecords(page), nil
	})
}

func pageRecords(page *dbclient.QueryPage) []etl.Record {
	records := make([]etl.Record, 0, len(page.Rows))
	for _, row := range page.Rows {
		data := make(map[string]any, len(page.Columns))
		for i, col := range page.Columns {
			if i < len(row) {
				data[col] = row[i]
			}
		}
		records = append(records, etl.Record{Data: data})
	}
	return records
}
