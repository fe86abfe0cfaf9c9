package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/domain"
	"librarydesk/internal/storage"
)

func newRunStore(t *testing.T) *storage.RunStore {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "nested", "librarydesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return storage.NewRunStore(db)
}

func TestRunStore_SaveAndGet(t *testing.T) {
	s := newRunStore(t)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	run := &domain.Run{
		Kind:        domain.RunImport,
		Trigger:     "manual",
		Source:      "/tmp/books.csv",
		StartedAt:   started,
		FinishedAt:  started.Add(2 * time.Second),
		Status:      "partial",
		RowsRead:    3,
		RowsWritten: 2,
		Errors:      []string{"Row 2: Author ID 99 not found"},
	}
	require.NoError(t, s.SaveRun(run))
	require.NotEmpty(t, run.ID)

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Source, got.Source)
	assert.Equal(t, 2, got.RowsWritten)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, run.Errors, got.Errors)

	_, err = s.GetRun("missing")
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestRunStore_ListAndPrune(t *testing.T) {
	s := newRunStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, kind := range []domain.RunKind{domain.RunImport, domain.RunExport, domain.RunImport} {
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.SaveRun(&domain.Run{
			Kind: kind, StartedAt: at, FinishedAt: at, Status: "success",
			Errors: []string{"x"},
		}))
	}

	all, err := s.ListRuns("", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].StartedAt.After(all[1].StartedAt))

	imports, err := s.ListRuns(domain.RunImport, 10)
	require.NoError(t, err)
	assert.Len(t, imports, 2)

	removed, err := s.PruneRuns(1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	all, err = s.ListRuns("", 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.RunImport, all[0].Kind)
}

func TestRunStore_LatestRunID(t *testing.T) {
	s := newRunStore(t)
	id, err := s.LatestRunID()
	require.NoError(t, err)
	assert.Empty(t, id)

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := &domain.Run{Kind: domain.RunImport, Trigger: "manual", StartedAt: started, FinishedAt: started, Status: "success"}
	second := &domain.Run{Kind: domain.RunExport, Trigger: "schedule", StartedAt: started.Add(time.Minute), FinishedAt: started.Add(time.Minute), Status: "success"}
	require.NoError(t, s.SaveRun(first))
	require.NoError(t, s.SaveRun(second))

	id, err = s.LatestRunID()
	require.NoError(t, err)
	assert.Equal(t, second.ID, id)
}
