package service_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/domain"
	"librarydesk/internal/etl"
	_ "librarydesk/internal/etl/sources"
	"librarydesk/internal/service"
	"librarydesk/internal/storage"
)

// fakeSink accepts every row with a title and rejects the rest.
type fakeSink struct {
	mu      sync.Mutex
	rows    []domain.ImportRow
	calls   int
	entered chan struct{}
	block   chan struct{}
}

func (f *fakeSink) BulkImportBooks(ctx context.Context, rows []domain.ImportRow) domain.ImportResult {
	if f.block != nil {
		close(f.entered)
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	res := domain.ImportResult{Errors: []string{}}
	for i, r := range rows {
		if r.Title == "" {
			res.Errors = append(res.Errors, "Row "+string(rune('1'+i))+": title: is required")
			continue
		}
		f.rows = append(f.rows, r)
		res.ImportedCount++
	}
	return res
}

func (f *fakeSink) imported() []domain.ImportRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ImportRow(nil), f.rows...)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const booksCSV = "title,author_id,category_id,publication_date,price\n" +
	"Notes,1,1,1843-09-01,12.5\n" +
	",1,1,1843-09-01,3\n"

func TestImportService_ImportFile(t *testing.T) {
	sink := &fakeSink{}
	runs := &memRuns{}
	emitter := &service.MockEmitter{}
	svc := service.NewImportService(sink, runs, emitter, nil)

	path := writeFile(t, t.TempDir(), "books.csv", booksCSV)
	report, err := svc.ImportFile(context.Background(), path, service.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, etl.StatusPartial, report.Status)
	assert.Equal(t, 2, report.RowsRead)
	assert.Equal(t, 1, report.Result.ImportedCount)
	require.Len(t, sink.imported(), 1)
	assert.Equal(t, "Notes", sink.imported()[0].Title)
	assert.Equal(t, 12.5, sink.imported()[0].Price)

	recorded := runs.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, domain.RunImport, recorded[0].Kind)
	assert.Equal(t, service.TriggerManual, recorded[0].Trigger)
	assert.Equal(t, path, recorded[0].Source)
	assert.Equal(t, 1, recorded[0].RowsWritten)
	assert.Len(t, recorded[0].Errors, 1)

	events := emitter.Recorded()
	require.Len(t, events, 1)
	assert.Equal(t, service.EventImportCompleted, events[0].Event)
}

func TestImportService_UnsupportedFile(t *testing.T) {
	svc := service.NewImportService(&fakeSink{}, nil, nil, nil)
	path := writeFile(t, t.TempDir(), "books.xlsx", "x")

	_, err := svc.ImportFile(context.Background(), path, service.TriggerManual)
	assert.ErrorIs(t, err, etl.ErrUnsupportedFormat)
	assert.EqualError(t, err, "Unsupported file format. Please use CSV or JSON.")
}

func TestImportService_SourceFailureIsRecorded(t *testing.T) {
	runs := &memRuns{}
	svc := service.NewImportService(&fakeSink{}, runs, nil, nil)

	_, err := svc.ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"), service.TriggerManual)
	require.Error(t, err)

	recorded := runs.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, etl.StatusError, recorded[0].Status)
	assert.NotEmpty(t, recorded[0].Error)
}

func TestImportService_RejectsOverlappingRuns(t *testing.T) {
	sink := &fakeSink{entered: make(chan struct{}), block: make(chan struct{})}
	svc := service.NewImportService(sink, nil, nil, nil)
	path := writeFile(t, t.TempDir(), "books.csv", booksCSV)

	first := make(chan error, 1)
	go func() {
		_, err := svc.ImportFile(context.Background(), path, service.TriggerManual)
		first <- err
	}()

	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first import never reached the sink")
	}
	_, err := svc.ImportFile(context.Background(), path, service.TriggerManual)
	assert.ErrorIs(t, err, service.ErrAlreadyRunning)

	close(sink.block)
	require.NoError(t, <-first)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	svc.WaitRunning(ctx)
	assert.Equal(t, 1, sink.calls)
}

func TestImportService_Preview(t *testing.T) {
	sink := &fakeSink{}
	svc := service.NewImportService(sink, nil, nil, nil)
	path := writeFile(t, t.TempDir(), "books.json",
		`[{"title":"A","authorId":"1","categoryId":"1","price":1},{"title":"B","authorId":"1","categoryId":"1","price":2}]`)

	job, err := etl.FileJob(path)
	require.NoError(t, err)
	rows, err := svc.Preview(context.Background(), job, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].Title)
	assert.Zero(t, sink.calls)
}

func TestImportService_HistoryFromStore(t *testing.T) {
	db, err := storage.New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := storage.NewRunStore(db)
	svc := service.NewImportService(&fakeSink{}, store, nil, nil)
	path := writeFile(t, t.TempDir(), "books.csv", booksCSV)
	_, err = svc.ImportFile(context.Background(), path, service.TriggerManual)
	require.NoError(t, err)

	history, err := svc.History(10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, etl.StatusPartial, history[0].Status)

	run, err := store.GetRun(history[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Row 2: title: is required"}, run.Errors)
}

func TestImportService_HistoryWithoutStore(t *testing.T) {
	svc := service.NewImportService(&fakeSink{}, nil, nil, nil)
	history, err := svc.History(10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestImportService_Watch(t *testing.T) {
	sink := &fakeSink{}
	svc := service.NewImportService(sink, nil, nil, nil)
	dir := t.TempDir()

	require.NoError(t, svc.Watch(context.Background(), dir))
	t.Cleanup(svc.StopWatch)
	assert.NotEmpty(t, svc.WatchDir())

	writeFile(t, dir, "ignored.txt", "nothing")
	writeFile(t, dir, "drop.csv", booksCSV)

	require.Eventually(t, func() bool {
		return len(sink.imported()) == 1
	}, 5*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		moved, _ := filepath.Glob(filepath.Join(dir, "imported", "*-drop.csv"))
		return len(moved) == 1
	}, 5*time.Second, 50*time.Millisecond)

	_, err := os.Stat(filepath.Join(dir, "ignored.txt"))
	assert.NoError(t, err)

	svc.StopWatch()
	assert.Empty(t, svc.WatchDir())
}

func TestImportService_Discover(t *testing.T) {
	svc := service.NewImportService(&fakeSink{}, nil, nil, nil)
	path := writeFile(t, t.TempDir(), "books.csv", booksCSV)

	schema, err := svc.Discover(context.Background(), "csv", etl.SourceConfig{"filePath": path})
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "author_id", "category_id", "publication_date", "price"}, schema.FieldNames())

	_, err = svc.Discover(context.Background(), "ftp", nil)
	assert.Error(t, err)
}
