package etl

import (
	"context"
	"fmt"
	"time"

	"librarydesk/internal/domain"
)

// ── ImportJob ──────────────────────────────────────────────
// Orchestrates: source.Read → transform chain → catalog bulk import.

// BookSink receives mapped rows. catalog.Library satisfies it.
type BookSink interface {
	BulkImportBooks(ctx context.Context, rows []domain.ImportRow) domain.ImportResult
}

// ImportJob describes one import: where rows come from and how they are
// reshaped before they reach the catalog.
type ImportJob struct {
	Name       string            `json:"name"`
	SourceType string            `json:"sourceType"`
	SourceCfg  SourceConfig      `json:"sourceConfig"`
	Transforms []TransformConfig `json:"transforms,omitempty"`
	DedupeKey  string            `json:"dedupeKey,omitempty"`
}

// FileJob builds a job for a CSV or JSON file, choosing the source by
// extension.
func FileJob(path string) (*ImportJob, error) {
	typ, err := SourceForFile(path)
	if err != nil {
		return nil, err
	}
	return &ImportJob{
		Name:       path,
		SourceType: typ,
		SourceCfg:  SourceConfig{"filePath": path},
	}, nil
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// ImportReport is the outcome of running an import job.
type ImportReport struct {
	Status      string              `json:"status"`
	RowsRead    int                 `json:"rowsRead"`
	RowsDropped int                 `json:"rowsDropped"` // removed by transforms
	Result      domain.ImportResult `json:"result"`
	Duration    time.Duration       `json:"duration"`
	Error       string              `json:"error,omitempty"`
}

// ── Engine ─────────────────────────────────────────────────

// Engine runs import jobs using the registered sources and a sink.
type Engine struct {
	Sink BookSink
}

// RunImport executes a job end-to-end. A source or configuration failure
// returns an error and imports nothing; row failures are reported in the
// result and never abort the run.
func (e *Engine) RunImport(ctx context.Context, job *ImportJob) (*ImportReport, error) {
	start := time.Now()
	report := &ImportReport{Result: domain.ImportResult{Errors: []string{}}}
	fail := func(err error) (*ImportReport, error) {
		report.Status = StatusError
		report.Error = err.Error()
		report.Duration = time.Since(start)
		return report, err
	}

	rows, read, err := e.collect(ctx, job, 0)
	if err != nil {
		return fail(err)
	}
	report.RowsRead = read
	report.RowsDropped = read - len(rows)

	report.Result = e.Sink.BulkImportBooks(ctx, rows)
	report.Status = statusOf(report.Result)
	report.Duration = time.Since(start)
	return report, nil
}

func statusOf(res domain.ImportResult) string {
	switch {
	case len(res.Errors) == 0:
		return StatusSuccess
	case res.ImportedCount > 0:
		return StatusPartial
	default:
		return StatusError
	}
}

// Preview reads and transforms up to maxRows rows without importing them.
func (e *Engine) Preview(ctx context.Context, job *ImportJob, maxRows int) ([]domain.ImportRow, error) {
	rows, _, err := e.collect(ctx, job, maxRows)
	return rows, err
}

// collect reads the job's source through its transform chain. maxRows <= 0
// reads everything.
func (e *Engine) collect(ctx context.Context, job *ImportJob, maxRows int) ([]domain.ImportRow, int, error) {
	source, err := GetSource(job.SourceType)
	if err != nil {
		return nil, 0, err
	}
	transformers, err := BuildTransformers(job.Transforms, job.DedupeKey)
	if err != nil {
		return nil, 0, fmt.Errorf("transforms: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	recCh, errCh := source.Read(ctx, job.SourceCfg)

	rows := []domain.ImportRow{}
	read := 0
	for rec := range recCh {
		read++
		if out, keep := ApplyTransformers(rec, transformers); keep {
			rows = append(rows, ToImportRow(out))
		}
		if maxRows > 0 && len(rows) >= maxRows {
			cancel()
			break
		}
	}
	// drain so the reader goroutine can exit
	go func() {
		for range recCh {
		}
	}()

	if err := <-errCh; err != nil && (maxRows <= 0 || len(rows) < maxRows) {
		return nil, read, fmt.Errorf("read: %w", err)
	}
	return rows, read, nil
}
