package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"librarydesk/internal/domain"
	"librarydesk/internal/etl"
)

// ─────────────────────────────────────────────────────────────
// Import Service — bulk imports from files, URLs and databases
// ─────────────────────────────────────────────────────────────

// Triggers recorded with each run.
const (
	TriggerManual    = "manual"
	TriggerSchedule  = "schedule"
	TriggerFileWatch = "file_watch"
)

// importedDir is where watched files are moved once imported.
const importedDir = "imported"

// watchDebounce lets a file finish being written before it is imported.
const watchDebounce = 500 * time.Millisecond

// RunRecorder persists run history. *storage.RunStore implements it.
type RunRecorder interface {
	SaveRun(run *domain.Run) error
	ListRuns(kind domain.RunKind, limit int) ([]domain.Run, error)
	GetRun(id string) (*domain.Run, error)
}

// ErrAlreadyRunning is returned when the same import or export is started
// twice.
var ErrAlreadyRunning = errors.New("already running")

// ImportService runs import jobs into the catalog and records them.
type ImportService struct {
	engine  *etl.Engine
	runs    RunRecorder
	emitter EventEmitter
	logger  *zap.Logger
	now     func() time.Time
	running runGuard

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchDir    string
}

// NewImportService creates an ImportService. runs may be nil, in which
// case nothing is recorded.
func NewImportService(sink etl.BookSink, runs RunRecorder, emitter EventEmitter, logger *zap.Logger) *ImportService {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		engine:  &etl.Engine{Sink: sink},
		runs:    runs,
		emitter: emitter,
		logger:  logger.Named("import"),
		now:     time.Now,
	}
}

// ── Run ────────────────────────────────────────────────────

// ImportFile imports a CSV or JSON file, picking the source by extension.
func (s *ImportService) ImportFile(ctx context.Context, path, trigger string) (*etl.ImportReport, error) {
	job, err := etl.FileJob(path)
	if err != nil {
		return nil, err
	}
	return s.RunJob(ctx, job, trigger)
}

// RunJob runs an import job synchronously, records it and notifies the
// console. Two runs of the same job name never overlap.
func (s *ImportService) RunJob(ctx context.Context, job *etl.ImportJob, trigger string) (*etl.ImportReport, error) {
	key := job.Name
	if key == "" {
		key = job.SourceType
	}
	if !s.running.TryLock(key) {
		return nil, fmt.Errorf("import %s: %w", key, ErrAlreadyRunning)
	}
	defer s.running.Unlock(key)

	started := s.now()
	report, runErr := s.engine.RunImport(ctx, job)

	run := &domain.Run{
		Kind:        domain.RunImport,
		Trigger:     trigger,
		Source:      key,
		Target:      "catalog",
		StartedAt:   started,
		FinishedAt:  s.now(),
		Status:      report.Status,
		RowsRead:    report.RowsRead,
		RowsWritten: report.Result.ImportedCount,
		Errors:      report.Result.Errors,
		Error:       report.Error,
	}
	s.record(run)

	fields := []zap.Field{
		zap.String("source", key),
		zap.String("trigger", trigger),
		zap.String("status", report.Status),
		zap.Int("read", report.RowsRead),
		zap.Int("imported", report.Result.ImportedCount),
		zap.Int("failed", len(report.Result.Errors)),
	}
	if runErr != nil {
		s.logger.Error("import failed", append(fields, zap.Error(runErr))...)
	} else {
		s.logger.Info("import finished", fields...)
	}

	s.emitter.Emit(ctx, EventImportCompleted, run)
	return report, runErr
}

func (s *ImportService) record(run *domain.Run) {
	if s.runs == nil {
		return
	}
	if err := s.runs.SaveRun(run); err != nil {
		s.logger.Warn("save run", zap.Error(err))
	}
}

// Preview reads up to maxRows mapped rows without importing them.
func (s *ImportService) Preview(ctx context.Context, job *etl.ImportJob, maxRows int) ([]domain.ImportRow, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.engine.Preview(ctx, job, maxRows)
}

// Discover returns the columns a source would produce.
func (s *ImportService) Discover(ctx context.Context, sourceType string, cfg etl.SourceConfig) (*etl.Schema, error) {
	source, err := etl.GetSource(sourceType)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return source.Discover(ctx, cfg)
}

// ListSources returns the available source descriptors.
func (s *ImportService) ListSources() []etl.SourceSpec {
	return etl.ListSources()
}

// History lists recent import runs.
func (s *ImportService) History(limit int) ([]domain.Run, error) {
	if s.runs == nil {
		return []domain.Run{}, nil
	}
	return s.runs.ListRuns(domain.RunImport, limit)
}

// ── Watch folder ───────────────────────────────────────────

// Watch imports every CSV or JSON file written into dir. Each imported
// file is moved into dir/imported so it is not picked up twice. Calling
// Watch again replaces the previous watch.
func (s *ImportService) Watch(ctx context.Context, dir string) error {
	s.StopWatch()

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, importedDir), 0755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(abs); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", abs, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.watcher = watcher
	s.watchCancel = cancel
	s.watchDir = abs
	s.mu.Unlock()

	go s.watchLoop(watchCtx, watcher)
	s.logger.Info("watching folder", zap.String("dir", abs))
	return nil
}

func (s *ImportService) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isImportFile(event.Name) {
				continue
			}
			path := event.Name
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			timers[path] = time.AfterFunc(watchDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				s.importWatched(ctx, path)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (s *ImportService) importWatched(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		return // moved or deleted before the debounce fired
	}
	if _, err := s.ImportFile(ctx, path, TriggerFileWatch); errors.Is(err, ErrAlreadyRunning) {
		return
	}

	dest := filepath.Join(filepath.Dir(path), importedDir,
		s.now().Format("20060102-150405")+"-"+filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		s.logger.Warn("move imported file", zap.String("path", path), zap.Error(err))
	}
}

// WatchDir returns the folder being watched, or "" when none.
func (s *ImportService) WatchDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchDir
}

// StopWatch stops the folder watch, if any.
func (s *ImportService) StopWatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	s.watchDir = ""
}

// WaitRunning blocks until running imports finish or ctx is done.
func (s *ImportService) WaitRunning(ctx context.Context) {
	s.running.WaitAll(ctx)
}

// isImportFile reports whether name looks like an import file.
func isImportFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".csv" || ext == ".json"
}
