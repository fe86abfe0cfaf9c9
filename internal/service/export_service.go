package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"librarydesk/internal/dbclient"
	"librarydesk/internal/domain"
	"librarydesk/internal/etl"
	"librarydesk/internal/secret"
)

// ─────────────────────────────────────────────────────────────
// Export Service — files, templates and database snapshots
// ─────────────────────────────────────────────────────────────

// SnapshotSource provides a consistent view of the catalog.
// catalog.Library satisfies it.
type SnapshotSource interface {
	Snapshot() domain.Snapshot
}

// ErrTargetNotFound is returned for an export target name that is not
// configured.
var ErrTargetNotFound = errors.New("export target not found")

// ConnectorFactory opens a connector for a target. dbclient.NewConnector
// is the default; tests substitute their own.
type ConnectorFactory func(target domain.ExportTarget, logger *zap.Logger) (dbclient.Connector, error)

// ExportService writes catalog snapshots to files and configured export
// targets. It keeps one live connector per target.
type ExportService struct {
	source  SnapshotSource
	runs    RunRecorder
	emitter EventEmitter
	logger  *zap.Logger
	connect ConnectorFactory
	secrets secret.SecretStore
	now     func() time.Time
	running runGuard

	targets map[string]domain.ExportTarget

	mu               sync.Mutex
	activeConnectors map[string]*connEntry
}

type connEntry struct {
	connector dbclient.Connector
	createdAt time.Time
}

// NewExportService creates an ExportService for the given targets.
func NewExportService(
	source SnapshotSource,
	targets []domain.ExportTarget,
	runs RunRecorder,
	emitter EventEmitter,
	logger *zap.Logger,
) *ExportService {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[string]domain.ExportTarget, len(targets))
	for _, t := range targets {
		byName[t.Name] = t
	}
	return &ExportService{
		source:           source,
		runs:             runs,
		emitter:          emitter,
		logger:           logger.Named("export"),
		connect:          dbclient.NewConnector,
		now:              time.Now,
		targets:          byName,
		activeConnectors: make(map[string]*connEntry),
	}
}

// SetConnectorFactory replaces how connectors are opened.
func (s *ExportService) SetConnectorFactory(f ConnectorFactory) {
	s.connect = f
}

// SetSecretStore supplies passwords for targets configured without one.
func (s *ExportService) SetSecretStore(store secret.SecretStore) {
	s.secrets = store
}

// SetTargetPassword stores a target's password in the secret store and
// reconnects on next use.
func (s *ExportService) SetTargetPassword(name, password string) error {
	if _, ok := s.targets[name]; !ok {
		return fmt.Errorf("%w: %s", ErrTargetNotFound, name)
	}
	if s.secrets == nil {
		return fmt.Errorf("no secret store configured")
	}
	if err := s.secrets.Set(secret.TargetKey(name), []byte(password)); err != nil {
		return err
	}
	s.drop(name)
	return nil
}

// ── Files ──────────────────────────────────────────────────

// ExportTo writes one entity of the current snapshot to w.
func (s *ExportService) ExportTo(w io.Writer, format etl.Format, entity etl.Entity) (int, error) {
	schema, records, err := etl.SnapshotRecords(s.source.Snapshot(), entity)
	if err != nil {
		return 0, err
	}
	if err := etl.WriteRecords(w, format, schema, records); err != nil {
		return 0, fmt.Errorf("write %s: %w", entity, err)
	}
	return len(records), nil
}

// ExportFile writes one entity to path, picking the format from the
// extension. The file is replaced atomically.
func (s *ExportService) ExportFile(ctx context.Context, path string, entity etl.Entity) (int, error) {
	format, err := etl.FormatFromPath(path)
	if err != nil {
		return 0, err
	}
	var n int
	err = writeAtomic(path, func(w io.Writer) error {
		var werr error
		n, werr = s.ExportTo(w, format, entity)
		return werr
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("exported file",
		zap.String("path", path),
		zap.String("entity", string(entity)),
		zap.Int("rows", n),
	)
	return n, nil
}

// Template writes an import template with one sample row.
func (s *ExportService) Template(w io.Writer, format etl.Format) error {
	schema, records := etl.TemplateRecords(s.source.Snapshot())
	return etl.WriteRecords(w, format, schema, records)
}

// TemplateFile writes an import template to path.
func (s *ExportService) TemplateFile(path string) error {
	format, err := etl.FormatFromPath(path)
	if err != nil {
		return err
	}
	return writeAtomic(path, func(w io.Writer) error {
		return s.Template(w, format)
	})
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename export file: %w", err)
	}
	return nil
}

// ── Targets ────────────────────────────────────────────────

// ListTargets returns the configured targets sorted by name. Passwords
// never leave the service.
func (s *ExportService) ListTargets() []domain.ExportTarget {
	out := make([]domain.ExportTarget, 0, len(s.targets))
	for _, t := range s.targets {
		t.Password = ""
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TestTarget checks that the target is reachable.
func (s *ExportService) TestTarget(ctx context.Context, name string) error {
	connector, err := s.getOrCreate(name)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := connector.TestConnection(ctx); err != nil {
		s.drop(name)
		return err
	}
	return nil
}

// ExportToTarget replaces the catalog tables of a target with the current
// snapshot and records the run.
func (s *ExportService) ExportToTarget(ctx context.Context, name, trigger string) (*domain.Run, error) {
	if !s.running.TryLock(name) {
		return nil, fmt.Errorf("export %s: %w", name, ErrAlreadyRunning)
	}
	defer s.running.Unlock(name)

	snap := s.source.Snapshot()
	run := &domain.Run{
		Kind:      domain.RunExport,
		Trigger:   trigger,
		Source:    "catalog",
		Target:    name,
		StartedAt: s.now(),
		RowsRead:  len(snap.Books) + len(snap.Authors) + len(snap.Categories),
	}

	result, err := s.writeSnapshot(ctx, name, snap)
	run.FinishedAt = s.now()
	if err != nil {
		run.Status = etl.StatusError
		run.Error = err.Error()
		s.logger.Error("export failed", zap.String("target", name), zap.Error(err))
	} else {
		run.Status = etl.StatusSuccess
		run.RowsWritten = result.Total
		s.logger.Info("export finished",
			zap.String("target", name),
			zap.String("trigger", trigger),
			zap.Int("rows", result.Total),
		)
	}

	if s.runs != nil {
		if serr := s.runs.SaveRun(run); serr != nil {
			s.logger.Warn("save run", zap.Error(serr))
		}
	}
	s.emitter.Emit(ctx, EventExportCompleted, run)
	return run, err
}

func (s *ExportService) writeSnapshot(ctx context.Context, name string, snap domain.Snapshot) (*dbclient.WriteResult, error) {
	connector, err := s.getOrCreate(name)
	if err != nil {
		return nil, err
	}
	result, err := connector.WriteSnapshot(ctx, snap)
	if err != nil {
		s.drop(name)
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	return result, nil
}

// QueryTarget runs a read query against a target. The database import
// source reads through it.
func (s *ExportService) QueryTarget(ctx context.Context, name, query string, limit int) (*dbclient.QueryPage, error) {
	connector, err := s.getOrCreate(name)
	if err != nil {
		return nil, err
	}
	return connector.Query(ctx, query, limit)
}

// IntrospectTarget describes the tables of a target.
func (s *ExportService) IntrospectTarget(ctx context.Context, name string) (*dbclient.SchemaInfo, error) {
	connector, err := s.getOrCreate(name)
	if err != nil {
		return nil, err
	}
	return connector.Introspect(ctx)
}

// History lists recent export runs.
func (s *ExportService) History(limit int) ([]domain.Run, error) {
	if s.runs == nil {
		return []domain.Run{}, nil
	}
	return s.runs.ListRuns(domain.RunExport, limit)
}

// WaitRunning blocks until running exports finish or ctx is done.
func (s *ExportService) WaitRunning(ctx context.Context) {
	s.running.WaitAll(ctx)
}

// ── Connector pool ─────────────────────────────────────────

func (s *ExportService) getOrCreate(name string) (dbclient.Connector, error) {
	s.mu.Lock()
	if e, ok := s.activeConnectors[name]; ok {
		s.mu.Unlock()
		return e.connector, nil
	}
	s.mu.Unlock()

	target, ok := s.targets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, name)
	}
	if target.Password == "" && s.secrets != nil {
		pw, err := s.secrets.Get(secret.TargetKey(name))
		if err != nil {
			return nil, fmt.Errorf("read password for %s: %w", name, err)
		}
		target.Password = string(pw)
	}

	connector, err := s.connect(target, s.logger)
	if err != nil {
		return nil, fmt.Errorf("open target %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.activeConnectors[name]; ok {
		// lost a race with another caller
		_ = connector.Close()
		return e.connector, nil
	}
	s.activeConnectors[name] = &connEntry{connector: connector, createdAt: s.now()}
	return connector, nil
}

// drop closes a connector after a failure so the next call reconnects.
func (s *ExportService) drop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.activeConnectors[name]; ok {
		_ = e.connector.Close()
		delete(s.activeConnectors, name)
	}
}

// Close tears down all active connectors.
func (s *ExportService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, entry := range s.activeConnectors {
		_ = entry.connector.Close()
		delete(s.activeConnectors, name)
	}
}
