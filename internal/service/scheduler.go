package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"librarydesk/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Scheduler — cron-driven refreshes and exports
// ─────────────────────────────────────────────────────────────

// Refresher reloads the catalog from the backend. catalog.Library
// satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// TargetExporter runs a snapshot export. *ExportService satisfies it.
type TargetExporter interface {
	ExportToTarget(ctx context.Context, name, trigger string) (*domain.Run, error)
}

// ScheduledEntry describes one registered cron job.
type ScheduledEntry struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
}

// Scheduler runs periodic work. A job still running when its next tick
// fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	names  map[cron.EntryID]scheduled
}

type scheduled struct {
	name string
	spec string
}

// NewScheduler creates a stopped scheduler. Expressions use the standard
// five-field cron format and descriptors such as "@every 10m".
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		names:  make(map[cron.EntryID]scheduled),
	}
}

func (s *Scheduler) add(name, spec string, fn func()) error {
	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("schedule %s: invalid expression %q: %w", name, spec, err)
	}
	s.names[id] = scheduled{name: name, spec: spec}
	s.logger.Info("scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// ScheduleRefresh reloads the catalog on spec.
func (s *Scheduler) ScheduleRefresh(ctx context.Context, spec string, r Refresher) error {
	return s.add("refresh", spec, func() {
		if err := r.Refresh(ctx); err != nil {
			s.logger.Warn("scheduled refresh failed", zap.Error(err))
		}
	})
}

// ScheduleExport exports the catalog to target on spec.
func (s *Scheduler) ScheduleExport(ctx context.Context, spec string, exp TargetExporter, target string) error {
	return s.add("export:"+target, spec, func() {
		// the exporter records and logs the run itself
		_, _ = exp.ExportToTarget(ctx, target, TriggerSchedule)
	})
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Entries lists the registered jobs with their next run time.
func (s *Scheduler) Entries() []ScheduledEntry {
	entries := s.cron.Entries()
	out := make([]ScheduledEntry, 0, len(entries))
	for _, e := range entries {
		meta := s.names[e.ID]
		out = append(out, ScheduledEntry{Name: meta.name, Spec: meta.spec, Next: e.Next, Prev: e.Prev})
	}
	return out
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
