package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"librarydesk/internal/catalog"
	"librarydesk/internal/config"
	"librarydesk/internal/etl/sources"
	"librarydesk/internal/gateway"
	"librarydesk/internal/secret"
	"librarydesk/internal/service"
	"librarydesk/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Core — everything the console, MCP and CLI modes share
// ─────────────────────────────────────────────────────────────

// keepRuns bounds the import/export history kept in sqlite.
const keepRuns = 500

// Core owns the catalog, local bookkeeping and the import/export services.
type Core struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *storage.DB
	Runs      *storage.RunStore
	Approvals *storage.ApprovalStore
	Library   *catalog.Library
	Imports   *service.ImportService
	Exports   *service.ExportService
	Window    *service.WindowSettingsService
}

// NewCore wires the stack from cfg. The catalog is not loaded yet; call
// Library.Load once the emitter is ready.
func NewCore(cfg *config.Config, logger *zap.Logger, emitter service.EventEmitter) (*Core, error) {
	if emitter == nil {
		emitter = service.NopEmitter()
	}

	gw, err := gateway.NewHTTPGateway(cfg.Gateway.BaseURL, gateway.WithTimeout(cfg.Gateway.Timeout))
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}

	db, err := storage.New(cfg.Storage.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	runs := storage.NewRunStore(db)
	if n, err := runs.PruneRuns(keepRuns); err != nil {
		logger.Warn("prune run history", zap.Error(err))
	} else if n > 0 {
		logger.Debug("pruned run history", zap.Int("removed", n))
	}

	library := catalog.NewLibrary(gw,
		catalog.WithEmitter(emitter),
		catalog.WithLogger(logger),
		catalog.WithRecentWindow(cfg.Stats.RecentWindow),
	)
	exports := service.NewExportService(library, cfg.ExportTargets, runs, emitter, logger)
	exports.SetSecretStore(secret.Default())

	// the database import source reads export targets
	sources.SetTargetQuerier(exports)

	return &Core{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Runs:      runs,
		Approvals: storage.NewApprovalStore(db),
		Library:   library,
		Imports:   service.NewImportService(library, runs, emitter, logger),
		Exports:   exports,
		Window:    service.NewWindowSettingsService(storage.NewSettingsStore(db)),
	}, nil
}

// StartBackground starts the configured drop folder and cron schedules.
// The returned scheduler is nil when nothing is scheduled.
func (c *Core) StartBackground(ctx context.Context) (*service.Scheduler, error) {
	if dir := c.Config.Import.WatchDir; dir != "" {
		if err := c.Imports.Watch(ctx, dir); err != nil {
			return nil, fmt.Errorf("watch folder: %w", err)
		}
	}

	sched := c.Config.Schedule
	if sched.Refresh == "" && len(sched.Export) == 0 {
		return nil, nil
	}
	s := service.NewScheduler(c.Logger)
	if sched.Refresh != "" {
		if err := s.ScheduleRefresh(ctx, sched.Refresh, c.Library); err != nil {
			return nil, err
		}
	}
	for _, run := range sched.Export {
		if err := s.ScheduleExport(ctx, run.Cron, c.Exports, run.Target); err != nil {
			return nil, err
		}
	}
	s.Start()
	return s, nil
}

// Close stops background work and releases connections.
func (c *Core) Close(ctx context.Context) {
	c.Imports.StopWatch()
	c.Imports.WaitRunning(ctx)
	c.Exports.WaitRunning(ctx)
	c.Exports.Close()
	if err := c.DB.Close(); err != nil {
		c.Logger.Warn("close database", zap.Error(err))
	}
}
