package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"librarydesk/internal/domain"
	mcpserver "librarydesk/internal/mcp"
	"librarydesk/internal/service"
)

// Events raised for work done by another process sharing the database.
const (
	EventRunsChanged = "runs:changed"
)

const runWatchInterval = 2 * time.Second

type runSource interface {
	LatestRunID() (string, error)
}

type approvalLister interface {
	ListPending() ([]domain.PendingAction, error)
}

// runWatcher polls the shared database for runs recorded and approvals
// requested by a standalone MCP process, and forwards them to the console.
type runWatcher struct {
	runs      runSource
	approvals approvalLister
	emitter   service.EventEmitter
	logger    *zap.Logger
	interval  time.Duration

	lastRun string
	seen    map[string]bool
}

func newRunWatcher(runs runSource, approvals approvalLister, emitter service.EventEmitter, logger *zap.Logger) *runWatcher {
	return &runWatcher{
		runs:      runs,
		approvals: approvals,
		emitter:   emitter,
		logger:    logger,
		interval:  runWatchInterval,
		seen:      make(map[string]bool),
	}
}

// Run polls until ctx is cancelled.
func (w *runWatcher) Run(ctx context.Context) {
	if id, err := w.runs.LatestRunID(); err == nil {
		w.lastRun = id
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *runWatcher) poll(ctx context.Context) {
	id, err := w.runs.LatestRunID()
	if err != nil {
		w.logger.Debug("poll runs", zap.Error(err))
	} else if id != w.lastRun {
		w.lastRun = id
		w.emitter.Emit(ctx, EventRunsChanged, id)
	}

	pending, err := w.approvals.ListPending()
	if err != nil {
		w.logger.Debug("poll approvals", zap.Error(err))
		return
	}
	current := make(map[string]bool, len(pending))
	for _, p := range pending {
		current[p.ID] = true
		if !w.seen[p.ID] {
			w.emitter.Emit(ctx, mcpserver.EventApprovalRequired, p)
		}
	}
	for id := range w.seen {
		if !current[id] {
			w.emitter.Emit(ctx, mcpserver.EventApprovalDismissed, map[string]string{"id": id})
		}
	}
	w.seen = current
}
