package app

import (
	"fmt"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"librarydesk/internal/dbclient"
	"librarydesk/internal/domain"
	"librarydesk/internal/etl"
	"librarydesk/internal/service"
)

// ============================================================
// Export
// ============================================================

var exportFilters = []wailsRuntime.FileFilter{
	{DisplayName: "CSV", Pattern: "*.csv"},
	{DisplayName: "JSON", Pattern: "*.json"},
}

// ExportFile writes one collection to path; the extension picks the format.
func (a *App) ExportFile(path, entity string) (int, error) {
	n, err := a.core.Exports.ExportFile(a.ctx, path, etl.Entity(entity))
	if err != nil {
		a.logError("export "+path, err)
	}
	return n, err
}

// SaveExport asks for a destination and exports the collection there.
// A cancelled dialog returns 0 and no error.
func (a *App) SaveExport(entity string) (int, error) {
	path, err := wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:           "Export " + entity,
		DefaultFilename: entity + ".csv",
		Filters:         exportFilters,
	})
	if err != nil || path == "" {
		return 0, err
	}
	return a.ExportFile(path, entity)
}

// DownloadTemplate saves a one-row import template.
func (a *App) DownloadTemplate() (string, error) {
	path, err := wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:           "Save Import Template",
		DefaultFilename: "books-template.csv",
		Filters:         exportFilters,
	})
	if err != nil || path == "" {
		return "", err
	}
	if err := a.core.Exports.TemplateFile(path); err != nil {
		a.logError("template "+path, err)
		return "", err
	}
	return path, nil
}

// ── Export targets ─────────────────────────────────────────

func (a *App) ListExportTargets() []domain.ExportTarget { return a.core.Exports.ListTargets() }

// SetTargetPassword keeps a target's password in the system keychain.
func (a *App) SetTargetPassword(name, password string) error {
	return a.core.Exports.SetTargetPassword(name, password)
}

func (a *App) TestExportTarget(name string) error {
	return a.core.Exports.TestTarget(a.ctx, name)
}

// ExportToTarget replaces the target's tables with the current catalog.
func (a *App) ExportToTarget(name string) (*domain.Run, error) {
	run, err := a.core.Exports.ExportToTarget(a.ctx, name, service.TriggerManual)
	if err != nil {
		a.logError(fmt.Sprintf("export to %s", name), err)
	}
	return run, err
}

func (a *App) QueryExportTarget(name, query string, limit int) (*dbclient.QueryPage, error) {
	return a.core.Exports.QueryTarget(a.ctx, name, query, limit)
}

func (a *App) IntrospectExportTarget(name string) (*dbclient.SchemaInfo, error) {
	return a.core.Exports.IntrospectTarget(a.ctx, name)
}

func (a *App) ExportHistory(limit int) ([]domain.Run, error) {
	return a.core.Exports.History(limit)
}

// ScheduledJobs lists the cron entries with their next run.
func (a *App) ScheduledJobs() []service.ScheduledEntry {
	if a.scheduler == nil {
		return []service.ScheduledEntry{}
	}
	return a.scheduler.Entries()
}
