package app

import (
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"librarydesk/internal/domain"
	"librarydesk/internal/etl"
	"librarydesk/internal/service"
)

// ============================================================
// Import
// ============================================================

// ImportFile imports a CSV or JSON file of book rows.
func (a *App) ImportFile(path string) (*etl.ImportReport, error) {
	report, err := a.core.Imports.ImportFile(a.ctx, path, service.TriggerManual)
	if err != nil {
		a.logError("import "+path, err)
	}
	return report, err
}

// PickAndImportFile opens a file dialog and imports the chosen file.
// A cancelled dialog returns a nil report.
func (a *App) PickAndImportFile() (*etl.ImportReport, error) {
	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Import Books",
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "Book files", Pattern: "*.csv;*.json"},
		},
	})
	if err != nil || path == "" {
		return nil, err
	}
	return a.ImportFile(path)
}

// RunImport runs an import job against any registered source.
func (a *App) RunImport(job etl.ImportJob) (*etl.ImportReport, error) {
	report, err := a.core.Imports.RunJob(a.ctx, &job, service.TriggerManual)
	if err != nil {
		a.logError("import "+job.SourceType, err)
	}
	return report, err
}

// PreviewImport returns the first rows a job would import.
func (a *App) PreviewImport(job etl.ImportJob, maxRows int) ([]domain.ImportRow, error) {
	return a.core.Imports.Preview(a.ctx, &job, maxRows)
}

func (a *App) DiscoverSource(sourceType string, cfg etl.SourceConfig) (*etl.Schema, error) {
	return a.core.Imports.Discover(a.ctx, sourceType, cfg)
}

func (a *App) ListImportSources() []etl.SourceSpec { return a.core.Imports.ListSources() }

func (a *App) ImportHistory(limit int) ([]domain.Run, error) {
	return a.core.Imports.History(limit)
}

// ── Watch folder ───────────────────────────────────────────

// WatchFolder returns the directory currently watched, or "".
func (a *App) WatchFolder() string { return a.core.Imports.WatchDir() }

// PickWatchFolder lets the user choose a drop folder and starts watching it.
func (a *App) PickWatchFolder() (string, error) {
	dir, err := wailsRuntime.OpenDirectoryDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Select Drop Folder",
	})
	if err != nil || dir == "" {
		return "", err
	}
	if err := a.core.Imports.Watch(a.ctx, dir); err != nil {
		a.logError("watch "+dir, err)
		return "", err
	}
	return a.core.Imports.WatchDir(), nil
}

func (a *App) StopWatchFolder() { a.core.Imports.StopWatch() }
