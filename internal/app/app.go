package app

import (
	"context"
	"time"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	mcpserver "librarydesk/internal/mcp"
	"librarydesk/internal/service"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx     context.Context
	core    *Core
	emitter *WailsEmitter
	logger  *zap.Logger

	scheduler *service.Scheduler
	mcp       *mcpserver.Server
	watcher   *runWatcher
	cancel    context.CancelFunc
}

// New creates a new App around core. The emitter must be the one core was
// built with so catalog and service events reach the console.
func New(core *Core, emitter *WailsEmitter) *App {
	return &App{core: core, emitter: emitter, logger: core.Logger.Named("app")}
}

// NewEmitter returns the emitter to pass to NewCore before the window exists.
func NewEmitter() *WailsEmitter {
	return &WailsEmitter{}
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
	a.emitter.Bind(ctx)

	bg, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// The console shows the failure banner itself; startup continues so
	// the user can retry with Refresh.
	if err := a.core.Library.Load(ctx); err != nil {
		a.logError("initial load failed", err)
	}

	sched, err := a.core.StartBackground(bg)
	if err != nil {
		a.logError("start background jobs", err)
	}
	a.scheduler = sched

	a.mcp = mcpserver.New(bg, mcpserver.Deps{
		Name:    a.core.Config.MCP.Name,
		Emitter: a.emitter,
		Logger:  a.core.Logger,
		Library: a.core.Library,
		Imports: a.core.Imports,
		Exports: a.core.Exports,
	})

	a.watcher = newRunWatcher(a.core.Runs, a.core.Approvals, a.emitter, a.logger)
	go a.watcher.Run(bg)
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if w, h := wailsRuntime.WindowGetSize(ctx); w > 0 && h > 0 {
		if err := a.core.Window.SaveWindowSize(w, h); err != nil {
			a.logger.Warn("save window size", zap.Error(err))
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.scheduler != nil {
		a.scheduler.Stop(stopCtx)
	}
	a.core.Close(stopCtx)
}

func (a *App) logError(msg string, err error) {
	a.logger.Error(msg, zap.Error(err))
	if a.ctx != nil {
		wailsRuntime.LogErrorf(a.ctx, "%s: %v", msg, err)
	}
}
