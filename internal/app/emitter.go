package app

import (
	"context"
	"sync"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// WailsEmitter pushes service events to the console. It is created before
// the Wails runtime exists; events emitted before Bind are dropped.
type WailsEmitter struct {
	mu  sync.RWMutex
	ctx context.Context
}

// Bind attaches the Wails runtime context received in Startup.
func (e *WailsEmitter) Bind(ctx context.Context) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()
}

func (e *WailsEmitter) Emit(_ context.Context, event string, data any) {
	e.mu.RLock()
	ctx := e.ctx
	e.mu.RUnlock()
	if ctx == nil {
		return
	}
	wailsRuntime.EventsEmit(ctx, event, data)
}
