package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter — decouples services from wailsRuntime
// ─────────────────────────────────────────────────────────────

// EventEmitter pushes events to the console. The App implements it with
// wailsRuntime.EventsEmit; tests use MockEmitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Events emitted by the import and export services.
const (
	EventImportCompleted = "import:completed"
	EventExportCompleted = "export:completed"
)

// MockEmitter is a test-friendly EventEmitter that records all calls.
// Emit may be called from several goroutines; read Events once they are done
// or use Recorded.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Recorded returns a copy of the events so far.
func (m *MockEmitter) Recorded() []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmittedEvent(nil), m.Events...)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, any) {}

// NopEmitter returns an EventEmitter that drops everything, for runs with
// no console attached.
func NopEmitter() EventEmitter { return nopEmitter{} }
