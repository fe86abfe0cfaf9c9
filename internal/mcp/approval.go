package mcpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"librarydesk/internal/domain"
)

// EventEmitter allows the approval queue to notify the console.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Approval events.
const (
	EventApprovalRequired  = "mcp:approval-required"
	EventApprovalDismissed = "mcp:approval-dismissed"
)

// ApprovalStore persists requests for a console running in another
// process. *storage.ApprovalStore implements it.
type ApprovalStore interface {
	CreatePending(a domain.PendingAction) error
	Status(id string) (string, error)
	Delete(id string) error
}

// actionResult is sent through the channel when the user approves/rejects.
type actionResult struct {
	approved bool
}

// ApprovalQueue manages human-in-the-loop approval for destructive tool
// calls. It supports two modes:
//   - In-process (console running MCP): channels + console events
//   - Store-based (standalone MCP): writes the request to sqlite and polls
//     until the console resolves it
type ApprovalQueue struct {
	mu       sync.Mutex
	pending  map[string]chan actionResult
	ctx      context.Context
	emitter  EventEmitter
	timeout  time.Duration
	interval time.Duration
	store    ApprovalStore
}

func NewApprovalQueue(ctx context.Context, emitter EventEmitter) *ApprovalQueue {
	return &ApprovalQueue{
		pending:  make(map[string]chan actionResult),
		ctx:      ctx,
		emitter:  emitter,
		timeout:  120 * time.Second,
		interval: 500 * time.Millisecond,
	}
}

// SetStore enables store-based approval for standalone MCP.
func (q *ApprovalQueue) SetStore(store ApprovalStore) {
	q.store = store
}

// SetTimeout changes how long a request waits before it is rejected.
func (q *ApprovalQueue) SetTimeout(d time.Duration) {
	q.timeout = d
}

// Request sends an approval request and blocks until it is approved,
// rejected or times out. metadata is optional JSON with extra context.
func (q *ApprovalQueue) Request(tool, description string, metadata ...string) (bool, error) {
	action := domain.PendingAction{
		ID:          uuid.New().String(),
		Tool:        tool,
		Description: description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Metadata:    "{}",
	}
	if len(metadata) > 0 && metadata[0] != "" {
		action.Metadata = metadata[0]
	}

	if q.store != nil {
		return q.requestViaStore(action)
	}
	return q.requestViaChannel(action)
}

func (q *ApprovalQueue) requestViaStore(action domain.PendingAction) (bool, error) {
	if err := q.store.CreatePending(action); err != nil {
		return false, err
	}
	defer q.store.Delete(action.ID)

	deadline := time.Now().Add(q.timeout)
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if time.Now().After(deadline) {
				return false, fmt.Errorf("action timed out after %s: %s", q.timeout, action.Tool)
			}
			status, err := q.store.Status(action.ID)
			if err != nil {
				continue
			}
			switch status {
			case domain.ApprovalApproved:
				return true, nil
			case domain.ApprovalRejected:
				return false, fmt.Errorf("action rejected by user: %s", action.Tool)
			}
		case <-q.ctx.Done():
			return false, fmt.Errorf("context cancelled")
		}
	}
}

func (q *ApprovalQueue) requestViaChannel(action domain.PendingAction) (bool, error) {
	ch := make(chan actionResult, 1)

	q.mu.Lock()
	q.pending[action.ID] = ch
	q.mu.Unlock()
	defer q.cleanup(action.ID)

	q.emitter.Emit(q.ctx, EventApprovalRequired, action)

	select {
	case result := <-ch:
		if !result.approved {
			return false, fmt.Errorf("action rejected by user: %s", action.Tool)
		}
		return true, nil
	case <-time.After(q.timeout):
		q.emitter.Emit(q.ctx, EventApprovalDismissed, map[string]string{"id": action.ID})
		return false, fmt.Errorf("action timed out after %s: %s", q.timeout, action.Tool)
	case <-q.ctx.Done():
		return false, fmt.Errorf("context cancelled")
	}
}

// Approve marks a pending action as approved (in-process mode).
func (q *ApprovalQueue) Approve(actionID string) {
	q.resolve(actionID, true)
}

// Reject marks a pending action as rejected (in-process mode).
func (q *ApprovalQueue) Reject(actionID string) {
	q.resolve(actionID, false)
}

func (q *ApprovalQueue) resolve(actionID string, approved bool) {
	q.mu.Lock()
	ch, ok := q.pending[actionID]
	q.mu.Unlock()
	if ok {
		select {
		case ch <- actionResult{approved: approved}:
		default:
		}
	}
}

func (q *ApprovalQueue) cleanup(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}
