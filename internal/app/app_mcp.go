package app

import (
	"errors"

	"librarydesk/internal/domain"
	"librarydesk/internal/storage"
)

// ============================================================
// MCP approvals
// ============================================================

// ApproveMCPAction approves a pending tool call. Calls waiting in this
// process are released directly; calls from a standalone MCP process are
// resolved through the shared database.
func (a *App) ApproveMCPAction(actionID string) error {
	return a.resolveMCPAction(actionID, true)
}

// RejectMCPAction rejects a pending tool call.
func (a *App) RejectMCPAction(actionID string) error {
	return a.resolveMCPAction(actionID, false)
}

func (a *App) resolveMCPAction(actionID string, approved bool) error {
	if a.mcp != nil {
		if approved {
			a.mcp.Approve(actionID)
		} else {
			a.mcp.Reject(actionID)
		}
	}
	err := a.core.Approvals.Resolve(actionID, approved)
	if errors.Is(err, storage.ErrApprovalNotFound) {
		return nil // in-process request, never stored
	}
	return err
}

// PendingApprovals lists tool calls from standalone MCP processes that are
// still waiting for the user.
func (a *App) PendingApprovals() ([]domain.PendingAction, error) {
	return a.core.Approvals.ListPending()
}
