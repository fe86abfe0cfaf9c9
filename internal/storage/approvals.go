package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"librarydesk/internal/domain"
)

// ApprovalStore carries MCP approval requests between the standalone MCP
// process and the desktop console through the shared sqlite file.
type ApprovalStore struct {
	db *DB
}

func NewApprovalStore(db *DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

// ErrApprovalNotFound is returned for an unknown approval id.
var ErrApprovalNotFound = errors.New("approval not found")

// CreatePending stores a new pending request.
func (s *ApprovalStore) CreatePending(a domain.PendingAction) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO mcp_approvals (id, tool, description, status, metadata) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Tool, a.Description, domain.ApprovalPending, a.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// Status returns the current state of a request.
func (s *ApprovalStore) Status(id string) (string, error) {
	var status string
	err := s.db.conn.QueryRow(`SELECT status FROM mcp_approvals WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrApprovalNotFound
	}
	return status, err
}

// Resolve marks a pending request approved or rejected.
func (s *ApprovalStore) Resolve(id string, approved bool) error {
	status := domain.ApprovalRejected
	if approved {
		status = domain.ApprovalApproved
	}
	res, err := s.db.conn.Exec(
		`UPDATE mcp_approvals SET status = ? WHERE id = ? AND status = ?`,
		status, id, domain.ApprovalPending,
	)
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrApprovalNotFound
	}
	return nil
}

// Delete removes a request once the requester has read the outcome.
func (s *ApprovalStore) Delete(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM mcp_approvals WHERE id = ?`, id)
	return err
}

// ListPending returns the requests still waiting, oldest first.
func (s *ApprovalStore) ListPending() ([]domain.PendingAction, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, tool, description, created_at, metadata FROM mcp_approvals
		 WHERE status = ? ORDER BY created_at`, domain.ApprovalPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.PendingAction{}
	for rows.Next() {
		var a domain.PendingAction
		if err := rows.Scan(&a.ID, &a.Tool, &a.Description, &a.CreatedAt, &a.Metadata); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
