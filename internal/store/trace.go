package store

import (
	"context"
	"fmt"

	"github.com/roach88/scormseq/internal/model"
)

// Event is one recorded navigation outcome. Seq is the caller-assigned
// position of the request within its session, starting at 1.
type Event struct {
	SessionID  string
	Seq        int
	Request    model.NavigationRequest
	TargetID   string
	Success    bool
	Delivered  string
	Reason     model.RejectionReason
	Redirected model.RuleAction
}

// AppendEvent records a processed navigation request in the session's trace.
// Appending an already-recorded (session, seq) pair is a no-op, so retried
// writes are safe. The session must have a saved snapshot first.
func (s *Store) AppendEvent(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(session_id, seq, request, target_id, success, delivered, reason, redirected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		ev.SessionID,
		ev.Seq,
		string(ev.Request),
		ev.TargetID,
		ev.Success,
		ev.Delivered,
		string(ev.Reason),
		string(ev.Redirected),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	return nil
}

// ReadTrace returns the full navigation trace for a session in seq order.
func (s *Store) ReadTrace(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, request, target_id, success, delivered, reason, redirected
		FROM events
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var request, reason, redirected string
		if err := rows.Scan(&ev.SessionID, &ev.Seq, &request, &ev.TargetID, &ev.Success, &ev.Delivered, &reason, &redirected); err != nil {
			return nil, fmt.Errorf("read trace: scan: %w", err)
		}
		ev.Request = model.NavigationRequest(request)
		ev.Reason = model.RejectionReason(reason)
		ev.Redirected = model.RuleAction(redirected)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	return events, nil
}
