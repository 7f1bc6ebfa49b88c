package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/scormseq/internal/model"
)

// SaveSnapshot upserts the latest snapshot for a session. The snapshot's
// canonical hash is computed and stored alongside the JSON so LoadSnapshot
// can detect corruption.
func (s *Store) SaveSnapshot(ctx context.Context, snap *model.SessionSnapshot) error {
	hash, err := model.SnapshotHash(snap)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, phase, current_id, suspended_id, snapshot, snapshot_hash, snapshot_version, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phase = excluded.phase,
			current_id = excluded.current_id,
			suspended_id = excluded.suspended_id,
			snapshot = excluded.snapshot,
			snapshot_hash = excluded.snapshot_hash,
			snapshot_version = excluded.snapshot_version,
			engine_version = excluded.engine_version,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`,
		snap.SessionID,
		string(snap.Phase),
		snap.CurrentID,
		snap.SuspendedID,
		string(data),
		hash,
		model.SnapshotVersion,
		model.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot reads the latest snapshot for a session and verifies its
// canonical hash. Returns ErrNotFound when no snapshot is stored.
func (s *Store) LoadSnapshot(ctx context.Context, sessionID string) (*model.SessionSnapshot, error) {
	var data, storedHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot, snapshot_hash FROM sessions WHERE id = ?
	`, sessionID).Scan(&data, &storedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load snapshot %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", sessionID, err)
	}

	var snap model.SessionSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("load snapshot %s: decode: %w", sessionID, err)
	}

	hash, err := model.SnapshotHash(&snap)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", sessionID, err)
	}
	if hash != storedHash {
		return nil, fmt.Errorf("load snapshot %s: hash mismatch: stored %s, computed %s", sessionID, storedHash, hash)
	}

	return &snap, nil
}

// SessionInfo summarizes a stored session without decoding its snapshot.
type SessionInfo struct {
	SessionID    string
	Phase        model.SessionPhase
	CurrentID    string
	SuspendedID  string
	SnapshotHash string
	UpdatedAt    string
}

// ListSessions returns all stored sessions ordered by last update, newest
// first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phase, current_id, suspended_id, snapshot_hash, updated_at
		FROM sessions
		ORDER BY updated_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var infos []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var phase string
		if err := rows.Scan(&info.SessionID, &phase, &info.CurrentID, &info.SuspendedID, &info.SnapshotHash, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list sessions: scan: %w", err)
		}
		info.Phase = model.SessionPhase(phase)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return infos, nil
}
