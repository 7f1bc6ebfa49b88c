package model

// SessionSnapshot is the externally observable, serializable state of a
// sequencing session: phase, current/suspended activity, every activity's
// tracking state, and the global objective map. Together with the original
// sequencing configuration it is sufficient to resume a session bit-for-bit.
type SessionSnapshot struct {
	SessionID   string                       `json:"session_id"`
	Phase       SessionPhase                 `json:"phase"`
	CurrentID   string                       `json:"current_id,omitempty"`
	SuspendedID string                       `json:"suspended_id,omitempty"`
	Activities  map[string]*ActivityTracking `json:"activities"`
	Globals     map[string]GlobalObjective   `json:"globals,omitempty"`
	Validity    NavigationValidity           `json:"validity"`
}

// SnapshotVersion is the snapshot schema version recorded by the store.
const SnapshotVersion = "1"

// EngineVersion is the sequencing engine version.
const EngineVersion = "0.1.0"
