package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// DomainSnapshot is the domain separation prefix for snapshot hashes.
// Version suffix enables future algorithm migration.
const DomainSnapshot = "scormseq/snapshot/v1"

// SnapshotHash computes a deterministic content hash for a session snapshot.
// Two snapshots hash equal iff every observable field is equal; the
// rejection-purity property is asserted by comparing hashes before and after
// a failed request.
//
// Format: SHA256(domain + 0x00 + canonical JSON). The null separator prevents
// domain/data boundary ambiguity.
func SnapshotHash(s *SessionSnapshot) (string, error) {
	canonical, err := MarshalCanonical(snapshotValue(s))
	if err != nil {
		return "", fmt.Errorf("snapshot hash: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainSnapshot))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MarshalCanonical produces canonical JSON for hashing: object keys sorted,
// strings NFC-normalized, no HTML escaping, and no raw floats (measures are
// pre-rendered to fixed-precision strings by Measure).
//
// This is the ONLY serialization used for snapshot identity. Standard
// json.Marshal remains in use everywhere the bytes are not hashed.
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return marshalCanonicalString(val)
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case int:
		return []byte(strconv.Itoa(val)), nil
	case int64:
		return []byte(strconv.FormatInt(val, 10)), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalCanonical(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalCanonicalString(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := MarshalCanonical(val[k])
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case float64, float32:
		return nil, fmt.Errorf("raw floats are forbidden in canonical JSON: %v (use Measure)", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// Measure renders a normalized measure for canonical serialization. Fixed
// four-decimal precision keeps hashes stable across platforms.
func Measure(m float64) string {
	return strconv.FormatFloat(m, 'f', 4, 64)
}

// marshalCanonicalString produces a canonical JSON string: NFC normalized,
// no HTML escaping.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	result := buf.Bytes()
	if n := len(result); n > 0 && result[n-1] == '\n' {
		result = result[:n-1]
	}
	return result, nil
}

// snapshotValue lowers a SessionSnapshot to the restricted value tree the
// canonical marshaler accepts.
func snapshotValue(s *SessionSnapshot) map[string]any {
	activities := make(map[string]any, len(s.Activities))
	for id, t := range s.Activities {
		activities[id] = trackingValue(t)
	}
	out := map[string]any{
		"session_id": s.SessionID,
		"phase":      string(s.Phase),
		"activities": activities,
	}
	if s.CurrentID != "" {
		out["current_id"] = s.CurrentID
	}
	if s.SuspendedID != "" {
		out["suspended_id"] = s.SuspendedID
	}
	if len(s.Globals) > 0 {
		globals := make(map[string]any, len(s.Globals))
		for k, g := range s.Globals {
			globals[k] = map[string]any{
				"satisfied_status": string(g.SatisfiedStatus),
				"measure":          Measure(g.Measure),
				"measure_known":    g.MeasureKnown,
			}
		}
		out["globals"] = globals
	}
	return out
}

func trackingValue(t *ActivityTracking) map[string]any {
	out := map[string]any{
		"attempt_count":                t.AttemptCount,
		"attempt_completion_amount":    Measure(t.AttemptCompletionAmount),
		"attempt_absolute_duration":    int64(t.AttemptAbsoluteDuration),
		"attempt_experienced_duration": int64(t.AttemptExperiencedDuration),
		"completion":                   string(t.Completion),
		"objective":                    objectiveValue(t.Objective),
		"suspended":                    t.Suspended,
		"active":                       t.Active,
		"attempt_limit_exceeded":       t.AttemptLimitExceeded,
		"duration_limit_exceeded":      t.DurationLimitExceeded,
	}
	if len(t.Objectives) > 0 {
		objs := make(map[string]any, len(t.Objectives))
		for id, o := range t.Objectives {
			objs[id] = objectiveValue(o)
		}
		out["objectives"] = objs
	}
	if t.SelectionDone {
		sel := make([]any, len(t.SelectedChildren))
		for i, ord := range t.SelectedChildren {
			sel[i] = ord
		}
		out["selected_children"] = sel
	}
	return out
}

func objectiveValue(o ObjectiveTracking) map[string]any {
	return map[string]any{
		"satisfied_status": string(o.SatisfiedStatus),
		"measure":          Measure(o.Measure),
		"measure_known":    o.MeasureKnown,
	}
}
