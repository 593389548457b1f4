package domain

import (
	"reflect"
)

// ContextDiff represents the changes between two context snapshots.
// It is designed to be serialized to JSON for partial updates on streaming clients.
type ContextDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentNodeID *string `json:"current_node_id,omitempty"`
	TurnCount     *int    `json:"turn_count,omitempty"`
	Active        *bool   `json:"active,omitempty"`

	// Values contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Values map[string]any `json:"values,omitempty"`

	// Appended contains the events recorded since the old snapshot.
	Appended []Event `json:"appended,omitempty"`
}

// Diff calculates the difference between oldCtx and newCtx.
// If oldCtx is nil, it returns a diff representing the entire newCtx (initial load).
func Diff(oldCtx, newCtx *SessionContext) *ContextDiff {
	if newCtx == nil {
		return nil
	}

	diff := &ContextDiff{
		SessionID: newCtx.Session.ID,
	}

	if oldCtx == nil || oldCtx.CurrentNodeID != newCtx.CurrentNodeID {
		diff.CurrentNodeID = &newCtx.CurrentNodeID
	}
	if oldCtx == nil || oldCtx.TurnCount != newCtx.TurnCount {
		diff.TurnCount = &newCtx.TurnCount
	}
	if oldCtx != nil && oldCtx.Session.Active != newCtx.Session.Active {
		diff.Active = &newCtx.Session.Active
	}

	diff.Values = diffValues(oldCtx, newCtx)
	diff.Appended = diffHistory(oldCtx, newCtx)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffValues(old *SessionContext, new *SessionContext) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Values {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Values {
		oldVal, exists := old.Values[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old.Values {
		if _, exists := new.Values[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffHistory relies on sequence numbers, so evictions do not confuse it.
func diffHistory(old *SessionContext, new *SessionContext) []Event {
	var since uint64
	if old != nil {
		since = old.Seq
	}
	var appended []Event
	for _, e := range new.History {
		if e.Seq > since {
			appended = append(appended, e)
		}
	}
	return appended
}

// IsEmpty checks if the diff contains any actionable changes.
// A nil diff is empty.
func (d *ContextDiff) IsEmpty() bool {
	if d == nil {
		return true
	}
	return d.CurrentNodeID == nil &&
		d.TurnCount == nil &&
		d.Active == nil &&
		len(d.Values) == 0 &&
		len(d.Appended) == 0
}
