package models

import "time"

// ProtectionStateKind is the coarse protection mode.
type ProtectionStateKind string

const (
	ProtectionActive   ProtectionStateKind = "active"
	ProtectionPaused   ProtectionStateKind = "paused"
	ProtectionDisabled ProtectionStateKind = "disabled"
)

// ProtectionState models `Active | Paused(until) | Disabled`. A
// Paused state with a zero Until is an indefinite pause.
type ProtectionState struct {
	Kind  ProtectionStateKind `json:"state"`
	Until time.Time           `json:"pause_until,omitempty"`
}

// Resolve returns the effective state as of now: a Paused(until) whose
// deadline has passed reads back as Active.
func (p ProtectionState) Resolve(now time.Time) ProtectionState {
	if p.Kind == ProtectionPaused && !p.Until.IsZero() && !now.Before(p.Until) {
		return ProtectionState{Kind: ProtectionActive}
	}
	return p
}

// IsFiltering reports whether the proxy should run the full pipeline
// (as opposed to passing every request through).
func (p ProtectionState) IsFiltering(now time.Time) bool {
	return p.Resolve(now).Kind == ProtectionActive
}
