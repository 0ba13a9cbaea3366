package model

// RelayState maps relay identifiers (e.g. "relay1".."relay4") to their
// on/off state. A key absent from the store is treated as off.
type RelayState map[string]bool

// ScheduleEnabled maps relay identifiers to whether the relay participates
// in schedule-driven changes. Keyed by the same identifier space as
// RelayState but mutated independently: user toggles write it, the
// evaluator only reads it.
type ScheduleEnabled map[string]bool

// Snapshot is a point-in-time view of the shared store: the full rule set
// plus both relay maps, read together so the evaluator never acts on
// enablement that is stale relative to the states.
type Snapshot struct {
	Rules           []ScheduleRule
	Relays          RelayState
	ScheduleEnabled ScheduleEnabled
}

// Clone returns a deep copy. The evaluator treats snapshots as immutable;
// callers that hand a snapshot to concurrent readers copy it first.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Rules:           make([]ScheduleRule, len(s.Rules)),
		Relays:          make(RelayState, len(s.Relays)),
		ScheduleEnabled: make(ScheduleEnabled, len(s.ScheduleEnabled)),
	}
	copy(out.Rules, s.Rules)
	for k, v := range s.Relays {
		out.Relays[k] = v
	}
	for k, v := range s.ScheduleEnabled {
		out.ScheduleEnabled[k] = v
	}
	return out
}

// RelayInfo combines both per-relay flags for API responses.
type RelayInfo struct {
	ID              string `json:"id"`
	On              bool   `json:"on"`
	ScheduleEnabled bool   `json:"scheduleEnabled"`
}
