// Package evaluator implements the per-minute schedule evaluation. It is a
// pure function of the current instant and a store snapshot; all I/O lives
// in the callers.
package evaluator

import (
	"sort"
	"time"

	"github.com/tavira/kestrel/internal/model"
)

// Conflict records two rules that both executed in the same minute with
// opposing actions. The rule later in ID order wins every key; the callers
// log the pairing distinctly rather than silently overwriting.
type Conflict struct {
	OverriddenRuleID string
	WinningRuleID    string
	Action           model.Action // the action that won
}

// Result is the minimal set of store changes one evaluation requires.
type Result struct {
	MinuteKey string

	// Writes covers every relay key present in the snapshot when at least
	// one rule triggered; empty means the tick has no work and Commit must
	// not touch the store.
	Writes model.RelayState

	// Stamps marks the rules that produced the writes. A rule with no work
	// to do is deliberately left unstamped so a later mismatch within the
	// same minute can still be caught.
	Stamps []model.RuleStamp

	Logs      []model.ScheduleLog
	Conflicts []Conflict
}

// Executed is the count of rules that produced a commit this tick.
func (r *Result) Executed() int {
	return len(r.Stamps)
}

// Evaluate compares now against the rule set and computes the writes, stamps
// and log entries required. now must already be resolved into the configured
// zone. Calling Evaluate twice with identical inputs produces identical
// results, and a rule whose LastExecutedMinute equals the derived minute key
// contributes nothing.
func Evaluate(now time.Time, snap *model.Snapshot) *Result {
	label := now.Format(model.ClockLayout)
	minuteKey := now.Format(model.MinuteKeyLayout)

	res := &Result{
		MinuteKey: minuteKey,
		Writes:    model.RelayState{},
	}

	// Rule ID order makes the same-minute conflict outcome deterministic:
	// when two executed rules disagree, the higher ID wins every key.
	rules := make([]model.ScheduleRule, len(snap.Rules))
	copy(rules, snap.Rules)
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	var lastExecuted *model.ScheduleRule
	for i := range rules {
		rule := rules[i]
		if rule.ID == "" || rule.Time == "" || !rule.Action.Valid() {
			continue // malformed rule that slipped past the write boundary
		}
		if rule.Time != label {
			continue
		}
		if rule.LastExecutedMinute == minuteKey {
			continue // already committed this minute bucket
		}

		desired := rule.Action.Desired()
		if !hasWork(snap, desired) {
			// Already satisfied: no writes and, critically, no stamp. A
			// toggle later in this same minute can re-create a mismatch
			// that a subsequent evaluation must still catch.
			continue
		}

		// Once triggered the rule acts on every known relay uniformly;
		// enablement only decided whether it had work to do.
		for key := range snap.Relays {
			res.Writes[key] = desired
		}

		if lastExecuted != nil && lastExecuted.Action != rule.Action {
			res.Conflicts = append(res.Conflicts, Conflict{
				OverriddenRuleID: lastExecuted.ID,
				WinningRuleID:    rule.ID,
				Action:           rule.Action,
			})
		}
		lastExecuted = &rules[i]

		res.Stamps = append(res.Stamps, model.RuleStamp{
			RuleID:    rule.ID,
			MinuteKey: minuteKey,
			RunAt:     now,
		})
		res.Logs = append(res.Logs, model.ScheduleLog{
			RuleID:     rule.ID,
			Relay:      model.RuleScopeAll,
			Time:       rule.Time,
			Action:     rule.Action,
			ExecutedAt: now,
		})
	}

	return res
}

// hasWork reports whether any schedule-enabled relay differs from desired.
func hasWork(snap *model.Snapshot, desired bool) bool {
	for key, enabled := range snap.ScheduleEnabled {
		if !enabled {
			continue
		}
		if snap.Relays[key] != desired {
			return true
		}
	}
	return false
}
