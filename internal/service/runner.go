package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tavira/kestrel/internal/bridge"
	"github.com/tavira/kestrel/internal/evaluator"
	"github.com/tavira/kestrel/internal/model"
	"github.com/tavira/kestrel/internal/notify"
	"github.com/tavira/kestrel/internal/store"
	"github.com/tavira/kestrel/internal/telemetry"
)

// Runner drives one evaluation cycle: snapshot, evaluate, commit, then the
// best-effort side effects (device bridge, push notification). It holds no
// lock across the cycle; overlapping runs are safe because the persisted
// minute-key stamp is the only double-execution guard and relay writes are
// idempotent.
type Runner struct {
	store     store.Store
	notifier  notify.Notifier
	publisher bridge.Publisher // nil when the bridge is disabled
	loc       *time.Location
}

// NewRunner creates a runner. publisher may be nil.
func NewRunner(st store.Store, notifier notify.Notifier, publisher bridge.Publisher, loc *time.Location) *Runner {
	return &Runner{
		store:     st,
		notifier:  notifier,
		publisher: publisher,
		loc:       loc,
	}
}

// RunResult is the outcome reported to the trigger surfaces.
type RunResult struct {
	Executed int `json:"executed"`
}

// Run evaluates against the real clock in the configured zone.
func (r *Runner) Run(ctx context.Context) (RunResult, error) {
	return r.runAt(ctx, time.Now().In(r.loc))
}

// RunAtClock evaluates as if it were today at the given normalized HH:MM in
// the configured zone, seconds and sub-seconds zeroed. Used to test rule
// matching without waiting for wall-clock alignment.
func (r *Runner) RunAtClock(ctx context.Context, clock string) (RunResult, error) {
	parsed, err := time.ParseInLocation(model.ClockLayout, clock, r.loc)
	if err != nil {
		return RunResult{}, fmt.Errorf("invalid time override: %w", err)
	}
	now := time.Now().In(r.loc)
	override := time.Date(now.Year(), now.Month(), now.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, r.loc)
	return r.runAt(ctx, override)
}

func (r *Runner) runAt(ctx context.Context, now time.Time) (RunResult, error) {
	correlationID := uuid.New().String()
	telemetry.EvaluationTicks.Inc()

	snap, err := r.store.Snapshot(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to read store snapshot: %w", err)
	}

	result := evaluator.Evaluate(now, snap)

	for _, c := range result.Conflicts {
		telemetry.RuleConflicts.Inc()
		slog.Warn("Conflicting schedule rules in the same minute",
			"correlation_id", correlationID,
			"minute_key", result.MinuteKey,
			"overridden_rule_id", c.OverriddenRuleID,
			"winning_rule_id", c.WinningRuleID,
			"winning_action", c.Action,
		)
	}

	// Idle minutes must not generate write traffic.
	if len(result.Writes) == 0 {
		slog.Debug("No matching schedules to run this minute",
			"correlation_id", correlationID,
			"minute_key", result.MinuteKey,
		)
		return RunResult{Executed: 0}, nil
	}

	if err := r.store.Apply(ctx, result.Writes, result.Stamps); err != nil {
		telemetry.CommitFailures.Inc()
		// No stamp was persisted, so the next run in this minute retries.
		return RunResult{}, fmt.Errorf("failed to commit evaluation: %w", err)
	}

	for _, entry := range result.Logs {
		if err := r.store.AppendLog(ctx, entry); err != nil {
			slog.Error("Failed to append schedule log",
				"correlation_id", correlationID,
				"rule_id", entry.RuleID,
				"error", err,
			)
		}
	}

	executed := result.Executed()
	telemetry.RulesExecuted.Add(float64(executed))
	slog.Info("Executed schedule rules",
		"correlation_id", correlationID,
		"minute_key", result.MinuteKey,
		"executed", executed,
	)

	if r.publisher != nil {
		if err := r.publisher.PublishStates(result.Writes); err != nil {
			slog.Warn("Failed to publish relay states to bridge",
				"correlation_id", correlationID,
				"error", err,
			)
		}
	}

	r.notifier.Notify(ctx, summarize(result.Logs))

	return RunResult{Executed: executed}, nil
}

// summarize joins each executed rule as "<scope> <action>".
func summarize(logs []model.ScheduleLog) string {
	parts := make([]string, 0, len(logs))
	for _, entry := range logs {
		parts = append(parts, entry.Relay+" "+string(entry.Action))
	}
	return strings.Join(parts, ", ")
}
