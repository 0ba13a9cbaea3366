package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tavira/kestrel/internal/model"
)

func seeded() *Memory {
	m := NewMemory()
	m.Seed(
		model.RelayState{"relay1": false, "relay2": true},
		model.ScheduleEnabled{"relay1": true, "relay2": false},
		[]model.ScheduleRule{
			{ID: "r1", Relay: model.RuleScopeAll, Time: "07:00", Action: model.ActionOn, CreatedAt: 10},
			{ID: "r2", Relay: model.RuleScopeAll, Time: "22:00", Action: model.ActionOff, CreatedAt: 20},
		},
	)
	return m
}

func TestMemorySnapshotIsIsolated(t *testing.T) {
	m := seeded()

	snap, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	// Mutating the snapshot must not leak back into the store.
	snap.Relays["relay1"] = true
	snap.ScheduleEnabled["relay2"] = true
	snap.Rules[0].LastExecutedMinute = "202501010700"

	if m.Relay("relay1") {
		t.Error("snapshot mutation leaked into relay state")
	}
	if r1, _ := m.Rule("r1"); r1.LastExecutedMinute != "" {
		t.Error("snapshot mutation leaked into rule state")
	}
}

func TestMemoryApplyWritesStatesAndStamps(t *testing.T) {
	m := seeded()
	runAt := time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC)

	err := m.Apply(context.Background(),
		model.RelayState{"relay1": true, "relay2": true},
		[]model.RuleStamp{{RuleID: "r1", MinuteKey: "202501010700", RunAt: runAt}},
	)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !m.Relay("relay1") || !m.Relay("relay2") {
		t.Error("relay writes not applied")
	}
	r1, _ := m.Rule("r1")
	if r1.LastExecutedMinute != "202501010700" {
		t.Errorf("LastExecutedMinute = %q, want 202501010700", r1.LastExecutedMinute)
	}
	if r1.LastRunAt != runAt.Format(time.RFC3339) {
		t.Errorf("LastRunAt = %q, want %q", r1.LastRunAt, runAt.Format(time.RFC3339))
	}
	r2, _ := m.Rule("r2")
	if r2.LastExecutedMinute != "" {
		t.Errorf("unstamped rule mutated: %q", r2.LastExecutedMinute)
	}
}

func TestMemoryApplyInjectedFailureIsAllOrNothing(t *testing.T) {
	m := seeded()
	m.ApplyErr = errors.New("boom")

	err := m.Apply(context.Background(),
		model.RelayState{"relay1": true},
		[]model.RuleStamp{{RuleID: "r1", MinuteKey: "202501010700", RunAt: time.Now()}},
	)
	if err == nil {
		t.Fatal("Apply() error = nil, want injected failure")
	}
	if m.Relay("relay1") {
		t.Error("failed Apply mutated relay state")
	}
	if r1, _ := m.Rule("r1"); r1.LastExecutedMinute != "" {
		t.Error("failed Apply stamped rule")
	}
	if m.ApplyCalls != 1 {
		t.Errorf("ApplyCalls = %d, want 1", m.ApplyCalls)
	}
}

func TestMemoryApplySkipsDeletedRule(t *testing.T) {
	m := seeded()
	if err := m.DeleteRule(context.Background(), "r1"); err != nil {
		t.Fatalf("DeleteRule() error = %v", err)
	}

	err := m.Apply(context.Background(),
		model.RelayState{"relay1": true},
		[]model.RuleStamp{{RuleID: "r1", MinuteKey: "202501010700", RunAt: time.Now()}},
	)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !m.Relay("relay1") {
		t.Error("relay write dropped alongside the deleted rule's stamp")
	}
}

func TestMemoryListRulesNewestFirst(t *testing.T) {
	m := seeded()

	rules, err := m.ListRules(context.Background())
	if err != nil {
		t.Fatalf("ListRules() error = %v", err)
	}
	if len(rules) != 2 || rules[0].ID != "r2" || rules[1].ID != "r1" {
		t.Errorf("ListRules() = %v, want r2 before r1 (createdAt desc)", rules)
	}
}

func TestMemoryUpdateRulePreservesIdentityAndMarker(t *testing.T) {
	m := seeded()
	if err := m.Apply(context.Background(), nil, []model.RuleStamp{
		{RuleID: "r1", MinuteKey: "202501010700", RunAt: time.Now()},
	}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if err := m.UpdateRule(context.Background(), "r1", "08:30", model.ActionOff); err != nil {
		t.Fatalf("UpdateRule() error = %v", err)
	}

	r1, _ := m.Rule("r1")
	if r1.Time != "08:30" || r1.Action != model.ActionOff {
		t.Errorf("rule = %+v, want time 08:30 action OFF", r1)
	}
	if r1.CreatedAt != 10 {
		t.Errorf("CreatedAt = %d, want unchanged 10", r1.CreatedAt)
	}
	if r1.LastExecutedMinute != "202501010700" {
		t.Errorf("LastExecutedMinute = %q, want preserved", r1.LastExecutedMinute)
	}
}

func TestMemoryUpdateMissingRule(t *testing.T) {
	m := seeded()
	if err := m.UpdateRule(context.Background(), "nope", "08:00", model.ActionOn); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateRule() error = %v, want ErrNotFound", err)
	}
}

func TestMemorySetRelayCoupling(t *testing.T) {
	m := seeded()

	if err := m.SetRelay(context.Background(), "relay1", true, true); err != nil {
		t.Fatalf("SetRelay() error = %v", err)
	}
	snap, _ := m.Snapshot(context.Background())
	if !snap.Relays["relay1"] || !snap.ScheduleEnabled["relay1"] {
		t.Errorf("coupled SetRelay: relays=%v enabled=%v, want both true", snap.Relays["relay1"], snap.ScheduleEnabled["relay1"])
	}

	if err := m.SetRelay(context.Background(), "relay2", false, false); err != nil {
		t.Fatalf("SetRelay() error = %v", err)
	}
	snap, _ = m.Snapshot(context.Background())
	if snap.Relays["relay2"] {
		t.Error("uncoupled SetRelay did not write state")
	}
	if snap.ScheduleEnabled["relay2"] {
		t.Error("uncoupled SetRelay touched the schedule-enabled flag")
	}
}

func TestMemoryPushToken(t *testing.T) {
	m := NewMemory()

	if _, err := m.PushToken(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("PushToken() error = %v, want ErrNotFound", err)
	}

	m.SetToken("ExponentPushToken[abc]")
	token, err := m.PushToken(context.Background())
	if err != nil {
		t.Fatalf("PushToken() error = %v", err)
	}
	if token != "ExponentPushToken[abc]" {
		t.Errorf("PushToken() = %q", token)
	}
}

func TestMemoryListLogsNewestFirstWithLimit(t *testing.T) {
	m := NewMemory()
	for i, ruleID := range []string{"a", "b", "c"} {
		entry := model.ScheduleLog{
			RuleID: ruleID, Relay: model.RuleScopeAll, Time: "07:00", Action: model.ActionOn,
			ExecutedAt: time.Date(2025, 1, 1, 7, 0, i, 0, time.UTC),
		}
		if err := m.AppendLog(context.Background(), entry); err != nil {
			t.Fatalf("AppendLog() error = %v", err)
		}
	}

	logs, err := m.ListLogs(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if len(logs) != 2 || logs[0].RuleID != "c" || logs[1].RuleID != "b" {
		t.Errorf("ListLogs() = %v, want [c b]", logs)
	}
}
