package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tavira/kestrel/internal/model"
)

// Memory is an in-process Store used by tests and local development. The
// error fields inject failures at specific operations; an injected Apply
// failure happens before any mutation so the all-or-nothing contract holds.
type Memory struct {
	mu      sync.RWMutex
	rules   map[string]model.ScheduleRule
	relays  map[string]bool
	enabled map[string]bool
	logs    []model.ScheduleLog
	token   string

	SnapshotErr error
	ApplyErr    error
	AppendErr   error

	// ApplyCalls counts Apply invocations, including failed ones.
	ApplyCalls int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rules:   make(map[string]model.ScheduleRule),
		relays:  make(map[string]bool),
		enabled: make(map[string]bool),
	}
}

// Seed replaces the relay maps and rule set wholesale.
func (m *Memory) Seed(relays model.RelayState, enabled model.ScheduleEnabled, rules []model.ScheduleRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relays = make(map[string]bool, len(relays))
	for k, v := range relays {
		m.relays[k] = v
	}
	m.enabled = make(map[string]bool, len(enabled))
	for k, v := range enabled {
		m.enabled[k] = v
	}
	m.rules = make(map[string]model.ScheduleRule, len(rules))
	for _, r := range rules {
		m.rules[r.ID] = r
	}
}

// SetToken registers the push delivery token.
func (m *Memory) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

func (m *Memory) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	if m.SnapshotErr != nil {
		return nil, m.SnapshotErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &model.Snapshot{
		Rules:           make([]model.ScheduleRule, 0, len(m.rules)),
		Relays:          make(model.RelayState, len(m.relays)),
		ScheduleEnabled: make(model.ScheduleEnabled, len(m.enabled)),
	}
	for _, r := range m.rules {
		snap.Rules = append(snap.Rules, r)
	}
	sort.Slice(snap.Rules, func(i, j int) bool { return snap.Rules[i].ID < snap.Rules[j].ID })
	for k, v := range m.relays {
		snap.Relays[k] = v
	}
	for k, v := range m.enabled {
		snap.ScheduleEnabled[k] = v
	}
	return snap, nil
}

func (m *Memory) Apply(ctx context.Context, writes model.RelayState, stamps []model.RuleStamp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ApplyCalls++
	if m.ApplyErr != nil {
		return m.ApplyErr
	}
	for k, v := range writes {
		m.relays[k] = v
	}
	for _, s := range stamps {
		rule, ok := m.rules[s.RuleID]
		if !ok {
			continue // rule deleted between snapshot and commit
		}
		rule.LastExecutedMinute = s.MinuteKey
		rule.LastRunAt = s.RunAt.Format(time.RFC3339)
		m.rules[s.RuleID] = rule
	}
	return nil
}

func (m *Memory) AppendLog(ctx context.Context, entry model.ScheduleLog) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = primitive.NewObjectID()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *Memory) ListRules(ctx context.Context) ([]model.ScheduleRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ScheduleRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (m *Memory) CreateRule(ctx context.Context, rule *model.ScheduleRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = *rule
	return nil
}

func (m *Memory) UpdateRule(ctx context.Context, id, clock string, action model.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok {
		return ErrNotFound
	}
	rule.Time = clock
	rule.Action = action
	m.rules[id] = rule
	return nil
}

func (m *Memory) DeleteRule(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return ErrNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *Memory) SetRelay(ctx context.Context, id string, on bool, coupleEnabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relays[id] = on
	if coupleEnabled {
		m.enabled[id] = on
	}
	return nil
}

func (m *Memory) PushToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", ErrNotFound
	}
	return m.token, nil
}

func (m *Memory) ListLogs(ctx context.Context, limit int) ([]model.ScheduleLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ScheduleLog, 0, len(m.logs))
	for i := len(m.logs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.logs[i])
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

// Rule returns a rule by ID for test assertions.
func (m *Memory) Rule(id string) (model.ScheduleRule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	return r, ok
}

// Relay returns one relay's state for test assertions.
func (m *Memory) Relay(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.relays[id]
}

// Logs returns a copy of the audit log for test assertions.
func (m *Memory) Logs() []model.ScheduleLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ScheduleLog, len(m.logs))
	copy(out, m.logs)
	return out
}
