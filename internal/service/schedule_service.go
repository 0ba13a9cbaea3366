package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tavira/kestrel/internal/model"
	"github.com/tavira/kestrel/internal/store"
)

// ScheduleService owns rule lifecycle: validation happens here, at the write
// boundary, so the evaluator only ever sees well-formed rules.
type ScheduleService struct {
	store store.Store
}

// NewScheduleService creates a new schedule service.
func NewScheduleService(st store.Store) *ScheduleService {
	return &ScheduleService{store: st}
}

// List returns all rules, newest first.
func (s *ScheduleService) List(ctx context.Context) ([]model.ScheduleRule, error) {
	return s.store.ListRules(ctx)
}

// Create validates and persists a new rule, assigning its ID and CreatedAt.
func (s *ScheduleService) Create(ctx context.Context, clock string, action model.Action) (*model.ScheduleRule, error) {
	rule := &model.ScheduleRule{
		ID:        uuid.New().String(),
		Relay:     model.RuleScopeAll,
		Time:      clock,
		Action:    action,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to persist schedule: %w", err)
	}
	return rule, nil
}

// Update validates and applies an edit. ID and CreatedAt are immutable; the
// execution marker is left alone so an edit cannot re-arm a rule within a
// minute it already ran in.
func (s *ScheduleService) Update(ctx context.Context, id, clock string, action model.Action) error {
	probe := model.ScheduleRule{ID: id, Relay: model.RuleScopeAll, Time: clock, Action: action}
	if err := probe.Validate(); err != nil {
		return err
	}
	return s.store.UpdateRule(ctx, id, probe.Time, probe.Action)
}

// Delete removes a rule permanently. IDs are never reused.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteRule(ctx, id)
}

// Logs returns the most recent audit entries.
func (s *ScheduleService) Logs(ctx context.Context, limit int) ([]model.ScheduleLog, error) {
	return s.store.ListLogs(ctx, limit)
}
