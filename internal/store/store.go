// Package store defines the shared-state capability the rest of the service
// is written against. The production backend is MongoDB (internal/database);
// the in-memory implementation here backs tests and local development.
package store

import (
	"context"
	"errors"

	"github.com/tavira/kestrel/internal/model"
)

// ErrNotFound is returned when a rule, relay or token does not exist.
var ErrNotFound = errors.New("not found")

// Store is the injected shared-state backend. The service layer never holds
// a lock across the read-evaluate-write span; correctness rests on Snapshot
// being internally consistent and Apply being all-or-nothing.
type Store interface {
	// Snapshot reads the full rule set and both relay maps as one logical
	// snapshot: no intervening write may be visible between the maps.
	Snapshot(ctx context.Context) (*model.Snapshot, error)

	// Apply performs one atomic multi-key update covering every relay write
	// and every rule stamp. Partial application must never be observable;
	// on error nothing is persisted.
	Apply(ctx context.Context, writes model.RelayState, stamps []model.RuleStamp) error

	// AppendLog appends one audit entry. Failures are independent of Apply
	// and never roll it back.
	AppendLog(ctx context.Context, entry model.ScheduleLog) error

	// ListRules returns all rules ordered by CreatedAt descending.
	ListRules(ctx context.Context) ([]model.ScheduleRule, error)
	CreateRule(ctx context.Context, rule *model.ScheduleRule) error
	// UpdateRule mutates time and action only; ID and CreatedAt are
	// immutable after creation.
	UpdateRule(ctx context.Context, id, clock string, action model.Action) error
	DeleteRule(ctx context.Context, id string) error

	// SetRelay writes one relay's state; when coupleEnabled is set the
	// schedule-enabled flag is written to the same value in the same
	// atomic update.
	SetRelay(ctx context.Context, id string, on bool, coupleEnabled bool) error

	// PushToken returns the single registered delivery token, or
	// ErrNotFound when none is registered.
	PushToken(ctx context.Context) (string, error)

	ListLogs(ctx context.Context, limit int) ([]model.ScheduleLog, error)

	// Ping reports backend reachability for health endpoints.
	Ping(ctx context.Context) error
}
