package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tavira/kestrel/internal/bridge"
	"github.com/tavira/kestrel/internal/model"
	"github.com/tavira/kestrel/internal/store"
)

// RelayService handles user-driven relay state changes.
type RelayService struct {
	store     store.Store
	publisher bridge.Publisher // nil when the bridge is disabled

	// coupleScheduleToggle is the named policy from the product: toggling a
	// relay also sets its schedule-enabled flag to the new state, in the
	// same atomic write.
	coupleScheduleToggle bool
}

// NewRelayService creates a relay service. publisher may be nil.
func NewRelayService(st store.Store, publisher bridge.Publisher, coupleScheduleToggle bool) *RelayService {
	return &RelayService{
		store:                st,
		publisher:            publisher,
		coupleScheduleToggle: coupleScheduleToggle,
	}
}

// List returns every known relay with both flags, sorted by ID.
func (s *RelayService) List(ctx context.Context) ([]model.RelayInfo, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read relays: %w", err)
	}
	out := make([]model.RelayInfo, 0, len(snap.Relays))
	for id, on := range snap.Relays {
		out = append(out, model.RelayInfo{
			ID:              id,
			On:              on,
			ScheduleEnabled: snap.ScheduleEnabled[id],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Toggle flips one relay and returns its new state.
func (s *RelayService) Toggle(ctx context.Context, id string) (bool, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read relay state: %w", err)
	}
	if _, ok := snap.Relays[id]; !ok {
		return false, store.ErrNotFound
	}

	next := !snap.Relays[id]
	if err := s.store.SetRelay(ctx, id, next, s.coupleScheduleToggle); err != nil {
		return false, fmt.Errorf("failed to write relay state: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishStates(model.RelayState{id: next}); err != nil {
			slog.Warn("Failed to publish relay toggle to bridge", "relay", id, "error", err)
		}
	}

	return next, nil
}
