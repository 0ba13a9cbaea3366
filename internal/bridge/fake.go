package bridge

import "github.com/tavira/kestrel/internal/model"

// FakePublisher records published states for test assertions.
type FakePublisher struct {
	// States contains each PublishStates argument in call order.
	States []model.RelayState

	// PublishError, if set, will be returned by PublishStates.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishStates records the states.
func (f *FakePublisher) PublishStates(states model.RelayState) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	copied := make(model.RelayState, len(states))
	for k, v := range states {
		copied[k] = v
	}
	f.States = append(f.States, copied)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
