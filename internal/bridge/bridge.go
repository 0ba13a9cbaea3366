// Package bridge publishes committed relay states to MQTT, the transport
// the relay hardware listens on. Publishing is best-effort: a broker outage
// never affects a commit, the store stays the source of truth.
package bridge

import (
	"encoding/json"
	"time"

	"github.com/tavira/kestrel/internal/model"
)

// TopicPrefix is the topic root for relay state messages; the relay ID is
// appended per message.
const TopicPrefix = "kestrel/relays/"

// Publisher publishes relay state changes to the broker.
type Publisher interface {
	// PublishStates sends one retained message per relay key.
	// Returns error if publishing fails (must not crash the process).
	PublishStates(states model.RelayState) error

	// Close disconnects from the broker.
	Close() error
}

// Payload is the per-relay message body.
type Payload struct {
	Relay     string `json:"relay"`
	State     string `json:"state"` // "ON" | "OFF"
	Timestamp string `json:"timestamp"`
}

// FormatPayload creates the JSON payload for one relay state.
func FormatPayload(relay string, on bool, at time.Time) ([]byte, error) {
	state := string(model.ActionOff)
	if on {
		state = string(model.ActionOn)
	}
	return json.Marshal(Payload{
		Relay:     relay,
		State:     state,
		Timestamp: at.UTC().Format(time.RFC3339),
	})
}
