package bridge

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tavira/kestrel/internal/model"
)

// PahoPublisher publishes to an actual MQTT broker.
type PahoPublisher struct {
	client paho.Client
}

// NewPahoPublisher creates a publisher connected to the given broker.
func NewPahoPublisher(broker, clientID string) (*PahoPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &PahoPublisher{client: client}, nil
}

// PublishStates sends one retained QoS 1 message per relay so hardware that
// reconnects sees the last committed state.
func (p *PahoPublisher) PublishStates(states model.RelayState) error {
	now := time.Now()
	for relay, on := range states {
		payload, err := FormatPayload(relay, on, now)
		if err != nil {
			return fmt.Errorf("format payload: %w", err)
		}

		token := p.client.Publish(TopicPrefix+relay, 1, true, payload)
		if !token.WaitTimeout(5 * time.Second) {
			return fmt.Errorf("publish timeout for %s", relay)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", relay, err)
		}
	}
	return nil
}

// Close disconnects from the broker.
func (p *PahoPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
