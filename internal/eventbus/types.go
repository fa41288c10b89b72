package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of monitoring event on the bus.
type EventType string

const (
	// EventTypeNodeSummaryUpdated is published after a node summary is written.
	EventTypeNodeSummaryUpdated EventType = "summary.node.updated"
	// EventTypeClusterSummaryUpdated is published after a cluster summary is written.
	EventTypeClusterSummaryUpdated EventType = "summary.cluster.updated"
	// EventTypeSystemSummaryUpdated is published after a system summary is written.
	EventTypeSystemSummaryUpdated EventType = "summary.system.updated"
	// EventTypeNodeUp is published when a node transitions back to UP.
	EventTypeNodeUp EventType = "node.up"
	// EventTypeNodeDown is published when a node's stats go stale.
	EventTypeNodeDown EventType = "node.down"
)

// Event is the envelope carried on the bus. Payload is event-type specific.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// NewEvent creates an event with a fresh id and the current timestamp.
func NewEvent(eventType EventType, source string, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Marshal serializes the event for transport.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes an event received from the bus.
func UnmarshalEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// EventHandler processes events delivered by a subscription.
type EventHandler interface {
	Handle(ctx context.Context, event *Event) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *Event) error

// Handle calls f(ctx, event).
func (f EventHandlerFunc) Handle(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Publisher publishes events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	PublishAsync(ctx context.Context, event *Event) error
}

// Subscriber receives events from the bus.
type Subscriber interface {
	Subscribe(ctx context.Context, eventType EventType, handler EventHandler) error
}

// EventBus combines publishing and subscribing with lifecycle management.
type EventBus interface {
	Publisher
	Subscriber
	Close() error
}
