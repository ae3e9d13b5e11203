// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/optical-link/internal/logic"
	"github.com/sweeney/optical-link/internal/receiver"
)

// Topics are the MQTT topics the daemon publishes to.
type Topics struct {
	Messages string // decoded messages
	Events   string // link state machine events
	System   string // lifecycle events and status snapshots
}

// TopicsFor derives the topic set from a prefix.
func TopicsFor(prefix string) Topics {
	return Topics{
		Messages: prefix + "/link/messages",
		Events:   prefix + "/link/events",
		System:   prefix + "/link/system",
	}
}

// Publisher publishes link output to MQTT.
type Publisher interface {
	// PublishMessage sends a decoded message to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishMessage(msg receiver.DecodedMessage) error

	// PublishEvent sends a link state machine event.
	PublishEvent(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// MessagePayload is the MQTT payload for a decoded message.
type MessagePayload struct {
	Message MessageInner `json:"message"`
}

// MessageInner contains the decoded message details.
type MessageInner struct {
	ID         string  `json:"id"`
	Timestamp  string  `json:"timestamp"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// FormatMessagePayload creates the JSON payload for a decoded message.
func FormatMessagePayload(msg receiver.DecodedMessage) ([]byte, error) {
	return json.Marshal(MessagePayload{
		Message: MessageInner{
			ID:         msg.ID,
			Timestamp:  msg.ReceivedAt.UTC().Format(time.RFC3339),
			Text:       msg.Text,
			Confidence: msg.Confidence,
		},
	})
}

// EventPayload is the MQTT payload for a link event.
type EventPayload struct {
	Link EventInner `json:"link"`
}

// EventInner contains the link event details.
type EventInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	From      string `json:"from"`
	To        string `json:"to"`
	Bits      int    `json:"bits,omitempty"`
}

// FormatEventPayload creates the JSON payload for a link event.
func FormatEventPayload(event logic.Event) ([]byte, error) {
	return json.Marshal(EventPayload{
		Link: EventInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			From:      string(event.From),
			To:        string(event.To),
			Bits:      len(event.Bits),
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishMessage(receiver.DecodedMessage) error { return nil }
func (NopPublisher) PublishEvent(logic.Event) error               { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error              { return nil }
func (NopPublisher) Close() error                                 { return nil }
func (NopPublisher) IsConnected() bool                            { return false }
