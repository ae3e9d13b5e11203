package mqtt

import (
	"sync"

	"github.com/sweeney/optical-link/internal/logic"
	"github.com/sweeney/optical-link/internal/receiver"
)

// FakePublisher records published output for test assertions.
// It is safe for concurrent use; read the fields only once publishing has stopped.
type FakePublisher struct {
	mu sync.Mutex

	// Messages contains all decoded messages that were published.
	Messages []receiver.DecodedMessage

	// Events contains all link events that were published.
	Events []logic.Event

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishMessage and PublishEvent.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishMessage records the message.
func (f *FakePublisher) PublishMessage(msg receiver.DecodedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, msg)
	return nil
}

// PublishEvent records the link event.
func (f *FakePublisher) PublishEvent(event logic.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Events = append(f.Events, event)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// MessageCount returns the number of published messages.
func (f *FakePublisher) MessageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Messages)
}

// SystemEventNames returns the Event field of every system event, in order.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.SystemEvents {
		out = append(out, e.Event)
	}
	return out
}

// Reset clears recorded output.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = nil
	f.Events = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
