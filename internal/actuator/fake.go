package actuator

import (
	"sync"

	"github.com/sweeney/optical-link/internal/hop"
)

// FakeActuator is a test double that records levels.
type FakeActuator struct {
	mu sync.Mutex

	// Levels contains every level set, in order.
	Levels hop.BitStream

	// SetError, if set, will be returned by SetLevel.
	SetError error

	// FailAfter, if > 0, makes SetLevel fail once this many levels were recorded.
	FailAfter int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeActuator creates a FakeActuator.
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{}
}

// SetLevel records the level.
func (f *FakeActuator) SetLevel(bit hop.Bit) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil && (f.FailAfter == 0 || len(f.Levels) >= f.FailAfter) {
		return f.SetError
	}
	f.Levels = append(f.Levels, bit)
	return nil
}

// Recorded returns a copy of the recorded levels.
func (f *FakeActuator) Recorded() hop.BitStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append(hop.BitStream(nil), f.Levels...)
}

// Close marks the actuator as closed.
func (f *FakeActuator) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset clears recorded levels.
func (f *FakeActuator) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Levels = nil
	f.Closed = false
	f.SetError = nil
	f.FailAfter = 0
}
