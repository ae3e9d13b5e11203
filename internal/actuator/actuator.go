// Package actuator drives the light-emitting output of a transmitter.
// The real implementations use a Linux GPIO line or a serial-attached LED driver.
// The screen implementation is the visual fallback; the fake allows testing without hardware.
package actuator

import (
	"errors"
	"log"
	"sync"

	"github.com/sweeney/optical-link/internal/hop"
)

// Actuator switches the optical output.
type Actuator interface {
	// SetLevel turns the output on for hop.One and off for hop.Zero.
	SetLevel(bit hop.Bit) error

	// Close darkens the output and releases resources.
	Close() error
}

// ErrUnavailable is returned when an output cannot be driven on this platform.
var ErrUnavailable = errors.New("actuator: unavailable")

// Fallback drives Primary until it fails once, then switches to Secondary for good.
type Fallback struct {
	Primary   Actuator
	Secondary Actuator

	mu     sync.Mutex
	failed bool
}

// WithFallback wraps primary so a hardware error degrades to secondary instead of aborting.
func WithFallback(primary, secondary Actuator) *Fallback {
	return &Fallback{Primary: primary, Secondary: secondary}
}

// SetLevel drives the active output.
func (f *Fallback) SetLevel(bit hop.Bit) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.failed {
		err := f.Primary.SetLevel(bit)
		if err == nil {
			return nil
		}
		log.Printf("actuator: primary output failed, falling back: %v", err)
		f.failed = true
	}
	return f.Secondary.SetLevel(bit)
}

// Degraded reports whether the fallback output is in use.
func (f *Fallback) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

// Close closes both outputs.
func (f *Fallback) Close() error {
	err1 := f.Primary.Close()
	err2 := f.Secondary.Close()
	return errors.Join(err1, err2)
}
