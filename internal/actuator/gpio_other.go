//go:build !linux

package actuator

import (
	"fmt"

	"github.com/sweeney/optical-link/internal/hop"
)

// GPIO is not available on non-Linux platforms.
type GPIO struct{}

// NewGPIO returns an error on non-Linux platforms.
func NewGPIO(chip string, offset int) (*GPIO, error) {
	return nil, fmt.Errorf("%w: gpio requires Linux", ErrUnavailable)
}

// SetLevel is not implemented on non-Linux platforms.
func (g *GPIO) SetLevel(bit hop.Bit) error {
	return ErrUnavailable
}

// Close is not implemented on non-Linux platforms.
func (g *GPIO) Close() error {
	return nil
}
