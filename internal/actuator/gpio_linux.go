//go:build linux

package actuator

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/optical-link/internal/hop"
)

// GPIO drives an LED from a Linux GPIO character device line.
type GPIO struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewGPIO requests offset on chip as an output, initially dark.
func NewGPIO(chip string, offset int) (*GPIO, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	l, err := c.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request line %d: %w", offset, err)
	}

	return &GPIO{chip: c, line: l}, nil
}

// SetLevel drives the line high for hop.One and low for hop.Zero.
func (g *GPIO) SetLevel(bit hop.Bit) error {
	if err := g.line.SetValue(int(bit)); err != nil {
		return fmt.Errorf("set line: %w", err)
	}
	return nil
}

// Close darkens the LED and returns the line to input with pull-down
// (matching Pi boot defaults) before releasing it.
func (g *GPIO) Close() error {
	var errs []error

	if g.line != nil {
		if err := g.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("darken line: %w", err))
		}
		if err := g.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
		}
		if err := g.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
