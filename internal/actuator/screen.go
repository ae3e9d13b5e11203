package actuator

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sweeney/optical-link/internal/hop"
)

// Screen flashes a block of the terminal. It is the visual fallback when no
// light source can be driven: point the receiving camera at the display.
type Screen struct {
	mu    sync.Mutex
	w     io.Writer
	width int
}

// NewScreen writes frames to w using a block width characters wide.
func NewScreen(w io.Writer, width int) *Screen {
	if width <= 0 {
		width = 40
	}
	return &Screen{w: w, width: width}
}

// SetLevel redraws the block lit or dark.
func (s *Screen) SetLevel(bit hop.Bit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fill := " "
	if bit == hop.One {
		fill = "█"
	}
	if _, err := fmt.Fprintf(s.w, "\r%s", strings.Repeat(fill, s.width)); err != nil {
		return fmt.Errorf("draw screen: %w", err)
	}
	return nil
}

// Close darkens the block and ends the line.
func (s *Screen) Close() error {
	if err := s.SetLevel(hop.Zero); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w)
	return err
}
