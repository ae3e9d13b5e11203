package actuator

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"

	"github.com/sweeney/optical-link/internal/hop"
)

// Serial drives an LED through a microcontroller on a serial port.
// Each level change is written as a single ASCII '1' or '0'.
type Serial struct {
	port io.WriteCloser
}

// NewSerial opens name at baud.
func NewSerial(name string, baud int) (*Serial, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	return &Serial{port: p}, nil
}

// SetLevel writes the level byte.
func (s *Serial) SetLevel(bit hop.Bit) error {
	b := byte('0')
	if bit == hop.One {
		b = '1'
	}
	if _, err := s.port.Write([]byte{b}); err != nil {
		return fmt.Errorf("write serial: %w", err)
	}
	return nil
}

// Close darkens the LED and closes the port.
func (s *Serial) Close() error {
	_, werr := s.port.Write([]byte{'0'})
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("close serial: %w", err)
	}
	if werr != nil {
		return fmt.Errorf("darken serial: %w", werr)
	}
	return nil
}
