package luma

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LineSource reads one sample per line from a text stream, for example the
// output of an external camera helper piped to stdin. Blank lines and lines
// starting with '#' are skipped. A trailing comma-separated column is ignored,
// so "123.4,..." CSV rows work too.
type LineSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewLineSource wraps r. If r is an io.Closer it is closed by Close.
func NewLineSource(r io.Reader) *LineSource {
	s := &LineSource{scanner: bufio.NewScanner(r)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next returns the next sample or io.EOF.
func (s *LineSource) Next() (float64, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if i := strings.IndexByte(text, ','); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", s.line, err)
		}
		return v, nil
	}
	if err := s.scanner.Err(); err != nil {
		return 0, fmt.Errorf("read samples: %w", err)
	}
	return 0, io.EOF
}

// Close closes the underlying reader if it is closable.
func (s *LineSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
