package luma

import (
	"errors"
	"io"
)

// FakeSource is a test double that returns scripted samples.
type FakeSource struct {
	// Samples contains scripted luminance values to return.
	// Each call to Next() consumes the next sample.
	Samples []float64

	// Repeat makes the source return the last sample forever instead of io.EOF.
	Repeat bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Next()
	ReadError error
}

// NewFakeSource creates a FakeSource with the given samples.
func NewFakeSource(samples []float64) *FakeSource {
	return &FakeSource{Samples: samples}
}

// Next returns the next scripted sample.
func (f *FakeSource) Next() (float64, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}

	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	if f.index >= len(f.Samples) {
		if !f.Repeat {
			return 0, io.EOF
		}
		return f.Samples[len(f.Samples)-1], nil
	}

	v := f.Samples[f.index]
	f.index++
	return v, nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the source to the beginning of samples.
func (f *FakeSource) Reset() {
	f.index = 0
	f.Closed = false
}
