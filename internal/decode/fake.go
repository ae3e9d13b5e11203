package decode

import (
	"context"
	"sync"

	"github.com/sweeney/optical-link/internal/hop"
)

// FakeDecoder is a test double that returns a scripted result.
type FakeDecoder struct {
	mu sync.Mutex

	// Result is returned by every call unless Err is set.
	Result Result

	// Err, if set, is returned by Reconstruct.
	Err error

	// Release, if set, blocks Reconstruct until it is closed or ctx is done.
	Release chan struct{}

	// Calls records the inputs of every call.
	Calls []Call
}

// Call is one recorded Reconstruct invocation.
type Call struct {
	Bits      hop.BitStream
	BitRateHz float64
}

// NewFakeDecoder creates a FakeDecoder returning res.
func NewFakeDecoder(res Result) *FakeDecoder {
	return &FakeDecoder{Result: res}
}

// Reconstruct records the call and returns the scripted result.
func (f *FakeDecoder) Reconstruct(ctx context.Context, bits hop.BitStream, bitRateHz float64) (Result, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, Call{Bits: append(hop.BitStream(nil), bits...), BitRateHz: bitRateHz})
	release := f.Release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return Result{}, f.Err
	}
	return f.Result, nil
}

// CallCount returns the number of Reconstruct calls so far.
func (f *FakeDecoder) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
