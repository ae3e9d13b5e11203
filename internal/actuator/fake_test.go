package actuator

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sweeney/optical-link/internal/hop"
)

func TestFakeActuatorRecords(t *testing.T) {
	f := NewFakeActuator()

	for _, b := range (hop.BitStream{1, 0, 1}) {
		if err := f.SetLevel(b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := f.Recorded().String(); got != "101" {
		t.Errorf("levels: got %s, want 101", got)
	}
}

func TestFakeActuatorError(t *testing.T) {
	f := NewFakeActuator()
	f.SetError = errors.New("simulated error")

	if err := f.SetLevel(hop.One); err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
	if len(f.Recorded()) != 0 {
		t.Error("failed set should not be recorded")
	}
}

func TestFakeActuatorFailAfter(t *testing.T) {
	f := NewFakeActuator()
	f.SetError = errors.New("torch busy")
	f.FailAfter = 2

	f.SetLevel(hop.One)
	f.SetLevel(hop.Zero)
	if err := f.SetLevel(hop.One); err == nil {
		t.Error("expected failure after 2 levels")
	}
}

func TestFakeActuatorCloseAndReset(t *testing.T) {
	f := NewFakeActuator()
	f.SetLevel(hop.One)
	f.Close()
	if !f.Closed {
		t.Error("should be closed after Close()")
	}

	f.Reset()
	if f.Closed || len(f.Recorded()) != 0 {
		t.Error("reset should clear state")
	}
}

func TestFallbackSwitchesOnError(t *testing.T) {
	primary := NewFakeActuator()
	primary.SetError = errors.New("torch unavailable")
	primary.FailAfter = 2
	secondary := NewFakeActuator()

	fb := WithFallback(primary, secondary)
	for _, b := range (hop.BitStream{1, 0, 1, 1}) {
		if err := fb.SetLevel(b); err != nil {
			t.Fatalf("fallback should absorb primary failure: %v", err)
		}
	}

	if got := primary.Recorded().String(); got != "10" {
		t.Errorf("primary: got %s, want 10", got)
	}
	if got := secondary.Recorded().String(); got != "11" {
		t.Errorf("secondary: got %s, want 11", got)
	}
	if !fb.Degraded() {
		t.Error("expected degraded after primary failure")
	}

	// Primary recovering does not switch back.
	primary.SetError = nil
	fb.SetLevel(hop.Zero)
	if got := secondary.Recorded().String(); got != "110" {
		t.Errorf("secondary after recovery: got %s, want 110", got)
	}

	fb.Close()
	if !primary.Closed || !secondary.Closed {
		t.Error("close should reach both outputs")
	}
}

func TestFallbackSecondaryError(t *testing.T) {
	primary := NewFakeActuator()
	primary.SetError = errors.New("no torch")
	secondary := NewFakeActuator()
	secondary.SetError = errors.New("no screen")

	if err := WithFallback(primary, secondary).SetLevel(hop.One); err == nil {
		t.Error("expected error when both outputs fail")
	}
}

func TestScreen(t *testing.T) {
	var buf bytes.Buffer
	s := NewScreen(&buf, 3)

	s.SetLevel(hop.One)
	s.SetLevel(hop.Zero)
	s.Close()

	want := "\r███" + "\r   " + "\r   " + "\n"
	if buf.String() != want {
		t.Errorf("screen output: got %q, want %q", buf.String(), want)
	}
}

func TestScreenDefaultWidth(t *testing.T) {
	var buf bytes.Buffer
	NewScreen(&buf, 0).SetLevel(hop.One)
	if n := strings.Count(buf.String(), "█"); n != 40 {
		t.Errorf("width: got %d, want 40", n)
	}
}
