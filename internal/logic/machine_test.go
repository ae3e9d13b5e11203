package logic

import (
	"testing"
	"time"

	"github.com/sweeney/optical-link/internal/hop"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// clock hands out sample times 33ms apart.
type clock struct{ n int }

func (c *clock) next() time.Time {
	t := startTime.Add(time.Duration(c.n) * 33 * time.Millisecond)
	c.n++
	return t
}

func feedN(m *Machine, c *clock, luma float64, n int) []Event {
	var events []Event
	for i := 0; i < n; i++ {
		_, ev := m.Process(Input{Luma: luma, Time: c.next()})
		events = append(events, ev...)
	}
	return events
}

// startLink arms the machine and drives it into RECEIVING.
// 60 dark samples fill the history; the 6th lit sample is the first 1 bit,
// so the 11th completes the 6-bit start run.
func startLink(t *testing.T, m *Machine, c *clock) {
	t.Helper()
	m.Arm(c.next())
	if ev := feedN(m, c, dark, 60); len(ev) != 0 {
		t.Fatalf("expected no events while dark, got %v", ev)
	}
	if ev := feedN(m, c, lit, 10); len(ev) != 0 {
		t.Fatalf("link started early: %v", ev)
	}
	ev := feedN(m, c, lit, 1)
	if len(ev) != 1 || ev[0].Type != EventReceiving {
		t.Fatalf("expected RECEIVING event on 11th lit sample, got %v", ev)
	}
	if m.State() != StateReceiving {
		t.Fatalf("expected RECEIVING, got %s", m.State())
	}
}

func TestNewMachine(t *testing.T) {
	m := NewMachine(DefaultParams())
	if m.State() != StateWaiting {
		t.Errorf("initial state: got %s, want WAITING", m.State())
	}
	if m.Armed() {
		t.Error("new machine should be disarmed")
	}
	if m.CaptureLen() != 0 || m.Inactivity() != 0 {
		t.Error("new machine should have empty capture")
	}
}

func TestUnarmedNeverStarts(t *testing.T) {
	m := NewMachine(DefaultParams())
	c := &clock{}

	events := feedN(m, c, dark, 60)
	events = append(events, feedN(m, c, lit, 40)...)
	if len(events) != 0 {
		t.Errorf("expected no events while disarmed, got %d", len(events))
	}
	if m.State() != StateWaiting {
		t.Errorf("expected WAITING, got %s", m.State())
	}
	// The thresholder still tracks the scene.
	if m.HistoryLen() != 60 {
		t.Errorf("history length: got %d, want 60", m.HistoryLen())
	}
}

func TestArmedStepStartsReceiving(t *testing.T) {
	m := NewMachine(DefaultParams())
	c := &clock{}
	startLink(t, m, c)

	r := m.LastReading()
	if r.Delta <= 50 {
		t.Errorf("expected delta > 50 at start, got %v", r.Delta)
	}
	if m.CaptureLen() != 0 {
		t.Errorf("capture should start empty, got %d", m.CaptureLen())
	}
	if m.Counts().Starts != 1 {
		t.Errorf("starts: got %d, want 1", m.Counts().Starts)
	}
}

func TestStartRequiresStrongDelta(t *testing.T) {
	m := NewMachine(DefaultParams())
	c := &clock{}
	m.Arm(c.next())

	feedN(m, c, dark, 60)
	// delta 40 passes the bit gate but not the start gate
	events := feedN(m, c, dark+40, 30)
	if len(events) != 0 {
		t.Errorf("expected no start with delta 40, got %v", events)
	}
	if m.LastReading().Bit != hop.One {
		t.Error("expected bits to read as 1 above the bit gate")
	}
}

func TestStartInterruptedRun(t *testing.T) {
	m := NewMachine(DefaultParams())
	c := &clock{}
	m.Arm(c.next())

	feedN(m, c, dark, 60)
	feedN(m, c, lit, 9) // bits: 5 zeros, then 4 ones
	feedN(m, c, dark, 1)
	if m.State() != StateWaiting {
		t.Fatal("a dark sample should break the start run")
	}
	// Six fresh ones are required again.
	events := feedN(m, c, lit, 5)
	if len(events) != 0 {
		t.Fatalf("started before a full run: %v", events)
	}
	events = feedN(m, c, lit, 1)
	if len(events) != 1 || events[0].Type != EventReceiving {
		t.Fatalf("expected start after 6 ones, got %v", events)
	}
}

func TestHoldSuppressesStart(t *testing.T) {
	m := NewMachine(DefaultParams())
	c := &clock{}
	m.Arm(c.next())

	feedN(m, c, dark, 60)
	for i := 0; i < 20; i++ {
		_, ev := m.Process(Input{Luma: lit, Time: c.next(), Hold: true})
		if len(ev) != 0 {
			t.Fatalf("held machine emitted %v", ev)
		}
	}
	_, ev := m.Process(Input{Luma: lit, Time: c.next()})
	if len(ev) != 1 || ev[0].Type != EventReceiving {
		t.Fatalf("expected start once hold lifted, got %v", ev)
	}
}

func TestSilenceTriggersDecodeOnce(t *testing.T) {
	m := NewMachine(DefaultParams())
	c := &clock{}
	startLink(t, m, c)

	feedN(m, c, lit, 10)
	if m.CaptureLen() != 10 {
		t.Fatalf("capture: got %d, want 10", m.CaptureLen())
	}

	prevLen := m.CaptureLen()
	var frame *Event
	for i := 1; i <= 26; i++ {
		_, ev := m.Process(Input{Luma: dark, Time: c.next()})
		if i < 26 {
			if len(ev) != 0 {
				t.Fatalf("dark sample %d: unexpected events %v", i, ev)
			}
			if m.CaptureLen() < prevLen {
				t.Fatalf("capture shrank while receiving")
			}
			if m.Inactivity() > m.CaptureLen() {
				t.Fatalf("inactivity %d exceeds capture %d", m.Inactivity(), m.CaptureLen())
			}
			if m.Inactivity() != i {
				t.Fatalf("inactivity: got %d, want %d", m.Inactivity(), i)
			}
			prevLen = m.CaptureLen()
			continue
		}
		if len(ev) != 1 {
			t.Fatalf("expected one event on 26th zero, got %v", ev)
		}
		frame = &ev[0]
	}

	if frame.Type != EventFrameReady {
		t.Fatalf("expected FRAME_READY, got %s", frame.Type)
	}
	if len(frame.Bits) != 36 {
		t.Errorf("frame length: got %d, want 36", len(frame.Bits))
	}
	if frame.Bits[:10].String() != "1111111111" {
		t.Errorf("frame head: got %s", frame.Bits[:10])
	}
	if m.State() != StateDecoding {
		t.Fatalf("expected DECODING, got %s", m.State())
	}
	if m.CaptureLen() != 0 || m.Inactivity() != 0 {
		t.Error("capture should be cleared on leaving RECEIVING")
	}

	// Further zeros are ignored, not re-triggered.
	if ev := feedN(m, c, dark, 50); len(ev) != 0 {
		t.Errorf("expected no events in DECODING, got %v", ev)
	}
	if m.Counts().Frames != 1 {
		t.Errorf("frames: got %d, want 1", m.Counts().Frames)
	}
	if m.Counts().Ignored != 50 {
		t.Errorf("ignored: got %d, want 50", m.Counts().Ignored)
	}

	done := m.CompleteDecode(c.next())
	if len(done) != 1 || done[0].Type != EventDecodeDone {
		t.Fatalf("expected DECODE_DONE, got %v", done)
	}
	if m.State() != StateWaiting {
		t.Errorf("expected WAITING after decode, got %s", m.State())
	}
	if !m.Armed() {
		t.Error("link should stay armed after decode by default")
	}
	if ev := m.CompleteDecode(c.next()); ev != nil {
		t.Errorf("second CompleteDecode should be a no-op, got %v", ev)
	}
}

func TestShortCaptureSkipsDecode(t *testing.T) {
	p := DefaultParams()
	p.SilenceThreshold = 5
	m := NewMachine(p)
	c := &clock{}
	startLink(t, m, c)

	feedN(m, c, lit, 4)
	events := feedN(m, c, dark, 6)

	if len(events) != 1 {
		t.Fatalf("expected one event, got %v", events)
	}
	if events[0].Type != EventFrameDiscarded {
		t.Errorf("expected FRAME_DISCARDED, got %s", events[0].Type)
	}
	if len(events[0].Bits) != 10 {
		t.Errorf("discarded frame length: got %d, want 10", len(events[0].Bits))
	}
	if m.State() != StateWaiting {
		t.Errorf("expected WAITING, got %s", m.State())
	}
	if m.Counts().Discarded != 1 || m.Counts().Frames != 0 {
		t.Errorf("counts: %+v", m.Counts())
	}
}

func TestDisarmDuringReceiving(t *testing.T) {
	m := NewMachine(DefaultParams())
	c := &clock{}
	startLink(t, m, c)

	feedN(m, c, lit, 5)
	feedN(m, c, dark, 3)
	if m.CaptureLen() != 8 || m.Inactivity() != 3 {
		t.Fatalf("setup: capture=%d inactivity=%d", m.CaptureLen(), m.Inactivity())
	}

	events := m.Disarm(c.next())
	if len(events) != 1 || events[0].Type != EventDisarmed {
		t.Fatalf("expected DISARMED, got %v", events)
	}
	if events[0].From != StateReceiving {
		t.Errorf("from: got %s, want RECEIVING", events[0].From)
	}
	if m.State() != StateWaiting {
		t.Errorf("expected WAITING, got %s", m.State())
	}
	if m.CaptureLen() != 0 || m.Inactivity() != 0 {
		t.Error("disarm must clear capture and inactivity")
	}
	if m.Armed() {
		t.Error("expected disarmed")
	}
	if m.Counts().Aborted != 1 {
		t.Errorf("aborted: got %d, want 1", m.Counts().Aborted)
	}

	// Disarmed link ignores the rest of the transmission.
	if ev := feedN(m, c, lit, 30); len(ev) != 0 {
		t.Errorf("disarmed link emitted %v", ev)
	}
}

func TestDisarmDuringDecoding(t *testing.T) {
	m := NewMachine(DefaultParams())
	c := &clock{}
	startLink(t, m, c)
	feedN(m, c, lit, 10)
	feedN(m, c, dark, 26)
	if m.State() != StateDecoding {
		t.Fatalf("setup: expected DECODING, got %s", m.State())
	}

	m.Disarm(c.next())
	if m.State() != StateWaiting {
		t.Errorf("expected WAITING, got %s", m.State())
	}
	if ev := m.CompleteDecode(c.next()); ev != nil {
		t.Errorf("late completion should be a no-op, got %v", ev)
	}
}

func TestArmDisarmIdempotent(t *testing.T) {
	m := NewMachine(DefaultParams())
	if ev := m.Disarm(startTime); ev != nil {
		t.Errorf("disarm of idle link: got %v", ev)
	}
	if ev := m.Arm(startTime); len(ev) != 1 || ev[0].Type != EventArmed {
		t.Errorf("arm: got %v", ev)
	}
	if ev := m.Arm(startTime); ev != nil {
		t.Errorf("second arm: got %v", ev)
	}
}

func TestDisarmAfterDecode(t *testing.T) {
	p := DefaultParams()
	p.DisarmAfterDecode = true
	m := NewMachine(p)
	c := &clock{}
	startLink(t, m, c)
	feedN(m, c, lit, 10)
	feedN(m, c, dark, 26)

	events := m.CompleteDecode(c.next())
	if len(events) != 2 {
		t.Fatalf("expected DECODE_DONE + DISARMED, got %v", events)
	}
	if events[1].Type != EventDisarmed {
		t.Errorf("second event: got %s, want DISARMED", events[1].Type)
	}
	if m.Armed() {
		t.Error("expected link disarmed after decode")
	}
}

func TestPreview(t *testing.T) {
	m := NewMachine(DefaultParams())
	c := &clock{}
	startLink(t, m, c)
	feedN(m, c, lit, 3)
	feedN(m, c, dark, 2)

	if got := m.Preview(40).String(); got != "11100" {
		t.Errorf("preview: got %s, want 11100", got)
	}
	if got := m.Preview(2).String(); got != "00" {
		t.Errorf("preview(2): got %s, want 00", got)
	}
}
