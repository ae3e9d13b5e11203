package logic

import (
	"time"

	"github.com/sweeney/optical-link/internal/hop"
)

// Machine drives WAITING -> RECEIVING -> DECODING -> WAITING from thresholded samples.
// It is not safe for concurrent use; internal/receiver serializes access.
type Machine struct {
	params      Params
	thresholder *Thresholder

	state      State
	armed      bool
	capture    hop.BitStream
	inactivity int

	// recent holds the last StartRun bit decisions, oldest first.
	recent []hop.Bit

	last   Reading
	counts Counts
}

// NewMachine creates a disarmed machine in WAITING.
func NewMachine(params Params) *Machine {
	return &Machine{
		params:      params,
		thresholder: NewThresholder(params.Threshold),
		state:       StateWaiting,
		recent:      make([]hop.Bit, 0, params.StartRun),
	}
}

// Process takes a new sample and returns its reading and any events that should be emitted.
// Samples arriving in DECODING are dropped without touching the history.
func (m *Machine) Process(input Input) (Reading, []Event) {
	if m.state == StateDecoding {
		m.counts.Ignored++
		return Reading{Luma: input.Luma, Ignored: true}, nil
	}

	r := m.thresholder.Feed(input.Luma)
	m.last = r
	m.counts.Samples++
	m.pushRecent(r.Bit)

	if !m.armed {
		return r, nil
	}

	switch m.state {
	case StateWaiting:
		if input.Hold || r.Delta <= m.params.StartDelta || !m.startRun() {
			return r, nil
		}
		m.resetCapture()
		m.state = StateReceiving
		m.counts.Starts++
		return r, []Event{{
			Timestamp: input.Time,
			Type:      EventReceiving,
			From:      StateWaiting,
			To:        StateReceiving,
		}}

	case StateReceiving:
		m.capture = append(m.capture, r.Bit)
		if r.Bit == hop.Zero {
			m.inactivity++
		} else {
			m.inactivity = 0
		}

		if m.inactivity <= m.params.SilenceThreshold {
			return r, nil
		}

		bits := m.capture
		m.resetCapture()

		if len(bits) < m.params.MinCaptureBits {
			m.state = StateWaiting
			m.counts.Discarded++
			return r, []Event{{
				Timestamp: input.Time,
				Type:      EventFrameDiscarded,
				From:      StateReceiving,
				To:        StateWaiting,
				Bits:      bits,
			}}
		}

		m.state = StateDecoding
		m.counts.Frames++
		return r, []Event{{
			Timestamp: input.Time,
			Type:      EventFrameReady,
			From:      StateReceiving,
			To:        StateDecoding,
			Bits:      bits,
		}}
	}

	return r, nil
}

// CompleteDecode returns the machine to WAITING after a decode resolves.
// It is a no-op outside DECODING.
func (m *Machine) CompleteDecode(now time.Time) []Event {
	if m.state != StateDecoding {
		return nil
	}
	m.state = StateWaiting
	m.resetCapture()

	events := []Event{{
		Timestamp: now,
		Type:      EventDecodeDone,
		From:      StateDecoding,
		To:        StateWaiting,
	}}
	if m.params.DisarmAfterDecode && m.armed {
		m.armed = false
		events = append(events, Event{
			Timestamp: now,
			Type:      EventDisarmed,
			From:      StateWaiting,
			To:        StateWaiting,
		})
	}
	return events
}

// Arm enables link start detection.
func (m *Machine) Arm(now time.Time) []Event {
	if m.armed {
		return nil
	}
	m.armed = true
	return []Event{{Timestamp: now, Type: EventArmed, From: m.state, To: m.state}}
}

// Disarm disables the link and aborts any pending accumulation.
func (m *Machine) Disarm(now time.Time) []Event {
	if !m.armed && m.state == StateWaiting {
		return nil
	}
	from := m.state
	if from == StateReceiving {
		m.counts.Aborted++
	}
	m.armed = false
	m.state = StateWaiting
	m.resetCapture()
	return []Event{{Timestamp: now, Type: EventDisarmed, From: from, To: StateWaiting}}
}

func (m *Machine) resetCapture() {
	m.capture = nil
	m.inactivity = 0
}

func (m *Machine) pushRecent(b hop.Bit) {
	if m.params.StartRun <= 0 {
		return
	}
	if len(m.recent) == m.params.StartRun {
		copy(m.recent, m.recent[1:])
		m.recent = m.recent[:len(m.recent)-1]
	}
	m.recent = append(m.recent, b)
}

func (m *Machine) startRun() bool {
	if len(m.recent) < m.params.StartRun {
		return false
	}
	for _, b := range m.recent {
		if b != hop.One {
			return false
		}
	}
	return true
}

// State returns the current link state.
func (m *Machine) State() State {
	return m.state
}

// Armed reports whether the link is armed.
func (m *Machine) Armed() bool {
	return m.armed
}

// CaptureLen returns the number of bits captured in the current frame.
func (m *Machine) CaptureLen() int {
	return len(m.capture)
}

// Inactivity returns the current run of trailing zero bits.
func (m *Machine) Inactivity() int {
	return m.inactivity
}

// Preview returns a copy of the last n captured bits.
func (m *Machine) Preview(n int) hop.BitStream {
	if n > len(m.capture) {
		n = len(m.capture)
	}
	out := make(hop.BitStream, n)
	copy(out, m.capture[len(m.capture)-n:])
	return out
}

// LastReading returns the reading for the most recent processed sample.
func (m *Machine) LastReading() Reading {
	return m.last
}

// Counts returns a copy of the activity counters.
func (m *Machine) Counts() Counts {
	return m.counts
}

// HistoryLen returns the number of samples in the thresholder window.
func (m *Machine) HistoryLen() int {
	return m.thresholder.Len()
}
