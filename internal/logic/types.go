// Package logic contains the pure receive-side signal logic: adaptive thresholding
// and the link state machine.
// This package has NO external dependencies (no camera, decoder, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/optical-link/internal/hop"
)

// State represents the state of the receive link.
type State string

const (
	StateWaiting   State = "WAITING"
	StateReceiving State = "RECEIVING"
	StateDecoding  State = "DECODING"
)

// EventType represents a link event.
type EventType string

const (
	EventArmed          EventType = "ARMED"
	EventDisarmed       EventType = "DISARMED"
	EventReceiving      EventType = "RECEIVING"
	EventFrameReady     EventType = "FRAME_READY"
	EventFrameDiscarded EventType = "FRAME_DISCARDED"
	EventDecodeDone     EventType = "DECODE_DONE"
)

// Event represents a link event to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	From      State
	To        State
	// Bits is the captured frame for FRAME_READY and FRAME_DISCARDED.
	Bits hop.BitStream
}

// Input represents a single luminance sample.
type Input struct {
	Luma float64
	Time time.Time
	// Hold suppresses a WAITING -> RECEIVING transition on this sample.
	Hold bool
}

// Reading is the thresholder's view of one sample.
type Reading struct {
	Luma      float64
	Low       float64
	High      float64
	Delta     float64 // SNR proxy: high - low
	Threshold float64
	Bit       hop.Bit
	// Ignored is set when the sample arrived in DECODING and was dropped.
	Ignored bool
}

// Counts tracks link activity since startup.
type Counts struct {
	Samples   int
	Ignored   int
	Starts    int
	Frames    int
	Discarded int
	Aborted   int
}

// ThresholdParams configures the adaptive thresholder.
type ThresholdParams struct {
	HistorySize       int
	LowPercentile     float64
	HighPercentile    float64
	ThresholdFraction float64
	// BitGate is the minimum delta for any sample to read as 1.
	BitGate float64
}

// Params configures the link state machine.
type Params struct {
	Threshold ThresholdParams
	// StartDelta is the minimum delta required to lock on.
	StartDelta float64
	// StartRun is the number of consecutive 1 bits required to lock on.
	StartRun int
	// SilenceThreshold ends a frame once the inactivity counter exceeds it.
	SilenceThreshold int
	// MinCaptureBits is the smallest frame handed to the decoder.
	MinCaptureBits int
	// DisarmAfterDecode disarms the link when a decode completes.
	DisarmAfterDecode bool
}

// DefaultParams returns the protocol's stock tuning.
func DefaultParams() Params {
	return Params{
		Threshold: ThresholdParams{
			HistorySize:       60,
			LowPercentile:     0.1,
			HighPercentile:    0.9,
			ThresholdFraction: 0.55,
			BitGate:           35,
		},
		StartDelta:       50,
		StartRun:         6,
		SilenceThreshold: 25,
		MinCaptureBits:   30,
	}
}

// Quality is a coarse label for a delta value.
type Quality string

const (
	QualityLow       Quality = "LOW"
	QualityMid       Quality = "MID"
	QualityExcellent Quality = "EXCELLENT"
)

// QualityOf maps a delta to a signal quality label.
func QualityOf(delta float64) Quality {
	switch {
	case delta < 30:
		return QualityLow
	case delta < 60:
		return QualityMid
	default:
		return QualityExcellent
	}
}
