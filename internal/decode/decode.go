// Package decode defines the boundary between the link and character reconstruction.
// Any strategy that turns a captured sample-bit stream into text can sit behind Decoder.
package decode

import (
	"context"
	"errors"
	"log"
	"math"

	"github.com/sweeney/optical-link/internal/hop"
)

// Sentinel texts for results that carry no message.
const (
	TextLinkLost = "[LINK_LOST]"
	TextEmpty    = "[EMPTY]"
)

// ErrNoSignal is returned when no frame structure can be found in the capture.
var ErrNoSignal = errors.New("decode: no signal")

// Result is a reconstructed message.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Decoder reconstructs text from a captured bit stream.
// bits holds one decision per camera sample; bitRateHz is the transmitter's symbol rate.
type Decoder interface {
	Reconstruct(ctx context.Context, bits hop.BitStream, bitRateHz float64) (Result, error)
}

// Func adapts a function to the Decoder interface.
type Func func(ctx context.Context, bits hop.BitStream, bitRateHz float64) (Result, error)

// Reconstruct calls f.
func (f Func) Reconstruct(ctx context.Context, bits hop.BitStream, bitRateHz float64) (Result, error) {
	return f(ctx, bits, bitRateHz)
}

// Reconstruct runs d once and never fails: errors become a zero-confidence
// TextLinkLost result, empty text becomes TextEmpty, and confidence is clamped to [0,1].
func Reconstruct(ctx context.Context, d Decoder, bits hop.BitStream, bitRateHz float64) Result {
	res, err := d.Reconstruct(ctx, bits, bitRateHz)
	if err != nil {
		log.Printf("decode: %v", err)
		return Result{Text: TextLinkLost, Confidence: 0, Reasoning: err.Error()}
	}
	if res.Text == "" {
		res.Text = TextEmpty
	}
	res.Confidence = clamp(res.Confidence)
	return res
}

func clamp(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
