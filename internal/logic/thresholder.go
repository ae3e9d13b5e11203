package logic

import (
	"math"
	"slices"

	"github.com/sweeney/optical-link/internal/hop"
)

// Thresholder turns raw luminance into bits using a percentile envelope over a
// sliding window of recent samples. No absolute light level is assumed.
type Thresholder struct {
	params  ThresholdParams
	history []float64
	sorted  []float64
}

// NewThresholder creates a thresholder with an empty history.
func NewThresholder(params ThresholdParams) *Thresholder {
	return &Thresholder{
		params:  params,
		history: make([]float64, 0, params.HistorySize),
		sorted:  make([]float64, 0, params.HistorySize),
	}
}

// Feed appends a sample to the history and classifies it.
func (t *Thresholder) Feed(peak float64) Reading {
	if len(t.history) == t.params.HistorySize {
		copy(t.history, t.history[1:])
		t.history = t.history[:len(t.history)-1]
	}
	t.history = append(t.history, peak)

	// Percentiles come from a sorted copy; history keeps arrival order.
	t.sorted = append(t.sorted[:0], t.history...)
	slices.Sort(t.sorted)

	low := percentile(t.sorted, t.params.LowPercentile)
	high := percentile(t.sorted, t.params.HighPercentile)
	delta := high - low
	threshold := low + t.params.ThresholdFraction*delta

	bit := hop.Zero
	if delta > t.params.BitGate && peak > threshold {
		bit = hop.One
	}

	return Reading{
		Luma:      peak,
		Low:       low,
		High:      high,
		Delta:     delta,
		Threshold: threshold,
		Bit:       bit,
	}
}

// Len returns the number of samples in the history.
func (t *Thresholder) Len() int {
	return len(t.history)
}

// History returns a copy of the history, oldest first.
func (t *Thresholder) History() []float64 {
	return slices.Clone(t.history)
}

// Reset clears the history.
func (t *Thresholder) Reset() {
	t.history = t.history[:0]
}

// percentile returns sorted[floor(len*p)], or 0 for an empty slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	i := int(math.Floor(float64(len(sorted)) * p))
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	if i < 0 {
		i = 0
	}
	return sorted[i]
}
