package decode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sweeney/optical-link/internal/hop"
)

// Remote delegates reconstruction to an HTTP service.
// It POSTs a Request as JSON and expects a Result back.
type Remote struct {
	URL          string
	SampleRateHz float64
	Client       *http.Client
}

// Request is the body sent to a remote reconstruction service.
type Request struct {
	Bits         string  `json:"bits"`
	BitRateHz    float64 `json:"bit_rate_hz"`
	SampleRateHz float64 `json:"sample_rate_hz"`
}

// NewRemote creates a Remote decoder. A zero timeout leaves deadlines to the caller's context.
func NewRemote(url string, sampleRateHz float64, timeout time.Duration) *Remote {
	return &Remote{
		URL:          url,
		SampleRateHz: sampleRateHz,
		Client:       &http.Client{Timeout: timeout},
	}
}

// Reconstruct implements Decoder.
func (r *Remote) Reconstruct(ctx context.Context, bits hop.BitStream, bitRateHz float64) (Result, error) {
	body, err := json.Marshal(Request{
		Bits:         bits.String(),
		BitRateHz:    bitRateHz,
		SampleRateHz: r.SampleRateHz,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("remote decode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("remote decode: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	return res, nil
}
