// Package transmit plays a HOP bit stream on an actuator at the line rate.
package transmit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/optical-link/internal/actuator"
	"github.com/sweeney/optical-link/internal/hop"
)

// Send sets one bit per tick and darkens the output when done or cancelled.
// The first bit is set immediately; each following bit waits for a tick.
func Send(ctx context.Context, out actuator.Actuator, bits hop.BitStream, tick <-chan time.Time) (err error) {
	defer func() {
		if derr := out.SetLevel(hop.Zero); derr != nil && err == nil {
			err = fmt.Errorf("darken output: %w", derr)
		}
	}()

	for i, b := range bits {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}
		if err := out.SetLevel(b); err != nil {
			return fmt.Errorf("bit %d: %w", i, err)
		}
	}

	// Hold the last bit for a full period.
	if len(bits) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		}
	}
	return nil
}

// Transmit normalizes text, encodes it and sends it at hop.BitDuration per bit.
func Transmit(ctx context.Context, out actuator.Actuator, text string) error {
	msg, err := Prepare(text)
	if err != nil {
		return err
	}
	bits := hop.Encode(msg)

	log.Printf("transmit: sending %q (%d bits, %s)", msg, len(bits), hop.Airtime(len(msg)).Round(time.Second))

	ticker := time.NewTicker(hop.BitDuration)
	defer ticker.Stop()

	start := time.Now()
	if err := Send(ctx, out, bits, ticker.C); err != nil {
		return err
	}
	log.Printf("transmit: done in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

// Prepare applies the payload rules without sending.
func Prepare(text string) (string, error) {
	msg, err := hop.Normalize(text)
	if err != nil {
		return "", fmt.Errorf("prepare message: %w", err)
	}
	return msg, nil
}
