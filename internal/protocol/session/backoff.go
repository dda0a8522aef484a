package session

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Delay is the pause after failed connect attempt n (1-based). The first
// retry waits InitialDelay; later ones grow by Multiplier up to MaxDelay and,
// with Jitter, are scaled into [0.5, 1.5) of that value.
func (b BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || b.InitialDelay <= 0 {
		return max(b.InitialDelay, 0)
	}
	growth := math.Max(b.Multiplier, 1.0)
	d := float64(b.InitialDelay) * math.Pow(growth, float64(attempt-1))
	if b.MaxDelay > 0 {
		d = math.Min(d, float64(b.MaxDelay))
	}
	if b.Jitter {
		scale := 0.5
		if rng != nil {
			scale += rng.Float64()
		}
		d *= scale
	}
	return time.Duration(d)
}

// Wait sleeps for Delay(attempt) or until ctx is done.
func (b BackoffConfig) Wait(ctx context.Context, attempt int, rng *rand.Rand) error {
	timer := time.NewTimer(b.Delay(attempt, rng))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
