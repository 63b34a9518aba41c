package llm

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 2 * time.Minute

	// retryHintBuffer is added on top of a provider-supplied retry delay so
	// we never land exactly on the boundary the provider reported.
	retryHintBuffer = 500 * time.Millisecond

	// jitterFraction spreads computed backoff by ±20%.
	jitterFraction = 0.20
)

// backoffPolicy computes the wait before the next attempt. A provider hint
// (rate-limit retry-after) wins over the exponential formula; both paths are
// capped at max.
type backoffPolicy struct {
	base   time.Duration
	max    time.Duration
	jitter func() float64 // uniform in [0,1)
}

func (p backoffPolicy) delay(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return capDelay(hint+retryHintBuffer, p.max)
	}
	if attempt < 1 {
		attempt = 1
	}
	d := p.base << (attempt - 1)
	if d <= 0 || d > p.max {
		// shift overflow or past the cap
		return p.max
	}
	spread := 1 + jitterFraction*(2*p.jitter()-1)
	return capDelay(time.Duration(float64(d)*spread), p.max)
}

func capDelay(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	if d < 0 {
		return max
	}
	return d
}

// newJitterSource returns a locked uniform source. Scoped per gateway so
// concurrent runs do not share rand state.
func newJitterSource() func() float64 {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var mu sync.Mutex
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64()
	}
}

// sleepContext waits for d or until the context is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
