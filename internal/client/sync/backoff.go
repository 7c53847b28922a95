package sync

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// Значения по умолчанию для backoff
const (
	DefaultBackoffBase = time.Second
	DefaultBackoffCap  = 5 * time.Minute

	maxSteps = 32
)

// BackoffConfig controls how far transient failures push the next attempt.
type BackoffConfig struct {
	Base time.Duration
	Cap  time.Duration
	// JitterPercent randomizes each delay by up to ±JitterPercent percent
	JitterPercent uint64
	// MaxAttempts turns the N-th transient failure into a permanent one.
	// Zero retries forever.
	MaxAttempts int
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Base <= 0 {
		c.Base = DefaultBackoffBase
	}
	if c.Cap <= 0 {
		c.Cap = DefaultBackoffCap
	}
	return c
}

// Delay returns the wait before the next attempt of an operation that has
// failed attempts times (attempts >= 1).
func (c BackoffConfig) Delay(attempts int) time.Duration {
	c = c.withDefaults()

	b := retry.NewExponential(c.Base)
	b = retry.WithCappedDuration(c.Cap, b)
	if c.JitterPercent > 0 {
		b = retry.WithJitterPercent(c.JitterPercent, b)
	}

	// после maxSteps задержка давно упирается в cap
	steps := min(max(attempts, 1), maxSteps)

	var delay time.Duration
	for range steps {
		next, stop := b.Next()
		if stop {
			break
		}
		delay = next
	}
	return delay
}

// Exhausted reports whether attempts failures exceed MaxAttempts
func (c BackoffConfig) Exhausted(attempts int) bool {
	return c.MaxAttempts > 0 && attempts >= c.MaxAttempts
}
