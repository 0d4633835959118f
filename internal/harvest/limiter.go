package harvest

import (
	"context"
	"math/rand/v2"
	"time"
)

// JitterPolicy spaces out consecutive requests issued by the same worker,
// anchored on a configured base delay: between two consecutive attempts,
// sleep uniformly in [0.5*base_delay, 1.5*base_delay]; with probability
// 0.05, add a further uniform [2s, 8s] long break. A base_delay <= 0
// disables sleeping entirely, for test mode.
type JitterPolicy struct {
	BaseDelay     time.Duration
	LongBreakProb float64
	LongBreakMin  time.Duration
	LongBreakMax  time.Duration
}

// DefaultJitterPolicy builds a policy around baseDelay, the mandatory
// between-attempt jitter applied to every harvest worker.
func DefaultJitterPolicy(baseDelay time.Duration) JitterPolicy {
	return JitterPolicy{
		BaseDelay:     baseDelay,
		LongBreakProb: 0.05,
		LongBreakMin:  2 * time.Second,
		LongBreakMax:  8 * time.Second,
	}
}

// sleep blocks for a randomized interval derived from BaseDelay, honoring
// ctx cancellation. A non-positive BaseDelay is a no-op.
func (p JitterPolicy) sleep(ctx context.Context) error {
	delay := p.interval()
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (p JitterPolicy) interval() time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	lo := float64(p.BaseDelay) * 0.5
	hi := float64(p.BaseDelay) * 1.5
	delay := time.Duration(lo + rand.Float64()*(hi-lo))

	if p.LongBreakProb > 0 && rand.Float64() < p.LongBreakProb {
		span := p.LongBreakMax - p.LongBreakMin
		longBreak := p.LongBreakMin
		if span > 0 {
			longBreak += time.Duration(rand.Float64() * float64(span))
		}
		delay += longBreak
	}
	return delay
}
