package worker

import (
	"math/rand"
	"time"

	"github.com/hyeonwoo-dev/subpay/internal/config"
)

// RetryPolicy schedules billing job retries with capped exponential backoff
// and subtractive jitter. Two instances run in production with different
// constants, one per job class; the algorithm is shared.
type RetryPolicy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
}

func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		BaseDelay:  cfg.BaseDelay,
		MaxDelay:   cfg.MaxDelay,
		MaxRetries: cfg.MaxRetries,
	}
}

// Backoff returns the pre-jitter delay for the given retry count:
// min(maxDelay, baseDelay * 2^retryCount). Deterministic; the randomized
// component lives in Delay.
func (p RetryPolicy) Backoff(retryCount int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Delay returns the backoff minus a uniform random jitter in [0, baseDelay),
// clamped to at least one second. Spreading retries out keeps a burst of
// failures from coming back as a synchronized storm.
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	delay := p.Backoff(retryCount)
	if p.BaseDelay > 0 {
		delay -= time.Duration(rand.Int63n(int64(p.BaseDelay)))
	}
	if delay < time.Second {
		delay = time.Second
	}
	return delay
}
