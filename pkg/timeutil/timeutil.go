package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// DurationPtr is a helper function to create a pointer to a time.Duration
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// ExponentialBackoffDelay computes the delay before the next retry attempt.
// backoffCount is the 1-based attempt number that just failed; counts below 1
// are treated as 1. The base delay doubles (per param.Multiplier) each
// attempt and is capped at param.MaxDuration, then a uniform random jitter
// in [0, jitter] is added.
func ExponentialBackoffDelay(backoffCount int, jitter time.Duration, rng rand.Rand, param BackoffParam) time.Duration {
	count := backoffCount
	if count < 1 {
		count = 1
	}

	base := float64(param.InitialDuration()) * math.Pow(param.Multiplier(), float64(count-1))
	delay := time.Duration(base)
	if delay > param.MaxDuration() {
		delay = param.MaxDuration()
	}
	if delay < 0 {
		delay = 0
	}

	if jitter > 0 {
		delay += time.Duration(rng.Int63n(int64(jitter) + 1))
	}
	return delay
}
