package politeness

import (
	"context"
	"sync"
	"time"
)

/*
Controller

Responsibilities:
- Enforce a per-host minimum gap between request starts, scaled by the
  robots-derived delay multiplier for that host
- Enforce a global concurrency ceiling shared by every host
- Never decide whether a URL is allowed; robots.Checker owns that

A Controller is safe for concurrent use from many goroutines, one per
in-flight fetch.
*/
type Controller struct {
	baseDelay time.Duration

	mu     sync.Mutex
	states map[string]*hostState

	sem chan struct{}

	sleep func(context.Context, time.Duration) error
	clock func() time.Time
}

// NewController builds a Controller with the given per-host base delay and
// global concurrency ceiling. baseDelay must be >= 0 and concurrency >= 1.
func NewController(baseDelay time.Duration, maxGlobalConcurrency int) (*Controller, *ConfigError) {
	if baseDelay < 0 {
		return nil, &ConfigError{Message: "per-domain delay must be non-negative"}
	}
	if maxGlobalConcurrency < 1 {
		return nil, &ConfigError{Message: "max global concurrency must be at least 1"}
	}
	return &Controller{
		baseDelay: baseDelay,
		states:    make(map[string]*hostState),
		sem:       make(chan struct{}, maxGlobalConcurrency),
		sleep:     contextSleep,
		clock:     time.Now,
	}, nil
}

// WithClock overrides the time source, for deterministic tests.
func (c *Controller) WithClock(clock func() time.Time) *Controller {
	c.clock = clock
	return c
}

// WithSleep overrides the sleep primitive, so tests can run without real
// wall-clock waits.
func (c *Controller) WithSleep(sleep func(context.Context, time.Duration) error) *Controller {
	c.sleep = sleep
	return c
}

// Release is returned by RequestSlot and must be called exactly once to
// free the concurrency slot acquired for the request.
type Release func()

// RequestSlot blocks until both a global concurrency slot is free and the
// per-host minimum gap for host has elapsed, then returns a Release to call
// when the request completes. delayMultiplier scales the per-host gap (use
// 1.0 for the normal case; robots-derived backoff passes higher values).
func (c *Controller) RequestSlot(ctx context.Context, host string, delayMultiplier float64) (Release, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := c.waitForHost(ctx, host, delayMultiplier); err != nil {
		<-c.sem
		return nil, err
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		<-c.sem
	}, nil
}

// waitForHost blocks until host's next-allowed time has passed, then
// reserves the following slot for host.
func (c *Controller) waitForHost(ctx context.Context, host string, delayMultiplier float64) error {
	for {
		wait, ok := c.tryReserve(host, delayMultiplier)
		if ok {
			return nil
		}
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryReserve checks whether host may proceed now; if so, it reserves the
// next slot and returns (0, true). Otherwise it returns the remaining wait
// and false, without mutating state.
func (c *Controller) tryReserve(host string, delayMultiplier float64) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	state, exists := c.states[host]
	if !exists || !now.Before(state.nextAllowed) {
		delay := time.Duration(float64(c.baseDelay) * delayMultiplier)
		c.states[host] = &hostState{nextAllowed: now.Add(delay)}
		return 0, true
	}

	return state.nextAllowed.Sub(now), false
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
