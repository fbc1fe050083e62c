package session

import (
	"sync"
	"time"
)

// SessionClock derives remaining time from an absolute deadline. Remaining
// time is always recomputed as deadline minus now, never decremented from a
// counter, so delayed or skipped ticks (a backgrounded tab, a stalled
// scheduler) cannot cause drift.
//
// The clock fires the expiry callback on the first tick that observes a
// non-positive remainder. The callback reports whether it consumed the
// trigger; expiry is claimed at most once, but a swallowed trigger (an
// in-flight submission owns the gate) leaves it unclaimed and the clock keeps
// ticking so expiry fires again once the gate settles. Stop is idempotent and
// guarantees no further ticks or expiry delivery once it returns, unless
// expiry was already claimed. Every clock is owned by exactly one session;
// nothing here is process-wide.
type SessionClock struct {
	deadline time.Time
	interval time.Duration
	onExpire func() bool

	mu      sync.Mutex
	started bool
	stopped bool
	expired bool
	stopCh  chan struct{}
}

// NewSessionClock creates a clock for the given deadline. interval controls
// how often the remainder is re-evaluated; onExpire runs in the clock's
// goroutine once the remainder reaches zero or below, repeating each tick
// until it returns true.
func NewSessionClock(deadline time.Time, interval time.Duration, onExpire func() bool) *SessionClock {
	if interval <= 0 {
		interval = time.Second
	}
	return &SessionClock{
		deadline: deadline,
		interval: interval,
		onExpire: onExpire,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the tick loop. Calling Start more than once is a no-op.
func (c *SessionClock) Start() {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run()
}

func (c *SessionClock) run() {
	// A zero-duration session must expire on the first evaluation, before
	// any ticker interval elapses.
	if c.evaluate() {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if c.evaluate() {
				return
			}
		}
	}
}

// evaluate checks the remainder and fires expiry if due. Returns true when
// the loop should end (expiry claimed or stopped). A callback returning false
// means the trigger was swallowed; expiry stays unclaimed and the loop keeps
// ticking so the deadline is enforced once the gate settles.
func (c *SessionClock) evaluate() bool {
	if c.Remaining() > 0 {
		return false
	}

	c.mu.Lock()
	if c.stopped || c.expired {
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	if c.onExpire != nil && !c.onExpire() {
		return false
	}

	c.mu.Lock()
	c.expired = true
	c.mu.Unlock()
	return true
}

// Remaining returns the time left until the deadline, floored at zero.
func (c *SessionClock) Remaining() time.Duration {
	remaining := time.Until(c.deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Deadline returns the absolute deadline the clock was built with.
func (c *SessionClock) Deadline() time.Time { return c.deadline }

// Expired reports whether the expiry callback has been claimed.
func (c *SessionClock) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Stop halts the tick loop and suppresses any expiry not yet claimed. Safe to
// call multiple times and from any goroutine.
func (c *SessionClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
}
