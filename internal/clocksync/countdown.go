package clocksync

import (
	"context"
	"sync"
	"time"
)

// Countdown renders the time left on one auction from the synchronized clock.
// The deadline moves only when the server broadcasts an extension.
type Countdown struct {
	clk *Synchronizer

	mu       sync.RWMutex
	endsAt   time.Time
	finished bool
}

func NewCountdown(s *Synchronizer, endsAt time.Time) *Countdown {
	return &Countdown{clk: s, endsAt: endsAt}
}

func (c *Countdown) SetEnd(endsAt time.Time) {
	c.mu.Lock()
	c.endsAt = endsAt
	c.mu.Unlock()
}

func (c *Countdown) EndsAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endsAt
}

// Finish records that the server closed the auction.
func (c *Countdown) Finish() {
	c.mu.Lock()
	c.finished = true
	c.mu.Unlock()
}

func (c *Countdown) Finished() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finished
}

func (c *Countdown) Remaining() time.Duration {
	left := c.EndsAt().Sub(c.clk.Now())
	if left < 0 {
		return 0
	}
	return left
}

// Run calls fn on every tick with the remaining time. Reaching zero is not
// the end: a late bid may still extend the deadline, so Run keeps ticking
// until Finish has been called and zero is observed, or ctx is done.
func (c *Countdown) Run(ctx context.Context, tick time.Duration, fn func(time.Duration)) {
	ticker := c.clk.clock.NewTicker(tick)
	defer ticker.Stop()

	for {
		left := c.Remaining()
		fn(left)
		if left == 0 && c.Finished() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}
