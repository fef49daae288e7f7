package clocksync

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Reading is one answer from the authoritative clock. EndsAt is zero when the
// source does not track an auction. Closed is set once the auction has ended
// or was cancelled.
type Reading struct {
	ServerNow time.Time
	EndsAt    time.Time
	Closed    bool
}

type TimeSource interface {
	ServerTime(ctx context.Context) (Reading, error)
}

// Synchronizer keeps a local estimate of server time: the local clock plus
// the last measured offset. A failed sync leaves the previous offset in place.
type Synchronizer struct {
	src      TimeSource
	clock    clockwork.Clock
	interval time.Duration

	mu      sync.RWMutex
	offset  time.Duration
	synced  bool
	last    Reading
	nextSub int
	subs    map[int]chan time.Duration
}

func New(src TimeSource, clock clockwork.Clock, interval time.Duration) *Synchronizer {
	return &Synchronizer{
		src:      src,
		clock:    clock,
		interval: interval,
		subs:     make(map[int]chan time.Duration),
	}
}

// Sync measures the offset once. The server reading is compared against the
// midpoint of the request so half the round trip cancels out.
func (s *Synchronizer) Sync(ctx context.Context) (time.Duration, error) {
	sent := s.clock.Now()
	r, err := s.src.ServerTime(ctx)
	if err != nil {
		zap.L().Warn("clocksync.sync_failed", zap.Error(err), zap.Duration("offset", s.Offset()))
		return s.Offset(), err
	}
	received := s.clock.Now()
	mid := sent.Add(received.Sub(sent) / 2)
	offset := r.ServerNow.Sub(mid)

	s.mu.Lock()
	s.offset = offset
	s.synced = true
	s.last = r
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- offset
	}
	s.mu.Unlock()

	zap.L().Debug("clocksync.synced",
		zap.Duration("offset", offset),
		zap.Duration("rtt", received.Sub(sent)))
	return offset, nil
}

func (s *Synchronizer) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// Synced reports whether at least one sync succeeded.
func (s *Synchronizer) Synced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

// Last returns the most recent successful reading.
func (s *Synchronizer) Last() Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Now is the best estimate of the server's current time.
func (s *Synchronizer) Now() time.Time {
	return s.clock.Now().Add(s.Offset())
}

// Subscribe delivers every new offset. Slow readers only see the latest one.
func (s *Synchronizer) Subscribe() (<-chan time.Duration, func()) {
	ch := make(chan time.Duration, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Run syncs immediately and then every interval until ctx is done.
func (s *Synchronizer) Run(ctx context.Context) {
	_, _ = s.Sync(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			_, _ = s.Sync(ctx)
		}
	}
}
