package closing

import (
	"context"
	"errors"
	"sync"
	"time"

	"auctionhouse/internal/services/auction"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Closer is the part of the auction service the scheduler drives.
type Closer interface {
	CloseAuction(ctx context.Context, auctionID string) (*auction.CloseOutcome, error)
	ActivateDue(ctx context.Context) (int, error)
	DueForClose(ctx context.Context, limit int) ([]string, error)
}

type Config struct {
	Workers       int
	QueueSize     int
	SweepInterval time.Duration
	SweepBatch    int
	RetryInitial  time.Duration
	RetryMax      time.Duration
	// RetryElapsed bounds one closing attempt; the next sweep picks the
	// auction up again after that.
	RetryElapsed time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:       4,
		QueueSize:     1024,
		SweepInterval: 5 * time.Second,
		SweepBatch:    100,
		RetryInitial:  200 * time.Millisecond,
		RetryMax:      5 * time.Second,
		RetryElapsed:  30 * time.Second,
	}
}

// Scheduler runs the closing job. Each auction gets a one-shot timer at its
// deadline, and a periodic sweep over the store catches anything a timer
// missed (restarts, lost keyspace events). Closing is idempotent, so a double
// trigger costs one extra no-op.
type Scheduler struct {
	closer Closer
	clock  clockwork.Clock
	cfg    Config
	workCh chan string

	timersMu sync.Mutex
	timers   map[string]clockwork.Timer

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

var _ auction.DeadlineWatcher = (*Scheduler)(nil)

func NewScheduler(closer Closer, clock clockwork.Clock, cfg Config) *Scheduler {
	return &Scheduler{
		closer:   closer,
		clock:    clock,
		cfg:      cfg,
		workCh:   make(chan string, cfg.QueueSize),
		timers:   make(map[string]clockwork.Timer),
		inflight: make(map[string]struct{}),
	}
}

// Schedule arms (or re-arms) the closing timer for an auction.
func (s *Scheduler) Schedule(auctionID string, endsAt time.Time) {
	d := endsAt.Sub(s.clock.Now())
	if d <= 0 {
		s.cancelTimer(auctionID)
		s.Enqueue(auctionID)
		return
	}

	var t clockwork.Timer
	s.timersMu.Lock()
	if old, ok := s.timers[auctionID]; ok {
		old.Stop()
	}
	t = s.clock.AfterFunc(d, func() {
		s.timersMu.Lock()
		if cur, ok := s.timers[auctionID]; ok && cur == t {
			delete(s.timers, auctionID)
		}
		s.timersMu.Unlock()
		s.Enqueue(auctionID)
	})
	s.timers[auctionID] = t
	s.timersMu.Unlock()

	zap.L().Debug("closing.scheduled",
		zap.String("auction_id", auctionID),
		zap.Time("deadline", endsAt),
		zap.Duration("in", d))
}

func (s *Scheduler) Forget(auctionID string) {
	s.cancelTimer(auctionID)
}

// Enqueue hands an auction to the workers unless it is already queued or
// being closed.
func (s *Scheduler) Enqueue(auctionID string) {
	s.inflightMu.Lock()
	if _, ok := s.inflight[auctionID]; ok {
		s.inflightMu.Unlock()
		return
	}
	s.inflight[auctionID] = struct{}{}
	s.inflightMu.Unlock()

	select {
	case s.workCh <- auctionID:
	default:
		s.finish(auctionID)
		zap.L().Warn("closing.queue_full", zap.String("auction_id", auctionID))
	}
}

func (s *Scheduler) finish(auctionID string) {
	s.inflightMu.Lock()
	delete(s.inflight, auctionID)
	s.inflightMu.Unlock()
}

// Run starts the workers and the sweep loop and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	zap.L().Info("closing scheduler started",
		zap.Int("workers", s.cfg.Workers),
		zap.Duration("sweep_interval", s.cfg.SweepInterval))

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, i)
	}

	ticker := s.clock.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			wg.Wait()

			s.timersMu.Lock()
			for id, t := range s.timers {
				t.Stop()
				delete(s.timers, id)
			}
			s.timersMu.Unlock()
			zap.L().Info("closing scheduler stopped")
			return nil
		case <-ticker.Chan():
			s.Sweep(ctx)
		}
	}
}

// Sweep activates auctions whose start time passed and enqueues every
// auction the store considers due.
func (s *Scheduler) Sweep(ctx context.Context) {
	if n, err := s.closer.ActivateDue(ctx); err != nil {
		zap.L().Error("closing.activate_due", zap.Error(err))
	} else if n > 0 {
		zap.L().Info("auctions activated", zap.Int("count", n))
	}

	ids, err := s.closer.DueForClose(ctx, s.cfg.SweepBatch)
	if err != nil {
		zap.L().Error("closing.due_for_close", zap.Error(err))
		return
	}
	for _, id := range ids {
		s.Enqueue(id)
	}
}

func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.workCh:
			s.close(ctx, id, workerID)
			s.finish(id)
		}
	}
}

func (s *Scheduler) close(ctx context.Context, auctionID string, workerID int) {
	var notDue *auction.NotDueError
	op := func() error {
		_, err := s.closer.CloseAuction(ctx, auctionID)
		switch {
		case err == nil:
			return nil
		case errors.As(err, &notDue), errors.Is(err, auction.ErrNotFound):
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.cfg.RetryInitial),
		backoff.WithMaxInterval(s.cfg.RetryMax),
		backoff.WithMaxElapsedTime(s.cfg.RetryElapsed),
		backoff.WithClockProvider(s.clock),
	)
	notify := func(err error, next time.Duration) {
		zap.L().Warn("closing.retry",
			zap.String("auction_id", auctionID),
			zap.Int("worker_id", workerID),
			zap.Duration("next", next),
			zap.Error(err))
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	switch {
	case err == nil:
		s.cancelTimer(auctionID)
	case notDue != nil && errors.As(err, &notDue):
		s.Schedule(auctionID, notDue.EndsAt)
	default:
		zap.L().Error("closing.failed", zap.String("auction_id", auctionID), zap.Error(err))
	}
}

func (s *Scheduler) cancelTimer(auctionID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if t, ok := s.timers[auctionID]; ok {
		t.Stop()
		delete(s.timers, auctionID)
	}
}

func (s *Scheduler) pendingTimers() int {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	return len(s.timers)
}
