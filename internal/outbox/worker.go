package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auctionhouse/internal/notifier"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Entry is a queued notification with its delivery attempt count.
type Entry struct {
	notifier.Notification
	Attempts int
}

// Store is the durable side of the outbox. Claim leases up to limit due
// entries so that concurrent workers do not pick the same rows.
type Store interface {
	Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Entry, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, nextAttempt time.Time, reason string) error
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	Lease        time.Duration
	RetryDelay   time.Duration
	MaxDelay     time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		BatchSize:    100,
		Lease:        30 * time.Second,
		RetryDelay:   time.Second,
		MaxDelay:     5 * time.Minute,
	}
}

// Worker relays outbox entries to the notification gateway. Delivery is
// at-least-once; the gateway drops duplicates by notification id.
type Worker struct {
	store    Store
	notifier notifier.Notifier
	clock    clockwork.Clock
	config   Config

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWorker(store Store, n notifier.Notifier, clock clockwork.Clock, cfg Config) *Worker {
	return &Worker{
		store:    store,
		notifier: n,
		clock:    clock,
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	zap.L().Info("outbox worker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))
	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	zap.L().Info("outbox worker stopped")
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := w.clock.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.Chan():
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce delivers one batch and returns how many entries went out.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	now := w.clock.Now()
	entries, err := w.store.Claim(ctx, now, w.config.Lease, w.config.BatchSize)
	if err != nil {
		zap.L().Error("outbox.claim", zap.Error(err))
		return 0
	}
	if len(entries) == 0 {
		return 0
	}

	delivered := 0
	for _, e := range entries {
		if err := w.notifier.Notify(ctx, e.Notification); err != nil {
			next := now.Add(w.retryDelay(e.Attempts))
			zap.L().Warn("outbox.deliver",
				zap.String("id", e.ID),
				zap.String("event_type", e.EventType),
				zap.Int("attempt", e.Attempts+1),
				zap.Time("next_attempt", next),
				zap.Error(err))
			if err := w.store.MarkFailed(ctx, e.ID, next, err.Error()); err != nil {
				zap.L().Error("outbox.mark_failed", zap.String("id", e.ID), zap.Error(err))
			}
			continue
		}
		if err := w.store.MarkDelivered(ctx, e.ID, w.clock.Now()); err != nil {
			zap.L().Error("outbox.mark_delivered", zap.String("id", e.ID), zap.Error(err))
			continue
		}
		delivered++
	}

	zap.L().Debug("outbox batch processed",
		zap.Int("total", len(entries)),
		zap.Int("delivered", delivered))
	return delivered
}

// retryDelay doubles RetryDelay per previous attempt, capped at MaxDelay.
func (w *Worker) retryDelay(attempts int) time.Duration {
	d := w.config.RetryDelay
	for i := 0; i < attempts && d < w.config.MaxDelay; i++ {
		d *= 2
	}
	if d > w.config.MaxDelay {
		d = w.config.MaxDelay
	}
	return d
}
