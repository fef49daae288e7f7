package closing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auctionhouse/internal/services/auction"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloser struct {
	mu      sync.Mutex
	results map[string][]error
	calls   map[string]int
	due     []string
	closed  chan string
}

func newFakeCloser() *fakeCloser {
	return &fakeCloser{
		results: map[string][]error{},
		calls:   map[string]int{},
		closed:  make(chan string, 16),
	}
}

func (f *fakeCloser) CloseAuction(_ context.Context, id string) (*auction.CloseOutcome, error) {
	f.mu.Lock()
	f.calls[id]++
	var err error
	if q := f.results[id]; len(q) > 0 {
		err, f.results[id] = q[0], q[1:]
	}
	f.mu.Unlock()
	if err == nil {
		f.closed <- id
		return &auction.CloseOutcome{Transitioned: true}, nil
	}
	return nil, err
}

func (f *fakeCloser) ActivateDue(context.Context) (int, error) { return 0, nil }

func (f *fakeCloser) DueForClose(context.Context, int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.due
	f.due = nil
	return ids, nil
}

func (f *fakeCloser) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SweepInterval = time.Hour
	cfg.RetryInitial = time.Millisecond
	cfg.RetryMax = 5 * time.Millisecond
	return cfg
}

func waitClosed(t *testing.T, f *fakeCloser, want string) {
	t.Helper()
	select {
	case id := <-f.closed:
		assert.Equal(t, want, id)
	case <-time.After(2 * time.Second):
		t.Fatalf("auction %s was not closed", want)
	}
}

func startScheduler(t *testing.T, f *fakeCloser, clock *clockwork.FakeClock) *Scheduler {
	t.Helper()
	s := NewScheduler(f, clock, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func TestScheduleFiresAtDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := newFakeCloser()
	s := startScheduler(t, f, clock)

	s.Schedule("a1", clock.Now().Add(time.Minute))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	clock.Advance(59 * time.Second)
	assert.Equal(t, 0, f.callCount("a1"))

	clock.Advance(time.Second)
	waitClosed(t, f, "a1")
}

func TestNotDueRearmsTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := newFakeCloser()
	f.results["a1"] = []error{&auction.NotDueError{EndsAt: clock.Now().Add(30 * time.Second)}}
	s := startScheduler(t, f, clock)

	s.Enqueue("a1")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2), "ticker plus re-armed deadline")
	assert.Equal(t, 1, f.callCount("a1"))

	clock.Advance(30 * time.Second)
	waitClosed(t, f, "a1")
	assert.Equal(t, 2, f.callCount("a1"))
}

func TestTransientErrorsAreRetried(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := newFakeCloser()
	f.results["a1"] = []error{errors.New("db down"), errors.New("db down")}
	s := startScheduler(t, f, clock)

	s.Enqueue("a1")
	waitClosed(t, f, "a1")
	assert.Equal(t, 3, f.callCount("a1"))
}

func TestForgetCancelsTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewScheduler(newFakeCloser(), clock, testConfig())

	s.Schedule("a1", clock.Now().Add(time.Minute))
	s.Schedule("a1", clock.Now().Add(2*time.Minute))
	assert.Equal(t, 1, s.pendingTimers())

	s.Forget("a1")
	assert.Equal(t, 0, s.pendingTimers())
	clock.Advance(time.Hour)
	assert.Empty(t, s.workCh)
}

func TestSweepEnqueuesOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := newFakeCloser()
	f.due = []string{"a1", "a2"}
	s := NewScheduler(f, clock, testConfig())

	s.Sweep(context.Background())
	s.Enqueue("a1")
	assert.Len(t, s.workCh, 2)

	s.Schedule("a3", clock.Now().Add(-time.Second))
	assert.Len(t, s.workCh, 3)
}
