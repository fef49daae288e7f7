package ws

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// subscriber is the slice of the Redis client the fan-out needs.
type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// roomFeed is one Redis subscription shared by every viewer of an auction.
type roomFeed struct {
	viewers int
	stop    context.CancelFunc
	done    chan struct{}
}

// subscriptionManager relays auction events from Redis into hub rooms. One
// subscription per auction, reference counted by viewers.
type subscriptionManager struct {
	rdb   subscriber
	hub   *Hub
	mu    sync.Mutex
	feeds map[string]*roomFeed
}

func newSubscriptionManager(rdb subscriber, hub *Hub) *subscriptionManager {
	return &subscriptionManager{
		rdb:   rdb,
		hub:   hub,
		feeds: make(map[string]*roomFeed),
	}
}

// Subscribe registers a viewer for the auction and opens the feed on the
// first one.
func (sm *subscriptionManager) Subscribe(auctionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if f, ok := sm.feeds[auctionID]; ok {
		f.viewers++
		return
	}

	ctx, stop := context.WithCancel(context.Background())
	f := &roomFeed{viewers: 1, stop: stop, done: make(chan struct{})}
	sm.feeds[auctionID] = f
	go sm.relay(ctx, auctionID, f.done)
}

func (sm *subscriptionManager) relay(ctx context.Context, auctionID string, done chan<- struct{}) {
	defer close(done)
	ps := sm.rdb.Subscribe(ctx, EventsChannel(auctionID))
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() == nil {
			zap.L().Error("ws.subscribe_failed", zap.String("auction_id", auctionID), zap.Error(err))
		}
		return
	}
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			frame, err := wrapLiveEvent([]byte(m.Payload))
			if err != nil {
				zap.L().Warn("ws.wrap_event_failed", zap.String("auction_id", auctionID), zap.Error(err))
				continue
			}
			sm.hub.Broadcast(auctionID, frame)
		}
	}
}

// Unsubscribe drops a viewer and stops the feed after the last one leaves.
func (sm *subscriptionManager) Unsubscribe(auctionID string) {
	sm.mu.Lock()
	f, ok := sm.feeds[auctionID]
	if !ok {
		sm.mu.Unlock()
		return
	}
	f.viewers--
	if f.viewers > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.feeds, auctionID)
	sm.mu.Unlock()
	f.stop()
}

// Active returns how many auctions currently have an open feed.
func (sm *subscriptionManager) Active() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.feeds)
}

// Close stops every feed and waits for the relays to exit.
func (sm *subscriptionManager) Close() {
	sm.mu.Lock()
	feeds := sm.feeds
	sm.feeds = make(map[string]*roomFeed)
	sm.mu.Unlock()

	for _, f := range feeds {
		f.stop()
	}
	for _, f := range feeds {
		<-f.done
	}
}
