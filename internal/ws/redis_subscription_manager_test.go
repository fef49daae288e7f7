package ws

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestSubscriptionManagerCountsViewers(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	sm := newSubscriptionManager(rdb, NewHub())

	sm.Subscribe("a1")
	sm.Subscribe("a1")
	sm.Subscribe("a2")
	assert.Equal(t, 2, sm.Active())

	sm.Unsubscribe("a1")
	assert.Equal(t, 2, sm.Active(), "a1 still has a viewer")
	sm.Unsubscribe("a1")
	assert.Equal(t, 1, sm.Active())
	sm.Unsubscribe("unknown")

	done := make(chan struct{})
	go func() {
		sm.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not wait for relays to exit")
	}
	assert.Equal(t, 0, sm.Active())
}
