package auctionwatcher

import (
	"context"
	"strings"

	"auctionhouse/internal/redis/ledger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Enqueuer receives auctions whose deadline key expired.
type Enqueuer interface {
	Enqueue(auctionID string)
}

// Run listens to key-expiry events on the deadline keys and hands the
// auctions to the closing scheduler. Run must be started once at service boot.
func Run(ctx context.Context, rdb *redis.Client, q Enqueuer) {
	if err := rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		// managed Redis often forbids CONFIG; the scheduler sweep still closes auctions
		zap.L().Warn("auctionwatcher.config_set", zap.Error(err))
	}
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			id, ok := auctionFromKey(m.Payload)
			if !ok {
				continue
			}
			zap.L().Debug("auction deadline key expired", zap.String("auction_id", id))
			q.Enqueue(id)
		}
	}
}

func auctionFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, ledger.TimerPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(key, ledger.TimerPrefix)
	return id, id != ""
}
