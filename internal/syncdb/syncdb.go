package syncdb

import (
	"context"
	"time"

	"auctionhouse/internal/services/auction"

	"go.uber.org/zap"
)

type Source interface {
	Active(ctx context.Context) ([]*auction.LiveAuction, error)
}

type Sink interface {
	MirrorLive(ctx context.Context, live []*auction.LiveAuction) error
}

// Run mirrors the live figures of running auctions into Postgres every interval.
func Run(ctx context.Context, src Source, dst Sink, interval time.Duration) {
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if _, err := syncOnce(ctx, src, dst); err != nil {
					zap.L().Error("syncdb.sync", zap.Error(err))
				}
			}
		}
	}()
}

func syncOnce(ctx context.Context, src Source, dst Sink) (int, error) {
	live, err := src.Active(ctx)
	if err != nil || len(live) == 0 {
		return 0, err
	}
	if err := dst.MirrorLive(ctx, live); err != nil {
		return 0, err
	}
	zap.L().Debug("syncdb mirrored", zap.Int("auctions", len(live)))
	return len(live), nil
}
