package syncbid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"auctionhouse/internal/redis/ledger"
	"auctionhouse/internal/services/auction"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Sink interface {
	InsertBids(ctx context.Context, bids []auction.Bid) error
}

// Run tails the bid stream and persists every accepted bid. Inserts are
// idempotent, so replaying the stream from the start after a restart is safe.
func Run(ctx context.Context, rdc redis.Cmdable, dst Sink) {
	go func() {
		lastID := "0-0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			next, err := readOnce(ctx, rdc, dst, lastID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				zap.L().Warn("syncbid.read", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			lastID = next
		}
	}()
}

// readOnce blocks up to 2s for new entries, persists them, and returns the
// stream position to continue from.
func readOnce(ctx context.Context, rdc redis.Cmdable, dst Sink, lastID string) (string, error) {
	res, err := rdc.XRead(ctx, &redis.XReadArgs{
		Streams: []string{ledger.BidStream, lastID},
		Count:   100,
		Block:   2000 * time.Millisecond,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return lastID, nil
	}
	if err != nil {
		return lastID, err
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return lastID, nil
	}

	entries := res[0].Messages
	bids := make([]auction.Bid, 0, len(entries))
	for _, m := range entries {
		b, err := parseEntry(m)
		if err != nil {
			zap.L().Error("syncbid.parse", zap.String("entry", m.ID), zap.Error(err))
			continue
		}
		bids = append(bids, b)
	}
	if err := dst.InsertBids(ctx, bids); err != nil {
		return lastID, fmt.Errorf("persist bids: %w", err)
	}
	return entries[len(entries)-1].ID, nil
}

func parseEntry(m redis.XMessage) (auction.Bid, error) {
	str := func(k string) string {
		s, _ := m.Values[k].(string)
		return s
	}
	amount, err := decimal.NewFromString(str("amount"))
	if err != nil {
		return auction.Bid{}, fmt.Errorf("amount: %w", err)
	}
	at, err := strconv.ParseInt(str("at"), 10, 64)
	if err != nil {
		return auction.Bid{}, fmt.Errorf("at: %w", err)
	}
	seq, err := strconv.Atoi(str("seq"))
	if err != nil {
		return auction.Bid{}, fmt.Errorf("seq: %w", err)
	}
	b := auction.Bid{
		ID:        str("id"),
		AuctionID: str("aid"),
		BidderID:  str("bidder"),
		Amount:    amount,
		Seq:       seq,
		BidTime:   time.UnixMilli(at).UTC(),
	}
	if b.ID == "" || b.AuctionID == "" {
		return auction.Bid{}, fmt.Errorf("missing id")
	}
	return b, nil
}
