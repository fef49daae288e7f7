package syncbid

import (
	"context"
	"errors"
	"testing"
	"time"

	"auctionhouse/internal/services/auction"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	bids []auction.Bid
	err  error
}

func (c *captureSink) InsertBids(_ context.Context, bids []auction.Bid) error {
	if c.err != nil {
		return c.err
	}
	c.bids = append(c.bids, bids...)
	return nil
}

func xread(lastID string) *redis.XReadArgs {
	return &redis.XReadArgs{Streams: []string{"bids_stream", lastID}, Count: 100, Block: 2 * time.Second}
}

func TestReadOnce(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	sink := &captureSink{}

	mock.ExpectXRead(xread("0-0")).SetVal([]redis.XStream{{
		Stream: "bids_stream",
		Messages: []redis.XMessage{
			{ID: "1-0", Values: map[string]interface{}{"id": "b1", "aid": "a1", "bidder": "alice", "amount": "150.5", "at": "1753632000000", "seq": "1"}},
			{ID: "2-0", Values: map[string]interface{}{"id": "b2", "aid": "a1", "bidder": "bob", "amount": "oops", "at": "1753632000001", "seq": "2"}},
		},
	}})

	next, err := readOnce(context.Background(), rdb, sink, "0-0")
	require.NoError(t, err)
	assert.Equal(t, "2-0", next)
	require.Len(t, sink.bids, 1)
	assert.True(t, sink.bids[0].Amount.Equal(decimal.RequireFromString("150.5")))
	assert.Equal(t, time.UnixMilli(1753632000000).UTC(), sink.bids[0].BidTime)

	mock.ExpectXRead(xread("2-0")).RedisNil()
	next, err = readOnce(context.Background(), rdb, sink, "2-0")
	require.NoError(t, err)
	assert.Equal(t, "2-0", next)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadOnceKeepsPositionOnFailure(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	sink := &captureSink{err: errors.New("db down")}

	mock.ExpectXRead(xread("0-0")).SetVal([]redis.XStream{{
		Stream:   "bids_stream",
		Messages: []redis.XMessage{{ID: "1-0", Values: map[string]interface{}{"id": "b1", "aid": "a1", "bidder": "alice", "amount": "10", "at": "1", "seq": "1"}}},
	}})

	next, err := readOnce(context.Background(), rdb, sink, "0-0")
	assert.Error(t, err)
	assert.Equal(t, "0-0", next)
}
