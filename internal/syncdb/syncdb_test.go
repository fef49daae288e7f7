package syncdb

import (
	"context"
	"errors"
	"testing"

	"auctionhouse/internal/services/auction"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	live []*auction.LiveAuction
	err  error
}

func (s stubSource) Active(context.Context) ([]*auction.LiveAuction, error) { return s.live, s.err }

type captureSink struct{ got []*auction.LiveAuction }

func (c *captureSink) MirrorLive(_ context.Context, live []*auction.LiveAuction) error {
	c.got = append(c.got, live...)
	return nil
}

func TestSyncOnce(t *testing.T) {
	sink := &captureSink{}
	live := []*auction.LiveAuction{{ID: "a1", CurrentBid: decimal.NewFromInt(150)}, {ID: "a2"}}

	n, err := syncOnce(context.Background(), stubSource{live: live}, sink)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, sink.got, 2)

	n, err = syncOnce(context.Background(), stubSource{}, sink)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = syncOnce(context.Background(), stubSource{err: errors.New("redis down")}, sink)
	assert.Error(t, err)
}
