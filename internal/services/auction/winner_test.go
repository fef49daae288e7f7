package auction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWinnerTieBreak(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bids := []Bid{
		{ID: "c", BidderID: "carol", Amount: decimal.NewFromInt(300), Seq: 3, BidTime: t0.Add(3 * time.Second)},
		{ID: "a", BidderID: "alice", Amount: decimal.NewFromInt(100), Seq: 1, BidTime: t0.Add(time.Second)},
		{ID: "b", BidderID: "bob", Amount: decimal.RequireFromString("300.00"), Seq: 2, BidTime: t0.Add(2 * time.Second)},
	}
	w, ok := ResolveWinner(bids)
	require.True(t, ok)
	assert.Equal(t, "bob", w.BidderID)

	// same instant falls back to acceptance order
	bids[0].BidTime = bids[2].BidTime
	w, _ = ResolveWinner(bids)
	assert.Equal(t, "bob", w.BidderID)

	_, ok = ResolveWinner(nil)
	assert.False(t, ok)
}

func TestResolveApproval(t *testing.T) {
	buyNow := decimal.NewFromInt(50000)
	assert.Equal(t, ApprovalPending, ResolveApproval(true, decimal.NewFromInt(25000), &buyNow))
	assert.Equal(t, ApprovalNone, ResolveApproval(true, decimal.NewFromInt(50000), &buyNow))
	assert.Equal(t, ApprovalNone, ResolveApproval(true, decimal.NewFromInt(60000), &buyNow))
	assert.Equal(t, ApprovalNone, ResolveApproval(false, decimal.NewFromInt(10000), &buyNow))
	assert.Equal(t, ApprovalNone, ResolveApproval(true, decimal.NewFromInt(1), nil))
}

func TestEvaluateCheckout(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	winner := "alice"
	deadline := now.Add(time.Hour)
	a := &Auction{Status: StatusEnded, WinnerID: &winner, ApprovalStatus: ApprovalPending, ApprovalDeadline: &deadline}

	assert.Equal(t, CheckoutAwaitingApproval, EvaluateCheckout(a, "alice", now))
	assert.Equal(t, CheckoutNotWinner, EvaluateCheckout(a, "bob", now))
	assert.Equal(t, CheckoutApprovalExpired, EvaluateCheckout(a, "alice", deadline))

	a.ApprovalStatus = ApprovalRejected
	assert.Equal(t, CheckoutLocked, EvaluateCheckout(a, "alice", now))
	a.ApprovalStatus = ApprovalApproved
	assert.Equal(t, CheckoutUnlocked, EvaluateCheckout(a, "alice", now))

	a.Status = StatusActive
	assert.Equal(t, CheckoutNotEnded, EvaluateCheckout(a, "alice", now))
}
