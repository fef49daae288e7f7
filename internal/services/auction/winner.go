package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResolveWinner picks the highest bid. Ties go to the earliest bid time, then
// to the lower acceptance sequence, so the result never depends on input order.
func ResolveWinner(bids []Bid) (Bid, bool) {
	if len(bids) == 0 {
		return Bid{}, false
	}
	best := bids[0]
	for _, b := range bids[1:] {
		switch c := b.Amount.Cmp(best.Amount); {
		case c > 0:
			best = b
		case c == 0 && b.BidTime.Before(best.BidTime):
			best = b
		case c == 0 && b.BidTime.Equal(best.BidTime) && b.Seq < best.Seq:
			best = b
		}
	}
	return best, true
}

// ResolveApproval decides whether the seller has to sign off on the result.
// Only a sold auction whose closing bid is under the buy-now threshold needs it.
func ResolveApproval(hasWinner bool, closingBid decimal.Decimal, buyNow *decimal.Decimal) ApprovalStatus {
	if !hasWinner || buyNow == nil {
		return ApprovalNone
	}
	if closingBid.LessThan(*buyNow) {
		return ApprovalPending
	}
	return ApprovalNone
}

// CheckoutState is what a buyer sees when asking whether they may pay.
type CheckoutState string

const (
	CheckoutUnlocked         CheckoutState = "unlocked"
	CheckoutAwaitingApproval CheckoutState = "awaiting_approval"
	CheckoutApprovalExpired  CheckoutState = "approval_expired"
	CheckoutLocked           CheckoutState = "locked"
	CheckoutNotWinner        CheckoutState = "not_winner"
	CheckoutNotEnded         CheckoutState = "not_ended"
)

// EvaluateCheckout derives checkout eligibility for userID. The approval
// deadline is only compared here, nothing waits on it.
func EvaluateCheckout(a *Auction, userID string, now time.Time) CheckoutState {
	if a.Status != StatusEnded {
		return CheckoutNotEnded
	}
	if a.WinnerID == nil || *a.WinnerID != userID {
		return CheckoutNotWinner
	}
	switch a.ApprovalStatus {
	case ApprovalNone, ApprovalApproved:
		return CheckoutUnlocked
	case ApprovalPending:
		if a.ApprovalExpired(now) {
			return CheckoutApprovalExpired
		}
		return CheckoutAwaitingApproval
	}
	return CheckoutLocked
}
