package auction

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool { return s == StatusEnded || s == StatusCancelled }

// CanTransition reports whether the lifecycle allows moving from one status to
// another. Ended and cancelled are terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusScheduled:
		return to == StatusActive || to == StatusCancelled
	case StatusActive:
		return to == StatusEnded || to == StatusCancelled
	}
	return false
}

// MoneyPlaces is the scale of every stored amount (NUMERIC(18,2)).
const MoneyPlaces = 2

// IsMoney reports whether d is representable without rounding.
func IsMoney(d decimal.Decimal) bool { return d.Equal(d.Truncate(MoneyPlaces)) }

type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = "none"
	ApprovalPending  ApprovalStatus = "pending_approval"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) Result() ApprovalStatus {
	if d == DecisionApprove {
		return ApprovalApproved
	}
	return ApprovalRejected
}

type Auction struct {
	ID               string            `json:"id"`
	SellerID         string            `json:"seller_id"`
	BasePrice        decimal.Decimal   `json:"base_price"`
	CurrentBid       decimal.Decimal   `json:"current_bid"`
	BuyNowPrice      *decimal.Decimal  `json:"buy_now_price,omitempty"`
	TotalBids        int               `json:"total_bids"`
	Status           Status            `json:"auction_status"  example:"active"`
	StartsAt         time.Time         `json:"starts_at"       example:"2025-07-27T16:05:05Z"`
	EndsAt           time.Time         `json:"auction_end_at"  example:"2025-07-27T16:05:05Z"`
	Extensions       int               `json:"extensions"`
	LeaderID         string            `json:"leader_id,omitempty"`
	WinnerID         *string           `json:"winner_id,omitempty"`
	ApprovalStatus   ApprovalStatus    `json:"approval_status" example:"none"`
	ApprovalDeadline *time.Time        `json:"approval_deadline,omitempty"`
	Decision         *ApprovalDecision `json:"decision,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ApprovalExpired reports whether a pending approval has outlived its deadline.
func (a *Auction) ApprovalExpired(now time.Time) bool {
	return a.ApprovalStatus == ApprovalPending &&
		a.ApprovalDeadline != nil &&
		!now.Before(*a.ApprovalDeadline)
}

type Bid struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Seq       int             `json:"seq"`
	BidTime   time.Time       `json:"bid_time"`
}

type ApprovalDecision struct {
	DecidedBy string         `json:"decided_by"`
	Decision  ApprovalStatus `json:"decision"`
	Notes     string         `json:"notes,omitempty"`
	DecidedAt time.Time      `json:"decided_at"`
}

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID string
	Admin  bool
}

// CanManage reports whether the actor may cancel or decide on the auction.
func (a Actor) CanManage(auc *Auction) bool {
	return a.Admin || (a.UserID != "" && a.UserID == auc.SellerID)
}

type CreateAuctionInput struct {
	ID          string
	SellerID    string
	BasePrice   decimal.Decimal
	BuyNowPrice *decimal.Decimal
	StartsAt    time.Time
	EndsAt      time.Time
}

type BidResult struct {
	Accepted   bool            `json:"accepted"`
	BidID      string          `json:"bid_id"`
	CurrentBid decimal.Decimal `json:"current_bid"`
	TotalBids  int             `json:"total_bids"`
	EndsAt     time.Time       `json:"auction_end_at"`
	Extended   bool            `json:"extended"`
}

type Timer struct {
	ServerNow time.Time `json:"server_now"`
	EndsAt    time.Time `json:"auction_end_at"`
	Status    Status    `json:"auction_status"`
}

type CloseOutcome struct {
	Auction *Auction
	// Transitioned is false when the auction had already been closed or
	// cancelled by an earlier run.
	Transitioned bool
}

type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}
