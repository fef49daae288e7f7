package auction

import (
	"context"
	"time"

	"auctionhouse/internal/notifier"

	"github.com/shopspring/decimal"
)

// LiveAuction is the contended per-auction state held by a Ledger while the
// auction can still take bids.
type LiveAuction struct {
	ID          string
	SellerID    string
	Status      Status
	BasePrice   decimal.Decimal
	BuyNowPrice *decimal.Decimal
	CurrentBid  decimal.Decimal
	LeaderID    string
	TotalBids   int
	StartsAt    time.Time
	EndsAt      time.Time
	Extensions  int
	LastBidAt   time.Time
}

// EffectiveStatus folds in the scheduled->active transition that happens at
// the start time, whether or not anything has recorded it yet.
func (l *LiveAuction) EffectiveStatus(now time.Time) Status {
	if l.Status == StatusScheduled && !now.Before(l.StartsAt) {
		return StatusActive
	}
	return l.Status
}

// BidCommit is a validated bid. Expected is the current bid the amount was
// validated against; the ledger rejects the commit with ErrRaceLost when the
// stored value no longer matches.
type BidCommit struct {
	AuctionID string
	BidID     string
	BidderID  string
	Amount    decimal.Decimal
	Expected  decimal.Decimal
	Now       time.Time
	Policy    ExtensionPolicy
}

type BidReceipt struct {
	Bid            Bid
	TotalBids      int
	EndsAt         time.Time
	Extended       bool
	PreviousLeader string
}

// Ledger owns the live (current_bid, total_bids, auction_end_at) triple. Every
// method is atomic per auction; CommitBid and Close are mutually exclusive for
// the same auction.
type Ledger interface {
	Open(ctx context.Context, a *LiveAuction) error
	Snapshot(ctx context.Context, auctionID string) (*LiveAuction, error)
	CommitBid(ctx context.Context, c BidCommit) (*BidReceipt, error)
	// Close ends the auction when now has reached the deadline and returns the
	// frozen state with every accepted bid. Closing an already ended auction
	// returns the same data again.
	Close(ctx context.Context, auctionID string, now time.Time) (*LiveAuction, []Bid, error)
	Cancel(ctx context.Context, auctionID string, now time.Time) error
	// Release drops the live state once the result is durable elsewhere.
	Release(ctx context.Context, auctionID string) error
	Active(ctx context.Context) ([]*LiveAuction, error)
}

// CloseResult is what the closing job persists.
type CloseResult struct {
	Auction *Auction
	Bids    []Bid
}

// Repository is the durable store of auctions, bids and the notification outbox.
type Repository interface {
	Create(ctx context.Context, a *Auction) error
	Get(ctx context.Context, id string) (*Auction, error)
	List(ctx context.Context, f ListFilter) ([]Auction, error)
	ListBids(ctx context.Context, auctionID string) ([]Bid, error)
	InsertBids(ctx context.Context, bids []Bid) error
	MirrorLive(ctx context.Context, live []*LiveAuction) error
	// Finalize records the closing result and queues notifications in one
	// transaction. It reports false when the auction was already terminal.
	Finalize(ctx context.Context, res *CloseResult, notes []notifier.Notification) (bool, error)
	MarkCancelled(ctx context.Context, id string, at time.Time, notes []notifier.Notification) (bool, error)
	// Decide applies the decision only while the auction is pending approval
	// and returns ErrAlreadyDecided otherwise.
	Decide(ctx context.Context, id string, d ApprovalDecision, notes []notifier.Notification) error
	ActivateDue(ctx context.Context, now time.Time) ([]string, error)
	DueForClose(ctx context.Context, now time.Time, limit int) ([]string, error)
	ListWins(ctx context.Context, userID string, limit, offset int) ([]Auction, error)
	ListPendingApprovals(ctx context.Context, sellerID string, limit, offset int) ([]Auction, error)
}

// LiveEvent is pushed to everyone watching an auction.
type LiveEvent struct {
	Event      string           `json:"event"`
	AuctionID  string           `json:"auction_id"`
	Seq        int              `json:"seq"`
	Status     Status           `json:"auction_status,omitempty"`
	CurrentBid *decimal.Decimal `json:"current_bid,omitempty"`
	LeaderID   string           `json:"leader_id,omitempty"`
	TotalBids  int              `json:"total_bids"`
	EndsAt     time.Time        `json:"auction_end_at"`
	ServerNow  time.Time        `json:"server_now"`
	Extended   bool             `json:"extended,omitempty"`
	WinnerID   string           `json:"winner_id,omitempty"`
}

const (
	LiveEventBid       = "bid"
	LiveEventExtended  = "extended"
	LiveEventStarted   = "started"
	LiveEventEnded     = "ended"
	LiveEventCancelled = "cancelled"
)

type LivePublisher interface {
	Publish(ctx context.Context, auctionID string, ev LiveEvent) error
}

// DeadlineWatcher is told whenever an auction deadline is set or moved, and
// when an auction no longer needs closing.
type DeadlineWatcher interface {
	Schedule(auctionID string, endsAt time.Time)
	Forget(auctionID string)
}
