package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auctionhouse/internal/notifier"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExpiryPolicy says what a passed approval deadline means for the seller.
type ExpiryPolicy string

const (
	// ExpiryOpen keeps the decision open after the deadline; the auction is
	// only reported as expired.
	ExpiryOpen ExpiryPolicy = "open"
	// ExpiryLocked refuses decisions after the deadline.
	ExpiryLocked ExpiryPolicy = "locked"
)

type Options struct {
	MinIncrement  decimal.Decimal
	Extension     ExtensionPolicy
	ApprovalGrace time.Duration
	ExpiryPolicy  ExpiryPolicy
	// PersistBids writes each accepted bid to the repository as it is
	// committed. Set it for ledgers that have no durable bid feed of their own.
	PersistBids bool
}

func DefaultOptions() Options {
	return Options{
		MinIncrement:  decimal.Zero,
		Extension:     DefaultExtensionPolicy(),
		ApprovalGrace: 48 * time.Hour,
		ExpiryPolicy:  ExpiryOpen,
	}
}

type IAuctionService interface {
	CreateAuction(ctx context.Context, in CreateAuctionInput) (*Auction, error)
	GetAuction(ctx context.Context, id string) (*Auction, error)
	ListAuctions(ctx context.Context, status Status, limit, offset int) ([]Auction, error)
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*BidResult, error)
	CancelAuction(ctx context.Context, auctionID string, actor Actor) error
	CloseAuction(ctx context.Context, auctionID string) (*CloseOutcome, error)
	ActivateDue(ctx context.Context) (int, error)
	DueForClose(ctx context.Context, limit int) ([]string, error)
	RestoreLive(ctx context.Context) (int, error)
	Timer(ctx context.Context, auctionID string) (*Timer, error)
	DecideApproval(ctx context.Context, auctionID string, actor Actor, d Decision, notes string) (*Auction, error)
	CheckoutEligibility(ctx context.Context, auctionID, userID string) (CheckoutState, error)
	ListWins(ctx context.Context, userID string, limit, offset int) ([]Auction, error)
	ListPendingApprovals(ctx context.Context, sellerID string, limit, offset int) ([]Auction, error)
	Now() time.Time
}

type auctionService struct {
	ledger  Ledger
	repo    Repository
	live    LivePublisher
	notify  notifier.Notifier
	clock   clockwork.Clock
	opts    Options
	watcher DeadlineWatcher
}

var _ IAuctionService = (*auctionService)(nil)

func NewAuctionService(ledger Ledger, repo Repository, live LivePublisher, notify notifier.Notifier,
	clock clockwork.Clock, opts Options) *auctionService {
	return &auctionService{
		ledger:  ledger,
		repo:    repo,
		live:    live,
		notify:  notify,
		clock:   clock,
		opts:    opts,
		watcher: noopWatcher{},
	}
}

// SetDeadlineWatcher must be called before the service takes traffic.
func (svc *auctionService) SetDeadlineWatcher(w DeadlineWatcher) {
	svc.watcher = w
}

func (svc *auctionService) Now() time.Time { return svc.clock.Now() }

func (svc *auctionService) CreateAuction(ctx context.Context, in CreateAuctionInput) (*Auction, error) {
	now := svc.clock.Now()
	switch {
	case in.SellerID == "":
		return nil, invalidAuction("seller_id is required")
	case !in.BasePrice.IsPositive():
		return nil, invalidAuction("base_price must be positive")
	case in.BuyNowPrice != nil && !in.BuyNowPrice.GreaterThan(in.BasePrice):
		return nil, invalidAuction("buy_now_price must exceed base_price")
	case !IsMoney(in.BasePrice) || (in.BuyNowPrice != nil && !IsMoney(*in.BuyNowPrice)):
		return nil, invalidAuction("prices allow at most 2 decimal places")
	}
	if in.StartsAt.IsZero() {
		in.StartsAt = now
	}
	if !in.EndsAt.After(in.StartsAt) {
		return nil, invalidAuction("ends_at must be after starts_at")
	}
	if !in.EndsAt.After(now) {
		return nil, invalidAuction("ends_at must be in the future")
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	status := StatusActive
	if in.StartsAt.After(now) {
		status = StatusScheduled
	}
	a := &Auction{
		ID:             in.ID,
		SellerID:       in.SellerID,
		BasePrice:      in.BasePrice,
		CurrentBid:     in.BasePrice,
		BuyNowPrice:    in.BuyNowPrice,
		Status:         status,
		StartsAt:       in.StartsAt.UTC(),
		EndsAt:         in.EndsAt.UTC(),
		ApprovalStatus: ApprovalNone,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
	if err := svc.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	if err := svc.ledger.Open(ctx, liveFromAuction(a)); err != nil {
		// the row is durable; the first bid reopens the live state
		zap.L().Warn("auction.open_deferred", zap.String("auction_id", a.ID), zap.Error(err))
	}
	svc.watcher.Schedule(a.ID, a.EndsAt)

	zap.L().Info("auction_created",
		zap.String("auction_id", a.ID),
		zap.String("seller_id", a.SellerID),
		zap.String("status", string(a.Status)),
		zap.Time("ends_at", a.EndsAt),
	)
	return a, nil
}

// GetAuction serves the durable row with the live ledger state laid over it
// while the auction is still running.
func (svc *auctionService) GetAuction(ctx context.Context, id string) (*Auction, error) {
	a, err := svc.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return a, nil
	}
	snap, err := svc.ledger.Snapshot(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrAuctionNotFound) {
			zap.L().Warn("auction.snapshot", zap.String("auction_id", id), zap.Error(err))
		}
		return a, nil
	}
	a.Status = snap.EffectiveStatus(svc.clock.Now())
	a.CurrentBid = snap.CurrentBid
	a.TotalBids = snap.TotalBids
	a.LeaderID = snap.LeaderID
	a.EndsAt = snap.EndsAt
	a.Extensions = snap.Extensions
	return a, nil
}

func (svc *auctionService) ListAuctions(ctx context.Context, status Status, limit, offset int) ([]Auction, error) {
	if limit == 0 {
		limit = 10
	}
	return svc.repo.List(ctx, ListFilter{Status: status, Limit: limit, Offset: offset})
}

// PlaceBid validates the bid against a snapshot of the ledger and commits it
// with compare-and-swap on that snapshot's current bid. A concurrent winner
// makes the commit fail with ErrRaceLost; the caller refetches and resubmits.
func (svc *auctionService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*BidResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !IsMoney(amount) {
		return nil, ErrAmountPrecision
	}
	snap, err := svc.liveSnapshot(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	now := svc.clock.Now()
	if err := svc.validateBid(snap, bidderID, amount, now); err != nil {
		zap.L().Debug("bid_rejected",
			zap.String("auction_id", auctionID),
			zap.String("bidder_id", bidderID),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return nil, err
	}

	receipt, err := svc.ledger.CommitBid(ctx, BidCommit{
		AuctionID: auctionID,
		BidID:     uuid.NewString(),
		BidderID:  bidderID,
		Amount:    amount,
		Expected:  snap.CurrentBid,
		Now:       now,
		Policy:    svc.opts.Extension,
	})
	if err != nil {
		if errors.Is(err, ErrAuctionNotFound) {
			return nil, svc.settledError(ctx, auctionID)
		}
		return nil, err
	}

	if svc.opts.PersistBids {
		if err := svc.repo.InsertBids(ctx, []Bid{receipt.Bid}); err != nil {
			zap.L().Error("auction.persist_bid",
				zap.String("auction_id", auctionID),
				zap.String("bid_id", receipt.Bid.ID),
				zap.Error(err))
		}
	}
	svc.afterBid(ctx, snap, receipt, now)
	return &BidResult{
		Accepted:   true,
		BidID:      receipt.Bid.ID,
		CurrentBid: receipt.Bid.Amount,
		TotalBids:  receipt.TotalBids,
		EndsAt:     receipt.EndsAt,
		Extended:   receipt.Extended,
	}, nil
}

func (svc *auctionService) validateBid(snap *LiveAuction, bidderID string, amount decimal.Decimal, now time.Time) error {
	switch snap.EffectiveStatus(now) {
	case StatusActive:
	case StatusEnded:
		return ErrAuctionEnded
	case StatusCancelled:
		return ErrAuctionCancelled
	default:
		return ErrAuctionNotActive
	}
	if !now.Before(snap.EndsAt) {
		return ErrAuctionClosed
	}
	if bidderID == snap.SellerID {
		return ErrSelfBid
	}
	if !amount.GreaterThan(snap.CurrentBid) {
		return ErrBidBelowCurrent
	}
	if amount.Sub(snap.CurrentBid).LessThan(svc.opts.MinIncrement) {
		return ErrBidBelowIncrement
	}
	return nil
}

func (svc *auctionService) afterBid(ctx context.Context, snap *LiveAuction, r *BidReceipt, now time.Time) {
	amount := r.Bid.Amount
	ev := LiveEvent{
		Event:      LiveEventBid,
		AuctionID:  snap.ID,
		Seq:        r.TotalBids,
		Status:     StatusActive,
		CurrentBid: &amount,
		LeaderID:   r.Bid.BidderID,
		TotalBids:  r.TotalBids,
		EndsAt:     r.EndsAt,
		ServerNow:  now,
		Extended:   r.Extended,
	}
	svc.publish(ctx, ev)
	if r.Extended {
		ev.Event = LiveEventExtended
		svc.publish(ctx, ev)
		svc.watcher.Schedule(snap.ID, r.EndsAt)
		zap.L().Info("auction_extended",
			zap.String("auction_id", snap.ID),
			zap.Time("ends_at", r.EndsAt),
		)
	}

	payload := map[string]any{
		"bid_id":         r.Bid.ID,
		"amount":         amount.String(),
		"total_bids":     r.TotalBids,
		"auction_end_at": r.EndsAt,
	}
	notes := []notifier.Notification{
		notifier.New(notifier.EventBidPlaced, snap.ID, snap.SellerID, payload, now),
	}
	if r.PreviousLeader != "" && r.PreviousLeader != r.Bid.BidderID {
		notes = append(notes, notifier.New(notifier.EventOutbid, snap.ID, r.PreviousLeader, payload, now))
	}
	svc.notifyAsync(notes...)
}

// CancelAuction is a seller/admin action valid until the auction has ended.
func (svc *auctionService) CancelAuction(ctx context.Context, auctionID string, actor Actor) error {
	a, err := svc.repo.Get(ctx, auctionID)
	if err != nil {
		return err
	}
	if !actor.CanManage(a) {
		return ErrForbidden
	}
	if a.Status == StatusCancelled {
		return ErrAuctionCancelled
	}
	if !CanTransition(a.Status, StatusCancelled) {
		return ErrAuctionEnded
	}

	now := svc.clock.Now()
	leader := ""
	if snap, err := svc.ledger.Snapshot(ctx, auctionID); err == nil {
		leader = snap.LeaderID
	}
	if err := svc.ledger.Cancel(ctx, auctionID, now); err != nil && !errors.Is(err, ErrAuctionNotFound) {
		return err
	}

	notes := []notifier.Notification{
		notifier.New(notifier.EventAuctionCancelled, auctionID, a.SellerID, nil, now),
	}
	if leader != "" {
		notes = append(notes, notifier.New(notifier.EventAuctionCancelled, auctionID, leader, nil, now))
	}
	ok, err := svc.repo.MarkCancelled(ctx, auctionID, now, notes)
	if err != nil {
		return err
	}
	if !ok {
		return svc.settledError(ctx, auctionID)
	}

	svc.release(ctx, auctionID)
	svc.watcher.Forget(auctionID)
	svc.publish(ctx, LiveEvent{
		Event:     LiveEventCancelled,
		AuctionID: auctionID,
		Status:    StatusCancelled,
		EndsAt:    a.EndsAt,
		ServerNow: now,
	})
	zap.L().Info("auction_cancelled", zap.String("auction_id", auctionID), zap.String("by", actor.UserID))
	return nil
}

// CloseAuction is the closing job body. It is idempotent: re-running it after
// a partial failure, or after success, converges on the same persisted result.
func (svc *auctionService) CloseAuction(ctx context.Context, auctionID string) (*CloseOutcome, error) {
	now := svc.clock.Now()
	live, bids, err := svc.ledger.Close(ctx, auctionID, now)
	switch {
	case err == nil:
		return svc.finalize(ctx, live, bids, now)
	case errors.Is(err, ErrAuctionNotFound):
		return svc.closeFromRepository(ctx, auctionID, now)
	case errors.Is(err, ErrAuctionCancelled):
		return svc.settleCancelled(ctx, auctionID, now)
	default:
		return nil, err
	}
}

func (svc *auctionService) finalize(ctx context.Context, live *LiveAuction, bids []Bid, now time.Time) (*CloseOutcome, error) {
	res := &Auction{
		ID:          live.ID,
		SellerID:    live.SellerID,
		BasePrice:   live.BasePrice,
		CurrentBid:  live.CurrentBid,
		BuyNowPrice: live.BuyNowPrice,
		TotalBids:   live.TotalBids,
		Status:      StatusEnded,
		StartsAt:    live.StartsAt,
		EndsAt:      live.EndsAt,
		Extensions:  live.Extensions,
		UpdatedAt:   now.UTC(),
	}

	if len(bids) < live.TotalBids {
		bids = svc.withPersistedBids(ctx, live.ID, bids)
	}
	winner, hasWinner := ResolveWinner(bids)
	winnerID := winner.BidderID
	if !hasWinner && live.TotalBids > 0 && live.LeaderID != "" {
		winnerID, hasWinner = live.LeaderID, true
	}
	if hasWinner {
		res.WinnerID = &winnerID
		res.LeaderID = winnerID
	}
	res.ApprovalStatus = ResolveApproval(hasWinner, res.CurrentBid, res.BuyNowPrice)
	if res.ApprovalStatus == ApprovalPending {
		deadline := now.Add(svc.opts.ApprovalGrace).UTC()
		res.ApprovalDeadline = &deadline
	}

	transitioned, err := svc.repo.Finalize(ctx, &CloseResult{Auction: res, Bids: bids}, closingNotifications(res, now))
	if err != nil {
		return nil, fmt.Errorf("finalize %s: %w", live.ID, err)
	}
	svc.release(ctx, live.ID)

	if !transitioned {
		stored, err := svc.repo.Get(ctx, live.ID)
		if err != nil {
			return nil, err
		}
		return &CloseOutcome{Auction: stored}, nil
	}

	svc.publish(ctx, LiveEvent{
		Event:      LiveEventEnded,
		AuctionID:  res.ID,
		Seq:        res.TotalBids,
		Status:     StatusEnded,
		CurrentBid: &res.CurrentBid,
		TotalBids:  res.TotalBids,
		EndsAt:     res.EndsAt,
		ServerNow:  now,
		WinnerID:   winnerID,
	})
	zap.L().Info("auction_closed",
		zap.String("auction_id", res.ID),
		zap.String("winner_id", winnerID),
		zap.String("current_bid", res.CurrentBid.String()),
		zap.Int("total_bids", res.TotalBids),
		zap.String("approval_status", string(res.ApprovalStatus)),
	)
	return &CloseOutcome{Auction: res, Transitioned: true}, nil
}

// closeFromRepository handles an auction whose live state is gone: either it
// was already finalised and released, or the ledger lost it and the bids
// persisted from the bid stream are all that is left.
func (svc *auctionService) closeFromRepository(ctx context.Context, auctionID string, now time.Time) (*CloseOutcome, error) {
	a, err := svc.repo.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return &CloseOutcome{Auction: a}, nil
	}
	if now.Before(a.EndsAt) {
		return nil, &NotDueError{EndsAt: a.EndsAt}
	}

	bids, err := svc.repo.ListBids(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	zap.L().Warn("auction.close_without_ledger",
		zap.String("auction_id", auctionID),
		zap.Int("persisted_bids", len(bids)),
	)
	live := liveFromAuction(a)
	live.Status = StatusEnded
	if w, ok := ResolveWinner(bids); ok {
		live.CurrentBid = w.Amount
		live.LeaderID = w.BidderID
		live.TotalBids = len(bids)
	}
	return svc.finalize(ctx, live, bids, now)
}

func (svc *auctionService) settleCancelled(ctx context.Context, auctionID string, now time.Time) (*CloseOutcome, error) {
	if _, err := svc.repo.MarkCancelled(ctx, auctionID, now, nil); err != nil {
		return nil, err
	}
	svc.release(ctx, auctionID)
	a, err := svc.repo.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return &CloseOutcome{Auction: a}, nil
}

func (svc *auctionService) ActivateDue(ctx context.Context) (int, error) {
	now := svc.clock.Now()
	ids, err := svc.repo.ActivateDue(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		svc.publish(ctx, LiveEvent{Event: LiveEventStarted, AuctionID: id, Status: StatusActive, ServerNow: now})
	}
	return len(ids), nil
}

func (svc *auctionService) DueForClose(ctx context.Context, limit int) ([]string, error) {
	return svc.repo.DueForClose(ctx, svc.clock.Now(), limit)
}

// RestoreLive runs at boot. Auctions the ledger no longer holds (a memory
// ledger after restart, a flushed Redis) are reopened from the store, and
// every live deadline is handed to the watcher.
func (svc *auctionService) RestoreLive(ctx context.Context) (int, error) {
	const page = 100
	restored := 0
	for _, st := range []Status{StatusScheduled, StatusActive} {
		for offset := 0; ; offset += page {
			auctions, err := svc.repo.List(ctx, ListFilter{Status: st, Limit: page, Offset: offset})
			if err != nil {
				return restored, err
			}
			for i := range auctions {
				a := &auctions[i]
				snap, err := svc.ledger.Snapshot(ctx, a.ID)
				switch {
				case err == nil:
					svc.watcher.Schedule(a.ID, snap.EndsAt)
					continue
				case !errors.Is(err, ErrAuctionNotFound):
					return restored, err
				}
				if err := svc.reopen(ctx, a); err != nil {
					return restored, err
				}
				restored++
				svc.watcher.Schedule(a.ID, a.EndsAt)
			}
			if len(auctions) < page {
				break
			}
		}
	}
	if restored > 0 {
		zap.L().Info("live auctions restored", zap.Int("count", restored))
	}
	return restored, nil
}

// reopen rebuilds live state from the durable row and any persisted bids,
// whichever is further ahead.
func (svc *auctionService) reopen(ctx context.Context, a *Auction) error {
	live := liveFromAuction(a)
	bids, err := svc.repo.ListBids(ctx, a.ID)
	if err != nil {
		return err
	}
	if n := len(bids); n > 0 && bids[n-1].Seq >= live.TotalBids {
		last := bids[n-1]
		live.CurrentBid = last.Amount
		live.LeaderID = last.BidderID
		live.TotalBids = last.Seq
		live.LastBidAt = last.BidTime
	}
	if err := svc.ledger.Open(ctx, live); err != nil && !errors.Is(err, ErrAuctionExists) {
		return fmt.Errorf("reopen %s: %w", a.ID, err)
	}
	return nil
}

// Timer returns the authoritative clock next to the live deadline; clients
// derive their clock offset from it.
func (svc *auctionService) Timer(ctx context.Context, auctionID string) (*Timer, error) {
	now := svc.clock.Now()
	snap, err := svc.ledger.Snapshot(ctx, auctionID)
	if err == nil {
		return &Timer{ServerNow: now, EndsAt: snap.EndsAt, Status: snap.EffectiveStatus(now)}, nil
	}
	if !errors.Is(err, ErrAuctionNotFound) {
		return nil, err
	}
	a, err := svc.repo.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return &Timer{ServerNow: now, EndsAt: a.EndsAt, Status: a.Status}, nil
}

// DecideApproval records the seller's (or an admin's) verdict on a winning bid
// below the buy-now price. Decisions are final.
func (svc *auctionService) DecideApproval(ctx context.Context, auctionID string, actor Actor, d Decision, notes string) (*Auction, error) {
	if d != DecisionApprove && d != DecisionReject {
		return nil, ErrInvalidDecision
	}
	a, err := svc.repo.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(a) {
		return nil, ErrForbidden
	}
	switch a.ApprovalStatus {
	case ApprovalPending:
	case ApprovalApproved, ApprovalRejected:
		return nil, ErrAlreadyDecided
	default:
		return nil, ErrNoApprovalNeeded
	}

	now := svc.clock.Now()
	if svc.opts.ExpiryPolicy == ExpiryLocked && a.ApprovalExpired(now) {
		return nil, ErrApprovalExpired
	}

	decision := ApprovalDecision{
		DecidedBy: actor.UserID,
		Decision:  d.Result(),
		Notes:     notes,
		DecidedAt: now.UTC(),
	}
	if err := svc.repo.Decide(ctx, auctionID, decision, decisionNotifications(a, decision, now)); err != nil {
		return nil, err
	}

	a.ApprovalStatus = decision.Decision
	a.Decision = &decision
	a.UpdatedAt = decision.DecidedAt
	zap.L().Info("approval_decided",
		zap.String("auction_id", auctionID),
		zap.String("decision", string(decision.Decision)),
		zap.String("by", actor.UserID),
	)
	return a, nil
}

func (svc *auctionService) CheckoutEligibility(ctx context.Context, auctionID, userID string) (CheckoutState, error) {
	a, err := svc.repo.Get(ctx, auctionID)
	if err != nil {
		return "", err
	}
	return EvaluateCheckout(a, userID, svc.clock.Now()), nil
}

func (svc *auctionService) ListWins(ctx context.Context, userID string, limit, offset int) ([]Auction, error) {
	if limit == 0 {
		limit = 10
	}
	return svc.repo.ListWins(ctx, userID, limit, offset)
}

func (svc *auctionService) ListPendingApprovals(ctx context.Context, sellerID string, limit, offset int) ([]Auction, error) {
	if limit == 0 {
		limit = 10
	}
	return svc.repo.ListPendingApprovals(ctx, sellerID, limit, offset)
}

// liveSnapshot reads the ledger and reopens live state from the durable row
// when the ledger lost it while the auction still runs.
func (svc *auctionService) liveSnapshot(ctx context.Context, auctionID string) (*LiveAuction, error) {
	snap, err := svc.ledger.Snapshot(ctx, auctionID)
	if !errors.Is(err, ErrAuctionNotFound) {
		return snap, err
	}
	a, err := svc.repo.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case StatusEnded:
		return nil, ErrAuctionEnded
	case StatusCancelled:
		return nil, ErrAuctionCancelled
	}
	if !svc.clock.Now().Before(a.EndsAt) {
		return nil, ErrAuctionClosed
	}
	if err := svc.reopen(ctx, a); err != nil {
		return nil, err
	}
	zap.L().Warn("auction.ledger_reopened", zap.String("auction_id", auctionID))
	svc.watcher.Schedule(a.ID, a.EndsAt)
	return svc.ledger.Snapshot(ctx, auctionID)
}

// withPersistedBids fills a ledger bid log that lost entries (reopened after
// a restart) from the repository. Bids are matched by id.
func (svc *auctionService) withPersistedBids(ctx context.Context, auctionID string, bids []Bid) []Bid {
	stored, err := svc.repo.ListBids(ctx, auctionID)
	if err != nil {
		zap.L().Warn("auction.list_bids", zap.String("auction_id", auctionID), zap.Error(err))
		return bids
	}
	seen := make(map[string]struct{}, len(bids))
	for _, b := range bids {
		seen[b.ID] = struct{}{}
	}
	for _, b := range stored {
		if _, ok := seen[b.ID]; !ok {
			bids = append(bids, b)
		}
	}
	return bids
}

// settledError explains why an auction without live state takes no bids.
func (svc *auctionService) settledError(ctx context.Context, auctionID string) error {
	a, err := svc.repo.Get(ctx, auctionID)
	if err != nil {
		return err
	}
	switch a.Status {
	case StatusEnded:
		return ErrAuctionEnded
	case StatusCancelled:
		return ErrAuctionCancelled
	}
	return ErrAuctionNotActive
}

func (svc *auctionService) release(ctx context.Context, auctionID string) {
	if err := svc.ledger.Release(ctx, auctionID); err != nil {
		zap.L().Warn("auction.release", zap.String("auction_id", auctionID), zap.Error(err))
	}
}

func (svc *auctionService) publish(ctx context.Context, ev LiveEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := svc.live.Publish(ctx, ev.AuctionID, ev); err != nil {
		zap.L().Warn("auction.live_publish", zap.String("event", ev.Event), zap.Error(err))
	}
}

func (svc *auctionService) notifyAsync(notes ...notifier.Notification) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, n := range notes {
			if err := svc.notify.Notify(ctx, n); err != nil {
				zap.L().Warn("auction.notify", zap.String("event", n.EventType), zap.Error(err))
			}
		}
	}()
}

func liveFromAuction(a *Auction) *LiveAuction {
	return &LiveAuction{
		ID:          a.ID,
		SellerID:    a.SellerID,
		Status:      a.Status,
		BasePrice:   a.BasePrice,
		BuyNowPrice: a.BuyNowPrice,
		CurrentBid:  a.CurrentBid,
		LeaderID:    a.LeaderID,
		TotalBids:   a.TotalBids,
		StartsAt:    a.StartsAt,
		EndsAt:      a.EndsAt,
		Extensions:  a.Extensions,
	}
}

func closingNotifications(a *Auction, now time.Time) []notifier.Notification {
	payload := map[string]any{
		"current_bid": a.CurrentBid.String(),
		"total_bids":  a.TotalBids,
	}
	if a.WinnerID == nil {
		return []notifier.Notification{
			notifier.New(notifier.EventAuctionEnded, a.ID, a.SellerID, payload, now),
		}
	}
	payload["winner_id"] = *a.WinnerID
	if a.ApprovalStatus == ApprovalPending {
		payload["approval_deadline"] = a.ApprovalDeadline
		return []notifier.Notification{
			notifier.New(notifier.EventApprovalRequested, a.ID, a.SellerID, payload, now),
			notifier.New(notifier.EventAuctionEnded, a.ID, *a.WinnerID, payload, now),
		}
	}
	return []notifier.Notification{
		notifier.New(notifier.EventAuctionEnded, a.ID, a.SellerID, payload, now),
		notifier.New(notifier.EventCheckoutUnlocked, a.ID, *a.WinnerID, payload, now),
	}
}

func decisionNotifications(a *Auction, d ApprovalDecision, now time.Time) []notifier.Notification {
	if a.WinnerID == nil {
		return nil
	}
	payload := map[string]any{
		"decision":    d.Decision,
		"notes":       d.Notes,
		"current_bid": a.CurrentBid.String(),
	}
	event := notifier.EventApprovalRejected
	if d.Decision == ApprovalApproved {
		event = notifier.EventCheckoutUnlocked
	}
	return []notifier.Notification{notifier.New(event, a.ID, *a.WinnerID, payload, now)}
}

type noopWatcher struct{}

func (noopWatcher) Schedule(string, time.Time) {}
func (noopWatcher) Forget(string)              {}
