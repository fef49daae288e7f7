package auction

import (
	"context"
	"sort"
	"sync"
	"time"

	"auctionhouse/internal/notifier"
)

type fakeRepo struct {
	mu       sync.Mutex
	auctions map[string]*Auction
	bids     map[string][]Bid
	outbox   []notifier.Notification
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{auctions: map[string]*Auction{}, bids: map[string][]Bid{}}
}

func (r *fakeRepo) Create(_ context.Context, a *Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.auctions[a.ID]; ok {
		return ErrAuctionExists
	}
	cp := *a
	r.auctions[a.ID] = &cp
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id string) (*Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) List(_ context.Context, f ListFilter) ([]Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Auction
	for _, a := range r.auctions {
		if f.Status == "" || a.Status == f.Status {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) ListBids(_ context.Context, auctionID string) ([]Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Bid(nil), r.bids[auctionID]...), nil
}

func (r *fakeRepo) InsertBids(_ context.Context, bids []Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range bids {
		r.insertBid(b)
	}
	return nil
}

func (r *fakeRepo) insertBid(b Bid) {
	for _, have := range r.bids[b.AuctionID] {
		if have.ID == b.ID {
			return
		}
	}
	r.bids[b.AuctionID] = append(r.bids[b.AuctionID], b)
}

func (r *fakeRepo) MirrorLive(context.Context, []*LiveAuction) error { return nil }

func (r *fakeRepo) Finalize(_ context.Context, res *CloseResult, notes []notifier.Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[res.Auction.ID]
	if !ok {
		return false, ErrAuctionNotFound
	}
	for _, b := range res.Bids {
		r.insertBid(b)
	}
	if a.Status.Terminal() {
		return false, nil
	}
	created := a.CreatedAt
	*a = *res.Auction
	a.CreatedAt = created
	r.outbox = append(r.outbox, notes...)
	return true, nil
}

func (r *fakeRepo) MarkCancelled(_ context.Context, id string, at time.Time, notes []notifier.Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return false, ErrAuctionNotFound
	}
	if a.Status.Terminal() {
		return false, nil
	}
	a.Status = StatusCancelled
	a.UpdatedAt = at
	r.outbox = append(r.outbox, notes...)
	return true, nil
}

func (r *fakeRepo) Decide(_ context.Context, id string, d ApprovalDecision, notes []notifier.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return ErrAuctionNotFound
	}
	if a.ApprovalStatus != ApprovalPending {
		return ErrAlreadyDecided
	}
	a.ApprovalStatus = d.Decision
	a.Decision = &d
	r.outbox = append(r.outbox, notes...)
	return nil
}

func (r *fakeRepo) ActivateDue(_ context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, a := range r.auctions {
		if a.Status == StatusScheduled && !now.Before(a.StartsAt) {
			a.Status = StatusActive
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (r *fakeRepo) DueForClose(_ context.Context, now time.Time, _ int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, a := range r.auctions {
		if !a.Status.Terminal() && !now.Before(a.EndsAt) {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (r *fakeRepo) ListWins(_ context.Context, userID string, _, _ int) ([]Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Auction
	for _, a := range r.auctions {
		if a.WinnerID != nil && *a.WinnerID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListPendingApprovals(_ context.Context, sellerID string, _, _ int) ([]Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Auction
	for _, a := range r.auctions {
		if a.SellerID == sellerID && a.ApprovalStatus == ApprovalPending {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeRepo) outboxEvents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.outbox))
	for _, n := range r.outbox {
		out = append(out, n.EventType+":"+n.RecipientID)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []LiveEvent
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, ev LiveEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Event)
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []notifier.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note notifier.Notification) error {
	n.mu.Lock()
	n.notes = append(n.notes, note)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notes)
}

type recordingWatcher struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
	forgotten []string
}

func (w *recordingWatcher) Schedule(id string, endsAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scheduled == nil {
		w.scheduled = map[string]time.Time{}
	}
	w.scheduled[id] = endsAt
}

func (w *recordingWatcher) Forget(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.forgotten = append(w.forgotten, id)
}
