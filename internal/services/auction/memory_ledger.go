package auction

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memEntry struct {
	mu   sync.Mutex
	live LiveAuction
	bids []Bid
}

// MemoryLedger keeps live auctions in process memory, serialised by one mutex
// per auction. It backs single-node deployments (LEDGER_BACKEND=memory).
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]*memEntry)}
}

func (m *MemoryLedger) entry(id string) (*memEntry, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrAuctionNotFound
	}
	return e, nil
}

func (m *MemoryLedger) Open(_ context.Context, a *LiveAuction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[a.ID]; ok {
		return ErrAuctionExists
	}
	m.entries[a.ID] = &memEntry{live: *a}
	return nil
}

func (m *MemoryLedger) Snapshot(_ context.Context, auctionID string) (*LiveAuction, error) {
	e, err := m.entry(auctionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.live
	return &snap, nil
}

func (m *MemoryLedger) CommitBid(_ context.Context, c BidCommit) (*BidReceipt, error) {
	e, err := m.entry(c.AuctionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	l := &e.live
	if l.Status == StatusScheduled && !c.Now.Before(l.StartsAt) {
		l.Status = StatusActive
	}
	switch l.Status {
	case StatusActive:
	case StatusCancelled:
		return nil, ErrAuctionCancelled
	case StatusEnded:
		return nil, ErrAuctionEnded
	default:
		return nil, ErrAuctionNotActive
	}
	if !c.Now.Before(l.EndsAt) {
		return nil, ErrAuctionClosed
	}
	if c.BidderID == l.SellerID {
		return nil, ErrSelfBid
	}
	if !l.CurrentBid.Equal(c.Expected) {
		return nil, ErrRaceLost
	}

	at := c.Now
	if !at.After(l.LastBidAt) {
		at = l.LastBidAt.Add(time.Millisecond)
	}
	prev := l.LeaderID
	l.TotalBids++
	l.CurrentBid = c.Amount
	l.LeaderID = c.BidderID
	l.LastBidAt = at
	newEnd, extended := c.Policy.Apply(c.Now, l.EndsAt, l.Extensions)
	if extended {
		l.EndsAt = newEnd
		l.Extensions++
	}

	bid := Bid{
		ID:        c.BidID,
		AuctionID: c.AuctionID,
		BidderID:  c.BidderID,
		Amount:    c.Amount,
		Seq:       l.TotalBids,
		BidTime:   at,
	}
	e.bids = append(e.bids, bid)

	return &BidReceipt{
		Bid:            bid,
		TotalBids:      l.TotalBids,
		EndsAt:         l.EndsAt,
		Extended:       extended,
		PreviousLeader: prev,
	}, nil
}

func (m *MemoryLedger) Close(_ context.Context, auctionID string, now time.Time) (*LiveAuction, []Bid, error) {
	e, err := m.entry(auctionID)
	if err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.live.Status {
	case StatusCancelled:
		return nil, nil, ErrAuctionCancelled
	case StatusEnded:
	default:
		if now.Before(e.live.EndsAt) {
			return nil, nil, &NotDueError{EndsAt: e.live.EndsAt}
		}
		// ends_at > starts_at, so a scheduled auction that is due has started
		if e.live.Status == StatusScheduled {
			e.live.Status = StatusActive
		}
		if !CanTransition(e.live.Status, StatusEnded) {
			return nil, nil, ErrAuctionNotActive
		}
		e.live.Status = StatusEnded
	}

	snap := e.live
	bids := make([]Bid, len(e.bids))
	copy(bids, e.bids)
	return &snap, bids, nil
}

func (m *MemoryLedger) Cancel(_ context.Context, auctionID string, now time.Time) error {
	e, err := m.entry(auctionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.live.Status == StatusCancelled {
		return nil
	}
	if !now.Before(e.live.EndsAt) || !CanTransition(e.live.Status, StatusCancelled) {
		return ErrAuctionEnded
	}
	e.live.Status = StatusCancelled
	return nil
}

func (m *MemoryLedger) Release(_ context.Context, auctionID string) error {
	m.mu.Lock()
	delete(m.entries, auctionID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryLedger) Active(_ context.Context) ([]*LiveAuction, error) {
	m.mu.RLock()
	entries := make([]*memEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]*LiveAuction, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.live.Status.Terminal() {
			snap := e.live
			out = append(out, &snap)
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
	return out, nil
}
