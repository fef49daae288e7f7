package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"auctionhouse/internal/services/auction"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	HashPrefix  = "auc:"
	TimerPrefix = "auc_t:"
	BidsPrefix  = "auc_b:"
	ActiveSet   = "aucs:active"
	BidStream   = "bids_stream"
)

// Functions lists the library functions the ledger calls.
var Functions = []string{"auction_open", "auction_place_bid", "auction_close", "auction_cancel", "auction_release"}

// luaErrors maps error replies of the auction function library to service errors.
var luaErrors = []struct {
	code string
	err  error
}{
	{"auction_not_found", auction.ErrAuctionNotFound},
	{"auction_exists", auction.ErrAuctionExists},
	{"auction_cancelled", auction.ErrAuctionCancelled},
	{"auction_ended", auction.ErrAuctionEnded},
	{"auction_not_active", auction.ErrAuctionNotActive},
	{"auction_closed", auction.ErrAuctionClosed},
	{"self_bid", auction.ErrSelfBid},
	{"race_lost", auction.ErrRaceLost},
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, e := range luaErrors {
		if strings.Contains(msg, e.code) {
			return e.err
		}
	}
	return err
}

// RedisLedger keeps live auctions in Redis. Every mutation is one call into
// the "auction" function library, which Redis runs atomically.
type RedisLedger struct {
	rdb redis.Cmdable
}

var _ auction.Ledger = (*RedisLedger)(nil)

func New(rdb redis.Cmdable) *RedisLedger {
	return &RedisLedger{rdb: rdb}
}

func keys(id string) []string {
	return []string{HashPrefix + id, TimerPrefix + id, BidsPrefix + id, ActiveSet, BidStream}
}

func ms(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func (l *RedisLedger) Open(ctx context.Context, a *auction.LiveAuction) error {
	buyNow := ""
	if a.BuyNowPrice != nil {
		buyNow = a.BuyNowPrice.String()
	}
	current := a.CurrentBid
	if current.IsZero() {
		current = a.BasePrice
	}
	lastBid := "0"
	if !a.LastBidAt.IsZero() {
		lastBid = ms(a.LastBidAt)
	}
	err := l.rdb.FCall(ctx, "auction_open", keys(a.ID),
		a.ID, a.SellerID, string(a.Status), a.BasePrice.String(), buyNow, ms(a.StartsAt), ms(a.EndsAt),
		current.String(), a.LeaderID, strconv.Itoa(a.TotalBids), strconv.Itoa(a.Extensions), lastBid,
	).Err()
	return mapErr(err)
}

func (l *RedisLedger) Snapshot(ctx context.Context, auctionID string) (*auction.LiveAuction, error) {
	data, err := l.rdb.HGetAll(ctx, HashPrefix+auctionID).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, auction.ErrAuctionNotFound
	}
	return parseLive(data)
}

func (l *RedisLedger) CommitBid(ctx context.Context, c auction.BidCommit) (*auction.BidReceipt, error) {
	res, err := l.rdb.FCall(ctx, "auction_place_bid", keys(c.AuctionID),
		c.BidID, c.BidderID, c.Amount.String(), c.Expected.String(), ms(c.Now),
		strconv.FormatInt(c.Policy.Window.Milliseconds(), 10),
		strconv.FormatInt(c.Policy.Extension.Milliseconds(), 10),
		strconv.Itoa(c.Policy.MaxExtensions),
	).Slice()
	if err != nil {
		return nil, mapErr(err)
	}
	if len(res) != 5 {
		return nil, fmt.Errorf("auction_place_bid: unexpected reply %v", res)
	}
	total, _ := res[0].(int64)
	endsAt, _ := res[1].(int64)
	extended, _ := res[2].(int64)
	prev, _ := res[3].(string)
	at, _ := res[4].(int64)

	return &auction.BidReceipt{
		Bid: auction.Bid{
			ID:        c.BidID,
			AuctionID: c.AuctionID,
			BidderID:  c.BidderID,
			Amount:    c.Amount,
			Seq:       int(total),
			BidTime:   time.UnixMilli(at).UTC(),
		},
		TotalBids:      int(total),
		EndsAt:         time.UnixMilli(endsAt).UTC(),
		Extended:       extended == 1,
		PreviousLeader: prev,
	}, nil
}

func (l *RedisLedger) Close(ctx context.Context, auctionID string, now time.Time) (*auction.LiveAuction, []auction.Bid, error) {
	res, err := l.rdb.FCall(ctx, "auction_close", keys(auctionID), ms(now)).Slice()
	if err != nil {
		return nil, nil, mapErr(err)
	}
	if len(res) != 2 {
		return nil, nil, fmt.Errorf("auction_close: unexpected reply %v", res)
	}
	outcome, _ := res[0].(string)
	endsAt, _ := res[1].(int64)
	if outcome == "not_due" {
		return nil, nil, &auction.NotDueError{EndsAt: time.UnixMilli(endsAt).UTC()}
	}

	// the auction is frozen once ended, so reading it back is race free
	live, err := l.Snapshot(ctx, auctionID)
	if err != nil {
		return nil, nil, err
	}
	raw, err := l.rdb.LRange(ctx, BidsPrefix+auctionID, 0, -1).Result()
	if err != nil {
		return nil, nil, err
	}
	bids := make([]auction.Bid, 0, len(raw))
	for i, r := range raw {
		b, err := parseBid(auctionID, r)
		if err != nil {
			// a dropped bid could hand the auction to the wrong winner
			zap.L().Error("ledger.parse_bid", zap.String("auction_id", auctionID), zap.Int("index", i), zap.Error(err))
			return nil, nil, fmt.Errorf("bid log of %s entry %d: %w", auctionID, i, err)
		}
		bids = append(bids, b)
	}
	return live, bids, nil
}

func (l *RedisLedger) Cancel(ctx context.Context, auctionID string, now time.Time) error {
	return mapErr(l.rdb.FCall(ctx, "auction_cancel", keys(auctionID), ms(now)).Err())
}

func (l *RedisLedger) Release(ctx context.Context, auctionID string) error {
	return mapErr(l.rdb.FCall(ctx, "auction_release", keys(auctionID)).Err())
}

// Active returns every auction still in the active set, soonest deadline first.
func (l *RedisLedger) Active(ctx context.Context) ([]*auction.LiveAuction, error) {
	members, err := l.rdb.SMembers(ctx, ActiveSet).Result()
	if err != nil || len(members) == 0 {
		return nil, err
	}

	pipe := l.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, k := range members {
		cmds[i] = pipe.HGetAll(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	out := make([]*auction.LiveAuction, 0, len(members))
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue // released between SMEMBERS and HGETALL
		}
		live, err := parseLive(data)
		if err != nil {
			zap.L().Warn("ledger.parse_live", zap.String("key", members[i]), zap.Error(err))
			continue
		}
		out = append(out, live)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
	return out, nil
}

func parseLive(data map[string]string) (*auction.LiveAuction, error) {
	base, err := decimal.NewFromString(data["bp"])
	if err != nil {
		return nil, fmt.Errorf("base price: %w", err)
	}
	current, err := decimal.NewFromString(data["hb"])
	if err != nil {
		return nil, fmt.Errorf("current bid: %w", err)
	}
	live := &auction.LiveAuction{
		ID:         data["id"],
		SellerID:   data["sid"],
		Status:     auction.Status(data["st"]),
		BasePrice:  base,
		CurrentBid: current,
		LeaderID:   data["hbid"],
		TotalBids:  atoi(data["tb"]),
		StartsAt:   msTime(data["sa"]),
		EndsAt:     msTime(data["ea"]),
		Extensions: atoi(data["ext"]),
		LastBidAt:  msTime(data["lb"]),
	}
	if bn := data["bn"]; bn != "" {
		v, err := decimal.NewFromString(bn)
		if err != nil {
			return nil, fmt.Errorf("buy now price: %w", err)
		}
		live.BuyNowPrice = &v
	}
	return live, nil
}

// bidEntry is one element of the per-auction bid log. Numbers travel as
// strings so Lua's float numbers never round them.
type bidEntry struct {
	ID     string `json:"id"`
	Bidder string `json:"bidder"`
	Amount string `json:"amount"`
	At     string `json:"at"`
	Seq    string `json:"seq"`
}

// parseBid decodes a JSON bid log entry.
func parseBid(auctionID, raw string) (auction.Bid, error) {
	var e bidEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return auction.Bid{}, fmt.Errorf("malformed bid entry: %w", err)
	}
	amount, err := decimal.NewFromString(e.Amount)
	if err != nil {
		return auction.Bid{}, fmt.Errorf("bid amount: %w", err)
	}
	seq, err := strconv.Atoi(e.Seq)
	if err != nil || e.ID == "" || e.Bidder == "" {
		return auction.Bid{}, fmt.Errorf("incomplete bid entry")
	}
	return auction.Bid{
		ID:        e.ID,
		AuctionID: auctionID,
		BidderID:  e.Bidder,
		Amount:    amount,
		BidTime:   msTime(e.At),
		Seq:       seq,
	}, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func msTime(s string) time.Time {
	n, _ := strconv.ParseInt(s, 10, 64)
	if n == 0 {
		return time.Time{}
	}
	return time.UnixMilli(n).UTC()
}
