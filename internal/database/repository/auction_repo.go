package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auctionhouse/internal/notifier"
	"auctionhouse/internal/services/auction"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const auctionColumns = `id, seller_id, base_price, current_bid, buy_now_price, total_bids, status,
	starts_at, ends_at, extensions, leader_id, winner_id, approval_status, approval_deadline,
	decided_by, decision_notes, decided_at, created_at, updated_at`

type AuctionRepository struct {
	db *sql.DB
}

var _ auction.Repository = (*AuctionRepository)(nil)

func NewAuctionRepository(db *sql.DB) *AuctionRepository {
	return &AuctionRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var (
		a                           auction.Auction
		buyNow                      decimal.NullDecimal
		leader, winner              sql.NullString
		decidedBy, decisionNotes    sql.NullString
		approvalDeadline, decidedAt sql.NullTime
	)
	err := row.Scan(&a.ID, &a.SellerID, &a.BasePrice, &a.CurrentBid, &buyNow, &a.TotalBids, &a.Status,
		&a.StartsAt, &a.EndsAt, &a.Extensions, &leader, &winner, &a.ApprovalStatus, &approvalDeadline,
		&decidedBy, &decisionNotes, &decidedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if buyNow.Valid {
		a.BuyNowPrice = &buyNow.Decimal
	}
	a.LeaderID = leader.String
	if winner.Valid {
		a.WinnerID = &winner.String
	}
	if approvalDeadline.Valid {
		t := approvalDeadline.Time.UTC()
		a.ApprovalDeadline = &t
	}
	if decidedAt.Valid {
		a.Decision = &auction.ApprovalDecision{
			DecidedBy: decidedBy.String,
			Decision:  a.ApprovalStatus,
			Notes:     decisionNotes.String,
			DecidedAt: decidedAt.Time.UTC(),
		}
	}
	a.StartsAt = a.StartsAt.UTC()
	a.EndsAt = a.EndsAt.UTC()
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	const q = `INSERT INTO auctions (id, seller_id, base_price, current_bid, buy_now_price, total_bids,
	                                 status, starts_at, ends_at, approval_status, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10, $10)`
	_, err := r.db.ExecContext(ctx, q, a.ID, a.SellerID, a.BasePrice, a.CurrentBid, nullDecimal(a.BuyNowPrice),
		string(a.Status), a.StartsAt, a.EndsAt, string(a.ApprovalStatus), a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return auction.ErrAuctionExists
		}
		return fmt.Errorf("insert auction: %w", err)
	}
	return nil
}

func (r *AuctionRepository) Get(ctx context.Context, id string) (*auction.Auction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)
	a, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auction.ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get auction: %w", err)
	}
	return a, nil
}

func (r *AuctionRepository) queryAuctions(ctx context.Context, q string, args ...any) ([]auction.Auction, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]auction.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *AuctionRepository) List(ctx context.Context, f auction.ListFilter) ([]auction.Auction, error) {
	q := `SELECT ` + auctionColumns + ` FROM auctions
	       WHERE ($1 = '' OR status = $1)
	    ORDER BY created_at DESC
	       LIMIT $2 OFFSET $3`
	return r.queryAuctions(ctx, q, string(f.Status), f.Limit, f.Offset)
}

func (r *AuctionRepository) ListWins(ctx context.Context, userID string, limit, offset int) ([]auction.Auction, error) {
	q := `SELECT ` + auctionColumns + ` FROM auctions
	       WHERE winner_id = $1 AND status = 'ended'
	    ORDER BY ends_at DESC
	       LIMIT $2 OFFSET $3`
	return r.queryAuctions(ctx, q, userID, limit, offset)
}

func (r *AuctionRepository) ListPendingApprovals(ctx context.Context, sellerID string, limit, offset int) ([]auction.Auction, error) {
	q := `SELECT ` + auctionColumns + ` FROM auctions
	       WHERE seller_id = $1 AND approval_status = 'pending_approval'
	    ORDER BY approval_deadline ASC
	       LIMIT $2 OFFSET $3`
	return r.queryAuctions(ctx, q, sellerID, limit, offset)
}

func (r *AuctionRepository) ListBids(ctx context.Context, auctionID string) ([]auction.Bid, error) {
	const q = `SELECT id, auction_id, bidder_id, amount, seq, bid_time
	             FROM bids WHERE auction_id = $1 ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, q, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []auction.Bid
	for rows.Next() {
		var b auction.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.Seq, &b.BidTime); err != nil {
			return nil, err
		}
		b.BidTime = b.BidTime.UTC()
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

const insertBid = `INSERT INTO bids (id, auction_id, bidder_id, amount, seq, bid_time)
                   VALUES ($1, $2, $3, $4, $5, $6)
                   ON CONFLICT DO NOTHING`

func insertBids(ctx context.Context, tx *sql.Tx, bids []auction.Bid) error {
	for _, b := range bids {
		if _, err := tx.ExecContext(ctx, insertBid, b.ID, b.AuctionID, b.BidderID, b.Amount, b.Seq, b.BidTime); err != nil {
			return fmt.Errorf("insert bid %s: %w", b.ID, err)
		}
	}
	return nil
}

// InsertBids persists bids idempotently; replays of the same bid are ignored.
func (r *AuctionRepository) InsertBids(ctx context.Context, bids []auction.Bid) error {
	if len(bids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertBids(ctx, tx, bids); err != nil {
		return err
	}
	return tx.Commit()
}

// MirrorLive copies the ledger's running figures into auctions that are still
// open, so listings stay close to live without touching the ledger.
func (r *AuctionRepository) MirrorLive(ctx context.Context, live []*auction.LiveAuction) error {
	if len(live) == 0 {
		return nil
	}
	const q = `UPDATE auctions
	              SET current_bid = $2, leader_id = $3, total_bids = $4, ends_at = $5, extensions = $6,
	                  status = CASE WHEN $7 = 'active' THEN 'active' ELSE status END,
	                  updated_at = now()
	            WHERE id = $1 AND status IN ('scheduled', 'active') AND total_bids <= $4`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, l := range live {
		if _, err := tx.ExecContext(ctx, q, l.ID, l.CurrentBid, nullString(l.LeaderID), l.TotalBids,
			l.EndsAt, l.Extensions, string(l.Status)); err != nil {
			zap.L().Error("repository.mirror_live", zap.String("auction_id", l.ID), zap.Error(err))
			return err
		}
	}
	return tx.Commit()
}

// Finalize writes the closing result. The status guard makes it safe to run
// more than once: a second call persists any missing bids and reports false.
func (r *AuctionRepository) Finalize(ctx context.Context, res *auction.CloseResult, notes []notifier.Notification) (bool, error) {
	a := res.Auction
	var winner sql.NullString
	if a.WinnerID != nil {
		winner = nullString(*a.WinnerID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if err := insertBids(ctx, tx, res.Bids); err != nil {
		return false, err
	}

	const q = `UPDATE auctions
	              SET status = 'ended', current_bid = $2, total_bids = $3, ends_at = $4, extensions = $5,
	                  leader_id = $6, winner_id = $6, approval_status = $7, approval_deadline = $8,
	                  updated_at = $9
	            WHERE id = $1 AND status IN ('scheduled', 'active')`
	out, err := tx.ExecContext(ctx, q, a.ID, a.CurrentBid, a.TotalBids, a.EndsAt, a.Extensions,
		winner, string(a.ApprovalStatus), nullTime(a.ApprovalDeadline), a.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("finalize auction: %w", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, tx.Commit()
	}

	if err := enqueue(ctx, tx, notes); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *AuctionRepository) MarkCancelled(ctx context.Context, id string, at time.Time, notes []notifier.Notification) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	const q = `UPDATE auctions SET status = 'cancelled', updated_at = $2
	            WHERE id = $1 AND status IN ('scheduled', 'active')`
	out, err := tx.ExecContext(ctx, q, id, at)
	if err != nil {
		return false, fmt.Errorf("cancel auction: %w", err)
	}
	if n, err := out.RowsAffected(); err != nil || n == 0 {
		return false, err
	}
	if err := enqueue(ctx, tx, notes); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *AuctionRepository) Decide(ctx context.Context, id string, d auction.ApprovalDecision, notes []notifier.Notification) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `UPDATE auctions
	              SET approval_status = $2, decided_by = $3, decision_notes = $4, decided_at = $5, updated_at = $5
	            WHERE id = $1 AND approval_status = 'pending_approval'`
	out, err := tx.ExecContext(ctx, q, id, string(d.Decision), d.DecidedBy, nullString(d.Notes), d.DecidedAt)
	if err != nil {
		return fmt.Errorf("decide approval: %w", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auction.ErrAlreadyDecided
	}
	if err := enqueue(ctx, tx, notes); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *AuctionRepository) ActivateDue(ctx context.Context, now time.Time) ([]string, error) {
	const q = `UPDATE auctions SET status = 'active', updated_at = $1
	            WHERE status = 'scheduled' AND starts_at <= $1
	        RETURNING id`
	return r.queryIDs(ctx, q, now)
}

func (r *AuctionRepository) DueForClose(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const q = `SELECT id FROM auctions
	            WHERE status IN ('scheduled', 'active') AND ends_at <= $1
	         ORDER BY ends_at
	            LIMIT $2`
	return r.queryIDs(ctx, q, now, limit)
}

func (r *AuctionRepository) queryIDs(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
