package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"auctionhouse/internal/notifier"
	"auctionhouse/internal/services/auction"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 7, 27, 16, 0, 0, 0, time.UTC)

var columns = []string{"id", "seller_id", "base_price", "current_bid", "buy_now_price", "total_bids", "status",
	"starts_at", "ends_at", "extensions", "leader_id", "winner_id", "approval_status", "approval_deadline",
	"decided_by", "decision_notes", "decided_at", "created_at", "updated_at"}

func newRepo(t *testing.T) (*AuctionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAuctionRepository(db), mock
}

func sampleAuction() *auction.Auction {
	buyNow := decimal.NewFromInt(50000)
	return &auction.Auction{
		ID:             "a1",
		SellerID:       "seller",
		BasePrice:      decimal.NewFromInt(10000),
		CurrentBid:     decimal.NewFromInt(10000),
		BuyNowPrice:    &buyNow,
		Status:         auction.StatusActive,
		StartsAt:       t0,
		EndsAt:         t0.Add(time.Hour),
		ApprovalStatus: auction.ApprovalNone,
		CreatedAt:      t0,
		UpdatedAt:      t0,
	}
}

func TestCreate(t *testing.T) {
	repo, mock := newRepo(t)
	a := sampleAuction()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO auctions")).
		WithArgs("a1", "seller", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"active", t0, t0.Add(time.Hour), "none", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(context.Background(), a))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO auctions")).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	assert.ErrorIs(t, repo.Create(context.Background(), a), auction.ErrAuctionExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock := newRepo(t)
	deadline := t0.Add(49 * time.Hour)

	rows := sqlmock.NewRows(columns).AddRow(
		"a1", "seller", "10000", "25000", "50000", 3, "ended",
		t0, t0.Add(time.Hour), 1, "alice", "alice", "approved", deadline,
		"seller", "fine", t0.Add(2*time.Hour), t0, t0.Add(2*time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM auctions WHERE id = $1")).WithArgs("a1").WillReturnRows(rows)

	a, err := repo.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, auction.StatusEnded, a.Status)
	assert.True(t, a.CurrentBid.Equal(decimal.NewFromInt(25000)))
	require.NotNil(t, a.BuyNowPrice)
	require.NotNil(t, a.WinnerID)
	assert.Equal(t, "alice", *a.WinnerID)
	require.NotNil(t, a.ApprovalDeadline)
	require.NotNil(t, a.Decision)
	assert.Equal(t, auction.ApprovalApproved, a.Decision.Decision)
	assert.Equal(t, "fine", a.Decision.Notes)

	mock.ExpectQuery(regexp.QuoteMeta("FROM auctions WHERE id = $1")).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(columns))
	_, err = repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, auction.ErrAuctionNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOpenAuctionHasNoDecision(t *testing.T) {
	repo, mock := newRepo(t)
	rows := sqlmock.NewRows(columns).AddRow(
		"a1", "seller", "10000", "10000", nil, 0, "active",
		t0, t0.Add(time.Hour), 0, nil, nil, "none", nil,
		nil, nil, nil, t0, t0)
	mock.ExpectQuery(regexp.QuoteMeta("FROM auctions WHERE id = $1")).WillReturnRows(rows)

	a, err := repo.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Nil(t, a.BuyNowPrice)
	assert.Nil(t, a.WinnerID)
	assert.Nil(t, a.Decision)
	assert.Empty(t, a.LeaderID)
}

func closeResult() *auction.CloseResult {
	a := sampleAuction()
	winner := "alice"
	deadline := t0.Add(49 * time.Hour)
	a.Status = auction.StatusEnded
	a.CurrentBid = decimal.NewFromInt(25000)
	a.TotalBids = 2
	a.WinnerID = &winner
	a.ApprovalStatus = auction.ApprovalPending
	a.ApprovalDeadline = &deadline
	a.UpdatedAt = t0.Add(time.Hour)
	return &auction.CloseResult{
		Auction: a,
		Bids: []auction.Bid{
			{ID: "b1", AuctionID: "a1", BidderID: "bob", Amount: decimal.NewFromInt(20000), Seq: 1, BidTime: t0.Add(time.Minute)},
			{ID: "b2", AuctionID: "a1", BidderID: "alice", Amount: decimal.NewFromInt(25000), Seq: 2, BidTime: t0.Add(2 * time.Minute)},
		},
	}
}

func TestFinalizeTransitions(t *testing.T) {
	repo, mock := newRepo(t)
	res := closeResult()
	notes := []notifier.Notification{
		notifier.New(notifier.EventApprovalRequested, "a1", "seller", map[string]string{"x": "y"}, t0),
		notifier.New(notifier.EventAuctionEnded, "a1", "alice", nil, t0),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bids")).WithArgs("b1", "a1", "bob", sqlmock.AnyArg(), 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bids")).WithArgs("b2", "a1", "alice", sqlmock.AnyArg(), 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'ended'")).
		WithArgs("a1", sqlmock.AnyArg(), 2, sqlmock.AnyArg(), 0, sqlmock.AnyArg(), "pending_approval", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification_outbox")).
		WithArgs(notes[0].ID, notifier.EventApprovalRequested, "a1", "seller", sqlmock.AnyArg(), t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification_outbox")).
		WithArgs(notes[1].ID, notifier.EventAuctionEnded, "a1", "alice", nil, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.Finalize(context.Background(), res, notes)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeAlreadyClosed(t *testing.T) {
	repo, mock := newRepo(t)
	res := closeResult()
	res.Bids = nil

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'ended'")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := repo.Finalize(context.Background(), res, []notifier.Notification{
		notifier.New(notifier.EventAuctionEnded, "a1", "seller", nil, t0),
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecide(t *testing.T) {
	repo, mock := newRepo(t)
	d := auction.ApprovalDecision{DecidedBy: "seller", Decision: auction.ApprovalApproved, DecidedAt: t0}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND approval_status = 'pending_approval'")).
		WithArgs("a1", "approved", "seller", nil, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Decide(context.Background(), "a1", d, nil))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND approval_status = 'pending_approval'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.Decide(context.Background(), "a1", d, nil), auction.ErrAlreadyDecided)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCancelled(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'cancelled'")).WithArgs("a1", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification_outbox")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	ok, err := repo.MarkCancelled(context.Background(), "a1", t0, []notifier.Notification{
		notifier.New(notifier.EventAuctionCancelled, "a1", "seller", nil, t0),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'cancelled'")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	ok, err = repo.MarkCancelled(context.Background(), "a1", t0, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivateAndDue(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SET status = 'active'")).WithArgs(t0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1").AddRow("a2"))
	ids, err := repo.ActivateDue(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)

	mock.ExpectQuery(regexp.QuoteMeta("ends_at <= $1")).WithArgs(t0, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a3"))
	ids, err = repo.DueForClose(context.Background(), t0, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"a3"}, ids)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBids(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bids WHERE auction_id = $1")).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "auction_id", "bidder_id", "amount", "seq", "bid_time"}).
			AddRow("b1", "a1", "bob", "20000", 1, t0).
			AddRow("b2", "a1", "alice", "25000.50", 2, t0.Add(time.Second)))

	bids, err := repo.ListBids(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.True(t, bids[1].Amount.Equal(decimal.RequireFromString("25000.5")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
