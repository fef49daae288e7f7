package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxClaim(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOutboxRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(t0, t0.Add(30*time.Second), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "auction_id", "recipient_id", "payload", "created_at", "attempts"}).
			AddRow("n1", "outbid", "a1", "bob", []byte(`{"amount":"25000"}`), t0, 2))

	entries, err := repo.Claim(context.Background(), t0, 30*time.Second, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].RecipientID)
	assert.Equal(t, 2, entries[0].Attempts)
	assert.JSONEq(t, `{"amount":"25000"}`, string(entries[0].Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxMarks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOutboxRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET delivered_at = $2")).WithArgs("n1", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("last_error = $3")).WithArgs("n2", t0.Add(time.Minute), "boom").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkDelivered(context.Background(), "n1", t0))
	require.NoError(t, repo.MarkFailed(context.Background(), "n2", t0.Add(time.Minute), "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
