package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"auctionhouse/internal/notifier"
	"auctionhouse/internal/outbox"
)

const insertOutbox = `INSERT INTO notification_outbox (id, event_type, auction_id, recipient_id, payload, created_at)
                      VALUES ($1, $2, $3, $4, $5, $6)
                      ON CONFLICT (id) DO NOTHING`

// enqueue queues notifications inside the caller's transaction.
func enqueue(ctx context.Context, tx *sql.Tx, notes []notifier.Notification) error {
	for _, n := range notes {
		var payload any
		if len(n.Payload) > 0 {
			payload = []byte(n.Payload)
		}
		if _, err := tx.ExecContext(ctx, insertOutbox, n.ID, n.EventType, n.AuctionID, n.RecipientID, payload, n.CreatedAt); err != nil {
			return fmt.Errorf("enqueue %s: %w", n.EventType, err)
		}
	}
	return nil
}

type OutboxRepository struct {
	db *sql.DB
}

var _ outbox.Store = (*OutboxRepository)(nil)

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Claim leases due entries by pushing next_attempt_at past the lease, so a
// crashed worker's batch becomes visible again once the lease runs out.
func (r *OutboxRepository) Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]outbox.Entry, error) {
	const q = `UPDATE notification_outbox
	              SET next_attempt_at = $2
	            WHERE id IN (SELECT id FROM notification_outbox
	                          WHERE delivered_at IS NULL AND next_attempt_at <= $1
	                       ORDER BY created_at
	                          LIMIT $3
	                     FOR UPDATE SKIP LOCKED)
	        RETURNING id, event_type, auction_id, recipient_id, payload, created_at, attempts`
	rows, err := r.db.QueryContext(ctx, q, now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox: %w", err)
	}
	defer rows.Close()

	var out []outbox.Entry
	for rows.Next() {
		var (
			e       outbox.Entry
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.EventType, &e.AuctionID, &e.RecipientID, &payload, &e.CreatedAt, &e.Attempts); err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *OutboxRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notification_outbox SET delivered_at = $2, attempts = attempts + 1 WHERE id = $1`, id, at)
	return err
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, nextAttempt time.Time, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notification_outbox
		    SET attempts = attempts + 1, last_error = $3, next_attempt_at = $2
		  WHERE id = $1`, id, nextAttempt, reason)
	return err
}
