package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"trendforge/importer/internal/database"
)

// DBQueue keeps queue entries in the queue_items table.
type DBQueue struct {
	db  *database.DB
	now func() time.Time
}

// NewDBQueue creates a queue backed by the application database.
func NewDBQueue(db *database.DB) *DBQueue {
	return &DBQueue{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (q *DBQueue) Enqueue(ctx context.Context, trendID int64) error {
	now := q.now()
	_, err := q.db.ExecContext(ctx, q.db.Rebind(`
		INSERT INTO queue_items (trend_id, attempts, visible_at, enqueued_at)
		VALUES (?, 0, ?, ?)
		ON CONFLICT (trend_id) DO NOTHING`),
		trendID, now, now)
	if err != nil {
		return fmt.Errorf("failed to enqueue trend %d: %w", trendID, err)
	}
	return nil
}

func (q *DBQueue) Claim(ctx context.Context, lease time.Duration) (*Delivery, error) {
	now := q.now()
	token := uuid.NewString()

	// The outer visible_at check makes a concurrent claimer lose the race
	// instead of stealing a lease that was just granted.
	var d Delivery
	err := q.db.QueryRowxContext(ctx, q.db.Rebind(`
		UPDATE queue_items
		SET claim_token = ?, attempts = attempts + 1, visible_at = ?
		WHERE visible_at <= ? AND trend_id = (
			SELECT trend_id FROM queue_items
			WHERE visible_at <= ?
			ORDER BY visible_at ASC, trend_id ASC
			LIMIT 1
		)
		RETURNING trend_id, attempts`),
		token, now.Add(lease), now, now,
	).Scan(&d.TrendID, &d.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue item: %w", err)
	}

	d.Token = token
	return &d, nil
}

func (q *DBQueue) Ack(ctx context.Context, d *Delivery) error {
	res, err := q.db.ExecContext(ctx, q.db.Rebind(
		`DELETE FROM queue_items WHERE trend_id = ? AND claim_token = ?`), d.TrendID, d.Token)
	if err != nil {
		return fmt.Errorf("failed to ack trend %d: %w", d.TrendID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Warn().Int64("trend_id", d.TrendID).Msg("Ack ignored, lease no longer held")
	}
	return nil
}

func (q *DBQueue) Release(ctx context.Context, d *Delivery, delay time.Duration) error {
	res, err := q.db.ExecContext(ctx, q.db.Rebind(`
		UPDATE queue_items SET visible_at = ?, claim_token = NULL
		WHERE trend_id = ? AND claim_token = ?`),
		q.now().Add(delay), d.TrendID, d.Token)
	if err != nil {
		return fmt.Errorf("failed to release trend %d: %w", d.TrendID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Warn().Int64("trend_id", d.TrendID).Msg("Release ignored, lease no longer held")
	}
	return nil
}

func (q *DBQueue) Purge(ctx context.Context) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return fmt.Errorf("failed to purge queue: %w", err)
	}
	n, _ := res.RowsAffected()
	log.Info().Int64("rows_affected", n).Msg("Queue purged")
	return nil
}

func (q *DBQueue) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM queue_items`); err != nil {
		return 0, fmt.Errorf("failed to count queue items: %w", err)
	}
	return n, nil
}
