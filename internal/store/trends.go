package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"trendforge/importer/internal/database"
	"trendforge/importer/internal/models"
)

// TrendUpdate lists the columns UpdateTrend may change. Nil fields are left untouched.
type TrendUpdate struct {
	Processed      *bool
	NodeID         *int64
	ProcessingCost *float64
}

// TrendStore persists trends and their news items.
type TrendStore struct {
	db *database.DB
}

// NewTrendStore creates a new TrendStore.
func NewTrendStore(db *database.DB) *TrendStore {
	return &TrendStore{db: db}
}

const insertTrendQuery = `
	INSERT INTO trends (title, traffic, pub_date, link, snippet, image_url, processed, imported_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (title, pub_date) DO NOTHING
	RETURNING id`

// InsertTrend stores a trend. The returned bool is false when a trend with the
// same title and publication date already exists.
func (s *TrendStore) InsertTrend(ctx context.Context, t *models.Trend) (int64, bool, error) {
	return s.insertTrend(ctx, s.db.DB, t)
}

// InsertTrendWithNews stores a trend and its news items in a single transaction.
func (s *TrendStore) InsertTrendWithNews(ctx context.Context, t *models.Trend, items []models.NewsItem) (int64, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, inserted, err := s.insertTrend(ctx, tx, t)
	if err != nil || !inserted {
		return id, inserted, err
	}

	if err := s.insertNewsItems(ctx, tx, id, items); err != nil {
		return 0, false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit trend %q: %w", t.Title, err)
	}
	return id, true, nil
}

type queryer interface {
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *TrendStore) insertTrend(ctx context.Context, q queryer, t *models.Trend) (int64, bool, error) {
	if t.ImportedAt.IsZero() {
		t.ImportedAt = time.Now().UTC()
	}
	t.PubDate = t.PubDate.UTC().Truncate(time.Second)

	var id int64
	err := q.QueryRowxContext(ctx, s.db.Rebind(insertTrendQuery),
		t.Title, t.Traffic, t.PubDate, t.Link, t.Snippet, t.ImageURL, t.Processed, t.ImportedAt.UTC(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug().Str("title", t.Title).Time("pub_date", t.PubDate).Msg("Trend already stored")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert trend %q: %w", t.Title, err)
	}

	t.ID = id
	return id, true, nil
}

// FindTrendByTitleAndDate returns the trend with the given identity, or nil.
func (s *TrendStore) FindTrendByTitleAndDate(ctx context.Context, title string, pubDate time.Time) (*models.Trend, error) {
	var t models.Trend
	err := s.db.GetContext(ctx, &t,
		s.db.Rebind(`SELECT * FROM trends WHERE title = ? AND pub_date = ?`),
		title, pubDate.UTC().Truncate(time.Second))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up trend %q: %w", title, err)
	}
	return &t, nil
}

// GetTrend loads a trend by id. It returns nil when the trend does not exist.
func (s *TrendStore) GetTrend(ctx context.Context, id int64) (*models.Trend, error) {
	var t models.Trend
	err := s.db.GetContext(ctx, &t, s.db.Rebind(`SELECT * FROM trends WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trend %d: %w", id, err)
	}
	return &t, nil
}

var (
	// ErrProcessedReset is returned when an update would clear the processed flag.
	ErrProcessedReset = errors.New("processed flag cannot be reset")
	// ErrArticleAlreadyLinked is returned when a trend already carries an article id.
	ErrArticleAlreadyLinked = errors.New("trend already has an article")
)

// UpdateTrend applies a partial update to a trend. Processed can only be set,
// and node_id only while it is still empty.
func (s *TrendStore) UpdateTrend(ctx context.Context, id int64, u TrendUpdate) error {
	var (
		sets []string
		args []any
	)
	if u.Processed != nil {
		if !*u.Processed {
			return fmt.Errorf("trend %d: %w", id, ErrProcessedReset)
		}
		sets = append(sets, "processed = ?")
		args = append(args, true)
	}
	if u.NodeID != nil {
		sets = append(sets, "node_id = ?")
		args = append(args, *u.NodeID)
	}
	if u.ProcessingCost != nil {
		sets = append(sets, "processing_cost = ?")
		args = append(args, *u.ProcessingCost)
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE trends SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	if u.NodeID != nil {
		query += " AND node_id IS NULL"
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update trend %d: %w", id, err)
	}
	if u.NodeID != nil {
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("trend %d: %w", id, ErrArticleAlreadyLinked)
		}
	}
	return nil
}

// MarkProcessed flags a trend as done without attaching an article.
func (s *TrendStore) MarkProcessed(ctx context.Context, id int64) error {
	processed := true
	return s.UpdateTrend(ctx, id, TrendUpdate{Processed: &processed})
}

// Complete flags a trend as done and records the article id and cost in one
// statement. It fails with ErrArticleAlreadyLinked when the trend is missing
// or already has an article.
func (s *TrendStore) Complete(ctx context.Context, id, nodeID int64, cost *float64) error {
	processed := true
	return s.UpdateTrend(ctx, id, TrendUpdate{Processed: &processed, NodeID: &nodeID, ProcessingCost: cost})
}

// InsertNewsItems stores news items for a trend.
func (s *TrendStore) InsertNewsItems(ctx context.Context, trendID int64, items []models.NewsItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertNewsItems(ctx, tx, trendID, items); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *TrendStore) insertNewsItems(ctx context.Context, q queryer, trendID int64, items []models.NewsItem) error {
	query := s.db.Rebind(`
		INSERT INTO news_items (trend_id, title, snippet, url, source, picture)
		VALUES (?, ?, ?, ?, ?, ?)`)

	for i := range items {
		item := &items[i]
		item.TrendID = trendID
		if _, err := q.ExecContext(ctx, query,
			trendID, item.Title, item.Snippet, item.URL, item.Source, item.Picture,
		); err != nil {
			return fmt.Errorf("failed to insert news item %s for trend %d: %w", item.URL, trendID, err)
		}
	}
	return nil
}

// GetNewsItems returns the news items of a trend in insertion order.
func (s *TrendStore) GetNewsItems(ctx context.Context, trendID int64) ([]models.NewsItem, error) {
	var items []models.NewsItem
	err := s.db.SelectContext(ctx, &items,
		s.db.Rebind(`SELECT * FROM news_items WHERE trend_id = ? ORDER BY id ASC`), trendID)
	if err != nil {
		return nil, fmt.Errorf("failed to load news items for trend %d: %w", trendID, err)
	}
	return items, nil
}

// TruncateAll deletes every news item and then every trend.
func (s *TrendStore) TruncateAll(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"news_items", "trends"} {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		log.Info().Str("table", table).Int64("rows_affected", n).Msg("Cleared table")
	}

	return tx.Commit()
}
