package storage

import (
	"context"
	"fmt"
	"time"

	"trendforge/importer/internal/database"
	"trendforge/importer/internal/models"
)

// Stats summarises import and processing activity.
type Stats struct {
	TotalTrends      int64          `json:"total_trends"`
	ProcessedTrends  int64          `json:"processed_trends"`
	PendingTrends    int64          `json:"pending_trends"`
	ArticlesCreated  int64          `json:"articles_created"`
	TrendsThisMonth  int64          `json:"trends_this_month"`
	TotalCost        float64        `json:"total_cost"`
	CostThisMonth    float64        `json:"cost_this_month"`
	AverageCost      float64        `json:"average_cost"`
	RecentTrends     []models.Trend `json:"recent_trends"`
	TopTrafficTrends []models.Trend `json:"top_traffic_trends"`
}

// TrendRepository defines read operations used by the admin API and CLI.
type TrendRepository interface {
	FetchTrends(ctx context.Context, limit int, cursorTimestamp *time.Time, cursorID *int64) ([]models.Trend, error)
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}

// sqlxRepository implements TrendRepository using sqlx.
type sqlxRepository struct {
	db *database.DB
}

// NewRepository creates a new repository instance.
func NewRepository(db *database.DB) TrendRepository {
	return &sqlxRepository{db: db}
}

// FetchTrends lists trends newest first. A cursor continues strictly after the
// (imported_at, id) of the last trend of the previous page.
func (r *sqlxRepository) FetchTrends(ctx context.Context, limit int, cursorTimestamp *time.Time, cursorID *int64) ([]models.Trend, error) {
	var (
		items []models.Trend
		query string
		args  []any
	)

	const baseQuery = `SELECT * FROM trends `
	const orderBy = ` ORDER BY imported_at DESC, id DESC LIMIT ?`

	if cursorTimestamp != nil && cursorID != nil {
		query = baseQuery + `WHERE (imported_at < ?) OR (imported_at = ? AND id < ?)` + orderBy
		args = append(args, cursorTimestamp.UTC(), cursorTimestamp.UTC(), *cursorID, limit)
	} else {
		query = baseQuery + orderBy
		args = append(args, limit)
	}

	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	if items == nil {
		items = []models.Trend{}
	}
	return items, nil
}

// Stats computes dashboard counters. Month boundaries are taken in UTC.
func (r *sqlxRepository) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var s Stats
	counts := []struct {
		dest  *int64
		query string
		args  []any
	}{
		{&s.TotalTrends, `SELECT COUNT(*) FROM trends`, nil},
		{&s.ProcessedTrends, `SELECT COUNT(*) FROM trends WHERE processed = ?`, []any{true}},
		{&s.ArticlesCreated, `SELECT COUNT(*) FROM trends WHERE node_id IS NOT NULL`, nil},
		{&s.TrendsThisMonth, `SELECT COUNT(*) FROM trends WHERE imported_at >= ?`, []any{monthStart}},
	}
	for _, c := range counts {
		if err := r.db.GetContext(ctx, c.dest, r.db.Rebind(c.query), c.args...); err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}
	}
	s.PendingTrends = s.TotalTrends - s.ProcessedTrends

	var costed int64
	if err := r.db.GetContext(ctx, &costed, `SELECT COUNT(*) FROM trends WHERE processing_cost IS NOT NULL`); err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	if err := r.db.GetContext(ctx, &s.TotalCost, `SELECT COALESCE(SUM(processing_cost), 0) FROM trends`); err != nil {
		return nil, fmt.Errorf("failed to compute total cost: %w", err)
	}
	if err := r.db.GetContext(ctx, &s.CostThisMonth,
		r.db.Rebind(`SELECT COALESCE(SUM(processing_cost), 0) FROM trends WHERE imported_at >= ?`), monthStart); err != nil {
		return nil, fmt.Errorf("failed to compute monthly cost: %w", err)
	}
	if costed > 0 {
		s.AverageCost = s.TotalCost / float64(costed)
	}

	if err := r.db.SelectContext(ctx, &s.RecentTrends,
		`SELECT * FROM trends ORDER BY imported_at DESC, id DESC LIMIT 5`); err != nil {
		return nil, fmt.Errorf("failed to load recent trends: %w", err)
	}
	if err := r.db.SelectContext(ctx, &s.TopTrafficTrends,
		`SELECT * FROM trends ORDER BY traffic DESC, id ASC LIMIT 5`); err != nil {
		return nil, fmt.Errorf("failed to load top trends: %w", err)
	}

	return &s, nil
}
