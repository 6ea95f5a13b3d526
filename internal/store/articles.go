package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"trendforge/importer/internal/database"
	"trendforge/importer/internal/models"
)

// ArticleStore persists generated articles with their media and tags.
type ArticleStore struct {
	db *database.DB
}

// NewArticleStore creates a new ArticleStore.
func NewArticleStore(db *database.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// CreateArticle inserts the article, its media references and its tag links
// in one transaction and returns the new article id.
func (s *ArticleStore) CreateArticle(ctx context.Context, a *models.Article, tagsField string) (int64, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowxContext(ctx, s.db.Rebind(`
		INSERT INTO articles (trend_id, title, slug, body, body_format, content_type, published, domain_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		a.TrendID, a.Title, a.Slug, a.Body, a.BodyFormat, a.ContentType, a.Published, a.DomainID, a.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert article for trend %d: %w", a.TrendID, err)
	}

	mediaQuery := s.db.Rebind(`
		INSERT INTO article_media (article_id, field, position, blob_ref, alt)
		VALUES (?, ?, ?, ?, ?)`)
	for i := range a.Media {
		m := &a.Media[i]
		m.ArticleID = id
		m.Position = i
		if _, err := tx.ExecContext(ctx, mediaQuery, id, m.Field, i, m.BlobRef, m.Alt); err != nil {
			return 0, fmt.Errorf("failed to attach media %s to article %d: %w", m.BlobRef, id, err)
		}
	}

	tagQuery := s.db.Rebind(`
		INSERT INTO article_tags (article_id, field, term_id)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`)
	for _, termID := range a.TagIDs {
		if _, err := tx.ExecContext(ctx, tagQuery, id, tagsField, termID); err != nil {
			return 0, fmt.Errorf("failed to tag article %d with term %d: %w", id, termID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit article for trend %d: %w", a.TrendID, err)
	}

	a.ID = id
	log.Debug().
		Int64("article_id", id).
		Int64("trend_id", a.TrendID).
		Int("media", len(a.Media)).
		Int("tags", len(a.TagIDs)).
		Msg("Article stored")
	return id, nil
}

// FindByTrend returns the id of the article generated for a trend, if any.
func (s *ArticleStore) FindByTrend(ctx context.Context, trendID int64) (int64, bool, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(`SELECT id FROM articles WHERE trend_id = ?`), trendID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up article for trend %d: %w", trendID, err)
	}
	return id, true, nil
}

// GetArticle loads an article together with its media and tag ids.
func (s *ArticleStore) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	var a models.Article
	err := s.db.GetContext(ctx, &a, s.db.Rebind(`SELECT * FROM articles WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load article %d: %w", id, err)
	}

	if err := s.db.SelectContext(ctx, &a.Media,
		s.db.Rebind(`SELECT * FROM article_media WHERE article_id = ? ORDER BY field, position`), id); err != nil {
		return nil, fmt.Errorf("failed to load media for article %d: %w", id, err)
	}
	if err := s.db.SelectContext(ctx, &a.TagIDs,
		s.db.Rebind(`SELECT term_id FROM article_tags WHERE article_id = ? ORDER BY term_id`), id); err != nil {
		return nil, fmt.Errorf("failed to load tags for article %d: %w", id, err)
	}
	return &a, nil
}
