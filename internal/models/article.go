package models

import "time"

// Article is a generated article persisted in the 'articles' table.
type Article struct {
	ID          int64     `db:"id"`
	TrendID     int64     `db:"trend_id"`
	Title       string    `db:"title"`
	Slug        string    `db:"slug"`
	Body        string    `db:"body"`
	BodyFormat  string    `db:"body_format"`
	ContentType string    `db:"content_type"`
	Published   bool      `db:"published"`
	DomainID    string    `db:"domain_id"`
	CreatedAt   time.Time `db:"created_at"`

	Media  []ArticleMedia `db:"-"`
	TagIDs []int64        `db:"-"`
}

// ArticleMedia is one stored media reference attached to an article field.
type ArticleMedia struct {
	ArticleID int64  `db:"article_id"`
	Field     string `db:"field"`
	Position  int    `db:"position"`
	BlobRef   string `db:"blob_ref"`
	Alt       string `db:"alt"`
}

// Term is a tag within a vocabulary.
type Term struct {
	ID         int64  `db:"id"`
	Vocabulary string `db:"vocabulary"`
	Name       string `db:"name"`
}

// ContentTypeConfig describes how generated articles map onto the article store.
type ContentTypeConfig struct {
	ContentType string
	BodyFormat  string
	ImageField  string
	TagsField   string
	Vocabulary  string
	Published   bool
	DomainID    string
}

// NewArticle creates an Article for a trend using the content type defaults.
func NewArticle(trendID int64, ct ContentTypeConfig) *Article {
	return &Article{
		TrendID:     trendID,
		BodyFormat:  ct.BodyFormat,
		ContentType: ct.ContentType,
		Published:   ct.Published,
		DomainID:    ct.DomainID,
		CreatedAt:   time.Now().UTC(),
	}
}
