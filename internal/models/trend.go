package models

import "time"

// Trend represents a row in the 'trends' table
type Trend struct {
	ID             int64     `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	Traffic        int       `db:"traffic" json:"traffic"` // approximate searches, in thousands
	PubDate        time.Time `db:"pub_date" json:"pub_date"`
	Link           string    `db:"link" json:"link"`
	Snippet        string    `db:"snippet" json:"snippet"`
	ImageURL       string    `db:"image_url" json:"image_url"`
	Processed      bool      `db:"processed" json:"processed"`
	NodeID         *int64    `db:"node_id" json:"node_id,omitempty"`
	ProcessingCost *float64  `db:"processing_cost" json:"processing_cost,omitempty"`
	ImportedAt     time.Time `db:"imported_at" json:"imported_at"`
}

// NewTrend creates a new unprocessed Trend. The publication date is stored in
// UTC with second precision so that (title, pub_date) stays a stable identity.
func NewTrend(title string, pubDate time.Time) *Trend {
	return &Trend{
		Title:      title,
		PubDate:    pubDate.UTC().Truncate(time.Second),
		ImportedAt: time.Now().UTC(),
	}
}

// NewsItem represents a row in the 'news_items' table
type NewsItem struct {
	ID      int64  `db:"id" json:"id"`
	TrendID int64  `db:"trend_id" json:"trend_id"`
	Title   string `db:"title" json:"title"`
	Snippet string `db:"snippet" json:"snippet"`
	URL     string `db:"url" json:"url"`
	Source  string `db:"source" json:"source"`
	Picture string `db:"picture" json:"picture"`
}
