package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"trendforge/importer/internal/fetch"
	"trendforge/importer/internal/models"
)

var (
	// ErrFeedURLNotConfigured is returned when no feed URL is set.
	ErrFeedURLNotConfigured = errors.New("trends feed url is not configured")
	// ErrImportDisabled is returned when imports are switched off.
	ErrImportDisabled = errors.New("trends import is disabled")
)

// TrendStore is the persistence needed by the ingestor.
type TrendStore interface {
	FindTrendByTitleAndDate(ctx context.Context, title string, pubDate time.Time) (*models.Trend, error)
	InsertTrendWithNews(ctx context.Context, t *models.Trend, items []models.NewsItem) (int64, bool, error)
	TruncateAll(ctx context.Context) error
}

// Queue receives the ids of newly imported trends.
type Queue interface {
	Enqueue(ctx context.Context, trendID int64) error
	Purge(ctx context.Context) error
}

// Options configures an Ingestor.
type Options struct {
	FeedURL       string
	ImportEnabled bool
	MinTraffic    int
	MaxTrends     int // new imports per run; 0 means unlimited
	DenyList      []string
}

// Summary counts what happened to the feed items of one run.
type Summary struct {
	Imported       int `json:"imported"`
	SkippedTraffic int `json:"skipped_traffic"`
	FilteredTLD    int `json:"filtered_tld"`
	Duplicates     int `json:"duplicates"`
	Invalid        int `json:"invalid"`
	Requeued       int `json:"requeued"`
}

// Ingestor imports trends from the feed and queues them for processing.
type Ingestor struct {
	store   TrendStore
	queue   Queue
	fetcher fetch.Getter
	opts    Options
}

// NewIngestor creates an Ingestor.
func NewIngestor(store TrendStore, queue Queue, fetcher fetch.Getter, opts Options) *Ingestor {
	return &Ingestor{store: store, queue: queue, fetcher: fetcher, opts: opts}
}

// FetchAndSaveTrends downloads the feed, stores every new qualifying trend
// with its news items and enqueues it. It stops after MaxTrends new imports.
func (i *Ingestor) FetchAndSaveTrends(ctx context.Context) (Summary, error) {
	var sum Summary

	if !i.opts.ImportEnabled {
		log.Warn().Msg("Trends import is disabled, skipping fetch")
		return sum, ErrImportDisabled
	}
	if i.opts.FeedURL == "" {
		log.Warn().Msg("Trends feed URL is not configured, skipping fetch")
		return sum, ErrFeedURLNotConfigured
	}

	log.Info().Str("url", i.opts.FeedURL).Msg("Fetching trends feed")

	resp, err := i.fetcher.Get(ctx, i.opts.FeedURL, map[string]string{"Accept": "application/rss+xml, application/xml;q=0.9"})
	if err != nil {
		log.Error().Err(err).Str("url", i.opts.FeedURL).Msg("Failed to fetch trends feed")
		return sum, fmt.Errorf("failed to fetch feed: %w", err)
	}
	if !resp.OK() {
		log.Error().Int("status", resp.Status).Str("url", i.opts.FeedURL).Msg("Trends feed returned an error status")
		return sum, fmt.Errorf("feed returned status %d", resp.Status)
	}

	items, err := ParseFeed(resp.Body)
	if err != nil {
		log.Error().Err(err).Str("url", i.opts.FeedURL).Msg("Failed to parse trends feed")
		return sum, err
	}

	for _, item := range items {
		if i.opts.MaxTrends > 0 && sum.Imported >= i.opts.MaxTrends {
			log.Info().Int("max_trends", i.opts.MaxTrends).Msg("Reached maximum trends per run")
			break
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		i.ingestItem(ctx, item, &sum)
	}

	log.Info().
		Int("imported", sum.Imported).
		Int("skipped_traffic", sum.SkippedTraffic).
		Int("filtered_tld", sum.FilteredTLD).
		Int("duplicates", sum.Duplicates).
		Int("invalid", sum.Invalid).
		Int("requeued", sum.Requeued).
		Msg("Trends fetch finished")

	return sum, nil
}

func (i *Ingestor) ingestItem(ctx context.Context, item FeedItem, sum *Summary) {
	traffic := ParseTraffic(item.Traffic)
	if i.opts.MinTraffic > 0 && traffic < i.opts.MinTraffic {
		log.Debug().Str("title", item.Title).Int("traffic", traffic).Msg("Trend below minimum traffic")
		sum.SkippedTraffic++
		return
	}

	if item.PubDate == nil {
		log.Error().Str("title", item.Title).Str("pub_date", item.PubDateRaw).Msg("Invalid trend publication date")
		sum.Invalid++
		return
	}

	if filtered, host, tld := FilteredByTLD(item.URLs(), i.opts.DenyList); filtered {
		log.Info().Str("title", item.Title).Str("host", host).Str("tld", tld).Msg("Trend filtered by TLD")
		sum.FilteredTLD++
		return
	}

	existing, err := i.store.FindTrendByTitleAndDate(ctx, item.Title, *item.PubDate)
	if err != nil {
		log.Error().Err(err).Str("title", item.Title).Msg("Failed to check for duplicate trend")
		sum.Invalid++
		return
	}
	if existing != nil {
		sum.Duplicates++
		i.requeueUnfinished(ctx, existing, sum)
		return
	}

	trend := models.NewTrend(item.Title, *item.PubDate)
	trend.Traffic = traffic
	trend.Link = item.Link
	trend.Snippet = item.Snippet
	trend.ImageURL = item.Picture

	news := make([]models.NewsItem, 0, len(item.News))
	for _, n := range item.News {
		news = append(news, models.NewsItem{
			Title:   n.Title,
			Snippet: n.Snippet,
			URL:     n.URL,
			Source:  n.Source,
			Picture: n.Picture,
		})
	}

	id, inserted, err := i.store.InsertTrendWithNews(ctx, trend, news)
	if err != nil {
		log.Error().Err(err).Str("title", item.Title).Msg("Failed to store trend")
		sum.Invalid++
		return
	}
	if !inserted {
		sum.Duplicates++
		return
	}

	if err := i.queue.Enqueue(ctx, id); err != nil {
		log.Error().Err(err).Int64("trend_id", id).Msg("Failed to enqueue trend")
		sum.Invalid++
		return
	}

	sum.Imported++
	log.Info().
		Int64("trend_id", id).
		Str("title", trend.Title).
		Int("traffic", traffic).
		Int("news_items", len(news)).
		Msg("Trend imported")
}

// requeueUnfinished queues a known trend again when it never got an article,
// which covers an enqueue that failed after the insert. Enqueue is idempotent
// so a trend still waiting in the queue is not duplicated.
func (i *Ingestor) requeueUnfinished(ctx context.Context, t *models.Trend, sum *Summary) {
	if t.Processed || t.NodeID != nil {
		return
	}
	if err := i.queue.Enqueue(ctx, t.ID); err != nil {
		log.Error().Err(err).Int64("trend_id", t.ID).Msg("Failed to requeue unfinished trend")
		return
	}
	sum.Requeued++
	log.Debug().Int64("trend_id", t.ID).Str("title", t.Title).Msg("Unfinished trend requeued")
}

// ClearData removes all trends and news items and empties the queue.
func (i *Ingestor) ClearData(ctx context.Context) error {
	if err := i.store.TruncateAll(ctx); err != nil {
		return fmt.Errorf("failed to clear trends: %w", err)
	}
	if err := i.queue.Purge(ctx); err != nil {
		return fmt.Errorf("failed to purge queue: %w", err)
	}
	log.Info().Msg("All trends data cleared")
	return nil
}
