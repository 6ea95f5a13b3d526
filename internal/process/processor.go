// Package process turns queued trends into published articles.
package process

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"trendforge/importer/internal/ai"
	"trendforge/importer/internal/blob"
	"trendforge/importer/internal/config"
	"trendforge/importer/internal/extract"
	"trendforge/importer/internal/fetch"
	"trendforge/importer/internal/media"
	"trendforge/importer/internal/models"
)

// sourceSeparator joins the scraped text of several news pages.
const sourceSeparator = "\n\n---\n\n"

// ErrNotConfigured is logged when no usable AI provider or prompt is set.
var ErrNotConfigured = errors.New("AI provider is not configured")

// TrendStore is the trend persistence used by the processor.
type TrendStore interface {
	GetTrend(ctx context.Context, id int64) (*models.Trend, error)
	GetNewsItems(ctx context.Context, trendID int64) ([]models.NewsItem, error)
	MarkProcessed(ctx context.Context, id int64) error
	Complete(ctx context.Context, id, nodeID int64, cost *float64) error
}

// ArticleStore persists generated articles.
type ArticleStore interface {
	CreateArticle(ctx context.Context, a *models.Article, tagsField string) (int64, error)
	FindByTrend(ctx context.Context, trendID int64) (int64, bool, error)
}

// TagStore resolves tag names to terms.
type TagStore interface {
	ListVocabularyTerms(ctx context.Context, vocabulary string) ([]string, error)
	FindOrCreateTerm(ctx context.Context, vocabulary, name string) (int64, error)
}

// Synthesizer writes an article draft from source text.
type Synthesizer interface {
	Ready() bool
	Synthesize(ctx context.Context, template, title, sourceText string, tags []string) (ai.Result, error)
}

// MediaPipeline collects media for a trend.
type MediaPipeline interface {
	ExtractMedia(ctx context.Context, pages fetch.Getter, items []models.NewsItem) media.Result
	ResolveThumbnail(ctx context.Context, videoURL string) string
}

// Options configures a Processor.
type Options struct {
	Prompt            string
	Content           models.ContentTypeConfig
	MaxImages         int
	ScrapeConcurrency int
}

// Processor runs the full pipeline for a single trend.
type Processor struct {
	trends    TrendStore
	articles  ArticleStore
	tags      TagStore
	synth     Synthesizer
	media     MediaPipeline
	blobs     blob.Store
	client    fetch.Getter
	extractor *extract.Extractor
	opts      Options
}

// Deps groups the collaborators of a Processor.
type Deps struct {
	Trends      TrendStore
	Articles    ArticleStore
	Tags        TagStore
	Synthesizer Synthesizer
	Media       MediaPipeline
	Blobs       blob.Store
	Client      fetch.Getter
	Extractor   *extract.Extractor
}

// NewProcessor creates a Processor.
func NewProcessor(d Deps, opts Options) *Processor {
	if opts.MaxImages <= 0 {
		opts.MaxImages = config.DefaultMaxImages
	}
	if opts.ScrapeConcurrency <= 0 {
		opts.ScrapeConcurrency = config.DefaultScrapeConcurrency
	}
	if d.Extractor == nil {
		d.Extractor = extract.NewExtractor()
	}
	return &Processor{
		trends:    d.Trends,
		articles:  d.Articles,
		tags:      d.Tags,
		synth:     d.Synthesizer,
		media:     d.Media,
		blobs:     d.Blobs,
		client:    d.Client,
		extractor: d.Extractor,
		opts:      opts,
	}
}

// ProcessItem processes one queued trend. It returns nil when the trend is
// done or cannot be processed at all, and a *RetryableError when a later
// attempt may succeed.
func (p *Processor) ProcessItem(ctx context.Context, trendID int64) error {
	if !p.synth.Ready() || strings.TrimSpace(p.opts.Prompt) == "" {
		log.Error().Err(ErrNotConfigured).Int64("trend_id", trendID).Msg("Cannot process trend, AI provider key or prompt missing")
		return nil
	}

	trend, err := p.trends.GetTrend(ctx, trendID)
	if err != nil {
		log.Error().Err(err).Int64("trend_id", trendID).Msg("Failed to load trend")
		return retryable(trendID, err)
	}
	if trend == nil {
		log.Error().Int64("trend_id", trendID).Msg("Trend not found, dropping queue item")
		return nil
	}

	done, err := p.reconcile(ctx, trend)
	if err != nil {
		log.Error().Err(err).Int64("trend_id", trendID).Msg("Failed to reconcile trend state")
		return retryable(trendID, err)
	}
	if done {
		return nil
	}

	if err := p.process(ctx, trend); err != nil {
		log.Error().Err(err).Int64("trend_id", trendID).Str("title", trend.Title).Msg("Failed to process trend")
		return retryable(trendID, err)
	}
	return nil
}

// reconcile finishes trends whose article already exists. It reports whether
// there is nothing left to do.
func (p *Processor) reconcile(ctx context.Context, trend *models.Trend) (bool, error) {
	if trend.Processed {
		log.Debug().Int64("trend_id", trend.ID).Msg("Trend already processed")
		return true, nil
	}

	if trend.NodeID != nil {
		log.Info().Int64("trend_id", trend.ID).Int64("article_id", *trend.NodeID).Msg("Trend has an article but is not marked processed")
		return true, p.trends.MarkProcessed(ctx, trend.ID)
	}

	articleID, ok, err := p.articles.FindByTrend(ctx, trend.ID)
	if err != nil {
		return false, err
	}
	if ok {
		log.Info().Int64("trend_id", trend.ID).Int64("article_id", articleID).Msg("Found article from an earlier attempt, completing trend")
		return true, p.trends.Complete(ctx, trend.ID, articleID, nil)
	}
	return false, nil
}

func (p *Processor) process(ctx context.Context, trend *models.Trend) error {
	start := time.Now()

	news, err := p.trends.GetNewsItems(ctx, trend.ID)
	if err != nil {
		return err
	}
	if len(news) == 0 {
		log.Warn().Int64("trend_id", trend.ID).Msg("Trend has no news items, marking processed")
		return p.trends.MarkProcessed(ctx, trend.ID)
	}

	pages := fetch.NewPageCache(p.client)

	source := p.scrape(ctx, pages, news)
	if source == "" {
		log.Warn().Int64("trend_id", trend.ID).Int("news_items", len(news)).Msg("No text could be scraped for trend, marking processed")
		return p.trends.MarkProcessed(ctx, trend.ID)
	}

	var existingTags []string
	if p.opts.Content.Vocabulary != "" {
		existingTags, err = p.tags.ListVocabularyTerms(ctx, p.opts.Content.Vocabulary)
		if err != nil {
			return err
		}
	}

	log.Info().Int64("trend_id", trend.ID).Str("title", trend.Title).Int("source_len", len(source)).Msg("Sending trend to AI provider")

	res, err := p.synth.Synthesize(ctx, p.opts.Prompt, trend.Title, source, existingTags)
	if err != nil {
		return err
	}

	parsed := ai.ParseResponse(res.RawText, config.TitleSeparator, config.TagsSeparator, trend.Title)

	found := p.media.ExtractMedia(ctx, pages, news)

	article := models.NewArticle(trend.ID, p.opts.Content)
	article.Title = parsed.Title
	article.Slug = Slugify(parsed.Title)
	article.Body = parsed.Body
	if found.Video != "" {
		article.Body = VideoEmbed(found.Video) + "\n" + article.Body
	}
	if !trend.PubDate.IsZero() {
		article.CreatedAt = trend.PubDate.UTC()
	}

	article.Media, err = p.storeImages(ctx, trend, found, article.Slug, parsed.Title)
	if err != nil {
		return err
	}

	if p.opts.Content.Vocabulary != "" {
		for _, name := range parsed.Tags {
			id, err := p.tags.FindOrCreateTerm(ctx, p.opts.Content.Vocabulary, name)
			if err != nil {
				return err
			}
			article.TagIDs = append(article.TagIDs, id)
		}
	}

	articleID, err := p.articles.CreateArticle(ctx, article, p.opts.Content.TagsField)
	if err != nil {
		return err
	}

	cost := res.Cost
	if err := p.trends.Complete(ctx, trend.ID, articleID, &cost); err != nil {
		return fmt.Errorf("article %d created but trend not updated: %w", articleID, err)
	}

	log.Info().
		Int64("trend_id", trend.ID).
		Int64("article_id", articleID).
		Str("title", article.Title).
		Int("images", len(article.Media)).
		Int("tags", len(article.TagIDs)).
		Float64("cost", cost).
		Dur("duration", time.Since(start)).
		Msg("Trend processed")

	return nil
}

// scrape loads every news page and joins their readable text in news-item order.
func (p *Processor) scrape(ctx context.Context, pages fetch.Getter, news []models.NewsItem) string {
	chunks := make([]string, len(news))

	g := new(errgroup.Group)
	g.SetLimit(p.opts.ScrapeConcurrency)
	for i, item := range news {
		if item.URL == "" {
			continue
		}
		i, item := i, item
		g.Go(func() error {
			chunks[i] = p.scrapePage(ctx, pages, item.URL)
			return nil
		})
	}
	g.Wait()

	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, sourceSeparator)
}

func (p *Processor) scrapePage(ctx context.Context, pages fetch.Getter, url string) string {
	resp, err := pages.Get(ctx, url, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Failed to fetch news page")
		return ""
	}
	if !resp.OK() {
		log.Warn().Int("status", resp.Status).Str("url", url).Msg("News page returned an error status")
		return ""
	}

	c := p.extractor.Extract(string(resp.Body), url)
	if !c.Success || c.Text == "" {
		log.Warn().Str("url", url).Msg("Readability could not extract content")
		return ""
	}
	return c.Title + "\n\n" + c.Text
}

// VideoEmbed returns the HTML block placed above the article body.
func VideoEmbed(videoURL string) string {
	return `<div class="video-embed"><iframe width="560" height="315" src="` + html.EscapeString(videoURL) +
		`" frameborder="0" allow="accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture" allowfullscreen></iframe></div>`
}
