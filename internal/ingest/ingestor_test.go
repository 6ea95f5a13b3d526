package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendforge/importer/internal/database"
	"trendforge/importer/internal/fetch"
	"trendforge/importer/internal/queue"
	"trendforge/importer/internal/store"
)

type fixture struct {
	db     *database.DB
	trends *store.TrendStore
	queue  *queue.DBQueue
	client *fetch.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewDB(database.NewConfig(database.DriverSQLite, filepath.Join(t.TempDir(), "ingest.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &fixture{
		db:     db,
		trends: store.NewTrendStore(db),
		queue:  queue.NewDBQueue(db),
		client: fetch.NewClient(fetch.Options{Timeout: 5 * time.Second}),
	}
}

func (f *fixture) ingestor(opts Options) *Ingestor {
	return NewIngestor(f.trends, f.queue, f.client, opts)
}

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type feedEntry struct {
	title   string
	traffic string
	pubDate string
	urls    []string
}

func buildFeed(entries []feedEntry) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<rss xmlns:ht="https://trends.google.com/trending/rss" version="2.0"><channel><title>Trends</title>`)
	for _, e := range entries {
		fmt.Fprintf(&b, "<item><title>%s</title><ht:approx_traffic>%s</ht:approx_traffic><pubDate>%s</pubDate>", e.title, e.traffic, e.pubDate)
		for i, u := range e.urls {
			fmt.Fprintf(&b, "<ht:news_item><ht:news_item_title>%s %d</ht:news_item_title><ht:news_item_url>%s</ht:news_item_url></ht:news_item>", e.title, i, u)
		}
		b.WriteString("</item>")
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

const pub = "Sat, 01 Mar 2025 14:30:00 +0000"

func TestFetchAndSaveTrendsRespectsMaxTrends(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	entries := make([]feedEntry, 20)
	for i := range entries {
		entries[i] = feedEntry{title: fmt.Sprintf("trend %02d", i), traffic: "100K+", pubDate: pub, urls: []string{"https://news.example.com/" + fmt.Sprint(i)}}
	}
	srv := serveFeed(t, buildFeed(entries))

	sum, err := f.ingestor(Options{FeedURL: srv.URL, ImportEnabled: true, MaxTrends: 5}).FetchAndSaveTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Imported)

	var count int
	require.NoError(t, f.db.Get(&count, "SELECT COUNT(*) FROM trends"))
	assert.Equal(t, 5, count)

	n, err := f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// The next run picks up where the previous one stopped.
	sum, err = f.ingestor(Options{FeedURL: srv.URL, ImportEnabled: true, MaxTrends: 5}).FetchAndSaveTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Imported)
	assert.Equal(t, 5, sum.Duplicates)
}

func TestFetchAndSaveTrendsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := serveFeed(t, sampleFeed)
	ing := f.ingestor(Options{FeedURL: srv.URL, ImportEnabled: true})

	sum, err := ing.FetchAndSaveTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Imported: 1, Invalid: 1}, sum)

	sum, err = ing.FetchAndSaveTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Duplicates: 1, Invalid: 1, Requeued: 1}, sum)

	trend, err := f.trends.FindTrendByTitleAndDate(ctx, "solar eclipse", time.Date(2025, 3, 1, 22, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, trend)
	assert.Equal(t, 200, trend.Traffic)
	assert.Equal(t, "https://img.example.com/eclipse.jpg", trend.ImageURL)
	assert.False(t, trend.Processed)

	news, err := f.trends.GetNewsItems(ctx, trend.ID)
	require.NoError(t, err)
	assert.Len(t, news, 2)

	n, err := f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// failingQueue rejects the first Enqueue call and passes the rest through.
type failingQueue struct {
	*queue.DBQueue
	failed bool
}

func (q *failingQueue) Enqueue(ctx context.Context, trendID int64) error {
	if !q.failed {
		q.failed = true
		return errors.New("queue unavailable")
	}
	return q.DBQueue.Enqueue(ctx, trendID)
}

func TestFetchAndSaveTrendsRequeuesUnfinishedTrend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := serveFeed(t, buildFeed([]feedEntry{{title: "harbour strike", traffic: "50K+", pubDate: pub, urls: []string{"https://news.example.com/strike"}}}))
	ing := NewIngestor(f.trends, &failingQueue{DBQueue: f.queue}, f.client, Options{FeedURL: srv.URL, ImportEnabled: true})

	sum, err := ing.FetchAndSaveTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Invalid: 1}, sum)

	n, err := f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	sum, err = ing.FetchAndSaveTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Duplicates: 1, Requeued: 1}, sum)

	n, err = f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Finished trends stay out of the queue.
	trend, err := f.trends.FindTrendByTitleAndDate(ctx, "harbour strike", time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, trend)
	require.NoError(t, f.trends.MarkProcessed(ctx, trend.ID))
	require.NoError(t, f.queue.Purge(ctx))

	sum, err = ing.FetchAndSaveTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Duplicates: 1}, sum)
	n, err = f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestFetchAndSaveTrendsFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := serveFeed(t, buildFeed([]feedEntry{
		{title: "small", traffic: "5K+", pubDate: pub, urls: []string{"https://a.example.com"}},
		{title: "russian", traffic: "50K+", pubDate: pub, urls: []string{"https://a.example.com", "https://news.example.ru/x"}},
		{title: "chinese", traffic: "50K+", pubDate: pub, urls: []string{"http://cn/"}},
		{title: "kept", traffic: "50K+", pubDate: pub, urls: []string{"https://a.example.com", "https://b.example.org"}},
	}))

	sum, err := f.ingestor(Options{
		FeedURL:       srv.URL,
		ImportEnabled: true,
		MinTraffic:    10,
		DenyList:      ParseDenyList("ru,cn"),
	}).FetchAndSaveTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Imported: 1, SkippedTraffic: 1, FilteredTLD: 2}, sum)

	var titles []string
	require.NoError(t, f.db.Select(&titles, "SELECT title FROM trends"))
	assert.Equal(t, []string{"kept"}, titles)
}

func TestFetchAndSaveTrendsEmptyDenyListKeepsAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := serveFeed(t, buildFeed([]feedEntry{
		{title: "russian", traffic: "50K+", pubDate: pub, urls: []string{"https://news.example.ru/x"}},
	}))

	sum, err := f.ingestor(Options{FeedURL: srv.URL, ImportEnabled: true}).FetchAndSaveTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Imported)
}

func TestFetchAndSaveTrendsPreconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ingestor(Options{FeedURL: "http://unused.invalid", ImportEnabled: false}).FetchAndSaveTrends(ctx)
	assert.ErrorIs(t, err, ErrImportDisabled)

	_, err = f.ingestor(Options{ImportEnabled: true}).FetchAndSaveTrends(ctx)
	assert.ErrorIs(t, err, ErrFeedURLNotConfigured)
}

func TestFetchAndSaveTrendsFeedErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer failing.Close()

	_, err := f.ingestor(Options{FeedURL: failing.URL, ImportEnabled: true}).FetchAndSaveTrends(ctx)
	assert.Error(t, err)

	garbage := serveFeed(t, "<html><body>not a feed</body></html>")
	_, err = f.ingestor(Options{FeedURL: garbage.URL, ImportEnabled: true}).FetchAndSaveTrends(ctx)
	assert.Error(t, err)

	var count int
	require.NoError(t, f.db.Get(&count, "SELECT COUNT(*) FROM trends"))
	assert.Zero(t, count)
}

func TestClearData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	srv := serveFeed(t, sampleFeed)
	ing := f.ingestor(Options{FeedURL: srv.URL, ImportEnabled: true})

	_, err := ing.FetchAndSaveTrends(ctx)
	require.NoError(t, err)
	require.NoError(t, ing.ClearData(ctx))

	var count int
	require.NoError(t, f.db.Get(&count, "SELECT COUNT(*) FROM trends"))
	assert.Zero(t, count)
	require.NoError(t, f.db.Get(&count, "SELECT COUNT(*) FROM news_items"))
	assert.Zero(t, count)

	n, err := f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
