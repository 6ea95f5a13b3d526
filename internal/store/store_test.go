package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendforge/importer/internal/database"
	"trendforge/importer/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(database.NewConfig(database.DriverSQLite, filepath.Join(t.TempDir(), "trends.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertTrendWithNewsDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := NewTrendStore(newTestDB(t))

	pub := time.Date(2025, 3, 1, 14, 30, 0, 0, time.FixedZone("CET", 3600))
	trend := models.NewTrend("Solar eclipse", pub)
	trend.Traffic = 200
	news := []models.NewsItem{
		{Title: "Eclipse tonight", URL: "https://news.example.com/a", Source: "Example"},
		{Title: "How to watch", URL: "https://other.example.org/b"},
	}

	id, inserted, err := s.InsertTrendWithNews(ctx, trend, news)
	require.NoError(t, err)
	require.True(t, inserted)
	assert.NotZero(t, id)

	again := models.NewTrend("Solar eclipse", pub.UTC())
	_, inserted, err = s.InsertTrendWithNews(ctx, again, news)
	require.NoError(t, err)
	assert.False(t, inserted)

	found, err := s.FindTrendByTitleAndDate(ctx, "Solar eclipse", pub)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, id, found.ID)
	assert.True(t, found.PubDate.Equal(pub))
	assert.False(t, found.Processed)
	assert.Nil(t, found.NodeID)

	items, err := s.GetNewsItems(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Eclipse tonight", items[0].Title)
	assert.Equal(t, "https://other.example.org/b", items[1].URL)
}

func TestGetTrendMissing(t *testing.T) {
	s := NewTrendStore(newTestDB(t))

	trend, err := s.GetTrend(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, trend)

	trend, err = s.FindTrendByTitleAndDate(context.Background(), "nothing", time.Now())
	require.NoError(t, err)
	assert.Nil(t, trend)
}

func TestCompleteSetsAllFields(t *testing.T) {
	ctx := context.Background()
	s := NewTrendStore(newTestDB(t))

	id, _, err := s.InsertTrend(ctx, models.NewTrend("Budget vote", time.Now()))
	require.NoError(t, err)

	cost := 0.0125
	require.NoError(t, s.Complete(ctx, id, 77, &cost))

	trend, err := s.GetTrend(ctx, id)
	require.NoError(t, err)
	assert.True(t, trend.Processed)
	require.NotNil(t, trend.NodeID)
	assert.Equal(t, int64(77), *trend.NodeID)
	require.NotNil(t, trend.ProcessingCost)
	assert.InDelta(t, 0.0125, *trend.ProcessingCost, 1e-9)
}

func TestTrendInvariantsAreEnforced(t *testing.T) {
	ctx := context.Background()
	s := NewTrendStore(newTestDB(t))

	id, _, err := s.InsertTrend(ctx, models.NewTrend("Stadium deal", time.Now()))
	require.NoError(t, err)

	require.NoError(t, s.Complete(ctx, id, 5, nil))

	err = s.Complete(ctx, id, 6, nil)
	assert.ErrorIs(t, err, ErrArticleAlreadyLinked)

	other := int64(9)
	err = s.UpdateTrend(ctx, id, TrendUpdate{NodeID: &other})
	assert.ErrorIs(t, err, ErrArticleAlreadyLinked)

	notProcessed := false
	err = s.UpdateTrend(ctx, id, TrendUpdate{Processed: &notProcessed})
	assert.ErrorIs(t, err, ErrProcessedReset)

	trend, err := s.GetTrend(ctx, id)
	require.NoError(t, err)
	assert.True(t, trend.Processed)
	require.NotNil(t, trend.NodeID)
	assert.Equal(t, int64(5), *trend.NodeID)

	assert.ErrorIs(t, s.Complete(ctx, 999, 1, nil), ErrArticleAlreadyLinked)
}

func TestMarkProcessedLeavesNodeEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewTrendStore(newTestDB(t))

	id, _, err := s.InsertTrend(ctx, models.NewTrend("Quiet topic", time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(ctx, id))

	trend, err := s.GetTrend(ctx, id)
	require.NoError(t, err)
	assert.True(t, trend.Processed)
	assert.Nil(t, trend.NodeID)
	assert.Nil(t, trend.ProcessingCost)
}

func TestTruncateAll(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewTrendStore(db)

	_, _, err := s.InsertTrendWithNews(ctx, models.NewTrend("One", time.Now()),
		[]models.NewsItem{{Title: "n", URL: "https://example.com"}})
	require.NoError(t, err)

	require.NoError(t, s.TruncateAll(ctx))

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM trends"))
	assert.Zero(t, n)
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM news_items"))
	assert.Zero(t, n)
}

func TestCreateArticleAndFindByTrend(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	articles := NewArticleStore(db)
	tags := NewTagStore(db)

	_, found, err := articles.FindByTrend(ctx, 9)
	require.NoError(t, err)
	assert.False(t, found)

	t1, err := tags.FindOrCreateTerm(ctx, "tags", "Space")
	require.NoError(t, err)

	a := models.NewArticle(9, models.ContentTypeConfig{ContentType: "article", BodyFormat: "full_html"})
	a.Title = "Eclipse"
	a.Slug = "eclipse"
	a.Body = "<p>Dark skies</p>"
	a.Media = []models.ArticleMedia{
		{Field: "field_image", BlobRef: "trends/eclipse-1.jpg", Alt: "Eclipse"},
		{Field: "field_image", BlobRef: "trends/eclipse-2.png", Alt: "Eclipse"},
	}
	a.TagIDs = []int64{t1, t1}

	id, err := articles.CreateArticle(ctx, a, "field_tags")
	require.NoError(t, err)

	got, found, err := articles.FindByTrend(ctx, 9)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id, got)

	stored, err := articles.GetArticle(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.Published)
	require.Len(t, stored.Media, 2)
	assert.Equal(t, "trends/eclipse-2.png", stored.Media[1].BlobRef)
	assert.Equal(t, []int64{t1}, stored.TagIDs)
}

func TestFindOrCreateTermIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	tags := NewTagStore(newTestDB(t))

	a, err := tags.FindOrCreateTerm(ctx, "tags", "Elections")
	require.NoError(t, err)
	b, err := tags.FindOrCreateTerm(ctx, "tags", " elections ")
	require.NoError(t, err)
	c, err := tags.FindOrCreateTerm(ctx, "topics", "elections")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	names, err := tags.ListVocabularyTerms(ctx, "tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"Elections"}, names)

	_, err = tags.FindOrCreateTerm(ctx, "tags", "  ")
	assert.Error(t, err)
}
