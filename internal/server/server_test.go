package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendforge/importer/internal/database"
	"trendforge/importer/internal/ingest"
	"trendforge/importer/internal/models"
	"trendforge/importer/internal/server/api"
	"trendforge/importer/internal/server/storage"
	"trendforge/importer/internal/store"
)

type fakeImporter struct {
	summary  ingest.Summary
	fetchErr error
	clearErr error
	cleared  bool
}

func (f *fakeImporter) FetchAndSaveTrends(ctx context.Context) (ingest.Summary, error) {
	return f.summary, f.fetchErr
}

func (f *fakeImporter) ClearData(ctx context.Context) error {
	f.cleared = true
	return f.clearErr
}

type fixedQueue int64

func (q fixedQueue) Len(ctx context.Context) (int64, error) { return int64(q), nil }

func newTestServer(t *testing.T, imp *fakeImporter, apiKey string) (*httptest.Server, *store.TrendStore) {
	t.Helper()
	db, err := database.NewDB(database.NewConfig(database.DriverSQLite, filepath.Join(t.TempDir(), "api.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewHandler(Deps{
		Repo:     storage.NewRepository(db),
		Importer: imp,
		Queue:    fixedQueue(3),
		Overview: api.Overview{Provider: "openai", Model: "gpt-4o-mini", MaxTrends: 5},
	}, zerolog.Nop(), apiKey)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, store.NewTrendStore(db)
}

func do(t *testing.T, method, url, apiKey string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthAndAuth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeImporter{}, "secret")

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
	assert.NotEmpty(t, resp.Header.Get("Request-Id"))

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/trends", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/trends", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/trends", "secret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/trends", "secret")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestListTrendsPaginates(t *testing.T) {
	srv, trends := newTestServer(t, &fakeImporter{}, "")
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		tr := models.NewTrend(fmt.Sprintf("trend %d", i), base.Add(time.Duration(i)*time.Hour))
		tr.ImportedAt = base.Add(time.Duration(i) * time.Minute)
		_, _, err := trends.InsertTrend(ctx, tr)
		require.NoError(t, err)
	}

	var titles []string
	url := srv.URL + "/v1/trends?limit=2"
	for page := 0; page < 5; page++ {
		resp, body := do(t, http.MethodGet, url, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var r api.Response
		require.NoError(t, json.Unmarshal(body, &r))
		for _, it := range r.Items {
			titles = append(titles, it.Title)
		}
		if r.NextCursor == nil {
			break
		}
		url = srv.URL + "/v1/trends?limit=2&cursor=" + *r.NextCursor
	}
	assert.Equal(t, []string{"trend 4", "trend 3", "trend 2", "trend 1", "trend 0"}, titles)

	resp, _ := do(t, http.MethodGet, srv.URL+"/v1/trends?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/trends?cursor=!!", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	srv, trends := newTestServer(t, &fakeImporter{}, "")
	ctx := context.Background()

	id, _, err := trends.InsertTrend(ctx, models.NewTrend("done", time.Now()))
	require.NoError(t, err)
	cost := 0.25
	require.NoError(t, trends.Complete(ctx, id, 10, &cost))
	_, _, err = trends.InsertTrend(ctx, models.NewTrend("waiting", time.Now()))
	require.NoError(t, err)

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.EqualValues(t, 2, stats["total_trends"])
	assert.EqualValues(t, 1, stats["processed_trends"])
	assert.EqualValues(t, 1, stats["pending_trends"])
	assert.EqualValues(t, 1, stats["articles_created"])
	assert.EqualValues(t, 0.25, stats["total_cost"])
	assert.EqualValues(t, 3, stats["queue_length"])
	assert.Equal(t, "gpt-4o-mini", stats["config"].(map[string]any)["model"])
}

func TestFetchEndpoint(t *testing.T) {
	imp := &fakeImporter{summary: ingest.Summary{Imported: 3, Duplicates: 2}}
	srv, _ := newTestServer(t, imp, "")

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/fetch", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status api.StatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, api.StatusOK, status.Status)
	assert.Contains(t, status.Message, "Imported 3 new trends")

	imp.fetchErr = ingest.ErrImportDisabled
	resp, body = do(t, http.MethodPost, srv.URL+"/v1/fetch", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, api.StatusError, status.Status)

	imp.fetchErr = errors.New("feed returned status 500")
	resp, body = do(t, http.MethodPost, srv.URL+"/v1/fetch", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Contains(t, status.Message, "status 500")
}

func TestClearEndpoint(t *testing.T) {
	imp := &fakeImporter{}
	srv, _ := newTestServer(t, imp, "")

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/clear", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, imp.cleared)
	var status api.StatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, api.StatusOK, status.Status)

	imp.clearErr = errors.New("disk full")
	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/clear", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRunServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunServer(ctx, http.NotFoundHandler(), "127.0.0.1:0", zerolog.Nop())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
