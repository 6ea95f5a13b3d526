package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGetReturnsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "hello")
	}))
	defer srv.Close()

	c := NewClient(Options{Timeout: time.Second})

	resp, err := c.Get(context.Background(), srv.URL+"/ok", map[string]string{"X-Test": "yes"})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "hello", string(resp.Body))
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))

	resp, err = c.Get(context.Background(), srv.URL+"/missing", map[string]string{"X-Test": "yes"})
	require.NoError(t, err, "non-2xx is not a transport error")
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestClientLimitsBodySize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("a", 100))
	}))
	defer srv.Close()

	c := NewClient(Options{MaxBodyBytes: 10})
	resp, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 10)
}

func TestClientHeadAndPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			w.Write(body)
		}
	}))
	defer srv.Close()

	c := NewClient(Options{})
	status, err := c.Head(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)

	resp, err := c.Post(context.Background(), srv.URL, nil, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(resp.Body))
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(Options{Timeout: time.Second}).Get(context.Background(), url, nil)
	assert.Error(t, err)
}

func TestPageCacheFetchesOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		io.WriteString(w, r.URL.Path)
	}))
	defer srv.Close()

	cache := NewPageCache(NewClient(Options{}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := cache.Get(context.Background(), srv.URL+"/page", nil)
			assert.NoError(t, err)
			assert.Equal(t, "/page", string(resp.Body))
		}()
	}
	wg.Wait()

	_, err := cache.Get(context.Background(), srv.URL+"/other", nil)
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 2, cache.Len())
}
