package fetch

import (
	"context"
	"sync"
)

// Getter fetches a URL.
type Getter interface {
	Get(ctx context.Context, url string, headers map[string]string) (*Response, error)
}

type pageEntry struct {
	done chan struct{}
	resp *Response
	err  error
}

// PageCache memoises GET responses for the lifetime of one processing run so
// that the text scrape and the media scan of a page share one download.
// Concurrent requests for the same URL wait for the first one.
type PageCache struct {
	getter Getter

	mu      sync.Mutex
	entries map[string]*pageEntry
}

// NewPageCache wraps a Getter.
func NewPageCache(g Getter) *PageCache {
	return &PageCache{getter: g, entries: make(map[string]*pageEntry)}
}

// Get returns the cached response for url, fetching it on first use.
func (c *PageCache) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	c.mu.Lock()
	if e, ok := c.entries[url]; ok {
		c.mu.Unlock()
		select {
		case <-e.done:
			return e.resp, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &pageEntry{done: make(chan struct{})}
	c.entries[url] = e
	c.mu.Unlock()

	e.resp, e.err = c.getter.Get(ctx, url, headers)
	close(e.done)
	return e.resp, e.err
}

// Len returns the number of distinct URLs requested so far.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
