package ingest

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// trendsNamespace is the prefix of the vendor namespace carrying traffic and news items.
const trendsNamespace = "ht"

// FeedItem is one trend as read from the feed.
type FeedItem struct {
	Title      string
	Link       string
	Snippet    string
	Traffic    string
	Picture    string
	PubDate    *time.Time // nil when the date could not be parsed
	PubDateRaw string
	News       []FeedNews
}

// FeedNews is a news article nested in a feed item.
type FeedNews struct {
	Title   string
	Snippet string
	URL     string
	Source  string
	Picture string
}

// URLs returns the news article URLs of the item.
func (it FeedItem) URLs() []string {
	urls := make([]string, 0, len(it.News))
	for _, n := range it.News {
		urls = append(urls, n.URL)
	}
	return urls
}

// ParseFeed parses a trends RSS document. It fails when the document is not a
// feed or when its items do not carry the trends namespace.
func ParseFeed(data []byte) ([]FeedItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]FeedItem, 0, len(feed.Items))
	withNamespace := 0

	for _, it := range feed.Items {
		fi := FeedItem{
			Title:      strings.TrimSpace(it.Title),
			Link:       strings.TrimSpace(it.Link),
			Snippet:    strings.TrimSpace(it.Description),
			PubDateRaw: it.Published,
		}
		if it.PublishedParsed != nil {
			t := it.PublishedParsed.UTC()
			fi.PubDate = &t
		}

		if ht, ok := it.Extensions[trendsNamespace]; ok {
			withNamespace++
			fi.Traffic = firstValue(ht, "approx_traffic")
			fi.Picture = firstValue(ht, "picture")
			for _, n := range ht["news_item"] {
				fi.News = append(fi.News, FeedNews{
					Title:   firstValue(n.Children, "news_item_title"),
					Snippet: firstValue(n.Children, "news_item_snippet"),
					URL:     firstValue(n.Children, "news_item_url"),
					Source:  firstValue(n.Children, "news_item_source"),
					Picture: firstValue(n.Children, "news_item_picture"),
				})
			}
		}

		items = append(items, fi)
	}

	if len(items) > 0 && withNamespace == 0 {
		return nil, fmt.Errorf("feed items do not carry the %q namespace", trendsNamespace)
	}
	return items, nil
}

func firstValue(m map[string][]ext.Extension, name string) string {
	if v := m[name]; len(v) > 0 {
		return strings.TrimSpace(v[0].Value)
	}
	return ""
}
