// Package media collects, measures and ranks the images and videos found on
// the news pages of a trend.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"trendforge/importer/internal/extract"
	"trendforge/importer/internal/fetch"
	"trendforge/importer/internal/models"
)

const (
	defaultConcurrency = 4
	// probeBytes is how much of an image is requested to read its header.
	probeBytes = 64 << 10
)

// Client is the HTTP access the pipeline needs.
type Client interface {
	fetch.Getter
	Head(ctx context.Context, url string, headers map[string]string) (int, error)
}

// Options configures a Pipeline.
type Options struct {
	Concurrency int
	// YouTubeThumbBase and VimeoOEmbed override the thumbnail endpoints.
	YouTubeThumbBase string
	VimeoOEmbed      string
}

// Result is the ranked media of one trend.
type Result struct {
	Images []extract.Image
	Video  string
}

// Pipeline gathers media from news pages.
type Pipeline struct {
	client      Client
	extractor   *extract.Extractor
	concurrency int
	youtubeBase string
	vimeoOEmbed string
}

// NewPipeline creates a Pipeline.
func NewPipeline(client Client, extractor *extract.Extractor, opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.YouTubeThumbBase == "" {
		opts.YouTubeThumbBase = defaultYouTubeThumbBase
	}
	if opts.VimeoOEmbed == "" {
		opts.VimeoOEmbed = defaultVimeoOEmbed
	}
	return &Pipeline{
		client:      client,
		extractor:   extractor,
		concurrency: opts.Concurrency,
		youtubeBase: opts.YouTubeThumbBase,
		vimeoOEmbed: opts.VimeoOEmbed,
	}
}

// ExtractMedia loads every news page through pages and returns its images,
// de-duplicated and ranked by area, together with the first video found in
// news-item order. Pages that fail to load are skipped.
func (p *Pipeline) ExtractMedia(ctx context.Context, pages fetch.Getter, items []models.NewsItem) Result {
	if pages == nil {
		pages = p.client
	}

	found := make([]extract.Media, len(items))
	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)

	for i, item := range items {
		if item.URL == "" {
			continue
		}
		i, item := i, item
		g.Go(func() error {
			resp, err := pages.Get(ctx, item.URL, nil)
			if err != nil {
				log.Warn().Err(err).Str("url", item.URL).Msg("Failed to load page for media")
				return nil
			}
			if !resp.OK() {
				log.Warn().Int("status", resp.Status).Str("url", item.URL).Msg("Page for media returned an error status")
				return nil
			}
			found[i] = p.extractor.ExtractMedia(string(resp.Body), item.URL)
			return nil
		})
	}
	g.Wait()

	var res Result
	seen := make(map[string]bool)
	for _, m := range found {
		if res.Video == "" && m.Video != "" {
			res.Video = m.Video
		}
		for _, img := range m.Images {
			if seen[img.URL] {
				continue
			}
			seen[img.URL] = true
			res.Images = append(res.Images, img)
		}
	}

	p.probeDimensions(ctx, res.Images)
	Rank(res.Images)

	log.Debug().Int("images", len(res.Images)).Str("video", res.Video).Msg("Media extracted")
	return res
}

func (p *Pipeline) probeDimensions(ctx context.Context, images []extract.Image) {
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)

	for i := range images {
		if images[i].Width > 0 && images[i].Height > 0 {
			continue
		}
		i := i
		g.Go(func() error {
			w, h, err := p.Dimensions(ctx, images[i].URL)
			if err != nil {
				log.Debug().Err(err).Str("url", images[i].URL).Msg("Failed to probe image dimensions")
				return nil
			}
			mu.Lock()
			images[i].Width, images[i].Height = w, h
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

// Dimensions downloads the start of an image and decodes its header.
func (p *Pipeline) Dimensions(ctx context.Context, url string) (int, int, error) {
	resp, err := p.client.Get(ctx, url, map[string]string{"Range": fmt.Sprintf("bytes=0-%d", probeBytes-1)})
	if err != nil {
		return 0, 0, err
	}
	if !resp.OK() {
		return 0, 0, &statusError{url: url, status: resp.Status}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(resp.Body))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Rank orders images by area, largest first. Images of unknown size keep
// their relative order after all measured ones.
func Rank(images []extract.Image) {
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].Area() > images[j].Area()
	})
}
