package process

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"trendforge/importer/internal/media"
	"trendforge/importer/internal/models"
)

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

type download struct {
	url  string
	data []byte
	ext  string
}

// storeImages downloads the ranked images, falling back to the trend picture
// and then to the video thumbnail, and writes them to the blob store.
func (p *Processor) storeImages(ctx context.Context, trend *models.Trend, found media.Result, slug, alt string) ([]models.ArticleMedia, error) {
	candidates := make([]string, 0, p.opts.MaxImages)
	for _, img := range found.Images {
		if len(candidates) == p.opts.MaxImages {
			break
		}
		candidates = append(candidates, img.URL)
	}

	downloads := p.downloadAll(ctx, candidates)

	if len(downloads) == 0 && trend.ImageURL != "" {
		log.Debug().Int64("trend_id", trend.ID).Msg("No article images, using trend picture")
		downloads = p.downloadAll(ctx, []string{trend.ImageURL})
	}
	if len(downloads) == 0 && found.Video != "" {
		if thumb := p.media.ResolveThumbnail(ctx, found.Video); thumb != "" {
			log.Debug().Int64("trend_id", trend.ID).Str("thumbnail", thumb).Msg("No images, using video thumbnail")
			downloads = p.downloadAll(ctx, []string{thumb})
		}
	}

	refs := make([]models.ArticleMedia, 0, len(downloads))
	for i, d := range downloads {
		dest := fmt.Sprintf("trends/%d-%s-%d.%s", trend.ID, slug, i+1, d.ext)
		ref, err := p.blobs.WriteBlob(ctx, d.data, dest)
		if err != nil {
			return nil, fmt.Errorf("failed to store image %s: %w", d.url, err)
		}
		refs = append(refs, models.ArticleMedia{
			Field:    p.opts.Content.ImageField,
			Position: i,
			BlobRef:  ref,
			Alt:      alt,
		})
		log.Debug().Str("url", d.url).Str("ref", ref).Msg("Image stored")
	}
	return refs, nil
}

// downloadAll fetches urls concurrently and returns the usable images in
// input order.
func (p *Processor) downloadAll(ctx context.Context, urls []string) []download {
	results := make([]*download, len(urls))

	g := new(errgroup.Group)
	g.SetLimit(p.opts.ScrapeConcurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			results[i] = p.downloadImage(ctx, u)
			return nil
		})
	}
	g.Wait()

	out := make([]download, 0, len(urls))
	for _, d := range results {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

func (p *Processor) downloadImage(ctx context.Context, imageURL string) *download {
	resp, err := p.client.Get(ctx, imageURL, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", imageURL).Msg("Failed to download image")
		return nil
	}
	if !resp.OK() || len(resp.Body) == 0 {
		log.Warn().Int("status", resp.Status).Str("url", imageURL).Msg("Image download returned no content")
		return nil
	}

	ext, ok := imageExtensions[http.DetectContentType(resp.Body)]
	if !ok {
		log.Warn().Str("url", imageURL).Msg("Downloaded file is not a supported image")
		return nil
	}
	return &download{url: imageURL, data: resp.Body, ext: ext}
}
