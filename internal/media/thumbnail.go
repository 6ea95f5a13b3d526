package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	defaultYouTubeThumbBase = "https://img.youtube.com/vi"
	defaultVimeoOEmbed      = "https://vimeo.com/api/oembed.json"
)

type statusError struct {
	url    string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.url, e.status)
}

// ResolveThumbnail returns a still image for an embedded video, or "" when
// none can be determined.
func (p *Pipeline) ResolveThumbnail(ctx context.Context, videoURL string) string {
	switch {
	case YouTubeID(videoURL) != "":
		id := YouTubeID(videoURL)
		maxres := fmt.Sprintf("%s/%s/maxresdefault.jpg", p.youtubeBase, id)
		status, err := p.client.Head(ctx, maxres, nil)
		if err == nil && status == http.StatusOK {
			return maxres
		}
		return fmt.Sprintf("%s/%s/hqdefault.jpg", p.youtubeBase, id)

	case strings.Contains(videoURL, "vimeo.com"):
		thumb, err := p.vimeoThumbnail(ctx, videoURL)
		if err != nil {
			log.Warn().Err(err).Str("video", videoURL).Msg("Failed to resolve Vimeo thumbnail")
			return ""
		}
		return thumb
	}
	return ""
}

func (p *Pipeline) vimeoThumbnail(ctx context.Context, videoURL string) (string, error) {
	endpoint := p.vimeoOEmbed + "?url=" + url.QueryEscape(videoURL)
	resp, err := p.client.Get(ctx, endpoint, map[string]string{"Accept": "application/json"})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &statusError{url: endpoint, status: resp.Status}
	}

	var payload struct {
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode oembed response: %w", err)
	}
	return payload.ThumbnailURL, nil
}

// YouTubeID returns the video id of a YouTube embed URL.
func YouTubeID(videoURL string) string {
	u, err := url.Parse(videoURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, "youtube.com") && !strings.HasSuffix(host, "youtube-nocookie.com") {
		return ""
	}
	rest, ok := strings.CutPrefix(u.Path, "/embed/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}
