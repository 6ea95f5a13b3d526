// Package ai generates article drafts with a hosted language model.
package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"trendforge/importer/internal/config"
	"trendforge/importer/internal/fetch"
)

// Compile-time interface satisfaction check
var _ Provider = (*HTTPProvider)(nil)

// Provider is a language model backend.
type Provider interface {
	// Name returns the provider name ("openai" or "claude").
	Name() string
	// Model returns the configured model identifier.
	Model() string
	// Available reports whether the provider has credentials.
	Available() bool
	// Complete sends a single user prompt and returns the reply.
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// Usage is the token accounting reported by the API.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Completion is a model reply.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// Poster sends JSON requests.
type Poster interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) (*fetch.Response, error)
}

// ProviderConfig describes how to talk to one API.
type ProviderConfig struct {
	Name         string
	Endpoint     string
	APIKey       string
	Model        string
	AuthHeader   string
	AuthPrefix   string
	ExtraHeaders map[string]string
	MaxTokens    int
	Temperature  float64

	BuildBody     func(cfg *ProviderConfig, prompt string) map[string]any
	ParseResponse func(body []byte) (Completion, error)
}

// HTTPProvider is a Provider driven by a ProviderConfig.
type HTTPProvider struct {
	config *ProviderConfig
	client Poster
}

// NewHTTPProvider creates a provider from cfg.
func NewHTTPProvider(cfg *ProviderConfig, client Poster) *HTTPProvider {
	return &HTTPProvider{config: cfg, client: client}
}

// Options are the generation parameters shared by all providers.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// NewProvider returns the provider selected by settings.
func NewProvider(settings config.ProviderSettings, client Poster, opts Options) (*HTTPProvider, error) {
	var cfg *ProviderConfig
	switch settings.Name {
	case config.ProviderOpenAI:
		cfg = OpenAIConfig(settings.APIKey, settings.Model, settings.BaseURL)
	case config.ProviderClaude:
		cfg = ClaudeConfig(settings.APIKey, settings.Model, settings.BaseURL)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", settings.Name)
	}
	cfg.MaxTokens = opts.MaxTokens
	cfg.Temperature = opts.Temperature
	return NewHTTPProvider(cfg, client), nil
}

func (p *HTTPProvider) Name() string {
	return p.config.Name
}

func (p *HTTPProvider) Model() string {
	return p.config.Model
}

func (p *HTTPProvider) Available() bool {
	return p.config.APIKey != ""
}

func (p *HTTPProvider) Complete(ctx context.Context, prompt string) (Completion, error) {
	if !p.Available() {
		return Completion{}, fmt.Errorf("%s provider not configured", p.config.Name)
	}

	log.Debug().Str("provider", p.config.Name).Str("model", p.config.Model).Int("prompt_len", len(prompt)).Msg("Sending completion request")

	body, err := json.Marshal(p.config.BuildBody(p.config, prompt))
	if err != nil {
		return Completion{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	headers[p.config.AuthHeader] = p.config.AuthPrefix + p.config.APIKey
	for k, v := range p.config.ExtraHeaders {
		headers[k] = v
	}

	resp, err := p.client.Post(ctx, p.config.Endpoint, headers, body)
	if err != nil {
		return Completion{}, fmt.Errorf("%s request failed: %w", p.config.Name, err)
	}
	if !resp.OK() {
		log.Error().Str("provider", p.config.Name).Int("status", resp.Status).Str("body", truncate(string(resp.Body), 512)).Msg("API error")
		return Completion{}, fmt.Errorf("%s API error (status %d): %s", p.config.Name, resp.Status, truncate(string(resp.Body), 512))
	}

	c, err := p.config.ParseResponse(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("failed to parse %s response: %w", p.config.Name, err)
	}
	if c.Model == "" {
		c.Model = p.config.Model
	}

	log.Debug().
		Str("provider", p.config.Name).
		Str("model", c.Model).
		Int("input_tokens", c.Usage.InputTokens).
		Int("output_tokens", c.Usage.OutputTokens).
		Int("content_len", len(c.Text)).
		Msg("API response")

	return c, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
