package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// NoTagsText replaces the tag list in prompts when the vocabulary is empty.
const NoTagsText = "No existing tags available."

// ErrEmptyCompletion is returned when the model answered with no text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Result is the outcome of one synthesis.
type Result struct {
	RawText string
	Model   string
	Usage   Usage
	Cost    float64
}

// Synthesizer turns scraped source text into an article draft.
type Synthesizer struct {
	provider       Provider
	prices         PriceTable
	maxSourceChars int
}

// NewSynthesizer creates a Synthesizer. A nil prices uses DefaultPrices and
// maxSourceChars <= 0 disables truncation of the source text.
func NewSynthesizer(provider Provider, prices PriceTable, maxSourceChars int) *Synthesizer {
	if prices == nil {
		prices = DefaultPrices
	}
	return &Synthesizer{provider: provider, prices: prices, maxSourceChars: maxSourceChars}
}

// Ready reports whether the provider has credentials.
func (s *Synthesizer) Ready() bool {
	return s.provider.Available()
}

// Synthesize fills template with the trend title, the source text and the
// existing tags, and sends it to the model. Errors from the API are returned.
func (s *Synthesizer) Synthesize(ctx context.Context, template, title, sourceText string, tags []string) (Result, error) {
	tagList := NoTagsText
	if len(tags) > 0 {
		tagList = strings.Join(tags, ", ")
	}

	prompt := FormatPrompt(template, title, s.truncate(sourceText), tagList)

	c, err := s.provider.Complete(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("failed to synthesize %q: %w", title, err)
	}
	if strings.TrimSpace(c.Text) == "" {
		return Result{}, ErrEmptyCompletion
	}

	res := Result{
		RawText: c.Text,
		Model:   c.Model,
		Usage:   c.Usage,
		Cost:    s.prices.Cost(c.Model, c.Usage),
	}

	log.Info().
		Str("provider", s.provider.Name()).
		Str("model", c.Model).
		Int("input_tokens", c.Usage.InputTokens).
		Int("output_tokens", c.Usage.OutputTokens).
		Float64("cost", res.Cost).
		Msg("Article synthesized")

	return res, nil
}

func (s *Synthesizer) truncate(text string) string {
	if s.maxSourceChars <= 0 || utf8.RuneCountInString(text) <= s.maxSourceChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:s.maxSourceChars])
}
