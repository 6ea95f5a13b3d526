package ai

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Price is the cost in USD per million tokens.
type Price struct {
	Input  float64
	Output float64
}

// PriceTable maps model family names to prices.
type PriceTable map[string]Price

// DefaultPrices covers the models offered by both providers.
var DefaultPrices = PriceTable{
	"gpt-3.5-turbo":     {Input: 0.5, Output: 1.5},
	"gpt-4o":            {Input: 2.5, Output: 10},
	"gpt-4o-mini":       {Input: 0.15, Output: 0.6},
	"gpt-4-turbo":       {Input: 10, Output: 30},
	"gpt-4":             {Input: 30, Output: 60},
	"claude-3-5-sonnet": {Input: 3, Output: 15},
	"claude-3-5-haiku":  {Input: 0.8, Output: 4},
	"claude-3-haiku":    {Input: 0.25, Output: 1.25},
	"claude-3-opus":     {Input: 15, Output: 75},
	"claude-sonnet-4":   {Input: 3, Output: 15},
	"claude-opus-4":     {Input: 15, Output: 75},
}

// Lookup returns the price of model. A table key matches the model exactly or
// when followed by a version or date suffix ("-0613", "-2024-08-06") or by
// "-latest" or "-preview". Other models sharing a prefix, like "gpt-4.1-mini"
// for "gpt-4", are unknown.
func (t PriceTable) Lookup(model string) (Price, bool) {
	model = strings.ToLower(strings.TrimSpace(model))
	best, found := "", false
	for key := range t {
		if !strings.HasPrefix(model, key) || !versionSuffix(model[len(key):]) {
			continue
		}
		if len(key) > len(best) {
			best, found = key, true
		}
	}
	if !found {
		return Price{}, false
	}
	return t[best], true
}

func versionSuffix(rest string) bool {
	switch {
	case rest == "":
		return true
	case strings.HasPrefix(rest, "-latest"), strings.HasPrefix(rest, "-preview"):
		return true
	case len(rest) >= 2 && rest[0] == '-' && rest[1] >= '0' && rest[1] <= '9':
		return true
	}
	return false
}

// Cost returns the USD cost of usage. Unknown models cost 0.
func (t PriceTable) Cost(model string, u Usage) float64 {
	p, ok := t.Lookup(model)
	if !ok {
		log.Warn().Str("model", model).Msg("No pricing for model, cost recorded as 0")
		return 0
	}
	return float64(u.InputTokens)/1e6*p.Input + float64(u.OutputTokens)/1e6*p.Output
}
