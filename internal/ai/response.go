package ai

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Parsed is a model reply split into its sections.
type Parsed struct {
	Title string
	Body  string
	Tags  []string
	// Structured is false when the reply lacked the title separator.
	Structured bool
}

// ParseResponse splits raw at the first titleSep into title and remainder,
// then the remainder at the first tagsSep into body and comma separated tags.
// Without a title separator the whole reply becomes the body and fallback the
// title. Tags are trimmed and de-duplicated case-insensitively.
func ParseResponse(raw, titleSep, tagsSep, fallback string) Parsed {
	head, rest, ok := strings.Cut(raw, titleSep)
	if !ok {
		log.Warn().Str("fallback_title", fallback).Msg("Model response has no title separator, using fallback title")
		return Parsed{Title: fallback, Body: strings.TrimSpace(raw)}
	}

	p := Parsed{Title: strings.TrimSpace(head), Structured: true}
	if p.Title == "" {
		p.Title = fallback
	}

	body, tags, ok := strings.Cut(rest, tagsSep)
	p.Body = strings.TrimSpace(body)
	if ok {
		p.Tags = splitTags(tags)
	}
	return p
}

func splitTags(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
