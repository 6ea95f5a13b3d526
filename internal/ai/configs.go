package ai

import (
	"encoding/json"
	"strings"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultClaudeBaseURL = "https://api.anthropic.com"
	anthropicVersion     = "2023-06-01"
	defaultMaxTokens     = 2000
)

// OpenAIConfig returns the chat completions configuration. An empty baseURL
// selects the public endpoint.
func OpenAIConfig(apiKey, model, baseURL string) *ProviderConfig {
	return &ProviderConfig{
		Name:          "openai",
		Endpoint:      baseOr(baseURL, defaultOpenAIBaseURL) + "/v1/chat/completions",
		APIKey:        apiKey,
		Model:         model,
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		BuildBody:     buildOpenAIBody,
		ParseResponse: parseOpenAIResponse,
	}
}

// ClaudeConfig returns the messages API configuration. An empty baseURL
// selects the public endpoint.
func ClaudeConfig(apiKey, model, baseURL string) *ProviderConfig {
	return &ProviderConfig{
		Name:       "claude",
		Endpoint:   baseOr(baseURL, defaultClaudeBaseURL) + "/v1/messages",
		APIKey:     apiKey,
		Model:      model,
		AuthHeader: "x-api-key",
		ExtraHeaders: map[string]string{
			"anthropic-version": anthropicVersion,
		},
		BuildBody:     buildClaudeBody,
		ParseResponse: parseClaudeResponse,
	}
}

func baseOr(v, def string) string {
	if v == "" {
		return def
	}
	return strings.TrimRight(v, "/")
}

func maxTokensOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Body builders

func buildOpenAIBody(cfg *ProviderConfig, prompt string) map[string]any {
	return map[string]any{
		"model":                 cfg.Model,
		"max_completion_tokens": maxTokensOr(cfg.MaxTokens, defaultMaxTokens),
		"temperature":           cfg.Temperature,
		"messages":              []map[string]string{{"role": "user", "content": prompt}},
	}
}

func buildClaudeBody(cfg *ProviderConfig, prompt string) map[string]any {
	return map[string]any{
		"model":       cfg.Model,
		"max_tokens":  maxTokensOr(cfg.MaxTokens, defaultMaxTokens),
		"temperature": cfg.Temperature,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
	}
}

// Response parsers

func parseOpenAIResponse(body []byte) (Completion, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Model string `json:"model"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Completion{}, err
	}

	c := Completion{
		Model: resp.Model,
		Usage: Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens},
	}
	if len(resp.Choices) > 0 {
		c.Text = resp.Choices[0].Message.Content
	}
	return c, nil
}

func parseClaudeResponse(body []byte) (Completion, error) {
	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Model string `json:"model"`
		Usage Usage  `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Completion{}, err
	}

	var texts []string
	for _, c := range resp.Content {
		if c.Type == "text" {
			texts = append(texts, c.Text)
		}
	}
	return Completion{
		Text:  strings.Join(texts, "\n\n"),
		Model: resp.Model,
		Usage: resp.Usage,
	}, nil
}
