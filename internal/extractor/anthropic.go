package extractor

import (
	"encoding/json"
	"strings"

	"github.com/aegis-gateway/aegis/internal/models"
)

// AnthropicParser handles the Messages API request shape: a top-level
// "system" string plus a "messages" array whose "content" field may be
// a string or a list of typed blocks.
type AnthropicParser struct{}

func (AnthropicParser) ID() string { return "anthropic" }

func (AnthropicParser) Priority() int { return 95 }

func (AnthropicParser) CanParse(contentType, host, hint string) bool {
	if hint == "anthropic" {
		return true
	}
	if !strings.Contains(contentType, "json") {
		return false
	}
	return hostMatchesAny(host, "api.anthropic.com")
}

type anthropicRequest struct {
	System   json.RawMessage `json:"system"`
	Messages []openAIMessage `json:"messages"`
}

func (AnthropicParser) Parse(body []byte) models.Extraction {
	var req anthropicRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return models.Extraction{Kind: models.ExtractionError, Err: err}
	}

	var prompts []models.ExtractedPrompt
	for _, m := range req.Messages {
		if m.Role != "user" {
			continue
		}
		text := contentText(m.Content)
		if text == "" {
			continue
		}
		prompts = append(prompts, models.ExtractedPrompt{Text: text, Confidence: 0.95})
	}
	if len(prompts) == 0 {
		return models.Extraction{Kind: models.ExtractionNone}
	}
	prompts[len(prompts)-1].IsCurrent = true
	return models.Extraction{Kind: models.ExtractionOK, Prompts: prompts}
}
