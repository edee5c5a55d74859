package extractor

import (
	"encoding/json"
	"strings"

	"github.com/aegis-gateway/aegis/internal/models"
)

// OpenAIParser handles the OpenAI chat-completions request shape and
// its many API-compatible clones (Azure OpenAI, Groq, Together, local
// llama.cpp servers that mimic the same schema).
type OpenAIParser struct{}

func (OpenAIParser) ID() string { return "openai" }

func (OpenAIParser) Priority() int { return 100 }

func (OpenAIParser) CanParse(contentType, host, hint string) bool {
	if hint == "openai" {
		return true
	}
	if !strings.Contains(contentType, "json") {
		return false
	}
	return hostMatchesAny(host, "api.openai.com", "oai.azure.com", "api.groq.com", "api.together.xyz")
}

type openAIMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type openAIRequest struct {
	Messages []openAIMessage `json:"messages"`
	Prompt   json.RawMessage `json:"prompt"`
	Input    json.RawMessage `json:"input"`
}

func (OpenAIParser) Parse(body []byte) models.Extraction {
	var req openAIRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return models.Extraction{Kind: models.ExtractionError, Err: err}
	}

	var prompts []models.ExtractedPrompt
	userMessages := 0
	for _, m := range req.Messages {
		if m.Role != "user" {
			continue
		}
		text := contentText(m.Content)
		if text == "" {
			continue
		}
		userMessages++
		prompts = append(prompts, models.ExtractedPrompt{Text: text, Confidence: 0.95})
	}
	if len(prompts) > 0 {
		prompts[len(prompts)-1].IsCurrent = true
		return models.Extraction{Kind: models.ExtractionOK, Prompts: prompts}
	}

	if text := contentText(req.Prompt); text != "" {
		return models.Extraction{Kind: models.ExtractionOK, Prompts: []models.ExtractedPrompt{
			{Text: text, IsCurrent: true, Confidence: 0.9},
		}}
	}
	if text := contentText(req.Input); text != "" {
		return models.Extraction{Kind: models.ExtractionOK, Prompts: []models.ExtractedPrompt{
			{Text: text, IsCurrent: true, Confidence: 0.9},
		}}
	}
	return models.Extraction{Kind: models.ExtractionNone}
}

// contentText resolves an OpenAI/Anthropic-style "content" field that
// may be a bare string or an array of typed content blocks
// ({"type":"text","text":"..."}).
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	}
	return ""
}

func hostMatchesAny(host string, suffixes ...string) bool {
	host = strings.ToLower(host)
	for _, s := range suffixes {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}
