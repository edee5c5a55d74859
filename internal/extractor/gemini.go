package extractor

import (
	"encoding/json"
	"strings"

	"github.com/aegis-gateway/aegis/internal/models"
)

// GeminiParser handles the Generative Language API's "contents" shape.
// Gemini's streaming variant can deliver the request body wrapped in a
// top-level JSON array, so Parse accepts either a single request
// object or an array of them.
type GeminiParser struct{}

func (GeminiParser) ID() string { return "gemini" }

func (GeminiParser) Priority() int { return 90 }

func (GeminiParser) CanParse(contentType, host, hint string) bool {
	if hint == "gemini" {
		return true
	}
	if !strings.Contains(contentType, "json") {
		return false
	}
	return hostMatchesAny(host, "generativelanguage.googleapis.com")
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

func (GeminiParser) Parse(body []byte) models.Extraction {
	var prompts []models.ExtractedPrompt

	var single geminiRequest
	if err := json.Unmarshal(body, &single); err == nil && len(single.Contents) > 0 {
		prompts = append(prompts, extractGeminiContents(single.Contents)...)
	} else {
		var batch []geminiRequest
		if err := json.Unmarshal(body, &batch); err != nil {
			return models.Extraction{Kind: models.ExtractionError, Err: err}
		}
		for _, r := range batch {
			prompts = append(prompts, extractGeminiContents(r.Contents)...)
		}
	}

	if len(prompts) == 0 {
		return models.Extraction{Kind: models.ExtractionNone}
	}
	prompts[len(prompts)-1].IsCurrent = true
	return models.Extraction{Kind: models.ExtractionOK, Prompts: prompts}
}

func extractGeminiContents(contents []geminiContent) []models.ExtractedPrompt {
	var prompts []models.ExtractedPrompt
	for _, c := range contents {
		if c.Role != "" && c.Role != "user" {
			continue
		}
		var parts []string
		for _, p := range c.Parts {
			if p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
		if len(parts) == 0 {
			continue
		}
		prompts = append(prompts, models.ExtractedPrompt{
			Text:       strings.Join(parts, "\n"),
			Confidence: 0.9,
		})
	}
	return prompts
}
