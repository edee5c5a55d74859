package extractor

import (
	"encoding/json"
	"strings"

	"github.com/aegis-gateway/aegis/internal/models"
)

// PoeParser handles Poe's GraphQL-over-HTTP bot message mutations:
// a top-level {"query": "...", "variables": {...}} envelope whose
// variables carry the actual message content.
type PoeParser struct{}

func (PoeParser) ID() string { return "poe" }

func (PoeParser) Priority() int { return 70 }

func (PoeParser) CanParse(contentType, host, hint string) bool {
	if hint == "poe" {
		return true
	}
	if !strings.Contains(contentType, "json") {
		return false
	}
	return hostMatchesAny(host, "poe.com")
}

type poeEnvelope struct {
	Query     string          `json:"query"`
	Variables json.RawMessage `json:"variables"`
}

func (PoeParser) Parse(body []byte) models.Extraction {
	var env poeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.Extraction{Kind: models.ExtractionError, Err: err}
	}
	if len(env.Variables) == 0 {
		return models.Extraction{Kind: models.ExtractionNone}
	}

	v, err := decodeAny(env.Variables)
	if err != nil {
		return models.Extraction{Kind: models.ExtractionError, Err: err}
	}

	texts := dedupe(deepScanText(v, 2))
	if len(texts) == 0 {
		return models.Extraction{Kind: models.ExtractionNone}
	}
	prompts := make([]models.ExtractedPrompt, len(texts))
	for i, t := range texts {
		prompts[i] = models.ExtractedPrompt{Text: t, Confidence: 0.65}
	}
	prompts[len(prompts)-1].IsCurrent = true
	return models.Extraction{Kind: models.ExtractionOK, Prompts: prompts}
}
