package extractor

import (
	"strings"

	"github.com/aegis-gateway/aegis/internal/models"
)

// PerplexityParser handles socket.io-framed event payloads. A
// socket.io packet is a digit-coded engine.io type (optionally
// followed by a namespace) immediately followed by a JSON array or
// object; the numeric prefix is stripped before decoding.
type PerplexityParser struct{}

func (PerplexityParser) ID() string { return "perplexity" }

func (PerplexityParser) Priority() int { return 75 }

func (PerplexityParser) CanParse(contentType, host, hint string) bool {
	if hint == "perplexity" {
		return true
	}
	return hostMatchesAny(host, "perplexity.ai", "www.perplexity.ai")
}

func (PerplexityParser) Parse(body []byte) models.Extraction {
	payload := stripSocketIOPrefix(string(body))
	if payload == "" {
		return models.Extraction{Kind: models.ExtractionNone}
	}

	v, err := decodeAny([]byte(payload))
	if err != nil {
		return models.Extraction{Kind: models.ExtractionError, Err: err}
	}

	texts := dedupe(deepScanText(v, 8))
	if len(texts) == 0 {
		return models.Extraction{Kind: models.ExtractionNone}
	}
	prompts := make([]models.ExtractedPrompt, len(texts))
	for i, t := range texts {
		prompts[i] = models.ExtractedPrompt{Text: t, Confidence: 0.55}
	}
	prompts[len(prompts)-1].IsCurrent = true
	return models.Extraction{Kind: models.ExtractionOK, Prompts: prompts}
}

// stripSocketIOPrefix drops the leading engine.io packet-type digits
// (and an optional "/namespace," segment) up to the first '[' or '{'.
func stripSocketIOPrefix(s string) string {
	idx := strings.IndexAny(s, "[{")
	if idx < 0 {
		return ""
	}
	return s[idx:]
}
