package extractor

import (
	"strings"

	"github.com/aegis-gateway/aegis/internal/models"
)

// StreamParser reconstructs a prompt from an SSE or NDJSON request
// body that was accumulated by the caller per BufferConfig before
// being handed to the registry. It is last in priority order: specific
// parsers above it already understand non-streamed bodies from the
// same API families, so this only fires on lines they didn't already
// consume as a single JSON document.
type StreamParser struct{}

func (StreamParser) ID() string { return "stream" }

func (StreamParser) Priority() int { return 40 }

func (StreamParser) CanParse(contentType, host, hint string) bool {
	if hint == "stream" {
		return true
	}
	return strings.Contains(contentType, "event-stream") || strings.Contains(contentType, "ndjson")
}

func (StreamParser) Parse(body []byte) models.Extraction {
	lines := strings.Split(string(body), "\n")
	var chunks []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			line = strings.TrimSpace(after)
		}
		if line == "[DONE]" {
			continue
		}
		v, err := decodeAny([]byte(line))
		if err != nil {
			continue
		}
		chunks = append(chunks, deepScanText(v, 1)...)
	}

	text := strings.TrimSpace(strings.Join(chunks, ""))
	if text == "" {
		return models.Extraction{Kind: models.ExtractionNone}
	}
	return models.Extraction{Kind: models.ExtractionOK, Prompts: []models.ExtractedPrompt{
		{Text: text, IsCurrent: true, Confidence: 0.5},
	}}
}
