package extractor

import (
	"strings"

	"github.com/aegis-gateway/aegis/internal/models"
)

// recordSeparator is the ASCII 0x1E byte SignalR uses to delimit JSON
// frames within a single HTTP body (its "JSON hub protocol").
const recordSeparator = "\x1e"

// CopilotParser handles SignalR-framed invocation messages, the
// transport Microsoft Copilot's web chat uses. Frames are deep-scanned
// rather than matched against a fixed schema because SignalR's
// "arguments" payload shape varies by hub method.
type CopilotParser struct{}

func (CopilotParser) ID() string { return "copilot" }

func (CopilotParser) Priority() int { return 80 }

func (CopilotParser) CanParse(contentType, host, hint string) bool {
	if hint == "copilot" {
		return true
	}
	if hostMatchesAny(host, "copilot.microsoft.com", "copilot.cloud.microsoft") {
		return true
	}
	return strings.Contains(contentType, "json") && strings.Contains(contentType, "signalr")
}

func (CopilotParser) Parse(body []byte) models.Extraction {
	frames := strings.Split(string(body), recordSeparator)
	var texts []string
	for _, frame := range frames {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		v, err := decodeAny([]byte(frame))
		if err != nil {
			continue
		}
		texts = append(texts, deepScanText(v, 4)...)
	}

	texts = dedupe(texts)
	if len(texts) == 0 {
		return models.Extraction{Kind: models.ExtractionNone}
	}

	prompts := make([]models.ExtractedPrompt, len(texts))
	for i, t := range texts {
		prompts[i] = models.ExtractedPrompt{Text: t, Confidence: 0.6}
	}
	prompts[len(prompts)-1].IsCurrent = true
	return models.Extraction{Kind: models.ExtractionOK, Prompts: prompts}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
