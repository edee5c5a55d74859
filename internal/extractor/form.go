package extractor

import (
	"mime"
	"net/url"
	"strings"

	"github.com/aegis-gateway/aegis/internal/models"
)

// FormParser handles application/x-www-form-urlencoded and
// multipart/form-data bodies by checking a fixed set of common field
// names used by chat widgets that don't speak JSON.
type FormParser struct{}

func (FormParser) ID() string { return "form" }

func (FormParser) Priority() int { return 50 }

var formFieldNames = []string{"prompt", "message", "content", "q", "text", "query", "input"}

func (FormParser) CanParse(contentType, host, hint string) bool {
	if hint == "form" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

func (FormParser) Parse(body []byte) models.Extraction {
	values, err := url.ParseQuery(string(body))
	if err != nil || len(values) == 0 {
		return extractMultipartFields(body)
	}

	var prompts []models.ExtractedPrompt
	for _, name := range formFieldNames {
		if v := values.Get(name); strings.TrimSpace(v) != "" {
			prompts = append(prompts, models.ExtractedPrompt{Text: v, Confidence: 0.7})
		}
	}
	if len(prompts) == 0 {
		return models.Extraction{Kind: models.ExtractionNone}
	}
	prompts[len(prompts)-1].IsCurrent = true
	return models.Extraction{Kind: models.ExtractionOK, Prompts: prompts}
}

// extractMultipartFields does a best-effort scan of a multipart body
// for "Content-Disposition: form-data; name=\"prompt\"" style parts
// without fully parsing MIME boundaries, since the boundary parameter
// is not always forwarded to this layer.
func extractMultipartFields(body []byte) models.Extraction {
	text := string(body)
	var prompts []models.ExtractedPrompt
	for _, name := range formFieldNames {
		marker := `name="` + name + `"`
		idx := strings.Index(text, marker)
		if idx < 0 {
			continue
		}
		rest := text[idx+len(marker):]
		sep := strings.Index(rest, "\r\n\r\n")
		if sep < 0 {
			continue
		}
		rest = rest[sep+4:]
		end := strings.Index(rest, "\r\n--")
		if end < 0 {
			end = len(rest)
		}
		value := strings.TrimSpace(rest[:end])
		if value != "" {
			prompts = append(prompts, models.ExtractedPrompt{Text: value, Confidence: 0.6})
		}
	}
	if len(prompts) == 0 {
		return models.Extraction{Kind: models.ExtractionNone}
	}
	prompts[len(prompts)-1].IsCurrent = true
	return models.Extraction{Kind: models.ExtractionOK, Prompts: prompts}
}
