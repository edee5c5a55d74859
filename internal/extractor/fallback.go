package extractor

import (
	"unicode"

	"github.com/aegis-gateway/aegis/internal/models"
)

// FallbackMinLen and FallbackMaxLen bound the printable-text runs the
// fallback scanner treats as prompt candidates, per spec.md §4.3's
// "unknown site" path.
const (
	FallbackMinLen = 10
	FallbackMaxLen = 10000
)

// FallbackConfidence is the low, constant confidence assigned to
// fallback-extracted text: it is never a parsed field, just the
// longest printable run in an unrecognized body.
const FallbackConfidence = 0.3

// Fallback scans body for printable-text runs between FallbackMinLen
// and FallbackMaxLen bytes, used when no registered parser claims the
// request. Runs are deduplicated by exact text to avoid the same
// repeated field producing multiple candidates.
func Fallback(body []byte) models.Extraction {
	runs := printableRuns(body)
	var candidates []string
	for _, r := range runs {
		if len(r) < FallbackMinLen {
			continue
		}
		if len(r) > FallbackMaxLen {
			r = r[:FallbackMaxLen]
		}
		candidates = append(candidates, r)
	}
	candidates = dedupe(candidates)
	if len(candidates) == 0 {
		return models.Extraction{Kind: models.ExtractionNone}
	}

	prompts := make([]models.ExtractedPrompt, len(candidates))
	for i, c := range candidates {
		prompts[i] = models.ExtractedPrompt{Text: c, Confidence: FallbackConfidence}
	}
	prompts[len(prompts)-1].IsCurrent = true
	return models.Extraction{Kind: models.ExtractionOK, Prompts: prompts}
}

func printableRuns(body []byte) []string {
	var runs []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			runs = append(runs, string(current))
			current = nil
		}
	}

	data := []rune(string(body))
	for _, r := range data {
		if isFallbackPrintable(r) {
			current = append(current, r)
			continue
		}
		flush()
	}
	flush()
	return runs
}

func isFallbackPrintable(r rune) bool {
	if r == ' ' || r == '\t' {
		return true
	}
	return unicode.IsPrint(r) && r != utfReplacementChar
}

const utfReplacementChar = '�'
