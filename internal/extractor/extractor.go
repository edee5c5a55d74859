// Package extractor implements the Payload Extractor (C3): given a
// request body and its content metadata, isolates the user-authored
// prompt text with a confidence. Parsers are a capability registry
// (can_parse/parse), consulted by descending priority, per spec.md §9's
// "replace duck-typed site handlers with a capability set" note.
package extractor

import (
	"time"

	"github.com/aegis-gateway/aegis/internal/models"
)

// MaxBodyBytes is the default payload cap from spec.md §6. Bodies
// larger than this are truncated before parsing and flagged.
const MaxBodyBytes = 1 << 20 // 1 MiB

// Parser is the capability every payload format implements.
type Parser interface {
	// ID is the parser_id used by the Site Registry and as an
	// explicit hint from the caller.
	ID() string
	// CanParse reports whether this parser applies to the given
	// content type / host / hint combination.
	CanParse(contentType, host, hint string) bool
	// Priority orders parsers when more than one CanParse; higher runs
	// first.
	Priority() int
	// Parse extracts prompt candidates from body.
	Parse(body []byte) models.Extraction
}

// Request bundles everything a parser needs, matching spec.md §4.3's
// "(body, content_type, host, method, parser_id_hint)" signature.
type Request struct {
	Body        []byte
	ContentType string
	Host        string
	Method      string
	ParserHint  string
	Truncated   bool
}

// Registry holds parsers sorted by priority and dispatches extraction.
type Registry struct {
	parsers []Parser
}

// NewRegistry builds the registry with every required parser from
// spec.md §4.3's table, highest priority first.
func NewRegistry() *Registry {
	r := &Registry{parsers: []Parser{
		&OpenAIParser{},
		&AnthropicParser{},
		&GeminiParser{},
		&CopilotParser{},
		&PerplexityParser{},
		&PoeParser{},
		&FormParser{},
		&StreamParser{},
	}}
	return r
}

// Extract runs the request through every matching parser by priority
// and returns the first non-empty extraction; if none match or all
// come up empty, the fallback scanner runs last.
func (r *Registry) Extract(req Request) models.Extraction {
	body := req.Body
	truncated := req.Truncated
	if len(body) > MaxBodyBytes {
		body = body[:MaxBodyBytes]
		truncated = true
	}
	if len(body) == 0 {
		return models.Extraction{Kind: models.ExtractionNone}
	}

	for _, p := range sortedByPriority(r.parsers) {
		if !p.CanParse(req.ContentType, req.Host, req.ParserHint) {
			continue
		}
		result := p.Parse(body)
		if result.Kind == models.ExtractionError {
			continue
		}
		if len(result.Prompts) > 0 {
			if truncated && result.Kind == models.ExtractionOK {
				result.Kind = models.ExtractionTruncated
			}
			return result
		}
	}

	fallback := Fallback(body)
	if truncated && fallback.Kind == models.ExtractionOK {
		fallback.Kind = models.ExtractionTruncated
	}
	return fallback
}

func sortedByPriority(parsers []Parser) []Parser {
	out := make([]Parser, len(parsers))
	copy(out, parsers)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority() > out[j-1].Priority(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// BufferConfig governs SSE/NDJSON/chunked accumulation, per spec.md
// §4.3's "accumulate chunks until buffer size B or timeout T".
type BufferConfig struct {
	MaxBytes int
	Timeout  time.Duration
}

// DefaultBufferConfig mirrors spec.md §4.8's default response-stream
// checker window.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{MaxBytes: 500, Timeout: 2 * time.Second}
}
