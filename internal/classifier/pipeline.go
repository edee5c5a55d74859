// Package classifier implements the tiered Classifier Pipeline (C4):
// keyword/regex, an optional ML head, and a sentiment lexicon, invoked
// in order and short-circuiting once a tier is confident enough.
package classifier

import (
	"context"
	"time"

	"github.com/aegis-gateway/aegis/internal/logging"
	"github.com/aegis-gateway/aegis/internal/models"
)

// ShortCircuitConfidence is the per-tier confidence at or above which
// the pipeline stops early, per spec.md §4.4.
const ShortCircuitConfidence = 0.9

// MLHead is the optional Tier-2 capability. No ONNX runtime appears
// anywhere in the retrieved example pack, so this is a pure interface:
// NullMLHead (below) is the only implementation this repo ships, and
// it always reports itself absent, which is the documented "model
// file is absent" degrade path spec.md §4.4 requires anyway.
type MLHead interface {
	// Available reports whether a model is loaded.
	Available() bool
	// Classify returns per-category confidences for the prompt. Only
	// called when Available() is true.
	Classify(ctx context.Context, prompt string) ([]models.CategoryMatch, error)
}

// NullMLHead is the always-absent Tier-2 implementation used when no
// model path is configured, or when loading one failed.
type NullMLHead struct{}

func (NullMLHead) Available() bool { return false }
func (NullMLHead) Classify(context.Context, string) ([]models.CategoryMatch, error) {
	return nil, nil
}

// SoftTimeout is the Tier-2 soft deadline from spec.md §5(b): overrun
// logs and falls back to the Tier-1 result.
const SoftTimeout = 50 * time.Millisecond

// Pipeline runs the three classifier tiers in sequence.
type Pipeline struct {
	keyword   *KeywordTier
	ml        MLHead
	sentiment *SentimentTier
	image     ImageClassifier
	log       logging.Logger
}

// New builds a Pipeline. ml may be nil, in which case NullMLHead is used.
// The image sub-classifier defaults to NullImageClassifier; use
// SetImageClassifier to wire a real one.
func New(ml MLHead, log logging.Logger) *Pipeline {
	if ml == nil {
		ml = NullMLHead{}
	}
	return &Pipeline{
		keyword:   NewKeywordTier(),
		ml:        ml,
		sentiment: NewSentimentTier(),
		image:     NullImageClassifier{},
		log:       log,
	}
}

// KeywordManager exposes the Tier-1 layered rule manager so the
// composition root can load extra community rule packs or apply
// parent overrides after the pipeline is built.
func (p *Pipeline) KeywordManager() *CommunityRuleManager {
	return p.keyword.Manager()
}

// SetImageClassifier replaces the pipeline's image sub-classifier.
func (p *Pipeline) SetImageClassifier(ic ImageClassifier) {
	if ic == nil {
		ic = NullImageClassifier{}
	}
	p.image = ic
}

// ClassifyImage scores an image payload against the Tier-2 image
// sub-classifier, per spec.md §4.4's "invoked only when the payload is
// an image body ... on an image_gen site". Returns available=false
// when no image model is loaded, matching the text pipeline's silent
// Tier-2 skip.
func (p *Pipeline) ClassifyImage(ctx context.Context, rgb224 []byte) (score float64, available bool, err error) {
	if !p.image.Available() {
		return 0, false, nil
	}
	score, err = p.image.Score(ctx, rgb224)
	if err != nil {
		return 0, true, err
	}
	return score, true, nil
}

// Classify runs the pipeline against a single prompt.
func (p *Pipeline) Classify(ctx context.Context, prompt string) models.Classification {
	start := time.Now()

	matches := p.keyword.Classify(prompt)
	terminal := models.TierKeyword
	result := models.Classification{Matches: matches, TerminalTier: terminal}

	if maxConfidence(matches) < ShortCircuitConfidence && p.ml.Available() {
		mlMatches, err := p.classifyML(ctx, prompt)
		if err != nil {
			p.log.Warn(ctx, "ml tier failed, falling back to keyword result", "error", err)
		} else {
			matches = append(matches, mlMatches...)
			terminal = models.TierML
		}
	}

	if maxConfidence(matches) < ShortCircuitConfidence {
		flags := p.sentiment.Analyze(prompt)
		result.Flags = flags
		if len(flags) > 0 {
			terminal = models.TierSentiment
		}
	}

	result.Matches = matches
	result.TerminalTier = terminal
	result.LatencyUs = time.Since(start).Microseconds()
	return result
}

func (p *Pipeline) classifyML(ctx context.Context, prompt string) ([]models.CategoryMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, SoftTimeout)
	defer cancel()

	type result struct {
		matches []models.CategoryMatch
		err     error
	}
	done := make(chan result, 1)
	go func() {
		m, err := p.ml.Classify(ctx, prompt)
		done <- result{m, err}
	}()

	select {
	case r := <-done:
		return r.matches, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func maxConfidence(matches []models.CategoryMatch) float64 {
	var max float64
	for _, m := range matches {
		if m.Confidence > max {
			max = m.Confidence
		}
	}
	return max
}
