// Package rules implements the Rule Engine (C5): pure evaluation of a
// Classification against a Profile's time and content rules, producing
// a Verdict. It performs no I/O and is fully deterministic, so it can
// be exercised directly in tests without a running proxy or store.
package rules

import (
	"time"

	"github.com/aegis-gateway/aegis/internal/models"
)

// ProxyWarnMode controls how the MITM proxy path treats a Warn
// verdict. spec.md's Open Question #1 picks Allow by default but
// leaves it configurable.
type ProxyWarnMode string

const (
	WarnAsAllow ProxyWarnMode = "allow"
	WarnAsBlock ProxyWarnMode = "block"
)

// Engine evaluates verdicts. It holds no mutable state.
type Engine struct{}

// New creates a Rule Engine. There is nothing to configure: all inputs
// arrive per call, per spec.md §4.5's "the engine is pure" contract.
func New() *Engine {
	return &Engine{}
}

// Evaluate implements spec.md §4.5 steps 1-4 in order.
func (e *Engine) Evaluate(
	classification models.Classification,
	now time.Time,
	profile models.Profile,
	protection models.ProtectionState,
) models.Verdict {
	if !protection.IsFiltering(now) {
		return models.Verdict{
			Action: models.ActionAllow,
			Reason: "protection_paused_or_disabled",
			Source: models.VerdictSource{Kind: models.SourceNone},
		}
	}

	day := models.Weekday(now.Weekday())
	clock := models.LocalTime{Hour: now.Hour(), Minute: now.Minute()}

	for _, tr := range profile.TimeRules {
		if tr.Blocked(day, clock) {
			return models.Verdict{
				Action: models.ActionBlock,
				Reason: tr.Name,
				Source: models.VerdictSource{Kind: models.SourceTimeRule, RuleID: tr.ID},
			}
		}
	}

	return e.evaluateContent(classification, profile)
}

// EvaluateImage applies a profile's nsfw_threshold to an image
// sub-classifier score, independently of the category-keyed content
// rules: spec.md §4.4 defines nsfw_score/nsfw_threshold as a standalone
// comparison, not one more ContentRule. Still honors the same time-rule
// and pause/disable gating as Evaluate.
func (e *Engine) EvaluateImage(score float64, now time.Time, profile models.Profile, protection models.ProtectionState) models.Verdict {
	if !protection.IsFiltering(now) {
		return models.Verdict{Action: models.ActionAllow, Reason: "protection_paused_or_disabled", Source: models.VerdictSource{Kind: models.SourceNone}}
	}

	day := models.Weekday(now.Weekday())
	clock := models.LocalTime{Hour: now.Hour(), Minute: now.Minute()}
	for _, tr := range profile.TimeRules {
		if tr.Blocked(day, clock) {
			return models.Verdict{Action: models.ActionBlock, Reason: tr.Name, Source: models.VerdictSource{Kind: models.SourceTimeRule, RuleID: tr.ID}}
		}
	}

	if profile.NSFWThreshold <= 0 || score < profile.NSFWThreshold {
		return models.Verdict{Action: models.ActionAllow, Reason: "allowed", Source: models.VerdictSource{Kind: models.SourceNone}}
	}

	match := models.CategoryMatch{Category: models.CategoryAdult, Confidence: score, Tier: models.TierImage}
	return models.Verdict{
		Action:            models.ActionBlock,
		Reason:            "nsfw_threshold",
		Source:            models.VerdictSource{Kind: models.SourceContentRule, Category: models.CategoryAdult},
		MatchedCategories: []models.CategoryMatch{match},
	}
}

// evaluateContent implements spec.md §4.5 step 3-4: collect the
// action of every content rule whose threshold is cleared, and return
// the strongest one, or Allow if none fire.
func (e *Engine) evaluateContent(classification models.Classification, profile models.Profile) models.Verdict {
	strongest := models.ActionAllow
	var strongestRule models.ContentRule
	var matched []models.CategoryMatch
	fired := false

	for _, cr := range profile.ContentRules {
		if !cr.Enabled {
			continue
		}
		for _, m := range classification.Matches {
			if m.Category != cr.Category || m.Confidence < cr.Threshold {
				continue
			}
			matched = append(matched, m)
			fired = true
			if cr.Action.Rank() >= strongest.Rank() {
				strongest = cr.Action
				strongestRule = cr
			}
		}
	}

	if !fired || strongest == models.ActionAllow {
		return models.Verdict{
			Action: models.ActionAllow,
			Reason: "allowed",
			Source: models.VerdictSource{Kind: models.SourceNone},
		}
	}

	return models.Verdict{
		Action:            strongest,
		Reason:            string(strongestRule.Category),
		Source:            models.VerdictSource{Kind: models.SourceContentRule, Category: strongestRule.Category},
		MatchedCategories: matched,
	}
}
