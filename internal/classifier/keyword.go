package classifier

import (
	"strings"

	"github.com/aegis-gateway/aegis/internal/models"
)

// KeywordTier is the Tier-1 classifier. It runs prompts through a
// CommunityRuleManager layering three rule tiers low to high priority
// -- Community (open-source safety databases), Curated (Aegis's own
// patterns), and Parent (household customizations) -- grounded on the
// layered rule system community_rules.rs implements.
type KeywordTier struct {
	manager *CommunityRuleManager
}

// NewKeywordTier builds the Tier-1 classifier with its bundled rule
// set already compiled.
func NewKeywordTier() *KeywordTier {
	m := NewCommunityRuleManager()
	m.LoadBundledRules()
	return &KeywordTier{manager: m}
}

// Classify scans prompt against the layered rule set and returns one
// CategoryMatch per firing rule, tagged TierKeyword. The firing rule's
// ID is carried as Pattern so a logged decision can be traced back to
// the exact rule and tier that produced it.
func (k *KeywordTier) Classify(prompt string) []models.CategoryMatch {
	hits := k.manager.Classify(prompt)
	if len(hits) == 0 {
		return nil
	}
	matches := make([]models.CategoryMatch, 0, len(hits))
	for _, hit := range hits {
		matches = append(matches, models.CategoryMatch{
			Category:   hit.Category,
			Confidence: hit.Confidence,
			Tier:       models.TierKeyword,
			Pattern:    hit.RuleID,
		})
	}
	return matches
}

// Manager exposes the underlying layered rule manager so an admin
// surface can load extra rule packs or parent overrides (whitelist a
// term, disable a noisy rule, add a household blacklist entry)
// without the pipeline needing to know about rule tiers at all.
func (k *KeywordTier) Manager() *CommunityRuleManager {
	return k.manager
}

// normalize lower-cases and collapses whitespace, used by callers that
// want case-insensitive substring checks outside the regex rules
// (e.g. the sentiment tier's lexicon lookups).
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
