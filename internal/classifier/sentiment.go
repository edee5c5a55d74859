package classifier

import (
	"strings"

	"github.com/aegis-gateway/aegis/internal/models"
)

// lexiconEntry is one VADER-style scored token.
type lexiconEntry struct {
	word  string
	score float64 // negative = negative sentiment
}

var negativeLexicon = []lexiconEntry{
	{"sad", -0.6}, {"depressed", -0.8}, {"hopeless", -0.85}, {"worthless", -0.85},
	{"alone", -0.5}, {"lonely", -0.6}, {"scared", -0.5}, {"afraid", -0.5},
	{"hate", -0.6}, {"hurt", -0.5}, {"cry", -0.5}, {"crying", -0.5},
	{"tired", -0.3}, {"exhausted", -0.4}, {"anxious", -0.5}, {"worried", -0.4},
	{"ugly", -0.5}, {"stupid", -0.5}, {"useless", -0.6}, {"failure", -0.6},
}

var crisisPhrases = []string{
	"want to die", "no reason to live", "nobody would miss me",
	"better off without me", "end it all", "can't go on",
	"give up on everything",
}

var bullyingPhrases = []string{
	"everyone hates me", "nobody likes me", "they make fun of me",
	"i get bullied", "picked on at school", "no friends at school",
}

var negations = map[string]bool{"not": true, "never": true, "no": true, "n't": true, "don't": true, "isn't": true}

var intensifiers = map[string]float64{
	"very": 1.5, "extremely": 1.8, "so": 1.3, "really": 1.4, "totally": 1.5,
}

// negationWindow is how many preceding tokens are checked for a
// negation, per spec.md §4.4.
const negationWindow = 3

// SentimentTier is the Tier-3 classifier: lexicon-based sentiment and
// crisis/bullying phrase detection. It never blocks; its output is
// persisted for parental review only.
type SentimentTier struct{}

// NewSentimentTier builds the Tier-3 classifier.
func NewSentimentTier() *SentimentTier {
	return &SentimentTier{}
}

// Analyze scores prompt and returns any flags that cross their
// thresholds.
func (s *SentimentTier) Analyze(prompt string) []models.SentimentFlag {
	norm := normalize(prompt)
	var flags []models.SentimentFlag

	if conf := crisisConfidence(norm); conf > 0 {
		flags = append(flags, models.SentimentFlag{Kind: models.FlagCrisisIndicator, Confidence: conf})
	}
	if conf := phraseConfidence(norm, bullyingPhrases, 0.85); conf > 0 {
		flags = append(flags, models.SentimentFlag{Kind: models.FlagBullying, Confidence: conf})
	}

	score, hits := lexiconScore(norm)
	if score <= -1.5 {
		flags = append(flags, models.SentimentFlag{Kind: models.FlagDistress, Confidence: clamp(-score / 4)})
	} else if score < 0 && hits > 0 {
		flags = append(flags, models.SentimentFlag{Kind: models.FlagNegativeSentiment, Confidence: clamp(-score / 3)})
	}

	return flags
}

func crisisConfidence(norm string) float64 {
	return phraseConfidence(norm, crisisPhrases, 0.9)
}

func phraseConfidence(norm string, phrases []string, confidence float64) float64 {
	for _, p := range phrases {
		if strings.Contains(norm, p) {
			return confidence
		}
	}
	return 0
}

// lexiconScore applies negation (3-token lookback window) and
// intensifier multipliers to each lexicon hit, then sums.
func lexiconScore(norm string) (float64, int) {
	tokens := strings.Fields(norm)
	var total float64
	hits := 0

	for i, tok := range tokens {
		tok = strings.Trim(tok, ".,!?;:")
		entry, ok := lookup(tok)
		if !ok {
			continue
		}

		score := entry.score
		if negatedBefore(tokens, i) {
			score = -score * 0.5 // negated negative sentiment reads as mildly positive
		}
		if mult := intensifierBefore(tokens, i); mult > 0 {
			score *= mult
		}
		total += score
		hits++
	}
	return total, hits
}

func lookup(tok string) (lexiconEntry, bool) {
	for _, e := range negativeLexicon {
		if e.word == tok {
			return e, true
		}
	}
	return lexiconEntry{}, false
}

func negatedBefore(tokens []string, idx int) bool {
	start := idx - negationWindow
	if start < 0 {
		start = 0
	}
	for i := start; i < idx; i++ {
		if negations[tokens[i]] {
			return true
		}
	}
	return false
}

func intensifierBefore(tokens []string, idx int) float64 {
	if idx == 0 {
		return 0
	}
	if m, ok := intensifiers[tokens[idx-1]]; ok {
		return m
	}
	return 0
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
