package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-gateway/aegis/internal/models"
)

func TestTimeRule_OvernightBlocksCorrectly(t *testing.T) {
	// Mon 22:00 - Tue 06:00, days = {Mon}.
	rule := models.TimeRule{
		ID:      "bedtime",
		Name:    "bedtime",
		Days:    []models.Weekday{models.Monday},
		Start:   models.LocalTime{Hour: 22, Minute: 0},
		End:     models.LocalTime{Hour: 6, Minute: 0},
		Enabled: true,
	}
	require.True(t, rule.IsOvernight())

	cases := []struct {
		name string
		day  models.Weekday
		t    models.LocalTime
		want bool
	}{
		{"mon 23:59 blocked", models.Monday, models.LocalTime{Hour: 23, Minute: 59}, true},
		{"tue 05:59 blocked (mon carries over)", models.Tuesday, models.LocalTime{Hour: 5, Minute: 59}, true},
		{"tue 06:00 not blocked (end is exclusive)", models.Tuesday, models.LocalTime{Hour: 6, Minute: 0}, false},
		{"mon 21:59 not blocked (before start)", models.Monday, models.LocalTime{Hour: 21, Minute: 59}, false},
		{"wed 05:59 not blocked (tue not in days)", models.Wednesday, models.LocalTime{Hour: 5, Minute: 59}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, rule.Blocked(c.day, c.t))
		})
	}
}

func TestTimeRule_OvernightMultipleDays(t *testing.T) {
	rule := models.TimeRule{
		Days:    []models.Weekday{models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday},
		Start:   models.LocalTime{Hour: 21, Minute: 0},
		End:     models.LocalTime{Hour: 7, Minute: 0},
		Enabled: true,
	}
	// Saturday morning should not be blocked: Friday rolls into Saturday
	// only because Friday IS in days, so 05:00 Saturday is blocked too.
	assert.True(t, rule.Blocked(models.Saturday, models.LocalTime{Hour: 5, Minute: 0}))
	// Sunday morning should not be blocked: Saturday is not in days.
	assert.False(t, rule.Blocked(models.Sunday, models.LocalTime{Hour: 5, Minute: 0}))
}

func TestTimeRule_DisabledNeverBlocks(t *testing.T) {
	rule := models.TimeRule{
		Days:    []models.Weekday{models.Monday},
		Start:   models.LocalTime{Hour: 0, Minute: 0},
		End:     models.LocalTime{Hour: 23, Minute: 59},
		Enabled: false,
	}
	assert.False(t, rule.Blocked(models.Monday, models.LocalTime{Hour: 12, Minute: 0}))
}

func TestEngine_ProtectionPausedAllowsEverything(t *testing.T) {
	e := New()
	now := time.Date(2026, 8, 3, 23, 0, 0, 0, time.UTC) // Monday

	classification := models.Classification{Matches: []models.CategoryMatch{
		{Category: models.CategoryJailbreak, Confidence: 0.99, Tier: models.TierKeyword},
	}}
	profile := models.Profile{
		ContentRules: []models.ContentRule{
			{Category: models.CategoryJailbreak, Action: models.ActionBlock, Threshold: 0.8, Enabled: true},
		},
	}
	protection := models.ProtectionState{Kind: models.ProtectionPaused, Until: now.Add(time.Hour)}

	v := e.Evaluate(classification, now, profile, protection)
	assert.Equal(t, models.ActionAllow, v.Action)
	assert.Equal(t, "protection_paused_or_disabled", v.Reason)
}

func TestEngine_TimeRuleWinsOverContentRule(t *testing.T) {
	e := New()
	now := time.Date(2026, 8, 5, 22, 30, 0, 0, time.UTC) // Wednesday 22:30

	profile := models.Profile{
		TimeRules: []models.TimeRule{{
			ID: "bedtime", Name: "bedtime",
			Days: []models.Weekday{models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday},
			Start: models.LocalTime{Hour: 21, Minute: 0}, End: models.LocalTime{Hour: 7, Minute: 0},
			Enabled: true,
		}},
	}
	v := e.Evaluate(models.Classification{}, now, profile, models.ProtectionState{Kind: models.ProtectionActive})
	assert.Equal(t, models.ActionBlock, v.Action)
	assert.Equal(t, models.SourceTimeRule, v.Source.Kind)
	assert.Equal(t, "bedtime", v.Reason)
}

func TestEngine_ContentRuleThresholdBoundary(t *testing.T) {
	e := New()
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	profile := models.Profile{
		ContentRules: []models.ContentRule{
			{Category: models.CategoryJailbreak, Action: models.ActionBlock, Threshold: 0.8, Enabled: true},
		},
	}

	below := models.Classification{Matches: []models.CategoryMatch{{Category: models.CategoryJailbreak, Confidence: 0.79}}}
	v := e.Evaluate(below, now, profile, models.ProtectionState{Kind: models.ProtectionActive})
	assert.Equal(t, models.ActionAllow, v.Action)

	atThreshold := models.Classification{Matches: []models.CategoryMatch{{Category: models.CategoryJailbreak, Confidence: 0.8}}}
	v = e.Evaluate(atThreshold, now, profile, models.ProtectionState{Kind: models.ProtectionActive})
	assert.Equal(t, models.ActionBlock, v.Action)
	assert.Equal(t, models.SourceContentRule, v.Source.Kind)
}

func TestEngine_StrongestActionAcrossMatches(t *testing.T) {
	e := New()
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)

	profile := models.Profile{
		ContentRules: []models.ContentRule{
			{Category: models.CategoryHate, Action: models.ActionWarn, Threshold: 0.5, Enabled: true},
			{Category: models.CategoryJailbreak, Action: models.ActionBlock, Threshold: 0.5, Enabled: true},
		},
	}
	c := models.Classification{Matches: []models.CategoryMatch{
		{Category: models.CategoryHate, Confidence: 0.9},
		{Category: models.CategoryJailbreak, Confidence: 0.6},
	}}
	v := e.Evaluate(c, now, profile, models.ProtectionState{Kind: models.ProtectionActive})
	assert.Equal(t, models.ActionBlock, v.Action)
}

func TestEngine_EvaluateImageBlocksAtOrAboveThreshold(t *testing.T) {
	e := New()
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	profile := models.Profile{NSFWThreshold: 0.7}

	below := e.EvaluateImage(0.69, now, profile, models.ProtectionState{Kind: models.ProtectionActive})
	assert.Equal(t, models.ActionAllow, below.Action)

	atThreshold := e.EvaluateImage(0.7, now, profile, models.ProtectionState{Kind: models.ProtectionActive})
	assert.Equal(t, models.ActionBlock, atThreshold.Action)
	assert.Equal(t, models.CategoryAdult, atThreshold.Source.Category)
}

func TestEngine_EvaluateImageZeroThresholdNeverBlocks(t *testing.T) {
	e := New()
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	v := e.EvaluateImage(0.99, now, models.Profile{}, models.ProtectionState{Kind: models.ProtectionActive})
	assert.Equal(t, models.ActionAllow, v.Action)
}

func TestEngine_EvaluateImageRespectsTimeRules(t *testing.T) {
	e := New()
	now := time.Date(2026, 8, 5, 22, 30, 0, 0, time.UTC) // Wednesday 22:30
	profile := models.Profile{
		NSFWThreshold: 0.5,
		TimeRules: []models.TimeRule{{
			ID: "bedtime", Name: "bedtime",
			Days: []models.Weekday{models.Wednesday},
			Start: models.LocalTime{Hour: 21, Minute: 0}, End: models.LocalTime{Hour: 7, Minute: 0},
			Enabled: true,
		}},
	}
	v := e.EvaluateImage(0.1, now, profile, models.ProtectionState{Kind: models.ProtectionActive})
	assert.Equal(t, models.ActionBlock, v.Action)
	assert.Equal(t, models.SourceTimeRule, v.Source.Kind)
}

func TestEngine_DefaultAllowWhenNoRulesFire(t *testing.T) {
	e := New()
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	v := e.Evaluate(models.Classification{}, now, models.Profile{}, models.ProtectionState{Kind: models.ProtectionActive})
	assert.Equal(t, models.ActionAllow, v.Action)
	assert.Equal(t, "allowed", v.Reason)
	assert.Equal(t, models.SourceNone, v.Source.Kind)
}
