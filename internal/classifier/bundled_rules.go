package classifier

import "github.com/aegis-gateway/aegis/internal/models"

// curatedTierRules returns Aegis's own hand-authored Tier-1 patterns,
// grounded on community_rules.rs's aegis_curated_rules: one entry per
// pattern the original bundles, reclassified onto this package's
// Severity bands.
func curatedTierRules() []CommunityRule {
	source := AegisCuratedSource("1.0.0")
	regex := func(id, pattern string, category models.Category, severity Severity) CommunityRule {
		return NewCommunityRule(id, pattern, category, source).withRegex().withSeverity(severity).withTier(RuleTierCurated)
	}

	return []CommunityRule{
		// Jailbreak
		regex("curated_jailbreak_instruction_override",
			`\b(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?)\b`,
			models.CategoryJailbreak, SeveritySevere),
		regex("curated_jailbreak_dan_mode",
			`\b(DAN mode|do anything now|jailbreak(ed)?|developer mode enabled)\b`,
			models.CategoryJailbreak, SeverityStrong),
		regex("curated_jailbreak_reveal_system_prompt",
			`\b(reveal|print|show|output)\s+(your\s+)?(system\s+)?(prompt|instructions)\b`,
			models.CategoryJailbreak, SeverityStrong),
		regex("curated_jailbreak_pretend_no_restrictions",
			`\b(pretend|act as if)\s+you\s+(have no|are not bound by)\s+(restrictions|rules|guidelines)\b`,
			models.CategoryJailbreak, SeverityModerate),
		regex("curated_jailbreak_bypass_filters",
			`\bbypass\s+(safety|content|ethical)\s*(filters?|restrictions?|guidelines?)?\b`,
			models.CategoryJailbreak, SeveritySevere),
		regex("curated_jailbreak_act_as_evil",
			`\bact\s+as\s+(an?\s+)?(evil|unethical|unrestricted)\b`,
			models.CategoryJailbreak, SeverityStrong),
		regex("curated_jailbreak_you_are_now_free",
			`\byou\s+are\s+now\s+(free|unrestricted|unfiltered)\b`,
			models.CategoryJailbreak, SeveritySevere),
		regex("curated_jailbreak_disable_filters",
			`\bdisable\s+(safety|content|ethical)\s*(filters?|mode)?\b`,
			models.CategoryJailbreak, SeveritySevere),

		// Violence
		regex("curated_violence_how_to_kill",
			`\bhow (do i|to)\s+(kill|murder|hurt|stab|shoot|assassinate)\s+(a |an |my |someone|somebody)`,
			models.CategoryViolence, SeverityStrong),
		regex("curated_violence_violent_language",
			`\b(kill you|beat you up|i('ll| will) hurt you)\b`,
			models.CategoryViolence, SeverityMild),
		regex("curated_violence_mass_casualty",
			`\b(mass\s+shooting|school\s+shooting|terrorist\s+attack)\b`,
			models.CategoryViolence, SeveritySevere),
		regex("curated_violence_make_bomb",
			`\bmake\s+a\s+(bomb|explosive|weapon)\b`,
			models.CategoryViolence, SeveritySevere),

		// Self-harm
		regex("curated_selfharm_suicide_method",
			`\b(how to|ways to)\s+(commit suicide|kill myself|end my life)\b`,
			models.CategorySelfHarm, SeveritySevere),
		regex("curated_selfharm_ideation",
			`\b(i want to|i('m| am) going to)\s+(kill myself|hurt myself|end it all)\b`,
			models.CategorySelfHarm, SeverityStrong),
		regex("curated_selfharm_mention",
			`\b(self[- ]harm|cutting myself|suicidal thoughts)\b`,
			models.CategorySelfHarm, SeverityMild),

		// Adult
		regex("curated_adult_explicit_request",
			`\b(nsfw|explicit sexual|sexually explicit)\b.{0,40}\b(story|scene|image|description)\b`,
			models.CategoryAdult, SeverityModerate),
		regex("curated_adult_mention",
			`\b(porn|pornographic|erotica)\b`,
			models.CategoryAdult, SeverityMild),
		regex("curated_adult_write_erotica",
			`\bwrite\s+(porn|erotica|smut)\b`,
			models.CategoryAdult, SeverityStrong),
		regex("curated_adult_minor_sexual_content",
			`\b(child|minor|underage)\s+(porn|sexual|nude)\b`,
			models.CategoryAdult, SeveritySevere),

		// Hate
		regex("curated_hate_eliminationist",
			`\b(all\s+\w+\s+(people\s+)?(are|should be)\s+(killed|exterminated|inferior))\b`,
			models.CategoryHate, SeverityStrong),
		regex("curated_hate_mention",
			`\b(hate speech|ethnic cleansing|genocide propaganda)\b`,
			models.CategoryHate, SeverityMild),

		// Illegal
		regex("curated_illegal_bomb_making",
			`\bhow (do i|to)\s+(make|build|synthesize)\s+(a |an )?(bomb|explosive|pipe bomb)\b`,
			models.CategoryIllegal, SeverityStrong),
		regex("curated_illegal_drug_synthesis",
			`\bhow (do i|to)\s+(synthesize|cook|manufacture)\s+(meth|cocaine|heroin|fentanyl)\b`,
			models.CategoryIllegal, SeverityModerate),
		regex("curated_illegal_hacking_request",
			`\bhow (do i|to)\s+hack\s+(into\s+)?(someone'?s?|a|an)\s+(account|computer|phone|wifi)\b`,
			models.CategoryIllegal, SeverityMild),
		regex("curated_illegal_hack_bank",
			`\bhack\s+into\s+(\S+\s+)?(bank|account|computer|system)\b`,
			models.CategoryIllegal, SeveritySevere),
	}
}

// communityTierRules returns a bundled sample from the open-source
// safety databases community_rules.rs names as Tier-1 community
// sources. This is a representative sample baked into the binary, not
// a vendored copy of the upstream databases; a deployment that wants
// the full databases fetches them at install time and loads them with
// CommunityRuleManager.LoadRulePackFile.
func communityTierRules() []CommunityRule {
	var rules []CommunityRule

	surgeAI := SurgeAISource("2024.1")
	for word, severity := range map[string]Severity{
		"damn": SeverityMild, "hell": SeverityMild, "crap": SeverityMild,
		"fuck": SeverityModerate, "fucking": SeverityModerate,
		"shit": SeverityModerate, "bastard": SeverityModerate, "asshole": SeverityModerate,
	} {
		rules = append(rules, NewCommunityRule("surge_ai_"+word, word, models.CategoryProfanity, surgeAI).withSeverity(severity))
	}

	ldnoobw := LDNOOBWSource("2023.6")
	for word, category := range map[string]models.Category{
		"bitch": models.CategoryProfanity,
		"slut":  models.CategoryAdult,
		"whore": models.CategoryAdult,
	} {
		rules = append(rules, NewCommunityRule("ldnoobw_"+word, word, category, ldnoobw).withSeverity(SeverityModerate))
	}

	jbBench := JailbreakBenchSource("v1")
	for id, phrase := range map[string]string{
		"override_programming": "override your programming",
		"ignore_guidelines":     "ignore your guidelines",
		"no_ethical_guidelines": "no ethical guidelines",
	} {
		rules = append(rules, NewCommunityRule("jailbreak_bench_"+id, phrase, models.CategoryJailbreak, jbBench).withSeverity(SeverityStrong))
	}

	promptInject := PromptInjectSource("v1")
	rules = append(rules,
		NewCommunityRule("prompt_inject_system_override", `###\s*system\s*override\s*###`, models.CategoryJailbreak, promptInject).withRegex().withSeverity(SeveritySevere),
		NewCommunityRule("prompt_inject_system_tag", `\[system\]:\s*override`, models.CategoryJailbreak, promptInject).withRegex().withSeverity(SeveritySevere),
	)

	return rules
}
