package models

// ProxyMode controls how the MITM proxy treats a profile's traffic.
type ProxyMode string

const (
	ProxyEnabled     ProxyMode = "enabled"
	ProxyDisabled    ProxyMode = "disabled"
	ProxyPassthrough ProxyMode = "passthrough"
)

// Profile binds an OS username to the rules and thresholds that govern
// its traffic.
type Profile struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	OSUsername     string        `json:"os_username"`
	TimeRules      []TimeRule    `json:"time_rules"`
	ContentRules   []ContentRule `json:"content_rules"`
	NSFWThreshold  float64       `json:"nsfw_threshold"`
	ProxyMode      ProxyMode     `json:"proxy_mode"`
	Enabled        bool          `json:"enabled"`
}

// MatchesOSUsername compares case-insensitively, per spec.md §3.
func (p Profile) MatchesOSUsername(username string) bool {
	return foldEqual(p.OSUsername, username)
}

func foldEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Unrestricted synthesizes the ephemeral profile used when no profile
// matches the current OS user (spec.md §4.6).
func Unrestricted(osUsername string) Profile {
	return Profile{
		ID:         "",
		Name:       "Unrestricted",
		OSUsername: osUsername,
		ProxyMode:  ProxyPassthrough,
		Enabled:    true,
	}
}

// Locked synthesizes the ephemeral profile used when no profile
// matches the current OS user and policy forbids an unrestricted
// fallback (spec.md §4.6, config knob profiles.forbid_unrestricted).
// It runs the full pipeline but blocks every category outright.
func Locked(osUsername string) Profile {
	rules := make([]ContentRule, 0, len(AllCategories()))
	for _, c := range AllCategories() {
		rules = append(rules, ContentRule{
			ID:        "locked-" + string(c),
			Category:  c,
			Action:    ActionBlock,
			Threshold: 0,
			Enabled:   true,
		})
	}
	return Profile{
		ID:           "",
		Name:         "Locked",
		OSUsername:   osUsername,
		ProxyMode:    ProxyEnabled,
		ContentRules: rules,
		Enabled:      true,
	}
}
