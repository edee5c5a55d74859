package models

// SiteCategory classifies a monitored LLM endpoint.
type SiteCategory string

const (
	SiteConsumer   SiteCategory = "consumer"
	SiteAPI        SiteCategory = "api"
	SiteEnterprise SiteCategory = "enterprise"
	SiteImageGen   SiteCategory = "image_gen"
)

// SiteSource records where a SiteEntry came from; custom beats remote
// beats bundled when the registry merges overlapping patterns.
type SiteSource string

const (
	SiteBundled SiteSource = "bundled"
	SiteCustom  SiteSource = "custom"
	SiteRemote  SiteSource = "remote"
)

func (s SiteSource) priority() int {
	switch s {
	case SiteCustom:
		return 2
	case SiteRemote:
		return 1
	default:
		return 0
	}
}

// SourcePriority reports whether a takes precedence over b when both
// match the same host (custom > remote > bundled).
func SourcePriority(a, b SiteSource) bool {
	return a.priority() > b.priority()
}

// SiteEntry is a registry row: a hostname pattern mapped to the
// service it identifies and the parser that extracts prompts from it.
type SiteEntry struct {
	ID          string       `json:"id" yaml:"id"`
	Pattern     string       `json:"pattern" yaml:"pattern"` // exact host, or "*.domain.tld"
	ServiceName string       `json:"service_name" yaml:"service_name"`
	Category    SiteCategory `json:"category" yaml:"category"`
	ParserID    string       `json:"parser_id" yaml:"parser_id"`
	Priority    int          `json:"priority" yaml:"priority"`
	Enabled     bool         `json:"enabled" yaml:"enabled"`
	Source      SiteSource   `json:"source" yaml:"source"`
}

// IsWildcard reports whether Pattern is a "*.domain" pattern.
func (e SiteEntry) IsWildcard() bool {
	return len(e.Pattern) > 2 && e.Pattern[0] == '*' && e.Pattern[1] == '.'
}

// WildcardSuffix returns the "domain.tld" part of a "*.domain.tld"
// pattern. Only meaningful when IsWildcard() is true.
func (e SiteEntry) WildcardSuffix() string {
	if !e.IsWildcard() {
		return ""
	}
	return e.Pattern[2:]
}
