// Package registry implements the Site Registry (C2): the mapping
// from a proxied hostname to the service it identifies and the parser
// that should extract prompts from its traffic. Entries merge from
// three sources (bundled defaults, operator-added custom entries, and
// a remote feed), with custom beating remote beating bundled.
package registry

import (
	_ "embed"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aegis-gateway/aegis/internal/models"
)

// CacheCapacity is the fixed LRU cache size for host lookups, per
// spec.md §4.2's sub-100µs cached-lookup target.
const CacheCapacity = 1000

//go:embed bundled_sites.yaml
var bundledYAML []byte

type bundledFile struct {
	Sites []models.SiteEntry `yaml:"sites"`
}

// LoadBundled parses the registry's built-in default site list.
func LoadBundled() ([]models.SiteEntry, error) {
	var f bundledFile
	if err := yaml.Unmarshal(bundledYAML, &f); err != nil {
		return nil, err
	}
	for i := range f.Sites {
		f.Sites[i].Source = models.SiteBundled
		if f.Sites[i].ParserID == "" {
			continue
		}
	}
	return f.Sites, nil
}

type lookupResult struct {
	entry models.SiteEntry
	ok    bool
}

// Registry holds the merged site table and a host-lookup cache. A
// Registry is safe for concurrent use: the proxy's connection
// goroutines all call Lookup while the API's rules handler calls
// Reload after a dashboard edit.
type Registry struct {
	mu       sync.RWMutex
	exact    map[string]models.SiteEntry
	wildcard map[string]models.SiteEntry // suffix -> entry
	cache    *lookupCache
	lastSeq  int64
}

// New builds an empty registry; call Reload to populate it.
func New() *Registry {
	return &Registry{
		exact:    make(map[string]models.SiteEntry),
		wildcard: make(map[string]models.SiteEntry),
		cache:    newLookupCache(CacheCapacity),
	}
}

// Reload replaces the merged table from the three sources. Disabled
// entries are kept (never dropped) so they continue to shadow
// lower-priority entries for the same pattern, per spec.md §4.2's
// "disabling never deletes" rule.
func (r *Registry) Reload(bundled, custom, remote []models.SiteEntry) {
	merged := make(map[string]models.SiteEntry)
	apply := func(entries []models.SiteEntry) {
		for _, e := range entries {
			existing, ok := merged[e.Pattern]
			if !ok || models.SourcePriority(e.Source, existing.Source) {
				merged[e.Pattern] = e
			}
		}
	}
	apply(bundled)
	apply(remote)
	apply(custom)

	exact := make(map[string]models.SiteEntry)
	wildcard := make(map[string]models.SiteEntry)
	for pattern, e := range merged {
		if e.IsWildcard() {
			wildcard[e.WildcardSuffix()] = e
		} else {
			exact[pattern] = e
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact = exact
	r.wildcard = wildcard
	r.cache.clear()
}

// Lookup resolves host to its SiteEntry. seq is the State Store's
// current change cursor; a bump since the last call invalidates the
// cache wholesale. Exact patterns take precedence over wildcard
// patterns; a disabled entry is returned with ok=false rather than
// falling through to a lower-priority match for the same pattern.
func (r *Registry) Lookup(host string, seq int64) (models.SiteEntry, bool) {
	host = strings.ToLower(host)

	r.mu.Lock()
	if seq != r.lastSeq {
		r.cache.clear()
		r.lastSeq = seq
	}
	if cached, ok := r.cache.get(host); ok {
		r.mu.Unlock()
		return cached.entry, cached.ok
	}
	r.mu.Unlock()

	result := r.resolve(host)

	r.mu.Lock()
	r.cache.put(host, result)
	r.mu.Unlock()

	return result.entry, result.ok
}

// All returns every enabled entry in the merged table, exact and
// wildcard alike. Used by the browser manifest builder to ship an
// in-page copy of the registry to the interceptor; callers must not
// rely on iteration order.
func (r *Registry) All() []models.SiteEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.SiteEntry, 0, len(r.exact)+len(r.wildcard))
	for _, e := range r.exact {
		if e.Enabled {
			out = append(out, e)
		}
	}
	for _, e := range r.wildcard {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry) resolve(host string) lookupResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.exact[host]; ok {
		return lookupResult{entry: e, ok: e.Enabled}
	}

	if e, ok := bestWildcardMatch(r.wildcard, host); ok {
		return lookupResult{entry: e, ok: e.Enabled}
	}

	return lookupResult{}
}

// bestWildcardMatch finds the longest matching "*.suffix" entry for
// host. A bare suffix equal to host itself never matches: the
// wildcard's label requires at least one subdomain component, per
// spec.md §4.2 ("H = L.D for a non-empty label L; D alone does not
// match").
func bestWildcardMatch(wildcards map[string]models.SiteEntry, host string) (models.SiteEntry, bool) {
	var best models.SiteEntry
	var bestLen = -1
	found := false

	for suffix, e := range wildcards {
		if host == suffix {
			continue
		}
		if !strings.HasSuffix(host, "."+suffix) {
			continue
		}
		if len(suffix) > bestLen {
			bestLen = len(suffix)
			best = e
			found = true
		}
	}
	return best, found
}
