package registry

import (
	"errors"

	"github.com/aegis-gateway/aegis/internal/models"
)

// ErrRemoteDisabled is returned by LoadRemote when the remote site
// feed is not enabled, per spec.md's Open Question #3 resolution:
// remote updates are opt-in (registry.remote_enabled, default false),
// and no HTTP client code runs unless an operator turns it on.
var ErrRemoteDisabled = errors.New("registry: remote site feed is disabled")

// ErrRemoteUnconfigured is returned when the remote feed is enabled
// but no feed URL has been set. spec.md never names a feed format or
// endpoint, so enabling the flag alone doesn't make a fetch happen.
var ErrRemoteUnconfigured = errors.New("registry: remote site feed enabled but no feed URL configured")

// LoadRemote is the registry's remote-source hook for Reload's third
// argument. Callers should treat both returned errors as "use an
// empty remote set for this Reload", not as fatal.
func LoadRemote(enabled bool, feedURL string) ([]models.SiteEntry, error) {
	if !enabled {
		return nil, ErrRemoteDisabled
	}
	if feedURL == "" {
		return nil, ErrRemoteUnconfigured
	}
	return nil, errors.New("registry: remote site feed fetch not implemented")
}
