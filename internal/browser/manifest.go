// Package browser implements the Decision API's side of the Browser
// Interceptor (C10): the DOM-attached config the page-context script
// polls to learn the current site registry and fail-mode, and the
// static asset that ships the interceptor itself.
package browser

import (
	"context"
	"time"

	"github.com/aegis-gateway/aegis/internal/models"
)

// FailMode governs interceptor behavior when the Decision API is
// unreachable, per spec.md §4.10.
type FailMode string

const (
	FailOpen   FailMode = "open"
	FailClosed FailMode = "closed"
)

// SiteDescriptor is the in-page copy of a SiteEntry: just enough for
// the interceptor's URL matcher, without the server-only bookkeeping
// fields (ID, Priority, Source).
type SiteDescriptor struct {
	Pattern     string              `json:"pattern"`
	ServiceName string              `json:"service_name"`
	Category    models.SiteCategory `json:"category"`
	ParserID    string              `json:"parser_id"`
}

// Manifest is what the content-script bridge fetches to seed the
// page-context interceptor: a registry snapshot plus the fail-mode
// and timeout the interceptor should honor when the API call times
// out, per spec.md §4.10 and §5's 10s interceptor timeout.
type Manifest struct {
	Seq            int64            `json:"seq"`
	Sites          []SiteDescriptor `json:"sites"`
	FailMode       FailMode         `json:"fail_mode"`
	TimeoutMs      int              `json:"timeout_ms"`
	GeneratedAtUTC time.Time        `json:"generated_at"`
}

// RegistrySource is the narrow registry dependency Builder polls.
type RegistrySource interface {
	All() []models.SiteEntry
}

// SeqSource is the narrow State Store dependency Builder polls for
// the change cursor, so the dashboard and the in-page manifest agree
// on staleness the same way C8's StateCache does.
type SeqSource interface {
	CurrentSeq(ctx context.Context) (int64, error)
}

// Builder assembles a Manifest from the live registry and the
// configured fail-mode on every request; there's no need to cache it
// in-process since Registry.All already serves from its own
// lock-protected table.
type Builder struct {
	registry  RegistrySource
	seqSource SeqSource
	failMode  FailMode
	timeoutMs int
}

func NewBuilder(registry RegistrySource, seqSource SeqSource, failMode FailMode, timeoutMs int) *Builder {
	return &Builder{registry: registry, seqSource: seqSource, failMode: failMode, timeoutMs: timeoutMs}
}

// Build renders the current manifest. now is injected so tests don't
// depend on wall-clock time.
func (b *Builder) Build(ctx context.Context, now time.Time) (Manifest, error) {
	seq, err := b.seqSource.CurrentSeq(ctx)
	if err != nil {
		return Manifest{}, err
	}

	entries := b.registry.All()
	sites := make([]SiteDescriptor, 0, len(entries))
	for _, e := range entries {
		sites = append(sites, SiteDescriptor{
			Pattern:     e.Pattern,
			ServiceName: e.ServiceName,
			Category:    e.Category,
			ParserID:    e.ParserID,
		})
	}

	return Manifest{
		Seq:            seq,
		Sites:          sites,
		FailMode:       b.failMode,
		TimeoutMs:      b.timeoutMs,
		GeneratedAtUTC: now.UTC(),
	}, nil
}
