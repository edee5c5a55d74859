package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/aegis-gateway/aegis/internal/logging"
	"github.com/aegis-gateway/aegis/internal/models"
)

// StateCachePollInterval is how often the proxy refreshes its view of
// protection state and the change cursor from the State Store, per
// spec.md §2's "C8 polls C7 cache at ~100 ms" data-flow note.
const StateCachePollInterval = 100 * time.Millisecond

// StateSource is the narrow store dependency StateCache polls.
type StateSource interface {
	GetProtectionState(ctx context.Context, now time.Time) (models.ProtectionState, error)
	CurrentSeq(ctx context.Context) (int64, error)
}

// StateCache holds the proxy's in-memory view of protection state and
// the State Store's change cursor, refreshed on a fixed interval so
// every connection goroutine reads a cheap, lock-protected snapshot
// instead of hitting sqlite per request.
type StateCache struct {
	source StateSource

	mu    sync.RWMutex
	state models.ProtectionState
	seq   int64
}

// NewStateCache builds a cache against source. Call Refresh once
// before serving traffic so the first connection doesn't race an
// empty snapshot.
func NewStateCache(source StateSource) *StateCache {
	return &StateCache{source: source, state: models.ProtectionState{Kind: models.ProtectionActive}}
}

// Refresh re-queries the store once.
func (c *StateCache) Refresh(ctx context.Context) error {
	state, err := c.source.GetProtectionState(ctx, time.Now())
	if err != nil {
		return err
	}
	seq, err := c.source.CurrentSeq(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.state = state
	c.seq = seq
	c.mu.Unlock()
	return nil
}

// Snapshot returns the cached protection state and seq.
func (c *StateCache) Snapshot() (models.ProtectionState, int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.seq
}

// Run polls the store every StateCachePollInterval until ctx is
// cancelled.
func (c *StateCache) Run(ctx context.Context, log logging.Logger) {
	ticker := time.NewTicker(StateCachePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				log.Error(ctx, "state cache refresh failed", "error", err)
			}
		}
	}
}
