// Package profilemgr implements the Profile Manager (C6): resolving
// the current OS user to a Profile, and watching for session changes
// so the proxy picks up rule edits without a restart.
package profilemgr

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/aegis-gateway/aegis/internal/logging"
	"github.com/aegis-gateway/aegis/internal/models"
)

// WatchDebounce is how long the session-change watcher waits after the
// last signal before reloading, per spec.md §4.6.
const WatchDebounce = 500 * time.Millisecond

// PollInterval is how often PollSessionChanges re-checks the OS user
// when no platform-specific session-change signal is wired in.
const PollInterval = 2 * time.Second

// ProfileSource loads the profile list from the State Store. The
// manager only depends on this narrow interface so it can be tested
// without a real store.
type ProfileSource interface {
	ListProfiles(ctx context.Context) ([]models.Profile, error)
}

// Manager resolves and caches the active profile for the current OS
// session, and republishes it after a session or rule change.
type Manager struct {
	source             ProfileSource
	log                logging.Logger
	forbidUnrestricted bool

	mu      sync.RWMutex
	current models.Profile

	signal chan struct{}
	done   chan struct{}
}

// New builds a Manager against source. Call Refresh once at startup to
// load the initial profile before starting the watcher. When
// forbidUnrestricted is true, a user with no matching enabled profile
// gets a fully-blocked profile instead of the unrestricted fallback,
// per spec.md §4.6's "when policy does not forbid it" clause.
func New(source ProfileSource, forbidUnrestricted bool, log logging.Logger) *Manager {
	return &Manager{
		source:             source,
		forbidUnrestricted: forbidUnrestricted,
		log:                log,
		signal:             make(chan struct{}, 1),
		done:               make(chan struct{}),
	}
}

// Current returns the active profile.
func (m *Manager) Current() models.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Refresh re-queries the OS user and re-resolves the matching profile,
// falling back on miss to a synthetic profile: Locked when
// forbidUnrestricted is set, Unrestricted otherwise.
func (m *Manager) Refresh(ctx context.Context) error {
	username := OSUsername()

	profiles, err := m.source.ListProfiles(ctx)
	if err != nil {
		return err
	}

	resolved := models.Unrestricted(username)
	if m.forbidUnrestricted {
		resolved = models.Locked(username)
	}
	for _, p := range profiles {
		if !p.Enabled {
			continue
		}
		if p.MatchesOSUsername(username) {
			resolved = p
			break
		}
	}

	m.mu.Lock()
	m.current = resolved
	m.mu.Unlock()

	m.log.Info(ctx, "profile resolved", "os_username", username, "profile_id", resolved.ID, "profile_name", resolved.Name)
	return nil
}

// OSUsername reads the current OS user from the environment, per
// spec.md §4.6 ("query OS user via environment (USER/USERNAME)").
func OSUsername() string {
	if runtime.GOOS == "windows" {
		if u := os.Getenv("USERNAME"); u != "" {
			return u
		}
		return os.Getenv("USER")
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}

// NotifySessionChanged signals the watcher that the OS session changed
// (login, switch-user, unlock). Non-blocking: a pending signal that
// hasn't been drained yet is coalesced with this one.
func (m *Manager) NotifySessionChanged() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Watch runs the debounced reload loop until ctx is cancelled,
// grounded on the teacher's channel-driven background-task shape
// (services.SessionTicker).
func (m *Manager) Watch(ctx context.Context) {
	defer close(m.done)
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-m.signal:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(WatchDebounce)
		case <-timerC(timer):
			if err := m.Refresh(ctx); err != nil {
				m.log.Error(ctx, "profile refresh after session change failed", "error", err)
			}
			timer = nil
		}
	}
}

// timerC returns t.C, or a nil channel (which blocks forever in a
// select) when t is nil, since time.Timer has no zero value usable in
// a select statement.
func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// PollSessionChanges drives Watch's signal channel from a plain
// interval timer that re-reads OSUsername, standing in for the
// platform session-change hooks (WTS on Windows, NSWorkspace on
// macOS, logind on Linux) spec.md §4.6 describes but that this
// codebase has no cgo/syscall bindings for. A parent logging out and
// a child logging in still surfaces within one PollInterval instead
// of requiring a daemon restart. Run as its own goroutine alongside
// Watch; it only ever calls NotifySessionChanged, never Refresh
// directly, so Watch's debounce still applies.
func (m *Manager) PollSessionChanges(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = PollInterval
	}
	last := OSUsername()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if u := OSUsername(); u != last {
				last = u
				m.NotifySessionChanged()
			}
		}
	}
}
