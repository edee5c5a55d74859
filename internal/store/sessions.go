package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/aegis-gateway/aegis/internal/models"
)

// ErrSessionNotFound is returned by GetSession when token doesn't
// exist or has already expired.
var ErrSessionNotFound = errors.New("store: session not found")

// NewSessionToken generates a 128-bit random session token, per
// spec.md §4.7.
func NewSessionToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CreateSession persists a freshly issued session and bumps seq.
func (s *Store) CreateSession(ctx context.Context, sess models.Session) error {
	return s.withChange(ctx, "sessions", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (token, created, expires, last_used) VALUES (?, ?, ?, ?)`,
			sess.Token, sess.Created.UTC(), sess.Expires.UTC(), sess.LastUsed.UTC())
		return err
	})
}

// GetSession looks up a session by token without touching its TTL.
func (s *Store) GetSession(ctx context.Context, token string) (models.Session, error) {
	var sess models.Session
	err := s.db.QueryRowContext(ctx, `SELECT token, created, expires, last_used FROM sessions WHERE token = ?`, token).
		Scan(&sess.Token, &sess.Created, &sess.Expires, &sess.LastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

// TouchSession extends a valid session's sliding TTL and returns the
// updated row. Does not bump seq: session liveness churn is not a
// cache-relevant change for any poller.
func (s *Store) TouchSession(ctx context.Context, token string, now time.Time) (models.Session, error) {
	sess, err := s.GetSession(ctx, token)
	if err != nil {
		return models.Session{}, err
	}
	if sess.Expired(now) {
		_ = s.DeleteSession(ctx, token)
		return models.Session{}, ErrSessionNotFound
	}

	sess = sess.Touch(now)
	_, err = s.db.ExecContext(ctx, `UPDATE sessions SET expires = ?, last_used = ? WHERE token = ?`,
		sess.Expires.UTC(), sess.LastUsed.UTC(), sess.Token)
	if err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

// DeleteSession removes a session immediately (explicit logout).
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	return s.withChange(ctx, "sessions", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
		return err
	})
}

// SweepExpiredSessions deletes every session past its expiry, per
// spec.md §4.7's 60s sweep contract. Returns the number removed.
func (s *Store) SweepExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SessionSweepInterval is the background sweep cadence, per spec.md §4.7.
const SessionSweepInterval = 60 * time.Second

// SessionSweeper runs the periodic expired-session cleanup, grounded
// on the teacher's channel-driven SessionTicker start/stop shape.
type SessionSweeper struct {
	store    *Store
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSessionSweeper builds a sweeper bound to store.
func NewSessionSweeper(store *Store) *SessionSweeper {
	return &SessionSweeper{
		store:    store,
		interval: SessionSweepInterval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (sw *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	go func() {
		defer close(sw.doneCh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := sw.store.SweepExpiredSessions(ctx, time.Now()); err != nil {
					sw.store.log.Error(ctx, "session sweep failed", "error", err)
				}
			case <-sw.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop blocks until the sweep loop has exited.
func (sw *SessionSweeper) Stop() {
	close(sw.stopCh)
	<-sw.doneCh
}
