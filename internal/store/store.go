// Package store implements the State Store (C7): the single
// persistent home for protection state, sessions, profiles, rules,
// site overrides, and events, plus the monotonic change cursor
// pollers use to invalidate their caches.
//
// Grounded on gophkeeper's client-side sqlite repositories
// (database/sql + modernc.org/sqlite + goose), generalized from
// gophkeeper's single metadata/entries tables to the full schema this
// component owns.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/aegis-gateway/aegis/internal/logging"
	"github.com/aegis-gateway/aegis/internal/store/migrations"
)

// Store wraps the sqlite connection every repository method hangs off.
type Store struct {
	db  *sql.DB
	log logging.Logger
}

// Open connects to dsn (a sqlite file path, or ":memory:" for tests),
// runs pending migrations, and returns a ready Store.
func Open(ctx context.Context, dsn string, log logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time avoids SQLITE_BUSY

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// withChange runs fn inside a transaction, then records a
// state_changes row for key before committing, satisfying the
// "payload and cursor bump in one transaction" writer contract from
// spec.md §4.7.
func (s *Store) withChange(ctx context.Context, key string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO state_changes (key, at) VALUES (?, ?)`, key, time.Now().UTC()); err != nil {
		return err
	}

	return tx.Commit()
}

// CurrentSeq returns the latest change cursor value, 0 if no mutation
// has ever been recorded.
func (s *Store) CurrentSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM state_changes`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq.Int64, nil
}

// StateChange mirrors models.StateChange for the reader-contract query.
type StateChange struct {
	Seq int64
	Key string
	At  time.Time
}

// ChangesSince returns every state_changes row with seq > lastSeq, in
// ascending seq order, for a poller to decide which cache entries to
// refresh.
func (s *Store) ChangesSince(ctx context.Context, lastSeq int64) ([]StateChange, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, key, at FROM state_changes WHERE seq > ? ORDER BY seq ASC`, lastSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StateChange
	for rows.Next() {
		var c StateChange
		if err := rows.Scan(&c.Seq, &c.Key, &c.At); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
