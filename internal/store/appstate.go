package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/aegis-gateway/aegis/internal/models"
)

const protectionStateKey = "protection_state"

type protectionStateRow struct {
	Kind  models.ProtectionStateKind `json:"kind"`
	Until *time.Time                 `json:"until,omitempty"`
}

// GetProtectionState loads the persisted protection state, resolving
// any due Paused(until) transition against now, per spec.md §3's
// auto-transition invariant.
func (s *Store) GetProtectionState(ctx context.Context, now time.Time) (models.ProtectionState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value_json FROM app_state WHERE key = ?`, protectionStateKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProtectionState{Kind: models.ProtectionActive}, nil
	}
	if err != nil {
		return models.ProtectionState{}, err
	}

	var row protectionStateRow
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return models.ProtectionState{}, err
	}
	state := models.ProtectionState{Kind: row.Kind}
	if row.Until != nil {
		state.Until = *row.Until
	}
	return state.Resolve(now), nil
}

// SetProtectionState persists a new protection state, bumping the
// "app_state" cursor key.
func (s *Store) SetProtectionState(ctx context.Context, state models.ProtectionState) error {
	row := protectionStateRow{Kind: state.Kind}
	if !state.Until.IsZero() {
		row.Until = &state.Until
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}

	return s.withChange(ctx, "app_state", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO app_state (key, value_json, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at`,
			protectionStateKey, string(payload), time.Now().UTC())
		return err
	})
}

// GetConfig returns a single config value, and false if unset.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetConfig upserts a config value, bumping the "config" cursor key.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	return s.withChange(ctx, "config", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO config (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		return err
	})
}
