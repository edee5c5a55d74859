package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/aegis-gateway/aegis/internal/models"
)

// AppendEvent records one audit row and returns its assigned id.
// Events are append-only and never carry raw prompt text, per spec.md
// §3.
func (s *Store) AppendEvent(ctx context.Context, e models.Event) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (ts, profile_id, source, action, categories, prompt_hash, prompt_preview)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UTC(), e.ProfileID, e.Source, string(e.Action), encodeCategories(e.Categories), e.PromptHash, e.PromptPreview)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEvents returns up to limit most recent events, newest first.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, profile_id, source, action, categories, prompt_hash, prompt_preview
		 FROM events ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var e models.Event
		var action, categories string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ProfileID, &e.Source, &action, &categories, &e.PromptHash, &e.PromptPreview); err != nil {
			return nil, err
		}
		e.Action = models.Action(action)
		e.Categories = decodeCategories(categories)
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendFlaggedEvent records a Tier-3 sentiment flag for parental
// review; never blocks, per spec.md §4.4.
func (s *Store) AppendFlaggedEvent(ctx context.Context, f models.FlaggedEvent) error {
	return s.withChange(ctx, "flagged_events", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO flagged_events (ts, profile_id, kind, confidence, prompt_preview, acknowledged)
			VALUES (?, ?, ?, ?, ?, ?)`,
			f.Timestamp.UTC(), f.ProfileID, string(f.Kind), f.Confidence, f.PromptPreview, f.Acknowledged)
		return err
	})
}

// ListFlaggedEvents returns flagged events, optionally filtered to
// only the unacknowledged ones.
func (s *Store) ListFlaggedEvents(ctx context.Context, onlyUnacknowledged bool) ([]models.FlaggedEvent, error) {
	query := `SELECT id, ts, profile_id, kind, confidence, prompt_preview, acknowledged FROM flagged_events`
	if onlyUnacknowledged {
		query += ` WHERE acknowledged = 0`
	}
	query += ` ORDER BY ts DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FlaggedEvent
	for rows.Next() {
		var f models.FlaggedEvent
		var kind string
		if err := rows.Scan(&f.ID, &f.Timestamp, &f.ProfileID, &kind, &f.Confidence, &f.PromptPreview, &f.Acknowledged); err != nil {
			return nil, err
		}
		f.Kind = models.SentimentFlagKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}

// AcknowledgeFlaggedEvent marks a flagged event reviewed.
func (s *Store) AcknowledgeFlaggedEvent(ctx context.Context, id int64) error {
	return s.withChange(ctx, "flagged_events", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE flagged_events SET acknowledged = 1 WHERE id = ?`, id)
		return err
	})
}

func encodeCategories(cats []models.Category) string {
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func decodeCategories(s string) []models.Category {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]models.Category, len(parts))
	for i, p := range parts {
		out[i] = models.Category(p)
	}
	return out
}
