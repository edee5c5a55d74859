package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aegis-gateway/aegis/internal/models"
)

// ErrProfileNotFound is returned when a profile id has no matching row.
var ErrProfileNotFound = errors.New("store: profile not found")

// ListProfiles returns every profile with its time and content rules
// attached. Satisfies profilemgr.ProfileSource.
func (s *Store) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, os_username, nsfw_threshold, proxy_mode, enabled FROM profiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.OSUsername, &p.NSFWThreshold, &p.ProxyMode, &p.Enabled); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range profiles {
		tr, err := s.timeRulesFor(ctx, profiles[i].ID)
		if err != nil {
			return nil, err
		}
		profiles[i].TimeRules = tr

		cr, err := s.contentRulesFor(ctx, profiles[i].ID)
		if err != nil {
			return nil, err
		}
		profiles[i].ContentRules = cr
	}
	return profiles, nil
}

// GetProfile returns a single profile with its rules, or
// ErrProfileNotFound.
func (s *Store) GetProfile(ctx context.Context, id string) (models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, os_username, nsfw_threshold, proxy_mode, enabled FROM profiles WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.OSUsername, &p.NSFWThreshold, &p.ProxyMode, &p.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return models.Profile{}, err
	}

	p.TimeRules, err = s.timeRulesFor(ctx, p.ID)
	if err != nil {
		return models.Profile{}, err
	}
	p.ContentRules, err = s.contentRulesFor(ctx, p.ID)
	if err != nil {
		return models.Profile{}, err
	}
	return p, nil
}

// PutProfile upserts a profile along with its full rule set, replacing
// the previous rows for that profile, in one transaction, bumping seq.
func (s *Store) PutProfile(ctx context.Context, p models.Profile) error {
	return s.withChange(ctx, "profiles", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (id, name, os_username, nsfw_threshold, proxy_mode, enabled)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, os_username = excluded.os_username,
				nsfw_threshold = excluded.nsfw_threshold, proxy_mode = excluded.proxy_mode,
				enabled = excluded.enabled`,
			p.ID, p.Name, p.OSUsername, p.NSFWThreshold, p.ProxyMode, p.Enabled)
		if err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM time_rules WHERE profile_id = ?`, p.ID); err != nil {
			return err
		}
		for _, r := range p.TimeRules {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO time_rules (id, profile_id, name, days, start_minutes, end_minutes, enabled)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.ID, p.ID, r.Name, encodeDays(r.Days), r.Start.Minutes(), r.End.Minutes(), r.Enabled); err != nil {
				return fmt.Errorf("insert time_rule: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM content_rules WHERE profile_id = ?`, p.ID); err != nil {
			return err
		}
		for _, r := range p.ContentRules {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO content_rules (id, profile_id, category, action, threshold, enabled)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				r.ID, p.ID, string(r.Category), string(r.Action), r.Threshold, r.Enabled); err != nil {
				return fmt.Errorf("insert content_rule: %w", err)
			}
		}
		return nil
	})
}

// DeleteProfile removes a profile and its rules (cascade), bumping seq.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	return s.withChange(ctx, "profiles", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
		return err
	})
}

func (s *Store) timeRulesFor(ctx context.Context, profileID string) ([]models.TimeRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, days, start_minutes, end_minutes, enabled FROM time_rules WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TimeRule
	for rows.Next() {
		var r models.TimeRule
		var days string
		var startMin, endMin int
		if err := rows.Scan(&r.ID, &r.Name, &days, &startMin, &endMin, &r.Enabled); err != nil {
			return nil, err
		}
		r.Days = decodeDays(days)
		r.Start = models.LocalTime{Hour: startMin / 60, Minute: startMin % 60}
		r.End = models.LocalTime{Hour: endMin / 60, Minute: endMin % 60}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) contentRulesFor(ctx context.Context, profileID string) ([]models.ContentRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, action, threshold, enabled FROM content_rules WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ContentRule
	for rows.Next() {
		var r models.ContentRule
		var category, action string
		if err := rows.Scan(&r.ID, &category, &action, &r.Threshold, &r.Enabled); err != nil {
			return nil, err
		}
		r.Category = models.Category(category)
		r.Action = models.Action(action)
		out = append(out, r)
	}
	return out, rows.Err()
}

func encodeDays(days []models.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func decodeDays(s string) []models.Weekday {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]models.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		out = append(out, models.Weekday(n))
	}
	return out
}
