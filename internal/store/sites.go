package store

import (
	"context"
	"database/sql"

	"github.com/aegis-gateway/aegis/internal/models"
)

// ListCustomSites returns every operator-added site override, for the
// registry's Reload merge.
func (s *Store) ListCustomSites(ctx context.Context) ([]models.SiteEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pattern, service_name, category, parser_id, priority, enabled, source FROM sites`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SiteEntry
	for rows.Next() {
		var e models.SiteEntry
		var category, source string
		if err := rows.Scan(&e.ID, &e.Pattern, &e.ServiceName, &category, &e.ParserID, &e.Priority, &e.Enabled, &source); err != nil {
			return nil, err
		}
		e.Category = models.SiteCategory(category)
		e.Source = models.SiteSource(source)
		out = append(out, e)
	}
	return out, rows.Err()
}

// PutCustomSite upserts an operator-added or remote-fed site override,
// bumping the "sites" cursor key that the registry's LRU watches.
func (s *Store) PutCustomSite(ctx context.Context, e models.SiteEntry) error {
	return s.withChange(ctx, "sites", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sites (id, pattern, service_name, category, parser_id, priority, enabled, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(pattern) DO UPDATE SET
				service_name = excluded.service_name, category = excluded.category,
				parser_id = excluded.parser_id, priority = excluded.priority,
				enabled = excluded.enabled, source = excluded.source`,
			e.ID, e.Pattern, e.ServiceName, string(e.Category), e.ParserID, e.Priority, e.Enabled, string(e.Source))
		return err
	})
}

// DeleteCustomSite removes a single override by id, bumping "sites".
func (s *Store) DeleteCustomSite(ctx context.Context, id string) error {
	return s.withChange(ctx, "sites", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id)
		return err
	})
}

// SetSiteEnabled flips a site's enabled flag without deleting it,
// implementing the "disabling never deletes a bundled entry" rule for
// custom rows shadowing a bundled pattern (spec.md §4.2): disabling an
// unknown pattern inserts a disabled shadow row rather than erroring.
func (s *Store) SetSiteEnabled(ctx context.Context, pattern string, enabled bool) error {
	return s.withChange(ctx, "sites", func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE sites SET enabled = ? WHERE pattern = ?`, enabled, pattern)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sites (id, pattern, service_name, category, parser_id, priority, enabled, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			pattern, pattern, pattern, string(models.SiteConsumer), "unknown", 0, enabled, string(models.SiteCustom))
		return err
	})
}
