package docstore

import (
	"context"
	"fmt"
	"time"
)

// Section types known to the storefront.
const (
	SectionText     = "text"
	SectionHero     = "hero"
	SectionAbout    = "about"
	SectionServices = "services"
)

// Section is an editable block of site copy.
type Section struct {
	ID        string
	Title     string
	Body      string
	Type      string
	Position  int
	UpdatedAt time.Time
}

// ListSections returns sections in display order.
func (s *Store) ListSections(ctx context.Context) ([]Section, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, title, body, type, position, updated_at FROM content ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var out []Section
	for rows.Next() {
		var sec Section
		var updated string
		if err := rows.Scan(&sec.ID, &sec.Title, &sec.Body, &sec.Type, &sec.Position, &updated); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sec.UpdatedAt = parseTime(updated)
		out = append(out, sec)
	}
	return out, rows.Err()
}

// CreateSection appends sec after the last section.
func (s *Store) CreateSection(ctx context.Context, sec Section) (Section, error) {
	if err := s.ready(ctx); err != nil {
		return Section{}, err
	}
	if sec.ID == "" {
		sec.ID = newID()
	}
	if sec.Type == "" {
		sec.Type = SectionText
	}
	sec.UpdatedAt = s.now()
	err := s.sqlDB.QueryRowContext(ctx, `
INSERT INTO content (id, title, body, type, position, updated_at)
VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM content), ?)
RETURNING position`,
		sec.ID, sec.Title, sec.Body, sec.Type, formatTime(sec.UpdatedAt),
	).Scan(&sec.Position)
	if err != nil {
		return Section{}, fmt.Errorf("create section: %w", err)
	}
	return sec, nil
}

// UpdateSectionContent replaces the body of a section in place.
func (s *Store) UpdateSectionContent(ctx context.Context, id, body string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE content SET body = ?, updated_at = ? WHERE id = ?`, body, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return mustAffect(res, "section", id)
}

// UpdateSection replaces title, body and type of a section.
func (s *Store) UpdateSection(ctx context.Context, sec Section) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE content SET title = ?, body = ?, type = ?, updated_at = ? WHERE id = ?`,
		sec.Title, sec.Body, sec.Type, formatTime(s.now()), sec.ID)
	if err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return mustAffect(res, "section", sec.ID)
}
