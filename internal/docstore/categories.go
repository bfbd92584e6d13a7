package docstore

import (
	"context"
	"fmt"
	"time"

	"ntes/internal/apperr"
)

// Category is a gallery grouping. Auto categories were created implicitly by an upload.
type Category struct {
	ID        string
	Name      string
	Auto      bool
	CreatedAt time.Time
	Count     int
}

// CreateCategory inserts c. An existing id yields CodeCategoryExists.
func (s *Store) CreateCategory(ctx context.Context, c Category) (Category, error) {
	if err := s.ready(ctx); err != nil {
		return Category{}, err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO categories (id, name, auto, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, boolInt(c.Auto), formatTime(c.CreatedAt),
	)
	if isUniqueViolation(err) {
		return Category{}, apperr.WithMetadata(apperr.CodeCategoryExists, "category exists", map[string]string{"ID": c.ID})
	}
	if err != nil {
		return Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// GetCategory returns a category with its live image count.
func (s *Store) GetCategory(ctx context.Context, id string) (Category, error) {
	if err := s.ready(ctx); err != nil {
		return Category{}, err
	}
	var c Category
	var auto int
	var created string
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT c.id, c.name, c.auto, c.created_at,
       (SELECT COUNT(1) FROM gallery g WHERE g.category = c.id AND g.deleting = 0)
FROM categories c WHERE c.id = ?`, id).Scan(&c.ID, &c.Name, &auto, &created, &c.Count)
	if noRows(err) {
		return Category{}, notFound("category", id)
	}
	if err != nil {
		return Category{}, fmt.Errorf("get category: %w", err)
	}
	c.Auto = auto != 0
	c.CreatedAt = parseTime(created)
	return c, nil
}

// ListCategories returns every category with live image counts, oldest first.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT c.id, c.name, c.auto, c.created_at,
       (SELECT COUNT(1) FROM gallery g WHERE g.category = c.id AND g.deleting = 0)
FROM categories c ORDER BY c.created_at, c.id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		var auto int
		var created string
		if err := rows.Scan(&c.ID, &c.Name, &auto, &created, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Auto = auto != 0
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

// RenameCategory changes the display name. Renaming also makes the category explicit.
func (s *Store) RenameCategory(ctx context.Context, id, name string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE categories SET name = ?, auto = 0 WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename category: %w", err)
	}
	return mustAffect(res, "category", id)
}

// DeleteCategory removes a category that no live image references.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	n, err := s.CountImages(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.WithMetadata(apperr.CodeCategoryNotEmpty, "category has images",
			map[string]string{"ID": id, "Count": fmt.Sprint(n)})
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return mustAffect(res, "category", id)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
