package docstore

import (
	"context"
	"fmt"
	"time"
)

// Image is the metadata record of an uploaded gallery image.
type Image struct {
	ID           string
	Name         string
	URL          string
	Category     string
	Path         string
	Size         int64
	OriginalSize int64
	CreatedAt    time.Time
	// Deleting marks a record whose blob removal has started but not finished.
	Deleting bool
}

const imageColumns = `id, name, url, category, path, size, original_size, deleting, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(r rowScanner) (Image, error) {
	var img Image
	var deleting int
	var created string
	if err := r.Scan(&img.ID, &img.Name, &img.URL, &img.Category, &img.Path,
		&img.Size, &img.OriginalSize, &deleting, &created); err != nil {
		return Image{}, err
	}
	img.Deleting = deleting != 0
	img.CreatedAt = parseTime(created)
	return img, nil
}

// CreateImage inserts a gallery record.
func (s *Store) CreateImage(ctx context.Context, img Image) (Image, error) {
	if err := s.ready(ctx); err != nil {
		return Image{}, err
	}
	if img.ID == "" {
		img.ID = newID()
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = s.now()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO gallery (`+imageColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		img.ID, img.Name, img.URL, img.Category, img.Path, img.Size, img.OriginalSize, formatTime(img.CreatedAt),
	)
	if err != nil {
		return Image{}, fmt.Errorf("create image: %w", err)
	}
	return img, nil
}

// GetImage returns a record by id, including tombstoned ones.
func (s *Store) GetImage(ctx context.Context, id string) (Image, error) {
	if err := s.ready(ctx); err != nil {
		return Image{}, err
	}
	img, err := scanImage(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM gallery WHERE id = ?`, id))
	if noRows(err) {
		return Image{}, notFound("image", id)
	}
	if err != nil {
		return Image{}, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

// ListImages returns live records, newest first. An empty category lists all.
func (s *Store) ListImages(ctx context.Context, category string) ([]Image, error) {
	query := `SELECT ` + imageColumns + ` FROM gallery WHERE deleting = 0`
	args := []any{}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, id`
	return s.queryImages(ctx, query, args...)
}

// ListDeletingImages returns tombstoned records awaiting reconciliation.
func (s *Store) ListDeletingImages(ctx context.Context) ([]Image, error) {
	return s.queryImages(ctx, `SELECT `+imageColumns+` FROM gallery WHERE deleting = 1 ORDER BY created_at`)
}

func (s *Store) queryImages(ctx context.Context, query string, args ...any) ([]Image, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// ImagePaths returns the storage path of every record, tombstoned or not.
func (s *Store) ImagePaths(ctx context.Context) (map[string]struct{}, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT path FROM gallery`)
	if err != nil {
		return nil, fmt.Errorf("list image paths: %w", err)
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// MarkImageDeleting tombstones a record so listings hide it.
func (s *Store) MarkImageDeleting(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE gallery SET deleting = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark image deleting: %w", err)
	}
	return mustAffect(res, "image", id)
}

// DeleteImage removes a record. Deleting a missing record is not an error.
func (s *Store) DeleteImage(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM gallery WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// CountImages counts live records in category.
func (s *Store) CountImages(ctx context.Context, category string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM gallery WHERE deleting = 0 AND category = ?`, category,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}
