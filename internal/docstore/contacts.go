package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ntes/internal/apperr"
)

// ContactStatusNew is the status of a freshly submitted inquiry.
const ContactStatusNew = "new"

// Contact is a visitor-submitted inquiry.
type Contact struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Service   string
	Message   string
	Status    string
	CreatedAt time.Time
}

// CreateContact stores c with status "new" unless a status is given.
func (s *Store) CreateContact(ctx context.Context, c Contact) (Contact, error) {
	if err := s.ready(ctx); err != nil {
		return Contact{}, err
	}
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Status == "" {
		c.Status = ContactStatusNew
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO contacts (id, name, email, phone, service, message, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Phone, c.Service, c.Message, c.Status, formatTime(c.CreatedAt),
	)
	if err != nil {
		return Contact{}, fmt.Errorf("create contact: %w", err)
	}
	return c, nil
}

// ListContacts returns inquiries newest first.
func (s *Store) ListContacts(ctx context.Context) ([]Contact, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, email, phone, service, message, status, created_at
FROM contacts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		var created string
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Service, &c.Message, &c.Status, &created); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateContactStatus sets the status of an inquiry (e.g. "read", "replied").
func (s *Store) UpdateContactStatus(ctx context.Context, id, status string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return apperr.New(apperr.CodeInvalidArgument, "status is required")
	}
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE contacts SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update contact status: %w", err)
	}
	return mustAffect(res, "contact", id)
}
