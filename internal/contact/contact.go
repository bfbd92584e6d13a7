// Package contact records inquiries submitted through the storefront form.
package contact

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"ntes/internal/apperr"
	"ntes/internal/auth"
	"ntes/internal/docstore"
)

// Form is a submitted contact form.
type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Message string `json:"message"`
}

// Normalize trims every field.
func (f Form) Normalize() Form {
	return Form{
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Phone:   strings.TrimSpace(f.Phone),
		Service: strings.TrimSpace(f.Service),
		Message: strings.TrimSpace(f.Message),
	}
}

// Validate checks required fields and the email syntax.
func (f Form) Validate() error {
	switch {
	case f.Name == "":
		return apperr.New(apperr.CodeInvalidArgument, "name is required")
	case f.Email == "":
		return apperr.New(apperr.CodeInvalidArgument, "email is required")
	case f.Message == "":
		return apperr.New(apperr.CodeInvalidArgument, "message is required")
	}
	if _, err := auth.NormalizeEmail(f.Email); err != nil {
		return apperr.New(apperr.CodeInvalidArgument, "email address is invalid")
	}
	return nil
}

// Service stores inquiries.
type Service struct {
	docs *docstore.Store
}

// New builds the contact service.
func New(docs *docstore.Store) *Service {
	return &Service{docs: docs}
}

// Submit validates f and stores it with status "new".
func (s *Service) Submit(ctx context.Context, f Form) (docstore.Contact, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return docstore.Contact{}, err
	}
	return s.docs.CreateContact(ctx, docstore.Contact{
		Name:    f.Name,
		Email:   f.Email,
		Phone:   f.Phone,
		Service: f.Service,
		Message: f.Message,
		Status:  docstore.ContactStatusNew,
	})
}

// List returns inquiries newest first.
func (s *Service) List(ctx context.Context) ([]docstore.Contact, error) {
	return s.docs.ListContacts(ctx)
}

// Inquiry statuses an admin can set.
var Statuses = []string{docstore.ContactStatusNew, "read", "replied"}

// SetStatus updates an inquiry's status.
func (s *Service) SetStatus(ctx context.Context, id, status string) error {
	if !slices.Contains(Statuses, status) {
		return apperr.New(apperr.CodeInvalidArgument, "unknown status "+strconv.Quote(status))
	}
	return s.docs.UpdateContactStatus(ctx, id, status)
}
