// Package content manages the editable site sections and site settings.
package content

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"ntes/internal/apperr"
	"ntes/internal/blobstore"
	"ntes/internal/docstore"
)

// LogoPath is the fixed object path of the site logo.
const LogoPath = "settings/logo"

// Defaults for sections added from the admin panel.
const (
	NewSectionTitle = "New Section"
	NewSectionBody  = "Enter your content here..."
)

// DefaultSections seed an empty content collection.
var DefaultSections = []docstore.Section{
	{Title: "Hero Title", Body: "Professional Business Services for Your Success", Type: docstore.SectionHero},
	{Title: "About Section", Body: "We provide comprehensive business documentation, branding and digital services to help small businesses grow.", Type: docstore.SectionAbout},
	{Title: "Services", Body: "CVs, business plans, company profiles, logos, websites and more.", Type: docstore.SectionServices},
}

// Service exposes sections and settings.
type Service struct {
	docs  *docstore.Store
	blobs *blobstore.Store

	seedMu sync.Mutex
}

// New builds the content service.
func New(docs *docstore.Store, blobs *blobstore.Store) *Service {
	return &Service{docs: docs, blobs: blobs}
}

// Sections returns the sections in order, seeding defaults into an empty collection.
func (s *Service) Sections(ctx context.Context) ([]docstore.Section, error) {
	list, err := s.docs.ListSections(ctx)
	if err != nil || len(list) > 0 {
		return list, err
	}

	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	list, err = s.docs.ListSections(ctx)
	if err != nil || len(list) > 0 {
		return list, err
	}
	for _, sec := range DefaultSections {
		created, err := s.docs.CreateSection(ctx, sec)
		if err != nil {
			return nil, fmt.Errorf("seed sections: %w", err)
		}
		list = append(list, created)
	}
	log.Printf("content: seeded %d default sections", len(list))
	return list, nil
}

// Section returns the first section of type typ.
func (s *Service) Section(ctx context.Context, typ string) (docstore.Section, bool, error) {
	list, err := s.Sections(ctx)
	if err != nil {
		return docstore.Section{}, false, err
	}
	for _, sec := range list {
		if sec.Type == typ {
			return sec, true, nil
		}
	}
	return docstore.Section{}, false, nil
}

// AddSection appends a placeholder text section.
func (s *Service) AddSection(ctx context.Context) (docstore.Section, error) {
	return s.docs.CreateSection(ctx, docstore.Section{
		Title: NewSectionTitle,
		Body:  NewSectionBody,
		Type:  docstore.SectionText,
	})
}

// UpdateContent replaces a section's body.
func (s *Service) UpdateContent(ctx context.Context, id, body string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.New(apperr.CodeInvalidArgument, "section id is required")
	}
	return s.docs.UpdateSectionContent(ctx, id, body)
}

// UpdateSection replaces a section's title and body.
func (s *Service) UpdateSection(ctx context.Context, sec docstore.Section) error {
	if strings.TrimSpace(sec.Title) == "" {
		return apperr.New(apperr.CodeInvalidArgument, "section title is required")
	}
	if sec.Type == "" {
		sec.Type = docstore.SectionText
	}
	return s.docs.UpdateSection(ctx, sec)
}

// Logo returns the logo URL, or "" when none was uploaded.
func (s *Service) Logo(ctx context.Context) (string, error) {
	v, err := s.docs.GetSetting(ctx, docstore.SettingLogoURL)
	if apperr.HasCode(err, apperr.CodeNotFound) {
		return "", nil
	}
	return v, err
}

// UploadLogo replaces the logo object and records its URL. The URL carries a
// version so caches see the new image.
func (s *Service) UploadLogo(ctx context.Context, r io.Reader) (string, error) {
	if err := s.blobs.Delete(ctx, LogoPath); err != nil {
		log.Printf("content: delete previous logo: %v", err)
	}
	obj, err := s.blobs.Put(ctx, LogoPath, r, nil)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s?v=%d", s.blobs.URL(LogoPath), obj.ModTime.UnixMilli())
	if err := s.docs.PutSetting(ctx, docstore.SettingLogoURL, url); err != nil {
		return "", err
	}
	return url, nil
}
