// Package gallery manages gallery images and the categories that group them.
package gallery

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ntes/internal/apperr"
	"ntes/internal/blobstore"
	"ntes/internal/docstore"
)

// PathPrefix is the object store prefix for gallery images.
const PathPrefix = "gallery"

// CategoryView is a category as listed to visitors and admins.
type CategoryView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
	Auto  bool   `json:"auto"`
}

// Listing is a consistent snapshot of categories and live images.
type Listing struct {
	Categories []CategoryView   `json:"categories"`
	Images     []docstore.Image `json:"images"`
	LoadedAt   time.Time        `json:"loadedAt"`
}

func (l Listing) clone() Listing {
	return Listing{
		Categories: append([]CategoryView(nil), l.Categories...),
		Images:     append([]docstore.Image(nil), l.Images...),
		LoadedAt:   l.LoadedAt,
	}
}

// ImagesIn filters the listing by category; an empty id returns all images.
func (l Listing) ImagesIn(category string) []docstore.Image {
	if category == "" {
		return l.Images
	}
	var out []docstore.Image
	for _, img := range l.Images {
		if img.Category == category {
			out = append(out, img)
		}
	}
	return out
}

// Service is the gallery component.
type Service struct {
	docs  *docstore.Store
	blobs *blobstore.Store
	cache ListingCache
	sf    singleflight.Group

	// OrphanGrace protects blobs and auto categories of uploads still in
	// flight from reconciliation.
	OrphanGrace time.Duration
	now         func() time.Time
}

// New builds the gallery service. A nil cache keeps the listing in memory.
func New(docs *docstore.Store, blobs *blobstore.Store, cache ListingCache) *Service {
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	return &Service{docs: docs, blobs: blobs, cache: cache, OrphanGrace: time.Hour, now: time.Now}
}

// Slug derives a category id from a label: lower-case, whitespace runs become "-".
func Slug(label string) string {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(label)), unicode.IsSpace)
	return strings.Join(fields, "-")
}

// Humanize turns a category id back into a display label.
func Humanize(id string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(id, "-", " "))
}

// CreateCategory creates an explicit category that persists while empty.
func (s *Service) CreateCategory(ctx context.Context, label string) (CategoryView, error) {
	id := Slug(label)
	if id == "" {
		return CategoryView{}, apperr.New(apperr.CodeInvalidArgument, "category name is required")
	}
	c, err := s.docs.CreateCategory(ctx, docstore.Category{ID: id, Name: strings.TrimSpace(label)})
	if err != nil {
		return CategoryView{}, err
	}
	s.refresh(ctx)
	return view(c), nil
}

// EnsureCategory returns the category for label, creating an auto category
// when none exists yet.
func (s *Service) EnsureCategory(ctx context.Context, label string) (CategoryView, error) {
	id := Slug(label)
	if id == "" {
		return CategoryView{}, apperr.New(apperr.CodeInvalidArgument, "category is required")
	}
	c, err := s.docs.GetCategory(ctx, id)
	if err == nil {
		return view(c), nil
	}
	if !apperr.HasCode(err, apperr.CodeNotFound) {
		return CategoryView{}, err
	}
	c, err = s.docs.CreateCategory(ctx, docstore.Category{ID: id, Name: strings.TrimSpace(label), Auto: true})
	if apperr.HasCode(err, apperr.CodeCategoryExists) {
		c, err = s.docs.GetCategory(ctx, id)
	}
	if err != nil {
		return CategoryView{}, err
	}
	return view(c), nil
}

// RenameCategory changes a category's display name.
func (s *Service) RenameCategory(ctx context.Context, id, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return apperr.New(apperr.CodeInvalidArgument, "category name is required")
	}
	if err := s.docs.RenameCategory(ctx, id, label); err != nil {
		return err
	}
	s.refresh(ctx)
	return nil
}

// DeleteCategory removes a category with no images.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if err := s.docs.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.refresh(ctx)
	return nil
}

// AddImage stores a gallery record, recreating its category if it was
// pruned since the batch began. Listings pick it up on the next Reload.
func (s *Service) AddImage(ctx context.Context, img docstore.Image) (docstore.Image, error) {
	if img.Category == "" || img.Path == "" || img.URL == "" {
		return docstore.Image{}, apperr.New(apperr.CodeInvalidArgument, "image category, path and url are required")
	}
	if err := s.ensureByID(ctx, img.Category); err != nil {
		return docstore.Image{}, err
	}
	return s.docs.CreateImage(ctx, img)
}

func (s *Service) ensureByID(ctx context.Context, id string) error {
	_, err := s.docs.GetCategory(ctx, id)
	if !apperr.HasCode(err, apperr.CodeNotFound) {
		return err
	}
	_, err = s.docs.CreateCategory(ctx, docstore.Category{ID: id, Auto: true})
	if apperr.HasCode(err, apperr.CodeCategoryExists) {
		return nil
	}
	return err
}

// Listing returns the cached listing, loading it on a miss.
func (s *Service) Listing(ctx context.Context) (Listing, error) {
	l, ok, err := s.cache.Get(ctx)
	if err != nil {
		log.Printf("gallery: listing cache read failed: %v", err)
	}
	if ok {
		return l, nil
	}
	return s.Reload(ctx)
}

// Categories lists categories with their image counts.
func (s *Service) Categories(ctx context.Context) ([]CategoryView, error) {
	l, err := s.Listing(ctx)
	if err != nil {
		return nil, err
	}
	return l.Categories, nil
}

// AllCategories lists every category, including empty auto categories
// the visitor listing hides.
func (s *Service) AllCategories(ctx context.Context) ([]CategoryView, error) {
	cats, err := s.docs.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, view(c))
	}
	return out, nil
}

// Images lists live images in category, or all images when category is empty.
func (s *Service) Images(ctx context.Context, category string) ([]docstore.Image, error) {
	l, err := s.Listing(ctx)
	if err != nil {
		return nil, err
	}
	return l.ImagesIn(category), nil
}

// Reload rebuilds the listing from the document store. Concurrent callers share one load.
func (s *Service) Reload(ctx context.Context) (Listing, error) {
	v, err, _ := s.sf.Do("listing", func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		return Listing{}, err
	}
	l := v.(Listing)
	if err := s.cache.Set(ctx, l); err != nil {
		log.Printf("gallery: listing cache write failed: %v", err)
	}
	return l.clone(), nil
}

func (s *Service) load(ctx context.Context) (Listing, error) {
	cats, err := s.docs.ListCategories(ctx)
	if err != nil {
		return Listing{}, err
	}
	images, err := s.docs.ListImages(ctx, "")
	if err != nil {
		return Listing{}, err
	}
	l := Listing{Images: images, LoadedAt: s.now()}
	for _, c := range cats {
		if c.Auto && c.Count == 0 {
			continue
		}
		l.Categories = append(l.Categories, view(c))
	}
	return l, nil
}

func (s *Service) refresh(ctx context.Context) {
	if _, err := s.Reload(ctx); err != nil {
		log.Printf("gallery: reload failed: %v", err)
	}
}

func view(c docstore.Category) CategoryView {
	name := c.Name
	if name == "" {
		name = Humanize(c.ID)
	}
	return CategoryView{ID: c.ID, Name: name, Count: c.Count, Auto: c.Auto}
}

// DeleteImage tombstones the record, removes its blob, then removes the
// record. A failure after the tombstone leaves work for Reconcile.
func (s *Service) DeleteImage(ctx context.Context, id string) error {
	img, err := s.docs.GetImage(ctx, id)
	if err != nil {
		return err
	}
	if err := s.docs.MarkImageDeleting(ctx, id); err != nil {
		return err
	}
	defer s.refresh(ctx)
	if err := s.finishDelete(ctx, img); err != nil {
		return fmt.Errorf("delete image %s: %w", id, err)
	}
	return nil
}

func (s *Service) finishDelete(ctx context.Context, img docstore.Image) error {
	if err := s.blobs.Delete(ctx, img.Path); err != nil {
		return err
	}
	if err := s.docs.DeleteImage(ctx, img.ID); err != nil {
		return err
	}
	return s.pruneAuto(ctx, img.Category)
}

// pruneAuto drops an auto category once nothing references it and it is
// older than OrphanGrace, so a batch still uploading into it keeps it.
func (s *Service) pruneAuto(ctx context.Context, id string) error {
	c, err := s.docs.GetCategory(ctx, id)
	if apperr.HasCode(err, apperr.CodeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !c.Auto || c.Count > 0 || c.CreatedAt.After(s.now().Add(-s.OrphanGrace)) {
		return nil
	}
	err = s.docs.DeleteCategory(ctx, id)
	if apperr.HasCode(err, apperr.CodeCategoryNotEmpty) || apperr.HasCode(err, apperr.CodeNotFound) {
		return nil
	}
	return err
}
