package storefront

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ntes/internal/blobstore"
	"ntes/internal/config"
	"ntes/internal/contact"
	"ntes/internal/content"
	"ntes/internal/docstore"
	"ntes/internal/gallery"
)

type fixture struct {
	docs     *docstore.Store
	gallery  *gallery.Service
	contacts *contact.Service
	srv      *httptest.Server
}

func newFixture(t *testing.T, health func(context.Context) error) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	docs, err := docstore.Open(ctx, filepath.Join(dir, "ntes.db"))
	if err != nil {
		t.Fatalf("open docstore: %v", err)
	}
	t.Cleanup(func() { _ = docs.Close() })
	blobs, err := blobstore.Open(filepath.Join(dir, "blobs"), "/media/")
	if err != nil {
		t.Fatalf("open blobs: %v", err)
	}

	f := &fixture{
		docs:     docs,
		gallery:  gallery.New(docs, blobs, gallery.NewMemoryCache(time.Minute)),
		contacts: contact.New(docs),
	}
	site := config.Default().Site
	h := New(content.New(docs, blobs), f.gallery, f.contacts, Options{
		Site:      site,
		PublicURL: "https://ntes.example",
		Media:     blobs.Handler(),
		Health:    health,
	})
	f.srv = httptest.NewServer(h.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
}

func get(t *testing.T, rawURL string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("get %s: %v", rawURL, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestHomePageRendersSections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.gallery.EnsureCategory(ctx, "Business Cards"); err != nil {
		t.Fatalf("category: %v", err)
	}
	if _, err := f.gallery.AddImage(ctx, docstore.Image{Name: "card.jpg", URL: "/media/gallery/business-cards/1_card.jpg", Category: "business-cards", Path: "gallery/business-cards/1_card.jpg", Size: 10}); err != nil {
		t.Fatalf("image: %v", err)
	}
	if _, err := f.gallery.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}

	resp, body := get(t, f.srv.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{
		`id="hero"`, `id="about"`, `id="services"`, `id="tech-services"`, `id="pricing"`,
		`id="why-us"`, `id="gallery"`, `id="certifications"`, `id="contact"`,
		"Professional Business Services for Your Success",
		"R1,200", "R840", "Save 30%",
		"Business Cards", `src="/media/gallery/business-cards/1_card.jpg"`,
		`action="/api/contacts"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("home page missing %q", want)
		}
	}
	if strings.Contains(body, "data-autohide") {
		t.Fatal("success banner shown without sent=1")
	}
}

func TestGalleryFilter(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, img := range []docstore.Image{
		{Name: "flyer.jpg", URL: "/media/a.jpg", Category: "flyers", Path: "gallery/flyers/a.jpg"},
		{Name: "logo.jpg", URL: "/media/b.jpg", Category: "logos", Path: "gallery/logos/b.jpg"},
	} {
		if _, err := f.gallery.EnsureCategory(ctx, img.Category); err != nil {
			t.Fatalf("category: %v", err)
		}
		if _, err := f.gallery.AddImage(ctx, img); err != nil {
			t.Fatalf("image: %v", err)
		}
	}
	if _, err := f.gallery.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}

	_, body := get(t, f.srv.URL+"/?category=logos")
	if !strings.Contains(body, `src="/media/b.jpg"`) || strings.Contains(body, `src="/media/a.jpg"`) {
		t.Fatal("category filter not applied")
	}
	_, body = get(t, f.srv.URL+"/?category=empty")
	if !strings.Contains(body, "No images in this category yet.") {
		t.Fatal("empty state missing")
	}
}

func TestContactFormRedirectsAndStores(t *testing.T) {
	f := newFixture(t, nil)
	form := url.Values{
		"name":    {"Thabo"},
		"email":   {"thabo@example.co.za"},
		"service": {"Logo"},
		"message": {"I need a logo"},
	}
	resp, err := noRedirect().PostForm(f.srv.URL+ContactPath, form)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/?sent=1#contact" {
		t.Fatalf("status = %d location = %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	list, err := f.contacts.List(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("contacts = %+v, %v", list, err)
	}
	if list[0].Status != docstore.ContactStatusNew || list[0].Name != "Thabo" {
		t.Fatalf("contact = %+v", list[0])
	}

	_, body := get(t, f.srv.URL+"/?sent=1")
	if !strings.Contains(body, `data-autohide="5000"`) {
		t.Fatal("success banner missing")
	}
}

func TestContactFormErrors(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := noRedirect().PostForm(f.srv.URL+ContactPath, url.Values{"name": {"Thabo"}, "email": {"nope"}, "message": {"hi"}})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(b), "Email address is invalid.") {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(b), `value="Thabo"`) {
		t.Fatal("form values not preserved")
	}

	resp, err = http.Post(f.srv.URL+ContactPath, "application/json", strings.NewReader(`{"name":"","email":"a@b.co","message":"x"}`))
	if err != nil {
		t.Fatalf("post json: %v", err)
	}
	var out map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest || out["error"] != "Name is required." {
		t.Fatalf("json error = %d %v", resp.StatusCode, out)
	}
}

func TestContactJSONReplay(t *testing.T) {
	f := newFixture(t, nil)
	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+ContactPath, strings.NewReader(`{"name":"Lindi","email":"lindi@example.com","message":"Website quote"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Offline-Replay", "00000000000000000001")
	resp, err := noRedirect().Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var out map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || out["id"] == "" || out["status"] != docstore.ContactStatusNew {
		t.Fatalf("replay = %d %v", resp.StatusCode, out)
	}
}

func TestStaticAndHealth(t *testing.T) {
	f := newFixture(t, func(context.Context) error { return errors.New("db down") })

	for _, p := range []string{"/manifest.json", "/favicon.ico", "/static/site.css", "/static/app.js"} {
		resp, _ := get(t, f.srv.URL+p)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", p, resp.StatusCode)
		}
	}
	resp, _ := get(t, f.srv.URL+"/healthz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
	resp, _ = get(t, f.srv.URL+"/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown path = %d", resp.StatusCode)
	}
}

func TestResponsesAreGzipped(t *testing.T) {
	f := newFixture(t, nil)
	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("Content-Encoding") != "gzip" {
		t.Fatalf("content-encoding = %q", resp.Header.Get("Content-Encoding"))
	}
}

func TestSitemap(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.gallery.EnsureCategory(ctx, "flyers"); err != nil {
		t.Fatalf("category: %v", err)
	}
	if _, err := f.gallery.AddImage(ctx, docstore.Image{Name: "a.jpg", URL: "/media/gallery/flyers/a.jpg", Category: "flyers", Path: "gallery/flyers/a.jpg"}); err != nil {
		t.Fatalf("image: %v", err)
	}
	if _, err := f.gallery.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}

	resp, body := get(t, f.srv.URL+"/sitemap.xml")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var doc struct {
		URLs []struct {
			Loc    string   `xml:"loc"`
			Images []string `xml:"image>loc"`
		} `xml:"url"`
	}
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		t.Fatalf("parse sitemap: %v\n%s", err, body)
	}
	if len(doc.URLs) != 1 || doc.URLs[0].Loc != "https://ntes.example/" {
		t.Fatalf("urls = %+v", doc.URLs)
	}
	if len(doc.URLs[0].Images) != 1 || doc.URLs[0].Images[0] != "https://ntes.example/media/gallery/flyers/a.jpg" {
		t.Fatalf("images = %+v", doc.URLs[0].Images)
	}
}
