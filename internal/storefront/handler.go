// Package storefront serves the public single-page site.
package storefront

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"ntes/internal/apperr"
	"ntes/internal/config"
	"ntes/internal/contact"
	"ntes/internal/content"
	"ntes/internal/docstore"
	"ntes/internal/gallery"
	"ntes/internal/ui"
)

//go:embed static
var staticFiles embed.FS

// ContactPath receives contact form submissions.
const ContactPath = "/api/contacts"

const maxFormBytes = 64 << 10

// Content provides editable sections and the logo.
type Content interface {
	Sections(ctx context.Context) ([]docstore.Section, error)
	Logo(ctx context.Context) (string, error)
}

// Gallery provides the visitor gallery listing.
type Gallery interface {
	Listing(ctx context.Context) (gallery.Listing, error)
}

// Contacts stores contact submissions.
type Contacts interface {
	Submit(ctx context.Context, f contact.Form) (docstore.Contact, error)
}

// Options configures the storefront.
type Options struct {
	Site config.Site
	// PublicURL is the externally visible base URL used in the sitemap.
	PublicURL string
	// Media serves uploaded objects under /media/.
	Media http.Handler
	// Health reports backend readiness for /healthz.
	Health func(ctx context.Context) error
}

// Handler is the storefront HTTP surface.
type Handler struct {
	content  Content
	gallery  Gallery
	contacts Contacts
	opts     Options
}

// New builds the storefront.
func New(c Content, g Gallery, contacts Contacts, opts Options) *Handler {
	return &Handler{content: c, gallery: g, contacts: contacts, opts: opts}
}

// Routes registers the storefront on mux. Pass nil to get a new mux.
func (h *Handler) Routes(mux *http.ServeMux) *http.ServeMux {
	if mux == nil {
		mux = http.NewServeMux()
	}
	static, _ := fs.Sub(staticFiles, "static")
	files := http.FileServerFS(static)

	mux.HandleFunc("GET /{$}", h.home)
	mux.HandleFunc("POST "+ContactPath, h.submitContact)
	mux.Handle("GET /static/", http.StripPrefix("/static/", files))
	mux.Handle("GET /manifest.json", files)
	mux.Handle("GET /favicon.ico", files)
	mux.HandleFunc("GET /sitemap.xml", h.sitemap)
	mux.HandleFunc("GET /robots.txt", h.robots)
	mux.HandleFunc("GET /healthz", h.healthz)
	if h.opts.Media != nil {
		mux.Handle("GET /media/", h.opts.Media)
	}
	return mux
}

// Handler returns the storefront with gzip compression.
func (h *Handler) Handler() http.Handler {
	return gzhttp.GzipHandler(h.Routes(nil))
}

func (h *Handler) page(ctx context.Context, r *http.Request) Page {
	p := Page{
		Site:     h.opts.Site,
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Sent:     r.URL.Query().Get("sent") == "1",
	}
	sections, err := h.content.Sections(ctx)
	if err != nil {
		log.Printf("storefront: load sections: %v", err)
		sections = content.DefaultSections
	}
	p.Sections = sections

	if logo, err := h.content.Logo(ctx); err != nil {
		log.Printf("storefront: load logo: %v", err)
	} else {
		p.LogoURL = logo
	}

	listing, err := h.gallery.Listing(ctx)
	if err != nil {
		log.Printf("storefront: load gallery: %v", err)
		p.GalleryError = "The gallery is unavailable right now. Please try again later."
	}
	p.Listing = listing
	return p
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	ui.Serve(w, r, http.StatusOK, HomePage(h.page(r.Context(), r)))
}

func wantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Offline-Replay") != "" {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

func readForm(r *http.Request) (contact.Form, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body := http.MaxBytesReader(nil, r.Body, maxFormBytes)
	if mt == "application/json" {
		var f contact.Form
		if err := json.NewDecoder(body).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return contact.Form{}, apperr.Wrap(apperr.CodeInvalidArgument, "request body is not valid JSON", err)
		}
		return f, nil
	}
	r.Body = body
	if err := r.ParseForm(); err != nil {
		return contact.Form{}, apperr.Wrap(apperr.CodeInvalidArgument, "form could not be read", err)
	}
	return contact.Form{
		Name:    r.PostForm.Get("name"),
		Email:   r.PostForm.Get("email"),
		Phone:   r.PostForm.Get("phone"),
		Service: r.PostForm.Get("service"),
		Message: r.PostForm.Get("message"),
	}, nil
}

func (h *Handler) submitContact(w http.ResponseWriter, r *http.Request) {
	asJSON := wantsJSON(r)
	f, err := readForm(r)
	var saved docstore.Contact
	if err == nil {
		saved, err = h.contacts.Submit(r.Context(), f)
	}
	if err != nil {
		status := apperr.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			log.Printf("storefront: save contact: %v", err)
		}
		if asJSON {
			writeJSON(w, status, map[string]string{"error": apperr.UserMessage(err)})
			return
		}
		p := h.page(r.Context(), r)
		p.Form = f
		p.FormError = apperr.UserMessage(err)
		ui.Serve(w, r, status, HomePage(p))
		return
	}
	log.Printf("storefront: contact received id=%s", saved.ID)
	if asJSON {
		writeJSON(w, http.StatusCreated, map[string]string{"id": saved.ID, "status": saved.Status})
		return
	}
	http.Redirect(w, r, "/?sent=1#contact", http.StatusSeeOther)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if h.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.opts.Health(ctx); err != nil {
			http.Error(w, "unavailable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	_, _ = io.WriteString(w, "ok\n")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("storefront: write json: %v", err)
	}
}
