// Package admin is the authenticated management panel: sign-in, backend
// status, gallery and content management and contact inquiries.
package admin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"

	"ntes/internal/apperr"
	"ntes/internal/auth"
	"ntes/internal/backend"
	"ntes/internal/contact"
	"ntes/internal/content"
	"ntes/internal/gallery"
	"ntes/internal/upload"
)

// Paths of the panel.
const (
	Prefix     = "/admin"
	LoginPath  = Prefix + "/login"
	uploadsAPI = Prefix + "/api/uploads/"
)

// Prober reports backend connectivity.
type Prober interface {
	Probe(ctx context.Context) backend.ProbeResult
}

// Deps are the services the panel drives.
type Deps struct {
	Auth     *auth.Service
	Gallery  *gallery.Service
	Content  *content.Service
	Contacts *contact.Service
	Uploads  *upload.Pipeline
	Probe    Prober
	// SpoolDir holds upload bodies until the pipeline has stored them.
	SpoolDir string
	SiteName string
}

// Handler serves /admin.
type Handler struct {
	deps Deps
}

// New builds the panel.
func New(deps Deps) *Handler {
	if deps.SpoolDir == "" {
		deps.SpoolDir = os.TempDir()
	}
	if deps.SiteName == "" {
		deps.SiteName = "NTES"
	}
	return &Handler{deps: deps}
}

// Routes registers the panel on mux. Pass nil to get a new mux.
func (h *Handler) Routes(mux *http.ServeMux) *http.ServeMux {
	if mux == nil {
		mux = http.NewServeMux()
	}
	mux.HandleFunc("GET "+LoginPath, h.loginPage)
	mux.HandleFunc("POST "+LoginPath, h.login)
	mux.HandleFunc("POST "+Prefix+"/demo", h.demoLogin)
	mux.HandleFunc("GET "+Prefix+"/signup", h.signupPage)
	mux.HandleFunc("POST "+Prefix+"/signup", h.signup)
	mux.HandleFunc("POST "+Prefix+"/logout", h.logout)

	p := http.NewServeMux()
	p.HandleFunc("GET "+Prefix+"/{$}", h.dashboard)
	p.HandleFunc("GET "+Prefix+"/gallery", h.galleryPage)
	p.HandleFunc("POST "+Prefix+"/gallery/categories", h.createCategory)
	p.HandleFunc("POST "+Prefix+"/gallery/categories/{id}/rename", h.renameCategory)
	p.HandleFunc("POST "+Prefix+"/gallery/categories/{id}/delete", h.deleteCategory)
	p.HandleFunc("POST "+Prefix+"/gallery/upload", h.uploadImages)
	p.HandleFunc("POST "+Prefix+"/gallery/images/{id}/delete", h.deleteImage)
	p.HandleFunc("GET "+uploadsAPI+"{id}", h.uploadStatus)
	p.HandleFunc("GET "+Prefix+"/content", h.contentPage)
	p.HandleFunc("POST "+Prefix+"/content", h.addSection)
	p.HandleFunc("POST "+Prefix+"/content/{id}", h.updateSection)
	p.HandleFunc("POST "+Prefix+"/logo", h.uploadLogo)
	p.HandleFunc("GET "+Prefix+"/contacts", h.contactsPage)
	p.HandleFunc("POST "+Prefix+"/contacts/{id}/status", h.setContactStatus)
	mux.Handle(Prefix+"/", h.deps.Auth.Middleware(LoginPath, p))
	return mux
}

// notice is the one-line outcome carried across a redirect.
type notice struct {
	Message string
	Error   string
}

func noticeFrom(r *http.Request) notice {
	q := r.URL.Query()
	return notice{Message: q.Get("msg"), Error: q.Get("err")}
}

// back redirects to path with an outcome message.
func back(w http.ResponseWriter, r *http.Request, path string, extra url.Values, err error, msg string) {
	q := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	if err != nil {
		q.Set("err", apperr.UserMessage(err))
	} else if msg != "" {
		q.Set("msg", msg)
	}
	target := path
	if enc := q.Encode(); enc != "" {
		target += "?" + enc
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func logFailure(action string, err error) {
	if err != nil && apperr.HTTPStatus(err) >= http.StatusInternalServerError {
		log.Printf("admin: %s: %v", action, err)
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("admin: write json: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), map[string]string{"error": apperr.UserMessage(err), "code": string(apperr.CodeOf(err))})
}

// safeNext keeps post-login redirects inside the panel.
func safeNext(next string) string {
	if strings.HasPrefix(next, Prefix+"/") && !strings.HasPrefix(next, "//") && !strings.Contains(next, "\\") {
		return next
	}
	return Prefix + "/"
}
