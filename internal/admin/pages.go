package admin

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ntes/internal/apperr"
	"ntes/internal/auth"
	"ntes/internal/docstore"
	"ntes/internal/ui"
	"ntes/internal/upload"
)

const maxLogoBytes = 10 << 20

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := dashboardView{}
	if sess, ok := auth.SessionFrom(ctx); ok {
		v.Email = sess.Email
	}
	if h.deps.Probe != nil {
		v.Probe = h.deps.Probe.Probe(ctx)
	}
	if listing, err := h.deps.Gallery.Listing(ctx); err == nil {
		v.Categories = len(listing.Categories)
		v.Images = len(listing.Images)
	} else {
		log.Printf("admin: dashboard gallery: %v", err)
	}
	if list, err := h.deps.Contacts.List(ctx); err == nil {
		for _, c := range list {
			if c.Status == docstore.ContactStatusNew {
				v.NewLeads++
			}
		}
	} else {
		log.Printf("admin: dashboard contacts: %v", err)
	}
	v.Batches = h.deps.Uploads.Tracker().Active()
	ui.Serve(w, r, http.StatusOK, dashboardPage(h.deps.SiteName, noticeFrom(r), v))
}

func (h *Handler) galleryPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n := noticeFrom(r)
	v := galleryView{
		Filter:  strings.TrimSpace(r.URL.Query().Get("category")),
		MaxSize: h.deps.Uploads.MaxFileSize(),
	}
	listing, err := h.deps.Gallery.Reload(ctx)
	if err != nil {
		logFailure("load gallery", err)
		n.Error = apperr.UserMessage(err)
	}
	// Admins also see empty auto categories so they can be renamed or removed.
	if cats, err := h.deps.Gallery.AllCategories(ctx); err == nil {
		v.Categories = cats
	} else {
		v.Categories = listing.Categories
	}
	v.Images = listing.ImagesIn(v.Filter)
	if id := r.URL.Query().Get("batch"); id != "" {
		if b, ok := h.deps.Uploads.Tracker().Get(id); ok {
			v.Batch = &b
		}
	}
	ui.Serve(w, r, http.StatusOK, galleryPage(h.deps.SiteName, n, v))
}

func galleryBack(w http.ResponseWriter, r *http.Request, category string, err error, msg string) {
	back(w, r, Prefix+"/gallery", url.Values{"category": {category}}, err, msg)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Gallery.CreateCategory(r.Context(), r.FormValue("name"))
	logFailure("create category", err)
	galleryBack(w, r, c.ID, err, "Category created.")
}

func (h *Handler) renameCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.deps.Gallery.RenameCategory(r.Context(), id, r.FormValue("name"))
	logFailure("rename category", err)
	galleryBack(w, r, id, err, "Category renamed.")
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.deps.Gallery.DeleteCategory(r.Context(), id)
	logFailure("delete category", err)
	if err != nil {
		galleryBack(w, r, id, err, "")
		return
	}
	galleryBack(w, r, "", nil, "Category deleted.")
}

func (h *Handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Gallery.DeleteImage(r.Context(), r.PathValue("id"))
	logFailure("delete image", err)
	if wantsJSON(r) {
		if err != nil {
			writeJSONError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	galleryBack(w, r, r.FormValue("category"), err, "Image deleted.")
}

func (h *Handler) uploadImages(w http.ResponseWriter, r *http.Request) {
	max := h.deps.Uploads.MaxFileSize()
	form, err := upload.ReadMultipart(r, h.deps.SpoolDir, "files", max)
	if err != nil {
		log.Printf("admin: read upload: %v", err)
		h.uploadFailed(w, r, "", apperr.Wrap(apperr.CodeInvalidArgument, "upload could not be read", err))
		return
	}
	category := form.Value("category")
	switch {
	case category == "":
		form.Release()
		h.uploadFailed(w, r, "", apperr.New(apperr.CodeInvalidArgument, "category is required"))
		return
	case len(form.Files) == 0:
		h.uploadFailed(w, r, category, apperr.New(apperr.CodeInvalidArgument, "select at least one file"))
		return
	}

	batch, err := h.deps.Uploads.Start(r.Context(), category, form.Files)
	if err != nil {
		form.Release()
		logFailure("start upload", err)
		h.uploadFailed(w, r, category, err)
		return
	}
	rejection := upload.RejectionMessage(batch.Rejected, max)
	log.Printf("admin: upload batch=%s category=%s files=%d rejected=%d", batch.ID, batch.Category, len(batch.Tasks), len(batch.Rejected))

	if wantsJSON(r) {
		writeJSON(w, http.StatusAccepted, batch)
		return
	}
	q := url.Values{"category": {batch.Category}, "batch": {batch.ID}}
	if rejection != "" {
		q.Set("err", rejection)
	}
	msg := ""
	if len(batch.Tasks) > 0 {
		msg = "Uploading " + pluralFiles(len(batch.Tasks)) + "."
	}
	back(w, r, Prefix+"/gallery", q, nil, msg)
}

func (h *Handler) uploadFailed(w http.ResponseWriter, r *http.Request, category string, err error) {
	if wantsJSON(r) {
		writeJSONError(w, err)
		return
	}
	galleryBack(w, r, category, err, "")
}

func pluralFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return strconv.Itoa(n) + " files"
}

func (h *Handler) uploadStatus(w http.ResponseWriter, r *http.Request) {
	b, _ := h.deps.Uploads.Tracker().Get(r.PathValue("id"))
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) contentPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n := noticeFrom(r)
	sections, err := h.deps.Content.Sections(ctx)
	if err != nil {
		logFailure("load sections", err)
		n.Error = apperr.UserMessage(err)
	}
	logo, err := h.deps.Content.Logo(ctx)
	if err != nil {
		logFailure("load logo", err)
	}
	ui.Serve(w, r, http.StatusOK, contentPage(h.deps.SiteName, n, sections, logo))
}

func (h *Handler) addSection(w http.ResponseWriter, r *http.Request) {
	_, err := h.deps.Content.AddSection(r.Context())
	logFailure("add section", err)
	back(w, r, Prefix+"/content", nil, err, "Section added.")
}

func (h *Handler) updateSection(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Content.UpdateSection(r.Context(), docstore.Section{
		ID:    r.PathValue("id"),
		Title: strings.TrimSpace(r.FormValue("title")),
		Body:  r.FormValue("body"),
		Type:  r.FormValue("type"),
	})
	logFailure("update section", err)
	back(w, r, Prefix+"/content", nil, err, "Section saved.")
}

func (h *Handler) uploadLogo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLogoBytes+1<<20)
	file, hdr, err := r.FormFile("logo")
	if err != nil {
		back(w, r, Prefix+"/content", nil, apperr.Wrap(apperr.CodeInvalidArgument, "choose an image to upload", err), "")
		return
	}
	defer file.Close()
	if hdr.Size > maxLogoBytes {
		back(w, r, Prefix+"/content", nil, apperr.New(apperr.CodeFileTooLarge, "logo is too large"), "")
		return
	}
	if ct := hdr.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		back(w, r, Prefix+"/content", nil, apperr.New(apperr.CodeInvalidArgument, "logo must be an image"), "")
		return
	}
	_, err = h.deps.Content.UploadLogo(r.Context(), io.LimitReader(file, maxLogoBytes))
	logFailure("upload logo", err)
	back(w, r, Prefix+"/content", nil, err, "Logo updated.")
}

func (h *Handler) contactsPage(w http.ResponseWriter, r *http.Request) {
	n := noticeFrom(r)
	list, err := h.deps.Contacts.List(r.Context())
	if err != nil {
		logFailure("list contacts", err)
		n.Error = apperr.UserMessage(err)
	}
	ui.Serve(w, r, http.StatusOK, contactsPage(h.deps.SiteName, n, list))
}

func (h *Handler) setContactStatus(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Contacts.SetStatus(r.Context(), r.PathValue("id"), r.FormValue("status"))
	logFailure("set contact status", err)
	back(w, r, Prefix+"/contacts", nil, err, "Inquiry updated.")
}
