package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ntes/internal/auth"
	"ntes/internal/backend"
	"ntes/internal/blobstore"
	"ntes/internal/contact"
	"ntes/internal/content"
	"ntes/internal/docstore"
	"ntes/internal/gallery"
	"ntes/internal/upload"
)

type fixture struct {
	srv      *httptest.Server
	client   *http.Client
	docs     *docstore.Store
	gallery  *gallery.Service
	contacts *contact.Service
}

func newFixture(t *testing.T) *fixture {
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
	authSvc, err := auth.New(docs, auth.Options{
		Secret:       "test-secret",
		DemoEmail:    "demo@ntes.co.za",
		DemoPassword: "demo123",
		DemoEnabled:  true,
		AllowSignup:  true,
		BcryptCost:   bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	gal := gallery.New(docs, blobs, gallery.NewMemoryCache(time.Minute))
	f := &fixture{docs: docs, gallery: gal, contacts: contact.New(docs)}
	h := New(Deps{
		Auth:     authSvc,
		Gallery:  gal,
		Content:  content.New(docs, blobs),
		Contacts: f.contacts,
		Uploads:  upload.NewPipeline(gal, blobs, nil, upload.Options{SettleDelay: 10 * time.Millisecond}),
		Probe:    &backend.Client{Docs: docs, Blobs: blobs, Auth: authSvc},
		SpoolDir: t.TempDir(),
		SiteName: "NTES",
	})
	f.srv = httptest.NewServer(h.Routes(nil))
	t.Cleanup(f.srv.Close)

	jar, _ := cookiejar.New(nil)
	f.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader, hdr map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, body)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func (f *fixture) postForm(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	return f.do(t, http.MethodPost, path, strings.NewReader(form.Encode()), map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
}

func (f *fixture) signIn(t *testing.T) {
	t.Helper()
	resp, _ := f.postForm(t, Prefix+"/demo", url.Values{})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != Prefix+"/" {
		t.Fatalf("demo login = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestRequiresSession(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, Prefix+"/gallery", nil, map[string]string{"Accept": "text/html"})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != LoginPath+"?next=%2Fadmin%2Fgallery" {
		t.Fatalf("page = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	resp, _ = f.do(t, http.MethodGet, uploadsAPI+"x", nil, map[string]string{"Accept": "application/json"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("api = %d", resp.StatusCode)
	}
}

func TestLoginPageAndErrors(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, LoginPath, nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "demo@ntes.co.za") || !strings.Contains(body, "/admin/signup") {
		t.Fatalf("login page = %d", resp.StatusCode)
	}

	resp, body = f.postForm(t, LoginPath, url.Values{"email": {"nobody@ntes.co.za"}, "password": {"secret1"}})
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "No admin account found. Please create an account first.") {
		t.Fatalf("unknown user = %d", resp.StatusCode)
	}
	resp, body = f.postForm(t, LoginPath, url.Values{"email": {"not-an-email"}, "password": {"secret1"}})
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "Invalid email address.") {
		t.Fatalf("bad email = %d", resp.StatusCode)
	}

	f.signIn(t)
	f.client.Jar, _ = cookiejar.New(nil)
	resp, body = f.postForm(t, LoginPath, url.Values{"email": {"demo@ntes.co.za"}, "password": {"wrong-pass"}})
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(body, "Incorrect password. Please try again.") {
		t.Fatalf("wrong password = %d", resp.StatusCode)
	}
	resp, _ = f.postForm(t, LoginPath, url.Values{"email": {"DEMO@ntes.co.za"}, "password": {"demo123"}, "next": {"/admin/content"}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/admin/content" {
		t.Fatalf("login = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestSignupAndLogout(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.postForm(t, Prefix+"/signup", url.Values{"email": {"owner@ntes.co.za"}, "password": {"s3cret!"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("signup = %d", resp.StatusCode)
	}
	resp, body := f.do(t, http.MethodGet, Prefix+"/", nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "owner@ntes.co.za") || !strings.Contains(body, "Connected") {
		t.Fatalf("dashboard = %d", resp.StatusCode)
	}

	resp, body = f.postForm(t, Prefix+"/signup", url.Values{"email": {"owner@ntes.co.za"}, "password": {"s3cret!"}})
	if resp.StatusCode != http.StatusConflict || !strings.Contains(body, "Admin account already exists") {
		t.Fatalf("duplicate signup = %d", resp.StatusCode)
	}

	resp, _ = f.postForm(t, Prefix+"/logout", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("logout = %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, Prefix+"/", nil, map[string]string{"Accept": "text/html"})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("after logout = %d", resp.StatusCode)
	}
}

func TestCategoryManagement(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	resp, _ := f.postForm(t, Prefix+"/gallery/categories", url.Values{"name": {"Business Cards"}})
	if resp.StatusCode != http.StatusSeeOther || !strings.Contains(resp.Header.Get("Location"), "category=business-cards") {
		t.Fatalf("create = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	resp, _ = f.postForm(t, Prefix+"/gallery/categories", url.Values{"name": {"business cards"}})
	loc, _ := url.Parse(resp.Header.Get("Location"))
	if loc.Query().Get("err") != "A category with that name already exists." {
		t.Fatalf("duplicate = %q", resp.Header.Get("Location"))
	}

	f.postForm(t, Prefix+"/gallery/categories/business-cards/rename", url.Values{"name": {"Cards & Stationery"}})
	_, body := f.do(t, http.MethodGet, Prefix+"/gallery", nil, nil)
	if !strings.Contains(body, "Cards &amp; Stationery") {
		t.Fatal("renamed category not listed")
	}

	resp, _ = f.postForm(t, Prefix+"/gallery/categories/business-cards/delete", nil)
	loc, _ = url.Parse(resp.Header.Get("Location"))
	if loc.Query().Get("msg") != "Category deleted." {
		t.Fatalf("delete = %q", resp.Header.Get("Location"))
	}
}

func uploadBody(t *testing.T, category string, files map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("category", category)
	for name, data := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = io.WriteString(fw, data)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadBatchLifecycle(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	body, ct := uploadBody(t, "Flyers", map[string]string{"one.txt": "first", "two.txt": "second"})
	resp, raw := f.do(t, http.MethodPost, Prefix+"/gallery/upload", body, map[string]string{"Content-Type": ct, "Accept": "application/json"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload = %d %s", resp.StatusCode, raw)
	}
	var batch upload.Batch
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if batch.ID == "" || batch.Category != "flyers" || len(batch.Tasks) != 2 {
		t.Fatalf("batch = %+v", batch)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, raw = f.do(t, http.MethodGet, uploadsAPI+batch.ID, nil, nil)
		var status upload.Batch
		if err := json.Unmarshal([]byte(raw), &status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if status.Cleared {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch never cleared: %s", raw)
		}
		time.Sleep(10 * time.Millisecond)
	}

	images, err := f.gallery.Images(context.Background(), "flyers")
	if err != nil || len(images) != 2 {
		t.Fatalf("images = %+v, %v", images, err)
	}
	_, page := f.do(t, http.MethodGet, Prefix+"/gallery?category=flyers", nil, nil)
	if !strings.Contains(page, images[0].URL) {
		t.Fatal("uploaded image not shown")
	}

	resp, _ = f.do(t, http.MethodPost, Prefix+"/gallery/images/"+images[0].ID+"/delete", nil, map[string]string{"Accept": "application/json"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete image = %d", resp.StatusCode)
	}
	left, _ := f.gallery.Images(context.Background(), "flyers")
	if len(left) != 1 {
		t.Fatalf("images after delete = %d", len(left))
	}
}

func TestUploadRequiresCategory(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	body, ct := uploadBody(t, "", map[string]string{"a.jpg": "x"})
	resp, _ := f.do(t, http.MethodPost, Prefix+"/gallery/upload", body, map[string]string{"Content-Type": ct})
	loc, _ := url.Parse(resp.Header.Get("Location"))
	if resp.StatusCode != http.StatusSeeOther || loc.Query().Get("err") != "Category is required." {
		t.Fatalf("upload = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestContentManagement(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	_, body := f.do(t, http.MethodGet, Prefix+"/content", nil, nil)
	if !strings.Contains(body, "Hero Title") || !strings.Contains(body, "No logo uploaded.") {
		t.Fatal("default sections not listed")
	}
	f.postForm(t, Prefix+"/content", nil)
	sections, err := f.docs.ListSections(context.Background())
	if err != nil || len(sections) != 4 || sections[3].Title != content.NewSectionTitle {
		t.Fatalf("sections = %+v, %v", sections, err)
	}
	resp, _ := f.postForm(t, Prefix+"/content/"+sections[3].ID, url.Values{"title": {"Opening Hours"}, "body": {"Mon-Fri 8-5"}, "type": {docstore.SectionText}})
	loc, _ := url.Parse(resp.Header.Get("Location"))
	if loc.Query().Get("msg") != "Section saved." {
		t.Fatalf("update = %q", resp.Header.Get("Location"))
	}
	sections, _ = f.docs.ListSections(context.Background())
	if sections[3].Title != "Opening Hours" || sections[3].Body != "Mon-Fri 8-5" {
		t.Fatalf("section = %+v", sections[3])
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="logo"; filename="logo.png"`},
		"Content-Type":        {"image/png"},
	})
	_, _ = fw.Write([]byte("png-bytes"))
	_ = mw.Close()
	resp, _ = f.do(t, http.MethodPost, Prefix+"/logo", &buf, map[string]string{"Content-Type": mw.FormDataContentType()})
	loc, _ = url.Parse(resp.Header.Get("Location"))
	if loc.Query().Get("msg") != "Logo updated." {
		t.Fatalf("logo = %q", resp.Header.Get("Location"))
	}
	_, body = f.do(t, http.MethodGet, Prefix+"/content", nil, nil)
	if !strings.Contains(body, `src="/media/settings/logo?v=`) {
		t.Fatal("logo not shown")
	}
}

func TestContactsPage(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	c, err := f.contacts.Submit(context.Background(), contact.Form{Name: "Naledi", Email: "naledi@example.com", Message: "Need a CV"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, body := f.do(t, http.MethodGet, Prefix+"/contacts", nil, nil)
	if !strings.Contains(body, "Naledi") || !strings.Contains(body, "Need a CV") {
		t.Fatal("inquiry not listed")
	}
	_, body = f.do(t, http.MethodGet, Prefix+"/", nil, nil)
	if !strings.Contains(body, "<h3>1</h3><p><a href=\"/admin/contacts\">New inquiries") {
		t.Fatal("new inquiry count missing")
	}
	f.postForm(t, Prefix+"/contacts/"+c.ID+"/status", url.Values{"status": {"replied"}})
	list, _ := f.contacts.List(context.Background())
	if list[0].Status != "replied" {
		t.Fatalf("status = %q", list[0].Status)
	}
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                     "/admin/",
		"/admin/gallery":       "/admin/gallery",
		"https://evil.example": "/admin/",
		"//evil.example/admin": "/admin/",
		"/admin/\\evil":        "/admin/",
		"/":                    "/admin/",
	}
	for in, want := range tests {
		if got := safeNext(in); got != want {
			t.Fatalf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}
