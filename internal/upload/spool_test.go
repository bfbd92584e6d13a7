package upload

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func multipartRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		_, _ = fw.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/admin/gallery/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestReadMultipartSpoolsFiles(t *testing.T) {
	dir := t.TempDir()
	req := multipartRequest(t,
		map[string]string{"category": "  Flyers "},
		map[string][]byte{"a.jpg": []byte("hello"), "big.jpg": bytes.Repeat([]byte("x"), 64)},
	)
	form, err := ReadMultipart(req, dir, "files", 32)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if form.Value("category") != "Flyers" {
		t.Fatalf("category = %q", form.Value("category"))
	}
	if len(form.Files) != 2 {
		t.Fatalf("files = %+v", form.Files)
	}

	byName := map[string]File{}
	for _, f := range form.Files {
		byName[f.Name] = f
	}
	small := byName["a.jpg"]
	rc, err := small.Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if string(b) != "hello" || small.Size != 5 {
		t.Fatalf("spooled = %q size %d", b, small.Size)
	}
	if big := byName["big.jpg"]; big.Size != 64 {
		t.Fatalf("oversized file size = %d", big.Size)
	}
	_, rejected := Validate(form.Files, 32)
	if len(rejected) != 1 || rejected[0].Name != "big.jpg" {
		t.Fatalf("rejected = %+v", rejected)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("spool dir has %d files, want 1", len(entries))
	}
	form.Release()
	entries, _ = os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("spool dir has %d files after release", len(entries))
	}
}

func TestReadMultipartRejectsPlainBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("x=1")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if _, err := ReadMultipart(req, t.TempDir(), "files", 0); err == nil {
		t.Fatal("expected error")
	}
}
