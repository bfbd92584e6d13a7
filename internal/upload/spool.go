package upload

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
)

const maxFieldBytes = 4 << 10

// Form is a parsed upload request. File contents are spooled to disk and
// removed once the pipeline has stored them, so uploads can outlive the request.
type Form struct {
	Fields map[string]string
	Files  []File
}

// Value returns a trimmed form field.
func (f *Form) Value(name string) string {
	return strings.TrimSpace(f.Fields[name])
}

// Release removes every spooled file. Safe to call after the pipeline took ownership.
func (f *Form) Release() {
	for _, file := range f.Files {
		file.release()
	}
}

// ReadMultipart streams a multipart request into dir. File parts named
// fileField larger than maxFileSize are drained but not kept; they come back
// with their real size and fail validation.
func ReadMultipart(r *http.Request, dir, fileField string, maxFileSize int64) (*Form, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("read multipart: %w", err)
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	form := &Form{Fields: map[string]string{}}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			form.Release()
			return nil, fmt.Errorf("read multipart: %w", err)
		}
		if part.FileName() == "" {
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			part.Close()
			if err != nil {
				form.Release()
				return nil, err
			}
			form.Fields[part.FormName()] = string(b)
			continue
		}
		if part.FormName() != fileField {
			_, _ = io.Copy(io.Discard, part)
			part.Close()
			continue
		}
		f, err := spoolPart(part, dir, maxFileSize)
		part.Close()
		if err != nil {
			form.Release()
			return nil, err
		}
		form.Files = append(form.Files, f)
	}
}

func spoolPart(part *multipart.Part, dir string, maxFileSize int64) (File, error) {
	f := File{Name: part.FileName(), ContentType: part.Header.Get("Content-Type")}
	tmp, err := os.CreateTemp(dir, "spool-*")
	if err != nil {
		return File{}, fmt.Errorf("spool %s: %w", f.Name, err)
	}
	n, err := io.Copy(tmp, io.LimitReader(part, maxFileSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxFileSize {
		var rest int64
		rest, err = io.Copy(io.Discard, part)
		n += rest
		_ = os.Remove(tmp.Name())
		f.Size = n
		f.Open = func() (io.ReadCloser, error) {
			return nil, fmt.Errorf("%s was not kept: over the size limit", f.Name)
		}
		return f, err
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return File{}, fmt.Errorf("spool %s: %w", f.Name, err)
	}

	path := tmp.Name()
	f.Size = n
	f.Open = func() (io.ReadCloser, error) { return os.Open(path) }
	f.cleanup = func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("upload: remove spool file: %v", err)
		}
	}
	return f, nil
}
