// Package upload runs batched gallery uploads: validation, image
// compression, concurrent storage and per-file status tracking.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// DefaultMaxFileSize is the per-file ceiling.
const DefaultMaxFileSize = 50 << 20

// File is one user-selected file.
type File struct {
	Name        string
	ContentType string
	// Size is the declared byte size; <= 0 when unknown.
	Size int64
	Open func() (io.ReadCloser, error)

	cleanup func()
}

func (f File) release() {
	if f.cleanup != nil {
		f.cleanup()
	}
}

// FromMultipart adapts a multipart upload.
func FromMultipart(fh *multipart.FileHeader) File {
	return File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromBytes wraps an in-memory file.
func FromBytes(name, contentType string, b []byte) File {
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(b)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		},
	}
}

// IsImage reports whether the declared media type is an image.
func (f File) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(f.ContentType), "image/")
}

// Rejection names a file refused before upload.
type Rejection struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Validate splits files into accepted and rejected by the size ceiling.
func Validate(files []File, max int64) (accepted []File, rejected []Rejection) {
	if max <= 0 {
		max = DefaultMaxFileSize
	}
	for _, f := range files {
		if f.Size > max {
			rejected = append(rejected, Rejection{Name: f.Name, Size: f.Size})
			continue
		}
		accepted = append(accepted, f)
	}
	return accepted, rejected
}

// RejectionMessage is the blocking notice listing refused files.
func RejectionMessage(rejected []Rejection, max int64) string {
	if len(rejected) == 0 {
		return ""
	}
	if max <= 0 {
		max = DefaultMaxFileSize
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The following files exceed the %s limit and were not uploaded:", humanize.IBytes(uint64(max)))
	for _, r := range rejected {
		fmt.Fprintf(&b, "\n%s (%s)", r.Name, humanize.IBytes(uint64(r.Size)))
	}
	return b.String()
}

// StoragePath builds gallery/<category>/<unixMillis>_<random>_<base name>.
func StoragePath(category, name string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = "file"
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("gallery/%s/%d_%s_%s", category, now.UnixMilli(), token, base)
}
