// Package blobstore is a filesystem object store addressed by slash-separated paths.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"ntes/internal/apperr"
)

// ProgressFunc receives the running count of bytes written.
type ProgressFunc func(written int64)

// Object describes a stored blob.
type Object struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Store keeps objects under a root directory and publishes them under a URL prefix.
type Store struct {
	root   string
	prefix string
}

// Open creates root if missing.
func Open(root, mediaPrefix string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("blob root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	if mediaPrefix == "" {
		mediaPrefix = "/media/"
	}
	return &Store{root: filepath.Clean(root), prefix: mediaPrefix}, nil
}

// Root returns the directory holding objects.
func (s *Store) Root() string { return s.root }

// CleanPath normalizes an object path and rejects traversal outside the root.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "", apperr.New(apperr.CodeInvalidArgument, "object path is required")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", apperr.New(apperr.CodeInvalidArgument, "object path escapes root")
		}
	}
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if clean == "" {
		return "", apperr.New(apperr.CodeInvalidArgument, "object path is required")
	}
	return clean, nil
}

func (s *Store) file(p string) (string, string, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return "", "", err
	}
	return clean, filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes r to p atomically, reporting bytes as they are copied.
func (s *Store) Put(ctx context.Context, p string, r io.Reader, onProgress ProgressFunc) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	clean, full, err := s.file(p)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, fmt.Errorf("create object dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	n, err := io.Copy(tmp, &progressReader{ctx: ctx, r: r, fn: onProgress})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Object{}, fmt.Errorf("write object %s: %w", clean, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return Object{}, fmt.Errorf("commit object %s: %w", clean, err)
	}
	return Object{Path: clean, Size: n, ModTime: time.Now()}, nil
}

// Delete removes p. Removing a missing object succeeds.
func (s *Store) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, full, err := s.file(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Stat returns object metadata, or CodeNotFound.
func (s *Store) Stat(ctx context.Context, p string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	clean, full, err := s.file(p)
	if err != nil {
		return Object{}, err
	}
	fi, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return Object{}, apperr.WithMetadata(apperr.CodeNotFound, "object not found", map[string]string{"Path": clean})
	}
	if err != nil {
		return Object{}, fmt.Errorf("stat object: %w", err)
	}
	return Object{Path: clean, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Open returns a reader for p.
func (s *Store) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, full, err := s.file(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.WithMetadata(apperr.CodeNotFound, "object not found", map[string]string{"Path": clean})
	}
	return f, err
}

// URL is the public address of p.
func (s *Store) URL(p string) string {
	clean, err := CleanPath(p)
	if err != nil {
		return ""
	}
	return s.prefix + clean
}

// Walk visits every object under prefix. Temp files from in-flight puts are skipped.
func (s *Store) Walk(ctx context.Context, prefix string, fn func(Object) error) error {
	dir := s.root
	if prefix != "" {
		clean, err := CleanPath(prefix)
		if err != nil {
			return err
		}
		dir = filepath.Join(s.root, filepath.FromSlash(clean))
	}
	err := filepath.WalkDir(dir, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, full)
		if err != nil {
			return err
		}
		return fn(Object{Path: filepath.ToSlash(rel), Size: info.Size(), ModTime: info.ModTime()})
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Handler serves objects under the media prefix.
func (s *Store) Handler() http.Handler {
	files := http.FileServer(noDirFS{http.Dir(s.root)})
	return http.StripPrefix(strings.TrimSuffix(s.prefix, "/"), files)
}

type noDirFS struct{ fs http.FileSystem }

func (n noDirFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

type progressReader struct {
	ctx  context.Context
	r    io.Reader
	fn   ProgressFunc
	read int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.fn != nil {
			p.fn(p.read)
		}
	}
	return n, err
}
