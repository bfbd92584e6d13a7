// Package ui holds the small HTML building blocks shared by the storefront
// and the admin panel. Pages are templ components rendered through a Writer.
package ui

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
)

// Writer accumulates HTML output and remembers the first write error.
type Writer struct {
	ctx context.Context
	w   io.Writer
	err error
}

// NewWriter wraps w for component rendering.
func NewWriter(ctx context.Context, w io.Writer) *Writer {
	return &Writer{ctx: ctx, w: w}
}

// Raw writes trusted markup.
func (w *Writer) Raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

// Rawf writes trusted markup built with fmt. Arguments are escaped.
func (w *Writer) Rawf(format string, args ...any) {
	escaped := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			escaped[i] = templ.EscapeString(v)
		case fmt.Stringer:
			escaped[i] = templ.EscapeString(v.String())
		default:
			escaped[i] = v
		}
	}
	w.Raw(fmt.Sprintf(format, escaped...))
}

// Text writes escaped text.
func (w *Writer) Text(s string) {
	w.Raw(templ.EscapeString(s))
}

// Attr writes ` name="value"` with value escaped.
func (w *Writer) Attr(name, value string) {
	w.Raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

// Href writes an href attribute, replacing unsafe URLs.
func (w *Writer) Href(url string) {
	w.Attr("href", string(templ.URL(url)))
}

// Src writes a src attribute, replacing unsafe URLs.
func (w *Writer) Src(url string) {
	w.Attr("src", string(templ.URL(url)))
}

// Render writes a nested component.
func (w *Writer) Render(c templ.Component) {
	if w.err != nil || c == nil {
		return
	}
	w.err = c.Render(w.ctx, w.w)
}

// Err returns the first error seen.
func (w *Writer) Err() error { return w.err }

// Component adapts a render function to templ.Component.
func Component(fn func(w *Writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := NewWriter(ctx, out)
		fn(w)
		return w.Err()
	})
}

// Document wraps body in the shared HTML shell.
func Document(title, description string, body templ.Component) templ.Component {
	return Component(func(w *Writer) {
		w.Raw(`<!doctype html><html lang="en"><head><meta charset="utf-8">`)
		w.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		w.Raw("<title>")
		w.Text(title)
		w.Raw("</title>")
		if description != "" {
			w.Raw(`<meta name="description"`)
			w.Attr("content", description)
			w.Raw(">")
		}
		w.Raw(`<link rel="manifest" href="/manifest.json"><link rel="icon" href="/favicon.ico">`)
		w.Raw(`<link rel="stylesheet" href="/static/site.css"><script src="/static/app.js" defer></script>`)
		w.Raw("</head><body>")
		w.Render(body)
		w.Raw("</body></html>")
	})
}

// Serve renders c with status. Render errors after the header is sent are logged by templ.
func Serve(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}
