package storefront

import (
	"encoding/xml"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"
	imageNS   = "http://www.google.com/schemas/sitemap-image/1.1"
)

type sitemapImage struct {
	Loc string `xml:"image:loc"`
}

type sitemapURL struct {
	Loc     string         `xml:"loc"`
	LastMod string         `xml:"lastmod,omitempty"`
	Images  []sitemapImage `xml:"image:image"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	NS      string       `xml:"xmlns,attr"`
	ImageNS string       `xml:"xmlns:image,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// sitemap lists the home page with every gallery image and the logo, so
// crawlers and cache warmers can find the media the page references.
func (h *Handler) sitemap(w http.ResponseWriter, r *http.Request) {
	base := h.baseURL(r)
	ctx := r.Context()

	home := sitemapURL{Loc: base + "/"}
	var last time.Time
	if sections, err := h.content.Sections(ctx); err == nil {
		for _, s := range sections {
			if s.UpdatedAt.After(last) {
				last = s.UpdatedAt
			}
		}
	} else {
		log.Printf("storefront: sitemap sections: %v", err)
	}

	if logo, err := h.content.Logo(ctx); err == nil && logo != "" {
		home.Images = append(home.Images, sitemapImage{Loc: absolute(base, logo)})
	}
	if listing, err := h.gallery.Listing(ctx); err == nil {
		for _, img := range listing.Images {
			home.Images = append(home.Images, sitemapImage{Loc: absolute(base, img.URL)})
			if img.CreatedAt.After(last) {
				last = img.CreatedAt
			}
		}
	} else {
		log.Printf("storefront: sitemap gallery: %v", err)
	}
	if !last.IsZero() {
		home.LastMod = last.UTC().Format(time.RFC3339)
	}

	doc := urlSet{NS: sitemapNS, ImageNS: imageNS, URLs: []sitemapURL{home}}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = io.WriteString(w, xml.Header)
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		log.Printf("storefront: write sitemap: %v", err)
	}
}

func (h *Handler) robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "User-agent: *\nDisallow: /admin/\nDisallow: /api/\nSitemap: "+h.baseURL(r)+"/sitemap.xml\n")
}

func (h *Handler) baseURL(r *http.Request) string {
	if h.opts.PublicURL != "" {
		return strings.TrimRight(h.opts.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	host := r.Host
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		host = fh
	}
	return scheme + "://" + host
}

func absolute(base, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	b, err := url.Parse(base + "/")
	if err != nil {
		return ref
	}
	return b.ResolveReference(u).String()
}
