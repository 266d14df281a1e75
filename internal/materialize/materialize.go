// Package materialize turns an image locator into something a caption
// provider can consume without reading pixels across origins.
package materialize

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"
)

// Placeholder is a 1x1 transparent GIF used when pixels cannot be read
const Placeholder = "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

// ErrCrossOrigin is reported when pixel access would violate the page origin
var ErrCrossOrigin = errors.New("cross-origin image: pixel access is not permitted")

// cdnSiblings maps a page host suffix onto CDN hosts serving its assets
var cdnSiblings = map[string][]string{
	"wikipedia.org": {"upload.wikimedia.org"},
	"wikimedia.org": {"upload.wikimedia.org"},
	"github.com":    {"githubusercontent.com", "githubassets.com"},
	"youtube.com":   {"i.ytimg.com", "yt3.ggpht.com"},
	"twitter.com":   {"pbs.twimg.com"},
	"x.com":         {"pbs.twimg.com"},
	"reddit.com":    {"i.redd.it", "preview.redd.it", "redditstatic.com"},
	"facebook.com":  {"fbcdn.net"},
	"instagram.com": {"cdninstagram.com", "fbcdn.net"},
}

// Result is the transmittable representation of an image
type Result struct {
	Data        string
	CORSLimited bool
}

// Materializer decides whether an image may be passed through as-is
type Materializer struct {
	origin *url.URL
}

// New creates a materializer for a page served from pageOrigin. An empty
// origin treats every http(s) image as cross-origin.
func New(pageOrigin string) *Materializer {
	m := &Materializer{}
	if u, err := url.Parse(pageOrigin); err == nil && u.Host != "" {
		m.origin = u
	}
	return m
}

// Materialize never fails: cross-origin images become the placeholder
func (m *Materializer) Materialize(src string) Result {
	if strings.HasPrefix(src, "data:") {
		return Result{Data: src}
	}

	if m.SameOrigin(src) {
		return Result{Data: src}
	}

	slog.Debug("Cross-origin image, using placeholder", "src", src)
	return Result{Data: Placeholder, CORSLimited: true}
}

// SameOrigin reports whether src may be read with the page's privileges
func (m *Materializer) SameOrigin(src string) bool {
	if strings.HasPrefix(src, "data:") {
		return true
	}
	if m.origin == nil {
		return false
	}

	u, err := url.Parse(src)
	if err != nil || u.Host == "" {
		return false
	}

	if u.Scheme == m.origin.Scheme && u.Host == m.origin.Host {
		return true
	}

	pageHost := strings.ToLower(m.origin.Hostname())
	imgHost := strings.ToLower(u.Hostname())

	for site, cdns := range cdnSiblings {
		if !hostWithin(pageHost, site) {
			continue
		}
		for _, cdn := range cdns {
			if hostWithin(imgHost, cdn) {
				return true
			}
		}
	}

	return hostWithin(imgHost, pageHost) || hostWithin(pageHost, imgHost)
}

// IsPlaceholder reports whether data is the cross-origin placeholder
func IsPlaceholder(data string) bool {
	return data == Placeholder
}

func hostWithin(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
