package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/describer/internal/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultViewport matches a common desktop window
var DefaultViewport = Viewport{Width: 1280, Height: 800}

// SizeProber finds the natural size of an image locator
type SizeProber interface {
	ProbeSize(ctx context.Context, src string) (int, int, error)
}

// HTMLOption configures an HTMLPage
type HTMLOption func(*HTMLPage)

// WithViewport overrides the default viewport
func WithViewport(vp Viewport) HTMLOption {
	return func(p *HTMLPage) {
		p.viewport = vp
	}
}

// WithSizeProber is used for images that declare no dimensions
func WithSizeProber(prober SizeProber) HTMLOption {
	return func(p *HTMLPage) {
		p.prober = prober
	}
}

// HTMLPage is a Page backed by a parsed HTML document. Layout is not
// computed: positions come from data-x/data-y hints and sizes from
// attributes or probing.
type HTMLPage struct {
	base     *url.URL
	viewport Viewport
	prober   SizeProber

	mu     sync.RWMutex
	root   *html.Node
	ids    map[*html.Node]string
	sizes  map[*html.Node][2]int
	nextID int

	subMu   sync.Mutex
	subs    map[int]func([]Element)
	nextSub int
}

// ParseHTML parses a document. baseURL resolves relative image locators
// and is the page origin for cross-origin checks.
func ParseHTML(ctx context.Context, r io.Reader, baseURL string, opts ...HTMLOption) (*HTMLPage, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := &HTMLPage{
		base:     base,
		viewport: DefaultViewport,
		root:     root,
		ids:      make(map[*html.Node]string),
		sizes:    make(map[*html.Node][2]int),
		subs:     make(map[int]func([]Element)),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.mu.Lock()
	nodes := collectImages(root)
	p.register(ctx, nodes)
	p.mu.Unlock()

	return p, nil
}

// Origin returns scheme://host of the page
func (p *HTMLPage) Origin() string {
	if p.base.Scheme == "" || p.base.Host == "" {
		return ""
	}
	return p.base.Scheme + "://" + p.base.Host
}

// Viewport implements Page
func (p *HTMLPage) Viewport() Viewport {
	return p.viewport
}

// Images implements Page
func (p *HTMLPage) Images() []Element {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot(collectImages(p.root))
}

// Subscribe implements Page
func (p *HTMLPage) Subscribe(fn func(inserted []Element)) func() {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn

	return func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		delete(p.subs, id)
	}
}

// Insert parses fragment and appends it to the element whose id attribute
// is parentID, or to <body> when parentID is empty. Subscribers receive
// every image in the inserted subtree.
func (p *HTMLPage) Insert(ctx context.Context, parentID, fragment string) error {
	p.mu.Lock()

	parent := findBody(p.root)
	if parentID != "" {
		parent = findByID(p.root, parentID)
	}
	if parent == nil {
		p.mu.Unlock()
		return fmt.Errorf("insertion point %q not found", parentID)
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to parse fragment: %w", err)
	}

	var inserted []*html.Node
	for _, n := range nodes {
		parent.AppendChild(n)
		inserted = append(inserted, collectImages(n)...)
	}
	p.register(ctx, inserted)
	elements := p.snapshot(inserted)
	p.mu.Unlock()

	if len(elements) == 0 {
		return nil
	}

	p.subMu.Lock()
	subs := make([]func([]Element), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.subMu.Unlock()

	slog.Debug("Images inserted", "count", len(elements), "subscribers", len(subs))
	for _, fn := range subs {
		fn(elements)
	}
	return nil
}

// register assigns ids and resolves natural sizes; p.mu must be held
func (p *HTMLPage) register(ctx context.Context, nodes []*html.Node) {
	for _, n := range nodes {
		if _, ok := p.ids[n]; ok {
			continue
		}
		id := attr(n, "id")
		if id == "" {
			p.nextID++
			id = fmt.Sprintf("img-%d", p.nextID)
		}
		p.ids[n] = id
		p.sizes[n] = p.naturalSize(ctx, n)
	}
}

func (p *HTMLPage) naturalSize(ctx context.Context, n *html.Node) [2]int {
	w, h := intAttr(n, "data-natural-width"), intAttr(n, "data-natural-height")
	if w == 0 || h == 0 {
		w, h = intAttr(n, "width"), intAttr(n, "height")
	}
	if (w == 0 || h == 0) && p.prober != nil {
		src := p.resolve(n)
		if src != "" {
			pw, ph, err := p.prober.ProbeSize(ctx, src)
			if err != nil {
				slog.Debug("Unable to probe image size", "src", src, "error", err)
			} else {
				w, h = pw, ph
			}
		}
	}
	return [2]int{w, h}
}

func (p *HTMLPage) snapshot(nodes []*html.Node) []Element {
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		size := p.sizes[n]
		alt, hasAlt := attrOK(n, "alt")
		elements = append(elements, htmlImage{
			id:     p.ids[n],
			src:    p.resolve(n),
			alt:    alt,
			hasAlt: hasAlt,
			width:  size[0],
			height: size[1],
			style:  computedStyle(n),
			rect:   layoutRect(n, size),
		})
	}
	return elements
}

func (p *HTMLPage) resolve(n *html.Node) string {
	src := strings.TrimSpace(attr(n, "src"))
	if src == "" {
		src = firstSrcset(attr(n, "srcset"))
	}
	if src == "" || strings.HasPrefix(src, "data:") {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return p.base.ResolveReference(ref).String()
}

type htmlImage struct {
	id     string
	src    string
	alt    string
	hasAlt bool
	width  int
	height int
	style  Style
	rect   models.Rect
}

func (i htmlImage) ID() string              { return i.id }
func (i htmlImage) Src() string             { return i.src }
func (i htmlImage) Alt() (string, bool)     { return i.alt, i.hasAlt }
func (i htmlImage) NaturalSize() (int, int) { return i.width, i.height }
func (i htmlImage) Style() Style            { return i.style }
func (i htmlImage) Rect() models.Rect       { return i.rect }

func collectImages(root *html.Node) []*html.Node {
	var images []*html.Node
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			images = append(images, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(root)
	return images
}

// computedStyle folds inline styles of n and its ancestors. display and
// visibility hide descendants, opacity multiplies.
func computedStyle(n *html.Node) Style {
	style := Style{Display: "inline", Visibility: "visible", Opacity: 1}
	visibilitySet := false

	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if _, ok := attrOK(cur, "hidden"); ok {
			style.Display = "none"
		}
		if attr(cur, "aria-hidden") == "true" && cur == n {
			style.Display = "none"
		}
		decls := parseInlineStyle(attr(cur, "style"))
		if v, ok := decls["display"]; ok && v == "none" {
			style.Display = "none"
		}
		if v, ok := decls["visibility"]; ok && !visibilitySet {
			style.Visibility = v
			visibilitySet = true
		}
		if v, ok := decls["opacity"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				style.Opacity *= f
			}
		}
	}
	return style
}

func parseInlineStyle(s string) map[string]string {
	decls := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		decls[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(v)
	}
	return decls
}

func layoutRect(n *html.Node, size [2]int) models.Rect {
	left := floatAttr(n, "data-x")
	top := floatAttr(n, "data-y")
	w := float64(intAttr(n, "width"))
	h := float64(intAttr(n, "height"))
	if w == 0 || h == 0 {
		w, h = float64(size[0]), float64(size[1])
	}
	return models.Rect{Top: top, Left: left, Bottom: top + h, Right: left + w}
}

func firstSrcset(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func findBody(root *html.Node) *html.Node {
	var body *html.Node
	var f func(*html.Node)
	f = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(root)
	return body
}

func findByID(root *html.Node, id string) *html.Node {
	if root.Type == html.ElementNode && attr(root, "id") == id {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func intAttr(n *html.Node, key string) int {
	v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(attr(n, key)), "px"))
	if err != nil {
		return 0
	}
	return v
}

func floatAttr(n *html.Node, key string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(attr(n, key)), 64)
	if err != nil {
		return 0
	}
	return v
}
