// Package discovery finds images on a page that are worth describing.
package discovery

import "github.com/lehigh-university-libraries/describer/internal/models"

// Style is the subset of computed style the eligibility filter looks at
type Style struct {
	Display    string
	Visibility string
	Opacity    float64
}

// Hidden reports whether the style removes the element from view
func (s Style) Hidden() bool {
	return s.Display == "none" || s.Visibility == "hidden" || s.Visibility == "collapse" || s.Opacity <= 0
}

// Viewport is the visible area of the page in CSS pixels
type Viewport struct {
	Width  float64
	Height float64
}

// Element is an image element on a page
type Element interface {
	ID() string
	Src() string
	// Alt returns the alt text and whether the attribute is present at all
	Alt() (string, bool)
	// NaturalSize returns the intrinsic dimensions, zero when not loaded
	NaturalSize() (int, int)
	Style() Style
	Rect() models.Rect
}

// Page is the element tree images are discovered in
type Page interface {
	Images() []Element
	Viewport() Viewport
	// Origin is scheme://host of the document, used for cross-origin checks
	Origin() string
	// Subscribe registers fn to be called with the images contained in each
	// inserted subtree. The returned func removes the subscription.
	Subscribe(fn func(inserted []Element)) (unsubscribe func())
}
