package discovery

import (
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/describer/internal/models"
)

const (
	// MinDimension is the smallest natural width or height worth describing
	MinDimension = 50
	// MaxIconDataURILength marks short data URIs as embedded icons
	MaxIconDataURILength = 1000
	// OffscreenMargin is how far outside the viewport an image may sit
	OffscreenMargin = 1000
)

// Exclusion explains why an element was filtered out
type Exclusion string

const (
	Included          Exclusion = ""
	ExcludedSmall     Exclusion = "too_small"
	ExcludedIcon      Exclusion = "data_uri_icon"
	ExcludedHidden    Exclusion = "hidden"
	ExcludedOffscreen Exclusion = "offscreen"
)

var genericAltPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(image|img|photo|photograph|picture|pic|graphic|icon|logo|banner|figure|thumbnail|untitled|null|undefined)[\s_-]*\d*$`),
	regexp.MustCompile(`(?i)^\.?(jpe?g|png|gif|webp|svg|bmp|tiff?|avif|ico)$`),
	regexp.MustCompile(`(?i)^[\w.-]+\.(jpe?g|png|gif|webp|svg|bmp|tiff?|avif|ico)$`),
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`(?i)^[a-f0-9]{8,}$`),
	regexp.MustCompile(`(?i)^(placeholder|spacer|divider|separator|blank|transparent)$`),
}

// IsGenericAlt reports whether alt text carries no real description
func IsGenericAlt(alt string) bool {
	alt = strings.TrimSpace(alt)
	for _, p := range genericAltPatterns {
		if p.MatchString(alt) {
			return true
		}
	}
	return false
}

// NeedsDescription is true iff alt text is absent or generic
func NeedsDescription(alt string, present bool) bool {
	if !present || strings.TrimSpace(alt) == "" {
		return true
	}
	return IsGenericAlt(alt)
}

// Check applies the exclusion rules in order and returns the first that matches
func Check(el Element, vp Viewport) Exclusion {
	w, h := el.NaturalSize()
	if w < MinDimension || h < MinDimension {
		return ExcludedSmall
	}

	src := el.Src()
	if strings.HasPrefix(src, "data:") && len(src) < MaxIconDataURILength {
		return ExcludedIcon
	}

	if el.Style().Hidden() {
		return ExcludedHidden
	}

	r := el.Rect()
	if r.Bottom < -OffscreenMargin || r.Right < -OffscreenMargin ||
		r.Top > vp.Height+OffscreenMargin || r.Left > vp.Width+OffscreenMargin {
		return ExcludedOffscreen
	}

	return Included
}

// Record builds the ImageRecord for an element
func Record(el Element, vp Viewport) models.ImageRecord {
	w, h := el.NaturalSize()
	alt, present := el.Alt()
	r := el.Rect()

	inView := r.Bottom > 0 && r.Right > 0 && r.Top < vp.Height && r.Left < vp.Width

	return models.ImageRecord{
		ID:               el.ID(),
		Src:              el.Src(),
		NaturalWidth:     w,
		NaturalHeight:    h,
		Rect:             r,
		Visible:          !el.Style().Hidden() && inView,
		Alt:              alt,
		HasAlt:           present,
		NeedsDescription: NeedsDescription(alt, present),
	}
}
