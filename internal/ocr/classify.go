package ocr

import (
	"strings"
	"unicode"

	"github.com/lehigh-university-libraries/describer/internal/models"
)

// typeKeywords are matched as whole words of the locator and alt text, so
// "map" does not match "sitemap". Multi-word entries match consecutive words.
var typeKeywords = []struct {
	imageType models.ImageType
	keywords  []string
}{
	{models.ImageTypeChart, []string{"chart", "graph", "plot", "histogram", "pie", "bar chart", "statistics", "stats", "trend"}},
	{models.ImageTypeDiagram, []string{"diagram", "flowchart", "schema", "architecture", "infographic", "map", "workflow", "uml"}},
	{models.ImageTypeScreenshot, []string{"screenshot", "screen shot", "capture", "snapshot", "ui", "interface"}},
	{models.ImageTypePhoto, []string{"photo", "photograph", "img", "dsc", "pexels", "unsplash", "portrait", "landscape", "camera", "jpg", "jpeg"}},
}

// ClassifyImageType guesses the type from the locator and alt text, falling
// back to diagram for images carrying a lot of confident text
func ClassifyImageType(src, alt, text string, confidence float64) models.ImageType {
	// Only the header of a data URL carries words; the payload is noise
	if strings.HasPrefix(src, "data:") {
		if idx := strings.IndexByte(src, ','); idx != -1 {
			src = src[:idx]
		}
	}
	haystack := " " + strings.Join(words(src+" "+alt), " ") + " "
	for _, entry := range typeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(haystack, " "+kw+" ") || strings.Contains(haystack, " "+kw+"s ") {
				return entry.imageType
			}
		}
	}

	if len(text) > 50 && confidence > 0.6 {
		return models.ImageTypeDiagram
	}

	return models.ImageTypeUnknown
}

// words splits s into lower-case words at punctuation, path separators,
// letter/digit changes and camelCase humps: "SalesChart_2024.png" yields
// sales, chart, 2024, png
func words(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	var prev rune
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case len(cur) > 0 && unicode.IsDigit(r) != unicode.IsDigit(prev):
			flush()
			cur = append(cur, r)
		case len(cur) > 0 && unicode.IsUpper(r) && unicode.IsLower(prev):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return out
}

// ClassifyComplexity buckets an image by text volume and pixel area
func ClassifyComplexity(text string, width, height int) models.Complexity {
	textLen := len(text)
	words := len(strings.Fields(text))
	area := width * height

	switch {
	case textLen > 200 || words > 40 || area > 800_000:
		return models.ComplexityComplex
	case textLen > 50 || words > 10 || area > 200_000:
		return models.ComplexityModerate
	default:
		return models.ComplexitySimple
	}
}

// HasText is true iff something was extracted with more than 30% confidence
func HasText(text string, confidence float64) bool {
	return len(text) > 0 && confidence > 0.3
}

func normalizeText(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
