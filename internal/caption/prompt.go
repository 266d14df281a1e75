package caption

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/describer/internal/models"
)

// ShortCaptionLimit is the maximum length of a short caption, in characters
const ShortCaptionLimit = 125

var (
	shortPattern = regexp.MustCompile(`(?is)SHORT:\s*(.*?)\s*(?:LONG:|$)`)
	longPattern  = regexp.MustCompile(`(?is)LONG:\s*(.*)$`)
)

func detailLevel(c models.Complexity) string {
	switch c {
	case models.ComplexityComplex:
		return "a detailed paragraph"
	case models.ComplexityModerate:
		return "2-3 sentences"
	default:
		return "1 sentence"
	}
}

func maxTokens(c models.Complexity) int {
	switch c {
	case models.ComplexityComplex:
		return 500
	case models.ComplexityModerate:
		return 300
	default:
		return 150
	}
}

// BuildPrompt generates the captioning instruction for an image
func BuildPrompt(ocr *models.OCRResult) string {
	imageType := models.ImageTypeUnknown
	complexity := models.ComplexitySimple
	text := ""
	if ocr != nil {
		if ocr.ImageType != "" {
			imageType = ocr.ImageType
		}
		if ocr.Complexity != "" {
			complexity = ocr.Complexity
		}
		if ocr.HasText {
			text = ocr.Text
		}
	}

	var sb strings.Builder
	sb.WriteString("You are writing alternative text for a screen reader user. ")
	fmt.Fprintf(&sb, "The image appears to be a %s. ", imageType)
	if text != "" {
		fmt.Fprintf(&sb, "Text detected in the image: %q. Use it where it helps describe the image. ", text)
	}
	fmt.Fprintf(&sb, "Describe the image in %s for the long description.\n\n", detailLevel(complexity))
	fmt.Fprintf(&sb, "Respond in exactly this format:\nSHORT: <concise alt text under %d characters>\nLONG: <the longer description>", ShortCaptionLimit)
	return sb.String()
}

// ParseCaption extracts the short and long halves of a provider response.
// Without markers the whole response is used for both, the short form truncated.
func ParseCaption(response string) (string, string) {
	response = strings.TrimSpace(response)

	var short, long string
	if m := shortPattern.FindStringSubmatch(response); m != nil {
		short = strings.TrimSpace(m[1])
	}
	if m := longPattern.FindStringSubmatch(response); m != nil {
		long = strings.TrimSpace(m[1])
	}

	switch {
	case short == "" && long == "":
		short, long = response, response
	case short == "":
		short = long
	case long == "":
		long = short
	}

	return Truncate(short, ShortCaptionLimit), long
}

// Truncate shortens s to at most limit characters, cutting at a word boundary
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	const ellipsis = "..."
	cut := string(runes[:limit-len(ellipsis)])
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,;:.") + ellipsis
}
