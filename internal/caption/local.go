package caption

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/describer/internal/models"
)

const (
	LocalModel = "local-heuristic"

	// CORSLimitedConfidence caps local captions of cross-origin images
	CORSLimitedConfidence = 0.4

	confidenceGeneric   = 0.3
	confidenceOCR       = 0.6
	confidenceOCRStrong = 0.7
)

// CORSNotice is appended to local descriptions of images whose pixels could
// not be read
const CORSNotice = "A full visual description is unavailable because the image is served from another domain."

type description struct {
	short string
	long  string
}

var typeDescriptions = map[models.ImageType]description{
	models.ImageTypePhoto: {
		short: "Photograph",
		long:  "A photograph. No further visual details could be determined automatically.",
	},
	models.ImageTypeDiagram: {
		short: "Diagram",
		long:  "A diagram illustrating a process, structure, or relationship.",
	},
	models.ImageTypeChart: {
		short: "Chart or graph",
		long:  "A chart or graph presenting data. The underlying values could not be read automatically.",
	},
	models.ImageTypeScreenshot: {
		short: "Screenshot",
		long:  "A screenshot of a software interface or web page.",
	},
	models.ImageTypeUnknown: {
		short: "Image",
		long:  "An image whose content could not be determined automatically.",
	},
}

// Local builds a caption without any remote provider. OCR text, when present,
// is quoted; otherwise a description is chosen by image type.
func Local(ocr *models.OCRResult, corsLimited bool) *models.CaptionResult {
	imageType := models.ImageTypeUnknown
	if ocr != nil && ocr.ImageType != "" {
		imageType = ocr.ImageType
	}
	desc, ok := typeDescriptions[imageType]
	if !ok {
		desc = typeDescriptions[models.ImageTypeUnknown]
	}

	result := &models.CaptionResult{
		Model:      LocalModel,
		Provenance: models.ProvenanceLocal,
	}

	text := ""
	if ocr != nil && ocr.HasText {
		text = strings.Join(strings.Fields(ocr.Text), " ")
	}

	if text != "" {
		result.ShortCaption = Truncate(fmt.Sprintf("%s with text: %q", desc.short, text), ShortCaptionLimit)
		result.LongDescription = fmt.Sprintf("%s It contains the text: %q.", desc.long, text)
		result.Confidence = confidenceOCR
		if ocr.Confidence > 0.8 {
			result.Confidence = confidenceOCRStrong
		}
	} else {
		result.ShortCaption = desc.short
		result.LongDescription = desc.long
		result.Confidence = confidenceGeneric
	}

	if corsLimited {
		result.LongDescription += " " + CORSNotice
		result.Confidence = CORSLimitedConfidence
		result.CORSLimited = true
	}

	return result
}
