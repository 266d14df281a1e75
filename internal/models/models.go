package models

import "time"

// ImageType is the coarse category an image is classified into
type ImageType string

const (
	ImageTypePhoto      ImageType = "photo"
	ImageTypeDiagram    ImageType = "diagram"
	ImageTypeChart      ImageType = "chart"
	ImageTypeScreenshot ImageType = "screenshot"
	ImageTypeUnknown    ImageType = "unknown"
)

// Complexity drives how much detail a caption request asks for
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Provenance records which generation path produced a caption
type Provenance string

const (
	ProvenanceProviderA Provenance = "provider-a"
	ProvenanceProviderB Provenance = "provider-b"
	ProvenanceProviderC Provenance = "provider-c"
	ProvenanceLocal     Provenance = "local"
)

// Rect is a position relative to the viewport, in CSS pixels
type Rect struct {
	Top    float64 `json:"top" yaml:"top"`
	Left   float64 `json:"left" yaml:"left"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
	Right  float64 `json:"right" yaml:"right"`
}

// ImageRecord represents an image discovered on a page
type ImageRecord struct {
	ID               string `json:"id" yaml:"id"`
	Src              string `json:"src" yaml:"src"`
	Origin           string `json:"origin,omitempty" yaml:"origin,omitempty"`
	NaturalWidth     int    `json:"natural_width" yaml:"naturalwidth"`
	NaturalHeight    int    `json:"natural_height" yaml:"naturalheight"`
	Rect             Rect   `json:"rect" yaml:"rect"`
	Visible          bool   `json:"visible" yaml:"visible"`
	Alt              string `json:"alt,omitempty" yaml:"alt,omitempty"`
	HasAlt           bool   `json:"has_alt" yaml:"hasalt"`
	NeedsDescription bool   `json:"needs_description" yaml:"needsdescription"`
}

// Loaded reports whether the record carries usable natural dimensions
func (r ImageRecord) Loaded() bool {
	return r.NaturalWidth > 0 && r.NaturalHeight > 0
}

// WordBox is a single recognized word and its bounding box in image pixels
type WordBox struct {
	Text       string  `json:"text" yaml:"text"`
	X          int     `json:"x" yaml:"x"`
	Y          int     `json:"y" yaml:"y"`
	Width      int     `json:"width" yaml:"width"`
	Height     int     `json:"height" yaml:"height"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// OCRResult holds text extracted from an image
type OCRResult struct {
	Text           string        `json:"text" yaml:"text"`
	Confidence     float64       `json:"confidence" yaml:"confidence"`
	Words          []WordBox     `json:"words,omitempty" yaml:"words,omitempty"`
	HasText        bool          `json:"has_text" yaml:"hastext"`
	ImageType      ImageType     `json:"image_type" yaml:"imagetype"`
	Complexity     Complexity    `json:"complexity" yaml:"complexity"`
	ProcessingTime time.Duration `json:"processing_time" yaml:"processingtime"`
}

// CaptionResult holds a generated caption and where it came from
type CaptionResult struct {
	ShortCaption    string        `json:"short_caption" yaml:"shortcaption"`
	LongDescription string        `json:"long_description" yaml:"longdescription"`
	Confidence      float64       `json:"confidence" yaml:"confidence"`
	Model           string        `json:"model" yaml:"model"`
	Provenance      Provenance    `json:"provenance" yaml:"provenance"`
	CORSLimited     bool          `json:"cors_limited,omitempty" yaml:"corslimited,omitempty"`
	ProcessingTime  time.Duration `json:"processing_time" yaml:"processingtime"`
}

// ImageAnalysis is the complete, cacheable result for one image
type ImageAnalysis struct {
	Image          ImageRecord    `json:"image" yaml:"image"`
	OCR            *OCRResult     `json:"ocr,omitempty" yaml:"ocr,omitempty"`
	Caption        *CaptionResult `json:"caption,omitempty" yaml:"caption,omitempty"`
	ProcessingTime time.Duration  `json:"processing_time" yaml:"processingtime"`
	Error          string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// BulkProgress is reported after every item of a bulk run. Errors counts
// items whose analysis carries an error, including recovered failures.
type BulkProgress struct {
	Total     int             `json:"total"`
	Completed int             `json:"completed"`
	Current   string          `json:"current"`
	Errors    int             `json:"errors"`
	Results   []ImageAnalysis `json:"results"`
}

// Done reports whether the run has processed every item
func (p BulkProgress) Done() bool {
	return p.Completed == p.Total
}
