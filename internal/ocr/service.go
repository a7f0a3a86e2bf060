// Package ocr provides text recognition for photographed badges and cards using
// the Google Cloud Vision API.
//
// Images are prepared with package imageprep (upright, at most 1200px wide,
// JPEG quality 90) and sent as inline content with the TEXT_DETECTION feature.
// The full text annotation is returned together with page confidence and the
// detected languages.
//
// Credentials are resolved in this order:
//   - GOOGLE_CREDENTIALS: inline service account JSON
//   - GOOGLE_APPLICATION_CREDENTIALS: path to a service account JSON file
//   - VISION_API_KEY: API key
//   - application default credentials
//
// Cloud Vision API limitations:
//   - Maximum image size: 20MB
//   - Supported formats: JPEG, PNG, GIF, BMP, WEBP, RAW, ICO, PDF, TIFF
package ocr

import (
	"context"
	"io"
	"time"

	"wirelens/pkg/models"
)

// OCRService defines the interface for OCR text extraction services.
type OCRService interface {
	// ProcessImage extracts the full text from an image.
	ProcessImage(ctx context.Context, imageData io.Reader) (string, error)

	// ProcessImageWithMetadata extracts the full text from an image with additional metadata.
	ProcessImageWithMetadata(ctx context.Context, imageData io.Reader) (*OCRResult, error)
}

// OCRResult contains the results of OCR processing with metadata.
type OCRResult struct {
	// Text is the full recognised text, lines separated by "\n".
	// It is empty when the service found no text.
	Text string `json:"text"`

	// Engine identifies the service that produced the text.
	Engine string `json:"engine"`

	// Confidence is the average page confidence (0.0 to 1.0), 0 when not reported.
	Confidence float32 `json:"confidence"`

	// LanguageCodes contains the detected languages, sorted.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// Locale is the locale Vision reported for the whole text, if any.
	Locale string `json:"locale,omitempty"`

	// ImageWidth and ImageHeight are the dimensions of the uploaded image.
	ImageWidth  int `json:"image_width"`
	ImageHeight int `json:"image_height"`

	// ProcessedAt is the timestamp when the OCR processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// ProcessingDuration is how long the OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Response returns the text part of the result as consumed by the parser.
func (r *OCRResult) Response() models.OCRResponse {
	return models.OCRResponse{
		Text:   r.Text,
		Engine: r.Engine,
	}
}
