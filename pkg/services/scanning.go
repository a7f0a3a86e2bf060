package services

import (
	"context"

	"wirelens/pkg/models"
)

// ImageSource loads image content from a URL or a local path.
type ImageSource interface {
	Fetch(ctx context.Context, src string) (*models.SourceImage, error)
}

// CredentialCompleter extracts the field pair from OCR text when rule based
// parsing found nothing usable.
type CredentialCompleter interface {
	// Complete returns the extracted pair. partial may be nil or hold whatever
	// the rule parser already recognised.
	Complete(ctx context.Context, ocrText string, partial *models.TextParserResponse) (*Completion, error)
}

// Completion is the result of a CredentialCompleter call.
type Completion struct {
	Response   models.TextParserResponse `json:"response"`
	Confidence float32                   `json:"confidence"` // 0.0 to 1.0 as reported by the model
	Model      string                    `json:"model"`
}
