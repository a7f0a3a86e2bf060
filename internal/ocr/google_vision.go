package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/cenkalti/backoff/v4"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"wirelens/internal/imageprep"
	"wirelens/internal/logger"
	"wirelens/pkg/models"
)

const (
	// MaxImageBytes is the maximum image size accepted by the Vision API (20MB)
	MaxImageBytes = 20 * 1024 * 1024

	// DefaultMaxResults is the TEXT_DETECTION result limit per image
	DefaultMaxResults = 10
)

// Client is the subset of vision.ImageAnnotatorClient used by the service.
// It is satisfied by *vision.ImageAnnotatorClient and mocked in unit tests.
type Client interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// Options tunes a GoogleVisionOCRService.
type Options struct {
	// MaxResults limits TEXT_DETECTION annotations. Default: 10.
	MaxResults int

	// Prepare controls downscaling and JPEG re-encoding before upload.
	Prepare imageprep.Options

	// Retries is the number of extra attempts for transient API errors.
	Retries int

	// Backoff is the constant delay between attempts.
	Backoff time.Duration
}

// DefaultOptions returns the settings used by the CLI.
func DefaultOptions() Options {
	return Options{
		MaxResults: DefaultMaxResults,
		Prepare:    imageprep.DefaultOptions(),
		Retries:    2,
		Backoff:    time.Second,
	}
}

// GoogleVisionOCRService implements OCRService using Google Cloud Vision API.
type GoogleVisionOCRService struct {
	client Client
	opts   Options
	log    zerolog.Logger
}

// NewGoogleVisionOCRService creates a new OCR service with credentials from environment.
func NewGoogleVisionOCRService(ctx context.Context, opts Options) (*GoogleVisionOCRService, error) {
	const op = "NewGoogleVisionOCRService"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else if apiKey := os.Getenv("VISION_API_KEY"); apiKey != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with VISION_API_KEY")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return NewGoogleVisionOCRServiceWithClient(client, opts), nil
}

// NewGoogleVisionOCRServiceWithClient creates a new OCR service with an explicit client (for testing).
func NewGoogleVisionOCRServiceWithClient(client Client, opts Options) *GoogleVisionOCRService {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultOptions().Backoff
	}
	return &GoogleVisionOCRService{
		client: client,
		opts:   opts,
		log:    logger.WithComponent("ocr-google-vision"),
	}
}

// ProcessImage extracts text from an image.
func (g *GoogleVisionOCRService) ProcessImage(ctx context.Context, imageData io.Reader) (string, error) {
	result, err := g.ProcessImageWithMetadata(ctx, imageData)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessImageWithMetadata extracts text from an image with additional metadata.
func (g *GoogleVisionOCRService) ProcessImageWithMetadata(ctx context.Context, imageData io.Reader) (*OCRResult, error) {
	const op = "ProcessImageWithMetadata"
	startTime := time.Now()

	raw, err := io.ReadAll(io.LimitReader(imageData, MaxImageBytes+1))
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read image data")
	}
	if len(raw) > MaxImageBytes {
		return nil, WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("more than %d bytes", MaxImageBytes))
	}
	if len(raw) == 0 {
		return nil, WrapOCRError(op, ErrInvalidImage, "image is empty")
	}

	prepared, err := imageprep.Prepare(raw, g.opts.Prepare)
	if err != nil {
		return nil, WrapOCRError(op, ErrInvalidImage, err.Error())
	}

	g.log.Debug().
		Int("original_width", prepared.OriginalWidth).
		Int("width", prepared.Width).
		Int("height", prepared.Height).
		Int("bytes", len(prepared.Data)).
		Msg("Sending Cloud Vision request")

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: prepared.Data},
				Features: []*visionpb.Feature{
					{
						Type:       visionpb.Feature_TEXT_DETECTION,
						MaxResults: int32(g.opts.MaxResults),
					},
				},
			},
		},
	}

	resp, err := g.annotate(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, WrapOCRError(op, ctxErr, "Vision API call interrupted")
		}
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}

	if len(resp.GetResponses()) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	imageResp := resp.GetResponses()[0]
	if imageResp.GetError() != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imageResp.GetError().GetMessage()))
	}

	result := processVisionResponse(imageResp)
	result.ImageWidth = prepared.Width
	result.ImageHeight = prepared.Height
	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)

	g.log.Debug().
		Int("text_length", len(result.Text)).
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("Received Cloud Vision result")

	return result, nil
}

// annotate calls the API, retrying transient failures.
func (g *GoogleVisionOCRService) annotate(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
	attempt := 0
	return backoff.RetryWithData(func() (*visionpb.BatchAnnotateImagesResponse, error) {
		attempt++
		resp, err := g.client.BatchAnnotateImages(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !isTransient(err) {
			return nil, backoff.Permanent(err)
		}
		g.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Msg("Transient Cloud Vision error, retrying")
		return nil, err
	}, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(g.opts.Backoff), uint64(g.opts.Retries)),
		ctx,
	))
}

func isTransient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
		return true
	default:
		return false
	}
}

// processVisionResponse extracts text, confidence and languages from a single image response.
func processVisionResponse(resp *visionpb.AnnotateImageResponse) *OCRResult {
	result := &OCRResult{
		Engine: models.EngineGoogleVision,
	}

	if annotations := resp.GetTextAnnotations(); len(annotations) > 0 {
		result.Locale = annotations[0].GetLocale()
	}

	full := resp.GetFullTextAnnotation()
	if full == nil {
		return result
	}
	result.Text = full.GetText()

	var confidenceSum float32
	var confidenceCount int
	languageSet := make(map[string]bool)

	for _, page := range full.GetPages() {
		if page.GetConfidence() > 0 {
			confidenceSum += page.GetConfidence()
			confidenceCount++
		}
		for _, lang := range page.GetProperty().GetDetectedLanguages() {
			if lang.GetLanguageCode() != "" {
				languageSet[lang.GetLanguageCode()] = true
			}
		}
	}

	if confidenceCount > 0 {
		result.Confidence = confidenceSum / float32(confidenceCount)
	}

	for lang := range languageSet {
		result.LanguageCodes = append(result.LanguageCodes, lang)
	}
	sort.Strings(result.LanguageCodes)

	return result
}

// Close closes the underlying Vision client.
func (g *GoogleVisionOCRService) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
