package ocr_test

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"wirelens/internal/ocr"
	"wirelens/internal/ocr/ocrtest"
	"wirelens/pkg/models"
)

const guestCard = "65twenty\nGuest WiFi\nNetwork: 65twenty_guest\nPassword: guest7ad\n"

func fastOptions() ocr.Options {
	opts := ocr.DefaultOptions()
	opts.Backoff = time.Millisecond
	return opts
}

func TestProcessImageWithMetadata(t *testing.T) {
	client := ocrtest.NewFakeClient(guestCard)
	client.Languages = []string{"en", "de"}
	svc := ocr.NewGoogleVisionOCRServiceWithClient(client, fastOptions())

	result, err := svc.ProcessImageWithMetadata(context.Background(), bytes.NewReader(ocrtest.PNG(t, 2400, 800)))
	if err != nil {
		t.Fatalf("ProcessImageWithMetadata() error = %v", err)
	}

	if result.Text != guestCard {
		t.Fatalf("Text = %q", result.Text)
	}
	if result.Engine != models.EngineGoogleVision {
		t.Fatalf("Engine = %q", result.Engine)
	}
	if result.Confidence < 0.96 || result.Confidence > 0.98 {
		t.Fatalf("Confidence = %v", result.Confidence)
	}
	if strings.Join(result.LanguageCodes, ",") != "de,en" {
		t.Fatalf("LanguageCodes = %v", result.LanguageCodes)
	}
	if result.ImageWidth != 1200 || result.ImageHeight != 400 {
		t.Fatalf("uploaded size = %dx%d, want 1200x400", result.ImageWidth, result.ImageHeight)
	}
	if result.Response() != (models.OCRResponse{Text: guestCard, Engine: models.EngineGoogleVision}) {
		t.Fatalf("Response() = %+v", result.Response())
	}

	reqs := client.Requests()
	if len(reqs) != 1 || len(reqs[0].Requests) != 1 {
		t.Fatalf("requests = %v", reqs)
	}
	air := reqs[0].Requests[0]
	feature := air.GetFeatures()[0]
	if feature.GetType() != visionpb.Feature_TEXT_DETECTION || feature.GetMaxResults() != 10 {
		t.Fatalf("feature = %v", feature)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(air.GetImage().GetContent())); err != nil {
		t.Fatalf("uploaded content is not JPEG: %v", err)
	}
}

func TestProcessImageWithoutTextReturnsEmpty(t *testing.T) {
	svc := ocr.NewGoogleVisionOCRServiceWithClient(ocrtest.NewFakeClient(""), fastOptions())

	text, err := svc.ProcessImage(context.Background(), bytes.NewReader(ocrtest.PNG(t, 64, 64)))
	if err != nil {
		t.Fatalf("ProcessImage() error = %v", err)
	}
	if text != "" {
		t.Fatalf("text = %q, want empty", text)
	}
}

func TestProcessImagePerImageError(t *testing.T) {
	client := ocrtest.NewFakeClient("")
	client.ImageError = "Bad image data."
	svc := ocr.NewGoogleVisionOCRServiceWithClient(client, fastOptions())

	_, err := svc.ProcessImage(context.Background(), bytes.NewReader(ocrtest.PNG(t, 64, 64)))
	if !errors.Is(err, ocr.ErrOCRFailed) {
		t.Fatalf("error = %v, want ErrOCRFailed", err)
	}
	if !strings.Contains(err.Error(), "Bad image data.") {
		t.Fatalf("error %q does not carry the API message", err)
	}
}

func TestProcessImageRetriesTransientErrors(t *testing.T) {
	client := ocrtest.NewFakeClient(guestCard)
	client.Errs = []error{
		status.Error(codes.Unavailable, "backend unavailable"),
		status.Error(codes.ResourceExhausted, "slow down"),
	}
	svc := ocr.NewGoogleVisionOCRServiceWithClient(client, fastOptions())

	text, err := svc.ProcessImage(context.Background(), bytes.NewReader(ocrtest.PNG(t, 64, 64)))
	if err != nil {
		t.Fatalf("ProcessImage() error = %v", err)
	}
	if text != guestCard {
		t.Fatalf("text = %q", text)
	}
	if got := len(client.Requests()); got != 3 {
		t.Fatalf("requests = %d, want 3", got)
	}
}

func TestProcessImagePermanentErrorIsNotRetried(t *testing.T) {
	client := ocrtest.NewFakeClient(guestCard)
	client.Errs = []error{status.Error(codes.PermissionDenied, "PERMISSION_DENIED: Cloud Vision API has not been used")}
	svc := ocr.NewGoogleVisionOCRServiceWithClient(client, fastOptions())

	_, err := svc.ProcessImage(context.Background(), bytes.NewReader(ocrtest.PNG(t, 64, 64)))
	if !errors.Is(err, ocr.ErrOCRFailed) {
		t.Fatalf("error = %v, want ErrOCRFailed", err)
	}
	if got := len(client.Requests()); got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}
}

func TestProcessImageRejectsInvalidInput(t *testing.T) {
	client := ocrtest.NewFakeClient(guestCard)
	svc := ocr.NewGoogleVisionOCRServiceWithClient(client, fastOptions())

	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("GIF? no."),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ProcessImage(context.Background(), bytes.NewReader(data))
			if !errors.Is(err, ocr.ErrInvalidImage) {
				t.Fatalf("error = %v, want ErrInvalidImage", err)
			}
		})
	}
	if len(client.Requests()) != 0 {
		t.Fatal("invalid input must not reach the API")
	}
}

func TestClose(t *testing.T) {
	client := ocrtest.NewFakeClient("")
	svc := ocr.NewGoogleVisionOCRServiceWithClient(client, fastOptions())
	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}
	if !client.Closed() {
		t.Fatal("client not closed")
	}
}

func TestWrapOCRErrorKeepsExistingWrapper(t *testing.T) {
	inner := ocr.WrapOCRError("inner", ocr.ErrOCRFailed, "")
	outer := ocr.WrapOCRError("outer", inner, "ignored")
	if outer != inner {
		t.Fatalf("WrapOCRError re-wrapped an OCRError: %v", outer)
	}
	if ocr.WrapOCRError("op", nil, "") != nil {
		t.Fatal("WrapOCRError(nil) must be nil")
	}
}
