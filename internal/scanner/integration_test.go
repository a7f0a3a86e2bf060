package scanner_test

import (
	"context"
	"os"
	"testing"
	"time"

	"wirelens/internal/expect"
	"wirelens/internal/fetch"
	"wirelens/internal/ocr"
	"wirelens/internal/scanner"
)

const guestCardURL = "http://elroid.com/wirelens/guest.jpg"

// TestGuestCardLive fetches the published guest card, sends it to Cloud Vision
// and parses the result. It needs network access and Google credentials.
func TestGuestCardLive(t *testing.T) {
	if os.Getenv("WIRELENS_INTEGRATION") != "1" {
		t.Skip("set WIRELENS_INTEGRATION=1 to run against Cloud Vision")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ocrService, err := ocr.NewGoogleVisionOCRService(ctx, ocr.DefaultOptions())
	expect.NoError(t, err)
	defer ocrService.Close()

	s := scanner.New(fetch.NewFetcher(fetch.DefaultOptions()), ocrService, nil, scanner.DefaultOptions())

	result, err := s.Scan(ctx, guestCardURL)
	expect.NoError(t, err)

	t.Logf("recognised text:\n%s", result.OCR.Text)
	expect.ResponseEquals(t, result.Best, guestPair)
}
