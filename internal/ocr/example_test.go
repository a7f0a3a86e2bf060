package ocr_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"wirelens/internal/ocr"
)

// Example demonstrates basic usage of the OCR service.
func Example() {
	// Credentials come from GOOGLE_CREDENTIALS, GOOGLE_APPLICATION_CREDENTIALS
	// or VISION_API_KEY (loaded from .env in main).
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ocrService, err := ocr.NewGoogleVisionOCRService(ctx, ocr.DefaultOptions())
	if err != nil {
		log.Fatalf("Failed to create OCR service: %v", err)
	}
	defer ocrService.Close()

	photo, err := os.Open("guest.jpg")
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}
	defer photo.Close()

	result, err := ocrService.ProcessImageWithMetadata(ctx, photo)
	if err != nil {
		log.Fatalf("Failed to process image: %v", err)
	}

	fmt.Printf("Recognised %d characters (%.0f%% confidence):\n%s\n",
		len(result.Text), result.Confidence*100, result.Text)
}
