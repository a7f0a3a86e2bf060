package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"wirelens/internal/fetch"
	"wirelens/internal/imageprep"
	"wirelens/internal/logger"
	"wirelens/internal/ocr"
	"wirelens/internal/parser"
	"wirelens/internal/scanner"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <image|url>",
	Short: "Extract text from an image using Google Cloud Vision",
	Long: `Fetch an image from a local path or an http(s) URL, downscale it and send it to
Google Cloud Vision text detection. Prints the full recognised text.

Credentials are taken from the first of:
  GOOGLE_CREDENTIALS - Inline service account JSON
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file
  VISION_API_KEY - Cloud Vision API key
  Application Default Credentials (gcloud auth application-default login)`,
	Example: `  # Recognise text in a local photo
  wirelens ocr guest.jpg

  # Recognise text in a remote image and include metadata
  wirelens ocr http://elroid.com/wirelens/guest.jpg --metadata

  # Write JSON output to a file
  wirelens ocr guest.jpg --json -o guest.json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	Source             string    `json:"source"`
	Text               string    `json:"text"`
	Engine             string    `json:"engine"`
	Confidence         float32   `json:"confidence,omitempty"`
	LanguageCodes      []string  `json:"language_codes,omitempty"`
	Locale             string    `json:"locale,omitempty"`
	ImageWidth         int       `json:"image_width,omitempty"`
	ImageHeight        int       `json:"image_height,omitempty"`
	ImageSize          int       `json:"image_size"`
	ImageSHA256        string    `json:"image_sha256"`
	ProcessedAt        time.Time `json:"processed_at"`
	ProcessingDuration string    `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().BoolP("metadata", "m", false, "Include metadata in output")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	includeMetadata, _ := cmd.Flags().GetBool("metadata")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	src := args[0]

	log.Info().
		Str("source", src).
		Str("output", outputPath).
		Bool("metadata", includeMetadata).
		Bool("json", jsonOutput).
		Int("timeout", timeoutSecs).
		Msg("Starting OCR processing")

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	img, err := createFetcher().Fetch(ctx, src)
	if err != nil {
		return handleScanError(err, log)
	}

	ocrService, err := createOCRService(ctx, log)
	if err != nil {
		return err
	}
	defer ocrService.Close()

	result, err := ocrService.ProcessImageWithMetadata(ctx, bytes.NewReader(img.Data))
	if err != nil {
		return handleScanError(err, log)
	}

	log.Info().
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Int("text_length", len(result.Text)).
		Msg("OCR processing completed successfully")

	var out bytes.Buffer
	if jsonOutput {
		data, err := json.MarshalIndent(OCROutput{
			Source:             src,
			Text:               result.Text,
			Engine:             result.Engine,
			Confidence:         result.Confidence,
			LanguageCodes:      result.LanguageCodes,
			Locale:             result.Locale,
			ImageWidth:         result.ImageWidth,
			ImageHeight:        result.ImageHeight,
			ImageSize:          img.Size(),
			ImageSHA256:        img.SHA256,
			ProcessedAt:        result.ProcessedAt,
			ProcessingDuration: result.ProcessingDuration.String(),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		out.Write(data)
		out.WriteString("\n")
	} else {
		if includeMetadata {
			fmt.Fprintf(&out, "=== OCR Results for %s ===\n", src)
			fmt.Fprintf(&out, "Image size: %d bytes (%s)\n", img.Size(), img.ContentType)
			fmt.Fprintf(&out, "Uploaded as: %dx%d JPEG\n", result.ImageWidth, result.ImageHeight)
			if result.Confidence > 0 {
				fmt.Fprintf(&out, "Confidence: %.1f%%\n", result.Confidence*100)
			}
			if len(result.LanguageCodes) > 0 {
				fmt.Fprintf(&out, "Languages: %s\n", strings.Join(result.LanguageCodes, ", "))
			}
			fmt.Fprintf(&out, "Processing time: %v\n", result.ProcessingDuration)
			out.WriteString("\n=== Extracted Text ===\n\n")
		}
		out.WriteString(result.Text)
		if !strings.HasSuffix(result.Text, "\n") {
			out.WriteString("\n")
		}
	}

	return writeOutput(cmd.OutOrStdout(), outputPath, out.Bytes(), log)
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func createFetcher() *fetch.Fetcher {
	opts := fetch.DefaultOptions()
	opts.Timeout = appConfig.FetchTimeout
	opts.Retries = appConfig.FetchRetries
	opts.Backoff = appConfig.FetchBackoff
	return fetch.NewFetcher(opts)
}

// createOCRService creates and configures the OCR service
func createOCRService(ctx context.Context, log zerolog.Logger) (*ocr.GoogleVisionOCRService, error) {
	if !appConfig.HasGoogleCredentials() {
		log.Warn().Msg("No Google credentials configured, falling back to Application Default Credentials")
	}

	opts := ocr.DefaultOptions()
	opts.MaxResults = appConfig.VisionMaxResults
	opts.Prepare = imageprep.Options{
		MaxWidth:    appConfig.ImageMaxWidth,
		JPEGQuality: appConfig.ImageJPEGQuality,
	}

	ocrService, err := ocr.NewGoogleVisionOCRService(ctx, opts)
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Error().Err(err).Msg("Google Cloud credentials not configured")
			return nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
				"1. GOOGLE_APPLICATION_CREDENTIALS with the path to a service account JSON file\n" +
				"2. GOOGLE_CREDENTIALS with inline service account JSON\n" +
				"3. VISION_API_KEY with a Cloud Vision API key\n" +
				"4. Application Default Credentials: gcloud auth application-default login\n\n" +
				"Values can also be placed in a .env file")
		}
		log.Error().Err(err).Msg("Failed to create OCR service")
		return nil, fmt.Errorf("failed to create OCR service: %w", err)
	}

	log.Debug().Msg("OCR service created successfully")
	return ocrService, nil
}

// handleScanError provides user-friendly error messages for fetch, OCR and parse failures
func handleScanError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	case errors.Is(err, fetch.ErrNotFound):
		return fmt.Errorf("image not found: %w", err)
	case errors.Is(err, fetch.ErrHTTPStatus):
		return fmt.Errorf("image download failed: %w", err)
	case errors.Is(err, fetch.ErrImageTooLarge), errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 20MB)")
	case errors.Is(err, fetch.ErrEmptyImage):
		return fmt.Errorf("image is empty")
	case errors.Is(err, fetch.ErrNotImage), errors.Is(err, ocr.ErrInvalidImage):
		return fmt.Errorf("not a supported image (JPEG, PNG, GIF, BMP, TIFF or WebP expected): %w", err)
	case errors.Is(err, scanner.ErrNoCredentials), errors.Is(err, parser.ErrNoMatch):
		return fmt.Errorf("no network name/password or name/handle pair found in the text")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS, GOOGLE_CREDENTIALS or VISION_API_KEY.\n\nOriginal error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED") || strings.Contains(errStr, "PermissionDenied"):
		return fmt.Errorf("permission denied. Ensure the Cloud Vision API is enabled and the account has the 'Cloud Vision API User' role")
	case strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "ResourceExhausted") ||
		strings.Contains(strings.ToLower(errStr), "quota"):
		return fmt.Errorf("Google Cloud Vision API quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR processing failed. This may be due to network issues, API quota limits, or service unavailability: %w", err)
	default:
		return fmt.Errorf("processing failed: %w", err)
	}
}

// writeOutput writes data to outputPath, or to w when no path is given.
func writeOutput(w io.Writer, outputPath string, data []byte, log zerolog.Logger) error {
	if outputPath == "" {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Results written to file")
	return nil
}
