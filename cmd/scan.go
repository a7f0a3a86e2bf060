package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"wirelens/internal/completion"
	"wirelens/internal/logger"
	"wirelens/internal/scanner"
	"wirelens/internal/sheets"
	"wirelens/pkg/models"
	"wirelens/pkg/services"
)

var scanCmd = &cobra.Command{
	Use:   "scan [image|url]...",
	Short: "Read a Wi-Fi card or name badge and print the extracted pair",
	Long: `Run the full pipeline on one or more images: fetch, downscale, Cloud Vision
text detection, then extract the network name and password (or first name and
surname/handle).

Several images are processed in parallel (SCAN_WORKERS, default 4). With
--ai-fallback, images where no pair is recognised are sent to OpenAI
(requires OPENAI_API_KEY). With --sheet, results are appended to the Google
Sheet in GOOGLE_SHEET_URL. With --from-sheet, image sources are also read from
column A of a worksheet in that spreadsheet.`,
	Example: `  # Scan the guest card
  wirelens scan http://elroid.com/wirelens/guest.jpg

  # Scan a folder of photos and export to Google Sheets
  wirelens scan photos/*.jpg --workers 8 --sheet

  # JSON output with every candidate pair
  wirelens scan badge.jpg --json --all

  # Scan every image listed in the "Photos" worksheet
  wirelens scan --from-sheet Photos --sheet`,
	RunE: runScan,
}

// ScanOutput represents one result in the JSON output
type ScanOutput struct {
	Source         string                      `json:"source"`
	Status         string                      `json:"status"`
	Best           *models.TextParserResponse  `json:"best,omitempty"`
	Candidates     []models.TextParserResponse `json:"candidates,omitempty"`
	FromCompletion bool                        `json:"from_completion,omitempty"`
	Confidence     float32                     `json:"confidence,omitempty"`
	Text           string                      `json:"text,omitempty"`
	ImageSHA256    string                      `json:"image_sha256,omitempty"`
	Error          string                      `json:"error,omitempty"`
	Duration       string                      `json:"duration"`
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.Flags().Bool("all", false, "Show every candidate pair")
	scanCmd.Flags().Int("timeout", 300, "Overall timeout in seconds")
	scanCmd.Flags().Int("workers", 0, "Parallel workers (default: SCAN_WORKERS)")
	scanCmd.Flags().Bool("ai-fallback", false, "Ask OpenAI when no pair is recognised (default: AI_FALLBACK)")
	scanCmd.Flags().Bool("sheet", false, "Append results to the Google Sheet in GOOGLE_SHEET_URL")
	scanCmd.Flags().String("worksheet", "", "Worksheet name (default: GOOGLE_SHEET_WORKSHEET)")
	scanCmd.Flags().String("from-sheet", "", "Read image sources from column A of this worksheet")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	showAll, _ := cmd.Flags().GetBool("all")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	workers, _ := cmd.Flags().GetInt("workers")
	aiFallback, _ := cmd.Flags().GetBool("ai-fallback")
	toSheet, _ := cmd.Flags().GetBool("sheet")
	worksheet, _ := cmd.Flags().GetString("worksheet")
	fromSheet, _ := cmd.Flags().GetString("from-sheet")

	if workers <= 0 {
		workers = appConfig.ScanWorkers
	}
	if !cmd.Flags().Changed("ai-fallback") {
		aiFallback = appConfig.AIFallback
	}
	if worksheet == "" {
		worksheet = appConfig.GoogleSheetWorksheet
	}
	if (toSheet || fromSheet != "") && appConfig.GoogleSheetURL == "" {
		return fmt.Errorf("--sheet and --from-sheet require GOOGLE_SHEET_URL to be set")
	}
	if len(args) == 0 && fromSheet == "" {
		return fmt.Errorf("no images given. Pass image paths or URLs, or use --from-sheet")
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	srcs := args
	if fromSheet != "" {
		sheetSources, err := readSheetSources(ctx, fromSheet, log)
		if err != nil {
			return err
		}
		srcs = append(append([]string{}, args...), sheetSources...)
	}

	if len(srcs) == 0 {
		return fmt.Errorf("no images to scan: worksheet %q lists no image sources", fromSheet)
	}

	log.Info().
		Int("images", len(srcs)).
		Int("workers", workers).
		Bool("ai_fallback", aiFallback).
		Bool("sheet", toSheet).
		Int("timeout", timeoutSecs).
		Msg("Starting scan")

	ocrService, err := createOCRService(ctx, log)
	if err != nil {
		return err
	}
	defer ocrService.Close()

	completer, err := createCompleter(aiFallback, log)
	if err != nil {
		return err
	}

	opts := scanner.DefaultOptions()
	if showAll {
		opts.MaxCandidates = 0
	}
	if len(srcs) > 1 && !jsonOutput {
		opts.Progress = progressPrinter(cmd.ErrOrStderr())
	}

	s := scanner.New(createFetcher(), ocrService, completer, opts)

	return executeScan(ctx, cmd.OutOrStdout(), s, srcs, scanSettings{
		outputPath: outputPath,
		jsonOutput: jsonOutput,
		showAll:    showAll,
		workers:    workers,
		toSheet:    toSheet,
		worksheet:  worksheet,
	}, log)
}

// scanSettings holds the output options of a scan run.
type scanSettings struct {
	outputPath string
	jsonOutput bool
	showAll    bool
	workers    int
	toSheet    bool
	worksheet  string
}

// executeScan scans srcs, exports and prints the results. It fails when no
// source was given or when every source failed.
func executeScan(ctx context.Context, w io.Writer, s *scanner.Scanner, srcs []string, settings scanSettings, log zerolog.Logger) error {
	if len(srcs) == 0 {
		return fmt.Errorf("no images to scan")
	}

	batch := len(srcs) > 1

	var results []*scanner.Result
	if batch {
		results = s.ScanAll(ctx, srcs, settings.workers)
	} else {
		result, err := s.Scan(ctx, srcs[0])
		if err != nil && !settings.jsonOutput && !settings.toSheet {
			return handleScanError(err, log)
		}
		results = []*scanner.Result{result}
	}

	if settings.toSheet {
		if err := exportToSheet(ctx, results, settings.worksheet, log); err != nil {
			return err
		}
	}

	var out bytes.Buffer
	if settings.jsonOutput {
		if err := writeScanJSON(&out, results, batch); err != nil {
			return err
		}
	} else {
		writeScanText(&out, results, settings.showAll, batch)
	}

	if err := writeOutput(w, settings.outputPath, out.Bytes(), log); err != nil {
		return err
	}

	counts := scanner.Summary(results)
	log.Info().
		Int("success", counts[scanner.StatusSuccess]).
		Int("warning", counts[scanner.StatusWarning]).
		Int("error", counts[scanner.StatusError]).
		Msg("Scan completed")

	if counts[scanner.StatusError] == len(results) {
		return fmt.Errorf("no pair recognised in %d image(s)", len(results))
	}
	return nil
}

// createCompleter returns nil when AI fallback is disabled
func createCompleter(enabled bool, log zerolog.Logger) (services.CredentialCompleter, error) {
	if !enabled {
		return nil, nil
	}

	completer, err := completion.NewChatGPTCompleterFromEnv()
	if err != nil {
		log.Error().Err(err).Msg("Failed to create AI completer")
		return nil, fmt.Errorf("--ai-fallback requires OPENAI_API_KEY: %w", err)
	}

	log.Debug().Msg("AI completion enabled")
	return completer, nil
}

func exportToSheet(ctx context.Context, results []*scanner.Result, worksheet string, log zerolog.Logger) error {
	sheetsService, err := sheets.NewSheetsService(ctx, appConfig.GoogleSheetURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Google Sheets service")
		return fmt.Errorf("failed to connect to Google Sheets: %w", err)
	}

	if err := sheetsService.WriteScanResults(ctx, results, worksheet); err != nil {
		return fmt.Errorf("failed to write results to Google Sheets: %w", err)
	}
	return nil
}

func readSheetSources(ctx context.Context, worksheet string, log zerolog.Logger) ([]string, error) {
	sheetsService, err := sheets.NewSheetsService(ctx, appConfig.GoogleSheetURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Google Sheets service")
		return nil, fmt.Errorf("failed to connect to Google Sheets: %w", err)
	}

	sources, err := sheetsService.ReadSources(ctx, worksheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read image sources from Google Sheets: %w", err)
	}
	return sources, nil
}

// progressPrinter reports batch progress; calls are serialised by the scanner.
func progressPrinter(w io.Writer) func(done, total int, r *scanner.Result) {
	return func(done, total int, r *scanner.Result) {
		fmt.Fprintf(w, "[%d/%d] %s - %s", done, total, r.Source, getStatusEmoji(r.Status))
		if r.Error != nil {
			fmt.Fprintf(w, " (%s)", r.Error.Error())
		}
		fmt.Fprintln(w)
	}
}

// getStatusEmoji returns an emoji for the scan status
func getStatusEmoji(status scanner.Status) string {
	switch status {
	case scanner.StatusSuccess:
		return "✅"
	case scanner.StatusWarning:
		return "⚠️"
	case scanner.StatusError:
		return "❌"
	default:
		return "❓"
	}
}

func toScanOutput(r *scanner.Result) ScanOutput {
	out := ScanOutput{
		Source:         r.Source,
		Status:         string(r.Status),
		Candidates:     r.Candidates,
		FromCompletion: r.FromCompletion,
		Confidence:     r.Confidence,
		ImageSHA256:    r.ImageSHA256,
		Duration:       r.Duration.Round(time.Millisecond).String(),
	}
	if r.Best.Complete() {
		best := r.Best
		out.Best = &best
	}
	if r.OCR != nil {
		out.Text = r.OCR.Text
	}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return out
}

func writeScanJSON(w io.Writer, results []*scanner.Result, batch bool) error {
	var v any
	if batch {
		outputs := make([]ScanOutput, 0, len(results))
		for _, r := range results {
			outputs = append(outputs, toScanOutput(r))
		}
		v = outputs
	} else {
		v = toScanOutput(results[0])
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	w.Write(data)
	io.WriteString(w, "\n")
	return nil
}

func writeScanText(w io.Writer, results []*scanner.Result, showAll, batch bool) {
	for i, r := range results {
		if batch {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "=== %s %s ===\n", r.Source, getStatusEmoji(r.Status))
		}

		if r.Error != nil {
			fmt.Fprintf(w, "Error: %s\n", r.Error)
			continue
		}

		fmt.Fprintf(w, "Network / name:      %s\n", r.Best.FirstName)
		fmt.Fprintf(w, "Password / handle:   %s\n", r.Best.SurnameOrHandle)
		if r.FromCompletion {
			fmt.Fprintf(w, "Recognised by:       AI completion (%.0f%% confidence)\n", r.Confidence*100)
		}

		if showAll && len(r.Candidates) > 1 {
			fmt.Fprintln(w, "Other candidates:")
			for _, c := range r.Candidates[1:] {
				fmt.Fprintf(w, "  %s\n", strings.Join([]string{c.FirstName, c.SurnameOrHandle}, " / "))
			}
		}
	}
}
