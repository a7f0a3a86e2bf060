// Package scanner runs the full pipeline for one or many images: fetch, OCR,
// rule based parsing and, optionally, AI completion.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"wirelens/internal/logger"
	"wirelens/internal/ocr"
	"wirelens/internal/parser"
	"wirelens/pkg/models"
	"wirelens/pkg/services"
)

// ErrNoCredentials is returned when neither the parser nor the completer found
// a field pair in the recognised text.
var ErrNoCredentials = errors.New("no field pair recognised in image")

// Status summarises a scan for reports.
type Status string

const (
	StatusSuccess Status = "success" // pair found by the rule parser
	StatusWarning Status = "warning" // pair found only by AI completion
	StatusError   Status = "error"
)

// Result is the outcome of scanning one source.
type Result struct {
	Index          int                         // Position in the batch
	Source         string                      // URL or path as given
	ImageSHA256    string                      // Hex digest of the fetched bytes
	OCR            *ocr.OCRResult              // nil when fetch or OCR failed
	Candidates     []models.TextParserResponse // Parser candidates in priority order
	Best           models.TextParserResponse   // Chosen pair, zero on error
	FromCompletion bool                        // Best came from the completer
	Confidence     float32                     // OCR confidence, or model confidence for completions
	Status         Status
	Error          error
	Duration       time.Duration
}

// Options configures a Scanner.
type Options struct {
	// MaxCandidates limits the parser candidates kept per result. <= 0 keeps all.
	MaxCandidates int

	// Progress, when set, is called after each batch item completes. Calls are
	// serialised.
	Progress func(done, total int, result *Result)
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{MaxCandidates: 5}
}

// Scanner wires an image source, an OCR service, the parser and an optional
// completer together.
type Scanner struct {
	source    services.ImageSource
	ocr       ocr.OCRService
	parser    *parser.SimpleTextParser
	completer services.CredentialCompleter
	opts      Options
	log       zerolog.Logger
}

// New creates a Scanner. completer may be nil to disable AI completion.
func New(source services.ImageSource, ocrService ocr.OCRService, completer services.CredentialCompleter, opts Options) *Scanner {
	return &Scanner{
		source:    source,
		ocr:       ocrService,
		parser:    parser.NewSimpleTextParser(),
		completer: completer,
		opts:      opts,
		log:       logger.WithComponent("scanner"),
	}
}

// Scan processes a single source. The returned Result is never nil; its
// Error is also returned.
func (s *Scanner) Scan(ctx context.Context, src string) (*Result, error) {
	const op = "Scan"
	start := time.Now()

	log := logger.WithSource("scanner", src)
	result := &Result{Source: src}
	fail := func(err error) (*Result, error) {
		result.Status = StatusError
		result.Error = fmt.Errorf("%s: %w", op, err)
		result.Duration = time.Since(start)
		log.Debug().Err(result.Error).Msg("Scan failed")
		return result, result.Error
	}

	img, err := s.source.Fetch(ctx, src)
	if err != nil {
		return fail(err)
	}
	result.ImageSHA256 = img.SHA256

	log.Debug().
		Int("bytes", img.Size()).
		Str("content_type", img.ContentType).
		Msg("Image fetched")

	ocrResult, err := s.ocr.ProcessImageWithMetadata(ctx, bytes.NewReader(img.Data))
	if err != nil {
		return fail(err)
	}
	result.OCR = ocrResult
	result.Confidence = ocrResult.Confidence

	resp := ocrResult.Response()
	result.Candidates = s.parser.All(resp, s.opts.MaxCandidates)
	if len(result.Candidates) > 0 {
		result.Best = result.Candidates[0]
		result.Status = StatusSuccess
		result.Duration = time.Since(start)
		return result, nil
	}

	if s.completer != nil && resp.Text != "" {
		partial := s.parser.Partial(resp)
		completion, err := s.completer.Complete(ctx, resp.Text, &partial)
		if err == nil {
			result.Best = completion.Response
			result.FromCompletion = true
			result.Confidence = completion.Confidence
			result.Status = StatusWarning
			result.Duration = time.Since(start)

			log.Info().
				Str("model", completion.Model).
				Msg("Field pair recovered by AI completion")
			return result, nil
		}
		if ctx.Err() != nil {
			return fail(err)
		}
		log.Warn().Err(err).Msg("AI completion failed")
	}

	return fail(ErrNoCredentials)
}

// ScanAll scans srcs with a pool of workers. Results keep the input order and
// a failing source never stops the others.
func (s *Scanner) ScanAll(ctx context.Context, srcs []string, workers int) []*Result {
	if workers < 1 {
		workers = 1
	}
	workers = min(workers, max(len(srcs), 1))

	type job struct {
		index int
		src   string
	}

	jobs := make(chan job, len(srcs))
	results := make([]*Result, len(srcs))

	var (
		mu   sync.Mutex
		done int
		wg   sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for j := range jobs {
				s.log.Debug().
					Int("worker", workerID).
					Str("source", j.src).
					Int("index", j.index+1).
					Msg("Worker scanning image")

				result, _ := s.Scan(ctx, j.src)
				result.Index = j.index
				results[j.index] = result

				mu.Lock()
				done++
				if s.opts.Progress != nil {
					s.opts.Progress(done, len(srcs), result)
				}
				mu.Unlock()
			}
		}(w)
	}

	for i, src := range srcs {
		jobs <- job{index: i, src: src}
	}
	close(jobs)

	wg.Wait()

	return results
}

// Summary counts results by status.
func Summary(results []*Result) map[Status]int {
	counts := make(map[Status]int, 3)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
