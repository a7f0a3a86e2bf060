// Package fetch loads images for OCR from HTTP(S) URLs or local files.
//
// Remote fetches are retried with a constant backoff on transport errors,
// HTTP 429 and 5xx responses. Content is size limited and sniffed so that only
// images reach the OCR service.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"wirelens/internal/logger"
	"wirelens/pkg/models"
)

// MaxImageBytes is the largest image accepted (20MB).
const MaxImageBytes = 20 * 1024 * 1024

// Options configures a Fetcher.
type Options struct {
	// Timeout bounds a single HTTP attempt. Default: 30 seconds.
	Timeout time.Duration

	// Retries is the number of extra attempts for retryable failures.
	Retries int

	// Backoff is the constant delay between attempts. Default: 500ms.
	Backoff time.Duration

	// UserAgent is sent with remote requests.
	UserAgent string
}

// DefaultOptions returns the options used by the CLI when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Timeout:   30 * time.Second,
		Retries:   4,
		Backoff:   500 * time.Millisecond,
		UserAgent: "wirelens/1.0",
	}
}

// Fetcher implements services.ImageSource.
type Fetcher struct {
	client *http.Client
	opts   Options
	log    zerolog.Logger
}

// NewFetcher creates a Fetcher with its own HTTP client.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return NewFetcherWithClient(&http.Client{Timeout: opts.Timeout}, opts)
}

// NewFetcherWithClient creates a Fetcher using an explicit HTTP client (for testing).
func NewFetcherWithClient(client *http.Client, opts Options) *Fetcher {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultOptions().Backoff
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Fetcher{
		client: client,
		opts:   opts,
		log:    logger.WithComponent("fetch"),
	}
}

// IsRemote reports whether src is fetched over HTTP rather than read from disk.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Fetch loads the image at src, which is either an http(s) URL or a file path.
func (f *Fetcher) Fetch(ctx context.Context, src string) (*models.SourceImage, error) {
	var (
		data []byte
		err  error
	)
	if IsRemote(src) {
		data, err = f.fetchRemote(ctx, src)
	} else {
		data, err = f.readLocal(src)
	}
	if err != nil {
		return nil, err
	}

	return newSourceImage(src, data)
}

func (f *Fetcher) fetchRemote(ctx context.Context, src string) ([]byte, error) {
	const op = "fetchRemote"

	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		data, err := f.get(ctx, src)
		if err != nil {
			f.log.Debug().
				Err(err).
				Str("url", src).
				Int("attempt", attempt).
				Msg("Image download attempt failed")
		}
		return data, err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.opts.Backoff), uint64(f.opts.Retries)),
		ctx,
	)

	data, err := backoff.RetryWithData(operation, policy)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return nil, fetchErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &FetchError{Op: op, Source: src, Err: ctxErr}
		}
		return nil, &FetchError{Op: op, Source: src, Err: err}
	}

	f.log.Debug().
		Str("url", src).
		Int("bytes", len(data)).
		Int("attempts", attempt).
		Msg("Image downloaded")

	return data, nil
}

// get performs a single download. Failures that should not be retried are
// wrapped in backoff.Permanent.
func (f *Fetcher) get(ctx context.Context, src string) ([]byte, error) {
	const op = "get"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, backoff.Permanent(&FetchError{Op: op, Source: src, Err: err})
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&FetchError{Op: op, Source: src, Err: ctx.Err()})
		}
		return nil, &FetchError{Op: op, Source: src, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused between attempts
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		statusErr := &FetchError{Op: op, Source: src, StatusCode: resp.StatusCode, Err: ErrHTTPStatus}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	if resp.ContentLength > MaxImageBytes {
		return nil, backoff.Permanent(&FetchError{Op: op, Source: src, Err: ErrImageTooLarge})
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		if errors.Is(err, ErrImageTooLarge) {
			return nil, backoff.Permanent(&FetchError{Op: op, Source: src, Err: err})
		}
		return nil, &FetchError{Op: op, Source: src, Err: err}
	}

	return data, nil
}

func (f *Fetcher) readLocal(path string) ([]byte, error) {
	const op = "readLocal"

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &FetchError{Op: op, Source: path, Err: ErrNotFound}
		}
		return nil, &FetchError{Op: op, Source: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &FetchError{Op: op, Source: path, Err: fmt.Errorf("not a regular file")}
	}
	if info.Size() > MaxImageBytes {
		return nil, &FetchError{Op: op, Source: path, Err: ErrImageTooLarge}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{Op: op, Source: path, Err: err}
	}
	defer file.Close()

	data, err := readLimited(file)
	if err != nil {
		return nil, &FetchError{Op: op, Source: path, Err: err}
	}
	return data, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

func newSourceImage(src string, data []byte) (*models.SourceImage, error) {
	const op = "Fetch"

	if len(data) == 0 {
		return nil, &FetchError{Op: op, Source: src, Err: ErrEmptyImage}
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, &FetchError{Op: op, Source: src, Err: fmt.Errorf("%w: detected %s", ErrNotImage, contentType)}
	}

	sum := sha256.Sum256(data)
	return &models.SourceImage{
		Source:      src,
		Data:        data,
		ContentType: contentType,
		SHA256:      hex.EncodeToString(sum[:]),
		FetchedAt:   time.Now(),
	}, nil
}
