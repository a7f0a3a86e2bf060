package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrImageTooLarge is returned when the image exceeds MaxImageBytes.
	ErrImageTooLarge = errors.New("image exceeds the maximum size limit (20MB)")

	// ErrEmptyImage is returned when the source has no content.
	ErrEmptyImage = errors.New("image is empty")

	// ErrNotImage is returned when the content is not recognised as an image.
	ErrNotImage = errors.New("content is not an image")

	// ErrHTTPStatus is returned when a remote source answers with a non-success status.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrNotFound is returned when a local source does not exist.
	ErrNotFound = errors.New("image not found")
)

// FetchError describes a failed attempt to load an image.
type FetchError struct {
	Op         string
	Source     string
	StatusCode int // HTTP status, 0 for local files and transport errors
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch: %s %s failed (status %d): %v", e.Op, e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch: %s %s failed: %v", e.Op, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
