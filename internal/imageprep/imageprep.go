// Package imageprep normalises photographs before they are sent for OCR.
//
// Images are rotated upright from their EXIF orientation, limited to 1200px
// in width and re-encoded as JPEG.
package imageprep

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
)

const (
	// DefaultMaxWidth is the widest image sent for OCR.
	DefaultMaxWidth = 1200

	// DefaultJPEGQuality is the quality used when re-encoding.
	DefaultJPEGQuality = 90
)

// ErrDecode is returned when the image bytes cannot be decoded.
var ErrDecode = errors.New("unable to decode image")

// Options controls image preparation.
type Options struct {
	MaxWidth    int
	JPEGQuality int
}

// DefaultOptions returns the preparation settings used for Vision uploads.
func DefaultOptions() Options {
	return Options{
		MaxWidth:    DefaultMaxWidth,
		JPEGQuality: DefaultJPEGQuality,
	}
}

// Prepared is a JPEG ready for upload.
type Prepared struct {
	Data           []byte
	Width          int
	Height         int
	OriginalWidth  int
	OriginalHeight int
}

// Scaled reports whether the image was downscaled.
func (p *Prepared) Scaled() bool {
	return p.Width != p.OriginalWidth || p.Height != p.OriginalHeight
}

// Prepare decodes data honouring EXIF orientation, downscales it to
// opts.MaxWidth when wider and re-encodes it as JPEG. Images are never upscaled.
func Prepare(data []byte, opts Options) (*Prepared, error) {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	prepared := &Prepared{
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
	}

	if bounds.Dx() > opts.MaxWidth {
		// Height 0 keeps the aspect ratio
		img = imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	prepared.Data = buf.Bytes()
	prepared.Width = img.Bounds().Dx()
	prepared.Height = img.Bounds().Dy()

	return prepared, nil
}
