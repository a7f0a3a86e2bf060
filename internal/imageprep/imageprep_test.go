package imageprep

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, h/2, color.NRGBA{A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareDownscalesWideImages(t *testing.T) {
	p, err := Prepare(encodePNG(t, 2400, 600), DefaultOptions())
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if p.Width != 1200 || p.Height != 300 {
		t.Fatalf("size = %dx%d, want 1200x300", p.Width, p.Height)
	}
	if !p.Scaled() {
		t.Fatal("Scaled() = false, want true")
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(p.Data))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if cfg.Width != 1200 || cfg.Height != 300 {
		t.Fatalf("encoded size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestPrepareKeepsNarrowImages(t *testing.T) {
	p, err := Prepare(encodePNG(t, 640, 480), Options{MaxWidth: 1200, JPEGQuality: 80})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if p.Width != 640 || p.Height != 480 || p.Scaled() {
		t.Fatalf("size = %dx%d scaled=%v, want untouched 640x480", p.Width, p.Height, p.Scaled())
	}
}

func TestPrepareRejectsGarbage(t *testing.T) {
	_, err := Prepare([]byte("definitely not pixels"), DefaultOptions())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("error = %v, want ErrDecode", err)
	}
}
