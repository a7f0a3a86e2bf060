package ocrtest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// PNG returns an encoded w×h image with a dark stripe across the middle.
func PNG(tb testing.TB, w, h int) []byte {
	tb.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			c := color.NRGBA{R: 250, G: 250, B: 250, A: 255}
			if y > h/3 && y < 2*h/3 {
				c = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
			}
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		tb.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
