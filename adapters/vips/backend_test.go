package vips_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math/rand"
	"testing"

	"github.com/Skryldev/photo-affix/adapters/vips"
	"github.com/Skryldev/photo-affix/core"
)

// countingReader records how many bytes were pulled from R.
type countingReader struct {
	R io.Reader
	N int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += n
	return n, err
}

func noiseJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestBackend_DecodeConfigReadsHeaderOnly(t *testing.T) {
	data := noiseJPEG(t, 320, 240)
	r := &countingReader{R: bytes.NewReader(data)}

	// DecodeConfig does not touch libvips, so no Startup is needed.
	var b vips.Backend
	cfg, err := b.DecodeConfig(context.Background(), r)
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 240 {
		t.Errorf("bounds: got %dx%d; want 320x240", cfg.Width, cfg.Height)
	}
	if r.N >= len(data)/2 {
		t.Errorf("read %d of %d bytes for the header", r.N, len(data))
	}
}

func TestBackend_DecodeConfigCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var b vips.Backend
	if _, err := b.DecodeConfig(ctx, bytes.NewReader(noiseJPEG(t, 8, 8))); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}

func TestBackend_ShrinksOnLoad(t *testing.T) {
	var dec core.Decoder = &vips.Backend{}
	sd, ok := dec.(core.ShrinkingDecoder)
	if !ok || !sd.ShrinksOnLoad() {
		t.Error("vips backend must report shrink-on-load")
	}
}
