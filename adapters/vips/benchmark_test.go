package vips_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"

	"github.com/Skryldev/photo-affix/adapters/decoder"
	"github.com/Skryldev/photo-affix/adapters/vips"
	"github.com/Skryldev/photo-affix/core"
)

func makeJPEG(b *testing.B, w, h int) []byte {
	b.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92})
	return buf.Bytes()
}

// libvips cannot be restarted after Shutdown, so all benchmarks share one
// backend for the life of the test binary.
var (
	backendOnce sync.Once
	backend     *vips.Backend
)

func newBackend(b *testing.B) *vips.Backend {
	b.Helper()
	backendOnce.Do(func() { backend = vips.NewBackend(vips.BackendConfig{MaxWorkers: 1}) })
	return backend
}

func benchDecode(b *testing.B, dec core.Decoder, raw []byte, sample int) {
	b.Helper()
	ctx := context.Background()
	b.ReportAllocs()
	b.SetBytes(int64(len(raw)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := dec.Decode(ctx, bytes.NewReader(raw), sample); err != nil {
			b.Fatal(err)
		}
	}
}

func benchBounds(b *testing.B, dec core.Decoder, raw []byte) {
	b.Helper()
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := dec.DecodeConfig(ctx, bytes.NewReader(raw)); err != nil {
			b.Fatal(err)
		}
	}
}

// ─── Bounds pass ──────────────────────────────────────────────────────────────

func BenchmarkBounds_Stdlib_4K(b *testing.B) {
	benchBounds(b, decoder.NewJPEG(), makeJPEG(b, 3840, 2160))
}

func BenchmarkBounds_Vips_4K(b *testing.B) {
	benchBounds(b, newBackend(b), makeJPEG(b, 3840, 2160))
}

// ─── Full decode ──────────────────────────────────────────────────────────────

func BenchmarkDecode_Stdlib_1920x1080(b *testing.B) {
	benchDecode(b, decoder.NewJPEG(), makeJPEG(b, 1920, 1080), 1)
}

func BenchmarkDecode_Vips_1920x1080(b *testing.B) {
	benchDecode(b, newBackend(b), makeJPEG(b, 1920, 1080), 1)
}

// ─── Subsampled decode ────────────────────────────────────────────────────────

func BenchmarkDecodeSample4_Stdlib_4K(b *testing.B) {
	benchDecode(b, decoder.NewJPEG(), makeJPEG(b, 3840, 2160), 4)
}

func BenchmarkDecodeSample4_Vips_4K(b *testing.B) {
	benchDecode(b, newBackend(b), makeJPEG(b, 3840, 2160), 4)
}
