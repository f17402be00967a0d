// Package vips decodes photos with libvips.  Its shrink-on-load path never
// materialises the full-resolution raster when a sample size is requested.
package vips

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // header readers for DecodeConfig
	"image/png"
	"io"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Skryldev/photo-affix/core"
	apperrors "github.com/Skryldev/photo-affix/errors"
	"github.com/Skryldev/photo-affix/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	MaxCacheSize int
	MaxWorkers   int
	ReportLeaks  bool
}

// Backend is a libvips-powered core.Decoder.
// Safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
		CollectStats:     true,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

func (b *Backend) CanDecode(f core.Format) bool {
	switch f {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP, core.FormatTIFF:
		return true
	}
	return false
}

// DecodeConfig reads the image header with the pure-Go codecs.  Handing
// the photo to libvips would mean reading the whole file for every sizing
// pass.
func (b *Backend) DecodeConfig(ctx context.Context, r io.Reader) (image.Config, error) {
	if err := ctx.Err(); err != nil {
		return image.Config{}, apperrors.Wrap(apperrors.CategoryDecode, "vips.bounds", err)
	}
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return image.Config{}, apperrors.Wrap(apperrors.CategoryDecode, "vips.bounds", err)
	}
	return cfg, nil
}

// ShrinksOnLoad reports that Decode applies the sample size inside libvips.
func (b *Backend) ShrinksOnLoad() bool { return true }

// Decode loads the image.  A sample size above 1 goes through
// vips_thumbnail, which lets JPEG and WebP shrink while decoding.
func (b *Backend) Decode(ctx context.Context, r io.Reader, sampleSize int) (image.Image, error) {
	raw, release, err := source(ctx, r, "vips.decode")
	if err != nil {
		return nil, err
	}
	defer release()

	var ref *govips.ImageRef
	if sampleSize > 1 {
		probe, err := govips.NewImageFromBuffer(raw)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
		}
		w := (probe.Width() + sampleSize - 1) / sampleSize
		h := (probe.Height() + sampleSize - 1) / sampleSize
		probe.Close()
		ref, err = govips.NewThumbnailFromBuffer(raw, w, h, govips.InterestingNone)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.thumbnail", err)
		}
	} else {
		ref, err = govips.NewImageFromBuffer(raw)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
		}
	}
	defer ref.Close()

	return toImage(ref)
}

// toImage hands pixels over to Go through a fast, uncompressed PNG.
func toImage(ref *govips.ImageRef) (image.Image, error) {
	ep := govips.NewPngExportParams()
	ep.Compression = 0
	ep.StripMetadata = true
	buf, _, err := ref.ExportPng(ep)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.export", err)
	}
	img, err := png.Decode(utils.BytesReader(buf))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.export", fmt.Errorf("png handoff: %w", err))
	}
	return img, nil
}

// source returns the encoded bytes behind r.  A *bytes.Buffer, as handed
// over by core.Manipulator, is used in place; anything else is drained into
// a pooled buffer.  release must be called once libvips is done with the
// bytes.
func source(ctx context.Context, r io.Reader, op string) ([]byte, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	if b, ok := r.(*bytes.Buffer); ok {
		return b.Bytes(), func() {}, nil
	}
	buf, err := utils.DrainReader(ctx, r, 32*1024)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CategoryDecode, op+".drain", err)
	}
	return buf.Bytes(), func() { utils.ReleaseBuffer(buf) }, nil
}

// RegisterVipsBackend replaces the pure-Go decoders with libvips for every
// format it reads.
func RegisterVipsBackend(reg core.Registry, b *Backend) {
	for _, f := range []core.Format{core.FormatJPEG, core.FormatPNG, core.FormatWebP, core.FormatTIFF} {
		reg.RegisterDecoder(f, b)
	}
}

var (
	_ core.Decoder          = (*Backend)(nil)
	_ core.ShrinkingDecoder = (*Backend)(nil)
)
