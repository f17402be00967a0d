package encoder

import (
	"context"
	"image"
	"image/png"
	"io"

	"github.com/Skryldev/photo-affix/core"
	apperrors "github.com/Skryldev/photo-affix/errors"
)

// PNG encodes images to PNG format.  PNG is lossless, so the quality option
// selects the compression effort instead: 0 keeps the default, values at or
// above 90 trade speed for size.
type PNG struct{}

func NewPNG() *PNG { return &PNG{} }

func (p *PNG) CanEncode(format core.Format) bool { return format == core.FormatPNG }

func (p *PNG) Encode(ctx context.Context, w io.Writer, img image.Image, opts core.EncodeOptions) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, "png.encode", err)
	}
	if img == nil {
		return apperrors.New(apperrors.CategoryEncode, "png.encode", apperrors.ErrEmptyInput)
	}

	enc := &png.Encoder{CompressionLevel: png.DefaultCompression}
	if opts.Quality >= 90 {
		enc.CompressionLevel = png.BestCompression
	}

	if err := enc.Encode(w, img); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, "png.encode", err)
	}
	return nil
}

// RegisterAll installs the output encoders in reg.
func RegisterAll(reg core.Registry, defaultQuality int) {
	reg.RegisterEncoder(core.FormatJPEG, NewJPEG(defaultQuality))
	reg.RegisterEncoder(core.FormatPNG, NewPNG())
}
