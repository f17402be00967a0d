package decoder

import (
	"context"
	"image"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/Skryldev/photo-affix/core"
	apperrors "github.com/Skryldev/photo-affix/errors"
)

// codecFuncs is the pair of package-level functions every x/image codec
// exposes.
type codecFuncs struct {
	name   string
	format core.Format
	config func(io.Reader) (image.Config, error)
	decode func(io.Reader) (image.Image, error)
}

// XImage decodes one of the formats golang.org/x/image supports.
// NOTE: golang.org/x/image/webp only supports still images.
type XImage struct {
	c codecFuncs
}

func NewWebP() *XImage {
	return &XImage{codecFuncs{"webp", core.FormatWebP, webp.DecodeConfig, webp.Decode}}
}

func NewTIFF() *XImage {
	return &XImage{codecFuncs{"tiff", core.FormatTIFF, tiff.DecodeConfig, tiff.Decode}}
}

func NewBMP() *XImage {
	return &XImage{codecFuncs{"bmp", core.FormatBMP, bmp.DecodeConfig, bmp.Decode}}
}

func (x *XImage) CanDecode(format core.Format) bool { return format == x.c.format }

func (x *XImage) DecodeConfig(ctx context.Context, r io.Reader) (image.Config, error) {
	op := x.c.name + ".bounds"
	if err := ctx.Err(); err != nil {
		return image.Config{}, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	cfg, err := x.c.config(r)
	if err != nil {
		return image.Config{}, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	return cfg, nil
}

func (x *XImage) Decode(ctx context.Context, r io.Reader, sampleSize int) (image.Image, error) {
	op := x.c.name + ".decode"
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	img, err := x.c.decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	return subsample(img, sampleSize), nil
}
