// Package decoder provides format-specific image decoders.
package decoder

import (
	"context"
	"image"
	"image/jpeg"
	"io"

	"github.com/Skryldev/photo-affix/core"
	apperrors "github.com/Skryldev/photo-affix/errors"
)

// JPEG decodes JPEG images using the standard library.
type JPEG struct{}

// NewJPEG returns an initialised JPEG decoder.
func NewJPEG() *JPEG { return &JPEG{} }

func (j *JPEG) CanDecode(format core.Format) bool {
	return format == core.FormatJPEG
}

func (j *JPEG) DecodeConfig(ctx context.Context, r io.Reader) (image.Config, error) {
	if err := ctx.Err(); err != nil {
		return image.Config{}, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.bounds", err)
	}
	cfg, err := jpeg.DecodeConfig(r)
	if err != nil {
		return image.Config{}, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.bounds", err)
	}
	return cfg, nil
}

func (j *JPEG) Decode(ctx context.Context, r io.Reader, sampleSize int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.decode", err)
	}

	img, err := jpeg.Decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "jpeg.decode", err)
	}
	return subsample(img, sampleSize), nil
}
