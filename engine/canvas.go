package engine

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/photo-affix/config"
	"github.com/Skryldev/photo-affix/core"
	apperrors "github.com/Skryldev/photo-affix/errors"
)

// Canvas is the drawing surface StitchEngine composes onto.
type Canvas interface {
	// DrawColor floods the whole canvas, replacing what is there.
	DrawColor(c color.Color)
	// DrawBitmap scales b into dst.
	DrawBitmap(b *core.Bitmap, dst image.Rectangle) error
}

// CanvasCreator binds a Canvas to an output bitmap.
type CanvasCreator func(out *core.Bitmap) (Canvas, error)

// RasterCanvas draws with golang.org/x/image/draw.
type RasterCanvas struct {
	dst    draw.Image
	interp xdraw.Interpolator
}

// NewRasterCanvas binds a CatmullRom-filtered canvas to out.
func NewRasterCanvas(out *core.Bitmap) (Canvas, error) {
	return newRasterCanvas(out, xdraw.CatmullRom)
}

// RasterCanvasCreator returns a CanvasCreator using the named filter.
func RasterCanvasCreator(name config.Interpolation) CanvasCreator {
	interp := Interpolator(name)
	return func(out *core.Bitmap) (Canvas, error) { return newRasterCanvas(out, interp) }
}

func newRasterCanvas(out *core.Bitmap, interp xdraw.Interpolator) (Canvas, error) {
	dst, ok := out.Image().(draw.Image)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryInput, "canvas",
			fmt.Errorf("output bitmap %T is not drawable", out.Image()))
	}
	return &RasterCanvas{dst: dst, interp: interp}, nil
}

func (c *RasterCanvas) DrawColor(col color.Color) {
	draw.Draw(c.dst, c.dst.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

func (c *RasterCanvas) DrawBitmap(b *core.Bitmap, dst image.Rectangle) error {
	src := b.Image()
	if src == nil {
		return apperrors.New(apperrors.CategoryInput, "canvas.draw", apperrors.ErrEmptyInput)
	}
	c.interp.Scale(c.dst, dst, src, src.Bounds(), draw.Over, nil)
	return nil
}

// Interpolator maps a configured filter name to its x/image/draw scaler.
// Unknown names fall back to CatmullRom.
func Interpolator(name config.Interpolation) xdraw.Interpolator {
	switch name {
	case config.InterpNearest:
		return xdraw.NearestNeighbor
	case config.InterpBiLinear:
		return xdraw.BiLinear
	}
	return xdraw.CatmullRom
}
