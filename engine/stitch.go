package engine

import (
	"context"
	"fmt"

	"github.com/Skryldev/photo-affix/config"
	"github.com/Skryldev/photo-affix/core"
	apperrors "github.com/Skryldev/photo-affix/errors"
	"github.com/Skryldev/photo-affix/utils"
)

// StitchEngine composes the photos of an iterator onto one raster.
type StitchEngine struct {
	prefs  config.Preferences
	dp     core.DpConverter
	m      core.BitmapManipulator
	canvas CanvasCreator
	logger core.Logger
}

// NewStitchEngine creates a StitchEngine.
func NewStitchEngine(prefs config.Preferences, dp core.DpConverter, m core.BitmapManipulator, opts ...Option) *StitchEngine {
	o := buildOptions(opts)
	return &StitchEngine{prefs: prefs, dp: dp, m: m, canvas: o.canvas, logger: o.logger}
}

// Stitch draws every photo of it, in order, onto a resultWidth x
// resultHeight raster.  scale is the factor the user confirmed against the
// computed size; spacing is scaled by it too.  Only one decoded photo is
// alive at a time.  Any failure releases the output and reports zero
// photos processed.
func (e *StitchEngine) Stitch(ctx context.Context, it *BitmapIterator, scale float64, resultWidth, resultHeight int, format core.Format, quality int) core.ProcessingResult {
	if it.Size() == 0 {
		return core.ProcessingResult{Format: format, Quality: quality}
	}

	out, err := e.m.CreateEmptyBitmap(resultWidth, resultHeight)
	if err != nil {
		return core.ProcessingResult{Format: format, Quality: quality, Err: e.wrap(err)}
	}
	canvas, err := e.canvas(out)
	if err != nil {
		e.recycle(out, "output")
		return core.ProcessingResult{Format: format, Quality: quality, Err: e.wrap(err)}
	}
	if bg := e.prefs.BgFillColor; !bg.IsTransparent() {
		canvas.DrawColor(bg.NRGBA())
	}

	ax := axisOf(e.prefs)
	_, resultCross := ax.split(resultWidth, resultHeight)
	spacing := int(float64(spacingPx(e.prefs, e.dp)) * scale)

	processed := 0
	offset := 0
	it.Reset()
	for it.HasNext() {
		if err := ctx.Err(); err != nil {
			return e.abort(it, out, format, quality, err)
		}
		opts, err := it.Next(ctx)
		if err != nil {
			return e.abort(it, out, format, quality, err)
		}

		srcMain, srcCross := ax.split(opts.OutWidth, opts.OutHeight)
		main := utils.RoundNonZero(float64(srcMain) * scale)
		cross := utils.RoundNonZero(float64(srcCross) * scale)
		if (e.prefs.ScalePriority && cross < resultCross) || (!e.prefs.ScalePriority && cross > resultCross) {
			main, cross = utils.ScaleToCross(srcMain, srcCross, resultCross)
		}

		dst := ax.rect(offset, main, cross)
		opts.SampleSize = utils.SampleSize(srcCross, cross)

		bmp, err := it.CurrentBitmap(ctx)
		if err != nil {
			return e.abort(it, out, format, quality, err)
		}
		drawErr := canvas.DrawBitmap(bmp, dst)
		e.recycle(bmp, it.Photos()[it.Index()].URI())
		if drawErr != nil {
			return e.abort(it, out, format, quality, drawErr)
		}

		processed++
		offset += main + spacing
	}

	e.logger.Debug("stitch.done",
		"axis", ax.String(),
		"processed", processed,
		"width", resultWidth,
		"height", resultHeight,
	)
	return core.ProcessingResult{Processed: processed, Output: out, Format: format, Quality: quality}
}

func (e *StitchEngine) abort(it *BitmapIterator, out *core.Bitmap, format core.Format, quality int, err error) core.ProcessingResult {
	idx := it.Index()
	it.Reset()
	e.recycle(out, "output")
	e.logger.Warn("stitch.failed", "index", idx, "error", err.Error())
	return core.ProcessingResult{
		Format:  format,
		Quality: quality,
		Err:     e.wrap(fmt.Errorf("photo %d: %w", idx+1, err)),
	}
}

func (e *StitchEngine) wrap(err error) error {
	return apperrors.Wrap(apperrors.CategoryDecode, "stitch",
		fmt.Errorf("unable to stitch your photos: %w", err))
}

func (e *StitchEngine) recycle(b *core.Bitmap, what string) {
	if err := b.Recycle(); err != nil {
		e.logger.Warn("stitch.recycle.failed", "bitmap", what, "error", err.Error())
	}
}
