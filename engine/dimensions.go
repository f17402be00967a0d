package engine

import (
	"context"
	"fmt"

	"github.com/Skryldev/photo-affix/config"
	"github.com/Skryldev/photo-affix/core"
	apperrors "github.com/Skryldev/photo-affix/errors"
	"github.com/Skryldev/photo-affix/utils"
)

// DimensionsEngine computes the output size of a stitch from photo bounds
// alone.
type DimensionsEngine struct {
	prefs  config.Preferences
	dp     core.DpConverter
	logger core.Logger
}

// Option configures the engines.
type Option func(*options)

type options struct {
	logger core.Logger
	canvas CanvasCreator
	hooks  []core.Hook
	scan   core.MediaScanner
}

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option { return func(o *options) { o.logger = l } }

// WithCanvasCreator replaces the raster canvas used by StitchEngine.
func WithCanvasCreator(c CanvasCreator) Option { return func(o *options) { o.canvas = c } }

// WithHook registers a stage hook on AffixEngine.
func WithHook(h core.Hook) Option { return func(o *options) { o.hooks = append(o.hooks, h) } }

// WithMediaScanner sets the scanner AffixEngine notifies after a commit.
func WithMediaScanner(s core.MediaScanner) Option { return func(o *options) { o.scan = s } }

func buildOptions(opts []Option) options {
	o := options{logger: core.NopLogger{}, canvas: NewRasterCanvas}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = core.NopLogger{}
	}
	return o
}

// NewDimensionsEngine creates a DimensionsEngine.
func NewDimensionsEngine(prefs config.Preferences, dp core.DpConverter, opts ...Option) *DimensionsEngine {
	o := buildOptions(opts)
	return &DimensionsEngine{prefs: prefs, dp: dp, logger: o.logger}
}

// CalculateSize walks it twice.  The first pass finds the largest and
// smallest cross-axis extent; the second scales every photo to the one
// ScalePriority selects and sums the main-axis extents.  An empty list
// yields a zero size and no error.
func (e *DimensionsEngine) CalculateSize(ctx context.Context, it *BitmapIterator) core.SizingResult {
	if it.Size() == 0 {
		return core.SizingResult{}
	}
	ax := axisOf(e.prefs)

	maxCross, minCross := -1, -1
	it.Reset()
	for it.HasNext() {
		opts, err := e.next(ctx, it)
		if err != nil {
			return e.fail(it, err)
		}
		_, cross := ax.split(opts.OutWidth, opts.OutHeight)
		if maxCross == -1 || cross > maxCross {
			maxCross = cross
		}
		if minCross == -1 || cross < minCross {
			minCross = cross
		}
	}

	target := minCross
	if e.prefs.ScalePriority {
		target = maxCross
	}

	totalMain := 0
	it.Reset()
	for it.HasNext() {
		opts, err := e.next(ctx, it)
		if err != nil {
			return e.fail(it, err)
		}
		main, cross := ax.split(opts.OutWidth, opts.OutHeight)
		if (e.prefs.ScalePriority && cross < target) || (!e.prefs.ScalePriority && cross > target) {
			main, _ = utils.ScaleToCross(main, cross, target)
		}
		totalMain += main
	}

	totalMain += spacingPx(e.prefs, e.dp) * (it.Size() - 1)
	size := ax.join(totalMain, target)
	e.logger.Debug("dimensions.calculated",
		"axis", ax.String(),
		"photos", it.Size(),
		"width", size.Width,
		"height", size.Height,
	)
	return core.SizingResult{Size: size}
}

func (e *DimensionsEngine) next(ctx context.Context, it *BitmapIterator) (*core.DecodeOptions, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "dimensions", err)
	}
	return it.Next(ctx)
}

func (e *DimensionsEngine) fail(it *BitmapIterator, err error) core.SizingResult {
	idx := it.Index()
	it.Reset()
	e.logger.Warn("dimensions.failed", "index", idx, "error", err.Error())
	return core.SizingResult{
		Err: apperrors.Wrap(apperrors.CategoryDecode, "dimensions",
			fmt.Errorf("unable to read the size of photo %d: %w", idx+1, err)),
	}
}
