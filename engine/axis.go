package engine

import (
	"image"

	"github.com/Skryldev/photo-affix/config"
	"github.com/Skryldev/photo-affix/core"
)

// axis maps width/height onto the stacking (main) and perpendicular (cross)
// axes, so horizontal and vertical layouts share one code path.
type axis struct {
	horizontal bool
}

func axisOf(p config.Preferences) axis { return axis{horizontal: p.StackHorizontally} }

// split returns (main, cross) for a width/height pair.
func (a axis) split(w, h int) (int, int) {
	if a.horizontal {
		return w, h
	}
	return h, w
}

// join is the inverse of split.
func (a axis) join(main, cross int) core.Size {
	if a.horizontal {
		return core.Size{Width: main, Height: cross}
	}
	return core.Size{Width: cross, Height: main}
}

// rect places an element of the given main/cross extent at offset along
// the main axis, flush with the origin on the cross axis.
func (a axis) rect(offset, main, cross int) image.Rectangle {
	if a.horizontal {
		return image.Rect(offset, 0, offset+main, cross)
	}
	return image.Rect(0, offset, cross, offset+main)
}

func (a axis) String() string {
	if a.horizontal {
		return "horizontal"
	}
	return "vertical"
}

// spacingPx converts the configured spacing along the stacking axis to
// whole pixels.
func spacingPx(p config.Preferences, dp core.DpConverter) int {
	return int(dp.ToPixels(p.SpacingDp()))
}
