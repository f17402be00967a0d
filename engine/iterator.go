// Package engine computes the size of a stitched image and composes it.
//
// Photos are never held in memory together: a BitmapIterator walks the
// list, first reading bounds only, then decoding one full bitmap at a time.
package engine

import (
	"context"
	"fmt"

	"github.com/Skryldev/photo-affix/core"
	apperrors "github.com/Skryldev/photo-affix/errors"
)

// BitmapIterator walks a fixed photo list.  Next reads the bounds of the
// following photo; CurrentBitmap decodes the pixels of the photo Next last
// returned.  It is not safe for concurrent use.
type BitmapIterator struct {
	photos []core.Photo
	m      core.BitmapManipulator

	cursor  int
	current *core.DecodeOptions
}

// NewBitmapIterator creates an iterator positioned before the first photo.
func NewBitmapIterator(photos []core.Photo, m core.BitmapManipulator) *BitmapIterator {
	return &BitmapIterator{photos: photos, m: m, cursor: -1}
}

// HasNext reports whether another photo follows the cursor.
func (it *BitmapIterator) HasNext() bool { return it.cursor+1 < len(it.photos) }

// Next advances and returns the bounds of the new current photo.  Calling it
// when HasNext is false panics with *errors.ContractError.
func (it *BitmapIterator) Next(ctx context.Context) (*core.DecodeOptions, error) {
	it.current = nil
	it.cursor++
	if it.cursor >= len(it.photos) {
		apperrors.Violation("iterator.next", "no more photos")
	}

	p := it.photos[it.cursor]
	opts := it.m.CreateOptions(true)
	if _, err := it.m.DecodePhoto(ctx, p, opts); err != nil {
		return nil, err
	}
	if opts.OutWidth == 0 || opts.OutHeight == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "iterator.next",
			fmt.Errorf("%s: %w", p.URI(), apperrors.ErrZeroBounds))
	}

	it.current = opts
	return opts, nil
}

// CurrentBitmap decodes the current photo at the sample size stored on the
// options Next returned.  Every call decodes again; the caller owns the
// result and must Recycle it.  Calling it before Next panics.
func (it *BitmapIterator) CurrentBitmap(ctx context.Context) (*core.Bitmap, error) {
	if it.current == nil || it.cursor < 0 {
		apperrors.Violation("iterator.current", "must call Next first")
	}
	it.current.BoundsOnly = false
	bmp, err := it.m.DecodePhoto(ctx, it.photos[it.cursor], it.current)
	if err != nil {
		return nil, err
	}
	if bmp == nil {
		return nil, apperrors.New(apperrors.CategoryDecode, "iterator.current",
			fmt.Errorf("%s: %w", it.photos[it.cursor].URI(), apperrors.ErrEmptyInput))
	}
	return bmp, nil
}

// Size returns the number of photos.
func (it *BitmapIterator) Size() int { return len(it.photos) }

// Reset moves the cursor before the first photo.  The retained options stay
// until the next call to Next.
func (it *BitmapIterator) Reset() { it.cursor = -1 }

// Index returns the cursor, -1 before the first Next.
func (it *BitmapIterator) Index() int { return it.cursor }

// CurrentOptions returns the options from the last successful Next, or nil.
func (it *BitmapIterator) CurrentOptions() *core.DecodeOptions { return it.current }

// Photos returns the list being walked.
func (it *BitmapIterator) Photos() []core.Photo { return it.photos }
