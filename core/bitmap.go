package core

import (
	"image"
	"sync"
)

// Bitmap is a decoded raster.  Its pixels belong to whoever holds the
// Bitmap until Recycle is called.
type Bitmap struct {
	img     image.Image
	bounds  image.Rectangle
	release func() error

	mu       sync.Mutex
	recycled bool
}

// NewBitmap wraps img.  release, when non-nil, runs once on Recycle.
func NewBitmap(img image.Image, release func() error) *Bitmap {
	return &Bitmap{img: img, bounds: img.Bounds(), release: release}
}

// Image returns the underlying raster, or nil once recycled.
func (b *Bitmap) Image() image.Image {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.img
}

func (b *Bitmap) Width() int  { return b.bounds.Dx() }
func (b *Bitmap) Height() int { return b.bounds.Dy() }

// Bounds returns the raster bounds.  They stay valid after Recycle.
func (b *Bitmap) Bounds() image.Rectangle { return b.bounds }

// Recycle drops the pixel buffer.  Calling it twice is a no-op.
func (b *Bitmap) Recycle() error {
	b.mu.Lock()
	if b.recycled {
		b.mu.Unlock()
		return nil
	}
	b.recycled = true
	b.img = nil
	release := b.release
	b.mu.Unlock()

	if release != nil {
		return release()
	}
	return nil
}

// Recycled reports whether Recycle has run.
func (b *Bitmap) Recycled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recycled
}
