package engine_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/Skryldev/photo-affix/core"
	"github.com/Skryldev/photo-affix/engine"
	apperrors "github.com/Skryldev/photo-affix/errors"
)

// fakeManipulator serves fixed bounds per photo and allocates rasters of
// the reported size on full decodes.
type fakeManipulator struct {
	sizes       map[string]core.Size
	boundsErr   map[string]error
	pixelsErr   map[string]error
	createErr   error
	encodeErr   error
	boundsCalls int
	pixelCalls  int
	samples     []int
	decoded     []*core.Bitmap
	created     *core.Bitmap
	encodedTo   string
}

func newFake(sizes map[string]core.Size) *fakeManipulator {
	return &fakeManipulator{
		sizes:     sizes,
		boundsErr: map[string]error{},
		pixelsErr: map[string]error{},
	}
}

func (f *fakeManipulator) CreateOptions(boundsOnly bool) *core.DecodeOptions {
	return &core.DecodeOptions{BoundsOnly: boundsOnly, SampleSize: 1}
}

func (f *fakeManipulator) DecodePhoto(_ context.Context, p core.Photo, opts *core.DecodeOptions) (*core.Bitmap, error) {
	s := f.sizes[p.Data()]
	if opts.BoundsOnly {
		f.boundsCalls++
		if err := f.boundsErr[p.Data()]; err != nil {
			return nil, err
		}
		opts.OutWidth, opts.OutHeight, opts.OutFormat = s.Width, s.Height, core.FormatPNG
		return nil, nil
	}
	f.pixelCalls++
	f.samples = append(f.samples, opts.SampleSize)
	if err := f.pixelsErr[p.Data()]; err != nil {
		return nil, err
	}
	bmp := core.NewBitmap(image.NewRGBA(image.Rect(0, 0, s.Width, s.Height)), nil)
	f.decoded = append(f.decoded, bmp)
	return bmp, nil
}

func (f *fakeManipulator) CreateEmptyBitmap(w, h int) (*core.Bitmap, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if w <= 0 || h <= 0 {
		return nil, apperrors.ErrInvalidDimensions
	}
	f.created = core.NewBitmap(image.NewRGBA(image.Rect(0, 0, w, h)), nil)
	return f.created, nil
}

func (f *fakeManipulator) EncodeBitmap(_ context.Context, _ *core.Bitmap, _ core.Format, _ int, path string) error {
	f.encodedTo = path
	// Leave a partial file behind either way, like a codec that failed midway.
	if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
		return err
	}
	return f.encodeErr
}

// recordingCanvas captures draw calls instead of touching pixels.
type recordingCanvas struct {
	fills []color.Color
	draws []drawCall
	err   error
}

type drawCall struct {
	bmp  *core.Bitmap
	rect image.Rectangle
}

func (c *recordingCanvas) DrawColor(col color.Color) { c.fills = append(c.fills, col) }

func (c *recordingCanvas) DrawBitmap(b *core.Bitmap, dst image.Rectangle) error {
	c.draws = append(c.draws, drawCall{bmp: b, rect: dst})
	return c.err
}

func (c *recordingCanvas) creator() engine.CanvasCreator {
	return func(*core.Bitmap) (engine.Canvas, error) { return c, nil }
}

func photos(names ...string) []core.Photo {
	out := make([]core.Photo, len(names))
	for i, n := range names {
		out[i] = core.NewPhoto(int64(i+1), n, 0, nil)
	}
	return out
}

// mustPanicContract runs fn and fails unless it panics with a ContractError.
func mustPanicContract(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatal("expected panic, got none")
		}
		err, ok := r.(error)
		var ce *apperrors.ContractError
		if !ok || !errors.As(err, &ce) {
			t.Fatalf("expected *errors.ContractError panic, got %T: %v", r, r)
		}
	}()
	fn()
}
