package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Skryldev/photo-affix/core"
	"github.com/Skryldev/photo-affix/engine"
	apperrors "github.com/Skryldev/photo-affix/errors"
)

func TestIterator_Exhaustion(t *testing.T) {
	ctx := context.Background()
	f := newFake(map[string]core.Size{"a": {Width: 2, Height: 4}, "b": {Width: 3, Height: 6}})
	it := engine.NewBitmapIterator(photos("a", "b"), f)

	if it.Index() != -1 {
		t.Fatalf("initial index: got %d, want -1", it.Index())
	}
	for i := 0; i < 2; i++ {
		if !it.HasNext() {
			t.Fatalf("HasNext false at %d", i)
		}
		if _, err := it.Next(ctx); err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
	}
	if it.HasNext() {
		t.Fatal("HasNext true after the last photo")
	}
	mustPanicContract(t, func() { _, _ = it.Next(ctx) })
}

func TestIterator_NextReadsBoundsOnly(t *testing.T) {
	f := newFake(map[string]core.Size{"a": {Width: 7, Height: 9}})
	it := engine.NewBitmapIterator(photos("a"), f)

	opts, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if opts.OutWidth != 7 || opts.OutHeight != 9 {
		t.Errorf("bounds: got %dx%d, want 7x9", opts.OutWidth, opts.OutHeight)
	}
	if f.pixelCalls != 0 {
		t.Errorf("Next decoded pixels %d times", f.pixelCalls)
	}
	if it.CurrentOptions() != opts {
		t.Error("CurrentOptions does not return the options from Next")
	}
}

func TestIterator_ResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFake(map[string]core.Size{"a": {Width: 1, Height: 1}, "b": {Width: 2, Height: 2}})
	it := engine.NewBitmapIterator(photos("a", "b"), f)

	if _, err := it.Next(ctx); err != nil {
		t.Fatal(err)
	}
	it.Reset()
	it.Reset()
	if it.Index() != -1 {
		t.Fatalf("index after double reset: got %d, want -1", it.Index())
	}
	if it.CurrentOptions() == nil {
		t.Error("Reset cleared the retained options")
	}

	var widths []int
	for it.HasNext() {
		opts, err := it.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		widths = append(widths, opts.OutWidth)
	}
	if len(widths) != 2 || widths[0] != 1 || widths[1] != 2 {
		t.Errorf("walk after reset: got %v, want [1 2]", widths)
	}
}

func TestIterator_CurrentBitmapBeforeNextPanics(t *testing.T) {
	f := newFake(map[string]core.Size{"a": {Width: 1, Height: 1}})
	it := engine.NewBitmapIterator(photos("a"), f)
	mustPanicContract(t, func() { _, _ = it.CurrentBitmap(context.Background()) })
}

func TestIterator_CurrentBitmapDecodesEveryCall(t *testing.T) {
	ctx := context.Background()
	f := newFake(map[string]core.Size{"a": {Width: 4, Height: 4}})
	it := engine.NewBitmapIterator(photos("a"), f)
	if _, err := it.Next(ctx); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		bmp, err := it.CurrentBitmap(ctx)
		if err != nil {
			t.Fatalf("CurrentBitmap: %v", err)
		}
		if bmp.Width() != 4 {
			t.Errorf("width: got %d, want 4", bmp.Width())
		}
		_ = bmp.Recycle()
	}
	if f.pixelCalls != 2 {
		t.Errorf("pixel decodes: got %d, want 2", f.pixelCalls)
	}
}

func TestIterator_ZeroBounds(t *testing.T) {
	f := newFake(map[string]core.Size{"a": {Width: 0, Height: 5}})
	it := engine.NewBitmapIterator(photos("a"), f)

	_, err := it.Next(context.Background())
	if !errors.Is(err, apperrors.ErrZeroBounds) {
		t.Fatalf("got %v, want ErrZeroBounds", err)
	}
	if !apperrors.IsCategory(err, apperrors.CategoryDecode) {
		t.Errorf("category: got %v, want decode", err)
	}
	if it.CurrentOptions() != nil {
		t.Error("failed Next retained options")
	}
}

func TestIterator_DecodeError(t *testing.T) {
	boom := errors.New("corrupt header")
	f := newFake(map[string]core.Size{"a": {Width: 1, Height: 1}})
	f.boundsErr["a"] = boom
	it := engine.NewBitmapIterator(photos("a"), f)

	if _, err := it.Next(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}
