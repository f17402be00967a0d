package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"runtime"
	"strings"

	apperrors "github.com/Skryldev/photo-affix/errors"
	"github.com/Skryldev/photo-affix/utils"
)

// Limits bounds the memory a single decode or raster may claim.  Zero
// disables a limit.
type Limits struct {
	MaxSourceBytes  int64
	MaxRasterPixels int64
}

// Manipulator is the default BitmapManipulator.  It opens photos through an
// IoManager, sniffs their format and dispatches to the Registry.
type Manipulator struct {
	registry Registry
	io       IoManager
	limits   Limits
	logger   Logger
}

// NewManipulator creates a Manipulator.
func NewManipulator(reg Registry, io IoManager, limits Limits) *Manipulator {
	return &Manipulator{registry: reg, io: io, limits: limits, logger: NopLogger{}}
}

// SetLogger attaches a structured logger.
func (m *Manipulator) SetLogger(l Logger) {
	if l != nil {
		m.logger = l
	}
}

// Registry returns the codec registry so callers can add codecs after
// construction.
func (m *Manipulator) Registry() Registry { return m.registry }

func (m *Manipulator) CreateOptions(boundsOnly bool) *DecodeOptions {
	return &DecodeOptions{BoundsOnly: boundsOnly, SampleSize: 1}
}

func (m *Manipulator) DecodePhoto(ctx context.Context, p Photo, opts *DecodeOptions) (bmp *Bitmap, err error) {
	if opts == nil {
		opts = m.CreateOptions(false)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "decode.open", err)
	}

	rc, err := m.io.OpenStream(ctx, p.URI())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "decode.open", err)
	}
	defer rc.Close()

	if opts.BoundsOnly {
		br := bufio.NewReaderSize(rc, utils.SniffLen)
		head, _ := br.Peek(utils.SniffLen)
		format := Format(utils.DetectFormat(head))
		dec, err := m.decoderFor(format)
		if err != nil {
			return nil, err
		}
		cfg, err := dec.DecodeConfig(ctx, br)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryDecode, "decode.bounds", fmt.Errorf("%s: %w", p.URI(), err))
		}
		opts.OutWidth, opts.OutHeight, opts.OutFormat = cfg.Width, cfg.Height, format
		return nil, nil
	}

	sample := opts.SampleSize
	if sample < 1 {
		sample = 1
	}

	var r io.Reader = rc
	if m.limits.MaxSourceBytes > 0 {
		r = &utils.LimitedReader{R: rc, Max: m.limits.MaxSourceBytes}
	}
	buf, err := utils.DrainReader(ctx, r, 0)
	if err != nil {
		if errors.Is(err, utils.ErrTooLarge) {
			err = fmt.Errorf("%s exceeds %d bytes: %w", p.URI(), m.limits.MaxSourceBytes, apperrors.ErrLowMemory)
		}
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "decode.read", err)
	}
	defer utils.ReleaseBuffer(buf)

	format := Format(utils.DetectFormat(buf.Bytes()))
	dec, err := m.decoderFor(format)
	if err != nil {
		return nil, err
	}
	if opts.OutWidth > 0 && opts.OutHeight > 0 {
		w, h := opts.OutWidth, opts.OutHeight
		if sd, ok := dec.(ShrinkingDecoder); ok && sd.ShrinksOnLoad() {
			w, h = ceilDiv(w, sample), ceilDiv(h, sample)
		}
		if err := m.checkPixels("decode.pixels", w, h); err != nil {
			return nil, err
		}
	}

	// The decoder reads buf in place; it goes back to the pool once the
	// pixels have been copied out.
	defer recoverAlloc("decode.pixels", &err)
	img, err := dec.Decode(ctx, buf, sample)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "decode.pixels", fmt.Errorf("%s: %w", p.URI(), err))
	}
	return NewBitmap(img, nil), nil
}

func ceilDiv(n, d int) int { return (n + d - 1) / d }

func (m *Manipulator) CreateEmptyBitmap(width, height int) (bmp *Bitmap, err error) {
	if width <= 0 || height <= 0 {
		return nil, apperrors.New(apperrors.CategoryInput, "bitmap.create",
			fmt.Errorf("%dx%d: %w", width, height, apperrors.ErrInvalidDimensions))
	}
	if err := m.checkPixels("bitmap.create", width, height); err != nil {
		return nil, err
	}
	defer recoverAlloc("bitmap.create", &err)
	return NewBitmap(image.NewRGBA(image.Rect(0, 0, width, height)), nil), nil
}

func (m *Manipulator) EncodeBitmap(ctx context.Context, b *Bitmap, format Format, quality int, path string) error {
	if b == nil || b.Image() == nil {
		return apperrors.New(apperrors.CategoryEncode, "encode", apperrors.ErrEmptyInput)
	}
	enc, ok := m.registry.EncoderFor(format)
	if !ok || !enc.CanEncode(format) {
		return apperrors.New(apperrors.CategoryEncode, "encode",
			fmt.Errorf("%s: %w", format, apperrors.ErrUnsupportedFormat))
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "encode.open", err)
	}
	w := bufio.NewWriter(f)
	if err := enc.Encode(ctx, w, b.Image(), EncodeOptions{Quality: quality}); err != nil {
		f.Close()
		return apperrors.Wrap(apperrors.CategoryEncode, "encode", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return apperrors.Wrap(apperrors.CategoryStorage, "encode.flush", err)
	}
	if err := f.Close(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "encode.close", err)
	}
	m.logger.Debug("bitmap.encoded", "path", path, "format", format, "quality", quality)
	return nil
}

func (m *Manipulator) decoderFor(format Format) (Decoder, error) {
	dec, ok := m.registry.DecoderFor(format)
	if !ok || !dec.CanDecode(format) {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode",
			fmt.Errorf("%s: %w", format, apperrors.ErrUnsupportedFormat))
	}
	return dec, nil
}

func (m *Manipulator) checkPixels(op string, w, h int) error {
	if m.limits.MaxRasterPixels <= 0 {
		return nil
	}
	if int64(w)*int64(h) > m.limits.MaxRasterPixels {
		return apperrors.New(apperrors.CategoryMemory, op,
			fmt.Errorf("%dx%d over budget of %d pixels: %w", w, h, m.limits.MaxRasterPixels, apperrors.ErrLowMemory))
	}
	return nil
}

// recoverAlloc converts an allocation panic (an impossible slice length)
// into ErrLowMemory.  Any other panic is re-raised.
func recoverAlloc(op string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	if re, ok := r.(runtime.Error); ok && isAllocFailure(re.Error()) {
		*err = apperrors.New(apperrors.CategoryMemory, op, fmt.Errorf("%v: %w", re, apperrors.ErrLowMemory))
		return
	}
	panic(r)
}

func isAllocFailure(msg string) bool {
	return strings.Contains(msg, "makeslice") || strings.Contains(msg, "out of memory")
}
