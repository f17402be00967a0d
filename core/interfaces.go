package core

import (
	"context"
	"image"
	"io"
	"time"
)

// Decoder turns an encoded stream into pixels.
// Implementations live in adapters/decoder/ and adapters/vips/.
type Decoder interface {
	// DecodeConfig reads only the header of r and reports its bounds.
	DecodeConfig(ctx context.Context, r io.Reader) (image.Config, error)
	// Decode reads r fully.  sampleSize > 1 asks for an image shrunk by that
	// integer factor along both axes.
	Decode(ctx context.Context, r io.Reader, sampleSize int) (image.Image, error)
	// CanDecode reports whether this decoder handles the given format hint.
	CanDecode(format Format) bool
}

// ShrinkingDecoder is implemented by decoders that apply the sample size
// while decoding, so the full-resolution raster is never allocated.  The
// pixel budget for any other decoder is checked against the full bounds.
type ShrinkingDecoder interface {
	ShrinksOnLoad() bool
}

// Encoder serialises pixels in a target format.
// Implementations live in adapters/encoder/.
type Encoder interface {
	Encode(ctx context.Context, w io.Writer, img image.Image, opts EncodeOptions) error
	CanEncode(format Format) bool
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality int // 1-100; 0 = use encoder default
}

// Registry maps Format values to Decoder/Encoder implementations.
type Registry interface {
	DecoderFor(format Format) (Decoder, bool)
	EncoderFor(format Format) (Encoder, bool)
	RegisterDecoder(format Format, d Decoder)
	RegisterEncoder(format Format, e Encoder)
}

// BitmapManipulator is the decode/encode capability the engines depend on.
type BitmapManipulator interface {
	// CreateOptions returns a fresh options value.
	CreateOptions(boundsOnly bool) *DecodeOptions
	// DecodePhoto decodes p.  With opts.BoundsOnly it fills the Out* fields
	// and returns a nil bitmap.
	DecodePhoto(ctx context.Context, p Photo, opts *DecodeOptions) (*Bitmap, error)
	// CreateEmptyBitmap allocates a fully transparent raster.
	CreateEmptyBitmap(width, height int) (*Bitmap, error)
	// EncodeBitmap writes b to path in the given format.
	EncodeBitmap(ctx context.Context, b *Bitmap, format Format, quality int, path string) error
}

// IoManager provides output files and opens photo references.
type IoManager interface {
	// MakeTempFile creates an empty output file with the given extension and
	// returns its path.
	MakeTempFile(ext string) (string, error)
	// OpenStream opens a photo URI for reading.
	OpenStream(ctx context.Context, uri string) (io.ReadCloser, error)
}

// MediaScanner registers a freshly written file and returns the URI a viewer
// should open.
type MediaScanner interface {
	Scan(ctx context.Context, path string, format Format) (string, error)
}

// DpConverter turns density-independent spacing into pixels.
type DpConverter interface {
	ToPixels(dp int) float64
}

// Density is a DpConverter with a fixed pixels-per-dp factor.
type Density float64

func (d Density) ToPixels(dp int) float64 { return float64(dp) * float64(d) }

// Hook receives engine stage events (sizing, stitch, encode, scan).
type Hook interface {
	BeforeStage(ctx context.Context, stage string, photos int)
	AfterStage(ctx context.Context, stage string, photos int, d time.Duration, err error)
}

// MetricsCollector receives performance observations from the engines.
type MetricsCollector interface {
	RecordProcessingTime(stage string, d interface{ Seconds() float64 })
	RecordPhotos(n int64)
	RecordPixels(n int64)
	RecordError(stage string, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
