package core

import (
	"errors"

	apperrors "github.com/Skryldev/photo-affix/errors"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatTIFF    Format = "tiff"
	FormatBMP     Format = "bmp"
	FormatUnknown Format = "unknown"
)

// Extension returns the file extension used when persisting the format,
// including the leading dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatWebP:
		return ".webp"
	case FormatTIFF:
		return ".tiff"
	case FormatBMP:
		return ".bmp"
	}
	return ""
}

// MIMEType returns the media type of the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatUnknown, "":
		return "application/octet-stream"
	}
	return "image/" + string(f)
}

// ParseFormat maps user input ("png", "jpg", "jpeg", ".png") to a Format.
func ParseFormat(s string) Format {
	switch s {
	case "jpg", "jpeg", ".jpg", ".jpeg", "JPG", "JPEG":
		return FormatJPEG
	case "png", ".png", "PNG":
		return FormatPNG
	case "webp", ".webp":
		return FormatWebP
	case "tif", "tiff", ".tif", ".tiff":
		return FormatTIFF
	case "bmp", ".bmp":
		return FormatBMP
	}
	return FormatUnknown
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int
	Height int
}

// IsZero reports whether s is the "nothing computed" sentinel.
func (s Size) IsZero() bool { return s.Width <= 0 || s.Height <= 0 }

// DecodeOptions carries decode parameters in and decoded bounds out, the
// way a single options value travels through a bounds probe and the full
// decode that follows it.
type DecodeOptions struct {
	// BoundsOnly asks the codec to read dimensions without pixel data.
	BoundsOnly bool
	// SampleSize is the integer shrink factor applied during a full decode.
	// Values below 1 are treated as 1.
	SampleSize int

	// Filled by a bounds-only decode: the source dimensions and format.
	OutWidth  int
	OutHeight int
	OutFormat Format
}

// Bounds returns the decoded source dimensions.
func (o *DecodeOptions) Bounds() Size {
	return Size{Width: o.OutWidth, Height: o.OutHeight}
}

// SizingResult is the outcome of a dimensions pass.  Callers check Err
// before using Size.
type SizingResult struct {
	Size Size
	Err  error
}

// IsError reports whether the pass failed.
func (r SizingResult) IsError() bool { return r.Err != nil }

// HasSize reports whether a usable output size was computed.
func (r SizingResult) HasSize() bool { return r.Err == nil && !r.Size.IsZero() }

// ProcessingResult is the outcome of one stitch pass.
type ProcessingResult struct {
	Processed int
	Output    *Bitmap // nil on total failure
	Format    Format
	Quality   int
	Err       error
}

// None reports whether no source made it onto the output.
func (r ProcessingResult) None() bool { return r.Processed == 0 }

// IsError reports whether the pass failed.
func (r ProcessingResult) IsError() bool { return r.Err != nil }

// Recycle releases the output raster, if any.
func (r ProcessingResult) Recycle() error {
	if r.Output == nil {
		return nil
	}
	return r.Output.Recycle()
}

// CommitResult is the outcome of persisting a stitched image.
type CommitResult struct {
	OutputPath string
	URI        string
	Err        error
	// Cause is the stitch failure behind a zero-progress commit.  It is nil
	// when there was simply nothing to stitch.
	Cause error
}

// IsError reports whether the commit failed.
func (r CommitResult) IsError() bool { return r.Err != nil }

// NothingProcessed reports the zero-progress outcome, which callers treat
// apart from ordinary failures.
func (r CommitResult) NothingProcessed() bool {
	return errors.Is(r.Err, apperrors.ErrNothingProcessed)
}

// FormatFromMIME maps MIME types to Format values.
func FormatFromMIME(ct string) Format {
	switch ct {
	case "image/jpeg", "image/jpg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/webp":
		return FormatWebP
	case "image/tiff":
		return FormatTIFF
	case "image/bmp", "image/x-ms-bmp":
		return FormatBMP
	}
	return FormatUnknown
}
