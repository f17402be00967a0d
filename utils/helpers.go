package utils

import (
	"bytes"
	"math"
	"net/http"
)

const (
	formatJPEG    = "jpeg"
	formatPNG     = "png"
	formatWebP    = "webp"
	formatTIFF    = "tiff"
	formatBMP     = "bmp"
	formatUnknown = "unknown"
)

// SniffLen is the number of leading bytes DetectFormat looks at.
const SniffLen = 512

// signature is a magic number found at a fixed offset in a photo header.
type signature struct {
	offset int
	magic  string
	format string
}

// signatures is checked in order.  WebP needs both halves of its RIFF header.
var signatures = []signature{
	{0, "\xFF\xD8\xFF", formatJPEG},
	{0, "\x89PNG", formatPNG},
	{8, "WEBP", formatWebP},
	{0, "II*\x00", formatTIFF},
	{0, "MM\x00*", formatTIFF},
	{0, "BM", formatBMP},
}

// sniffedTypes maps net/http content types onto format names.
var sniffedTypes = map[string]string{
	"image/jpeg": formatJPEG,
	"image/png":  formatPNG,
	"image/webp": formatWebP,
	"image/bmp":  formatBMP,
}

// DetectFormat sniffs the leading bytes of data and returns the image format.
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return formatUnknown
	}
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(data) < end || string(data[sig.offset:end]) != sig.magic {
			continue
		}
		if sig.format == formatWebP && !bytes.HasPrefix(data, []byte("RIFF")) {
			continue
		}
		return sig.format
	}
	if f, ok := sniffedTypes[http.DetectContentType(data)]; ok {
		return f
	}
	return formatUnknown
}

// RoundNonZero rounds f half away from zero, mapping a zero result to 1 so a
// scaled edge never collapses to an empty rectangle.
func RoundNonZero(f float64) int {
	r := int(math.Round(f))
	if r == 0 {
		return 1
	}
	return r
}

// ScaleToCross rescales a (main, cross) pair so that cross becomes target,
// keeping the aspect ratio.  main is rounded with RoundNonZero.
func ScaleToCross(main, cross, target int) (int, int) {
	if cross == target || cross <= 0 {
		return main, cross
	}
	ratio := float64(main) / float64(cross)
	return RoundNonZero(float64(target) * ratio), target
}

// SampleSize returns the integer factor a decoder may shrink a source edge of
// length decoded by while staying at least as large as dest.  The result is
// never below 1.
func SampleSize(decoded, dest int) int {
	if decoded <= 0 || dest <= 0 {
		return 1
	}
	s := decoded / dest
	if s < 1 {
		return 1
	}
	return s
}

// BytesReader creates an io.Reader backed by b without allocation.
func BytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
