package decoder

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/photo-affix/core"
)

// subsample shrinks img by an integer factor, rounding edges up so the
// result is never smaller than ceil(w/s) x ceil(h/s).
func subsample(img image.Image, s int) image.Image {
	if s <= 1 {
		return img
	}
	b := img.Bounds()
	w := (b.Dx() + s - 1) / s
	h := (b.Dy() + s - 1) / s
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// RegisterAll installs the pure-Go decoders in reg.
func RegisterAll(reg core.Registry) {
	reg.RegisterDecoder(core.FormatJPEG, NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, NewPNG())
	reg.RegisterDecoder(core.FormatWebP, NewWebP())
	reg.RegisterDecoder(core.FormatTIFF, NewTIFF())
	reg.RegisterDecoder(core.FormatBMP, NewBMP())
}
