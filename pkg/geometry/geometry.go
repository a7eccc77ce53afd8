// Package geometry applies the view transform to a raw frame: horizontal
// mirroring, zoom-cropping with pan, and additive brightness adjustment.
package geometry

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Zoom and brightness bounds accepted by the transform.
const (
	ZoomMin = 1.0
	ZoomMax = 5.0

	BrightnessMin = -50
	BrightnessMax = 100
)

// Pan is a pair of fractional view offsets. The valid range depends on the
// current zoom: at zoom 1.0 no panning is possible, at zoom 3.0 the view can
// shift by up to 2/3 of the frame in either direction.
type Pan struct {
	X float64
	Y float64
}

// MaxPan returns the largest valid pan magnitude at the given zoom.
func MaxPan(zoom float64) float64 {
	if zoom <= 0 {
		return 0
	}
	return math.Max(0, 1-1/zoom)
}

// Clamp limits the pan to the range valid at the given zoom. Pan must be
// re-clamped whenever zoom changes, since the valid range shrinks as zoom
// approaches 1.0.
func (p Pan) Clamp(zoom float64) Pan {
	m := MaxPan(zoom)
	return Pan{X: clamp(p.X, -m, m), Y: clamp(p.Y, -m, m)}
}

// ClampZoom limits a zoom factor to the supported range.
func ClampZoom(z float64) float64 {
	return clamp(z, ZoomMin, ZoomMax)
}

// ClampBrightness limits a brightness offset to the supported range.
func ClampBrightness(b int) int {
	if b < BrightnessMin {
		return BrightnessMin
	}
	if b > BrightnessMax {
		return BrightnessMax
	}
	return b
}

// Options selects the transform applied to a raw frame.
type Options struct {
	Mirrored   bool
	Zoom       float64
	Pan        Pan
	Brightness int
}

// Apply runs the view transform and returns a new frame. The input is never
// mutated. Given identical inputs the output is bit-identical.
func Apply(frame image.Image, opts Options) *image.NRGBA {
	out := imaging.Clone(frame)

	if opts.Mirrored {
		out = imaging.FlipH(out)
	}

	if opts.Zoom > 1.0 {
		w := out.Bounds().Dx()
		h := out.Bounds().Dy()
		cropW := int(float64(w) / opts.Zoom)
		cropH := int(float64(h) / opts.Zoom)
		panX := int(opts.Pan.X * float64(w) / 2)
		panY := int(opts.Pan.Y * float64(h) / 2)
		x1 := (w-cropW)/2 - panX
		y1 := (h-cropH)/2 - panY
		x1 = clampInt(x1, 0, w-cropW)
		y1 = clampInt(y1, 0, h-cropH)
		out = imaging.Crop(out, image.Rect(x1, y1, x1+cropW, y1+cropH))
	}

	if opts.Brightness != 0 {
		addBrightness(out, opts.Brightness)
	}

	return out
}

// addBrightness applies an additive per-channel offset, saturating at the
// sample bounds. Alpha is untouched.
func addBrightness(img *image.NRGBA, offset int) {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := y * img.Stride
		for x := 0; x < b.Dx(); x++ {
			i := row + x*4
			img.Pix[i+0] = satAdd(img.Pix[i+0], offset)
			img.Pix[i+1] = satAdd(img.Pix[i+1], offset)
			img.Pix[i+2] = satAdd(img.Pix[i+2], offset)
		}
	}
}

func satAdd(v uint8, offset int) uint8 {
	s := int(v) + offset
	if s < 0 {
		return 0
	}
	if s > 255 {
		return 255
	}
	return uint8(s)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
