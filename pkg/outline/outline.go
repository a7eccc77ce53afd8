// Package outline composites a frame and its final mask into the sticker
// image: a white outline ring around the subject and a transparent
// background.
package outline

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/sticker-maker/pkg/mask"
)

const (
	// Gaussian sigmas for the two smoothing passes; the first removes jagged
	// edges from the raw mask, the second softens the dilated ring.
	maskSmoothSigma = 1.5
	ringSmoothSigma = 1.0

	// Smoothed masks are re-binarized at this fraction of full intensity.
	rebinarizeThreshold = 0.3

	// Radius of the disc structuring element used to grow the outline ring.
	outlineWidth = 6
)

// Composite builds the sticker image for a frame and its occupancy mask.
// The output carries the frame's colors with the outline ring painted white,
// and an alpha channel that is opaque over the dilated mask and fully
// transparent elsewhere. Outline pixels and core-mask pixels are disjoint by
// construction.
func Composite(frame *image.NRGBA, m *mask.Mask) *image.NRGBA {
	core := smooth(m, maskSmoothSigma)
	dilated := smooth(dilate(core, outlineWidth), ringSmoothSigma)

	ring := dilated.Clone()
	ring.AndNot(core)

	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srcRow := y * frame.Stride
		dstRow := y * out.Stride
		maskRow := y * w
		for x := 0; x < w; x++ {
			si := srcRow + x*4
			di := dstRow + x*4
			if ring.Pix[maskRow+x] != 0 {
				out.Pix[di+0] = 255
				out.Pix[di+1] = 255
				out.Pix[di+2] = 255
			} else {
				out.Pix[di+0] = frame.Pix[si+0]
				out.Pix[di+1] = frame.Pix[si+1]
				out.Pix[di+2] = frame.Pix[si+2]
			}
			if dilated.Pix[maskRow+x] != 0 {
				out.Pix[di+3] = 255
			}
		}
	}
	return out
}

// smooth blurs a mask and re-binarizes it, rounding off jagged edges.
func smooth(m *mask.Mask, sigma float64) *mask.Mask {
	if m.W == 0 || m.H == 0 {
		return m.Clone()
	}
	blurred := imaging.Blur(m.ToGray(), sigma)
	return mask.FromNRGBA(blurred, rebinarizeThreshold)
}

// dilate grows the mask by a disc of the given radius.
func dilate(m *mask.Mask, radius int) *mask.Mask {
	offsets := discOffsets(radius)
	out := mask.New(m.W, m.H)
	for y := 0; y < m.H; y++ {
		row := y * m.W
		for x := 0; x < m.W; x++ {
			if m.Pix[row+x] == 0 {
				continue
			}
			for _, off := range offsets {
				nx := x + off.X
				ny := y + off.Y
				if nx < 0 || ny < 0 || nx >= m.W || ny >= m.H {
					continue
				}
				out.Pix[ny*m.W+nx] = 1
			}
		}
	}
	return out
}

func discOffsets(radius int) []image.Point {
	var offsets []image.Point
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				offsets = append(offsets, image.Point{X: dx, Y: dy})
			}
		}
	}
	return offsets
}
