// Package mask provides the binary occupancy and confidence rasters used by
// the segmentation and editing stages of the pipeline.
package mask

import (
	"image"
)

// Mask is a rectangular raster of 0/1 occupancy values. A mask is always
// created with the dimensions of the frame it overlays; callers that detect a
// dimension mismatch must recreate the mask rather than resize it.
type Mask struct {
	W, H int
	Pix  []uint8
}

// New creates a zero-filled mask of the given dimensions.
func New(w, h int) *Mask {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Mask{W: w, H: h, Pix: make([]uint8, w*h)}
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	out := &Mask{W: m.W, H: m.H, Pix: make([]uint8, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// Matches reports whether the mask has exactly the given dimensions.
func (m *Mask) Matches(w, h int) bool {
	return m != nil && m.W == w && m.H == h
}

// At returns the occupancy value at (x, y), or 0 outside the mask bounds.
func (m *Mask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return 0
	}
	return m.Pix[y*m.W+x]
}

// Set writes the occupancy value at (x, y). Out-of-bounds writes are ignored.
func (m *Mask) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return
	}
	m.Pix[y*m.W+x] = v
}

// Or sets every pixel that is set in other. Dimensions must match.
func (m *Mask) Or(other *Mask) {
	if other == nil || !other.Matches(m.W, m.H) {
		return
	}
	for i, v := range other.Pix {
		if v != 0 {
			m.Pix[i] = 1
		}
	}
}

// AndNot clears every pixel that is set in other. Dimensions must match.
func (m *Mask) AndNot(other *Mask) {
	if other == nil || !other.Matches(m.W, m.H) {
		return
	}
	for i, v := range other.Pix {
		if v != 0 {
			m.Pix[i] = 0
		}
	}
}

// IntersectEllipse clears every pixel outside the ellipse centered at
// (cx, cy) with semi-axes rx and ry.
func (m *Mask) IntersectEllipse(cx, cy, rx, ry float64) {
	if rx <= 0 || ry <= 0 {
		for i := range m.Pix {
			m.Pix[i] = 0
		}
		return
	}
	for y := 0; y < m.H; y++ {
		dy := (float64(y) - cy) / ry
		row := y * m.W
		for x := 0; x < m.W; x++ {
			if m.Pix[row+x] == 0 {
				continue
			}
			dx := (float64(x) - cx) / rx
			if dx*dx+dy*dy > 1 {
				m.Pix[row+x] = 0
			}
		}
	}
}

// Crop returns a new mask covering the given rectangle. The rectangle is
// clipped to the mask bounds.
func (m *Mask) Crop(r image.Rectangle) *Mask {
	r = r.Intersect(image.Rect(0, 0, m.W, m.H))
	out := New(r.Dx(), r.Dy())
	for y := 0; y < out.H; y++ {
		src := (r.Min.Y+y)*m.W + r.Min.X
		copy(out.Pix[y*out.W:(y+1)*out.W], m.Pix[src:src+out.W])
	}
	return out
}

// CountNonZero returns the number of set pixels.
func (m *Mask) CountNonZero() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// ToGray converts the mask to an 8-bit grayscale image with set pixels at
// full intensity, suitable for blur-based smoothing.
func (m *Mask) ToGray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.W, m.H))
	for y := 0; y < m.H; y++ {
		row := y * m.W
		for x := 0; x < m.W; x++ {
			if m.Pix[row+x] != 0 {
				g.Pix[y*g.Stride+x] = 255
			}
		}
	}
	return g
}

// FromNRGBA rebinarizes the red channel of an NRGBA image at the given
// threshold (0..1) into a fresh mask.
func FromNRGBA(img *image.NRGBA, threshold float64) *Mask {
	b := img.Bounds()
	out := New(b.Dx(), b.Dy())
	cut := uint8(threshold * 255)
	for y := 0; y < out.H; y++ {
		row := y * img.Stride
		for x := 0; x < out.W; x++ {
			if img.Pix[row+x*4] > cut {
				out.Pix[y*out.W+x] = 1
			}
		}
	}
	return out
}

// Confidence is a rectangular raster of per-pixel confidence values in [0,1].
type Confidence struct {
	W, H int
	Pix  []float32
}

// NewConfidence creates a zero-filled confidence raster.
func NewConfidence(w, h int) *Confidence {
	return &Confidence{W: w, H: h, Pix: make([]float32, w*h)}
}

// Binarize thresholds the confidence raster into an occupancy mask. Pixels
// with confidence strictly above the threshold are set.
func (c *Confidence) Binarize(threshold float32) *Mask {
	out := New(c.W, c.H)
	for i, v := range c.Pix {
		if v > threshold {
			out.Pix[i] = 1
		}
	}
	return out
}
