// Package maskedit maintains the user-painted refinement layers for one
// frozen frame and combines them with the segmenter's mask.
package maskedit

import (
	"image"

	"github.com/menta2k/sticker-maker/pkg/mask"
)

// Mode selects whether a brush stroke adds to or erases from the mask.
type Mode int

const (
	Add Mode = iota
	Erase
)

func (m Mode) String() string {
	if m == Erase {
		return "erase"
	}
	return "add"
}

// Brush radius bounds in processing-frame pixels.
const (
	MinRadius = 5
	MaxRadius = 100
)

// ClampRadius limits a brush radius to the supported range.
func ClampRadius(r int) int {
	if r < MinRadius {
		return MinRadius
	}
	if r > MaxRadius {
		return MaxRadius
	}
	return r
}

// Layer holds the painted addition and removal masks for one frozen frame.
// Both masks are sized to the processing frame the layer was created for.
// Invariant: a pixel is never set in both masks at once; each paint stroke
// clears the opposite mask at the same pixels.
type Layer struct {
	Additions *mask.Mask
	Removals  *mask.Mask
}

// NewLayer creates an empty layer sized to a processing frame.
func NewLayer(w, h int) *Layer {
	return &Layer{
		Additions: mask.New(w, h),
		Removals:  mask.New(w, h),
	}
}

// Matches reports whether the layer fits a processing frame of the given
// dimensions.
func (l *Layer) Matches(w, h int) bool {
	return l != nil && l.Additions.Matches(w, h) && l.Removals.Matches(w, h)
}

// Paint draws a filled disc into the layer matching mode and clears the same
// disc in the opposite layer. Points outside the layer are clipped away.
func (l *Layer) Paint(pt image.Point, radius int, mode Mode) {
	radius = ClampRadius(radius)
	target, opposite := l.Additions, l.Removals
	if mode == Erase {
		target, opposite = l.Removals, l.Additions
	}

	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		y := pt.Y + dy
		if y < 0 || y >= target.H {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			x := pt.X + dx
			if x < 0 || x >= target.W {
				continue
			}
			target.Pix[y*target.W+x] = 1
			opposite.Pix[y*opposite.W+x] = 0
		}
	}
}

// PaintStroke paints along the segment between two consecutive pointer
// samples so fast strokes leave no gaps.
func (l *Layer) PaintStroke(from, to image.Point, radius int, mode Mode) {
	dx := to.X - from.X
	dy := to.Y - from.Y
	steps := absInt(dx)
	if absInt(dy) > steps {
		steps = absInt(dy)
	}
	if steps == 0 {
		l.Paint(to, radius, mode)
		return
	}
	for i := 0; i <= steps; i++ {
		p := image.Point{
			X: from.X + dx*i/steps,
			Y: from.Y + dy*i/steps,
		}
		l.Paint(p, radius, mode)
	}
}

// Combine applies a layer to a base mask: (base OR additions) AND NOT
// removals. A nil layer or one whose dimensions no longer match the base is
// treated as absent rather than resized, since rescaling a sparse paint mask
// would distort what the user painted.
func Combine(base *mask.Mask, l *Layer) *mask.Mask {
	out := base.Clone()
	if l == nil || !l.Matches(base.W, base.H) {
		return out
	}
	out.Or(l.Additions)
	out.AndNot(l.Removals)
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
