// Package segment produces a person-occupancy mask for a processing frame,
// anchored to the largest detected face. The segmentation backend and the
// face detector are consumed as capability interfaces; either one failing
// degrades the pipeline rather than crashing it.
package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/menta2k/sticker-maker/pkg/mask"
)

// ConfidenceThreshold is the cut used to binarize backend confidences.
const ConfidenceThreshold = 0.5

// Head ellipse geometry relative to the detected face box. The vertical
// center is biased upward so the ellipse covers the head but not the neck.
const (
	headCenterY   = 0.4
	headSemiAxisX = 0.75
	headSemiAxisY = 0.85

	cropPadding = 20
)

// ErrUnavailable is returned when a capability could not be constructed,
// typically because its model asset is missing or failed to load.
var ErrUnavailable = errors.New("segmentation capability unavailable")

// Segmenter produces a per-pixel person-confidence raster for a frame.
type Segmenter interface {
	Segment(ctx context.Context, frame *image.NRGBA) (*mask.Confidence, error)
}

// FaceDetector finds axis-aligned face rectangles in a grayscale raster.
type FaceDetector interface {
	Detect(gray []uint8, rows, cols int) []image.Rectangle
}

// Result is the output of a segmentation pass over one processing frame.
type Result struct {
	// Mask is the person-occupancy mask in processing-frame coordinates.
	Mask *mask.Mask
	// FaceBox is the largest detected face, nil when no face was found.
	FaceBox *image.Rectangle
	// CropRegion is the face-anchored sub-rectangle to display, nil when no
	// face was found (the full processed frame is shown).
	CropRegion *image.Rectangle
}

// SubjectSegmenter combines a segmentation backend with a face detector.
type SubjectSegmenter struct {
	backend Segmenter
	faces   FaceDetector
}

// New creates a SubjectSegmenter. faces may be nil, in which case the mask is
// never anchored and no crop region is reported.
func New(backend Segmenter, faces FaceDetector) *SubjectSegmenter {
	return &SubjectSegmenter{backend: backend, faces: faces}
}

// Segment runs the backend over the frame, binarizes the confidences and,
// when a face is found, intersects the mask with a head-only ellipse and
// computes the display crop region around it.
func (s *SubjectSegmenter) Segment(ctx context.Context, frame *image.NRGBA) (*Result, error) {
	conf, err := s.backend.Segment(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("segmentation backend: %w", err)
	}

	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if conf.W != w || conf.H != h {
		return nil, fmt.Errorf("segmentation backend returned %dx%d confidences for %dx%d frame", conf.W, conf.H, w, h)
	}

	m := conf.Binarize(ConfidenceThreshold)
	res := &Result{Mask: m}

	if s.faces == nil {
		return res, nil
	}
	face, ok := largestFace(s.faces.Detect(Grayscale(frame), h, w))
	if !ok {
		return res, nil
	}

	fw := float64(face.Dx())
	fh := float64(face.Dy())
	cx := float64(face.Min.X) + fw/2
	cy := float64(face.Min.Y) + headCenterY*fh
	rx := headSemiAxisX * fw
	ry := headSemiAxisY * fh

	m.IntersectEllipse(cx, cy, rx, ry)

	crop := image.Rect(
		int(math.Floor(cx-rx))-cropPadding,
		int(math.Floor(cy-ry))-cropPadding,
		int(math.Ceil(cx+rx))+cropPadding,
		int(math.Ceil(cy+ry))+cropPadding,
	).Intersect(image.Rect(0, 0, w, h))

	res.FaceBox = &face
	res.CropRegion = &crop
	return res, nil
}

// largestFace picks the face with the largest bounding-box area. Ties keep
// the first detection.
func largestFace(faces []image.Rectangle) (image.Rectangle, bool) {
	if len(faces) == 0 {
		return image.Rectangle{}, false
	}
	best := faces[0]
	bestArea := best.Dx() * best.Dy()
	for _, f := range faces[1:] {
		if a := f.Dx() * f.Dy(); a > bestArea {
			best = f
			bestArea = a
		}
	}
	return best, true
}

// Grayscale converts a frame to the flat grayscale raster expected by the
// face detector.
func Grayscale(img *image.NRGBA) []uint8 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	gray := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			i := row + x*4
			r := uint32(img.Pix[i+0])
			g := uint32(img.Pix[i+1])
			bl := uint32(img.Pix[i+2])
			gray[y*w+x] = uint8((r*299 + g*587 + bl*114) / 1000)
		}
	}
	return gray
}

// Capability resolves a segmentation backend exactly once on first use.
// Model loading may block, so hosts call Get lazily from the render path
// instead of probing per frame.
type Capability struct {
	build func() (Segmenter, error)

	once    sync.Once
	backend Segmenter
	err     error
}

// NewCapability wraps a backend constructor.
func NewCapability(build func() (Segmenter, error)) *Capability {
	return &Capability{build: build}
}

// FromSegmenter wraps an already-constructed backend.
func FromSegmenter(s Segmenter) *Capability {
	return NewCapability(func() (Segmenter, error) { return s, nil })
}

// Get returns the backend, constructing it on first call. Construction
// failure is sticky: every later call reports the same ErrUnavailable.
func (c *Capability) Get() (Segmenter, error) {
	c.once.Do(func() {
		s, err := c.build()
		if err != nil {
			c.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return
		}
		c.backend = s
	})
	return c.backend, c.err
}
