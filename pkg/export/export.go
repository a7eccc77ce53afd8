// Package export serializes a composited sticker image onto a fixed-size
// canvas under a byte-size budget.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Export errors. ErrSizeExceeded means no quality step brought the encoded
// sticker under the byte budget; ErrEncodeFailed means the encoder itself
// errored and no retry was attempted.
var (
	ErrSizeExceeded = errors.New("sticker exceeds size budget at every quality step")
	ErrEncodeFailed = errors.New("sticker encode failed")
)

// Options configures the exporter.
type Options struct {
	// CanvasSize is the square output canvas edge in pixels.
	CanvasSize int
	// MaxBytes is the encoded-size budget.
	MaxBytes int
	// Quality ladder: encoding starts at QualityMax and steps down by
	// QualityStep until QualityMin.
	QualityMax  int
	QualityMin  int
	QualityStep int
}

// DefaultOptions returns the sticker export defaults: a 512x512 canvas and a
// 500 KiB budget.
func DefaultOptions() Options {
	return Options{
		CanvasSize:  512,
		MaxBytes:    500 * 1024,
		QualityMax:  90,
		QualityMin:  10,
		QualityStep: 10,
	}
}

// Exporter encodes composited sticker images as WebP.
type Exporter struct {
	opts Options
}

// New creates an exporter with default options.
func New() *Exporter {
	return &Exporter{opts: DefaultOptions()}
}

// NewWithOptions creates an exporter with custom options.
func NewWithOptions(opts Options) *Exporter {
	if opts.QualityStep <= 0 {
		opts.QualityStep = 10
	}
	return &Exporter{opts: opts}
}

// Export scales the image to fit the canvas preserving aspect ratio, centers
// it on a transparent square canvas, and encodes WebP at decreasing quality
// until the result fits the budget. It never returns oversized bytes.
func (e *Exporter) Export(img image.Image) ([]byte, error) {
	fitted := imaging.Fit(img, e.opts.CanvasSize, e.opts.CanvasSize, imaging.Lanczos)
	canvas := imaging.New(e.opts.CanvasSize, e.opts.CanvasSize, color.NRGBA{})
	composed := imaging.PasteCenter(canvas, fitted)

	var buf bytes.Buffer
	for q := e.opts.QualityMax; q >= e.opts.QualityMin; q -= e.opts.QualityStep {
		buf.Reset()
		opts := &webp.Options{Quality: float32(q), Exact: true}
		if err := webp.Encode(&buf, composed, opts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
		if buf.Len() <= e.opts.MaxBytes {
			out := make([]byte, buf.Len())
			copy(out, buf.Bytes())
			return out, nil
		}
	}
	return nil, ErrSizeExceeded
}

// WriteFile exports the image and writes it to path. When path is empty a
// timestamped name in the working directory is used. No file is left on disk
// when the export fails.
func (e *Exporter) WriteFile(img image.Image, path string) (string, error) {
	data, err := e.Export(img)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = Filename(time.Now())
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write sticker: %w", err)
	}
	return path, nil
}

// Filename returns the default sticker filename for a timestamp.
func Filename(t time.Time) string {
	return fmt.Sprintf("sticker_%s.webp", t.Format("20060102_150405"))
}
