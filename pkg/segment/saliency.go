package segment

import (
	"context"
	"image"

	"github.com/menta2k/sticker-maker/pkg/mask"
)

// SaliencyConfig tunes the local saliency backend.
type SaliencyConfig struct {
	// EdgeWeight and BrightnessWeight blend edge strength against local
	// brightness when scoring a pixel.
	EdgeWeight       float64
	BrightnessWeight float64
	// Gain scales the blended score into the 0..1 confidence range.
	Gain float64
}

// SaliencySegmenter is a dependency-free fallback backend. It scores each
// pixel by local edge strength and brightness, which separates a lit subject
// from a flat background well enough for interactive preview. It is always
// available and never errors.
type SaliencySegmenter struct {
	config SaliencyConfig
}

// NewSaliency creates a saliency backend with default weights.
func NewSaliency() *SaliencySegmenter {
	return &SaliencySegmenter{
		config: SaliencyConfig{
			EdgeWeight:       0.6,
			BrightnessWeight: 0.4,
			Gain:             2.0,
		},
	}
}

// NewSaliencyWithConfig creates a saliency backend with custom weights.
func NewSaliencyWithConfig(config SaliencyConfig) *SaliencySegmenter {
	return &SaliencySegmenter{config: config}
}

// Segment scores every interior pixel of the frame. Border pixels keep zero
// confidence.
func (s *SaliencySegmenter) Segment(_ context.Context, frame *image.NRGBA) (*mask.Confidence, error) {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	conf := mask.NewConfidence(w, h)

	luma := Grayscale(frame)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := float64(luma[y*w+x])

			// Edge strength over the 8-neighborhood.
			var edge float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					n := float64(luma[(y+dy)*w+(x+dx)])
					d := center - n
					if d < 0 {
						d = -d
					}
					edge += d
				}
			}
			edge /= 8.0 * 255.0

			brightness := center / 255.0

			score := s.config.Gain * (s.config.EdgeWeight*edge + s.config.BrightnessWeight*brightness)
			if score > 1 {
				score = 1
			}
			conf.Pix[y*w+x] = float32(score)
		}
	}

	return conf, nil
}
