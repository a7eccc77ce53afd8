// Package stickermaker turns raw video frames into displayable, optionally
// background-removed sticker images.
//
// This package chains a geometric view transform (mirror, zoom, pan,
// brightness), subject segmentation anchored to a detected face, interactive
// mask editing, outline compositing and size-constrained WebP export.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//
//		stickermaker "github.com/menta2k/sticker-maker"
//		"github.com/menta2k/sticker-maker/pkg/imgio"
//	)
//
//	func main() {
//		maker, err := stickermaker.New()
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		img, err := imgio.Load("frame.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		sticker, err := maker.MakeSticker(img, stickermaker.StickerOptions{Mirrored: true})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		log.Printf("sticker: %d bytes", len(sticker))
//	}
//
// The package consists of the following components:
//
// 1. Geometry (pkg/geometry): mirror, zoom-crop, pan and brightness
// 2. Segmentation (pkg/segment): person mask anchored to the largest face
// 3. Mask editing (pkg/maskedit): painted addition/removal layers
// 4. Compositing (pkg/outline): white outline ring and transparent background
// 5. Export (pkg/export): 512x512 WebP under a 500 KiB budget
// 6. Render context (pkg/render): freeze states, tick loop and state ownership
//
// Interactive hosts create a session context with NewSession and route
// pointer and slider events through it; one-shot hosts use MakeSticker.
package stickermaker

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/sticker-maker/internal/config"
	"github.com/menta2k/sticker-maker/internal/utils"
	"github.com/menta2k/sticker-maker/pkg/export"
	"github.com/menta2k/sticker-maker/pkg/geometry"
	"github.com/menta2k/sticker-maker/pkg/imgio"
	"github.com/menta2k/sticker-maker/pkg/render"
	"github.com/menta2k/sticker-maker/pkg/segment"
)

// Version of the sticker maker library.
const Version = "1.0.0"

// StickerMaker wires the pipeline capabilities together. The segmentation
// backend is constructed lazily on first use and shared by every session.
type StickerMaker struct {
	cfg        *config.Config
	capability *segment.Capability
	faces      segment.FaceDetector
	exporter   *export.Exporter
	renderCfg  render.Config
}

// StickerOptions selects the view transform for a one-shot sticker.
type StickerOptions struct {
	Mirrored   bool
	Zoom       float64
	Pan        geometry.Pan
	Brightness int
}

// New creates a StickerMaker with default configuration.
func New() (*StickerMaker, error) {
	return NewWithConfig(config.Default())
}

// NewWithConfig creates a StickerMaker from a configuration. A missing face
// cascade is fetched once from the configured URL; a failed fetch or load
// disables face-anchored cropping but is not an error. A broken
// segmentation backend surfaces later as a capability-unavailable
// degradation, never as a crash.
func NewWithConfig(cfg *config.Config) (*StickerMaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	capability := buildCapability(cfg.Segmentation)

	var faces segment.FaceDetector
	if cfg.Segmentation.CascadePath != "" {
		if err := segment.EnsureCascade(cfg.Segmentation.CascadePath, cfg.Segmentation.CascadeURL); err != nil {
			logrus.WithError(err).Warn("face cascade fetch failed, face-anchored cropping disabled")
		} else if detector, err := segment.NewPigoDetector(cfg.Segmentation.CascadePath); err != nil {
			logrus.WithError(err).Warn("face detector unavailable, face-anchored cropping disabled")
		} else {
			faces = detector
		}
	}

	return &StickerMaker{
		cfg:        cfg,
		capability: capability,
		faces:      faces,
		exporter: export.NewWithOptions(export.Options{
			CanvasSize:  cfg.Export.CanvasSize,
			MaxBytes:    cfg.Export.MaxBytes,
			QualityMax:  cfg.Export.QualityMax,
			QualityMin:  cfg.Export.QualityMin,
			QualityStep: cfg.Export.QualityStep,
		}),
		renderCfg: render.Config{
			TickInterval: time.Duration(cfg.Render.TickIntervalMS) * time.Millisecond,
			BrushRadius:  cfg.Brush.DefaultRadius,
			PanStep:      cfg.Render.PanStep,
		},
	}, nil
}

func buildCapability(cfg config.SegmentationConfig) *segment.Capability {
	switch cfg.Backend {
	case "ollama":
		return segment.NewCapability(func() (segment.Segmenter, error) {
			return segment.NewOllama(cfg.OllamaURL, cfg.OllamaModel)
		})
	default:
		return segment.FromSegmenter(segment.NewSaliency())
	}
}

// NewSession creates an interactive render context sharing this maker's
// capabilities. Hosts route frames and pointer/slider events through it.
func (m *StickerMaker) NewSession() *render.Context {
	return render.NewContext(m.capability, m.faces, m.exporter, m.renderCfg)
}

// MakeSticker runs the whole pipeline once over a single frame and returns
// the encoded sticker.
func (m *StickerMaker) MakeSticker(img image.Image, opts StickerOptions) ([]byte, error) {
	if img == nil {
		return nil, render.ErrNoFrame
	}

	session := m.NewSession()
	session.SetMirrored(opts.Mirrored)
	if opts.Zoom > 0 {
		session.SetZoom(opts.Zoom)
	}
	session.SetPan(opts.Pan)
	session.SetBrightness(opts.Brightness)
	session.SetStickerMode(true)
	session.SubmitFrame(imaging.Clone(img))
	session.ToggleLock()

	return session.ExportSticker()
}

// MakeStickerFile loads a frame from a file or URL, runs the pipeline and
// writes the sticker. An empty output path picks a timestamped name in the
// configured output directory. The written path is returned.
func (m *StickerMaker) MakeStickerFile(source, output string, opts StickerOptions) (string, error) {
	img, err := imgio.LoadSmart(source)
	if err != nil {
		return "", fmt.Errorf("load frame: %w", err)
	}

	data, err := m.MakeSticker(img, opts)
	if err != nil {
		return "", err
	}

	if output == "" {
		if err := utils.EnsureDir(m.cfg.Export.OutputDir); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
		output = filepath.Join(m.cfg.Export.OutputDir, export.Filename(time.Now()))
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return "", fmt.Errorf("write sticker: %w", err)
	}
	return output, nil
}

// GetVersion returns the library version.
func GetVersion() string {
	return Version
}
