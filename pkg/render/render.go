// Package render owns the mutable pipeline state and drives the frame
// pipeline: geometric transform, subject segmentation, user-mask combination
// and outline compositing. All state is mutated behind one mutex so that
// hosts may call in from multiple goroutines; each render fully supersedes
// the prior one.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/sticker-maker/pkg/export"
	"github.com/menta2k/sticker-maker/pkg/geometry"
	"github.com/menta2k/sticker-maker/pkg/maskedit"
	"github.com/menta2k/sticker-maker/pkg/outline"
	"github.com/menta2k/sticker-maker/pkg/segment"
)

// FreezeState is the tri-state freeze of the view.
type FreezeState int

const (
	// Live updates continuously from the frame source.
	Live FreezeState = iota
	// HeldFrozen pauses while a press is active and resets on release.
	HeldFrozen
	// LockedFrozen pauses until explicitly toggled off. Only this state
	// permits mask editing and sticker export.
	LockedFrozen
)

func (s FreezeState) String() string {
	switch s {
	case HeldFrozen:
		return "held-frozen"
	case LockedFrozen:
		return "locked-frozen"
	default:
		return "live"
	}
}

var (
	// ErrNotLocked is returned when editing or export is attempted outside
	// the locked-frozen state.
	ErrNotLocked = errors.New("operation requires a locked-frozen frame")
	// ErrNoFrame is returned when no raw frame has been captured yet.
	ErrNoFrame = errors.New("no frame captured")
)

// FrameSource supplies raw frames to the tick loop.
type FrameSource interface {
	NextFrame(ctx context.Context) (*image.NRGBA, error)
}

// Result is the output of one render pass.
type Result struct {
	// Display is the display-ready raster: the plain transformed frame, or
	// the composited sticker view when sticker mode is active.
	Display *image.NRGBA
	// CropRegion is the face-anchored sub-rectangle of the processing frame
	// shown in Display, nil when the full frame is shown. Hosts need it to
	// map pointer events back into the processing frame.
	CropRegion *image.Rectangle
	// ProcessedSize is the processing-frame dimensions before any crop.
	ProcessedSize image.Point
}

// Config tunes a render context.
type Config struct {
	// TickInterval is the frame-pull period of Run.
	TickInterval time.Duration
	// BrushRadius is the initial brush radius in processing-frame pixels.
	BrushRadius int
	// PanStep is the pan fraction applied per nudge.
	PanStep float64
	// Logger receives degradation messages; nil uses the standard logger.
	Logger *logrus.Logger
}

// DefaultConfig returns the interactive defaults (~30 fps tick).
func DefaultConfig() Config {
	return Config{
		TickInterval: 33 * time.Millisecond,
		BrushRadius:  20,
		PanStep:      0.05,
	}
}

// Context is the single owner of pipeline state. Construct it once, inject
// the capabilities, and route every frame and every adjustment through it.
type Context struct {
	mu   sync.Mutex
	log  *logrus.Logger
	tick time.Duration

	capability *segment.Capability
	faces      segment.FaceDetector
	subject    *segment.SubjectSegmenter
	exporter   *export.Exporter

	onUpdate func(Result)

	lastRaw     *image.NRGBA
	mirrored    bool
	zoom        float64
	pan         geometry.Pan
	brightness  int
	stickerMode bool
	freeze      FreezeState
	panStep     float64

	brushRadius int
	brushMode   maskedit.Mode

	seg           *segment.Result
	segValid      bool
	layer         *maskedit.Layer
	lastStroke    *image.Point
	processedSize image.Point
	cropRegion    *image.Rectangle

	unavailableLogged bool
}

// NewContext creates a render context. capability resolves the segmentation
// backend lazily on first sticker render; faces may be nil to disable
// face-anchored cropping.
func NewContext(capability *segment.Capability, faces segment.FaceDetector, exporter *export.Exporter, cfg Config) *Context {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.PanStep <= 0 {
		cfg.PanStep = DefaultConfig().PanStep
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if exporter == nil {
		exporter = export.New()
	}
	return &Context{
		log:         cfg.Logger,
		tick:        cfg.TickInterval,
		capability:  capability,
		faces:       faces,
		exporter:    exporter,
		mirrored:    true,
		zoom:        geometry.ZoomMin,
		panStep:     cfg.PanStep,
		brushRadius: maskedit.ClampRadius(cfg.BrushRadius),
	}
}

// SetOnUpdate registers a callback invoked with a fresh Result after every
// adjustment made while the view is frozen. Register it before the context
// is shared between goroutines.
func (c *Context) SetOnUpdate(fn func(Result)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// SubmitFrame installs a new raw frame. Frames are ignored while the view is
// frozen. A new frame resets pan and invalidates the previous segmentation
// and mask layers.
func (c *Context) SubmitFrame(frame *image.NRGBA) bool {
	if frame == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.freeze != Live {
		return false
	}
	c.lastRaw = imaging.Clone(frame)
	c.pan = geometry.Pan{}
	c.resetFrameStateLocked()
	return true
}

// Render runs the pipeline over the current raw frame and returns the
// display result. Segmentation trouble degrades to the plain transformed
// frame and is logged, never returned.
func (c *Context) Render() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderLocked()
}

func (c *Context) renderLocked() Result {
	if c.lastRaw == nil {
		return Result{}
	}

	frame := geometry.Apply(c.lastRaw, geometry.Options{
		Mirrored:   c.mirrored,
		Zoom:       c.zoom,
		Pan:        c.pan,
		Brightness: c.brightness,
	})
	b := frame.Bounds()
	c.processedSize = image.Pt(b.Dx(), b.Dy())
	c.cropRegion = nil

	res := Result{Display: frame, ProcessedSize: c.processedSize}
	if !c.stickerMode {
		return res
	}

	seg := c.ensureSegmentationLocked(frame)
	if seg == nil {
		return res
	}

	final := maskedit.Combine(seg.Mask, c.layer)
	composed := outline.Composite(frame, final)
	if seg.CropRegion != nil {
		crop := *seg.CropRegion
		composed = imaging.Crop(composed, crop)
		res.CropRegion = &crop
		c.cropRegion = &crop
	}
	res.Display = composed
	return res
}

// ensureSegmentationLocked returns the segmentation for the current
// processing frame, running the backend only when the cached result was
// invalidated. A nil return means the caller must show the unsegmented
// frame.
func (c *Context) ensureSegmentationLocked(frame *image.NRGBA) *segment.Result {
	b := frame.Bounds()
	if c.segValid && c.seg != nil && c.seg.Mask.Matches(b.Dx(), b.Dy()) {
		return c.seg
	}

	if c.subject == nil {
		backend, err := c.capability.Get()
		if err != nil {
			if !c.unavailableLogged {
				c.log.WithError(err).Warn("segmentation unavailable, showing unsegmented frames")
				c.unavailableLogged = true
			}
			return nil
		}
		c.subject = segment.New(backend, c.faces)
	}

	res, err := c.subject.Segment(context.Background(), frame)
	if err != nil {
		c.log.WithError(err).Warn("segmentation failed for this frame")
		return nil
	}
	c.seg = res
	c.segValid = true
	return res
}

// resetFrameStateLocked drops everything scoped to the previous frozen
// frame: segmentation, mask layers and the active stroke.
func (c *Context) resetFrameStateLocked() {
	c.seg = nil
	c.segValid = false
	c.layer = nil
	c.lastStroke = nil
}

func (c *Context) invalidateSegLocked() {
	c.seg = nil
	c.segValid = false
}

// afterChangeLocked prepares the synchronous re-render notification for an
// adjustment made while frozen. The callback is invoked after the lock is
// released.
func (c *Context) afterChangeLocked() (func(Result), Result, bool) {
	if c.onUpdate == nil || c.freeze == Live {
		return nil, Result{}, false
	}
	return c.onUpdate, c.renderLocked(), true
}

// Run pulls one frame per tick from the source until the context is
// canceled. Ticks are skipped entirely while the view is frozen, so a
// long-running segmentation simply delays the next tick.
func (c *Context) Run(ctx context.Context, source FrameSource, fn func(Result)) error {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if c.Frozen() {
				continue
			}
			frame, err := source.NextFrame(ctx)
			if err != nil {
				return fmt.Errorf("frame source: %w", err)
			}
			if frame == nil {
				continue
			}
			if c.SubmitFrame(frame) && fn != nil {
				fn(c.Render())
			}
		}
	}
}
