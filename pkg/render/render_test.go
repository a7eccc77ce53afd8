package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/sticker-maker/pkg/geometry"
	"github.com/menta2k/sticker-maker/pkg/mask"
	"github.com/menta2k/sticker-maker/pkg/maskedit"
	"github.com/menta2k/sticker-maker/pkg/segment"
)

// quietLogger discards degradation output during tests.
func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fullBackend reports every pixel as subject.
type fullBackend struct{}

func (fullBackend) Segment(_ context.Context, frame *image.NRGBA) (*mask.Confidence, error) {
	b := frame.Bounds()
	c := mask.NewConfidence(b.Dx(), b.Dy())
	for i := range c.Pix {
		c.Pix[i] = 1
	}
	return c, nil
}

// failBackend errors on every frame.
type failBackend struct{}

func (failBackend) Segment(_ context.Context, _ *image.NRGBA) (*mask.Confidence, error) {
	return nil, errors.New("backend down")
}

// countingBackend counts segmentation passes.
type countingBackend struct {
	mu    sync.Mutex
	calls int
}

func (b *countingBackend) Segment(_ context.Context, frame *image.NRGBA) (*mask.Confidence, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	bounds := frame.Bounds()
	c := mask.NewConfidence(bounds.Dx(), bounds.Dy())
	for i := range c.Pix {
		c.Pix[i] = 1
	}
	return c, nil
}

func (b *countingBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func testContext(backend segment.Segmenter) *Context {
	cfg := DefaultConfig()
	cfg.Logger = quietLogger()
	return NewContext(segment.FromSegmenter(backend), nil, nil, cfg)
}

func testFrame(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x % 256), uint8(y % 256), 90, 255})
		}
	}
	return img
}

func TestSubmitFrameLive(t *testing.T) {
	c := testContext(fullBackend{})

	if !c.SubmitFrame(testFrame(40, 30)) {
		t.Fatal("Expected live frame to be accepted")
	}

	res := c.Render()
	if res.Display == nil {
		t.Fatal("Expected a display frame")
	}
	if res.ProcessedSize != image.Pt(40, 30) {
		t.Errorf("Unexpected processed size %v", res.ProcessedSize)
	}
}

func TestSubmitFrameIgnoredWhileFrozen(t *testing.T) {
	c := testContext(fullBackend{})
	c.SubmitFrame(testFrame(40, 30))

	c.Press()
	if c.SubmitFrame(testFrame(80, 60)) {
		t.Error("Held-frozen view must reject frames")
	}
	c.Release()

	c.ToggleLock()
	if c.SubmitFrame(testFrame(80, 60)) {
		t.Error("Locked-frozen view must reject frames")
	}
	c.ToggleLock()

	if !c.SubmitFrame(testFrame(80, 60)) {
		t.Error("Live view must accept frames again")
	}
}

func TestSubmitFrameResetsPan(t *testing.T) {
	c := testContext(fullBackend{})
	c.SubmitFrame(testFrame(100, 100))
	c.SetZoom(2.0)
	c.SetPan(geometry.Pan{X: 0.4, Y: -0.4})

	c.SubmitFrame(testFrame(100, 100))

	if got := c.Pan(); got != (geometry.Pan{}) {
		t.Errorf("New frame must reset pan, got %v", got)
	}
}

func TestFreezeStateTransitions(t *testing.T) {
	c := testContext(fullBackend{})

	if c.State() != Live {
		t.Fatalf("Expected Live initially, got %v", c.State())
	}

	c.Press()
	if c.State() != HeldFrozen {
		t.Errorf("Expected HeldFrozen after press, got %v", c.State())
	}
	c.Release()
	if c.State() != Live {
		t.Errorf("Expected Live after release, got %v", c.State())
	}

	if got := c.ToggleLock(); got != LockedFrozen {
		t.Errorf("Expected LockedFrozen after toggle, got %v", got)
	}
	// Release must not break a locked freeze.
	c.Release()
	if c.State() != LockedFrozen {
		t.Errorf("Release must not unlock, got %v", c.State())
	}
	if got := c.ToggleLock(); got != Live {
		t.Errorf("Expected Live after second toggle, got %v", got)
	}
}

func TestReleaseResetsPan(t *testing.T) {
	c := testContext(fullBackend{})
	c.SubmitFrame(testFrame(100, 100))
	c.SetZoom(3.0)
	c.SetPan(geometry.Pan{X: 0.5})

	c.Press()
	c.Release()

	if got := c.Pan(); got != (geometry.Pan{}) {
		t.Errorf("Release must reset pan, got %v", got)
	}
}

func TestSetZoomReclampsPan(t *testing.T) {
	c := testContext(fullBackend{})
	c.SetZoom(4.0)
	c.SetPan(geometry.Pan{X: 0.7, Y: 0.7})

	c.SetZoom(2.0)

	want := geometry.MaxPan(2.0)
	if got := c.Pan(); got.X != want || got.Y != want {
		t.Errorf("Expected pan re-clamped to %v, got %v", want, got)
	}

	c.SetZoom(1.0)
	if got := c.Pan(); got != (geometry.Pan{}) {
		t.Errorf("Expected zero pan at zoom 1, got %v", got)
	}
}

func TestZoomAndBrightnessClamped(t *testing.T) {
	c := testContext(fullBackend{})

	c.SetZoom(99)
	if c.Zoom() != geometry.ZoomMax {
		t.Errorf("Expected zoom clamped to %v, got %v", geometry.ZoomMax, c.Zoom())
	}

	c.SetBrightness(-500)
	if c.Brightness() != geometry.BrightnessMin {
		t.Errorf("Expected brightness clamped to %d, got %d", geometry.BrightnessMin, c.Brightness())
	}
}

func TestNudgePan(t *testing.T) {
	c := testContext(fullBackend{})
	c.SetZoom(2.0)

	c.NudgePan(1, -2)

	got := c.Pan()
	if got.X != 0.05 || got.Y != -0.1 {
		t.Errorf("Expected pan (0.05,-0.1), got %v", got)
	}
}

func TestRenderWithoutFrame(t *testing.T) {
	c := testContext(fullBackend{})
	res := c.Render()
	if res.Display != nil {
		t.Error("Render without a frame must return an empty result")
	}
}

func TestRenderStickerMode(t *testing.T) {
	c := testContext(fullBackend{})
	c.SetStickerMode(true)
	c.SubmitFrame(testFrame(60, 60))

	res := c.Render()
	if res.Display == nil {
		t.Fatal("Expected a display frame")
	}
	// Full-subject mask means the interior stays opaque.
	i := 30*res.Display.Stride + 30*4
	if res.Display.Pix[i+3] != 255 {
		t.Error("Subject interior must be opaque in sticker mode")
	}
}

func TestRenderDegradesOnBackendError(t *testing.T) {
	c := testContext(failBackend{})
	c.SetStickerMode(true)
	c.SubmitFrame(testFrame(50, 50))

	res := c.Render()
	if res.Display == nil {
		t.Fatal("Backend failure must degrade to the plain frame, not drop it")
	}
	if res.Display.Bounds().Dx() != 50 {
		t.Errorf("Unexpected display bounds %v", res.Display.Bounds())
	}
}

func TestRenderDegradesWhenCapabilityUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logger = quietLogger()
	capability := segment.NewCapability(func() (segment.Segmenter, error) {
		return nil, errors.New("no model")
	})
	c := NewContext(capability, nil, nil, cfg)
	c.SetStickerMode(true)
	c.SubmitFrame(testFrame(30, 30))

	res := c.Render()
	if res.Display == nil {
		t.Fatal("Missing capability must degrade to the plain frame")
	}
}

func TestSegmentationCachedAcrossRenders(t *testing.T) {
	backend := &countingBackend{}
	c := testContext(backend)
	c.SetStickerMode(true)
	c.SubmitFrame(testFrame(40, 40))
	c.ToggleLock()

	c.Render()
	c.Render()
	c.Render()

	if backend.count() != 1 {
		t.Errorf("Expected one segmentation pass, got %d", backend.count())
	}

	// A geometry change invalidates the cache.
	c.SetBrightness(30)
	c.Render()
	if backend.count() != 2 {
		t.Errorf("Expected a re-segmentation after brightness change, got %d passes", backend.count())
	}
}

func TestPaintRequiresLockedFrozen(t *testing.T) {
	c := testContext(fullBackend{})
	c.SetStickerMode(true)
	c.SubmitFrame(testFrame(100, 100))
	c.Render()

	pt := image.Pt(50, 50)
	size := image.Pt(100, 100)
	if c.PaintAt(pt, size, size) {
		t.Error("Painting must be rejected while live")
	}

	c.ToggleLock()
	if !c.PaintAt(pt, size, size) {
		t.Error("Painting must be permitted while locked-frozen")
	}
}

func TestPaintRequiresStickerMode(t *testing.T) {
	c := testContext(fullBackend{})
	c.SubmitFrame(testFrame(100, 100))
	c.Render()
	c.ToggleLock()

	size := image.Pt(100, 100)
	if c.PaintAt(image.Pt(50, 50), size, size) {
		t.Error("Painting must be rejected outside sticker mode")
	}
}

func TestPaintOutsidePixmapEndsStroke(t *testing.T) {
	c := testContext(fullBackend{})
	c.SetStickerMode(true)
	c.SubmitFrame(testFrame(100, 100))
	c.Render()
	c.ToggleLock()

	size := image.Pt(100, 100)
	if !c.PaintAt(image.Pt(50, 50), size, size) {
		t.Fatal("In-bounds paint must succeed")
	}
	if c.lastStroke == nil {
		t.Fatal("Expected an active stroke")
	}

	if c.PaintAt(image.Pt(-10, 50), size, size) {
		t.Error("Out-of-bounds paint must be a no-op")
	}
	if c.lastStroke != nil {
		t.Error("Out-of-bounds pointer must end the stroke")
	}
}

func TestPaintErasesFromRender(t *testing.T) {
	c := testContext(fullBackend{})
	c.SetStickerMode(true)
	c.SubmitFrame(testFrame(100, 100))
	c.Render()
	c.ToggleLock()

	c.SetBrushMode(maskedit.Erase)
	c.SetBrushRadius(30)
	size := image.Pt(100, 100)
	if !c.PaintAt(image.Pt(50, 50), size, size) {
		t.Fatal("Erase paint must succeed")
	}
	c.EndStroke()

	res := c.Render()
	i := 50*res.Display.Stride + 50*4
	if res.Display.Pix[i+3] != 0 {
		t.Error("Erased center must be transparent")
	}
	// The far corner of the full-subject mask stays opaque.
	j := 2*res.Display.Stride + 2*4
	if res.Display.Pix[j+3] != 255 {
		t.Error("Unerased region must stay opaque")
	}
}

func TestUnlockDropsLayers(t *testing.T) {
	c := testContext(fullBackend{})
	c.SetStickerMode(true)
	c.SubmitFrame(testFrame(100, 100))
	c.Render()
	c.ToggleLock()

	size := image.Pt(100, 100)
	c.SetBrushMode(maskedit.Erase)
	c.PaintAt(image.Pt(50, 50), size, size)

	c.ToggleLock()
	c.SubmitFrame(testFrame(100, 100))
	c.ToggleLock()

	res := c.Render()
	i := 50*res.Display.Stride + 50*4
	if res.Display.Pix[i+3] != 255 {
		t.Error("Erased layer must not survive an unlock")
	}
}

func TestBrushSettings(t *testing.T) {
	c := testContext(fullBackend{})

	c.SetBrushRadius(500)
	if c.BrushRadius() != maskedit.MaxRadius {
		t.Errorf("Expected radius clamped to %d, got %d", maskedit.MaxRadius, c.BrushRadius())
	}

	c.SetBrushMode(maskedit.Erase)
	if c.BrushMode() != maskedit.Erase {
		t.Errorf("Expected erase mode, got %v", c.BrushMode())
	}
}

func TestExportStickerRequiresLock(t *testing.T) {
	c := testContext(fullBackend{})
	c.SetStickerMode(true)
	c.SubmitFrame(testFrame(64, 64))

	if _, err := c.ExportSticker(); !errors.Is(err, ErrNotLocked) {
		t.Errorf("Expected ErrNotLocked, got %v", err)
	}

	c.ToggleLock()
	data, err := c.ExportSticker()
	if err != nil {
		t.Fatalf("ExportSticker failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected encoded sticker bytes")
	}
}

func TestExportStickerWithoutFrame(t *testing.T) {
	c := testContext(fullBackend{})
	c.ToggleLock()

	if _, err := c.ExportSticker(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame, got %v", err)
	}
}

func TestOnUpdateFiresWhileFrozen(t *testing.T) {
	c := testContext(fullBackend{})
	c.SubmitFrame(testFrame(50, 50))

	var mu sync.Mutex
	updates := 0
	c.SetOnUpdate(func(Result) {
		mu.Lock()
		updates++
		mu.Unlock()
	})

	// Live adjustments do not fire the callback; the tick loop re-renders.
	c.SetZoom(2.0)
	mu.Lock()
	if updates != 0 {
		t.Errorf("Live adjustment must not fire the callback, got %d", updates)
	}
	mu.Unlock()

	c.ToggleLock()
	c.SetZoom(3.0)
	c.SetBrightness(20)
	mu.Lock()
	if updates != 2 {
		t.Errorf("Expected 2 frozen-adjustment updates, got %d", updates)
	}
	mu.Unlock()
}

// sourceFunc adapts a function to the FrameSource interface.
type sourceFunc func(ctx context.Context) (*image.NRGBA, error)

func (f sourceFunc) NextFrame(ctx context.Context) (*image.NRGBA, error) { return f(ctx) }

func TestRunDeliversFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logger = quietLogger()
	cfg.TickInterval = time.Millisecond
	c := NewContext(segment.FromSegmenter(fullBackend{}), nil, nil, cfg)

	var mu sync.Mutex
	delivered := 0
	frame := testFrame(20, 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, sourceFunc(func(context.Context) (*image.NRGBA, error) {
			return frame, nil
		}), func(Result) {
			mu.Lock()
			delivered++
			if delivered >= 3 {
				cancel()
			}
			mu.Unlock()
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not deliver frames in time")
	}

	mu.Lock()
	if delivered < 3 {
		t.Errorf("Expected at least 3 deliveries, got %d", delivered)
	}
	mu.Unlock()
}

func TestRunStopsOnSourceError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logger = quietLogger()
	cfg.TickInterval = time.Millisecond
	c := NewContext(segment.FromSegmenter(fullBackend{}), nil, nil, cfg)

	sourceErr := errors.New("camera gone")
	err := c.Run(context.Background(), sourceFunc(func(context.Context) (*image.NRGBA, error) {
		return nil, sourceErr
	}), nil)

	if !errors.Is(err, sourceErr) {
		t.Errorf("Expected wrapped source error, got %v", err)
	}
}

func TestRunSkipsTicksWhileFrozen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logger = quietLogger()
	cfg.TickInterval = time.Millisecond
	c := NewContext(segment.FromSegmenter(fullBackend{}), nil, nil, cfg)
	c.ToggleLock()

	var mu sync.Mutex
	pulls := 0

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx, sourceFunc(func(context.Context) (*image.NRGBA, error) {
		mu.Lock()
		pulls++
		mu.Unlock()
		return testFrame(10, 10), nil
	}), nil)

	mu.Lock()
	if pulls != 0 {
		t.Errorf("Frozen view must not pull frames, got %d pulls", pulls)
	}
	mu.Unlock()
}

func TestFreezeStateString(t *testing.T) {
	if Live.String() != "live" || HeldFrozen.String() != "held-frozen" || LockedFrozen.String() != "locked-frozen" {
		t.Error("Unexpected FreezeState string values")
	}
}
