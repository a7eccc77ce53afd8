package render

import (
	"image"

	"github.com/menta2k/sticker-maker/pkg/coords"
	"github.com/menta2k/sticker-maker/pkg/geometry"
	"github.com/menta2k/sticker-maker/pkg/maskedit"
)

// Press pauses the live view while a press is active.
func (c *Context) Press() {
	c.mu.Lock()
	if c.freeze == Live {
		c.freeze = HeldFrozen
	}
	c.mu.Unlock()
}

// Release ends a held freeze and resets pan; a locked freeze is unaffected.
func (c *Context) Release() {
	c.mu.Lock()
	if c.freeze == HeldFrozen {
		c.freeze = Live
		c.pan = geometry.Pan{}
		c.resetFrameStateLocked()
	}
	c.mu.Unlock()
}

// ToggleLock switches the locked freeze on or off. Unlocking resets pan and
// discards the segmentation and mask layers scoped to the frozen frame.
func (c *Context) ToggleLock() FreezeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.freeze == LockedFrozen {
		c.freeze = Live
		c.pan = geometry.Pan{}
		c.resetFrameStateLocked()
	} else {
		c.freeze = LockedFrozen
	}
	return c.freeze
}

// State returns the current freeze state.
func (c *Context) State() FreezeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freeze
}

// Frozen reports whether frame updates are currently paused.
func (c *Context) Frozen() bool {
	return c.State() != Live
}

// SetZoom clamps and applies a zoom factor. Pan is re-clamped since its
// valid range shrinks with zoom.
func (c *Context) SetZoom(z float64) {
	c.mu.Lock()
	c.zoom = geometry.ClampZoom(z)
	c.pan = c.pan.Clamp(c.zoom)
	c.invalidateSegLocked()
	fn, res, notify := c.afterChangeLocked()
	c.mu.Unlock()
	if notify {
		fn(res)
	}
}

// ZoomBy applies a multiplicative zoom delta, as produced by pinch gestures.
func (c *Context) ZoomBy(scale float64) {
	c.mu.Lock()
	z := c.zoom * scale
	c.mu.Unlock()
	c.SetZoom(z)
}

// Zoom returns the current zoom factor.
func (c *Context) Zoom() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

// SetPan clamps and applies an absolute pan offset.
func (c *Context) SetPan(p geometry.Pan) {
	c.mu.Lock()
	c.pan = p.Clamp(c.zoom)
	c.invalidateSegLocked()
	fn, res, notify := c.afterChangeLocked()
	c.mu.Unlock()
	if notify {
		fn(res)
	}
}

// PanBy shifts the pan by fractional deltas.
func (c *Context) PanBy(dx, dy float64) {
	c.mu.Lock()
	p := geometry.Pan{X: c.pan.X + dx, Y: c.pan.Y + dy}
	c.mu.Unlock()
	c.SetPan(p)
}

// NudgePan shifts the pan by whole steps, as bound to arrow keys.
func (c *Context) NudgePan(dxSteps, dySteps int) {
	c.PanBy(float64(dxSteps)*c.panStep, float64(dySteps)*c.panStep)
}

// DragPan converts a pointer-drag delta in raw-frame pixels into a pan
// shift.
func (c *Context) DragPan(dx, dy float64) {
	c.mu.Lock()
	raw := c.lastRaw
	c.mu.Unlock()
	if raw == nil {
		return
	}
	w := float64(raw.Bounds().Dx())
	h := float64(raw.Bounds().Dy())
	c.PanBy(dx/w*2, dy/h*2)
}

// ScrollPan converts a scroll delta in pixels into a pan shift. Scroll moves
// the view faster than dragging.
func (c *Context) ScrollPan(dx, dy float64) {
	c.mu.Lock()
	raw := c.lastRaw
	c.mu.Unlock()
	if raw == nil {
		return
	}
	w := float64(raw.Bounds().Dx())
	h := float64(raw.Bounds().Dy())
	c.PanBy(dx/w*4, dy/h*4)
}

// Pan returns the current pan offset.
func (c *Context) Pan() geometry.Pan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pan
}

// SetBrightness clamps and applies an additive brightness offset.
func (c *Context) SetBrightness(b int) {
	c.mu.Lock()
	c.brightness = geometry.ClampBrightness(b)
	c.invalidateSegLocked()
	fn, res, notify := c.afterChangeLocked()
	c.mu.Unlock()
	if notify {
		fn(res)
	}
}

// Brightness returns the current brightness offset.
func (c *Context) Brightness() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brightness
}

// SetMirrored switches horizontal mirroring.
func (c *Context) SetMirrored(mirrored bool) {
	c.mu.Lock()
	c.mirrored = mirrored
	c.invalidateSegLocked()
	fn, res, notify := c.afterChangeLocked()
	c.mu.Unlock()
	if notify {
		fn(res)
	}
}

// Mirrored reports whether horizontal mirroring is active.
func (c *Context) Mirrored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirrored
}

// SetStickerMode switches the segmentation and compositing stages on or off.
func (c *Context) SetStickerMode(enabled bool) {
	c.mu.Lock()
	c.stickerMode = enabled
	fn, res, notify := c.afterChangeLocked()
	c.mu.Unlock()
	if notify {
		fn(res)
	}
}

// StickerMode reports whether sticker mode is active.
func (c *Context) StickerMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stickerMode
}

// SetBrushRadius clamps and applies the brush radius.
func (c *Context) SetBrushRadius(r int) {
	c.mu.Lock()
	c.brushRadius = maskedit.ClampRadius(r)
	c.mu.Unlock()
}

// BrushRadius returns the current brush radius.
func (c *Context) BrushRadius() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brushRadius
}

// SetBrushMode selects add or erase painting.
func (c *Context) SetBrushMode(m maskedit.Mode) {
	c.mu.Lock()
	c.brushMode = m
	c.mu.Unlock()
}

// BrushMode returns the current paint mode.
func (c *Context) BrushMode() maskedit.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brushMode
}

// PaintAt maps a pointer position into the processing frame and paints one
// brush sample there, continuing the active stroke if one is in progress.
// It reports false when painting is not permitted or the pointer is outside
// the displayed image; the latter is a normal no-op.
func (c *Context) PaintAt(display, pixmap, widget image.Point) bool {
	c.mu.Lock()
	if c.freeze != LockedFrozen || !c.stickerMode || c.processedSize.X == 0 || c.processedSize.Y == 0 {
		c.mu.Unlock()
		return false
	}

	pt, ok := coords.DisplayToProcessing(display, pixmap, widget, c.cropRegion, c.processedSize)
	if !ok {
		c.lastStroke = nil
		c.mu.Unlock()
		return false
	}

	if !c.layer.Matches(c.processedSize.X, c.processedSize.Y) {
		c.layer = maskedit.NewLayer(c.processedSize.X, c.processedSize.Y)
	}
	if c.lastStroke != nil {
		c.layer.PaintStroke(*c.lastStroke, pt, c.brushRadius, c.brushMode)
	} else {
		c.layer.Paint(pt, c.brushRadius, c.brushMode)
	}
	stroke := pt
	c.lastStroke = &stroke

	fn, res, notify := c.afterChangeLocked()
	c.mu.Unlock()
	if notify {
		fn(res)
	}
	return true
}

// EndStroke terminates the active stroke so the next paint does not
// interpolate from the previous pointer position.
func (c *Context) EndStroke() {
	c.mu.Lock()
	c.lastStroke = nil
	c.mu.Unlock()
}

// ExportSticker renders the locked frame and serializes it as a sticker.
func (c *Context) ExportSticker() ([]byte, error) {
	c.mu.Lock()
	if c.freeze != LockedFrozen {
		c.mu.Unlock()
		return nil, ErrNotLocked
	}
	res := c.renderLocked()
	c.mu.Unlock()

	if res.Display == nil {
		return nil, ErrNoFrame
	}
	return c.exporter.Export(res.Display)
}
