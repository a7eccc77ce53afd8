// Package coords maps pointer positions between display space (the scaled
// pixmap centered in a widget) and the processing-frame space that masks are
// painted in. When a face-anchored crop is active, only that sub-rectangle of
// the processing frame is displayed, so the mapping goes through the crop.
package coords

import "image"

// DisplayToProcessing converts a pointer position in widget coordinates to a
// pixel coordinate in the processing frame. It returns false when the pointer
// falls outside the displayed pixmap; callers treat that as a no-op since it
// arises from normal pointer travel outside the image.
//
// crop, when non-nil, is the displayed sub-rectangle of the processing frame
// in processing-frame coordinates.
func DisplayToProcessing(display, pixmap, widget image.Point, crop *image.Rectangle, processed image.Point) (image.Point, bool) {
	if pixmap.X <= 0 || pixmap.Y <= 0 || processed.X <= 0 || processed.Y <= 0 {
		return image.Point{}, false
	}

	// The pixmap is centered inside the widget.
	px := float64(display.X) - float64(widget.X-pixmap.X)/2
	py := float64(display.Y) - float64(widget.Y-pixmap.Y)/2
	if px < 0 || py < 0 || px >= float64(pixmap.X) || py >= float64(pixmap.Y) {
		return image.Point{}, false
	}

	nx := px / float64(pixmap.X)
	ny := py / float64(pixmap.Y)

	var fx, fy float64
	if crop != nil {
		fx = float64(crop.Min.X) + nx*float64(crop.Dx())
		fy = float64(crop.Min.Y) + ny*float64(crop.Dy())
	} else {
		fx = nx * float64(processed.X)
		fy = ny * float64(processed.Y)
	}

	return image.Point{
		X: clampInt(int(fx), 0, processed.X-1),
		Y: clampInt(int(fy), 0, processed.Y-1),
	}, true
}

// ProcessingToDisplay is the inverse mapping, used to place processing-frame
// pixels back under the cursor. The affine transform is exact; the only loss
// is integer truncation at the ends.
func ProcessingToDisplay(pt, pixmap, widget image.Point, crop *image.Rectangle, processed image.Point) image.Point {
	var nx, ny float64
	if crop != nil && crop.Dx() > 0 && crop.Dy() > 0 {
		nx = (float64(pt.X) - float64(crop.Min.X)) / float64(crop.Dx())
		ny = (float64(pt.Y) - float64(crop.Min.Y)) / float64(crop.Dy())
	} else {
		nx = float64(pt.X) / float64(processed.X)
		ny = float64(pt.Y) / float64(processed.Y)
	}

	px := nx*float64(pixmap.X) + float64(widget.X-pixmap.X)/2
	py := ny*float64(pixmap.Y) + float64(widget.Y-pixmap.Y)/2
	return image.Point{X: int(px), Y: int(py)}
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
