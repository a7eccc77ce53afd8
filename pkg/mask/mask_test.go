package mask

import (
	"image"
	"testing"
)

func TestNewZeroFilled(t *testing.T) {
	m := New(4, 3)

	if m.W != 4 || m.H != 3 {
		t.Errorf("Expected 4x3 mask, got %dx%d", m.W, m.H)
	}
	if len(m.Pix) != 12 {
		t.Errorf("Expected 12 pixels, got %d", len(m.Pix))
	}
	if m.CountNonZero() != 0 {
		t.Errorf("Expected empty mask, got %d set pixels", m.CountNonZero())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := New(3, 3)
	m.Set(1, 1, 1)

	c := m.Clone()
	c.Set(0, 0, 1)

	if m.At(0, 0) != 0 {
		t.Error("Clone write leaked into the original")
	}
	if c.At(1, 1) != 1 {
		t.Error("Clone did not copy existing pixels")
	}
}

func TestMatches(t *testing.T) {
	m := New(5, 4)

	if !m.Matches(5, 4) {
		t.Error("Expected mask to match its own dimensions")
	}
	if m.Matches(4, 5) {
		t.Error("Expected mismatch for swapped dimensions")
	}

	var nilMask *Mask
	if nilMask.Matches(5, 4) {
		t.Error("Nil mask must never match")
	}
}

func TestAtSetOutOfBounds(t *testing.T) {
	m := New(2, 2)

	m.Set(-1, 0, 1)
	m.Set(0, -1, 1)
	m.Set(2, 0, 1)
	m.Set(0, 2, 1)

	if m.CountNonZero() != 0 {
		t.Error("Out-of-bounds writes must be ignored")
	}
	if m.At(-1, 0) != 0 || m.At(5, 5) != 0 {
		t.Error("Out-of-bounds reads must return 0")
	}
}

func TestOrAndNot(t *testing.T) {
	a := New(3, 1)
	a.Set(0, 0, 1)

	b := New(3, 1)
	b.Set(0, 0, 1)
	b.Set(1, 0, 1)

	a.Or(b)
	if a.At(0, 0) != 1 || a.At(1, 0) != 1 || a.At(2, 0) != 0 {
		t.Errorf("Unexpected Or result: %v", a.Pix)
	}

	a.AndNot(b)
	if a.CountNonZero() != 0 {
		t.Errorf("Expected AndNot to clear both pixels, got %v", a.Pix)
	}
}

func TestOrMismatchedDimensionsIgnored(t *testing.T) {
	a := New(3, 3)
	b := New(2, 2)
	b.Set(0, 0, 1)

	a.Or(b)
	if a.CountNonZero() != 0 {
		t.Error("Or with mismatched dimensions must be a no-op")
	}

	a.Set(1, 1, 1)
	a.AndNot(b)
	if a.At(1, 1) != 1 {
		t.Error("AndNot with mismatched dimensions must be a no-op")
	}
}

func TestIntersectEllipse(t *testing.T) {
	m := New(10, 10)
	for i := range m.Pix {
		m.Pix[i] = 1
	}

	m.IntersectEllipse(5, 5, 2, 3)

	if m.At(5, 5) != 1 {
		t.Error("Ellipse center must stay set")
	}
	if m.At(0, 0) != 0 {
		t.Error("Far corner must be cleared")
	}
	if m.At(7, 5) != 1 {
		t.Error("Point on the horizontal semi-axis must stay set")
	}
	if m.At(8, 5) != 0 {
		t.Error("Point past the horizontal semi-axis must be cleared")
	}
}

func TestIntersectEllipseDegenerate(t *testing.T) {
	m := New(4, 4)
	for i := range m.Pix {
		m.Pix[i] = 1
	}

	m.IntersectEllipse(2, 2, 0, 3)

	if m.CountNonZero() != 0 {
		t.Error("Degenerate ellipse must clear the whole mask")
	}
}

func TestCrop(t *testing.T) {
	m := New(6, 6)
	m.Set(2, 2, 1)
	m.Set(3, 4, 1)

	c := m.Crop(image.Rect(2, 2, 5, 5))

	if c.W != 3 || c.H != 3 {
		t.Fatalf("Expected 3x3 crop, got %dx%d", c.W, c.H)
	}
	if c.At(0, 0) != 1 {
		t.Error("Expected (2,2) to map to crop origin")
	}
	if c.At(1, 2) != 1 {
		t.Error("Expected (3,4) to map to (1,2)")
	}
	if c.CountNonZero() != 2 {
		t.Errorf("Expected 2 set pixels, got %d", c.CountNonZero())
	}
}

func TestCropClipsToBounds(t *testing.T) {
	m := New(4, 4)
	c := m.Crop(image.Rect(-2, -2, 10, 10))

	if c.W != 4 || c.H != 4 {
		t.Errorf("Expected crop clipped to 4x4, got %dx%d", c.W, c.H)
	}
}

func TestToGray(t *testing.T) {
	m := New(3, 2)
	m.Set(1, 0, 1)

	g := m.ToGray()

	if g.Bounds().Dx() != 3 || g.Bounds().Dy() != 2 {
		t.Fatalf("Unexpected gray bounds: %v", g.Bounds())
	}
	if g.GrayAt(1, 0).Y != 255 {
		t.Error("Set pixel must be full intensity")
	}
	if g.GrayAt(0, 0).Y != 0 {
		t.Error("Unset pixel must be zero")
	}
}

func TestFromNRGBAThreshold(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.Pix[0] = 255 // above
	img.Pix[4] = 76  // just below 0.3*255
	img.Pix[8] = 77  // just above 0.3*255

	m := FromNRGBA(img, 0.3)

	if m.At(0, 0) != 1 {
		t.Error("Full-intensity pixel must be set")
	}
	if m.At(1, 0) != 0 {
		t.Error("Pixel at the threshold must not be set")
	}
	if m.At(2, 0) != 1 {
		t.Error("Pixel above the threshold must be set")
	}
}

func TestConfidenceBinarize(t *testing.T) {
	c := NewConfidence(3, 1)
	c.Pix[0] = 0.4
	c.Pix[1] = 0.5
	c.Pix[2] = 0.51

	m := c.Binarize(0.5)

	if m.At(0, 0) != 0 {
		t.Error("Confidence below threshold must not be set")
	}
	if m.At(1, 0) != 0 {
		t.Error("Confidence exactly at threshold must not be set")
	}
	if m.At(2, 0) != 1 {
		t.Error("Confidence above threshold must be set")
	}
}
