package segment

import (
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	pigo "github.com/esimov/pigo/core"
	"github.com/schollz/progressbar/v3"
)

// DefaultCascadeURL is where the face cascade is fetched from when the local
// asset is missing.
const DefaultCascadeURL = "https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder"

// Pigo detection parameters.
const (
	pigoMinSize          = 20
	pigoMaxSize          = 1000
	pigoShiftFactor      = 0.1
	pigoScaleFactor      = 1.1
	pigoIoUThreshold     = 0.2
	pigoQualityThreshold = 5.0
)

// PigoDetector detects faces with the pigo cascade classifier. The cascade is
// unpacked once at construction; Detect is then pure computation.
type PigoDetector struct {
	classifier *pigo.Pigo
}

// NewPigoDetector reads and unpacks a cascade asset. A missing or corrupt
// asset surfaces as an error so the caller can degrade to face-less
// segmentation instead of crashing.
func NewPigoDetector(cascadePath string) (*PigoDetector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade file: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}
	return &PigoDetector{classifier: classifier}, nil
}

// Detect runs the cascade over a grayscale raster and returns face bounding
// boxes. Low-quality detections are dropped and overlapping ones clustered.
func (d *PigoDetector) Detect(gray []uint8, rows, cols int) []image.Rectangle {
	params := pigo.CascadeParams{
		MinSize:     pigoMinSize,
		MaxSize:     pigoMaxSize,
		ShiftFactor: pigoShiftFactor,
		ScaleFactor: pigoScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, pigoIoUThreshold)

	var faces []image.Rectangle
	for _, det := range dets {
		if det.Q < pigoQualityThreshold {
			continue
		}
		// Pigo reports center (row, col) and scale; convert to a box.
		x := det.Col - det.Scale/2
		y := det.Row - det.Scale/2
		faces = append(faces, image.Rect(x, y, x+det.Scale, y+det.Scale))
	}
	return faces
}

// EnsureCascade downloads the cascade asset from url into path when the file
// does not exist yet. Partial downloads are removed so a failed fetch can be
// retried.
func EnsureCascade(path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if url == "" {
		url = DefaultCascadeURL
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create cascade directory: %w", err)
		}
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("fetch cascade: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch cascade: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cascade file: %w", err)
	}

	bar := progressbar.DefaultBytes(resp.ContentLength, "fetching face cascade")
	if _, err := io.Copy(io.MultiWriter(f, bar), resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("download cascade: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("write cascade file: %w", err)
	}
	return nil
}
