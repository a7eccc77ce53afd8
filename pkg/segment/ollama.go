package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"

	"github.com/menta2k/sticker-maker/pkg/mask"
)

// personPrompt asks a vision model for the bounding region of the most
// prominent person. The backend turns the box into a coarse confidence
// raster; it trades edge accuracy for running against any local vision model.
const personPrompt = `You are a person locator.

Return JSON only:
{
  "present": true,
  "confidence": 0.0,
  "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- The box must tightly include the most prominent person, head and shoulders included.
- confidence is your certainty that the box contains a person.
- If no person is visible, return {"present": false, "confidence": 0.0, "box": {"x": 0, "y": 0, "w": 0, "h": 0}}.
- JSON only. No markdown, no code fences, no comments.`

// Image downscaling before sending to the model.
const (
	ollamaSendMaxDim  = 1024
	ollamaSendQuality = 85
)

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

type personLocation struct {
	Present    bool    `json:"present"`
	Confidence float64 `json:"confidence"`
	Box        struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		W float64 `json:"w"`
		H float64 `json:"h"`
	} `json:"box"`
}

// OllamaSegmenter locates the subject with a vision model served by Ollama.
type OllamaSegmenter struct {
	client *api.Client
	model  string
}

// NewOllama creates an Ollama-backed segmenter against the given server URL.
func NewOllama(serverURL, model string) (*OllamaSegmenter, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &OllamaSegmenter{
		client: api.NewClient(base, http.DefaultClient),
		model:  model,
	}, nil
}

// Segment asks the model for the person box and fills it with the reported
// confidence; everything outside the box keeps zero confidence.
func (o *OllamaSegmenter) Segment(ctx context.Context, frame *image.NRGBA) (*mask.Confidence, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	payload, err := encodeForModel(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame for model: %w", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: personPrompt,
				Images:  []api.ImageData{api.ImageData(payload)},
			},
		},
		Stream: &streamFalse,
	}

	var content string
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content = resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	loc, err := parsePersonLocation(content)
	if err != nil {
		return nil, err
	}

	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	conf := mask.NewConfidence(w, h)
	if !loc.Present || loc.Box.W <= 0 || loc.Box.H <= 0 {
		return conf, nil
	}

	x0 := clampInt(int(loc.Box.X*float64(w)), 0, w)
	y0 := clampInt(int(loc.Box.Y*float64(h)), 0, h)
	x1 := clampInt(int((loc.Box.X+loc.Box.W)*float64(w)), 0, w)
	y1 := clampInt(int((loc.Box.Y+loc.Box.H)*float64(h)), 0, h)
	c := float32(clampFloat(loc.Confidence, 0, 1))
	for y := y0; y < y1; y++ {
		row := y * w
		for x := x0; x < x1; x++ {
			conf.Pix[row+x] = c
		}
	}
	return conf, nil
}

// parsePersonLocation extracts the JSON object from the model response,
// tolerating code fences and surrounding prose.
func parsePersonLocation(content string) (*personLocation, error) {
	content = strings.TrimSpace(content)
	if m := codeFenceRe.FindStringSubmatch(content); m != nil {
		content = m[1]
	}
	if i := strings.Index(content, "{"); i > 0 {
		content = content[i:]
	}
	if i := strings.LastIndex(content, "}"); i >= 0 {
		content = content[:i+1]
	}

	var loc personLocation
	if err := json.Unmarshal([]byte(content), &loc); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	return &loc, nil
}

// encodeForModel downsizes and JPEG-encodes a frame for transfer.
func encodeForModel(frame *image.NRGBA) ([]byte, error) {
	img := image.Image(frame)
	b := frame.Bounds()
	if b.Dx() > ollamaSendMaxDim || b.Dy() > ollamaSendMaxDim {
		if b.Dx() >= b.Dy() {
			img = imaging.Resize(img, ollamaSendMaxDim, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, ollamaSendMaxDim, imaging.Lanczos)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: ollamaSendQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
