package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration.
type Config struct {
	Segmentation SegmentationConfig `json:"segmentation"`
	Brush        BrushConfig        `json:"brush"`
	Export       ExportConfig       `json:"export"`
	Render       RenderConfig       `json:"render"`
	Server       ServerConfig       `json:"server"`
}

// SegmentationConfig selects and configures the segmentation backend and the
// face-cascade asset.
type SegmentationConfig struct {
	// Backend is "saliency" or "ollama".
	Backend     string `json:"backend"`
	OllamaURL   string `json:"ollama_url"`
	OllamaModel string `json:"ollama_model"`
	CascadePath string `json:"cascade_path"`
	CascadeURL  string `json:"cascade_url"`
}

// BrushConfig holds the initial brush settings.
type BrushConfig struct {
	DefaultRadius int `json:"default_radius"`
}

// ExportConfig holds sticker export settings.
type ExportConfig struct {
	CanvasSize  int    `json:"canvas_size"`
	MaxBytes    int    `json:"max_bytes"`
	QualityMax  int    `json:"quality_max"`
	QualityMin  int    `json:"quality_min"`
	QualityStep int    `json:"quality_step"`
	OutputDir   string `json:"output_dir"`
}

// RenderConfig holds the tick loop settings.
type RenderConfig struct {
	TickIntervalMS int     `json:"tick_interval_ms"`
	PanStep        float64 `json:"pan_step"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	ListenAddr string `json:"listen_addr"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Segmentation: SegmentationConfig{
			Backend:     "saliency",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "llava",
			CascadePath: "models/facefinder",
			CascadeURL:  "https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder",
		},
		Brush: BrushConfig{
			DefaultRadius: 20,
		},
		Export: ExportConfig{
			CanvasSize:  512,
			MaxBytes:    500 * 1024,
			QualityMax:  90,
			QualityMin:  10,
			QualityStep: 10,
			OutputDir:   ".",
		},
		Render: RenderConfig{
			TickIntervalMS: 33,
			PanStep:        0.05,
		},
		Server: ServerConfig{
			ListenAddr: ":1323",
		},
	}
}

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file.
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Segmentation.Backend {
	case "saliency", "ollama":
	default:
		return fmt.Errorf("segmentation.backend must be 'saliency' or 'ollama'")
	}

	if c.Segmentation.Backend == "ollama" && c.Segmentation.OllamaModel == "" {
		return fmt.Errorf("segmentation.ollama_model cannot be empty")
	}

	if c.Brush.DefaultRadius < 1 {
		return fmt.Errorf("brush.default_radius must be positive")
	}

	if c.Export.CanvasSize < 16 {
		return fmt.Errorf("export.canvas_size must be at least 16")
	}

	if c.Export.MaxBytes < 1 {
		return fmt.Errorf("export.max_bytes must be positive")
	}

	if c.Export.QualityMax < c.Export.QualityMin {
		return fmt.Errorf("export.quality_max must be >= export.quality_min")
	}

	if c.Export.QualityMin < 1 || c.Export.QualityMax > 100 {
		return fmt.Errorf("export quality bounds must be between 1 and 100")
	}

	if c.Export.QualityStep < 1 {
		return fmt.Errorf("export.quality_step must be positive")
	}

	if c.Render.TickIntervalMS < 1 {
		return fmt.Errorf("render.tick_interval_ms must be positive")
	}

	if c.Render.PanStep <= 0 || c.Render.PanStep > 1 {
		return fmt.Errorf("render.pan_step must be in (0, 1]")
	}

	return nil
}

// GetConfigPath returns the default configuration file path.
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "sticker-maker", "config.json")
}
