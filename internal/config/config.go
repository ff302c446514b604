package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/sheet2photos/internal/errs"
)

// Config holds every tunable of a run. It is built once in main, validated,
// and then only read.
type Config struct {
	ChromaKeyColor         string  `yaml:"chroma-key-color"`
	FloodfillFuzz          float64 `yaml:"floodfill-fuzz"`
	TrimEdges              int     `yaml:"trim-edges"`
	GrowEdges              int     `yaml:"grow-edges"`
	BlurEdgeFactor         float64 `yaml:"blur-edge-factor"`
	MinPixelsTouchingLine  int     `yaml:"min-pixels-touching-line"`
	MaxLines               int     `yaml:"max-lines"`
	MaxLineThickness       int     `yaml:"max-line-thickness"`
	MaxBlobRotation        float64 `yaml:"max-blob-rotation"`
	MinBlobArea            int     `yaml:"min-blob-area"`
	BlobPadding            int     `yaml:"blob-padding"`
	SkewMethod             string  `yaml:"skew-method"`
	DPI                    int     `yaml:"dpi"`
	IgnoreDetectedDPI      bool    `yaml:"ignore-detected-dpi"`
	SaveIntermediaryImages bool    `yaml:"save-intermediary-images"`
	OutputDir              string  `yaml:"output-dir"`
	Workers                int     `yaml:"workers"`
	Verbose                bool    `yaml:"verbose"`
	BuildVersion           string  `yaml:"-"`

	key colorful.Color
}

// Default returns the configuration used when neither flags nor a config
// file say otherwise.
func Default() *Config {
	return &Config{
		ChromaKeyColor:        "#71AA5D",
		FloodfillFuzz:         17,
		TrimEdges:             10,
		GrowEdges:             6,
		BlurEdgeFactor:        2.0,
		MinPixelsTouchingLine: 225,
		MaxLines:              4,
		MaxLineThickness:      24,
		MaxBlobRotation:       10,
		MinBlobArea:           2500,
		BlobPadding:           2,
		SkewMethod:            "minrect",
		DPI:                   150,
	}
}

// Load overlays the YAML file at path onto the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidParameter, path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.Wrap(errs.InvalidParameter, path, fmt.Errorf("parse config: %w", err))
	}
	return cfg, nil
}

// ParseKeyColor accepts "#RRGGBB", "RRGGBB" and the short "#RGB" form.
func ParseKeyColor(s string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("chroma-key-color %q: %w", s, err)
	}
	return c, nil
}

// Validate checks ranges and parses the key colour. It must be called before
// the config is shared.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errs.New(errs.InvalidParameter, "", format, args...)
	}

	key, err := ParseKeyColor(c.ChromaKeyColor)
	if err != nil {
		return errs.Wrap(errs.InvalidParameter, "", err)
	}
	c.key = key

	switch {
	case c.FloodfillFuzz < 0 || c.FloodfillFuzz > 100:
		return invalid("floodfill-fuzz must be within 0..100, got %g", c.FloodfillFuzz)
	case c.TrimEdges < 0:
		return invalid("trim-edges must not be negative, got %d", c.TrimEdges)
	case c.GrowEdges < 0:
		return invalid("grow-edges must not be negative, got %d", c.GrowEdges)
	case c.BlurEdgeFactor <= 0:
		return invalid("blur-edge-factor must be greater than 0, got %g", c.BlurEdgeFactor)
	case c.MinPixelsTouchingLine < 1:
		return invalid("min-pixels-touching-line must be at least 1, got %d", c.MinPixelsTouchingLine)
	case c.MaxLines < 0:
		return invalid("max-lines must not be negative, got %d", c.MaxLines)
	case c.MaxLineThickness < 1:
		return invalid("max-line-thickness must be at least 1, got %d", c.MaxLineThickness)
	case c.MaxBlobRotation < 0 || c.MaxBlobRotation > 45:
		return invalid("max-blob-rotation must be within 0..45, got %g", c.MaxBlobRotation)
	case c.MinBlobArea < 1:
		return invalid("min-blob-area must be at least 1, got %d", c.MinBlobArea)
	case c.BlobPadding < 0:
		return invalid("blob-padding must not be negative, got %d", c.BlobPadding)
	case c.DPI < 1:
		return invalid("dpi must be at least 1, got %d", c.DPI)
	case c.Workers < 0:
		return invalid("workers must not be negative, got %d", c.Workers)
	}

	switch c.SkewMethod {
	case "", "minrect", "hough", "ocr":
	default:
		return invalid("unknown skew-method %q", c.SkewMethod)
	}

	if c.OutputDir != "" {
		fi, err := os.Stat(c.OutputDir)
		if err != nil {
			return errs.Wrap(errs.InvalidParameter, c.OutputDir, err)
		}
		if !fi.IsDir() {
			return invalid("output-dir %s is not a directory", c.OutputDir)
		}
	}

	return nil
}

// KeyColor returns the parsed chroma key. Only valid after Validate.
func (c *Config) KeyColor() colorful.Color {
	return c.key
}
