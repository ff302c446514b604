// Package report stores the outcome of a run as YAML.
package report

import (
	"image"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/sheet2photos/internal/config"
)

const Version = "1.0"

// File statuses.
const (
	StatusOK      = "ok"
	StatusNoBlobs = "no-blobs"
	StatusFailed  = "failed"
)

// Report is the outcome of one batch
type Report struct {
	Version string         `yaml:"version"`
	Build   string         `yaml:"build,omitempty"`
	Config  *config.Config `yaml:"config"`
	Files   []File         `yaml:"files"`
	Totals  Totals         `yaml:"totals"`
}

// File is one input path. PDFs hold a sheet per page.
type File struct {
	Path   string  `yaml:"path"`
	Status string  `yaml:"status"`
	Error  string  `yaml:"error,omitempty"`
	Sheets []Sheet `yaml:"sheets,omitempty"`
}

type Sheet struct {
	Stem   string `yaml:"stem"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	DPI    string `yaml:"dpi"`
	Lines  int    `yaml:"lines-removed"`
	Status string `yaml:"status"`
	Error  string `yaml:"error,omitempty"`
	Blobs  []Blob `yaml:"blobs,omitempty"`
}

type Blob struct {
	ID       int       `yaml:"id"`
	Bounds   Rectangle `yaml:"bounds"`
	Area     int       `yaml:"area"`
	Centroid Point     `yaml:"centroid"`
	Skew     float64   `yaml:"skew"`
	Rotation float64   `yaml:"rotation"`
	Output   string    `yaml:"output,omitempty"`
	Error    string    `yaml:"error,omitempty"`
}

// Rectangle is a bounding box in source pixels
type Rectangle struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

func RectangleOf(r image.Rectangle) Rectangle {
	return Rectangle{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type Totals struct {
	FilesProcessed    int `yaml:"files-processed"`
	FilesFailed       int `yaml:"files-failed"`
	FilesWithoutBlobs int `yaml:"files-without-blobs"`
	BlobsExtracted    int `yaml:"blobs-extracted"`
	BlobsFailed       int `yaml:"blobs-failed"`
}

// Write writes a report to a YAML file
func Write(r *Report, path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Read reads a report from a YAML file
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, err
	}

	return &r, nil
}
