// Package output writes extracted photos and diagnostic images.
package output

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/sheet2photos/internal/config"
	"github.com/ivlev/sheet2photos/internal/dpi"
	"github.com/ivlev/sheet2photos/internal/errs"
)

// Diagnostic file suffixes.
const (
	StageMask     = "mask"
	StageRefined  = "mask-refined"
	StageFiltered = "mask-filtered"
)

// CropStage names the pre-rectification cut-out of a blob.
func CropStage(id int) string {
	return fmt.Sprintf("%d-crop", id)
}

// ImageEncoder serialises an image with its density.
type ImageEncoder interface {
	Encode(w io.Writer, img image.Image, d dpi.Dpi) error
	Ext() string
}

// PNGEncoder writes lossless PNG with a pHYs chunk.
type PNGEncoder struct{}

func (PNGEncoder) Ext() string { return ".png" }

func (PNGEncoder) Encode(w io.Writer, img image.Image, d dpi.Dpi) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	data, err := dpi.InjectPHYs(buf.Bytes(), d)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type Composer struct {
	cfg *config.Config
	log logrus.FieldLogger
	enc ImageEncoder
}

func NewComposer(cfg *config.Config, log logrus.FieldLogger) *Composer {
	return &Composer{cfg: cfg, log: log, enc: PNGEncoder{}}
}

// ResolveDPI picks the configured density when detection is disabled or
// found nothing, the embedded one otherwise.
func (c *Composer) ResolveDPI(detected *dpi.Dpi) dpi.Dpi {
	if c.cfg.IgnoreDetectedDPI || detected == nil || !detected.Valid() {
		return dpi.Uniform(float64(c.cfg.DPI))
	}
	return *detected
}

// Dir is the output directory for files derived from sourcePath.
func (c *Composer) Dir(sourcePath string) string {
	if c.cfg.OutputDir != "" {
		return c.cfg.OutputDir
	}
	return filepath.Dir(sourcePath)
}

// BlobPath returns <dir>/<stem>-<id><ext>.
func (c *Composer) BlobPath(sourcePath, stem string, id int) string {
	return filepath.Join(c.Dir(sourcePath), fmt.Sprintf("%s-%d%s", stem, id, c.enc.Ext()))
}

// IntermediaryPath returns <dir>/<stem>-<stage><ext>.
func (c *Composer) IntermediaryPath(sourcePath, stem, stage string) string {
	return filepath.Join(c.Dir(sourcePath), fmt.Sprintf("%s-%s%s", stem, stage, c.enc.Ext()))
}

// WriteBlob stores a rectified photo and returns its path.
func (c *Composer) WriteBlob(sourcePath, stem string, id int, img image.Image, d dpi.Dpi) (string, error) {
	path := c.BlobPath(sourcePath, stem, id)
	if err := c.write(path, img, d); err != nil {
		return "", errs.ForBlob(errs.Wrap(errs.OutputWrite, path, err), id)
	}
	return path, nil
}

// SaveIntermediary writes a diagnostic image when enabled. Failures are
// logged and otherwise ignored.
func (c *Composer) SaveIntermediary(sourcePath, stem, stage string, img image.Image, d dpi.Dpi) {
	if !c.cfg.SaveIntermediaryImages {
		return
	}
	path := c.IntermediaryPath(sourcePath, stem, stage)
	if err := c.write(path, img, d); err != nil {
		c.log.WithError(err).WithField("stage", stage).Warn("could not save intermediary image")
		return
	}
	c.log.WithField("path", path).Debug("saved intermediary image")
}

func (c *Composer) write(path string, img image.Image, d dpi.Dpi) error {
	return WriteAtomic(path, func(w io.Writer) error {
		return c.enc.Encode(w, img, d)
	})
}

// WriteAtomic writes to a temporary file next to path and renames it into
// place, so readers never see a partial file.
func WriteAtomic(path string, fill func(w io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
