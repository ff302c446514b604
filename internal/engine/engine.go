package engine

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/sheet2photos/internal/analyzer"
	"github.com/ivlev/sheet2photos/internal/config"
	"github.com/ivlev/sheet2photos/internal/dpi"
	"github.com/ivlev/sheet2photos/internal/errs"
	"github.com/ivlev/sheet2photos/internal/mask"
	"github.com/ivlev/sheet2photos/internal/output"
	"github.com/ivlev/sheet2photos/internal/rectify"
	"github.com/ivlev/sheet2photos/internal/source"
	"github.com/ivlev/sheet2photos/internal/system"
)

// Batch runs the extraction pipeline over many input files. Stages are
// stateless, so one Batch serves all workers.
type Batch struct {
	Config   *config.Config
	Composer *output.Composer
	Workers  int

	log       logrus.FieldLogger
	segmenter *analyzer.Segmenter
	refiner   *mask.Refiner
	lines     *analyzer.LineFilter
	extractor *analyzer.ComponentExtractor
	rectifier *rectify.Rectifier
}

// NewBatch wires the pipeline stages from a validated configuration.
func NewBatch(cfg *config.Config, log logrus.FieldLogger) (*Batch, error) {
	est, err := analyzer.NewSkewEstimator(cfg.SkewMethod, analyzer.SkewOptions{MaxLines: cfg.MaxLines})
	if err != nil {
		return nil, err
	}
	key := cfg.KeyColor()

	return &Batch{
		Config:    cfg,
		Composer:  output.NewComposer(cfg, log),
		Workers:   system.Workers(cfg.Workers),
		log:       log,
		segmenter: analyzer.NewSegmenter(key, cfg.FloodfillFuzz),
		refiner:   mask.NewRefiner(cfg.TrimEdges, cfg.GrowEdges, cfg.BlurEdgeFactor),
		lines:     analyzer.NewLineFilter(cfg.MinPixelsTouchingLine, cfg.MaxLines, cfg.MaxLineThickness),
		extractor: analyzer.NewComponentExtractor(cfg.MinBlobArea),
		rectifier: rectify.New(rectify.Options{
			Key:         key,
			Fuzz:        cfg.FloodfillFuzz,
			MaxRotation: cfg.MaxBlobRotation,
			Padding:     cfg.BlobPadding,
		}, est),
	}, nil
}

type BlobResult struct {
	Blob     *analyzer.Blob
	Skew     float64
	Rotation float64
	Output   string
	Err      error
}

type SheetResult struct {
	Stem          string
	Width, Height int
	DPI           dpi.Dpi
	Lines         []analyzer.LineArtifact
	SkippedLines  []analyzer.LineArtifact
	Blobs         []BlobResult
	// Err is a warning when errs.IsWarning holds, a failure otherwise.
	Err      error
	Duration time.Duration
}

func (s *SheetResult) Failed() bool {
	return s.Err != nil && !errs.IsWarning(s.Err)
}

type FileResult struct {
	Path   string
	Sheets []SheetResult
	Err    error
}

// Failed reports whether the file could not be opened or one of its sheets
// failed as a whole. Failed blobs do not fail the file.
func (r *FileResult) Failed() bool {
	if r.Err != nil {
		return true
	}
	for i := range r.Sheets {
		if r.Sheets[i].Failed() {
			return true
		}
	}
	return false
}

// Extracted counts the photos written for this file.
func (r *FileResult) Extracted() int {
	n := 0
	for _, s := range r.Sheets {
		for _, b := range s.Blobs {
			if b.Err == nil && b.Output != "" {
				n++
			}
		}
	}
	return n
}

// Run processes inputs with at most Workers files in flight. Results keep
// the order of inputs. Cancelling ctx stops dispatch; files never started
// carry ctx's error.
func (b *Batch) Run(ctx context.Context, inputs []string) ([]FileResult, error) {
	results := make([]FileResult, len(inputs))

	var g errgroup.Group
	g.SetLimit(b.Workers)
	b.log.Debugf("processing %d files with %d workers", len(inputs), b.Workers)

	for i, path := range inputs {
		if err := ctx.Err(); err != nil {
			results[i] = FileResult{Path: path, Err: err}
			continue
		}
		g.Go(func() error {
			results[i] = b.ProcessFile(ctx, path)
			return nil
		})
	}
	g.Wait()
	return results, ctx.Err()
}

// ProcessFile extracts photos from every sheet of one input file.
func (b *Batch) ProcessFile(ctx context.Context, path string) FileResult {
	log := b.log.WithField("file", path)
	res := FileResult{Path: path}

	src, err := source.Open(path, b.Config.DPI)
	if err != nil {
		log.WithError(err).Error("could not open input")
		res.Err = err
		return res
	}
	defer src.Close()

	for i := 0; i < src.SheetCount(); i++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		img, err := src.ReadSheet(i)
		if err != nil {
			log.WithError(err).Errorf("could not read sheet %d", i+1)
			res.Sheets = append(res.Sheets, SheetResult{Stem: source.Stem(path), Err: err})
			continue
		}
		res.Sheets = append(res.Sheets, b.ProcessSheet(ctx, img))
	}
	return res
}

// ProcessSheet runs segmentation, refinement, line removal, labelling and
// rectification on one decoded sheet and writes the photos found.
func (b *Batch) ProcessSheet(ctx context.Context, img *source.SourceImage) (res SheetResult) {
	start := time.Now()
	log := b.log.WithField("file", img.Path)
	if img.Stem != source.Stem(img.Path) {
		log = log.WithField("sheet", img.Stem)
	}

	bounds := img.Pixels.Bounds()
	d := b.Composer.ResolveDPI(img.DPI)
	res = SheetResult{Stem: img.Stem, Width: bounds.Dx(), Height: bounds.Dy(), DPI: d}
	defer func() { res.Duration = time.Since(start) }()

	if b.Config.Verbose {
		b.checkBackground(log, img.Pixels)
	}

	m, err := b.segmenter.Segment(img.Pixels)
	if err != nil {
		res.Err = errs.WithPath(err, img.Path)
		log.WithError(err).Error("segmentation failed")
		return res
	}
	b.save(img, output.StageMask, m, d)
	if res.Err = ctx.Err(); res.Err != nil {
		return res
	}

	refined := b.refiner.Refine(m)
	b.save(img, output.StageRefined, refined, d)

	// Filter edits refined in place
	var suppressed *image.Gray
	res.Lines, res.SkippedLines, suppressed = b.filterLines(log, refined)
	b.save(img, output.StageFiltered, refined, d)
	if res.Err = ctx.Err(); res.Err != nil {
		return res
	}

	blobs, labels := b.extractor.Extract(refined, suppressed)
	if len(blobs) == 0 {
		res.Err = errs.New(errs.NoBlobsFound, img.Path, "no photos on %s", img.Stem)
		log.Warn("no photos found")
		return res
	}
	log.Debugf("found %d photos", len(blobs))

	for _, blob := range blobs {
		if res.Err = ctx.Err(); res.Err != nil {
			return res
		}
		res.Blobs = append(res.Blobs, b.processBlob(log, img, labels, blob, d))
	}

	log.WithField("took", time.Since(start).Round(time.Millisecond)).
		Infof("extracted %d of %d photos", countWritten(res.Blobs), len(blobs))
	return res
}

func (b *Batch) filterLines(log logrus.FieldLogger, m *image.Gray) (removed, skipped []analyzer.LineArtifact, suppressed *image.Gray) {
	removed, skipped, suppressed = b.lines.Filter(m)
	for _, l := range removed {
		log.WithFields(logrus.Fields{
			"angle":    l.Orientation,
			"touching": l.Touching,
		}).Debugf("removed line artifact %v-%v", l.Start, l.End)
	}
	for _, l := range skipped {
		log.WithField("touching", l.Touching).
			Warnf("line artifact %v-%v left in place, max-lines is %d", l.Start, l.End, b.Config.MaxLines)
	}
	return removed, skipped, suppressed
}

func (b *Batch) processBlob(log logrus.FieldLogger, img *source.SourceImage, labels *analyzer.LabelMap, blob *analyzer.Blob, d dpi.Dpi) BlobResult {
	log = log.WithField("blob", blob.ID)
	br := BlobResult{Blob: blob}

	r, err := b.rectifier.Rectify(img.Pixels, labels, blob)
	if err != nil {
		br.Err = errs.WithPath(err, img.Path)
		log.WithError(err).Warn("could not rectify photo")
		return br
	}
	br.Skew, br.Rotation = r.Skew, r.Rotation
	b.save(img, output.CropStage(blob.ID), r.Cutout, d)

	path, err := b.Composer.WriteBlob(img.Path, img.Stem, blob.ID, r.Image, d)
	if err != nil {
		br.Err = err
		log.WithError(err).Error("could not write photo")
		return br
	}
	br.Output = path

	log.WithFields(logrus.Fields{
		"bounds":   blob.Bounds,
		"skew":     round2(r.Skew),
		"rotation": round2(r.Rotation),
	}).Debugf("wrote %s", path)
	return br
}

func (b *Batch) save(img *source.SourceImage, stage string, m image.Image, d dpi.Dpi) {
	b.Composer.SaveIntermediary(img.Path, img.Stem, stage, m, d)
}

// checkBackground warns when the most common colour of the sheet is not
// within fuzz of the key, which usually means a wrong chroma-key-color.
func (b *Batch) checkBackground(log logrus.FieldLogger, img *image.NRGBA) {
	c, ok := analyzer.DominantColor(img)
	if !ok {
		return
	}
	dist := analyzer.ColorDistance(c, b.Config.KeyColor())
	log = log.WithField("dominant", c.Hex())
	if dist > b.Config.FloodfillFuzz {
		log.Warnf("dominant colour is %.1f from the key %s, check chroma-key-color", dist, b.Config.KeyColor().Hex())
		return
	}
	log.Debugf("dominant colour is %.1f from the key", dist)
}

func countWritten(blobs []BlobResult) int {
	n := 0
	for _, b := range blobs {
		if b.Err == nil {
			n++
		}
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
