package engine

import (
	"errors"

	"github.com/ivlev/sheet2photos/internal/config"
	"github.com/ivlev/sheet2photos/internal/errs"
	"github.com/ivlev/sheet2photos/internal/report"
)

// Summarize counts files and photos over a finished batch.
func Summarize(results []FileResult) report.Totals {
	var t report.Totals
	for i := range results {
		r := &results[i]
		for _, s := range r.Sheets {
			for _, b := range s.Blobs {
				if b.Err != nil {
					t.BlobsFailed++
				} else {
					t.BlobsExtracted++
				}
			}
		}
		switch {
		case r.Failed():
			t.FilesFailed++
		case r.Extracted() == 0 && hasWarning(r):
			t.FilesProcessed++
			t.FilesWithoutBlobs++
		default:
			t.FilesProcessed++
		}
	}
	return t
}

func hasWarning(r *FileResult) bool {
	for _, s := range r.Sheets {
		if errs.IsWarning(s.Err) {
			return true
		}
	}
	return false
}

// Status is one of the report.Status* values.
func (r *FileResult) Status() string {
	switch {
	case r.Failed():
		return report.StatusFailed
	case r.Extracted() == 0 && hasWarning(r):
		return report.StatusNoBlobs
	default:
		return report.StatusOK
	}
}

// BuildReport converts batch results into a run report.
func BuildReport(cfg *config.Config, results []FileResult) *report.Report {
	rep := &report.Report{
		Version: report.Version,
		Build:   cfg.BuildVersion,
		Config:  cfg,
		Totals:  Summarize(results),
	}

	for i := range results {
		r := &results[i]
		f := report.File{Path: r.Path, Status: r.Status(), Error: errString(r.Err)}
		for _, s := range r.Sheets {
			sheet := report.Sheet{
				Stem:   s.Stem,
				Width:  s.Width,
				Height: s.Height,
				DPI:    s.DPI.String(),
				Lines:  len(s.Lines),
				Status: sheetStatus(&s),
				Error:  errString(s.Err),
			}
			for _, b := range s.Blobs {
				sheet.Blobs = append(sheet.Blobs, report.Blob{
					ID:       b.Blob.ID,
					Bounds:   report.RectangleOf(b.Blob.Bounds),
					Area:     b.Blob.Area,
					Centroid: report.Point{X: round2(b.Blob.Centroid.X), Y: round2(b.Blob.Centroid.Y)},
					Skew:     round2(b.Skew),
					Rotation: round2(b.Rotation),
					Output:   b.Output,
					Error:    errString(b.Err),
				})
			}
			f.Sheets = append(f.Sheets, sheet)
		}
		rep.Files = append(rep.Files, f)
	}
	return rep
}

func sheetStatus(s *SheetResult) string {
	switch {
	case s.Failed():
		return report.StatusFailed
	case errs.IsWarning(s.Err):
		return report.StatusNoBlobs
	default:
		return report.StatusOK
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	var e *errs.Error
	if errors.As(err, &e) {
		// the report already names the file and blob
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return err.Error()
}
