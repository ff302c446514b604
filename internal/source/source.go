package source

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/sheet2photos/internal/dpi"
	"github.com/ivlev/sheet2photos/internal/errs"
)

// SourceImage is one decoded sheet. Pixels always start at (0,0).
type SourceImage struct {
	Path   string
	Stem   string
	Pixels *image.NRGBA
	DPI    *dpi.Dpi // nil when the file carries no density
}

// Source yields the sheets stored in one input file.
type Source interface {
	SheetCount() int
	ReadSheet(index int) (*SourceImage, error)
	Close() error
}

// Open picks a Source by file extension. renderDPI is used for PDF pages.
func Open(path string, renderDPI int) (Source, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return NewFitzPDFSource(path, renderDPI)
	}
	return NewImageSource(path), nil
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

type FitzPDFSource struct {
	doc  *fitz.Document
	path string
	dpi  int
}

func NewFitzPDFSource(path string, renderDPI int) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, errs.Wrap(errs.InputIO, path, err)
	}
	return &FitzPDFSource{doc: doc, path: path, dpi: renderDPI}, nil
}

func (f *FitzPDFSource) SheetCount() int {
	return f.doc.NumPage()
}

// ReadSheet renders page index. Stems carry a 1-based page suffix so
// outputs of different pages never collide.
func (f *FitzPDFSource) ReadSheet(index int) (*SourceImage, error) {
	img, err := f.doc.ImageDPI(index, float64(f.dpi))
	if err != nil {
		return nil, errs.Wrap(errs.InputIO, f.path, fmt.Errorf("render page %d: %w", index+1, err))
	}
	d := dpi.Uniform(float64(f.dpi))
	return &SourceImage{
		Path:   f.path,
		Stem:   fmt.Sprintf("%s-p%d", Stem(f.path), index+1),
		Pixels: toNRGBA(img),
		DPI:    &d,
	}, nil
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}
