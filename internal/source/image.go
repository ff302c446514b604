package source

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ivlev/sheet2photos/internal/dpi"
	"github.com/ivlev/sheet2photos/internal/errs"
)

// ImageSource is a single raster file holding one sheet.
type ImageSource struct {
	path string
}

func NewImageSource(path string) *ImageSource {
	return &ImageSource{path: path}
}

func (s *ImageSource) SheetCount() int {
	return 1
}

func (s *ImageSource) ReadSheet(index int) (*SourceImage, error) {
	if index != 0 {
		return nil, fmt.Errorf("image source has a single sheet, got index %d", index)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errs.Wrap(errs.InputIO, s.path, err)
	}
	return Decode(s.path, data)
}

func (s *ImageSource) Close() error {
	return nil
}

// Decode turns encoded bytes into a SourceImage, picking up embedded density.
func Decode(path string, data []byte) (*SourceImage, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.InputIO, path, fmt.Errorf("decode: %w", err))
	}
	si := &SourceImage{
		Path:   path,
		Stem:   Stem(path),
		Pixels: toNRGBA(img),
	}
	switch format {
	case "jpeg", "png", "tiff":
		if d, ok := dpi.Detect(data); ok {
			si.DPI = &d
		}
	}
	return si, nil
}
