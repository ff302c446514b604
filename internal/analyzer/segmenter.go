package analyzer

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/sheet2photos/internal/errs"
)

// MinSheetDimension is the smallest width or height that has a border ring
// and at least one interior pixel.
const MinSheetDimension = 3

// Segmenter separates the chroma-key background from everything else by
// flood filling inward from the sheet border.
type Segmenter struct {
	Key  colorful.Color
	Fuzz float64 // maximum ΔE from Key
}

func NewSegmenter(key colorful.Color, fuzz float64) *Segmenter {
	return &Segmenter{Key: key, Fuzz: fuzz}
}

// Segment returns a mask of the same size as img with reachable key-coloured
// pixels as Background and everything else as Foreground. Key-coloured areas
// enclosed by foreground stay Foreground.
func (s *Segmenter) Segment(img *image.NRGBA) (*image.Gray, error) {
	bounds := img.Bounds()
	if bounds.Dx() < MinSheetDimension || bounds.Dy() < MinSheetDimension {
		return nil, errs.New(errs.InvalidImageDimensions, "", "%dx%d is smaller than %dx%d",
			bounds.Dx(), bounds.Dy(), MinSheetDimension, MinSheetDimension)
	}

	match := NewKeyMatcher(s.Key, s.Fuzz)
	mask := newMask(bounds, Foreground)
	visited := make([]bool, bounds.Dx()*bounds.Dy())
	idx := func(x, y int) int {
		return (y-bounds.Min.Y)*bounds.Dx() + (x - bounds.Min.X)
	}

	// Seed from every border pixel.
	stack := make([]image.Point, 0, 2*(bounds.Dx()+bounds.Dy()))
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		stack = append(stack, image.Point{X: x, Y: bounds.Min.Y}, image.Point{X: x, Y: bounds.Max.Y - 1})
	}
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		stack = append(stack, image.Point{X: bounds.Min.X, Y: y}, image.Point{X: bounds.Max.X - 1, Y: y})
	}

	reached := 0
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := p.X, p.Y
		if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		i := idx(x, y)
		if visited[i] {
			continue
		}
		visited[i] = true
		if !match.Match(img.NRGBAAt(x, y)) {
			continue
		}

		mask.Pix[mask.PixOffset(x, y)] = Background
		reached++

		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}

	if reached == 0 {
		return nil, errs.New(errs.SegmentationDegenerate, "",
			"no border pixel within %g of the key colour %s", s.Fuzz, s.Key.Hex())
	}
	return mask, nil
}
