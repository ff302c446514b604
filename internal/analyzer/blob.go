package analyzer

import "image"

// Mask values.
const (
	Background uint8 = 0
	Foreground uint8 = 255
)

// PointF is a sub-pixel position in source coordinates.
type PointF struct {
	X, Y float64
}

// Blob is one connected foreground region, i.e. one photograph on the sheet.
type Blob struct {
	ID       int             // 1-based, raster order of the first pixel
	Bounds   image.Rectangle // in source pixels
	Area     int
	Centroid PointF
	Mask     *image.Gray // Rect == Bounds
}

// Label values that are not blob ids.
const (
	LabelBackground int32 = 0
	LabelSuppressed int32 = -1
)

// LabelMap assigns each pixel of a sheet to the background, to a removed
// line artifact, or to exactly one blob.
type LabelMap struct {
	Rect   image.Rectangle
	Labels []int32
}

func NewLabelMap(r image.Rectangle) *LabelMap {
	return &LabelMap{Rect: r, Labels: make([]int32, r.Dx()*r.Dy())}
}

func (l *LabelMap) index(x, y int) int {
	return (y-l.Rect.Min.Y)*l.Rect.Dx() + (x - l.Rect.Min.X)
}

// At returns the label at (x, y); pixels outside the map are background.
func (l *LabelMap) At(x, y int) int32 {
	if !(image.Point{X: x, Y: y}).In(l.Rect) {
		return LabelBackground
	}
	return l.Labels[l.index(x, y)]
}

func (l *LabelMap) Set(x, y int, v int32) {
	l.Labels[l.index(x, y)] = v
}

// Image renders the label map for diagnostics: background black, suppressed
// pixels grey, blobs white.
func (l *LabelMap) Image() *image.Gray {
	img := image.NewGray(l.Rect)
	for i, v := range l.Labels {
		switch {
		case v == LabelSuppressed:
			img.Pix[i] = 128
		case v > 0:
			img.Pix[i] = 255
		}
	}
	return img
}

// LineArtifact is a straight thin line found on the mask, e.g. a scanner
// lid edge or a fold.
type LineArtifact struct {
	Rho         int     // Hough distance from origin, pixels
	Theta       int     // Hough normal angle, degrees in [0,180)
	Orientation float64 // direction of the line itself, degrees
	Start, End  image.Point
	Touching    int // thin foreground pixels along the line
}

func isForeground(m *image.Gray, x, y int) bool {
	return m.Pix[m.PixOffset(x, y)] > 128
}

func newMask(r image.Rectangle, fill uint8) *image.Gray {
	m := image.NewGray(r)
	if fill != 0 {
		for i := range m.Pix {
			m.Pix[i] = fill
		}
	}
	return m
}
