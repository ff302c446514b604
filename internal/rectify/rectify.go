// Package rectify turns a labelled blob into an upright, tightly cropped
// photo.
package rectify

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/sheet2photos/internal/analyzer"
	"github.com/ivlev/sheet2photos/internal/errs"
)

const (
	// cutMargin keeps interpolation from clipping the blob edge.
	cutMargin = 2
	// minRotation below this many degrees the cut-out is copied as is.
	minRotation = 0.01
	// opaqueAlpha is the 50% alpha cut used when trimming.
	opaqueAlpha = 128
)

type Options struct {
	Key         colorful.Color
	Fuzz        float64
	MaxRotation float64 // degrees
	Padding     int
}

// Result is one rectified blob.
type Result struct {
	Blob     *analyzer.Blob
	Skew     float64      // estimated, degrees
	Rotation float64      // correction applied, i.e. -clamp(Skew)
	Cutout   *image.NRGBA // blob pixels before rotation, in source coordinates
	Image    *image.NRGBA // final photo, origin (0,0)
}

type Rectifier struct {
	opts Options
	est  analyzer.SkewEstimator
}

func New(opts Options, est analyzer.SkewEstimator) *Rectifier {
	return &Rectifier{opts: opts, est: est}
}

// Rectify cuts blob b out of src, rotates it upright within MaxRotation and
// trims the surrounding background. Only pixels labelled with b's id are
// copied, so neighbouring blobs never leak into the result.
func (r *Rectifier) Rectify(src *image.NRGBA, labels *analyzer.LabelMap, b *analyzer.Blob) (*Result, error) {
	if b.Area == 0 || b.Bounds.Dx() < 2 || b.Bounds.Dy() < 2 {
		return nil, errs.ForBlob(errs.New(errs.Rectification, "", "degenerate extent %v", b.Bounds), b.ID)
	}

	skew, err := r.est.Estimate(b)
	if err != nil {
		return nil, errs.ForBlob(err, b.ID)
	}
	clamped := analyzer.ClampRotation(skew, r.opts.MaxRotation)

	cutout := cut(src, labels, b)
	rotated := rotate(cutout, b.Centroid, -clamped)

	content, ok := trimBounds(rotated, analyzer.NewKeyMatcher(r.opts.Key, r.opts.Fuzz))
	if !ok {
		return nil, errs.ForBlob(errs.New(errs.Rectification, "", "nothing left after trimming"), b.ID)
	}

	padded := content.Inset(-r.opts.Padding)
	out := image.NewNRGBA(image.Rect(0, 0, padded.Dx(), padded.Dy()))
	draw.Copy(out, image.Point{}, rotated, padded, draw.Src, nil)

	return &Result{
		Blob:     b,
		Skew:     skew,
		Rotation: -clamped,
		Cutout:   cutout,
		Image:    out,
	}, nil
}

// cut copies the pixels labelled b.ID onto a transparent canvas covering the
// blob bounds plus a small margin.
func cut(src *image.NRGBA, labels *analyzer.LabelMap, b *analyzer.Blob) *image.NRGBA {
	rect := b.Bounds.Inset(-cutMargin).Intersect(src.Bounds())
	out := image.NewNRGBA(rect)
	id := int32(b.ID)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if labels.At(x, y) == id {
				out.SetNRGBA(x, y, src.NRGBAAt(x, y))
			}
		}
	}
	return out
}

// rotate turns img by deg degrees about centre. The canvas grows to hold
// the whole rotated cut-out and starts at (0,0).
func rotate(img *image.NRGBA, centre analyzer.PointF, deg float64) *image.NRGBA {
	if math.Abs(deg) < minRotation {
		return imaging.Clone(img)
	}

	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	b := img.Bounds()

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range [4][2]float64{
		{float64(b.Min.X), float64(b.Min.Y)},
		{float64(b.Max.X), float64(b.Min.Y)},
		{float64(b.Min.X), float64(b.Max.Y)},
		{float64(b.Max.X), float64(b.Max.Y)},
	} {
		dx, dy := p[0]-centre.X, p[1]-centre.Y
		x := cos*dx - sin*dy
		y := sin*dx + cos*dy
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	w := int(math.Ceil(maxX - minX))
	h := int(math.Ceil(maxY - minY))
	// the centre lands at (-minX, -minY) on the new canvas
	ox, oy := -minX, -minY

	s2d := f64.Aff3{
		cos, -sin, ox - (cos*centre.X - sin*centre.Y),
		sin, cos, oy - (sin*centre.X + cos*centre.Y),
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Transform(dst, s2d, img, b, draw.Src, nil)
	return imaging.Clone(dst)
}

// trimBounds returns the smallest rectangle holding every pixel that is at
// least half opaque and not key coloured.
func trimBounds(img *image.NRGBA, match *analyzer.KeyMatcher) (image.Rectangle, bool) {
	b := img.Bounds()
	content := func(x, y int) bool {
		c := img.NRGBAAt(x, y)
		return c.A >= opaqueAlpha && !match.Match(c)
	}
	rowHas := func(y, x0, x1 int) bool {
		for x := x0; x < x1; x++ {
			if content(x, y) {
				return true
			}
		}
		return false
	}
	colHas := func(x, y0, y1 int) bool {
		for y := y0; y < y1; y++ {
			if content(x, y) {
				return true
			}
		}
		return false
	}

	top := b.Min.Y
	for top < b.Max.Y && !rowHas(top, b.Min.X, b.Max.X) {
		top++
	}
	if top == b.Max.Y {
		return image.Rectangle{}, false
	}
	bottom := b.Max.Y
	for !rowHas(bottom-1, b.Min.X, b.Max.X) {
		bottom--
	}
	left := b.Min.X
	for !colHas(left, top, bottom) {
		left++
	}
	right := b.Max.X
	for !colHas(right-1, top, bottom) {
		right--
	}
	return image.Rect(left, top, right, bottom), true
}
