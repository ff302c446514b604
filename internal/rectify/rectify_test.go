package rectify

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/sheet2photos/internal/analyzer"
	"github.com/ivlev/sheet2photos/internal/errs"
)

var (
	keyNRGBA = color.NRGBA{R: 0x71, G: 0xAA, B: 0x5D, A: 255}
	red      = color.NRGBA{R: 220, G: 30, B: 30, A: 255}
	blue     = color.NRGBA{R: 20, G: 40, B: 220, A: 255}
)

func key() colorful.Color {
	c, _ := colorful.MakeColor(keyNRGBA)
	return c
}

func sheet(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = keyNRGBA.R, keyNRGBA.G, keyNRGBA.B, 255
	}
	return img
}

func fill(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// fillRotated paints a w×h rectangle centred on (cx, cy) turned by deg.
func fillRotated(img *image.NRGBA, cx, cy, w, h, deg float64, c color.NRGBA) {
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if math.Abs(cos*dx+sin*dy) <= w/2 && math.Abs(-sin*dx+cos*dy) <= h/2 {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}

func extract(t *testing.T, img *image.NRGBA) ([]*analyzer.Blob, *analyzer.LabelMap) {
	t.Helper()
	m, err := analyzer.NewSegmenter(key(), 17).Segment(img)
	if err != nil {
		t.Fatal(err)
	}
	blobs, labels := analyzer.NewComponentExtractor(10).Extract(m, nil)
	return blobs, labels
}

func newRectifier(maxRotation float64) *Rectifier {
	return New(Options{Key: key(), Fuzz: 17, MaxRotation: maxRotation, Padding: 2}, analyzer.NewMinRectEstimator())
}

func TestRectifyUpright(t *testing.T) {
	img := sheet(200, 200)
	fill(img, image.Rect(50, 50, 150, 150), red)
	blobs, labels := extract(t, img)
	if len(blobs) != 1 {
		t.Fatalf("got %d blobs", len(blobs))
	}

	res, err := newRectifier(10).Rectify(img, labels, blobs[0])
	if err != nil {
		t.Fatal(err)
	}
	if res.Skew != 0 || res.Rotation != 0 {
		t.Errorf("skew %g rotation %g, want 0", res.Skew, res.Rotation)
	}
	if got := res.Image.Bounds(); got != image.Rect(0, 0, 104, 104) {
		t.Errorf("bounds = %v, want 104x104", got)
	}
	if c := res.Image.NRGBAAt(2, 2); c != red {
		t.Errorf("first photo pixel = %+v", c)
	}
	if c := res.Image.NRGBAAt(0, 0); c.A != 0 {
		t.Errorf("padding should be transparent, got %+v", c)
	}
	if res.Cutout.Bounds() != image.Rect(48, 48, 152, 152) {
		t.Errorf("cutout bounds = %v", res.Cutout.Bounds())
	}
}

func TestRectifyRotated(t *testing.T) {
	img := sheet(400, 400)
	fillRotated(img, 200, 200, 200, 120, 8, red)
	blobs, labels := extract(t, img)

	res, err := newRectifier(10).Rectify(img, labels, blobs[0])
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Skew-8) > 1 {
		t.Errorf("skew = %.2f, want ~8", res.Skew)
	}
	if res.Rotation != -res.Skew {
		t.Errorf("rotation = %.2f, want %.2f", res.Rotation, -res.Skew)
	}
	b := res.Image.Bounds()
	if math.Abs(float64(b.Dx())-204) > 6 || math.Abs(float64(b.Dy())-124) > 6 {
		t.Errorf("rectified size %dx%d, want about 204x124", b.Dx(), b.Dy())
	}
	if c := res.Image.NRGBAAt(b.Dx()/2, b.Dy()/2); c.R < 210 || c.B > 40 || c.A < 250 {
		t.Errorf("centre pixel = %+v", c)
	}
}

func TestRectifyClampsRotation(t *testing.T) {
	img := sheet(400, 400)
	fillRotated(img, 200, 200, 200, 120, 20, red)
	blobs, labels := extract(t, img)

	res, err := newRectifier(10).Rectify(img, labels, blobs[0])
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Skew-20) > 1 {
		t.Errorf("skew = %.2f, want ~20", res.Skew)
	}
	if res.Rotation != -10 {
		t.Errorf("rotation = %g, want exactly -10", res.Rotation)
	}
}

func TestRectifyKeepsSiblingsOut(t *testing.T) {
	img := sheet(200, 200)
	fill(img, image.Rect(20, 20, 120, 40), red)
	fill(img, image.Rect(20, 20, 40, 120), red)
	fill(img, image.Rect(60, 60, 100, 100), blue)
	blobs, labels := extract(t, img)
	if len(blobs) != 2 {
		t.Fatalf("got %d blobs, want 2", len(blobs))
	}
	if !blobs[1].Bounds.In(blobs[0].Bounds) {
		t.Fatal("setup: square should sit inside the L's bounds")
	}

	res, err := newRectifier(0).Rectify(img, labels, blobs[0])
	if err != nil {
		t.Fatal(err)
	}
	b := res.Image.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if c := res.Image.NRGBAAt(x, y); c.B > 200 && c.A > 0 {
				t.Fatalf("sibling pixel leaked at (%d,%d): %+v", x, y, c)
			}
		}
	}
}

func TestRectifyErrors(t *testing.T) {
	img := sheet(50, 50)
	labels := analyzer.NewLabelMap(img.Bounds())

	empty := &analyzer.Blob{ID: 1, Bounds: image.Rect(10, 10, 20, 20), Mask: image.NewGray(image.Rect(10, 10, 20, 20))}
	_, err := newRectifier(10).Rectify(img, labels, empty)
	if !errors.Is(err, errs.ErrRectification) {
		t.Errorf("empty blob: got %v", err)
	}

	// labelled pixels that are all key coloured leave nothing after trim
	m := image.NewGray(image.Rect(10, 10, 20, 20))
	for i := range m.Pix {
		m.Pix[i] = analyzer.Foreground
	}
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			labels.Set(x, y, 1)
		}
	}
	keyOnly := &analyzer.Blob{ID: 1, Bounds: m.Rect, Area: 100, Centroid: analyzer.PointF{X: 15, Y: 15}, Mask: m}
	_, err = newRectifier(10).Rectify(img, labels, keyOnly)
	var e *errs.Error
	if !errors.As(err, &e) || e.Kind != errs.Rectification || e.Blob != 1 {
		t.Errorf("key-only blob: got %v", err)
	}
}
