// Package sheet draws synthetic scanner sheets: photos on a chroma-key
// background, optionally crossed by straight artifact lines.
package sheet

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

// DefaultKey is the background the extractor expects by default (#71AA5D).
var DefaultKey = color.NRGBA{R: 0x71, G: 0xAA, B: 0x5D, A: 255}

// LineColor is the dark grey of a lid edge or a fold.
var LineColor = color.NRGBA{R: 40, G: 40, B: 40, A: 255}

var palette = []color.NRGBA{
	{R: 200, G: 40, B: 40, A: 255},
	{R: 40, G: 60, B: 200, A: 255},
	{R: 230, G: 150, B: 30, A: 255},
	{R: 140, G: 50, B: 160, A: 255},
	{R: 220, G: 210, B: 200, A: 255},
}

// PhotoColor returns the base colour of the i-th photo (0-based).
func PhotoColor(i int) color.NRGBA {
	return palette[i%len(palette)]
}

// Photo is a rectangle of Rect's size centred on Rect's centre and turned by
// Angle degrees, clockwise on screen.
type Photo struct {
	Rect  image.Rectangle
	Angle float64
	Color color.NRGBA
	// Stamp is encoded as a QR code in the photo's top-left corner.
	Stamp string
}

type Line struct {
	From, To  image.Point
	Thickness int
}

type Sheet struct {
	Width, Height int
	Key           color.NRGBA
	Photos        []Photo
	Lines         []Line
}

// New returns an empty sheet with the default key colour.
func New(width, height int) *Sheet {
	return &Sheet{Width: width, Height: height, Key: DefaultKey}
}

// AddPhoto appends a photo coloured and stamped by its position.
func (s *Sheet) AddPhoto(r image.Rectangle, angle float64) *Sheet {
	i := len(s.Photos)
	s.Photos = append(s.Photos, Photo{
		Rect:  r,
		Angle: angle,
		Color: PhotoColor(i),
		Stamp: strconv.Itoa(i + 1),
	})
	return s
}

func (s *Sheet) AddLine(from, to image.Point, thickness int) *Sheet {
	s.Lines = append(s.Lines, Line{From: from, To: to, Thickness: thickness})
	return s
}

// Render draws the sheet. Lines are drawn first so photos cover them.
func (s *Sheet) Render() (*image.NRGBA, error) {
	if s.Width < 1 || s.Height < 1 {
		return nil, fmt.Errorf("invalid sheet size %dx%d", s.Width, s.Height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = s.Key.R, s.Key.G, s.Key.B, s.Key.A
	}

	for _, l := range s.Lines {
		drawLine(img, l)
	}
	for i, p := range s.Photos {
		if err := drawPhoto(img, p); err != nil {
			return nil, fmt.Errorf("photo %d: %w", i+1, err)
		}
	}
	return img, nil
}

func drawLine(img *image.NRGBA, l Line) {
	half := math.Max(float64(l.Thickness), 1) / 2
	// endpoints are pixel centres
	ax, ay := float64(l.From.X)+0.5, float64(l.From.Y)+0.5
	bx, by := float64(l.To.X)+0.5, float64(l.To.Y)+0.5
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy

	area := image.Rect(l.From.X, l.From.Y, l.To.X, l.To.Y).Canon().
		Inset(-int(math.Ceil(half)) - 1).Intersect(img.Bounds())
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			t := 0.0
			if lenSq > 0 {
				t = ((px-ax)*dx + (py-ay)*dy) / lenSq
				t = math.Max(0, math.Min(1, t))
			}
			qx, qy := ax+t*dx-px, ay+t*dy-py
			if qx*qx+qy*qy <= half*half {
				img.SetNRGBA(x, y, LineColor)
			}
		}
	}
}

func drawPhoto(img *image.NRGBA, p Photo) error {
	w, h := float64(p.Rect.Dx()), float64(p.Rect.Dy())
	cx := float64(p.Rect.Min.X) + w/2
	cy := float64(p.Rect.Min.Y) + h/2

	var stamp image.Image
	side := int(math.Min(w, h) / 3)
	margin := math.Min(w, h) / 10
	if p.Stamp != "" && side >= 21 {
		q, err := qrcode.New(p.Stamp, qrcode.Medium)
		if err != nil {
			return err
		}
		q.DisableBorder = true
		stamp = q.Image(side)
	}

	rad := p.Angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	// the turned rectangle fits in a circle of the half diagonal
	r := int(math.Ceil(math.Hypot(w, h)/2)) + 1
	area := image.Rect(int(cx)-r, int(cy)-r, int(cx)+r, int(cy)+r).Intersect(img.Bounds())

	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			// back into the photo's own frame
			u := cos*dx + sin*dy + w/2
			v := -sin*dx + cos*dy + h/2
			if u < 0 || u >= w || v < 0 || v >= h {
				continue
			}
			c := shade(p.Color, u/w)
			if stamp != nil {
				su, sv := int(u-margin), int(v-margin)
				if su >= 0 && sv >= 0 && su < side && sv < side {
					c = color.NRGBAModel.Convert(stamp.At(su, sv)).(color.NRGBA)
				}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return nil
}

// shade darkens c by up to 30% from left to right so photos are not flat.
func shade(c color.NRGBA, t float64) color.NRGBA {
	f := 1 - 0.3*t
	return color.NRGBA{
		R: uint8(float64(c.R) * f),
		G: uint8(float64(c.G) * f),
		B: uint8(float64(c.B) * f),
		A: 255,
	}
}

// ParsePhoto reads "x,y,w,h" or "x,y,w,h,angle".
func ParsePhoto(s string) (image.Rectangle, float64, error) {
	v, err := parseFloats(s)
	if err != nil {
		return image.Rectangle{}, 0, err
	}
	if len(v) != 4 && len(v) != 5 {
		return image.Rectangle{}, 0, fmt.Errorf("photo %q: want x,y,w,h[,angle]", s)
	}
	r := image.Rect(int(v[0]), int(v[1]), int(v[0]+v[2]), int(v[1]+v[3]))
	if r.Empty() {
		return image.Rectangle{}, 0, fmt.Errorf("photo %q: empty rectangle", s)
	}
	var angle float64
	if len(v) == 5 {
		angle = v[4]
	}
	return r, angle, nil
}

// ParseLine reads "x0,y0,x1,y1,thickness".
func ParseLine(s string) (Line, error) {
	v, err := parseFloats(s)
	if err != nil {
		return Line{}, err
	}
	if len(v) != 5 || v[4] < 1 {
		return Line{}, fmt.Errorf("line %q: want x0,y0,x1,y1,thickness", s)
	}
	return Line{
		From:      image.Pt(int(v[0]), int(v[1])),
		To:        image.Pt(int(v[2]), int(v[3])),
		Thickness: int(v[4]),
	}, nil
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out[i] = f
	}
	return out, nil
}
