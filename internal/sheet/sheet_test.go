package sheet

import (
	"image"
	"image/color"
	"testing"
)

func TestRenderUpright(t *testing.T) {
	img, err := New(400, 300).
		AddPhoto(image.Rect(100, 50, 300, 250), 0).
		Render()
	if err != nil {
		t.Fatal(err)
	}

	if c := img.NRGBAAt(0, 0); c != DefaultKey {
		t.Errorf("corner = %+v, want key", c)
	}
	if c := img.NRGBAAt(99, 150); c != DefaultKey {
		t.Errorf("left of photo = %+v, want key", c)
	}
	if c := img.NRGBAAt(100, 240); c == DefaultKey {
		t.Error("photo edge not painted")
	}
	if c := img.NRGBAAt(300, 150); c != DefaultKey {
		t.Errorf("right of photo = %+v, want key", c)
	}

	// stamp sits in the top-left corner: 20px margin, 66px side
	dark := 0
	for y := 70; y < 136; y++ {
		for x := 120; x < 186; x++ {
			if img.NRGBAAt(x, y) == (color.NRGBA{A: 255}) {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Error("no QR modules found in the stamp area")
	}
}

func TestRenderRotated(t *testing.T) {
	img, err := New(400, 400).
		AddPhoto(image.Rect(100, 100, 300, 300), 30).
		Render()
	if err != nil {
		t.Fatal(err)
	}
	// a square turned by 30° leaves its axis-aligned corners uncovered
	if c := img.NRGBAAt(101, 101); c != DefaultKey {
		t.Errorf("rotated corner = %+v, want key", c)
	}
	// and reaches past its left side near the bottom
	if c := img.NRGBAAt(75, 230); c == DefaultKey {
		t.Error("rotated photo should extend left of its unrotated box")
	}
}

func TestRenderLine(t *testing.T) {
	img, err := New(200, 100).
		AddLine(image.Pt(0, 50), image.Pt(200, 50), 3).
		Render()
	if err != nil {
		t.Fatal(err)
	}
	for _, y := range []int{49, 50, 51} {
		if c := img.NRGBAAt(100, y); c != LineColor {
			t.Errorf("(100,%d) = %+v, want line", y, c)
		}
	}
	for _, y := range []int{47, 53} {
		if c := img.NRGBAAt(100, y); c != DefaultKey {
			t.Errorf("(100,%d) = %+v, want key", y, c)
		}
	}
}

func TestRenderInvalid(t *testing.T) {
	if _, err := New(0, 10).Render(); err == nil {
		t.Error("expected an error for an empty sheet")
	}
}

func TestParse(t *testing.T) {
	photos := []struct {
		in    string
		rect  image.Rectangle
		angle float64
		ok    bool
	}{
		{"10,20,100,50", image.Rect(10, 20, 110, 70), 0, true},
		{"10, 20, 100, 50, -7.5", image.Rect(10, 20, 110, 70), -7.5, true},
		{"10,20,0,50", image.Rectangle{}, 0, false},
		{"10,20,100", image.Rectangle{}, 0, false},
		{"a,b,c,d", image.Rectangle{}, 0, false},
	}
	for _, tt := range photos {
		t.Run("photo "+tt.in, func(t *testing.T) {
			r, a, err := ParsePhoto(tt.in)
			if (err == nil) != tt.ok {
				t.Fatalf("err = %v", err)
			}
			if r != tt.rect || a != tt.angle {
				t.Errorf("got %v %g", r, a)
			}
		})
	}

	l, err := ParseLine("0,5,100,5,3")
	if err != nil {
		t.Fatal(err)
	}
	if l.From != image.Pt(0, 5) || l.To != image.Pt(100, 5) || l.Thickness != 3 {
		t.Errorf("line = %+v", l)
	}
	if _, err := ParseLine("0,5,100,5,0"); err == nil {
		t.Error("zero thickness should fail")
	}
}
