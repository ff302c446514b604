package mask

import (
	"image"
	"image/color"
	"testing"
)

func square(w, h int, r image.Rectangle) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return m
}

func count(m *image.Gray) int {
	n := 0
	for _, v := range m.Pix {
		if v >= 128 {
			n++
		}
	}
	return n
}

func TestErodeDilate(t *testing.T) {
	m := square(50, 50, image.Rect(10, 10, 40, 40))

	e := Erode(m, 3)
	if got := count(e); got != 24*24 {
		t.Errorf("eroded area = %d, want %d", got, 24*24)
	}
	if e.GrayAt(13, 13).Y != 255 || e.GrayAt(12, 20).Y != 0 {
		t.Error("erosion boundary misplaced")
	}

	d := Dilate(square(50, 50, image.Rect(25, 25, 26, 26)), 2)
	// L1 ball of radius 2
	if got := count(d); got != 13 {
		t.Errorf("dilated point covers %d pixels, want 13", got)
	}
	if d.GrayAt(27, 25).Y != 255 || d.GrayAt(27, 27).Y != 0 {
		t.Error("dilation is not a diamond")
	}

	if m.GrayAt(10, 10).Y != 255 {
		t.Error("input mask was modified")
	}
}

func TestErodeIgnoresOutside(t *testing.T) {
	m := square(20, 20, image.Rect(0, 0, 20, 20))
	if got := count(Erode(m, 5)); got != 400 {
		t.Errorf("full mask eroded to %d pixels, want 400", got)
	}
}

func TestThreshold(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 3, 1))
	m.Pix[0], m.Pix[1], m.Pix[2] = 203, 204, 255
	out := Threshold(m, ThresholdLevel)
	if out.Pix[0] != 0 || out.Pix[1] != 255 || out.Pix[2] != 255 {
		t.Errorf("threshold = %v", out.Pix)
	}
}

func TestBlurKeepsFlatAreas(t *testing.T) {
	m := square(40, 40, image.Rect(10, 10, 30, 30))
	b := Blur(m, 2)
	if b.GrayAt(20, 20).Y != 255 {
		t.Errorf("centre = %d, want 255", b.GrayAt(20, 20).Y)
	}
	if b.GrayAt(0, 0).Y != 0 {
		t.Errorf("corner = %d, want 0", b.GrayAt(0, 0).Y)
	}
	edge := b.GrayAt(10, 20).Y
	if edge == 0 || edge == 255 {
		t.Errorf("edge not feathered: %d", edge)
	}
}

func TestRefine(t *testing.T) {
	m := square(100, 100, image.Rect(20, 20, 80, 80))
	out := NewRefiner(10, 6, 2).Refine(m)

	tests := []struct {
		x, y int
		want uint8
	}{
		{50, 50, 255},
		{28, 50, 255},
		{22, 50, 0},
		{5, 5, 0},
		{72, 50, 255},
		{78, 50, 0},
	}
	for _, tt := range tests {
		if got := out.GrayAt(tt.x, tt.y).Y; got != tt.want {
			t.Errorf("(%d,%d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
	for _, v := range out.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("refined mask is not binary: %d", v)
		}
	}
}

func TestRefineErodesBeforeGrowing(t *testing.T) {
	// a 5px line would survive grow-then-trim but not trim-then-grow
	m := square(100, 60, image.Rect(0, 28, 100, 33))
	out := NewRefiner(3, 6, 1).Refine(m)
	if got := count(out); got != 0 {
		t.Errorf("%d pixels of the thin line survived", got)
	}
}

func TestMorphPassesCompose(t *testing.T) {
	m := square(40, 40, image.Rect(5, 8, 33, 30))
	for n := 1; n <= 4; n++ {
		step := m
		for i := 0; i < n; i++ {
			step = Erode(step, 1)
		}
		whole := Erode(m, n)
		for i := range whole.Pix {
			if whole.Pix[i] != step.Pix[i] {
				t.Fatalf("Erode(m, %d) differs from %d single passes at %d", n, n, i)
			}
		}
	}
}

func TestScratchPool(t *testing.T) {
	r := image.Rect(0, 0, 7, 3)
	g := scratch.Get(r)
	if g.Rect != r {
		t.Fatalf("pooled mask covers %v, want %v", g.Rect, r)
	}
	scratch.Put(g)
	scratch.Put(image.NewGray(image.Rect(0, 0, 1, 1))) // unknown size is dropped
	if g := scratch.Get(r); g.Rect != r || len(g.Pix) != 21 {
		t.Errorf("second Get = %v with %d bytes", g.Rect, len(g.Pix))
	}
}
