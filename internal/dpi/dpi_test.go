package dpi

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// segment builds a marker segment with its length field.
func segment(marker byte, body []byte) []byte {
	out := []byte{0xFF, marker, 0, 0}
	binary.BigEndian.PutUint16(out[2:], uint16(len(body)+2))
	return append(out, body...)
}

func jfifSegment(units byte, x, y uint16) []byte {
	body := []byte("JFIF\x00\x01\x02")
	body = append(body, units)
	body = binary.BigEndian.AppendUint16(body, x)
	body = binary.BigEndian.AppendUint16(body, y)
	body = append(body, 0, 0)
	return segment(0xE0, body)
}

// exifSegment builds a little-endian Exif APP1 with IFD0 resolution tags.
func exifSegment(x, y uint32, unit uint16) []byte {
	le := binary.LittleEndian
	t := []byte("II*\x00")
	t = le.AppendUint32(t, 8)
	t = le.AppendUint16(t, 3)
	entry := func(tag, typ uint16, count, value uint32) {
		t = le.AppendUint16(t, tag)
		t = le.AppendUint16(t, typ)
		t = le.AppendUint32(t, count)
		t = le.AppendUint32(t, value)
	}
	entry(tagXResolution, 5, 1, 50)
	entry(tagYResolution, 5, 1, 58)
	entry(tagResolutionUnit, 3, 1, uint32(unit))
	t = le.AppendUint32(t, 0)
	t = le.AppendUint32(t, x)
	t = le.AppendUint32(t, 1)
	t = le.AppendUint32(t, y)
	t = le.AppendUint32(t, 1)
	return segment(0xE1, append([]byte("Exif\x00\x00"), t...))
}

func withSegments(jpg []byte, segs ...[]byte) []byte {
	out := append([]byte{}, jpg[:2]...)
	for _, s := range segs {
		out = append(out, s...)
	}
	return append(out, jpg[2:]...)
}

func TestPixelsPerMetre(t *testing.T) {
	x, y := Uniform(300).PixelsPerMetre()
	if x != 11811 || y != 11811 {
		t.Errorf("300dpi = %d,%d ppm, want 11811", x, y)
	}
	if d := FromPixelsPerMetre(11811, 5906); d.X != 300 || d.Y != 150 {
		t.Errorf("FromPixelsPerMetre = %v", d)
	}
	for _, v := range []float64{72, 96, 150, 600} {
		x, y := Uniform(v).PixelsPerMetre()
		if d := FromPixelsPerMetre(x, y); d != Uniform(v) {
			t.Errorf("%gdpi read back as %v", v, d)
		}
	}
}

func TestInjectPHYsRoundTrip(t *testing.T) {
	data := encodePNG(t)
	if _, ok := FromPNG(data); ok {
		t.Fatal("plain PNG should not carry pHYs")
	}

	out, err := InjectPHYs(data, Dpi{X: 300, Y: 600})
	if err != nil {
		t.Fatalf("InjectPHYs: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("PNG with pHYs no longer decodes: %v", err)
	}
	d, ok := Detect(out)
	if !ok {
		t.Fatal("pHYs not detected")
	}
	if d.X != 300 || d.Y != 600 {
		t.Errorf("detected %v, want 300x600", d)
	}

	if _, err := InjectPHYs([]byte("nope"), Uniform(1)); err == nil {
		t.Error("expected error for non-PNG input")
	}
}

func TestDetectJPEG(t *testing.T) {
	jpg := encodeJPEG(t)

	tests := []struct {
		name string
		data []byte
		want Dpi
		ok   bool
	}{
		{"no metadata", jpg, Dpi{}, false},
		{"jfif inch", withSegments(jpg, jfifSegment(1, 300, 300)), Uniform(300), true},
		{"jfif cm", withSegments(jpg, jfifSegment(2, 100, 50)), Dpi{X: 254, Y: 127}, true},
		{"jfif aspect only", withSegments(jpg, jfifSegment(0, 1, 1)), Dpi{}, false},
		{"exif", withSegments(jpg, exifSegment(600, 600, 2)), Uniform(600), true},
		{"exif wins over jfif", withSegments(jpg, jfifSegment(1, 72, 72), exifSegment(400, 400, 2)), Uniform(400), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Detect(tt.data)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (got %v)", ok, tt.ok, got)
			}
			if ok && (got.X < tt.want.X-0.001 || got.X > tt.want.X+0.001 || got.Y < tt.want.Y-0.001 || got.Y > tt.want.Y+0.001) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectUnknown(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("GIF89a"), []byte("II*")} {
		if d, ok := Detect(data); ok {
			t.Errorf("Detect(%q) = %v, want none", data, d)
		}
	}
}
