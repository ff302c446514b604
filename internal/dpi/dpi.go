// Package dpi reads and writes pixel density metadata.
package dpi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
)

// InchesPerMetre converts dots per inch to pixels per metre.
const InchesPerMetre = 39.3701

// Dpi is a pixel density in dots per inch for each axis.
type Dpi struct {
	X, Y float64
}

// Uniform returns a Dpi with the same density on both axes.
func Uniform(v float64) Dpi {
	return Dpi{X: v, Y: v}
}

func (d Dpi) String() string {
	if d.X == d.Y {
		return fmt.Sprintf("%gdpi", d.X)
	}
	return fmt.Sprintf("%gx%gdpi", d.X, d.Y)
}

// Valid reports whether both axes are positive.
func (d Dpi) Valid() bool {
	return d.X > 0 && d.Y > 0
}

// PixelsPerMetre returns the pHYs values for d.
func (d Dpi) PixelsPerMetre() (x, y uint32) {
	return uint32(math.Round(d.X * InchesPerMetre)), uint32(math.Round(d.Y * InchesPerMetre))
}

// FromPixelsPerMetre is the inverse of PixelsPerMetre, rounded to whole dpi
// so a density written by PixelsPerMetre reads back unchanged.
func FromPixelsPerMetre(x, y uint32) Dpi {
	conv := func(v uint32) float64 {
		return math.Round(float64(v) / InchesPerMetre)
	}
	return Dpi{X: conv(x), Y: conv(y)}
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

const (
	ihdrEnd   = 8 + 8 + 13 + 4
	physLen   = 9
	unitMetre = 1
)

// InjectPHYs inserts a pHYs chunk right after IHDR of an encoded PNG.
// image/png never writes pHYs, so no existing chunk has to be replaced.
func InjectPHYs(png []byte, d Dpi) ([]byte, error) {
	if len(png) < ihdrEnd || !bytes.Equal(png[:8], pngSignature) || string(png[12:16]) != "IHDR" {
		return nil, errors.New("not a PNG stream")
	}

	x, y := d.PixelsPerMetre()
	chunk := make([]byte, 12+physLen)
	binary.BigEndian.PutUint32(chunk[0:4], physLen)
	copy(chunk[4:8], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:12], x)
	binary.BigEndian.PutUint32(chunk[12:16], y)
	chunk[16] = unitMetre
	binary.BigEndian.PutUint32(chunk[17:21], crc32.ChecksumIEEE(chunk[4:17]))

	out := make([]byte, 0, len(png)+len(chunk))
	out = append(out, png[:ihdrEnd]...)
	out = append(out, chunk...)
	out = append(out, png[ihdrEnd:]...)
	return out, nil
}

// FromPNG returns the density stored in a pHYs chunk, if any.
func FromPNG(data []byte) (Dpi, bool) {
	if len(data) < 8 || !bytes.Equal(data[:8], pngSignature) {
		return Dpi{}, false
	}
	pos := 8
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		body := pos + 8
		if length < 0 || body+length > len(data) {
			return Dpi{}, false
		}
		switch typ {
		case "pHYs":
			if length != physLen || data[body+8] != unitMetre {
				return Dpi{}, false
			}
			d := FromPixelsPerMetre(
				binary.BigEndian.Uint32(data[body:body+4]),
				binary.BigEndian.Uint32(data[body+4:body+8]),
			)
			return d, d.Valid()
		case "IDAT", "IEND":
			return Dpi{}, false
		}
		pos = body + length + 4
	}
	return Dpi{}, false
}
