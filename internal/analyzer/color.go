package analyzer

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// labScale maps go-colorful's 0..1 lightness onto the usual 0..100 ΔE scale.
const labScale = 100

// ColorDistance returns the CIE76 ΔE between two colours.
func ColorDistance(a, b colorful.Color) float64 {
	return a.DistanceLab(b) * labScale
}

func rgbOf(c color.NRGBA) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// KeyMatcher answers "is this pixel the key colour" with a per-colour memo.
// It is not safe for concurrent use.
type KeyMatcher struct {
	key  colorful.Color
	fuzz float64
	memo map[uint32]bool
}

func NewKeyMatcher(key colorful.Color, fuzz float64) *KeyMatcher {
	return &KeyMatcher{key: key, fuzz: fuzz, memo: make(map[uint32]bool)}
}

// Match treats fully transparent pixels as key coloured.
func (k *KeyMatcher) Match(c color.NRGBA) bool {
	if c.A == 0 {
		return true
	}
	rgb := uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	if v, ok := k.memo[rgb]; ok {
		return v
	}
	var v bool
	if k.fuzz == 0 {
		kr, kg, kb := k.key.RGB255()
		v = c.R == kr && c.G == kg && c.B == kb
	} else {
		v = ColorDistance(rgbOf(c), k.key) <= k.fuzz
	}
	k.memo[rgb] = v
	return v
}

// dominantBits is the per-channel depth of the dominant colour histogram.
const dominantBits = 5

// DominantColor returns the most frequent opaque colour of img, quantised to
// 5 bits per channel and reported at the bin centre. Sampling is strided on
// large images; ties go to the lowest bin.
func DominantColor(img *image.NRGBA) (colorful.Color, bool) {
	b := img.Bounds()
	step := 1
	for (b.Dx()/step)*(b.Dy()/step) > 250000 {
		step++
	}

	const shift = 8 - dominantBits
	hist := make([]int, 1<<(3*dominantBits))
	total := 0
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			c := img.NRGBAAt(x, y)
			if c.A < 128 {
				continue
			}
			bin := int(c.R>>shift)<<(2*dominantBits) | int(c.G>>shift)<<dominantBits | int(c.B>>shift)
			hist[bin]++
			total++
		}
	}
	if total == 0 {
		return colorful.Color{}, false
	}

	best := 0
	for i, n := range hist {
		if n > hist[best] {
			best = i
		}
	}
	mask := 1<<dominantBits - 1
	centre := func(v int) float64 {
		return (float64(v<<shift) + float64(int(1)<<shift)/2) / 255
	}
	return colorful.Color{
		R: centre(best >> (2 * dominantBits) & mask),
		G: centre(best >> dominantBits & mask),
		B: centre(best & mask),
	}, true
}
