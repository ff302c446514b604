// Package mask smooths segmentation masks before blob extraction.
package mask

import (
	"image"

	"github.com/disintegration/imaging"
)

// ThresholdLevel turns a feathered mask back into a binary one: a pixel must
// be at least 80% toward foreground to stay.
const ThresholdLevel = 204

// Refiner removes a margin of possibly contaminated pixels from the mask
// edges and feathers what remains.
type Refiner struct {
	Trim       int
	Grow       int
	BlurFactor float64
}

func NewRefiner(trim, grow int, blurFactor float64) *Refiner {
	return &Refiner{Trim: trim, Grow: grow, BlurFactor: blurFactor}
}

// Refine always runs erode, blur, dilate and threshold in that order.
// The input is left untouched.
func (r *Refiner) Refine(m *image.Gray) *image.Gray {
	out := Erode(m, r.Trim)
	out = Blur(out, r.BlurFactor)
	out = Dilate(out, r.Grow)
	return Threshold(out, ThresholdLevel)
}

// Erode applies n passes of a 4-neighbour minimum filter, i.e. erosion by an
// L1 ball of radius n. Pixels outside the image are ignored rather than
// treated as background.
func Erode(m *image.Gray, n int) *image.Gray {
	return morph(m, n, func(a, b uint8) bool { return b < a })
}

// Dilate applies n passes of a 4-neighbour maximum filter.
func Dilate(m *image.Gray, n int) *image.Gray {
	return morph(m, n, func(a, b uint8) bool { return b > a })
}

func morph(m *image.Gray, n int, better func(cur, cand uint8) bool) *image.Gray {
	bounds := m.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	result := image.NewGray(bounds)
	for y := 0; y < h; y++ {
		copy(result.Pix[y*result.Stride:y*result.Stride+w], m.Pix[y*m.Stride:y*m.Stride+w])
	}
	if n <= 0 {
		return result
	}

	// passes alternate between result and a pooled buffer
	temp := scratch.Get(bounds)
	cur, next := result, temp
	for iter := 0; iter < n; iter++ {
		for y := 0; y < h; y++ {
			row := cur.Pix[y*cur.Stride:]
			for x := 0; x < w; x++ {
				v := row[x]
				if x > 0 && better(v, row[x-1]) {
					v = row[x-1]
				}
				if x < w-1 && better(v, row[x+1]) {
					v = row[x+1]
				}
				if y > 0 {
					if up := cur.Pix[(y-1)*cur.Stride+x]; better(v, up) {
						v = up
					}
				}
				if y < h-1 {
					if down := cur.Pix[(y+1)*cur.Stride+x]; better(v, down) {
						v = down
					}
				}
				next.Pix[y*next.Stride+x] = v
			}
		}
		cur, next = next, cur
	}

	if cur != result {
		copy(result.Pix, cur.Pix)
	}
	scratch.Put(temp)
	return result
}

// Blur feathers the mask with a gaussian of the given sigma.
func Blur(m *image.Gray, sigma float64) *image.Gray {
	if sigma <= 0 {
		return morph(m, 0, nil)
	}
	blurred := imaging.Blur(m, sigma)
	bounds := m.Bounds()
	out := image.NewGray(bounds)
	for y := 0; y < bounds.Dy(); y++ {
		src := blurred.Pix[y*blurred.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			dst[x] = src[x*4]
		}
	}
	return out
}

// Threshold maps values >= level to 255 and the rest to 0.
func Threshold(m *image.Gray, level uint8) *image.Gray {
	bounds := m.Bounds()
	out := image.NewGray(bounds)
	for y := 0; y < bounds.Dy(); y++ {
		src := m.Pix[y*m.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			if src[x] >= level {
				dst[x] = 255
			}
		}
	}
	return out
}
