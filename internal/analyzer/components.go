package analyzer

import "image"

// ComponentExtractor labels 4-connected foreground regions of a mask.
type ComponentExtractor struct {
	MinArea int // smaller components are treated as noise
}

func NewComponentExtractor(minArea int) *ComponentExtractor {
	return &ComponentExtractor{MinArea: minArea}
}

type component struct {
	rect   image.Rectangle
	area   int
	sumX   float64
	sumY   float64
	pixels []int // indices into the label map
}

// Extract labels m in raster order. Blob ids follow the position of each
// component's first pixel in row-major order, counting only components that
// reach MinArea. suppressed may be nil; where set, pixels are labelled as
// removed line artifacts.
func (e *ComponentExtractor) Extract(m, suppressed *image.Gray) ([]*Blob, *LabelMap) {
	bounds := m.Bounds()
	labels := NewLabelMap(bounds)
	if suppressed != nil {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				if isForeground(suppressed, x, y) && !isForeground(m, x, y) {
					labels.Set(x, y, LabelSuppressed)
				}
			}
		}
	}

	var components []*component
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if isForeground(m, x, y) && labels.At(x, y) == LabelBackground {
				c := floodFill(m, labels, x, y, int32(len(components)+1))
				components = append(components, c)
			}
		}
	}

	var blobs []*Blob
	for _, c := range components {
		if c.area < e.MinArea {
			for _, i := range c.pixels {
				labels.Labels[i] = LabelBackground
			}
			continue
		}
		id := len(blobs) + 1
		for _, i := range c.pixels {
			labels.Labels[i] = int32(id)
		}
		blobs = append(blobs, &Blob{
			ID:       id,
			Bounds:   c.rect,
			Area:     c.area,
			Centroid: PointF{X: c.sumX / float64(c.area), Y: c.sumY / float64(c.area)},
		})
	}

	for _, b := range blobs {
		b.Mask = image.NewGray(b.Bounds)
		for y := b.Bounds.Min.Y; y < b.Bounds.Max.Y; y++ {
			for x := b.Bounds.Min.X; x < b.Bounds.Max.X; x++ {
				if labels.At(x, y) == int32(b.ID) {
					b.Mask.Pix[b.Mask.PixOffset(x, y)] = Foreground
				}
			}
		}
	}
	return blobs, labels
}

// floodFill labels the 4-connected component containing (startX, startY)
// and returns its statistics. Centroids use pixel centres.
func floodFill(m *image.Gray, labels *LabelMap, startX, startY int, label int32) *component {
	bounds := m.Bounds()
	minX, minY := startX, startY
	maxX, maxY := startX, startY
	c := &component{}

	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := p.X, p.Y

		if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}

		if labels.At(x, y) != LabelBackground || !isForeground(m, x, y) {
			continue
		}

		labels.Set(x, y, label)
		c.pixels = append(c.pixels, labels.index(x, y))
		c.area++
		c.sumX += float64(x) + 0.5
		c.sumY += float64(y) + 0.5

		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}

		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}

	c.rect = image.Rect(minX, minY, maxX+1, maxY+1)
	return c
}
