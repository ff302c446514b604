package analyzer

import (
	"math"
	"sort"

	"github.com/ivlev/sheet2photos/internal/errs"
)

// SkewEstimator measures how far a blob is rotated from upright.
// Angles are in degrees within (-45, 45]; positive means the content is
// turned clockwise on screen (y grows downward).
type SkewEstimator interface {
	Estimate(b *Blob) (float64, error)
}

// angleEpsilon decides ties between candidate rectangles.
const angleEpsilon = 1e-9

// MinRectEstimator fits the minimum-area rectangle around the blob's convex
// hull and reports the angle of its edges.
type MinRectEstimator struct{}

func NewMinRectEstimator() *MinRectEstimator {
	return &MinRectEstimator{}
}

func (e *MinRectEstimator) Estimate(b *Blob) (float64, error) {
	if b.Area == 0 {
		return 0, errs.New(errs.Rectification, "", "blob %d is empty", b.ID)
	}
	hull := convexHull(boundaryPoints(b))
	if len(hull) < 3 {
		return 0, errs.New(errs.Rectification, "", "blob %d hull has %d points", b.ID, len(hull))
	}
	angle, _ := minAreaRect(hull)
	return angle, nil
}

// boundaryPoints returns the centres of foreground pixels with a background
// or out-of-bounds 4-neighbour.
func boundaryPoints(b *Blob) []PointF {
	m := b.Mask
	r := m.Bounds()
	fg := func(x, y int) bool {
		if x < r.Min.X || x >= r.Max.X || y < r.Min.Y || y >= r.Max.Y {
			return false
		}
		return isForeground(m, x, y)
	}

	var pts []PointF
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !fg(x, y) {
				continue
			}
			if !fg(x-1, y) || !fg(x+1, y) || !fg(x, y-1) || !fg(x, y+1) {
				pts = append(pts, PointF{X: float64(x) + 0.5, Y: float64(y) + 0.5})
			}
		}
	}
	return pts
}

func cross(o, a, b PointF) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// convexHull is Andrew's monotone chain. Collinear points are dropped.
func convexHull(pts []PointF) []PointF {
	if len(pts) < 3 {
		return pts
	}
	sorted := make([]PointF, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	hull := make([]PointF, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// minAreaRect runs rotating calipers over the hull edges. It returns the
// folded edge angle of the smallest enclosing rectangle and its area. Equal
// areas prefer the angle closest to zero.
func minAreaRect(hull []PointF) (angle, area float64) {
	area = math.Inf(1)
	for i := range hull {
		p, q := hull[i], hull[(i+1)%len(hull)]
		dx, dy := q.X-p.X, q.Y-p.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		ux, uy := dx/l, dy/l

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, h := range hull {
			u := h.X*ux + h.Y*uy
			v := -h.X*uy + h.Y*ux
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}
		a := (maxU - minU) * (maxV - minV)
		folded := foldAngle(math.Atan2(dy, dx) * 180 / math.Pi)

		switch {
		case math.IsInf(area, 1) || a < area-angleEpsilon*math.Max(1, area):
			area, angle = a, folded
		case a <= area+angleEpsilon*math.Max(1, area) && math.Abs(folded) < math.Abs(angle):
			angle = folded
		}
	}
	return angle, area
}

// HoughEstimator takes the median orientation of the strongest straight
// edges of the blob.
type HoughEstimator struct {
	MaxLines int
	MinVotes int // 0 picks half the blob's shorter side
}

func NewHoughEstimator(maxLines, minVotes int) *HoughEstimator {
	if maxLines <= 0 {
		maxLines = 4
	}
	return &HoughEstimator{MaxLines: maxLines, MinVotes: minVotes}
}

// houghEdgeThreshold is the Sobel magnitude separating edge from flat mask.
const houghEdgeThreshold = 255

func (e *HoughEstimator) Estimate(b *Blob) (float64, error) {
	if b.Area == 0 {
		return 0, errs.New(errs.Rectification, "", "blob %d is empty", b.ID)
	}
	edges := sobelEdgeDetection(padMask(b.Mask), houghEdgeThreshold)
	r := edges.Bounds()

	acc := NewAccumulator(r.Dx(), r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if isForeground(edges, x, y) {
				acc.Vote(x-r.Min.X, y-r.Min.Y)
			}
		}
	}

	minVotes := e.MinVotes
	if minVotes <= 0 {
		minVotes = min(b.Bounds.Dx(), b.Bounds.Dy()) / 2
		minVotes = max(minVotes, 8)
	}
	peaks := acc.Peaks(minVotes, 5, 5, e.MaxLines)
	if len(peaks) == 0 {
		return 0, nil
	}

	angles := make([]float64, len(peaks))
	for i, p := range peaks {
		angles[i] = foldAngle(float64(p.Theta))
	}
	sort.Float64s(angles)
	mid := len(angles) / 2
	if len(angles)%2 == 1 {
		return angles[mid], nil
	}
	return (angles[mid-1] + angles[mid]) / 2, nil
}

// ClampRotation limits a skew to ±limit degrees.
func ClampRotation(skew, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, skew))
}
