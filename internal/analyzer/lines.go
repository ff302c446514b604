package analyzer

import (
	"image"
	"math"
	"sort"
)

const (
	// maxLineCandidates bounds the number of accumulator peaks walked.
	maxLineCandidates = 64
	// lineThetaRadius is the angular non-maximum suppression window, degrees.
	lineThetaRadius = 2
	// lineSearch is how far off the ideal line a touching pixel may sit.
	lineSearch = 1
)

// LineFilter removes thin straight lines, such as scanner lid shadows or
// folds, that would otherwise bridge photos or show up as blobs.
type LineFilter struct {
	MinTouching  int // inclusive
	MaxLines     int
	MaxThickness int
}

func NewLineFilter(minTouching, maxLines, maxThickness int) *LineFilter {
	return &LineFilter{MinTouching: minTouching, MaxLines: maxLines, MaxThickness: maxThickness}
}

// runLengths holds, per pixel, the length of the horizontal and vertical
// foreground run it belongs to. Background pixels have zero.
type runLengths struct {
	w, h int
	hRun []int32
	vRun []int32
}

func measureRuns(m *image.Gray) *runLengths {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	r := &runLengths{w: w, h: h, hRun: make([]int32, w*h), vRun: make([]int32, w*h)}
	fg := func(x, y int) bool { return isForeground(m, b.Min.X+x, b.Min.Y+y) }

	for y := 0; y < h; y++ {
		for x := 0; x < w; {
			if !fg(x, y) {
				x++
				continue
			}
			start := x
			for x < w && fg(x, y) {
				x++
			}
			for i := start; i < x; i++ {
				r.hRun[y*w+i] = int32(x - start)
			}
		}
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; {
			if !fg(x, y) {
				y++
				continue
			}
			start := y
			for y < h && fg(x, y) {
				y++
			}
			for i := start; i < y; i++ {
				r.vRun[i*w+x] = int32(y - start)
			}
		}
	}
	return r
}

func (f *LineFilter) thin(r *runLengths, x, y int) bool {
	i := y*r.w + x
	return (r.hRun[i] > 0 && int(r.hRun[i]) <= f.MaxThickness) ||
		(r.vRun[i] > 0 && int(r.vRun[i]) <= f.MaxThickness)
}

// Filter finds line artifacts on m and erases them in place, strongest
// first, up to MaxLines. It returns the removed lines, the lines that
// qualified but exceeded MaxLines, and a mask of every erased pixel.
func (f *LineFilter) Filter(m *image.Gray) (removed, skipped []LineArtifact, suppressed *image.Gray) {
	b := m.Bounds()
	suppressed = image.NewGray(b)
	if f.MaxLines == 0 || b.Empty() {
		return nil, nil, suppressed
	}

	runs := measureRuns(m)
	acc := NewAccumulator(b.Dx(), b.Dy())
	for y := 0; y < runs.h; y++ {
		for x := 0; x < runs.w; x++ {
			if f.thin(runs, x, y) {
				acc.Vote(x, y)
			}
		}
	}

	rhoRadius := f.MaxThickness
	if rhoRadius < 3 {
		rhoRadius = 3
	}
	var candidates []LineArtifact
	for _, p := range acc.Peaks(f.MinTouching, rhoRadius, lineThetaRadius, maxLineCandidates) {
		a := f.walk(m, runs, p, nil)
		if a.Touching >= f.MinTouching {
			candidates = append(candidates, a)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Touching != candidates[j].Touching {
			return candidates[i].Touching > candidates[j].Touching
		}
		if candidates[i].Theta != candidates[j].Theta {
			return candidates[i].Theta < candidates[j].Theta
		}
		return candidates[i].Rho < candidates[j].Rho
	})

	for _, c := range candidates {
		line := HoughLine{Rho: c.Rho, Theta: c.Theta}
		if len(removed) >= f.MaxLines {
			skipped = append(skipped, c)
			continue
		}
		if len(removed) > 0 {
			// earlier erasures may have consumed this line
			runs = measureRuns(m)
			if f.walk(m, runs, line, nil).Touching < f.MinTouching {
				continue
			}
		}
		removed = append(removed, f.walk(m, runs, line, suppressed))
	}
	return removed, skipped, suppressed
}

// walk follows line across the mask and counts foreground pixels whose run
// perpendicular to the line is at most MaxThickness. When erase is non-nil
// those runs are cleared from m and marked in erase.
func (f *LineFilter) walk(m *image.Gray, runs *runLengths, line HoughLine, erase *image.Gray) LineArtifact {
	b := m.Bounds()
	rad := float64(line.Theta) * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	rho := float64(line.Rho)

	a := LineArtifact{
		Rho:         line.Rho,
		Theta:       line.Theta,
		Orientation: float64(line.Theta) - 90,
	}

	// Mostly horizontal lines are walked along x and measured vertically.
	horizontal := math.Abs(sin) >= math.Abs(cos)
	steps := runs.w
	if !horizontal {
		steps = runs.h
	}

	for s := 0; s < steps; s++ {
		var x, y int
		if horizontal {
			x = s
			y = int(math.Round((rho - float64(x)*cos) / sin))
		} else {
			y = s
			x = int(math.Round((rho - float64(y)*sin) / cos))
		}

		found := false
		for _, off := range [...]int{0, -lineSearch, lineSearch} {
			px, py := x, y
			if horizontal {
				py += off
			} else {
				px += off
			}
			if px < 0 || px >= runs.w || py < 0 || py >= runs.h {
				continue
			}
			if !isForeground(m, b.Min.X+px, b.Min.Y+py) {
				continue
			}
			run := runs.vRun[py*runs.w+px]
			if !horizontal {
				run = runs.hRun[py*runs.w+px]
			}
			if int(run) > f.MaxThickness {
				continue
			}
			x, y, found = px, py, true
			break
		}
		if !found {
			continue
		}

		pt := image.Point{X: b.Min.X + x, Y: b.Min.Y + y}
		if a.Touching == 0 {
			a.Start = pt
		}
		a.End = pt
		a.Touching++

		if erase != nil {
			eraseRun(m, erase, pt, horizontal)
		}
	}
	return a
}

// eraseRun clears the foreground run through p, vertical for horizontal
// lines and horizontal otherwise.
func eraseRun(m, erase *image.Gray, p image.Point, vertical bool) {
	b := m.Bounds()
	dx, dy := 1, 0
	if vertical {
		dx, dy = 0, 1
	}
	wipe := func(x, y int) {
		m.Pix[m.PixOffset(x, y)] = Background
		erase.Pix[erase.PixOffset(x, y)] = Foreground
	}
	for x, y := p.X, p.Y; (image.Point{X: x, Y: y}).In(b) && isForeground(m, x, y); x, y = x+dx, y+dy {
		wipe(x, y)
	}
	for x, y := p.X-dx, p.Y-dy; (image.Point{X: x, Y: y}).In(b) && isForeground(m, x, y); x, y = x-dx, y-dy {
		wipe(x, y)
	}
}
