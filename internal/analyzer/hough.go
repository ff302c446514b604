package analyzer

import (
	"math"
	"sort"
)

// HoughThetaSteps is the angular resolution of the accumulator: one bin per
// degree over [0,180).
const HoughThetaSteps = 180

// HoughLine is an accumulator peak. The line is x·cosθ + y·sinθ = Rho.
type HoughLine struct {
	Rho   int
	Theta int // degrees
	Votes int
}

// Accumulator is a (rho, theta) vote table for a w×h image.
type Accumulator struct {
	diag  int
	rhos  int
	votes []int32
	cos   [HoughThetaSteps]float64
	sin   [HoughThetaSteps]float64
}

func NewAccumulator(w, h int) *Accumulator {
	diag := int(math.Ceil(math.Hypot(float64(w), float64(h))))
	a := &Accumulator{
		diag: diag,
		rhos: 2*diag + 1,
	}
	a.votes = make([]int32, a.rhos*HoughThetaSteps)
	for t := 0; t < HoughThetaSteps; t++ {
		rad := float64(t) * math.Pi / 180
		a.cos[t] = math.Cos(rad)
		a.sin[t] = math.Sin(rad)
	}
	return a
}

// Vote adds (x, y) to every line through it.
func (a *Accumulator) Vote(x, y int) {
	fx, fy := float64(x), float64(y)
	for t := 0; t < HoughThetaSteps; t++ {
		rho := int(math.Round(fx*a.cos[t] + fy*a.sin[t]))
		a.votes[t*a.rhos+rho+a.diag]++
	}
}

func (a *Accumulator) Votes(rho, theta int) int {
	return int(a.votes[theta*a.rhos+rho+a.diag])
}

// Peaks returns cells with at least minVotes, strongest first, skipping any
// cell within rhoRadius pixels and thetaRadius degrees of a stronger accepted
// peak. Ties are ordered by theta then rho. At most limit peaks are returned
// when limit > 0.
func (a *Accumulator) Peaks(minVotes, rhoRadius, thetaRadius, limit int) []HoughLine {
	var cells []HoughLine
	for t := 0; t < HoughThetaSteps; t++ {
		row := a.votes[t*a.rhos : (t+1)*a.rhos]
		for r, v := range row {
			if int(v) >= minVotes {
				cells = append(cells, HoughLine{Rho: r - a.diag, Theta: t, Votes: int(v)})
			}
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Votes != cells[j].Votes {
			return cells[i].Votes > cells[j].Votes
		}
		if cells[i].Theta != cells[j].Theta {
			return cells[i].Theta < cells[j].Theta
		}
		return cells[i].Rho < cells[j].Rho
	})

	var peaks []HoughLine
	for _, c := range cells {
		if limit > 0 && len(peaks) >= limit {
			break
		}
		suppressed := false
		for _, p := range peaks {
			if houghNear(c, p, rhoRadius, thetaRadius) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			peaks = append(peaks, c)
		}
	}
	return peaks
}

// houghNear compares two cells, treating theta as wrapping at 180 where the
// sign of rho flips.
func houghNear(a, b HoughLine, rhoRadius, thetaRadius int) bool {
	dt := abs(a.Theta - b.Theta)
	if dt <= thetaRadius {
		return abs(a.Rho-b.Rho) <= rhoRadius
	}
	if HoughThetaSteps-dt <= thetaRadius {
		return abs(a.Rho+b.Rho) <= rhoRadius
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// foldAngle maps an angle in degrees onto (-45, 45], the range in which a
// rectangle's orientation is unambiguous.
func foldAngle(deg float64) float64 {
	a := math.Mod(deg, 90)
	if a > 45 {
		a -= 90
	} else if a <= -45 {
		a += 90
	}
	return a
}
