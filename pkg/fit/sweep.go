package fit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// minSweepPoints is the smallest cloud the direction sweep accepts:
	// a cylinder has five degrees of freedom.
	minSweepPoints = 5

	// maxSweepPoints caps the sample the sweep scores directions on.
	maxSweepPoints = 256

	// sweepDirections is the number of candidate axes on the hemisphere.
	sweepDirections = 4096

	// sweepStep is the first step of the local axis search, in radians.
	// It exceeds the spacing of the candidate axes.
	sweepStep = 0.04

	circleRounds = 3
)

var errNoCircle = errors.New("no axis direction projects the points onto a circle")

// hemisphere holds the candidate axis directions, spread evenly over the
// upper unit hemisphere. Opposite directions describe the same axis.
var hemisphere = fibonacciHemisphere(sweepDirections)

func fibonacciHemisphere(n int) []r3.Vec {
	golden := math.Pi * (3 - math.Sqrt(5))
	dirs := make([]r3.Vec, n)
	for i := range dirs {
		z := 1 - (float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - z*z)
		phi := golden * float64(i)
		dirs[i] = r3.Vec{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z}
	}
	return dirs
}

// sweep fits a cylinder without surface normals. Every candidate axis
// direction gets the circle that best explains the points projected along
// it; the best direction is then polished by a shrinking local search.
// Sparse clouds, where neighbourhood normals are meaningless, are fitted
// this way.
func (r *RANSAC) sweep(points []r3.Vec, threshold float64) (Model, error) {
	sample := points
	if len(points) > maxSweepPoints {
		sample = make([]r3.Vec, maxSweepPoints)
		for i, j := range r.rng.Perm(len(points))[:maxSweepPoints] {
			sample[i] = points[j]
		}
	}

	var best Model
	bestCost := math.Inf(1)
	for _, d := range hemisphere {
		m, ok := circleAlong(sample, d, threshold)
		if !ok {
			continue
		}
		if c := msac(sample, m, threshold); c < bestCost {
			best, bestCost = m, c
		}
	}
	if math.IsInf(bestCost, 1) {
		return Model{}, errNoCircle
	}

	for step := sweepStep; step > 1e-7; step /= 2 {
		for moves := 0; moves < 32; moves++ {
			u, w := basis(best.Axis)
			improved := false
			for _, dir := range []r3.Vec{u, w, r3.Scale(-1, u), r3.Scale(-1, w)} {
				axis := r3.Unit(r3.Add(best.Axis, r3.Scale(step, dir)))
				m, ok := circleAlong(sample, axis, threshold)
				if !ok {
					continue
				}
				if c := msac(sample, m, threshold); c < bestCost {
					best, bestCost, improved = m, c, true
					break
				}
			}
			if !improved {
				break
			}
		}
	}

	out, ok := circleAlong(points, best.Axis, threshold)
	if !ok {
		return Model{}, errNoCircle
	}
	out.Inliers = consensus(points, out, threshold)
	return out, nil
}

// circleAlong returns the cylinder with the given axis direction whose
// circle best fits the projected points. The circle is refitted to the
// points it explains so stray points lose their pull.
func circleAlong(points []r3.Vec, axis r3.Vec, threshold float64) (Model, bool) {
	idx := make([]int, len(points))
	var origin r3.Vec
	for i, p := range points {
		idx[i] = i
		origin = r3.Add(origin, p)
	}
	origin = r3.Scale(1/float64(len(points)), origin)

	var m Model
	found := false
	for round := 0; round < circleRounds; round++ {
		next, ok := kasa(points, idx, origin, axis)
		if !ok {
			break
		}
		m, found = next, true
		in := consensus(points, m, threshold)
		if len(in) < minSweepPoints || len(in) == len(idx) {
			break
		}
		idx = in
	}
	return m, found
}

// kasa fits a circle algebraically to points[idx] projected onto the
// plane through origin perpendicular to the unit vector axis.
func kasa(points []r3.Vec, idx []int, origin, axis r3.Vec) (Model, bool) {
	if len(idx) < 3 {
		return Model{}, false
	}
	u, w := basis(axis)
	a := mat.NewDense(len(idx), 3, nil)
	b := mat.NewVecDense(len(idx), nil)
	for row, i := range idx {
		d := r3.Sub(points[i], origin)
		x, y := r3.Dot(d, u), r3.Dot(d, w)
		a.Set(row, 0, x)
		a.Set(row, 1, y)
		a.Set(row, 2, 1)
		b.SetVec(row, -(x*x + y*y))
	}
	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return Model{}, false
	}
	cx, cy := -sol.AtVec(0)/2, -sol.AtVec(1)/2
	r2 := cx*cx + cy*cy - sol.AtVec(2)
	if !(r2 > 0) || math.IsInf(r2, 0) {
		return Model{}, false
	}
	return Model{
		Center: r3.Add(origin, r3.Add(r3.Scale(cx, u), r3.Scale(cy, w))),
		Axis:   axis,
		Radius: math.Sqrt(r2),
	}, true
}

// msac scores m by truncated squared residuals: a point costs its squared
// distance to the surface, capped at the squared threshold. Lower is
// better.
func msac(points []r3.Vec, m Model, threshold float64) float64 {
	t2 := threshold * threshold
	var cost float64
	for _, p := range points {
		d := radialDistance(p, m) - m.Radius
		cost += math.Min(d*d, t2)
	}
	return cost
}
