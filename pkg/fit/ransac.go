package fit

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultNeighbors is the neighbourhood size used for normal estimation.
const DefaultNeighbors = 10

// minNormalAngle is the sine of the smallest angle between two sample
// normals that still fixes an axis.
const minNormalAngle = 0.05

var errNoConsensus = errors.New("no cylinder candidate gathered 3 inliers")

// RANSAC is the default Estimator. Two searches compete and the model
// with the lower truncated residual wins:
//
//   - For clouds of at least 3*Neighbors points, each point gets a surface
//     normal from its nearest neighbours; two points with their normals fix
//     a candidate cylinder, and the candidate with the most inliers is
//     refined by least squares.
//   - For clouds of at least five points, a sweep over axis directions
//     that needs no normals. Sparse picks only get this one.
type RANSAC struct {
	Neighbors int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRANSAC returns an estimator drawing samples from rng. A nil rng is
// replaced by one seeded from the clock.
func NewRANSAC(rng *rand.Rand) *RANSAC {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RANSAC{Neighbors: DefaultNeighbors, rng: rng}
}

// Fit implements Estimator.
func (r *RANSAC) Fit(points []r3.Vec, threshold float64, maxIterations int) (Model, error) {
	n := len(points)
	if n < 3 {
		return Model{}, fmt.Errorf("ransac: need at least 3 points, got %d", n)
	}
	if maxIterations <= 0 {
		return Model{}, fmt.Errorf("ransac: iteration budget must be positive, got %d", maxIterations)
	}
	k := r.Neighbors
	if k < 3 {
		k = DefaultNeighbors
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		candidates []Model
		errs       []error
	)
	if n >= 3*k {
		m, err := r.fromNormals(points, k, threshold, maxIterations)
		if err != nil {
			errs = append(errs, err)
		} else {
			candidates = append(candidates, m)
		}
	}
	if n >= minSweepPoints {
		m, err := r.sweep(points, threshold)
		if err != nil {
			errs = append(errs, err)
		} else {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		if len(errs) == 0 {
			errs = append(errs, fmt.Errorf("%d points cannot fix a cylinder", n))
		}
		return Model{}, fmt.Errorf("ransac: %w", errors.Join(errs...))
	}

	best, bestCost := candidates[0], msac(points, candidates[0], threshold)
	for _, m := range candidates[1:] {
		if c := msac(points, m, threshold); c < bestCost {
			best, bestCost = m, c
		}
	}
	best.Axis = canonical(best.Axis)
	return best, nil
}

// fromNormals runs the normal-pair consensus search.
func (r *RANSAC) fromNormals(points []r3.Vec, k int, threshold float64, maxIterations int) (Model, error) {
	n := len(points)
	normals, err := estimateNormals(points, k)
	if err != nil {
		return Model{}, err
	}

	var best Model
	for it := 0; it < maxIterations; it++ {
		i := r.rng.Intn(n)
		j := r.rng.Intn(n - 1)
		if j >= i {
			j++
		}
		cand, ok := fromPair(points[i], normals[i], points[j], normals[j])
		if !ok {
			continue
		}
		cand.Inliers = consensus(points, cand, threshold)
		if len(cand.Inliers) > len(best.Inliers) {
			best = cand
		}
	}
	if len(best.Inliers) < 3 {
		return Model{}, errNoConsensus
	}
	if refined, ok := refine(points, normals, best, threshold); ok && len(refined.Inliers) >= len(best.Inliers) {
		best = refined
	}
	return best, nil
}

// fromPair builds the cylinder whose surface passes through p1 and p2
// with normals n1 and n2 there. The axis is perpendicular to both normals
// and the center is where the normal lines cross.
func fromPair(p1, n1, p2, n2 r3.Vec) (Model, bool) {
	axis := r3.Cross(n1, n2)
	s := r3.Norm(axis)
	if s < minNormalAngle*r3.Norm(n1)*r3.Norm(n2) {
		return Model{}, false
	}
	axis = r3.Scale(1/s, axis)

	q1, q2 := reject(p1, axis), reject(p2, axis)
	m1, m2 := reject(n1, axis), reject(n2, axis)
	denom := r3.Dot(r3.Cross(m1, m2), axis)
	if math.Abs(denom) < 1e-12 {
		return Model{}, false
	}
	t := r3.Dot(r3.Cross(r3.Sub(q2, q1), m2), axis) / denom
	center := r3.Add(q1, r3.Scale(t, m1))
	radius := (r3.Norm(r3.Sub(q1, center)) + r3.Norm(r3.Sub(q2, center))) / 2
	if !(radius > 0) || math.IsInf(radius, 0) {
		return Model{}, false
	}
	return Model{Center: center, Axis: axis, Radius: radius}, true
}

// consensus returns the indices of points whose distance to the surface
// of m is within threshold.
func consensus(points []r3.Vec, m Model, threshold float64) []int {
	var in []int
	for i, p := range points {
		if math.Abs(radialDistance(p, m)-m.Radius) <= threshold {
			in = append(in, i)
		}
	}
	return in
}

func radialDistance(p r3.Vec, m Model) float64 {
	return r3.Norm(reject(r3.Sub(p, m.Center), m.Axis))
}

// refine re-estimates m from its inliers. Cylinder normals are
// perpendicular to the axis, so the axis is the direction in which the
// inlier normals vary least; the cross-section is an algebraic
// least-squares circle in the plane perpendicular to it.
func refine(points, normals []r3.Vec, m Model, threshold float64) (Model, bool) {
	if len(m.Inliers) < 3 {
		return Model{}, false
	}
	scatter := mat.NewSymDense(3, nil)
	for _, i := range m.Inliers {
		addOuter(scatter, normals[i])
	}
	axis, ok := leastEigenvector(scatter)
	if !ok {
		return Model{}, false
	}
	if r3.Dot(axis, m.Axis) < 0 {
		axis = r3.Scale(-1, axis)
	}

	out, ok := kasa(points, m.Inliers, m.Center, axis)
	if !ok {
		return Model{}, false
	}
	out.Inliers = consensus(points, out, threshold)
	return out, true
}

// reject removes the component of v along the unit vector axis.
func reject(v, axis r3.Vec) r3.Vec {
	return r3.Sub(v, r3.Scale(r3.Dot(v, axis), axis))
}

// basis returns two unit vectors completing axis to a right-handed
// orthonormal frame.
func basis(axis r3.Vec) (u, w r3.Vec) {
	ref := r3.Vec{X: 1}
	if math.Abs(axis.X) > 0.9 {
		ref = r3.Vec{Y: 1}
	}
	u = r3.Unit(reject(ref, axis))
	w = r3.Cross(axis, u)
	return u, w
}

// canonical flips axis so that its largest component is positive.
func canonical(axis r3.Vec) r3.Vec {
	c := axis.X
	if math.Abs(axis.Y) > math.Abs(c) {
		c = axis.Y
	}
	if math.Abs(axis.Z) > math.Abs(c) {
		c = axis.Z
	}
	if c < 0 {
		return r3.Scale(-1, axis)
	}
	return axis
}

func addOuter(s *mat.SymDense, v r3.Vec) {
	c := [3]float64{v.X, v.Y, v.Z}
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			s.SetSym(i, j, s.At(i, j)+c[i]*c[j])
		}
	}
}

// leastEigenvector returns the unit eigenvector of s with the smallest
// eigenvalue.
func leastEigenvector(s *mat.SymDense) (r3.Vec, bool) {
	var eig mat.EigenSym
	if !eig.Factorize(s, true) {
		return r3.Vec{}, false
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	v := r3.Vec{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}
	n := r3.Norm(v)
	if n == 0 || math.IsNaN(n) {
		return r3.Vec{}, false
	}
	return r3.Scale(1/n, v), true
}
