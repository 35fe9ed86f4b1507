package fit

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// cylinderCloud samples n points on the lateral surface of a cylinder
// centred at center, with radial noise of the given standard deviation.
func cylinderCloud(rng *rand.Rand, center, axis r3.Vec, radius, height float64, n int, noise float64) []r3.Vec {
	axis = r3.Unit(axis)
	u, w := basis(axis)
	pts := make([]r3.Vec, n)
	for i := range pts {
		theta := rng.Float64() * 2 * math.Pi
		h := (rng.Float64() - 0.5) * height
		r := radius + noise*rng.NormFloat64()
		p := r3.Add(center, r3.Scale(h, axis))
		p = r3.Add(p, r3.Scale(r*math.Cos(theta), u))
		pts[i] = r3.Add(p, r3.Scale(r*math.Sin(theta), w))
	}
	return pts
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

// axisAngle returns the angle in degrees between two lines.
func axisAngle(a, b r3.Vec) float64 {
	c := math.Abs(r3.Cos(a, b))
	return math.Acos(math.Min(1, c)) * 180 / math.Pi
}

func seeded(seed int64) *Fitter {
	return &Fitter{Estimator: NewRANSAC(rand.New(rand.NewSource(seed)))}
}

func TestFitCylinderSynthetic(t *testing.T) {
	tests := []struct {
		name   string
		center r3.Vec
		axis   r3.Vec
		radius float64
		height float64
		noise  float64
	}{
		{"upright", r3.Vec{}, r3.Vec{Z: 1}, 5, 20, 0},
		{"tilted", r3.Vec{X: 3, Y: -2, Z: 7}, r3.Vec{X: 1, Y: 1, Z: 0.5}, 2, 12, 0},
		{"noisy", r3.Vec{X: -10, Y: 4}, r3.Vec{Y: 1}, 8, 30, 0.02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			pts := cylinderCloud(rng, tt.center, tt.axis, tt.radius, tt.height, 500, tt.noise)

			res, err := seeded(1).FitCylinder(pts)
			require.NoError(t, err)

			assert.Equal(t, "Cylinder", res.ShapeType)
			assert.InDelta(t, tt.radius, res.Radius, 0.03*tt.radius)
			assert.Less(t, axisAngle(tt.axis, vec(res.Axis)), 3.0)
			assert.InDelta(t, 1, r3.Norm(vec(res.Axis)), 1e-9)
			assert.InDelta(t, tt.height, res.Height, 0.05*tt.height)
			assert.Less(t, r3.Norm(r3.Sub(vec(res.Center), tt.center)), 0.05*tt.height)
			assert.InDelta(t, ThresholdFraction*Diagonal(pts), res.Threshold, 1e-12)
			assert.Greater(t, res.Inliers, 400)
		})
	}
}

func TestFitCylinderWithOutliers(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	pts := cylinderCloud(rng, r3.Vec{}, r3.Vec{Z: 1}, 5, 20, 400, 0)
	for i := 0; i < 80; i++ {
		pts = append(pts, r3.Vec{
			X: (rng.Float64() - 0.5) * 10,
			Y: (rng.Float64() - 0.5) * 10,
			Z: (rng.Float64() - 0.5) * 20,
		})
	}

	res, err := seeded(3).FitCylinder(pts)
	require.NoError(t, err)
	assert.InDelta(t, 5, res.Radius, 0.25)
	assert.Less(t, axisAngle(r3.Vec{Z: 1}, vec(res.Axis)), 5.0)
	assert.Less(t, res.Inliers, len(pts))
}

// ringCloud places perRing evenly spaced points on each end circle of a
// cylinder, the way a tessellated cylinder's vertices sit.
func ringCloud(center, axis r3.Vec, radius, height float64, perRing int) []r3.Vec {
	axis = r3.Unit(axis)
	u, w := basis(axis)
	var pts []r3.Vec
	for _, h := range []float64{-height / 2, height / 2} {
		for i := 0; i < perRing; i++ {
			theta := 2 * math.Pi * float64(i) / float64(perRing)
			p := r3.Add(center, r3.Scale(h, axis))
			p = r3.Add(p, r3.Scale(radius*math.Cos(theta), u))
			pts = append(pts, r3.Add(p, r3.Scale(radius*math.Sin(theta), w)))
		}
	}
	return pts
}

func TestFitCylinderSparse(t *testing.T) {
	tilted := r3.Vec{X: 1, Y: 1, Z: 0.5}
	tests := []struct {
		name   string
		points []r3.Vec
		center r3.Vec
		axis   r3.Vec
		radius float64
		height float64
	}{
		{"two rings of 16", ringCloud(r3.Vec{}, r3.Vec{Z: 1}, 5, 20, 16), r3.Vec{}, r3.Vec{Z: 1}, 5, 20},
		{"two rings of 8", ringCloud(r3.Vec{}, r3.Vec{Z: 1}, 5, 20, 8), r3.Vec{}, r3.Vec{Z: 1}, 5, 20},
		{"tilted rings of 6", ringCloud(r3.Vec{X: 3, Y: -2, Z: 7}, tilted, 2, 12, 6), r3.Vec{X: 3, Y: -2, Z: 7}, tilted, 2, 12},
		{"12 surface points", cylinderCloud(rand.New(rand.NewSource(9)), r3.Vec{}, r3.Vec{Z: 1}, 5, 20, 12, 0), r3.Vec{}, r3.Vec{Z: 1}, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for seed := int64(1); seed <= 5; seed++ {
				res, err := seeded(seed).FitCylinder(tt.points)
				require.NoError(t, err, "seed %d", seed)

				assert.InDelta(t, tt.radius, res.Radius, 0.03*tt.radius, "seed %d", seed)
				assert.Less(t, axisAngle(tt.axis, vec(res.Axis)), 3.0, "seed %d", seed)
				assert.Equal(t, len(tt.points), res.Inliers, "seed %d", seed)
				if tt.height > 0 {
					assert.InDelta(t, tt.height, res.Height, 0.05*tt.height, "seed %d", seed)
					assert.Less(t, r3.Norm(r3.Sub(vec(res.Center), tt.center)), 0.05*tt.height, "seed %d", seed)
				}
			}
		})
	}
}

func TestSweepFindsAxis(t *testing.T) {
	pts := ringCloud(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{Y: 1}, 3, 8, 5)
	m, err := NewRANSAC(rand.New(rand.NewSource(1))).sweep(pts, 0.3)
	require.NoError(t, err)
	assert.Less(t, axisAngle(r3.Vec{Y: 1}, m.Axis), 0.01)
	assert.InDelta(t, 3, m.Radius, 1e-3)
	assert.Len(t, m.Inliers, len(pts))
	assert.InDelta(t, 0, msac(pts, m, 0.3), 1e-6)
}

func TestFitCylinderSeedIsDeterministic(t *testing.T) {
	pts := cylinderCloud(rand.New(rand.NewSource(5)), r3.Vec{}, r3.Vec{X: 1}, 3, 10, 200, 0.01)
	a, err := seeded(42).FitCylinder(pts)
	require.NoError(t, err)
	b, err := seeded(42).FitCylinder(pts)
	require.NoError(t, err)

	// The k-d tree pivots randomly, so neighbour sums may differ in the
	// last bits.
	assert.InDelta(t, a.Radius, b.Radius, 1e-9)
	assert.InDelta(t, a.Height, b.Height, 1e-9)
	assert.InDeltaSlice(t, a.Axis[:], b.Axis[:], 1e-9)
	assert.InDeltaSlice(t, a.Center[:], b.Center[:], 1e-9)
}

// stubEstimator returns a fixed model or error.
type stubEstimator struct {
	model     Model
	err       error
	threshold float64
	budget    int
}

func (s *stubEstimator) Fit(_ []r3.Vec, threshold float64, maxIterations int) (Model, error) {
	s.threshold = threshold
	s.budget = maxIterations
	return s.model, s.err
}

func TestFitCylinderRecentresOnInliers(t *testing.T) {
	pts := []r3.Vec{
		{X: 1, Z: 4},
		{Y: 1, Z: 10},
		{X: -1, Z: 6},
		{X: 50, Y: 50, Z: -100}, // not an inlier
	}
	stub := &stubEstimator{model: Model{
		Center:  r3.Vec{},
		Axis:    r3.Vec{Z: 2},
		Radius:  1,
		Inliers: []int{0, 1, 2},
	}}
	res, err := (&Fitter{Estimator: stub}).FitCylinder(pts)
	require.NoError(t, err)

	assert.Equal(t, [3]float64{0, 0, 1}, res.Axis)
	assert.InDelta(t, 6, res.Height, 1e-12)
	assert.InDelta(t, 0, res.Center[0], 1e-12)
	assert.InDelta(t, 0, res.Center[1], 1e-12)
	assert.InDelta(t, 7, res.Center[2], 1e-12)
	assert.Equal(t, 1.0, res.Radius)
	assert.Equal(t, 3, res.Inliers)

	assert.Equal(t, MaxIterations, stub.budget)
	assert.InDelta(t, ThresholdFraction*Diagonal(pts), stub.threshold, 1e-12)
}

func TestFitCylinderErrors(t *testing.T) {
	cloud := []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1}}
	tests := []struct {
		name   string
		fitter *Fitter
		points []r3.Vec
		want   error
	}{
		{"no points", seeded(1), nil, ErrInsufficientPoints},
		{"two points", seeded(1), cloud[:2], ErrInsufficientPoints},
		{"nil estimator", &Fitter{}, cloud, ErrFittingUnavailable},
		{"nil fitter", nil, cloud, ErrFittingUnavailable},
		{"coincident", seeded(1), []r3.Vec{{X: 1}, {X: 1}, {X: 1}}, ErrFitFailed},
		{"estimator error", &Fitter{Estimator: &stubEstimator{err: errors.New("boom")}}, cloud, ErrFitFailed},
		{"degenerate model", &Fitter{Estimator: &stubEstimator{model: Model{Axis: r3.Vec{Z: 1}}}}, cloud, ErrFitFailed},
		{"too few inliers", &Fitter{Estimator: &stubEstimator{model: Model{Axis: r3.Vec{Z: 1}, Radius: 1, Inliers: []int{0}}}}, cloud, ErrFitFailed},
		{"four points", seeded(1), cloud, ErrFitFailed},
		{"planar cloud", seeded(1), []r3.Vec{{}, {X: 1}, {Y: 1}}, ErrFitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.fitter.FitCylinder(tt.points)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.want), "err = %v", err)
			if errors.Is(err, ErrFitFailed) {
				assert.True(t, strings.Contains(err.Error(), Guidance))
			}
		})
	}
}

func TestFromPair(t *testing.T) {
	// Two points on the cylinder x²+y²=4 around (1,1,*).
	c := r3.Vec{X: 1, Y: 1}
	p1, n1 := r3.Vec{X: 3, Y: 1, Z: 5}, r3.Vec{X: 1}
	p2, n2 := r3.Vec{X: 1, Y: 3, Z: -2}, r3.Vec{Y: -1}

	m, ok := fromPair(p1, n1, p2, n2)
	require.True(t, ok)
	assert.InDelta(t, 2, m.Radius, 1e-12)
	assert.Less(t, axisAngle(r3.Vec{Z: 1}, m.Axis), 1e-9)
	assert.InDelta(t, 0, radialDistance(c, m), 1e-12)

	_, ok = fromPair(p1, n1, p2, r3.Vec{X: -1})
	assert.False(t, ok, "parallel normals fix no axis")
}

func TestEstimateNormalsPlane(t *testing.T) {
	var pts []r3.Vec
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			pts = append(pts, r3.Vec{X: float64(i), Y: float64(j), Z: 2})
		}
	}
	normals, err := estimateNormals(pts, DefaultNeighbors)
	require.NoError(t, err)
	require.Len(t, normals, len(pts))
	for _, n := range normals {
		assert.InDelta(t, 1, math.Abs(n.Z), 1e-9)
	}
}

func TestDiagonal(t *testing.T) {
	assert.Zero(t, Diagonal(nil))
	assert.InDelta(t, math.Sqrt(3), Diagonal([]r3.Vec{{}, {X: 1, Y: 1, Z: 1}, {X: 0.5}}), 1e-12)
}
