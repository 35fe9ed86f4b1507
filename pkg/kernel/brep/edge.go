package brep

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// edge is a bounded curve in face-local coordinates.
type edge interface {
	// points discretises the edge from start to end (both included).
	points(linear, angular float64) []v3.Vec
	// bounds returns the world-space box of the edge under m.
	bounds(m sdf.M44) sdf.Box3
	// ends returns the edge's first and last point.
	ends() (start, end v3.Vec)
}

// loop is a closed chain of edges, each starting where the previous ends.
type loop []edge

// chainTolerance is the largest gap between consecutive edges of a loop,
// relative to the coordinates' magnitude when that exceeds one.
const chainTolerance = 1e-6

// brokenLink returns the index of the first edge whose end is not the
// next edge's start, or -1 when the loop chains.
func (l loop) brokenLink() int {
	for i, e := range l {
		_, end := e.ends()
		next, _ := l[(i+1)%len(l)].ends()
		if end.Sub(next).Length() > chainTolerance*math.Max(1, end.Length()) {
			return i
		}
	}
	return -1
}

// polyline discretises the whole loop, dropping each edge's end point
// since it is the next edge's start point.
func (l loop) polyline(linear, angular float64) []v3.Vec {
	var pts []v3.Vec
	for _, e := range l {
		ep := e.points(linear, angular)
		if len(ep) > 1 {
			ep = ep[:len(ep)-1]
		}
		pts = append(pts, ep...)
	}
	return dedupeRing(pts)
}

// dedupeRing drops consecutive coincident points, including the closing
// point when it repeats the first one.
func dedupeRing(pts []v3.Vec) []v3.Vec {
	const tol = 1e-9
	out := pts[:0:0]
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1].Sub(p).Length() < tol {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0].Sub(out[len(out)-1]).Length() < tol {
		out = out[:len(out)-1]
	}
	return out
}

type lineEdge struct {
	from, to v3.Vec
}

func (e lineEdge) points(_, _ float64) []v3.Vec {
	return []v3.Vec{e.from, e.to}
}

func (e lineEdge) ends() (v3.Vec, v3.Vec) { return e.from, e.to }

func (e lineEdge) bounds(m sdf.M44) sdf.Box3 {
	a, b := m.MulPosition(e.from), m.MulPosition(e.to)
	return sdf.Box3{Min: a.Min(b), Max: a.Max(b)}
}

// arcEdge is a circular arc about axis through center. Angles are measured
// from xdir towards axis × xdir; a negative sweep runs clockwise.
type arcEdge struct {
	center v3.Vec
	axis   v3.Vec
	xdir   v3.Vec
	radius float64
	start  float64
	sweep  float64
}

func (e arcEdge) at(theta float64) v3.Vec {
	ydir := e.axis.Cross(e.xdir)
	return e.center.
		Add(e.xdir.MulScalar(e.radius * math.Cos(theta))).
		Add(ydir.MulScalar(e.radius * math.Sin(theta)))
}

func (e arcEdge) full() bool {
	return math.Abs(math.Abs(e.sweep)-2*math.Pi) < 1e-9
}

func (e arcEdge) ends() (v3.Vec, v3.Vec) {
	return e.at(e.start), e.at(e.start + e.sweep)
}

func (e arcEdge) points(linear, angular float64) []v3.Vec {
	n := arcSegments(e.radius, e.sweep, linear, angular)
	pts := make([]v3.Vec, n+1)
	for i := 0; i <= n; i++ {
		pts[i] = e.at(e.start + e.sweep*float64(i)/float64(n))
	}
	return pts
}

// bounds evaluates the arc at its end points and at every per-axis
// extremum that falls inside the sweep.
func (e arcEdge) bounds(m sdf.M44) sdf.Box3 {
	w := arcEdge{
		center: m.MulPosition(e.center),
		axis:   transformDir(m, e.center, e.axis).Normalize(),
		xdir:   transformDir(m, e.center, e.xdir).Normalize(),
		radius: e.radius,
		start:  e.start,
		sweep:  e.sweep,
	}
	ydir := w.axis.Cross(w.xdir)
	lo, hi := w.start, w.start+w.sweep
	if lo > hi {
		lo, hi = hi, lo
	}
	candidates := []float64{lo, hi}
	for _, c := range [][2]float64{{w.xdir.X, ydir.X}, {w.xdir.Y, ydir.Y}, {w.xdir.Z, ydir.Z}} {
		t := math.Atan2(c[1], c[0])
		for _, base := range []float64{t, t + math.Pi} {
			// Shift the candidate into [lo, lo+2π).
			a := lo + math.Mod(math.Mod(base-lo, 2*math.Pi)+2*math.Pi, 2*math.Pi)
			if a <= hi {
				candidates = append(candidates, a)
			}
		}
	}
	p := w.at(candidates[0])
	box := sdf.Box3{Min: p, Max: p}
	for _, a := range candidates[1:] {
		p = w.at(a)
		box = sdf.Box3{Min: box.Min.Min(p), Max: box.Max.Max(p)}
	}
	return box
}

// arcSegments returns how many chords approximate an arc so that each
// chord's sagitta stays within linear and spans at most angular radians.
// Faces that share a boundary circle use the same count, so their nodes
// coincide.
func arcSegments(radius, sweep, linear, angular float64) int {
	step := angular
	if radius > linear {
		if a := 2 * math.Acos(1-linear/radius); a < step {
			step = a
		}
	}
	n := int(math.Ceil(math.Abs(sweep)/step - 1e-9))
	min := 1
	if math.Abs(math.Abs(sweep)-2*math.Pi) < 1e-9 {
		min = 3
	}
	if n < min {
		n = min
	}
	return n
}
