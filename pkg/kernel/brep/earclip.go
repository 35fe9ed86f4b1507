package brep

import (
	"errors"
	"math"
	"sort"
)

// pt2 is a point in a planar face's 2D frame.
type pt2 struct {
	x, y float64
}

func cross2(o, a, b pt2) float64 {
	return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
}

// ringArea returns the signed area of the ring; positive means
// counter-clockwise.
func ringArea(ring []int, pts []pt2) float64 {
	var a float64
	n := len(ring)
	for i := 0; i < n; i++ {
		p, q := pts[ring[i]], pts[ring[(i+1)%n]]
		a += p.x*q.y - q.x*p.y
	}
	return a / 2
}

func reverseRing(ring []int) []int {
	out := make([]int, len(ring))
	for i, v := range ring {
		out[len(ring)-1-i] = v
	}
	return out
}

// triangulatePolygon triangulates an outer ring with holes. The outer
// ring is made counter-clockwise and the holes clockwise, holes are
// bridged into the outer ring, and the result is ear clipped. Triangles
// come out counter-clockwise.
func triangulatePolygon(outer []int, holes [][]int, pts []pt2) ([][3]int, error) {
	if ringArea(outer, pts) < 0 {
		outer = reverseRing(outer)
	}
	hs := make([][]int, 0, len(holes))
	for _, h := range holes {
		if len(h) < 3 {
			continue
		}
		if ringArea(h, pts) > 0 {
			h = reverseRing(h)
		}
		hs = append(hs, h)
	}
	// Bridge the rightmost hole first so later bridges can see through
	// earlier ones.
	maxX := func(ring []int) float64 {
		m := math.Inf(-1)
		for _, i := range ring {
			m = math.Max(m, pts[i].x)
		}
		return m
	}
	sort.SliceStable(hs, func(i, j int) bool { return maxX(hs[i]) > maxX(hs[j]) })

	poly := outer
	for _, h := range hs {
		poly = bridgeHole(poly, h, pts)
	}
	return earClip(poly, pts)
}

// bridgeHole splices hole into poly through a mutually visible vertex
// pair, duplicating the two bridge vertices.
func bridgeHole(poly, hole []int, pts []pt2) []int {
	mi := 0
	for i := range hole {
		if pts[hole[i]].x > pts[hole[mi]].x {
			mi = i
		}
	}
	m := pts[hole[mi]]

	// Cast a ray from m towards +x and find the nearest edge it crosses.
	edge, hitX := -1, math.Inf(1)
	n := len(poly)
	for i := 0; i < n; i++ {
		a, b := pts[poly[i]], pts[poly[(i+1)%n]]
		if (a.y > m.y) == (b.y > m.y) {
			continue
		}
		x := a.x + (m.y-a.y)*(b.x-a.x)/(b.y-a.y)
		if x < m.x || x >= hitX {
			continue
		}
		edge, hitX = i, x
	}
	if edge < 0 {
		// The hole is not inside the polygon; drop it.
		return poly
	}

	pi := edge
	if pts[poly[(edge+1)%n]].x > pts[poly[edge]].x {
		pi = (edge + 1) % n
	}
	hit := pt2{hitX, m.y}
	cand := pi
	p := pts[poly[cand]]

	// Any polygon vertex inside triangle (m, hit, p) blocks the view of
	// p; pick the one closest in angle to the ray instead.
	bestAngle, bestDist := math.Inf(1), math.Inf(1)
	for i := 0; i < n; i++ {
		if i == cand || poly[i] == poly[cand] {
			continue
		}
		v := pts[poly[i]]
		if !inTriangle(v, m, hit, p) {
			continue
		}
		dx, dy := v.x-m.x, v.y-m.y
		angle := math.Abs(math.Atan2(dy, dx))
		dist := dx*dx + dy*dy
		if angle < bestAngle || (angle == bestAngle && dist < bestDist) {
			pi, bestAngle, bestDist = i, angle, dist
		}
	}

	out := make([]int, 0, len(poly)+len(hole)+2)
	out = append(out, poly[:pi+1]...)
	out = append(out, hole[mi:]...)
	out = append(out, hole[:mi+1]...)
	out = append(out, poly[pi:]...)
	return out
}

// inTriangle reports whether p lies inside or on the triangle abc, in
// either winding.
func inTriangle(p, a, b, c pt2) bool {
	d1, d2, d3 := cross2(a, b, p), cross2(b, c, p), cross2(c, a, p)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

var errClipStalled = errors.New("brep: ear clipping stalled")

// earClip triangulates a simple counter-clockwise polygon given as indices
// into pts. Collinear vertices are dropped without emitting a triangle.
func earClip(poly []int, pts []pt2) ([][3]int, error) {
	idx := append([]int(nil), poly...)
	if len(idx) < 3 {
		return nil, errClipStalled
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, i := range idx {
		minX, maxX = math.Min(minX, pts[i].x), math.Max(maxX, pts[i].x)
		minY, maxY = math.Min(minY, pts[i].y), math.Max(maxY, pts[i].y)
	}
	scale := math.Max(maxX-minX, maxY-minY)
	eps := 1e-12 * scale * scale

	tris := make([][3]int, 0, len(idx)-2)
	for len(idx) > 3 {
		n := len(idx)
		clipped := false
		for i := 0; i < n; i++ {
			a, b, c := idx[(i+n-1)%n], idx[i], idx[(i+1)%n]
			if cross2(pts[a], pts[b], pts[c]) <= eps {
				continue
			}
			if earBlocked(idx, pts, a, b, c) {
				continue
			}
			tris = append(tris, [3]int{a, b, c})
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if clipped {
			continue
		}
		// No ear: drop one degenerate vertex and retry.
		dropped := false
		for i := 0; i < n; i++ {
			a, b, c := idx[(i+n-1)%n], idx[i], idx[(i+1)%n]
			if math.Abs(cross2(pts[a], pts[b], pts[c])) <= eps {
				idx = append(idx[:i], idx[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			return nil, errClipStalled
		}
	}
	if len(idx) == 3 && cross2(pts[idx[0]], pts[idx[1]], pts[idx[2]]) > eps {
		tris = append(tris, [3]int{idx[0], idx[1], idx[2]})
	}
	if len(tris) == 0 {
		return nil, errClipStalled
	}
	return tris, nil
}

func earBlocked(idx []int, pts []pt2, a, b, c int) bool {
	pa, pb, pc := pts[a], pts[b], pts[c]
	for _, j := range idx {
		if j == a || j == b || j == c {
			continue
		}
		q := pts[j]
		if q == pa || q == pb || q == pc {
			continue
		}
		if inTriangle(q, pa, pb, pc) {
			return true
		}
	}
	return false
}
