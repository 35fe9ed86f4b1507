package brep

import (
	"fmt"
	"math"

	"github.com/chazu/facet/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// meshFace builds a face-local triangulation whose triangles wind
// counter-clockwise seen from outside the material.
func meshFace(f *face, linear, angular float64) (*kernel.Triangulation, error) {
	switch f.kind {
	case kernel.SurfacePlane:
		return meshPlane(f, linear, angular)
	case kernel.SurfaceCylinder:
		return meshCylinder(f, linear, angular)
	}
	return nil, fmt.Errorf("brep: no mesher for %s surface", f.kind)
}

func meshPlane(f *face, linear, angular float64) (*kernel.Triangulation, error) {
	if len(f.loops) == 0 {
		return nil, fmt.Errorf("brep: planar face has no boundary")
	}
	var (
		nodes []v3.Vec
		pts   []pt2
		rings [][]int
	)
	for i, l := range f.loops {
		ring := l.polyline(linear, angular)
		if len(ring) < 3 {
			if i == 0 {
				return nil, fmt.Errorf("brep: degenerate outer boundary (%d points)", len(ring))
			}
			continue
		}
		idx := make([]int, len(ring))
		for j, p := range ring {
			idx[j] = len(nodes)
			nodes = append(nodes, p)
			d := p.Sub(f.plane.origin)
			pts = append(pts, pt2{d.Dot(f.plane.xdir), d.Dot(f.plane.ydir)})
		}
		rings = append(rings, idx)
	}

	tris, err := triangulatePolygon(rings[0], rings[1:], pts)
	if err != nil {
		return nil, err
	}
	if f.reversed {
		flip(tris)
	}
	return &kernel.Triangulation{Nodes: nodes, Triangles: tris}, nil
}

// meshCylinder grids the face's (u, v) window. A full turn gets a seam
// column that duplicates the first column's positions as distinct nodes.
func meshCylinder(f *face, linear, angular float64) (*kernel.Triangulation, error) {
	c := f.cyl
	span := c.uMax - c.uMin
	if !(c.radius > 0) || !(span > 0) || !(c.vMax > c.vMin) {
		return nil, fmt.Errorf("brep: empty cylinder window r=%g u=[%g,%g] v=[%g,%g]",
			c.radius, c.uMin, c.uMax, c.vMin, c.vMax)
	}
	nu := arcSegments(c.radius, span, linear, angular)
	const nv = 1

	ydir := c.axis.Cross(c.xdir)
	row := nu + 1
	nodes := make([]v3.Vec, 0, row*(nv+1))
	for j := 0; j <= nv; j++ {
		v := c.vMin + (c.vMax-c.vMin)*float64(j)/nv
		base := c.origin.Add(c.axis.MulScalar(v))
		for i := 0; i <= nu; i++ {
			u := c.uMin + span*float64(i)/float64(nu)
			radial := c.xdir.MulScalar(math.Cos(u)).Add(ydir.MulScalar(math.Sin(u)))
			nodes = append(nodes, base.Add(radial.MulScalar(c.radius)))
		}
	}

	tris := make([][3]int, 0, 2*nu*nv)
	for j := 0; j < nv; j++ {
		for i := 0; i < nu; i++ {
			a := j*row + i
			b, cc, d := a+1, a+row+1, a+row
			tris = append(tris, [3]int{a, b, cc}, [3]int{a, cc, d})
		}
	}
	if f.reversed {
		flip(tris)
	}
	return &kernel.Triangulation{Nodes: nodes, Triangles: tris}, nil
}

func flip(tris [][3]int) {
	for i := range tris {
		tris[i][1], tris[i][2] = tris[i][2], tris[i][1]
	}
}
