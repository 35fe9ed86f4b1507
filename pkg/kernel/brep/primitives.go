package brep

import (
	"math"

	"github.com/chazu/facet/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Box creates a box with its minimum corner at the origin, spanning
// width along X, height along Y and depth along Z. Faces are ordered
// Xmin, Xmax, Ymin, Ymax, Zmin, Zmax.
func (k *Kernel) Box(width, height, depth float64) (kernel.Shape, error) {
	for _, d := range []struct {
		name string
		v    float64
	}{{"width", width}, {"height", height}, {"depth", depth}} {
		if !(d.v > 0) {
			return nil, &kernel.InvalidDimensionError{Name: d.name, Value: d.v}
		}
	}

	corner := func(x, y, z float64) v3.Vec {
		return v3.Vec{X: x * width, Y: y * height, Z: z * depth}
	}
	quad := func(a, b, c, d v3.Vec) loop {
		return loop{lineEdge{a, b}, lineEdge{b, c}, lineEdge{c, d}, lineEdge{d, a}}
	}

	s := &solid{placement: sdf.Identity3d()}
	add := func(origin, normal, ref v3.Vec, l loop) {
		s.faces = append(s.faces, &face{
			owner:    s,
			location: sdf.Identity3d(),
			kind:     kernel.SurfacePlane,
			plane:    newPlaneFrame(origin, normal, ref),
			loops:    []loop{l},
		})
	}

	ex, ey, ez := v3.Vec{X: 1}, v3.Vec{Y: 1}, v3.Vec{Z: 1}
	add(corner(0, 0, 0), ex.Neg(), ey, quad(corner(0, 0, 0), corner(0, 0, 1), corner(0, 1, 1), corner(0, 1, 0)))
	add(corner(1, 0, 0), ex, ey, quad(corner(1, 0, 0), corner(1, 1, 0), corner(1, 1, 1), corner(1, 0, 1)))
	add(corner(0, 0, 0), ey.Neg(), ez, quad(corner(0, 0, 0), corner(1, 0, 0), corner(1, 0, 1), corner(0, 0, 1)))
	add(corner(0, 1, 0), ey, ez, quad(corner(0, 1, 0), corner(0, 1, 1), corner(1, 1, 1), corner(1, 1, 0)))
	add(corner(0, 0, 0), ez.Neg(), ex, quad(corner(0, 0, 0), corner(0, 1, 0), corner(1, 1, 0), corner(1, 0, 0)))
	add(corner(0, 0, 1), ez, ex, quad(corner(0, 0, 1), corner(1, 0, 1), corner(1, 1, 1), corner(0, 1, 1)))
	return s, nil
}

// Cylinder creates a cylinder of the given radius whose axis runs along
// +Z from the origin to height. Faces are ordered lateral, top, bottom.
func (k *Kernel) Cylinder(radius, height float64) (kernel.Shape, error) {
	if !(radius > 0) {
		return nil, &kernel.InvalidDimensionError{Name: "radius", Value: radius}
	}
	if !(height > 0) {
		return nil, &kernel.InvalidDimensionError{Name: "height", Value: height}
	}

	origin := v3.Vec{}
	top := v3.Vec{Z: height}
	ex, ez := v3.Vec{X: 1}, v3.Vec{Z: 1}
	circle := func(c v3.Vec, sweep float64) arcEdge {
		return arcEdge{center: c, axis: ez, xdir: ex, radius: radius, sweep: sweep}
	}

	s := &solid{placement: sdf.Identity3d()}
	s.faces = []*face{
		{
			owner:    s,
			location: sdf.Identity3d(),
			kind:     kernel.SurfaceCylinder,
			cyl: cylinderFrame{
				origin: origin, axis: ez, xdir: ex, radius: radius,
				uMin: 0, uMax: 2 * math.Pi, vMin: 0, vMax: height,
			},
			loops: []loop{{
				circle(origin, 2*math.Pi),
				lineEdge{origin.Add(ex.MulScalar(radius)), top.Add(ex.MulScalar(radius))},
				circle(top, -2*math.Pi),
				lineEdge{top.Add(ex.MulScalar(radius)), origin.Add(ex.MulScalar(radius))},
			}},
		},
		{
			owner:    s,
			location: sdf.Identity3d(),
			kind:     kernel.SurfacePlane,
			plane:    newPlaneFrame(top, ez, ex),
			loops:    []loop{{circle(top, 2*math.Pi)}},
		},
		{
			owner:    s,
			location: sdf.Identity3d(),
			kind:     kernel.SurfacePlane,
			plane:    newPlaneFrame(origin, ez.Neg(), ex),
			loops:    []loop{{circle(origin, -2*math.Pi)}},
		},
	}
	return s, nil
}
