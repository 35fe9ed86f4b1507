package brep

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/chazu/facet/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Import reads an exchange file into a solid. STEP is read natively;
// IGES has no translator in this kernel.
func (k *Kernel) Import(path string, format kernel.Format) (kernel.Shape, error) {
	switch format {
	case kernel.FormatSTEP:
	case kernel.FormatIGES:
		return nil, fmt.Errorf("%w: no IGES translator in native kernel", kernel.ErrUnreadable)
	default:
		return nil, fmt.Errorf("%w: unsupported format %s", kernel.ErrUnreadable, format)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kernel.ErrUnreadable, err)
	}
	defer f.Close()

	sf, err := parseSTEP(f)
	if err != nil {
		return nil, fmt.Errorf("%w: step: %v", kernel.ErrUnreadable, err)
	}
	s, err := buildSolid(sf)
	if err != nil {
		return nil, fmt.Errorf("%w: step: %v", kernel.ErrUnreadable, err)
	}
	return s, nil
}

// errOpenLoop rejects a boundary whose edges do not chain end to start.
// Unlike other face errors it fails the whole import.
var errOpenLoop = errors.New("edge loop does not chain")

// stepBuilder turns parsed entities into faces. Points are memoised by
// instance name.
type stepBuilder struct {
	file   *stepFile
	points map[int]v3.Vec
}

func buildSolid(sf *stepFile) (*solid, error) {
	b := &stepBuilder{file: sf, points: make(map[int]v3.Vec)}
	shells, err := b.shells()
	if err != nil {
		return nil, err
	}

	s := &solid{placement: sdf.Identity3d()}
	seen := make(map[int]bool)
	for _, sh := range shells {
		rec, ok := sh.record("CLOSED_SHELL")
		if !ok {
			rec, _ = sh.record("OPEN_SHELL")
		}
		faces, err := listArg(rec, 1)
		if err != nil {
			return nil, fmt.Errorf("shell #%d: %w", sh.id, err)
		}
		for _, ref := range faces {
			fe, err := sf.get(ref)
			if err != nil {
				return nil, err
			}
			if seen[fe.id] {
				continue
			}
			seen[fe.id] = true
			f, err := b.face(fe)
			if errors.Is(err, errOpenLoop) {
				return nil, fmt.Errorf("face #%d: %w", fe.id, err)
			}
			if err != nil {
				// A face the kernel cannot represent is left out.
				continue
			}
			f.owner = s
			s.faces = append(s.faces, f)
		}
	}
	if len(s.faces) == 0 {
		return nil, fmt.Errorf("no usable faces")
	}
	return s, nil
}

// shells returns the shells of every solid in the file, or every shell
// when the file declares no solid.
func (b *stepBuilder) shells() ([]*stepEntity, error) {
	var refs []any
	for _, id := range b.file.order {
		e := b.file.entities[id]
		switch {
		case e.is("MANIFOLD_SOLID_BREP"):
			r, _ := e.record("MANIFOLD_SOLID_BREP")
			if len(r.args) > 1 {
				refs = append(refs, r.args[1])
			}
		case e.is("BREP_WITH_VOIDS"):
			r, _ := e.record("BREP_WITH_VOIDS")
			if len(r.args) > 1 {
				refs = append(refs, r.args[1])
			}
			if voids, err := listArg(r, 2); err == nil {
				refs = append(refs, voids...)
			}
		case e.is("SHELL_BASED_SURFACE_MODEL"):
			r, _ := e.record("SHELL_BASED_SURFACE_MODEL")
			if list, err := listArg(r, 1); err == nil {
				refs = append(refs, list...)
			}
		}
	}
	if len(refs) == 0 {
		for _, id := range b.file.order {
			e := b.file.entities[id]
			if e.is("CLOSED_SHELL") || e.is("OPEN_SHELL") {
				refs = append(refs, stepRef(id))
			}
		}
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no solid or shell in file")
	}

	out := make([]*stepEntity, 0, len(refs))
	for _, ref := range refs {
		sh, err := b.file.get(ref)
		if err != nil {
			return nil, err
		}
		// An ORIENTED_CLOSED_SHELL wraps its shell in the third argument.
		if r, ok := sh.record("ORIENTED_CLOSED_SHELL"); ok && len(r.args) > 2 {
			if sh, err = b.file.get(r.args[2]); err != nil {
				return nil, err
			}
		}
		if !sh.is("CLOSED_SHELL") && !sh.is("OPEN_SHELL") {
			return nil, fmt.Errorf("#%d is not a shell", sh.id)
		}
		out = append(out, sh)
	}
	return out, nil
}

func (b *stepBuilder) face(fe *stepEntity) (*face, error) {
	rec, ok := fe.record("ADVANCED_FACE")
	if !ok {
		if rec, ok = fe.record("FACE_SURFACE"); !ok {
			return nil, fmt.Errorf("#%d: unsupported face type", fe.id)
		}
	}
	if len(rec.args) < 4 {
		return nil, fmt.Errorf("#%d: short face record", fe.id)
	}
	sameSense := rec.args[3] != stepEnum("F")

	se, err := b.file.get(rec.args[2])
	if err != nil {
		return nil, err
	}
	f := &face{location: sdf.Identity3d(), reversed: !sameSense}
	if err := b.surface(f, se); err != nil {
		return nil, err
	}

	bounds, err := listArg(rec, 1)
	if err != nil {
		return nil, err
	}
	outer := -1
	for _, ref := range bounds {
		be, err := b.file.get(ref)
		if err != nil {
			return nil, err
		}
		brec, ok := be.record("FACE_OUTER_BOUND")
		isOuter := ok
		if !ok {
			if brec, ok = be.record("FACE_BOUND"); !ok {
				continue
			}
		}
		if len(brec.args) < 2 {
			continue
		}
		le, err := b.file.get(brec.args[1])
		if err != nil {
			return nil, err
		}
		l, err := b.loop(le)
		if err != nil {
			return nil, err
		}
		if len(l) == 0 {
			continue
		}
		if isOuter && outer < 0 {
			outer = len(f.loops)
		}
		f.loops = append(f.loops, l)
	}
	if len(f.loops) == 0 {
		return nil, fmt.Errorf("#%d: face has no edge loops", fe.id)
	}

	switch f.kind {
	case kernel.SurfacePlane:
		if outer < 0 {
			outer = largestLoop(f)
		}
		f.loops[0], f.loops[outer] = f.loops[outer], f.loops[0]
	case kernel.SurfaceCylinder:
		cylinderWindow(f)
	}
	return f, nil
}

func (b *stepBuilder) surface(f *face, se *stepEntity) error {
	if r, ok := se.record("PLANE"); ok {
		origin, axis, xdir, err := b.placementArg(r, 1)
		if err != nil {
			return err
		}
		f.kind = kernel.SurfacePlane
		f.plane = newPlaneFrame(origin, axis, xdir)
		return nil
	}
	if r, ok := se.record("CYLINDRICAL_SURFACE"); ok {
		origin, axis, xdir, err := b.placementArg(r, 1)
		if err != nil {
			return err
		}
		radius, err := numberArg(r, 2)
		if err != nil {
			return err
		}
		x, _ := orthoFrame(axis, xdir)
		f.kind = kernel.SurfaceCylinder
		f.cyl = cylinderFrame{origin: origin, axis: axis.Normalize(), xdir: x, radius: radius}
		return nil
	}
	f.kind = kernel.SurfaceOther
	for _, r := range se.records {
		switch {
		case r.name == "CONICAL_SURFACE":
			f.kind = kernel.SurfaceCone
		case r.name == "SPHERICAL_SURFACE":
			f.kind = kernel.SurfaceSphere
		case r.name == "TOROIDAL_SURFACE" || r.name == "DEGENERATE_TOROIDAL_SURFACE":
			f.kind = kernel.SurfaceTorus
		case strings.HasPrefix(r.name, "B_SPLINE_SURFACE") || r.name == "RATIONAL_B_SPLINE_SURFACE":
			f.kind = kernel.SurfaceBSpline
		}
	}
	return nil
}

func (b *stepBuilder) loop(le *stepEntity) (loop, error) {
	if r, ok := le.record("POLY_LOOP"); ok {
		refs, err := listArg(r, 1)
		if err != nil {
			return nil, err
		}
		pts := make([]v3.Vec, len(refs))
		for i, ref := range refs {
			if pts[i], err = b.point(ref); err != nil {
				return nil, err
			}
		}
		var l loop
		for i := range pts {
			l = append(l, lineEdge{pts[i], pts[(i+1)%len(pts)]})
		}
		return l, nil
	}
	r, ok := le.record("EDGE_LOOP")
	if !ok {
		// VERTEX_LOOP and friends bound nothing we can mesh.
		return nil, nil
	}
	refs, err := listArg(r, 1)
	if err != nil {
		return nil, err
	}
	var l loop
	for _, ref := range refs {
		oe, err := b.file.get(ref)
		if err != nil {
			return nil, err
		}
		e, err := b.orientedEdge(oe)
		if err != nil {
			return nil, err
		}
		l = append(l, e)
	}
	if i := l.brokenLink(); i >= 0 {
		j := (i + 1) % len(l)
		_, end := l[i].ends()
		start, _ := l[j].ends()
		return nil, fmt.Errorf("#%d: %w: edge %d ends at %v but edge %d starts at %v",
			le.id, errOpenLoop, i, end, j, start)
	}
	return l, nil
}

func (b *stepBuilder) orientedEdge(oe *stepEntity) (edge, error) {
	r, ok := oe.record("ORIENTED_EDGE")
	if !ok || len(r.args) < 5 {
		return nil, fmt.Errorf("#%d: expected ORIENTED_EDGE", oe.id)
	}
	orientation := r.args[4] != stepEnum("F")
	ee, err := b.file.get(r.args[3])
	if err != nil {
		return nil, err
	}
	ec, ok := ee.record("EDGE_CURVE")
	if !ok || len(ec.args) < 5 {
		return nil, fmt.Errorf("#%d: expected EDGE_CURVE", ee.id)
	}
	sameSense := ec.args[4] != stepEnum("F")

	start, err := b.vertex(ec.args[1])
	if err != nil {
		return nil, err
	}
	end, err := b.vertex(ec.args[2])
	if err != nil {
		return nil, err
	}
	closed := ec.args[1] == ec.args[2]
	if !orientation {
		start, end = end, start
	}

	ce, err := b.file.get(ec.args[3])
	if err != nil {
		return nil, err
	}
	ce, err = b.basisCurve(ce)
	if err != nil {
		return nil, err
	}
	if cr, ok := ce.record("CIRCLE"); ok {
		center, axis, xdir, err := b.placementArg(cr, 1)
		if err != nil {
			return nil, err
		}
		radius, err := numberArg(cr, 2)
		if err != nil {
			return nil, err
		}
		x, _ := orthoFrame(axis, xdir)
		arc := arcEdge{center: center, axis: axis.Normalize(), xdir: x, radius: radius}
		ccw := sameSense == orientation
		arc.start = arc.angleOf(start)
		if closed {
			arc.sweep = 2 * math.Pi
		} else {
			arc.sweep = math.Mod(arc.angleOf(end)-arc.start+4*math.Pi, 2*math.Pi)
			if arc.sweep < 1e-12 {
				arc.sweep = 2 * math.Pi
			}
		}
		if !ccw {
			arc.sweep -= 2 * math.Pi
			if closed {
				arc.sweep = -2 * math.Pi
			}
		}
		return arc, nil
	}
	// Lines and every curve without a native representation become the
	// chord between their vertices.
	return lineEdge{start, end}, nil
}

// basisCurve unwraps SURFACE_CURVE and SEAM_CURVE to their 3D curve.
func (b *stepBuilder) basisCurve(ce *stepEntity) (*stepEntity, error) {
	for depth := 0; depth < 4; depth++ {
		r, ok := ce.record("SURFACE_CURVE")
		if !ok {
			r, ok = ce.record("SEAM_CURVE")
		}
		if !ok || len(r.args) < 2 {
			return ce, nil
		}
		next, err := b.file.get(r.args[1])
		if err != nil {
			return nil, err
		}
		ce = next
	}
	return ce, nil
}

// angleOf returns the angle of p about the arc's axis, measured from xdir.
func (e arcEdge) angleOf(p v3.Vec) float64 {
	d := p.Sub(e.center)
	ydir := e.axis.Cross(e.xdir)
	return math.Atan2(d.Dot(ydir), d.Dot(e.xdir))
}

func (b *stepBuilder) vertex(ref any) (v3.Vec, error) {
	ve, err := b.file.get(ref)
	if err != nil {
		return v3.Vec{}, err
	}
	r, ok := ve.record("VERTEX_POINT")
	if !ok || len(r.args) < 2 {
		return v3.Vec{}, fmt.Errorf("#%d: expected VERTEX_POINT", ve.id)
	}
	return b.point(r.args[1])
}

func (b *stepBuilder) point(ref any) (v3.Vec, error) {
	pe, err := b.file.get(ref)
	if err != nil {
		return v3.Vec{}, err
	}
	if p, ok := b.points[pe.id]; ok {
		return p, nil
	}
	r, ok := pe.record("CARTESIAN_POINT")
	if !ok {
		return v3.Vec{}, fmt.Errorf("#%d: expected CARTESIAN_POINT", pe.id)
	}
	p, err := tripleArg(r, 1)
	if err != nil {
		return v3.Vec{}, fmt.Errorf("#%d: %w", pe.id, err)
	}
	b.points[pe.id] = p
	return p, nil
}

func (b *stepBuilder) direction(ref any) (v3.Vec, error) {
	de, err := b.file.get(ref)
	if err != nil {
		return v3.Vec{}, err
	}
	if r, ok := de.record("DIRECTION"); ok {
		d, err := tripleArg(r, 1)
		if err != nil {
			return v3.Vec{}, fmt.Errorf("#%d: %w", de.id, err)
		}
		if d.Length() == 0 {
			return v3.Vec{}, fmt.Errorf("#%d: zero direction", de.id)
		}
		return d.Normalize(), nil
	}
	if r, ok := de.record("VECTOR"); ok && len(r.args) > 1 {
		return b.direction(r.args[1])
	}
	return v3.Vec{}, fmt.Errorf("#%d: expected DIRECTION", de.id)
}

// placementArg reads an AXIS2_PLACEMENT_3D argument as origin, axis and
// reference direction, defaulting to the global Z and X axes.
func (b *stepBuilder) placementArg(r stepRecord, i int) (origin, axis, xdir v3.Vec, err error) {
	if i >= len(r.args) {
		return origin, axis, xdir, fmt.Errorf("%s: missing placement", r.name)
	}
	pe, err := b.file.get(r.args[i])
	if err != nil {
		return origin, axis, xdir, err
	}
	pr, ok := pe.record("AXIS2_PLACEMENT_3D")
	if !ok || len(pr.args) < 2 {
		return origin, axis, xdir, fmt.Errorf("#%d: expected AXIS2_PLACEMENT_3D", pe.id)
	}
	if origin, err = b.point(pr.args[1]); err != nil {
		return origin, axis, xdir, err
	}
	axis, xdir = v3.Vec{Z: 1}, v3.Vec{X: 1}
	if len(pr.args) > 2 && pr.args[2] != nil {
		if axis, err = b.direction(pr.args[2]); err != nil {
			return origin, axis, xdir, err
		}
	}
	if len(pr.args) > 3 && pr.args[3] != nil {
		if xdir, err = b.direction(pr.args[3]); err != nil {
			return origin, axis, xdir, err
		}
	}
	return origin, axis, xdir, nil
}

func listArg(r stepRecord, i int) ([]any, error) {
	if i >= len(r.args) {
		return nil, fmt.Errorf("%s: missing argument %d", r.name, i)
	}
	l, ok := r.args[i].([]any)
	if !ok {
		return nil, fmt.Errorf("%s: argument %d is not a list", r.name, i)
	}
	return l, nil
}

func numberArg(r stepRecord, i int) (float64, error) {
	if i >= len(r.args) {
		return 0, fmt.Errorf("%s: missing argument %d", r.name, i)
	}
	switch v := r.args[i].(type) {
	case float64:
		return v, nil
	case stepTyped:
		if len(v.args) == 1 {
			if n, ok := v.args[0].(float64); ok {
				return n, nil
			}
		}
	}
	return 0, fmt.Errorf("%s: argument %d is not a number", r.name, i)
}

func tripleArg(r stepRecord, i int) (v3.Vec, error) {
	l, err := listArg(r, i)
	if err != nil {
		return v3.Vec{}, err
	}
	var c [3]float64
	for j := 0; j < len(l) && j < 3; j++ {
		n, ok := l[j].(float64)
		if !ok {
			return v3.Vec{}, fmt.Errorf("%s: coordinate %d is not a number", r.name, j)
		}
		c[j] = n
	}
	return v3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

// largestLoop returns the index of the loop enclosing the largest area in
// the face's plane.
func largestLoop(f *face) int {
	best, bestArea := 0, -1.0
	for i, l := range f.loops {
		ring := l.polyline(sampleLinear, sampleAngular)
		pts := make([]pt2, len(ring))
		idx := make([]int, len(ring))
		for j, p := range ring {
			d := p.Sub(f.plane.origin)
			pts[j] = pt2{d.Dot(f.plane.xdir), d.Dot(f.plane.ydir)}
			idx[j] = j
		}
		if a := math.Abs(ringArea(idx, pts)); a > bestArea {
			best, bestArea = i, a
		}
	}
	return best
}

// Deflections used when the builder samples boundaries to size a face.
const (
	sampleLinear  = 0.1
	sampleAngular = 0.5
)

// cylinderWindow sets the face's (u, v) window from its boundary: v spans
// the boundary's extent along the axis, u is the full turn when a
// boundary circle is closed and otherwise the complement of the largest
// angular gap between boundary samples.
func cylinderWindow(f *face) {
	c := &f.cyl
	ydir := c.axis.Cross(c.xdir)
	var us []float64
	c.vMin, c.vMax = math.Inf(1), math.Inf(-1)
	full := false
	for _, l := range f.loops {
		for _, e := range l {
			if a, ok := e.(arcEdge); ok && a.full() {
				full = true
			}
			for _, p := range e.points(sampleLinear, sampleAngular) {
				d := p.Sub(c.origin)
				v := d.Dot(c.axis)
				c.vMin, c.vMax = math.Min(c.vMin, v), math.Max(c.vMax, v)
				us = append(us, math.Atan2(d.Dot(ydir), d.Dot(c.xdir)))
			}
		}
	}
	if full || len(us) < 2 {
		c.uMin, c.uMax = 0, 2*math.Pi
		return
	}
	sort.Float64s(us)
	gap, at := us[0]+2*math.Pi-us[len(us)-1], len(us)-1
	for i := 0; i+1 < len(us); i++ {
		if g := us[i+1] - us[i]; g > gap {
			gap, at = g, i
		}
	}
	if at == len(us)-1 {
		c.uMin, c.uMax = us[0], us[len(us)-1]
		return
	}
	c.uMin, c.uMax = us[at+1], us[at]+2*math.Pi
}
