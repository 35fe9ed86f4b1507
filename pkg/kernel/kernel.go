// Package kernel defines the abstract boundary-representation kernel
// interface. Implementations import and construct solids, place them,
// and produce per-face triangulations and analytic surface descriptions.
// The rest of the system (mesh assembly, the shape registry) depends only
// on this interface, so a kernel can be swapped without touching them.
package kernel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deadsy/sdfx/sdf"
)

var (
	// ErrUnreadable is returned by Import when the file cannot be parsed
	// into a solid.
	ErrUnreadable = errors.New("unreadable file")

	// ErrTessellation is returned when whole-shape tessellation does not
	// complete.
	ErrTessellation = errors.New("tessellation failed")
)

// Shape is an opaque handle to a kernel solid. Implementations wrap their
// internal representation; only the kernel that created a shape may
// operate on it.
type Shape interface {
	// FaceCount returns the number of topological faces.
	FaceCount() int
}

// Face is an opaque handle to one topological face of a Shape, as
// returned by Kernel.Faces.
type Face interface{}

// Format identifies an exchange file format accepted by Import.
type Format int

const (
	FormatUnknown Format = iota
	FormatSTEP
	FormatIGES
)

func (f Format) String() string {
	switch f {
	case FormatSTEP:
		return "STEP"
	case FormatIGES:
		return "IGES"
	}
	return "unknown"
}

// FormatForExtension maps a file extension (with or without the leading
// dot, any case) to a Format.
func FormatForExtension(ext string) Format {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "step", "stp":
		return FormatSTEP
	case "iges", "igs":
		return FormatIGES
	}
	return FormatUnknown
}

// Kernel is the abstract B-rep kernel interface.
type Kernel interface {
	// Primitives
	Box(width, height, depth float64) (Shape, error)
	Cylinder(radius, height float64) (Shape, error)

	// Import parses an exchange file. Bad input fails with ErrUnreadable.
	Import(path string, format Format) (Shape, error)

	// BoundingBox returns the world-space axis-aligned box enclosing the
	// shape. ok is false for a void box.
	BoundingBox(s Shape) (box sdf.Box3, ok bool)

	// Tessellate meshes every face at the given linear and angular
	// deflection. Faces already meshed at an equal or finer tolerance may
	// be skipped. A fatal failure is reported as ErrTessellation.
	Tessellate(s Shape, linear, angular float64) error

	// Faces enumerates the faces of s in a deterministic order.
	Faces(s Shape) []Face

	// Triangulation returns the face's triangulation in face-local
	// coordinates together with the local-to-world transform. ok is false
	// when the face has no triangulation.
	Triangulation(f Face) (tri *Triangulation, loc sdf.M44, ok bool)

	// Surface returns an adaptor over the face's underlying surface.
	Surface(f Face) SurfaceAdaptor

	// Move composes m with the shape's current placement, in place.
	Move(s Shape, m sdf.M44)
}

// InvalidDimensionError reports a non-positive primitive dimension.
type InvalidDimensionError struct {
	Name  string
	Value float64
}

func (e *InvalidDimensionError) Error() string {
	return fmt.Sprintf("%s must be positive, got %g", e.Name, e.Value)
}
