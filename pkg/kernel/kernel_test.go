package kernel

import (
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// --- Triangulation helper method tests ---

func TestTriangulationNodeCount(t *testing.T) {
	tests := []struct {
		name  string
		nodes []v3.Vec
		want  int
	}{
		{"empty", nil, 0},
		{"one node", []v3.Vec{{X: 1, Y: 2, Z: 3}}, 1},
		{"four nodes", []v3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tri := &Triangulation{Nodes: tt.nodes}
			if got := tri.NodeCount(); got != tt.want {
				t.Errorf("NodeCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTriangulationTriangleCount(t *testing.T) {
	tests := []struct {
		name      string
		triangles [][3]int
		want      int
	}{
		{"empty", nil, 0},
		{"one triangle", [][3]int{{0, 1, 2}}, 1},
		{"two triangles", [][3]int{{0, 1, 2}, {2, 3, 0}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tri := &Triangulation{Triangles: tt.triangles}
			if got := tri.TriangleCount(); got != tt.want {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTriangulationIsEmpty(t *testing.T) {
	t.Run("nil triangulation", func(t *testing.T) {
		var tri *Triangulation
		if !tri.IsEmpty() {
			t.Error("IsEmpty() = false for nil triangulation, want true")
		}
	})
	t.Run("nodes only", func(t *testing.T) {
		tri := &Triangulation{Nodes: []v3.Vec{{X: 1}}}
		if !tri.IsEmpty() {
			t.Error("IsEmpty() = false without triangles, want true")
		}
	})
	t.Run("non-empty", func(t *testing.T) {
		tri := &Triangulation{Nodes: []v3.Vec{{}, {X: 1}, {Y: 1}}, Triangles: [][3]int{{0, 1, 2}}}
		if tri.IsEmpty() {
			t.Error("IsEmpty() = true for non-empty triangulation, want false")
		}
	})
}

func TestFormatForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want Format
	}{
		{".step", FormatSTEP},
		{".STP", FormatSTEP},
		{"stp", FormatSTEP},
		{".iges", FormatIGES},
		{".IGS", FormatIGES},
		{".stl", FormatUnknown},
		{"", FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := FormatForExtension(tt.ext); got != tt.want {
				t.Errorf("FormatForExtension(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestSurfaceTypeString(t *testing.T) {
	if SurfaceCylinder.String() != "cylinder" {
		t.Errorf("SurfaceCylinder.String() = %q", SurfaceCylinder.String())
	}
	if SurfaceType(99).String() != "other" {
		t.Errorf("unknown surface type should print as other, got %q", SurfaceType(99).String())
	}
}

// --- Compile-time interface check with a stub kernel ---

type stubShape struct{ faces int }

func (s *stubShape) FaceCount() int { return s.faces }

type stubAdaptor struct{}

func (stubAdaptor) Type() SurfaceType         { return SurfacePlane }
func (stubAdaptor) Cylinder() CylinderSurface { return CylinderSurface{} }

// stubKernel is a minimal Kernel implementation that proves the interface
// is satisfiable. All methods return trivial results.
type stubKernel struct{}

func (k *stubKernel) Box(_, _, _ float64) (Shape, error)     { return &stubShape{faces: 6}, nil }
func (k *stubKernel) Cylinder(_, _ float64) (Shape, error)   { return &stubShape{faces: 3}, nil }
func (k *stubKernel) Import(_ string, _ Format) (Shape, error) { return nil, ErrUnreadable }
func (k *stubKernel) BoundingBox(_ Shape) (sdf.Box3, bool)   { return sdf.Box3{}, false }
func (k *stubKernel) Tessellate(_ Shape, _, _ float64) error { return nil }
func (k *stubKernel) Faces(_ Shape) []Face                   { return nil }
func (k *stubKernel) Triangulation(_ Face) (*Triangulation, sdf.M44, bool) {
	return nil, sdf.Identity3d(), false
}
func (k *stubKernel) Surface(_ Face) SurfaceAdaptor { return stubAdaptor{} }
func (k *stubKernel) Move(_ Shape, _ sdf.M44)       {}

var _ Shape = (*stubShape)(nil)
var _ Kernel = (*stubKernel)(nil)

func TestStubKernelBox(t *testing.T) {
	var k Kernel = &stubKernel{}
	s, err := k.Box(10, 20, 30)
	if err != nil {
		t.Fatalf("Box() error = %v", err)
	}
	if s.FaceCount() != 6 {
		t.Errorf("FaceCount() = %d, want 6", s.FaceCount())
	}
	if _, ok := k.BoundingBox(s); ok {
		t.Error("stub BoundingBox() should report a void box")
	}
}

func TestInvalidDimensionError(t *testing.T) {
	err := &InvalidDimensionError{Name: "radius", Value: -1}
	if got := err.Error(); got != "radius must be positive, got -1" {
		t.Errorf("Error() = %q", got)
	}
}
