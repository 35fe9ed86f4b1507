// Package scene owns the shapes the server has created or imported. It
// builds shapes through a kernel, centers them, stores them in a
// registry and assembles their meshes; transforms mutate a registered
// shape in place and return its new mesh.
package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/metrics"
	"github.com/chazu/facet/pkg/tessellate"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"
)

// Translation is an offset in model units.
type Translation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// IsZero reports whether the translation moves nothing.
func (t Translation) IsZero() bool {
	return t.X == 0 && t.Y == 0 && t.Z == 0
}

// Rotation is a rotation by Angle degrees about an axis through the
// origin.
type Rotation struct {
	Axis  [3]float64 `json:"axis"`
	Angle float64    `json:"angle"`
}

// Service implements the shape operations.
type Service struct {
	kernel   kernel.Kernel
	registry *Registry
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewService returns a Service over k with an empty registry. A nil
// logger discards output; nil metrics get a private registry.
func NewService(k kernel.Kernel, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Service{
		kernel:   k,
		registry: NewRegistry(),
		logger:   logger,
		metrics:  m,
	}
}

// Registry returns the service's shape registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// CreateBox builds a width x height x depth box, centers it, registers
// it and returns its mesh.
func (s *Service) CreateBox(width, height, depth float64) (*tessellate.Mesh, error) {
	if err := checkDimensions(map[string]float64{"width": width, "height": height, "depth": depth}); err != nil {
		return nil, err
	}
	shape, err := s.kernel.Box(width, height, depth)
	if err != nil {
		return nil, s.wrapBuild("box", err)
	}
	s.logger.Info("created box",
		zap.Float64("width", width), zap.Float64("height", height), zap.Float64("depth", depth))
	return s.store(shape)
}

// CreateCylinder builds a cylinder, centers it, registers it and
// returns its mesh.
func (s *Service) CreateCylinder(radius, height float64) (*tessellate.Mesh, error) {
	if err := checkDimensions(map[string]float64{"radius": radius, "height": height}); err != nil {
		return nil, err
	}
	shape, err := s.kernel.Cylinder(radius, height)
	if err != nil {
		return nil, s.wrapBuild("cylinder", err)
	}
	s.logger.Info("created cylinder", zap.Float64("radius", radius), zap.Float64("height", height))
	return s.store(shape)
}

// Import reads the exchange file at path. The format comes from ext and
// is checked before the kernel is involved.
func (s *Service) Import(path, ext string) (*tessellate.Mesh, error) {
	format := kernel.FormatForExtension(ext)
	if format == kernel.FormatUnknown {
		return nil, fmt.Errorf("scene: %w: %q", ErrUnsupportedFormat, ext)
	}
	shape, err := s.kernel.Import(path, format)
	if err != nil {
		return nil, fmt.Errorf("scene: import %s: %w", format, err)
	}
	s.logger.Info("imported file", zap.String("format", format.String()), zap.Int("faces", shape.FaceCount()))
	return s.store(shape)
}

// Transform applies t and then r to the shape registered as id, each
// composed with the shape's current placement, and returns the new mesh.
// A nil or zero translation and a nil or zero-angle rotation are skipped.
func (s *Service) Transform(id string, t *Translation, r *Rotation) (*tessellate.Mesh, error) {
	var moves []sdf.M44
	if t != nil && !t.IsZero() {
		if !finite(t.X, t.Y, t.Z) {
			return nil, fmt.Errorf("scene: %w: %+v", ErrInvalidTranslation, *t)
		}
		moves = append(moves, sdf.Translate3d(v3.Vec{X: t.X, Y: t.Y, Z: t.Z}))
	}
	if r != nil && r.Angle != 0 {
		axis := v3.Vec{X: r.Axis[0], Y: r.Axis[1], Z: r.Axis[2]}
		if !finite(axis.X, axis.Y, axis.Z, r.Angle) || axis.Length() == 0 {
			return nil, fmt.Errorf("scene: %w: axis %v angle %g", ErrInvalidRotation, r.Axis, r.Angle)
		}
		moves = append(moves, sdf.Rotate3d(axis.Normalize(), sdf.DtoR(r.Angle)))
	}

	var mesh *tessellate.Mesh
	err := s.registry.Update(id, func(shape kernel.Shape) error {
		for _, m := range moves {
			s.kernel.Move(shape, m)
		}
		var err error
		mesh, err = s.assemble(shape, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("scene: transform %s: %w", id, err)
	}
	s.logger.Info("transform applied", zap.String("id", id), zap.Int("moves", len(moves)))
	return mesh, nil
}

// Mesh assembles the current mesh of the shape registered as id.
func (s *Service) Mesh(id string) (*tessellate.Mesh, error) {
	var mesh *tessellate.Mesh
	err := s.registry.View(id, func(shape kernel.Shape) error {
		var err error
		mesh, err = s.assemble(shape, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("scene: mesh %s: %w", id, err)
	}
	return mesh, nil
}

// BoundingBox returns the world-space bounding box of the shape
// registered as id. ok is false for a void box.
func (s *Service) BoundingBox(id string) (box sdf.Box3, ok bool, err error) {
	err = s.registry.View(id, func(shape kernel.Shape) error {
		box, ok = s.kernel.BoundingBox(shape)
		return nil
	})
	if err != nil {
		return sdf.Box3{}, false, fmt.Errorf("scene: bounds %s: %w", id, err)
	}
	return box, ok, nil
}

// store centers a new shape, registers it and assembles its mesh. The
// shape stays registered even when assembly fails.
func (s *Service) store(shape kernel.Shape) (*tessellate.Mesh, error) {
	if offset, moved := Center(s.kernel, shape); moved {
		s.logger.Debug("shape centered",
			zap.Float64("dx", offset.X), zap.Float64("dy", offset.Y), zap.Float64("dz", offset.Z))
	}
	id := s.registry.Insert(shape)
	s.metrics.SetShapes(s.registry.Len())
	s.logger.Info("stored shape", zap.String("id", id))

	var mesh *tessellate.Mesh
	err := s.registry.View(id, func(shape kernel.Shape) error {
		var err error
		mesh, err = s.assemble(shape, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	return mesh, nil
}

func (s *Service) assemble(shape kernel.Shape, id string) (*tessellate.Mesh, error) {
	timer := metrics.NewTimer()
	mesh, err := tessellate.Assemble(s.kernel, shape, id)
	if err != nil {
		s.logger.Error("tessellation failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	s.metrics.RecordMesh(mesh.TriangleCount, timer.Duration())
	s.logger.Info("tessellation complete",
		zap.String("id", id),
		zap.Int("vertices", mesh.VertexCount),
		zap.Int("triangles", mesh.TriangleCount),
		zap.Int("faces", mesh.FaceCount))
	return mesh, nil
}

func (s *Service) wrapBuild(what string, err error) error {
	var dimErr *kernel.InvalidDimensionError
	if errors.As(err, &dimErr) {
		return fmt.Errorf("scene: %s: %w: %v", what, ErrInvalidDimensions, err)
	}
	return fmt.Errorf("scene: %s: %w", what, err)
}

func checkDimensions(dims map[string]float64) error {
	for _, name := range []string{"width", "height", "depth", "radius"} {
		v, ok := dims[name]
		if !ok {
			continue
		}
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("scene: %w: %s must be a positive number, got %g", ErrInvalidDimensions, name, v)
		}
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
