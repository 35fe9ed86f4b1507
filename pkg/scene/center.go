package scene

import (
	"github.com/chazu/facet/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Center moves s so that its bounding-box center sits at the origin and
// returns the offset applied. A shape with a void bounding box is left
// where it is and moved is false.
func Center(k kernel.Kernel, s kernel.Shape) (offset v3.Vec, moved bool) {
	box, ok := k.BoundingBox(s)
	if !ok {
		return v3.Vec{}, false
	}
	offset = box.Min.Add(box.Max).MulScalar(0.5).Neg()
	k.Move(s, sdf.Translate3d(offset))
	return offset, true
}
