package fit

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var errNormal = errors.New("normal estimation failed")

// estimateNormals returns an unoriented unit normal per point: the
// direction of least spread among its k nearest neighbours, the point
// itself included.
func estimateNormals(points []r3.Vec, k int) ([]r3.Vec, error) {
	if k > len(points) {
		k = len(points)
	}
	pts := make(kdtree.Points, len(points))
	for i, p := range points {
		pts[i] = kdtree.Point{p.X, p.Y, p.Z}
	}
	// New reorders pts; points keeps the caller's order.
	tree := kdtree.New(pts, false)

	normals := make([]r3.Vec, len(points))
	neighbours := make([]r3.Vec, 0, k)
	for i, p := range points {
		keep := kdtree.NewNKeeper(k)
		tree.NearestSet(keep, kdtree.Point{p.X, p.Y, p.Z})

		neighbours = neighbours[:0]
		var mean r3.Vec
		for _, c := range keep.Heap {
			if c.Comparable == nil {
				continue
			}
			q := c.Comparable.(kdtree.Point)
			v := r3.Vec{X: q[0], Y: q[1], Z: q[2]}
			neighbours = append(neighbours, v)
			mean = r3.Add(mean, v)
		}
		if len(neighbours) < 3 {
			return nil, errNormal
		}
		mean = r3.Scale(1/float64(len(neighbours)), mean)

		cov := mat.NewSymDense(3, nil)
		for _, v := range neighbours {
			addOuter(cov, r3.Sub(v, mean))
		}
		n, ok := leastEigenvector(cov)
		if !ok {
			return nil, errNormal
		}
		normals[i] = n
	}
	return normals, nil
}
