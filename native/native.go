// Package native runs mesh booleans through the Manifold library when
// the binary is built with the manifold tag.
//
// Build with: go build -tags=manifold
package native

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/csg/mesh"
)

// ErrUnavailable is returned by Boolean when the native library is not linked.
var ErrUnavailable = errors.New("native boolean not available: build with -tags=manifold")

// flatten lays m out as float32 positions and uint32 indices.
func flatten(m *mesh.Mesh) (verts []float32, tris []uint32, err error) {
	if len(m.Faces) == 0 {
		return nil, nil, mesh.ErrEmpty
	}
	if uint64(len(m.Vertices)) > math.MaxUint32 {
		return nil, nil, fmt.Errorf("native: %d vertices overflow uint32 indices", len(m.Vertices))
	}
	verts = make([]float32, 0, 3*len(m.Vertices))
	for _, v := range m.Vertices {
		verts = append(verts, float32(v.X), float32(v.Y), float32(v.Z))
	}
	tris = make([]uint32, 0, 3*len(m.Faces))
	for _, f := range m.Faces {
		tris = append(tris, uint32(f.V[0]), uint32(f.V[1]), uint32(f.V[2]))
	}
	return verts, tris, nil
}
