// Package implicit converts meshes to implicit functions, combines them
// and extracts surfaces back with marching cubes or dual contouring.
package implicit

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/soypat/csg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sign selects how a mesh field decides inside from outside.
type Sign int

const (
	// SignAuto uses pseudo normals for closed meshes and the winding
	// number otherwise.
	SignAuto Sign = iota
	// SignPseudoNormal takes the sign from the angle weighted pseudo normal
	// of the closest feature. Exact for closed, consistently wound meshes.
	SignPseudoNormal
	// SignWinding takes the sign from the generalized winding number,
	// which tolerates holes and non-manifold input at O(n) per query.
	SignWinding
)

func (s Sign) String() string {
	switch s {
	case SignPseudoNormal:
		return "pseudonormal"
	case SignWinding:
		return "winding"
	}
	return "auto"
}

// Field is the signed distance to a mesh, negative inside.
type Field struct {
	bih     *mesh.BIH
	winding bool
	box     sdf.Box3
}

var _ sdf.SDF3 = (*Field)(nil)

// FromMesh returns the signed distance field of m. m must not be modified
// while the field is in use.
func FromMesh(m *mesh.Mesh, sign Sign) *Field {
	if sign == SignAuto {
		sign = SignPseudoNormal
		if !m.IsClosed() {
			sign = SignWinding
		}
	}
	bb := m.Bounds()
	margin := 0.01 * math.Max(r3.Norm(bb.Size()), 1e-6)
	bb = bb.Enlarge(r3.Vec{X: 2 * margin, Y: 2 * margin, Z: 2 * margin})
	return &Field{
		bih:     mesh.NewBIH(m),
		winding: sign == SignWinding,
		box: sdf.Box3{
			Min: v3.Vec{X: bb.Min.X, Y: bb.Min.Y, Z: bb.Min.Z},
			Max: v3.Vec{X: bb.Max.X, Y: bb.Max.Y, Z: bb.Max.Z},
		},
	}
}

// Evaluate returns the signed distance from p to the mesh.
func (f *Field) Evaluate(p v3.Vec) float64 {
	q := r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
	if !f.winding {
		return f.bih.SignedDistance(q)
	}
	near := f.bih.Nearest(q)
	if near.Face < 0 {
		return math.MaxFloat64
	}
	d := math.Sqrt(near.Dist2)
	if WindingNumber(f.bih.Mesh(), q) > 0.5 {
		return -d
	}
	return d
}

// BoundingBox returns the mesh bounds with a small margin.
func (f *Field) BoundingBox() sdf.Box3 { return f.box }

// WindingNumber returns the generalized winding number of m around p:
// close to 1 inside a closed outward facing mesh and 0 outside.
func WindingNumber(m *mesh.Mesh, p r3.Vec) float64 {
	var w float64
	for _, f := range m.Faces {
		a := r3.Sub(m.Vertices[f.V[0]], p)
		b := r3.Sub(m.Vertices[f.V[1]], p)
		c := r3.Sub(m.Vertices[f.V[2]], p)
		la, lb, lc := r3.Norm(a), r3.Norm(b), r3.Norm(c)
		num := r3.Dot(a, r3.Cross(b, c))
		den := la*lb*lc + r3.Dot(a, b)*lc + r3.Dot(b, c)*la + r3.Dot(c, a)*lb
		w += 2 * math.Atan2(num, den)
	}
	return w / (4 * math.Pi)
}
