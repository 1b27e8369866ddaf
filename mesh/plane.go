package mesh

import (
	"math"

	"github.com/soypat/csg/internal/d3"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Plane is the set of points p for which Dot(Normal, p) == D.
// Normal is expected to have unit length.
type Plane struct {
	Normal r3.Vec
	D      float64
}

// PlaneFromTriangle returns the plane through a, b and c with the normal
// given by the counter-clockwise winding. Degenerate triangles return ok=false.
func PlaneFromTriangle(a, b, c r3.Vec) (p Plane, ok bool) {
	n := d3.TriangleNormal(a, b, c)
	if n == (r3.Vec{}) {
		return Plane{}, false
	}
	return Plane{Normal: n, D: r3.Dot(n, a)}, true
}

// SignedDistance returns the distance from v to the plane, positive on
// the side the normal points to.
func (p Plane) SignedDistance(v r3.Vec) float64 {
	return r3.Dot(p.Normal, v) - p.D
}

// Flip returns the same plane with opposite orientation.
func (p Plane) Flip() Plane {
	return Plane{Normal: r3.Scale(-1, p.Normal), D: -p.D}
}

const canonicalTol = 1e-9

// Canonical returns the plane oriented so its first significant normal
// component is positive, and the sign (+1 or -1) relating p to the result.
func (p Plane) Canonical() (Plane, float64) {
	n := p.Normal
	for _, c := range [3]float64{n.X, n.Y, n.Z} {
		if c > canonicalTol {
			return p, 1
		}
		if c < -canonicalTol {
			return p.Flip(), -1
		}
	}
	return p, 1
}

// Equal reports whether p and q describe the same oriented plane within
// distTol along the normal and normalTol between the normals.
func (p Plane) Equal(q Plane, distTol, normalTol float64) bool {
	return d3.EqualWithin(p.Normal, q.Normal, normalTol) && math.Abs(p.D-q.D) <= distTol
}

// Frame is an orthonormal coordinate system attached to a plane. U, V and
// N satisfy Cross(U, V) == N, so counter-clockwise loops in the UV plane
// face towards N. The transforms to and from plane coordinates are built
// once by Plane.Frame.
type Frame struct {
	U, V, N r3.Vec
	Origin  r3.Vec

	to, from d3.Transform
}

// Frame returns the frame of the plane. The basis is built from the
// coordinate axis least aligned with the normal, which makes it exact
// for axis aligned planes.
func (p Plane) Frame() Frame {
	n := p.Normal
	a := d3.AbsElem(n)
	var helper r3.Vec
	switch {
	case a.X <= a.Y && a.X <= a.Z:
		helper = r3.Vec{X: 1}
	case a.Y <= a.Z:
		helper = r3.Vec{Y: 1}
	default:
		helper = r3.Vec{Z: 1}
	}
	u := r3.Unit(r3.Cross(helper, n))
	v := r3.Cross(n, u)
	o := r3.Scale(p.D, n)
	return Frame{
		U: u, V: v, N: n, Origin: o,
		to: d3.NewTransform([]float64{
			u.X, u.Y, u.Z, -r3.Dot(u, o),
			v.X, v.Y, v.Z, -r3.Dot(v, o),
			n.X, n.Y, n.Z, -r3.Dot(n, o),
			0, 0, 0, 1,
		}),
		from: d3.NewTransform([]float64{
			u.X, v.X, n.X, o.X,
			u.Y, v.Y, n.Y, o.Y,
			u.Z, v.Z, n.Z, o.Z,
			0, 0, 0, 1,
		}),
	}
}

// ToPlane returns the transform taking world coordinates to frame
// coordinates. Points on the plane map to Z == 0.
func (f Frame) ToPlane() d3.Transform { return f.to }

// FromPlane is the inverse of ToPlane.
func (f Frame) FromPlane() d3.Transform { return f.from }

// Project returns the in-plane coordinates of v.
func (f Frame) Project(v r3.Vec) r2.Vec {
	local := f.to.Transform(v)
	return r2.Vec{X: local.X, Y: local.Y}
}

// Lift returns the world position of in-plane coordinates p.
func (f Frame) Lift(p r2.Vec) r3.Vec {
	return f.from.Transform(r3.Vec{X: p.X, Y: p.Y})
}
