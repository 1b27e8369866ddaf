package slicing

import (
	"math"

	"github.com/soypat/csg/mesh"
	"github.com/soypat/csg/polygon"
	"gonum.org/v1/gonum/spatial/r3"
)

// SnapFunc maps a point lifted from fixed-point coordinates onto the
// plane on back to the operand feature it approximates.
type SnapFunc func(p r3.Vec, on mesh.Plane) r3.Vec

// snapRadius bounds how far a lifted point may be from its feature:
// rounding to the fixed-point grid plus clipper intersection rounding.
const snapRadius = 3 * polygon.Resolution

// snapper moves lifted points onto exact operand features: a vertex, or
// the crossing of an operand edge with the plane of a nearby face. Both
// sides of a seam compute the crossing from the same edge and plane, so
// they land on the same point.
type snapper struct {
	meshes []*mesh.Mesh
	bihs   []*mesh.BIH
	// onPlane is how far a candidate may be from the emitting plane.
	onPlane float64
}

func newSnapper(meshes []*mesh.Mesh, bihs []*mesh.BIH, tol Tolerances) *snapper {
	return &snapper{
		meshes:  meshes,
		bihs:    bihs,
		onPlane: 10*(tol.PlaneDistance+tol.PlaneNormal) + 1e-9,
	}
}

type nearFace struct {
	mesh, face int
}

type meshEdge struct {
	mesh, a, b int
}

func (s *snapper) snap(p r3.Vec, on mesh.Plane) r3.Vec {
	var near []nearFace
	for k, bih := range s.bihs {
		bih.Within(p, snapRadius, func(fi int) bool {
			near = append(near, nearFace{mesh: k, face: fi})
			return true
		})
	}
	if len(near) == 0 {
		return p
	}
	// the normal tolerance is relative, planes far from the origin need
	// more slack.
	onTol := s.onPlane * math.Max(1, r3.Norm(p))
	best, bestD := p, math.Inf(1)
	consider := func(x r3.Vec) {
		if math.Abs(on.SignedDistance(x)) > onTol {
			return
		}
		if d := r3.Norm2(r3.Sub(x, p)); d < bestD {
			best, bestD = x, d
		}
	}

	for _, nf := range near {
		m := s.meshes[nf.mesh]
		for _, vi := range m.Faces[nf.face].V {
			consider(m.Vertices[vi])
		}
	}
	if bestD <= polygon.Resolution*polygon.Resolution {
		return best
	}

	planes := make([]mesh.Plane, 0, len(near))
	for _, nf := range near {
		if q, ok := s.meshes[nf.mesh].Plane(nf.face); ok {
			planes = append(planes, q)
		}
	}
	seen := make(map[meshEdge]bool, 3*len(near))
	for _, nf := range near {
		m := s.meshes[nf.mesh]
		v := m.Faces[nf.face].V
		for j := 0; j < 3; j++ {
			e := meshEdge{mesh: nf.mesh, a: v[j], b: v[(j+1)%3]}
			if e.a > e.b {
				e.a, e.b = e.b, e.a
			}
			if seen[e] {
				continue
			}
			seen[e] = true
			a, b := m.Vertices[e.a], m.Vertices[e.b]
			for _, q := range planes {
				if x, ok := crossing(a, b, q); ok {
					consider(x)
				}
			}
		}
	}
	if bestD <= snapRadius*snapRadius {
		return best
	}
	return p
}

// crossing returns the point where segment ab crosses q. Segments
// parallel to q have no crossing.
func crossing(a, b r3.Vec, q mesh.Plane) (r3.Vec, bool) {
	const eps = 1e-9
	d := r3.Sub(b, a)
	den := r3.Dot(q.Normal, d)
	if math.Abs(den) <= eps*r3.Norm(d) {
		return r3.Vec{}, false
	}
	t := -q.SignedDistance(a) / den
	if t < -eps || t > 1+eps {
		return r3.Vec{}, false
	}
	return r3.Add(a, r3.Scale(t, d)), true
}
