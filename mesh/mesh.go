// Package mesh implements indexed triangle meshes and the geometric
// queries the boolean engines need: planes, plane frames, a bounding
// interval hierarchy, welding and STL input/output.
package mesh

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/soypat/csg/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmpty is returned by operations that need at least one face.
var ErrEmpty = errors.New("mesh has no faces")

// Face is a triangle indexing into the vertex list of a Mesh.
// Vertices are counter-clockwise when seen from the side Normal points to.
type Face struct {
	V      [3]int
	Normal r3.Vec
}

// Mesh is an indexed triangle mesh. A closed mesh with outward facing
// normals describes a solid.
type Mesh struct {
	Vertices []r3.Vec
	Faces    []Face
}

// New creates a mesh from vertices and index triples, computing face normals.
func New(vertices []r3.Vec, faces [][3]int) *Mesh {
	m := &Mesh{
		Vertices: append([]r3.Vec(nil), vertices...),
		Faces:    make([]Face, 0, len(faces)),
	}
	for _, f := range faces {
		m.AddFace(f[0], f[1], f[2])
	}
	return m
}

// FromTriangles creates a mesh from unindexed triangles. Vertices closer
// than tol are merged.
func FromTriangles(tris []r3.Triangle, tol float64) *Mesh {
	m := &Mesh{
		Vertices: make([]r3.Vec, 0, 3*len(tris)),
		Faces:    make([]Face, 0, len(tris)),
	}
	for _, t := range tris {
		a := m.AddVertex(t[0])
		b := m.AddVertex(t[1])
		c := m.AddVertex(t[2])
		m.AddFace(a, b, c)
	}
	m.Clean(tol)
	return m
}

// AddVertex appends v and returns its index.
func (m *Mesh) AddVertex(v r3.Vec) int {
	m.Vertices = append(m.Vertices, v)
	return len(m.Vertices) - 1
}

// AddFace appends the triangle (a,b,c) and returns the face index.
func (m *Mesh) AddFace(a, b, c int) int {
	m.Faces = append(m.Faces, Face{
		V:      [3]int{a, b, c},
		Normal: d3.TriangleNormal(m.Vertices[a], m.Vertices[b], m.Vertices[c]),
	})
	return len(m.Faces) - 1
}

// Triangle returns the vertex positions of face i.
func (m *Mesh) Triangle(i int) r3.Triangle {
	f := m.Faces[i].V
	return r3.Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
}

// Triangles returns the vertex positions of all faces.
func (m *Mesh) Triangles() []r3.Triangle {
	tris := make([]r3.Triangle, len(m.Faces))
	for i := range m.Faces {
		tris[i] = m.Triangle(i)
	}
	return tris
}

// Plane returns the plane face i lies on. Degenerate faces return ok=false.
func (m *Mesh) Plane(i int) (p Plane, ok bool) {
	f := m.Faces[i]
	if f.Normal == (r3.Vec{}) {
		return Plane{}, false
	}
	return Plane{Normal: f.Normal, D: r3.Dot(f.Normal, m.Vertices[f.V[0]])}, true
}

// Copy returns a deep copy of m.
func (m *Mesh) Copy() *Mesh {
	return &Mesh{
		Vertices: append([]r3.Vec(nil), m.Vertices...),
		Faces:    append([]Face(nil), m.Faces...),
	}
}

// Placed returns a copy of m in world coordinates given by t. The zero
// matrix is taken as the identity.
func (m *Mesh) Placed(t mgl64.Mat4) *Mesh {
	c := m.Copy()
	if t != (mgl64.Mat4{}) && t != mgl64.Ident4() {
		c.Transform(d3.FromMat4(t))
	}
	return c
}

// Transform applies t to every vertex. Transforms with negative
// determinant mirror the mesh, so faces are reversed to keep normals outward.
func (m *Mesh) Transform(t d3.Transform) {
	if t == (d3.Transform{}) {
		return
	}
	for i := range m.Vertices {
		m.Vertices[i] = t.Transform(m.Vertices[i])
	}
	if t.Det() < 0 {
		for i := range m.Faces {
			m.Faces[i].V[1], m.Faces[i].V[2] = m.Faces[i].V[2], m.Faces[i].V[1]
		}
	}
	m.RecomputeNormals()
}

// Flip reverses the orientation of every face.
func (m *Mesh) Flip() {
	for i := range m.Faces {
		f := &m.Faces[i]
		f.V[1], f.V[2] = f.V[2], f.V[1]
		f.Normal = r3.Scale(-1, f.Normal)
	}
}

// RecomputeNormals recalculates every face normal from its vertices.
func (m *Mesh) RecomputeNormals() {
	for i := range m.Faces {
		f := &m.Faces[i]
		f.Normal = d3.TriangleNormal(m.Vertices[f.V[0]], m.Vertices[f.V[1]], m.Vertices[f.V[2]])
	}
}

// Bounds returns the bounding box of the referenced vertices.
func (m *Mesh) Bounds() d3.Box {
	bb := d3.EmptyBox()
	for _, f := range m.Faces {
		for _, vi := range f.V {
			bb = bb.Include(m.Vertices[vi])
		}
	}
	return bb
}

// Volume returns the signed volume enclosed by the mesh. Closed meshes
// with outward normals have positive volume.
func (m *Mesh) Volume() float64 {
	var vol float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f.V[0]], m.Vertices[f.V[1]], m.Vertices[f.V[2]]
		vol += r3.Dot(a, r3.Cross(b, c))
	}
	return vol / 6
}

// Area returns the total surface area.
func (m *Mesh) Area() float64 {
	var area float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f.V[0]], m.Vertices[f.V[1]], m.Vertices[f.V[2]]
		area += r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))
	}
	return area / 2
}

// IsClosed reports whether every directed edge is matched by exactly
// one edge in the opposite direction.
func (m *Mesh) IsClosed() bool {
	if len(m.Faces) == 0 {
		return false
	}
	edges := m.edgeCount()
	for e, n := range edges {
		if n != 1 || edges[[2]int{e[1], e[0]}] != 1 {
			return false
		}
	}
	return true
}

// OpenEdges returns the number of directed edges with no opposite twin.
func (m *Mesh) OpenEdges() int {
	edges := m.edgeCount()
	var open int
	for e, n := range edges {
		twins := edges[[2]int{e[1], e[0]}]
		if twins < n {
			open += n - twins
		}
	}
	return open
}

func (m *Mesh) edgeCount() map[[2]int]int {
	edges := make(map[[2]int]int, 3*len(m.Faces))
	for _, f := range m.Faces {
		for j := 0; j < 3; j++ {
			edges[[2]int{f.V[j], f.V[(j+1)%3]}]++
		}
	}
	return edges
}

// RemoveFaces drops every face i for which remove[i] is true.
// Vertices are left untouched; use Clean to drop unreferenced ones.
func (m *Mesh) RemoveFaces(remove []bool) {
	kept := m.Faces[:0]
	for i, f := range m.Faces {
		if i < len(remove) && remove[i] {
			continue
		}
		kept = append(kept, f)
	}
	m.Faces = kept
}

// Append adds all faces of other to m.
func (m *Mesh) Append(other *Mesh) {
	off := len(m.Vertices)
	m.Vertices = append(m.Vertices, other.Vertices...)
	for _, f := range other.Faces {
		f.V[0] += off
		f.V[1] += off
		f.V[2] += off
		m.Faces = append(m.Faces, f)
	}
}

// Box returns a closed axis aligned box mesh of 8 vertices and 12 triangles.
func Box(center, size r3.Vec) *Mesh {
	bb := d3.NewBox(center, size)
	lo, hi := bb.Min, bb.Max
	v := []r3.Vec{
		{X: lo.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z},
		{X: lo.X, Y: hi.Y, Z: hi.Z},
	}
	return New(v, [][3]int{
		{0, 3, 2}, {0, 2, 1}, // -Z
		{4, 5, 6}, {4, 6, 7}, // +Z
		{0, 1, 5}, {0, 5, 4}, // -Y
		{3, 7, 6}, {3, 6, 2}, // +Y
		{0, 4, 7}, {0, 7, 3}, // -X
		{1, 2, 6}, {1, 6, 5}, // +X
	})
}

// Tetrahedron returns a closed regular-ish tetrahedron with outward normals.
func Tetrahedron(center r3.Vec, size float64) *Mesh {
	h := size / 2
	v := []r3.Vec{
		r3.Add(center, r3.Vec{X: h, Y: h, Z: h}),
		r3.Add(center, r3.Vec{X: h, Y: -h, Z: -h}),
		r3.Add(center, r3.Vec{X: -h, Y: h, Z: -h}),
		r3.Add(center, r3.Vec{X: -h, Y: -h, Z: h}),
	}
	return New(v, [][3]int{{0, 2, 3}, {0, 3, 1}, {0, 1, 2}, {1, 3, 2}})
}

// UVSphere returns a closed latitude/longitude sphere.
func UVSphere(center r3.Vec, radius float64, slices, stacks int) *Mesh {
	if slices < 3 {
		slices = 3
	}
	if stacks < 2 {
		stacks = 2
	}
	m := &Mesh{}
	top := m.AddVertex(r3.Add(center, r3.Vec{Z: radius}))
	for i := 1; i < stacks; i++ {
		phi := math.Pi * float64(i) / float64(stacks)
		for j := 0; j < slices; j++ {
			theta := 2 * math.Pi * float64(j) / float64(slices)
			m.AddVertex(r3.Add(center, r3.Vec{
				X: radius * math.Sin(phi) * math.Cos(theta),
				Y: radius * math.Sin(phi) * math.Sin(theta),
				Z: radius * math.Cos(phi),
			}))
		}
	}
	bottom := m.AddVertex(r3.Add(center, r3.Vec{Z: -radius}))
	ring := func(i, j int) int { return 1 + i*slices + (j % slices) }
	for j := 0; j < slices; j++ {
		m.AddFace(top, ring(0, j), ring(0, j+1))
		m.AddFace(bottom, ring(stacks-2, j+1), ring(stacks-2, j))
	}
	for i := 0; i < stacks-2; i++ {
		for j := 0; j < slices; j++ {
			a, b := ring(i, j), ring(i, j+1)
			c, d := ring(i+1, j), ring(i+1, j+1)
			m.AddFace(a, c, d)
			m.AddFace(a, d, b)
		}
	}
	return m
}

// Cylinder returns a closed prism along Z with a regular polygon of the
// given number of segments inscribed in a circle of radius.
func Cylinder(center r3.Vec, radius, height float64, segments int) *Mesh {
	if segments < 3 {
		segments = 3
	}
	h := height / 2
	m := &Mesh{}
	top := m.AddVertex(r3.Add(center, r3.Vec{Z: h}))
	bottom := m.AddVertex(r3.Add(center, r3.Vec{Z: -h}))
	for j := 0; j < segments; j++ {
		theta := 2 * math.Pi * float64(j) / float64(segments)
		x, y := radius*math.Cos(theta), radius*math.Sin(theta)
		m.AddVertex(r3.Add(center, r3.Vec{X: x, Y: y, Z: h}))
		m.AddVertex(r3.Add(center, r3.Vec{X: x, Y: y, Z: -h}))
	}
	rt := func(j int) int { return 2 + 2*(j%segments) }
	rb := func(j int) int { return 3 + 2*(j%segments) }
	for j := 0; j < segments; j++ {
		m.AddFace(top, rt(j), rt(j+1))
		m.AddFace(bottom, rb(j+1), rb(j))
		m.AddFace(rb(j), rb(j+1), rt(j+1))
		m.AddFace(rb(j), rt(j+1), rt(j))
	}
	return m
}
