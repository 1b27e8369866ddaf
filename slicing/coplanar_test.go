package slicing_test

import (
	"testing"

	"github.com/soypat/csg/boolean"
	"github.com/soypat/csg/internal/d3"
	"github.com/soypat/csg/mesh"
	"github.com/soypat/csg/polygon"
	"github.com/soypat/csg/slicer"
	"github.com/soypat/csg/slicing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestPlaneNormalXSorter(t *testing.T) {
	planes := []mesh.Plane{
		{Normal: r3.Vec{X: 1}, D: 2},
		{Normal: r3.Vec{Y: 1}, D: 1},
		{Normal: r3.Vec{Z: 1}, D: 1},
		{Normal: r3.Unit(r3.Vec{X: -1, Y: 1}), D: 0},
		{Normal: r3.Vec{Y: 1}, D: 1 + 1e-9},
	}
	s := slicing.NewPlaneNormalXSorter(planes)
	require.Equal(t, len(planes), s.Len())
	for i := 1; i < s.Len(); i++ {
		assert.LessOrEqual(t, s.Plane(i-1).Normal.X, s.Plane(i).Normal.X)
	}
	i, ok := s.Find(mesh.Plane{Normal: r3.Vec{X: 1e-8, Y: 1}, D: 1 + 5e-7}, 1e-6, 1e-6)
	require.True(t, ok)
	// the first near match in sorted order wins.
	assert.Equal(t, 1.0, s.Plane(i).D)
	_, ok = s.Find(mesh.Plane{Normal: r3.Vec{Y: 1}, D: 1.1}, 1e-6, 1e-6)
	assert.False(t, ok)
	i, ok = s.Find(mesh.Plane{Normal: r3.Vec{X: 1}, D: 2}, 0, 0)
	require.True(t, ok)
	assert.Equal(t, s.Len()-1, i)
}

func TestFindOrRegisterPlane(t *testing.T) {
	s := slicing.NewPlaneNormalXSorter([]mesh.Plane{{Normal: r3.Vec{Z: 1}, D: 0.5}})
	c := slicing.NewCoPlanarFaces(s, 1e-6, 1e-6)
	up := mesh.Plane{Normal: r3.Vec{Z: 1}, D: 0.5}
	assert.Equal(t, 0, c.FindOrRegisterPlane(up, 1e-6, 1e-6))
	assert.Equal(t, 0, c.FindOrRegisterPlane(up.Flip(), 1e-6, 1e-6))
	other := mesh.Plane{Normal: r3.Vec{X: -1}, D: 3}
	assert.Equal(t, 1, c.FindOrRegisterPlane(other, 1e-6, 1e-6))
	assert.Equal(t, 1, c.FindOrRegisterPlane(other.Flip(), 1e-6, 1e-6))
	assert.Equal(t, r3.Vec{X: 1}, c.Plane(1).Normal)
	assert.Equal(t, -3.0, c.Plane(1).D)
}

func TestStoreFaceAdd(t *testing.T) {
	c := slicing.NewCoPlanarFaces(nil, 1e-6, 1e-6)
	up := mesh.Plane{Normal: r3.Vec{Z: 1}, D: 0.5}
	k1 := c.StoreFaceAdd(up, 0, 3, 7)
	k2 := c.StoreFaceAdd(up, 1, 4, -1)
	k3 := c.StoreFaceAdd(up.Flip(), 1, 5, 8)
	assert.Equal(t, k1, k2)
	assert.Equal(t, k1.Plane, k3.Plane)
	assert.Equal(t, 1, k1.Sign)
	assert.Equal(t, -1, k3.Sign)
	assert.Equal(t, []slicing.PlaneKey{k3, k1}, c.Keys())
	assert.Equal(t, []int{0, 1}, c.Meshes(k1))
	assert.Equal(t, []slicing.FaceRef{{Source: 4, Dest: -1}}, c.Faces(k1, 1))
	ws := &slicing.Workspace{}
	assert.False(t, c.UnionFaces(k3, ws), "single mesh plane")
	assert.False(t, c.IntersectFaces(k3, ws))
	assert.False(t, c.SubtractFaces(k3, ws), "first mesh absent")
}

func TestUnionFacesResolvesOverlap(t *testing.T) {
	// two cube tops on z=0.5, the second shifted by half a unit.
	a := mesh.Box(r3.Vec{}, d3.Elem(1))
	b := mesh.Box(r3.Vec{X: 0.5}, d3.Elem(1))
	c := slicing.NewCoPlanarFaces(nil, 1e-6, 1e-6)
	result := &mesh.Mesh{}
	var key slicing.PlaneKey
	for i, m := range []*mesh.Mesh{a, b} {
		for fi := range m.Faces {
			if m.Faces[fi].Normal.Z > 0.5 {
				p, _ := m.Plane(fi)
				// pretend every face produced one output face.
				tri := m.Triangle(fi)
				v0 := result.AddVertex(tri[0])
				v1 := result.AddVertex(tri[1])
				v2 := result.AddVertex(tri[2])
				key = c.StoreFaceAdd(p, i, fi, result.AddFace(v0, v1, v2))
			}
		}
	}
	require.Len(t, result.Faces, 4)
	ws := &slicing.Workspace{
		Meshes: []*mesh.Mesh{a, b},
		Section: func(plane, j int, side slicer.Side) polygon.Polygons {
			if side == slicer.Front {
				return nil // nothing above the tops.
			}
			m := []*mesh.Mesh{a, b}[j]
			p := c.Plane(plane)
			return slicer.Slice(m, nil, p, p.Frame(), side)
		},
		Result: result,
		Remove: make([]bool, len(result.Faces)),
	}
	require.True(t, c.Resolve(boolean.Union, key, ws))
	assert.Equal(t, []bool{true, true, true, true}, ws.Remove)
	result.RemoveFaces(ws.Remove)
	assert.InDelta(t, 1.5, result.Area(), 1e-9)
	for _, f := range result.Faces {
		assert.InDelta(t, 1, f.Normal.Z, 1e-12)
	}
}
