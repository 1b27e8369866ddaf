package slicing

import (
	"sort"

	"github.com/soypat/csg/boolean"
	"github.com/soypat/csg/mesh"
	"github.com/soypat/csg/polygon"
	"github.com/soypat/csg/slicer"
)

// PlaneKey identifies an oriented plane in a CoPlanarFaces registry.
// Sign is +1 when faces point along the canonical plane normal, -1 otherwise.
type PlaneKey struct {
	Plane int
	Sign  int
}

// FaceRef records that source face Source produced result face Dest.
// Dest is -1 when the source face produced nothing.
type FaceRef struct {
	Source int
	Dest   int
}

// SectionFunc returns the cross section of mesh j with the canonical plane
// of index plane, taken on side of the canonical orientation.
type SectionFunc func(plane, j int, side slicer.Side) polygon.Polygons

// Workspace is what co-planar resolution reads from and writes to.
type Workspace struct {
	// Meshes are the world space operands.
	Meshes  []*mesh.Mesh
	Section SectionFunc
	// Result receives re-triangulated regions.
	Result *mesh.Mesh
	// Remove accumulates the result faces to drop once resolution is done.
	Remove []bool
	// Snap, when set, maps new vertices onto the operand features they
	// approximate.
	Snap SnapFunc
}

// CoPlanarFaces groups faces from several meshes that lie on the same
// plane so that their region can be resolved in 2D.
type CoPlanarFaces struct {
	sorter    *PlaneNormalXSorter
	distTol   float64
	normalTol float64
	// planes registered after the sorter was built.
	extra  []mesh.Plane
	groups map[PlaneKey]map[int][]FaceRef
}

// NewCoPlanarFaces returns an empty registry that canonicalizes planes
// against sorter. sorter may be nil.
func NewCoPlanarFaces(sorter *PlaneNormalXSorter, distTol, normalTol float64) *CoPlanarFaces {
	if sorter == nil {
		sorter = NewPlaneNormalXSorter(nil)
	}
	return &CoPlanarFaces{
		sorter:    sorter,
		distTol:   distTol,
		normalTol: normalTol,
		groups:    make(map[PlaneKey]map[int][]FaceRef),
	}
}

// FindOrRegisterPlane returns the index of the canonical plane equal to p
// within tolerances, registering p if none exists. The orientation of p
// is ignored.
func (c *CoPlanarFaces) FindOrRegisterPlane(p mesh.Plane, distTol, normalTol float64) int {
	p, _ = p.Canonical()
	if i, ok := c.sorter.Find(p, distTol, normalTol); ok {
		return i
	}
	for i, q := range c.extra {
		if q.Equal(p, distTol, normalTol) {
			return c.sorter.Len() + i
		}
	}
	c.extra = append(c.extra, p)
	return c.sorter.Len() + len(c.extra) - 1
}

// Plane returns the canonical plane of index i.
func (c *CoPlanarFaces) Plane(i int) mesh.Plane {
	if i < c.sorter.Len() {
		return c.sorter.Plane(i)
	}
	return c.extra[i-c.sorter.Len()]
}

// StoreFaceAdd records that face sourceFace of mesh sourceMesh, oriented
// as facePlane in the result, produced result face dest (or -1).
func (c *CoPlanarFaces) StoreFaceAdd(facePlane mesh.Plane, sourceMesh, sourceFace, dest int) PlaneKey {
	_, sign := facePlane.Canonical()
	key := PlaneKey{
		Plane: c.FindOrRegisterPlane(facePlane, c.distTol, c.normalTol),
		Sign:  int(sign),
	}
	g := c.groups[key]
	if g == nil {
		g = make(map[int][]FaceRef)
		c.groups[key] = g
	}
	g[sourceMesh] = append(g[sourceMesh], FaceRef{Source: sourceFace, Dest: dest})
	return key
}

// Keys returns every registered key in ascending order.
func (c *CoPlanarFaces) Keys() []PlaneKey {
	keys := make([]PlaneKey, 0, len(c.groups))
	for k := range c.groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Plane != keys[j].Plane {
			return keys[i].Plane < keys[j].Plane
		}
		return keys[i].Sign < keys[j].Sign
	})
	return keys
}

// Meshes returns the indices of the meshes with faces on key, ascending.
func (c *CoPlanarFaces) Meshes(key PlaneKey) []int {
	g := c.groups[key]
	idx := make([]int, 0, len(g))
	for i := range g {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Faces returns the faces of mesh i registered on key.
func (c *CoPlanarFaces) Faces(key PlaneKey, i int) []FaceRef {
	return c.groups[key][i]
}

// Resolve dispatches to UnionFaces, SubtractFaces or IntersectFaces.
func (c *CoPlanarFaces) Resolve(op boolean.Op, key PlaneKey, ws *Workspace) bool {
	switch op {
	case boolean.Subtract:
		return c.SubtractFaces(key, ws)
	case boolean.Intersect:
		return c.IntersectFaces(key, ws)
	}
	return c.UnionFaces(key, ws)
}

// UnionFaces resolves key for a union. It does nothing and returns false
// unless at least two meshes have faces on key.
func (c *CoPlanarFaces) UnionFaces(key PlaneKey, ws *Workspace) bool {
	if len(c.groups[key]) < 2 {
		return false
	}
	return c.resolve(boolean.Union, key, ws)
}

// SubtractFaces resolves key for a subtraction. The first mesh must be
// among at least two contributors.
func (c *CoPlanarFaces) SubtractFaces(key PlaneKey, ws *Workspace) bool {
	g := c.groups[key]
	if len(g) < 2 || g[0] == nil {
		return false
	}
	return c.resolve(boolean.Subtract, key, ws)
}

// IntersectFaces resolves key for an intersection. It needs at least two
// contributing meshes.
func (c *CoPlanarFaces) IntersectFaces(key PlaneKey, ws *Workspace) bool {
	if len(c.groups[key]) < 2 {
		return false
	}
	return c.resolve(boolean.Intersect, key, ws)
}

// resolve recomputes the region on key from the source faces of every
// contributing mesh, replaces the per-face output with its triangulation
// and marks the per-face output for removal.
func (c *CoPlanarFaces) resolve(op boolean.Op, key PlaneKey, ws *Workspace) bool {
	frame := c.Plane(key.Plane).Frame()
	n := len(ws.Meshes)
	var parts []polygon.Polygons
	for _, i := range c.Meshes(key) {
		refs := c.groups[key][i]
		m := ws.Meshes[i]
		var loops polygon.Polygons
		for _, ref := range refs {
			if ref.Dest >= 0 && ref.Dest < len(ws.Remove) {
				ws.Remove[ref.Dest] = true
			}
			if loop := projectFace(m, ref.Source, frame); loop != nil {
				loops = append(loops, loop)
			}
		}
		// orientation of the source faces relative to the canonical plane.
		faceSign := key.Sign
		if op == boolean.Subtract && i > 0 {
			faceSign = -faceSign
		}
		section := func(j int, side slicer.Side) polygon.Polygons {
			return ws.Section(key.Plane, j, side)
		}
		parts = append(parts, clipRegion(op, i, n, slicer.Side(faceSign), polygon.UnionAll(loops), section))
	}
	region := polygon.UnionAll(parts...)
	if len(region) == 0 {
		return true
	}
	emit(ws.Result, frame, polygon.Triangulate(region), float64(key.Sign), ws.Snap)
	return true
}
