package mesh

import (
	"math"
	"sort"

	"github.com/soypat/csg/internal/d3"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Clean merges vertices closer than tol, drops degenerate faces and
// coincident faces of opposite orientation, splits faces at T-junctions
// and removes unreferenced vertices. Face normals are recomputed.
func (m *Mesh) Clean(tol float64) {
	if len(m.Faces) == 0 {
		m.Vertices = m.Vertices[:0]
		return
	}
	m.weld(tol)
	m.dropDegenerate(tol)
	m.dropOpposites()
	m.splitTJunctions(tol)
	m.dropDegenerate(tol)
	m.compact()
	m.RecomputeNormals()
}

// weld merges vertices within tol of each other. Lower indices win.
func (m *Mesh) weld(tol float64) {
	pts := make(weldPoints, len(m.Vertices))
	for i, v := range m.Vertices {
		pts[i] = weldPoint{v: v, idx: i}
	}
	tree := kdtree.New(pts, false)
	remap := make([]int, len(m.Vertices))
	for i := range remap {
		remap[i] = -1
	}
	for i, v := range m.Vertices {
		if remap[i] >= 0 {
			continue
		}
		remap[i] = i
		keep := kdtree.NewDistKeeper(tol * tol)
		tree.NearestSet(keep, weldPoint{v: v, idx: -1})
		for _, c := range keep.Heap {
			if c.Comparable == nil {
				continue
			}
			j := c.Comparable.(weldPoint).idx
			if remap[j] < 0 {
				remap[j] = i
			}
		}
	}
	for i := range m.Faces {
		f := &m.Faces[i]
		for j := range f.V {
			f.V[j] = remap[f.V[j]]
		}
	}
}

// dropDegenerate removes faces with repeated vertices or whose height
// over the longest edge is not larger than half of tol.
func (m *Mesh) dropDegenerate(tol float64) {
	kept := m.Faces[:0]
	for _, f := range m.Faces {
		if f.V[0] == f.V[1] || f.V[1] == f.V[2] || f.V[2] == f.V[0] {
			continue
		}
		a, b, c := m.Vertices[f.V[0]], m.Vertices[f.V[1]], m.Vertices[f.V[2]]
		area2 := r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))
		longest := math.Max(r3.Norm(r3.Sub(b, a)), math.Max(r3.Norm(r3.Sub(c, b)), r3.Norm(r3.Sub(a, c))))
		if area2 == 0 || longest == 0 || area2/longest <= tol/2 {
			continue
		}
		kept = append(kept, f)
	}
	m.Faces = kept
}

// dropOpposites removes pairs of faces sharing the same three vertices
// with opposite orientation. Same-orientation duplicates collapse to one face.
func (m *Mesh) dropOpposites() {
	type group struct {
		pos, neg []int
	}
	groups := make(map[[3]int]*group)
	keys := make([][3]int, 0)
	for i, f := range m.Faces {
		key, parity := faceKey(f.V)
		g := groups[key]
		if g == nil {
			g = &group{}
			groups[key] = g
			keys = append(keys, key)
		}
		if parity > 0 {
			g.pos = append(g.pos, i)
		} else {
			g.neg = append(g.neg, i)
		}
	}
	if len(keys) == len(m.Faces) {
		return
	}
	remove := make([]bool, len(m.Faces))
	for _, key := range keys {
		g := groups[key]
		pairs := len(g.pos)
		if len(g.neg) < pairs {
			pairs = len(g.neg)
		}
		for _, fi := range g.pos[:pairs] {
			remove[fi] = true
		}
		for _, fi := range g.neg[:pairs] {
			remove[fi] = true
		}
		rest := append(g.pos[pairs:], g.neg[pairs:]...)
		for k := 1; k < len(rest); k++ {
			remove[rest[k]] = true
		}
	}
	m.RemoveFaces(remove)
}

// faceKey returns the sorted vertex triple of a face and +1 when the face
// winding is an even permutation of it, -1 otherwise.
func faceKey(v [3]int) ([3]int, int) {
	for v[0] > v[1] || v[0] > v[2] {
		v = [3]int{v[1], v[2], v[0]}
	}
	if v[1] < v[2] {
		return v, 1
	}
	return [3]int{v[0], v[2], v[1]}, -1
}

// splitTJunctions splits faces whose unmatched edges have a vertex of
// another unmatched edge lying on them.
func (m *Mesh) splitTJunctions(tol float64) {
	const maxRounds = 64
	tol2 := math.Max(tol*tol, 1e-24)
	for round := 0; round < maxRounds; round++ {
		edges := m.edgeCount()
		type openEdge struct {
			face, j int
		}
		var open []openEdge
		onOpen := make(map[int]bool)
		for fi, f := range m.Faces {
			for j := 0; j < 3; j++ {
				a, b := f.V[j], f.V[(j+1)%3]
				if edges[[2]int{b, a}] == 0 {
					open = append(open, openEdge{face: fi, j: j})
					onOpen[a] = true
					onOpen[b] = true
				}
			}
		}
		if len(open) == 0 {
			return
		}
		candidates := make([]int, 0, len(onOpen))
		for vi := range onOpen {
			candidates = append(candidates, vi)
		}
		sort.Ints(candidates)

		split := make(map[int]bool)
		nFaces := len(m.Faces)
		for _, oe := range open {
			if split[oe.face] {
				continue
			}
			f := m.Faces[oe.face]
			a, b, c := f.V[oe.j], f.V[(oe.j+1)%3], f.V[(oe.j+2)%3]
			pa, pb := m.Vertices[a], m.Vertices[b]
			ab := r3.Sub(pb, pa)
			l2 := r3.Norm2(ab)
			if l2 == 0 {
				continue
			}
			best, bestT := -1, 2.0
			for _, p := range candidates {
				if p == a || p == b || p == c {
					continue
				}
				pp := m.Vertices[p]
				t := r3.Dot(r3.Sub(pp, pa), ab) / l2
				if t <= 0 || t >= 1 {
					continue
				}
				closest := r3.Add(pa, r3.Scale(t, ab))
				if r3.Norm2(r3.Sub(pp, closest)) > tol2 || d3.EqualWithin(pp, pa, 0) || d3.EqualWithin(pp, pb, 0) {
					continue
				}
				if t < bestT {
					best, bestT = p, t
				}
			}
			if best < 0 {
				continue
			}
			split[oe.face] = true
			m.Faces[oe.face] = Face{V: [3]int{a, best, c}, Normal: f.Normal}
			m.Faces = append(m.Faces, Face{V: [3]int{best, b, c}, Normal: f.Normal})
		}
		if len(m.Faces) == nFaces {
			return
		}
	}
}

// compact drops unreferenced vertices keeping the relative vertex order.
func (m *Mesh) compact() {
	used := make([]int, len(m.Vertices))
	for i := range used {
		used[i] = -1
	}
	for _, f := range m.Faces {
		for _, vi := range f.V {
			used[vi] = 0
		}
	}
	verts := m.Vertices[:0]
	for i, v := range m.Vertices {
		if used[i] < 0 {
			continue
		}
		used[i] = len(verts)
		verts = append(verts, v)
	}
	m.Vertices = verts
	for i := range m.Faces {
		f := &m.Faces[i]
		for j := range f.V {
			f.V[j] = used[f.V[j]]
		}
	}
}

type weldPoint struct {
	v   r3.Vec
	idx int
}

func (p weldPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(weldPoint)
	return d3.Elem3(p.v, int(d)) - d3.Elem3(q.v, int(d))
}

func (p weldPoint) Dims() int { return 3 }

func (p weldPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(weldPoint)
	return r3.Norm2(r3.Sub(p.v, q.v))
}

type weldPoints []weldPoint

func (p weldPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p weldPoints) Len() int                      { return len(p) }
func (p weldPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

func (p weldPoints) Pivot(d kdtree.Dim) int {
	pl := weldPlane{dim: d, points: p}
	return kdtree.Partition(pl, kdtree.MedianOfMedians(pl))
}

type weldPlane struct {
	dim    kdtree.Dim
	points weldPoints
}

func (p weldPlane) Less(i, j int) bool {
	return p.points[i].Compare(p.points[j], p.dim) < 0
}
func (p weldPlane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p weldPlane) Len() int      { return len(p.points) }
func (p weldPlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
