package mesh

import (
	"math"
	"sort"

	"github.com/soypat/csg/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

const leafSize = 4

// axis flags stored in the two lower bits of bihNode.flags.
const (
	leaf = iota
	xClip
	yClip
	zClip
)

// bihNode is either an internal node holding two clipping planes along
// one axis, or a leaf holding a range of BIH.order.
type bihNode struct {
	flags       int // index of first child in upper bits, axis in lower two bits
	left, right float64
	start, end  int
}

func (n *bihNode) isLeaf() bool { return n.flags&3 == leaf }
func (n *bihNode) axis() int    { return n.flags&3 - 1 }
func (n *bihNode) child() int   { return n.flags >> 2 }

// Feature is the part of a triangle that is closest to a query point.
type Feature int

const (
	FeatureFace Feature = iota
	FeatureEdge
	FeatureVertex
)

// BIH is a bounding interval hierarchy over the faces of a Mesh.
// It answers plane, radius and nearest point queries without scanning
// every face. A BIH is not updated when its mesh changes.
type BIH struct {
	m      *Mesh
	nodes  []bihNode
	order  []int
	bounds d3.Box
	// pseudo normals for signing distances: one per face, one per face edge
	// (indexed 3*face+j for the edge starting at vertex j) and one per vertex.
	edgeN []r3.Vec
	vertN []r3.Vec
}

// NewBIH builds the hierarchy for m.
func NewBIH(m *Mesh) *BIH {
	b := &BIH{
		m:      m,
		order:  make([]int, len(m.Faces)),
		bounds: m.Bounds(),
	}
	centroids := make([]r3.Vec, len(m.Faces))
	for i, f := range m.Faces {
		b.order[i] = i
		c := r3.Add(m.Vertices[f.V[0]], r3.Add(m.Vertices[f.V[1]], m.Vertices[f.V[2]]))
		centroids[i] = r3.Scale(1.0/3, c)
	}
	b.nodes = make([]bihNode, 1, 2*len(m.Faces)/leafSize+1)
	b.subdivide(0, 0, len(b.order), centroids, b.bounds)
	b.pseudoNormals()
	return b
}

// Mesh returns the mesh the hierarchy was built for.
func (b *BIH) Mesh() *Mesh { return b.m }

// Bounds returns the bounding box of the mesh.
func (b *BIH) Bounds() d3.Box { return b.bounds }

func (b *BIH) subdivide(node, start, end int, centroids []r3.Vec, bb d3.Box) {
	if end-start <= leafSize {
		b.nodes[node] = bihNode{flags: leaf, start: start, end: end}
		return
	}
	// Classic heuristic: split the longest axis at the centroid median.
	size := bb.Size()
	clip := xClip
	if size.Y > size.X && size.Y >= size.Z {
		clip = yClip
	} else if size.Z > size.X && size.Z > size.Y {
		clip = zClip
	}
	faces := b.order[start:end]
	sort.SliceStable(faces, func(i, j int) bool {
		return d3.Elem3(centroids[faces[i]], clip-1) < d3.Elem3(centroids[faces[j]], clip-1)
	})
	mid := start + (end-start)/2
	leftBB, rightBB := b.faceBounds(start, mid), b.faceBounds(mid, end)

	children := len(b.nodes)
	b.nodes = append(b.nodes, bihNode{}, bihNode{})
	b.subdivide(children, start, mid, centroids, leftBB)
	b.subdivide(children+1, mid, end, centroids, rightBB)
	b.nodes[node] = bihNode{
		flags: children<<2 | clip,
		left:  d3.Elem3(leftBB.Max, clip-1),
		right: d3.Elem3(rightBB.Min, clip-1),
	}
}

func (b *BIH) faceBounds(start, end int) d3.Box {
	bb := d3.EmptyBox()
	for _, fi := range b.order[start:end] {
		for _, vi := range b.m.Faces[fi].V {
			bb = bb.Include(b.m.Vertices[vi])
		}
	}
	return bb
}

// children returns the boxes of the two children of an internal node.
func (n *bihNode) children(bb d3.Box) (left, right d3.Box) {
	left, right = bb, bb
	switch n.axis() {
	case 0:
		left.Max.X = math.Min(left.Max.X, n.left)
		right.Min.X = math.Max(right.Min.X, n.right)
	case 1:
		left.Max.Y = math.Min(left.Max.Y, n.left)
		right.Min.Y = math.Max(right.Min.Y, n.right)
	case 2:
		left.Max.Z = math.Min(left.Max.Z, n.left)
		right.Min.Z = math.Max(right.Min.Z, n.right)
	}
	return left, right
}

// Straddling calls fn for every face touching the slab of half width
// eps around plane p.
func (b *BIH) Straddling(p Plane, eps float64, fn func(face int)) {
	if len(b.order) == 0 {
		return
	}
	b.straddling(0, b.bounds, p, eps, fn)
}

func (b *BIH) straddling(idx int, bb d3.Box, p Plane, eps float64, fn func(int)) {
	lo, hi := boxPlaneRange(bb, p)
	if lo > eps || hi < -eps {
		return
	}
	n := &b.nodes[idx]
	if n.isLeaf() {
		for _, fi := range b.order[n.start:n.end] {
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, vi := range b.m.Faces[fi].V {
				d := p.SignedDistance(b.m.Vertices[vi])
				lo = math.Min(lo, d)
				hi = math.Max(hi, d)
			}
			if lo <= eps && hi >= -eps {
				fn(fi)
			}
		}
		return
	}
	left, right := n.children(bb)
	b.straddling(n.child(), left, p, eps, fn)
	b.straddling(n.child()+1, right, p, eps, fn)
}

// boxPlaneRange returns the minimum and maximum signed distance of the box to p.
func boxPlaneRange(bb d3.Box, p Plane) (lo, hi float64) {
	c := bb.Center()
	h := r3.Scale(0.5, bb.Size())
	d := p.SignedDistance(c)
	r := math.Abs(p.Normal.X)*h.X + math.Abs(p.Normal.Y)*h.Y + math.Abs(p.Normal.Z)*h.Z
	return d - r, d + r
}

// Within calls fn for every face whose bounding box is within radius of p.
// Iteration stops early when fn returns false.
func (b *BIH) Within(p r3.Vec, radius float64, fn func(face int) bool) {
	if len(b.order) == 0 {
		return
	}
	b.within(0, b.bounds, p, radius*radius, fn)
}

func (b *BIH) within(idx int, bb d3.Box, p r3.Vec, r2 float64, fn func(int) bool) bool {
	if bb.Dist2(p) > r2 {
		return true
	}
	n := &b.nodes[idx]
	if n.isLeaf() {
		for _, fi := range b.order[n.start:n.end] {
			if !fn(fi) {
				return false
			}
		}
		return true
	}
	left, right := n.children(bb)
	return b.within(n.child(), left, p, r2, fn) && b.within(n.child()+1, right, p, r2, fn)
}

// NearestVertex returns the mesh vertex closest to p among those within radius.
func (b *BIH) NearestVertex(p r3.Vec, radius float64) (vertex int, ok bool) {
	best := radius * radius
	vertex = -1
	b.Within(p, radius, func(fi int) bool {
		for _, vi := range b.m.Faces[fi].V {
			d2 := r3.Norm2(r3.Sub(b.m.Vertices[vi], p))
			if d2 <= best {
				if d2 < best || vertex < 0 || vi < vertex {
					vertex = vi
				}
				best = d2
			}
		}
		return true
	})
	return vertex, vertex >= 0
}

// Nearest is the result of a closest point query.
type Nearest struct {
	Face    int
	Point   r3.Vec
	Dist2   float64
	Feature Feature
	// Index is the local vertex (0..2) or local edge (edge j starts at vertex j)
	// of the closest feature.
	Index int
}

// Nearest returns the closest point on the mesh to p.
// An empty mesh returns Face == -1.
func (b *BIH) Nearest(p r3.Vec) Nearest {
	best := Nearest{Face: -1, Dist2: math.MaxFloat64}
	if len(b.order) > 0 {
		b.nearest(0, b.bounds, p, &best)
	}
	return best
}

func (b *BIH) nearest(idx int, bb d3.Box, p r3.Vec, best *Nearest) {
	n := &b.nodes[idx]
	if n.isLeaf() {
		for _, fi := range b.order[n.start:n.end] {
			cand := b.closestOnFace(p, fi)
			if cand.Dist2 < best.Dist2 {
				*best = cand
			}
		}
		return
	}
	left, right := n.children(bb)
	dl, dr := left.Dist2(p), right.Dist2(p)
	first, second := n.child(), n.child()+1
	if dr < dl {
		first, second = second, first
		left, right = right, left
		dl, dr = dr, dl
	}
	if dl <= best.Dist2 {
		b.nearest(first, left, p, best)
	}
	if dr <= best.Dist2 {
		b.nearest(second, right, p, best)
	}
}

// SignedDistance returns the distance from p to the mesh, negative when p
// is inside. The sign is taken from the angle weighted pseudo normal of
// the closest feature, which requires a closed, consistently oriented mesh.
func (b *BIH) SignedDistance(p r3.Vec) float64 {
	near := b.Nearest(p)
	if near.Face < 0 {
		return math.MaxFloat64
	}
	var normal r3.Vec
	switch near.Feature {
	case FeatureFace:
		normal = b.m.Faces[near.Face].Normal
	case FeatureEdge:
		normal = b.edgeN[3*near.Face+near.Index]
	case FeatureVertex:
		normal = b.vertN[b.m.Faces[near.Face].V[near.Index]]
	}
	d := math.Sqrt(near.Dist2)
	if r3.Dot(normal, r3.Sub(p, near.Point)) < 0 {
		return -d
	}
	return d
}

func (b *BIH) pseudoNormals() {
	m := b.m
	b.vertN = make([]r3.Vec, len(m.Vertices))
	b.edgeN = make([]r3.Vec, 3*len(m.Faces))
	edgeSum := make(map[[2]int]r3.Vec, 3*len(m.Faces))
	for _, f := range m.Faces {
		for j := 0; j < 3; j++ {
			a, c := f.V[j], f.V[(j+1)%3]
			if a > c {
				a, c = c, a
			}
			edgeSum[[2]int{a, c}] = r3.Add(edgeSum[[2]int{a, c}], f.Normal)

			// vertex normals are weighted by the opening angle.
			v := m.Vertices[f.V[j]]
			e1 := r3.Sub(m.Vertices[f.V[(j+1)%3]], v)
			e2 := r3.Sub(m.Vertices[f.V[(j+2)%3]], v)
			cos := r3.Dot(e1, e2) / math.Sqrt(r3.Norm2(e1)*r3.Norm2(e2))
			alpha := math.Acos(math.Max(-1, math.Min(1, cos)))
			if !math.IsNaN(alpha) {
				b.vertN[f.V[j]] = r3.Add(b.vertN[f.V[j]], r3.Scale(alpha, f.Normal))
			}
		}
	}
	for fi, f := range m.Faces {
		for j := 0; j < 3; j++ {
			a, c := f.V[j], f.V[(j+1)%3]
			if a > c {
				a, c = c, a
			}
			b.edgeN[3*fi+j] = edgeSum[[2]int{a, c}]
		}
	}
}

// closestOnFace finds the closest point of face fi to target. Based on
// Geometric Tools' distance between a point and a solid triangle.
func (b *BIH) closestOnFace(target r3.Vec, fi int) Nearest {
	f := b.m.Faces[fi].V
	a := b.m.Vertices[f[0]]
	e0 := r3.Sub(b.m.Vertices[f[1]], a)
	e1 := r3.Sub(b.m.Vertices[f[2]], a)
	diff := r3.Sub(target, a)

	a00 := r3.Dot(e0, e0)
	a01 := r3.Dot(e0, e1)
	a11 := r3.Dot(e1, e1)
	b0 := -r3.Dot(diff, e0)
	b1 := -r3.Dot(diff, e1)

	f00 := b0
	f10 := b0 + a00
	f01 := b0 + a01

	var p, p0, p1 [2]float64
	var dt1, h0, h1 float64
	switch {
	case f00 >= 0:
		if f01 >= 0 {
			p = minEdge02(a11, b1)
			break
		}
		p0 = [2]float64{0, f00 / (f00 - f01)}
		p1[0] = f01 / (f01 - f10)
		p1[1] = 1 - p1[0]
		dt1 = p1[1] - p0[1]
		h0 = dt1 * (a11*p0[1] + b1)
		if h0 >= 0 {
			p = minEdge02(a11, b1)
		} else if h1 = dt1 * (a01*p1[0] + a11*p1[1] + b1); h1 <= 0 {
			p = minEdge12(a01, a11, b1, f10, f01)
		} else {
			p = minInterior(p0, h0, p1, h1)
		}
	case f01 <= 0:
		if f10 <= 0 {
			p = minEdge12(a01, a11, b1, f10, f01)
			break
		}
		p0 = [2]float64{f00 / (f00 - f10), 0}
		p1[0] = f01 / (f01 - f10)
		p1[1] = 1 - p1[0]
		h0 = p1[1] * (a01*p0[0] + b1)
		if h0 >= 0 {
			p = p0
		} else if h1 = p1[1] * (a01*p1[0] + a11*p1[1] + b1); h1 <= 0 {
			p = minEdge12(a01, a11, b1, f10, f01)
		} else {
			p = minInterior(p0, h0, p1, h1)
		}
	case f10 <= 0:
		p0 = [2]float64{0, f00 / (f00 - f01)}
		p1[0] = f01 / (f01 - f10)
		p1[1] = 1 - p1[0]
		dt1 = p1[1] - p0[1]
		h0 = dt1 * (a11*p0[1] + b1)
		if h0 >= 0 {
			p = minEdge02(a11, b1)
		} else if h1 = dt1 * (a01*p1[0] + a11*p1[1] + b1); h1 <= 0 {
			p = minEdge12(a01, a11, b1, f10, f01)
		} else {
			p = minInterior(p0, h0, p1, h1)
		}
	default:
		p0 = [2]float64{f00 / (f00 - f10), 0}
		p1 = [2]float64{0, f00 / (f00 - f01)}
		h0 = p1[1] * (a01*p0[0] + b1)
		if h0 >= 0 {
			p = p0
		} else if h1 = p1[1] * (a11*p1[1] + b1); h1 <= 0 {
			p = minEdge02(a11, b1)
		} else {
			p = minInterior(p0, h0, p1, h1)
		}
	}
	closest := r3.Add(a, r3.Add(r3.Scale(p[0], e0), r3.Scale(p[1], e1)))
	feat, index := classify(p[0], p[1])
	return Nearest{
		Face:    fi,
		Point:   closest,
		Dist2:   r3.Norm2(r3.Sub(target, closest)),
		Feature: feat,
		Index:   index,
	}
}

// classify maps the parameters of the closest point a + s*(b-a) + t*(c-a)
// to the triangle feature it lies on.
func classify(s, t float64) (Feature, int) {
	const tol = 1e-12
	onAB := t <= tol
	onCA := s <= tol
	onBC := math.Abs(s+t-1) <= tol
	switch {
	case onAB && onCA:
		return FeatureVertex, 0
	case onAB && onBC:
		return FeatureVertex, 1
	case onCA && onBC:
		return FeatureVertex, 2
	case onAB:
		return FeatureEdge, 0
	case onBC:
		return FeatureEdge, 1
	case onCA:
		return FeatureEdge, 2
	}
	return FeatureFace, 0
}

func minEdge02(a11, b1 float64) (p [2]float64) {
	switch {
	case b1 >= 0:
		p[1] = 0
	case a11+b1 <= 0:
		p[1] = 1
	default:
		p[1] = -b1 / a11
	}
	return p
}

func minEdge12(a01, a11, b1, f10, f01 float64) (p [2]float64) {
	h0 := a01 + b1 - f10
	if h0 >= 0 {
		p[1] = 0
	} else if h1 := a11 + b1 - f01; h1 <= 0 {
		p[1] = 1
	} else {
		p[1] = h0 / (h0 - h1)
	}
	p[0] = 1 - p[1]
	return p
}

func minInterior(p0 [2]float64, h0 float64, p1 [2]float64, h1 float64) (p [2]float64) {
	z := h0 / (h0 - h1)
	omz := 1 - z
	p[0] = omz*p0[0] + z*p1[0]
	p[1] = omz*p0[1] + z*p1[1]
	return p
}
