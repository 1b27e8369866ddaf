// Package slicing implements exact mesh booleans by slicing every operand
// with the plane of every face and clipping faces in 2D.
package slicing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/soypat/csg/boolean"
	"github.com/soypat/csg/mesh"
	"github.com/soypat/csg/polygon"
	"github.com/soypat/csg/slicer"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrNotSetup is returned by Calculate before a successful Setup.
	ErrNotSetup = errors.New("slicing: engine not set up")
	// ErrNoMeshes is returned when Setup receives no items.
	ErrNoMeshes = errors.New("slicing: no meshes")
)

// Item is an operand: a mesh and its world transform. A zero Transform
// is the identity.
type Item struct {
	Mesh      *mesh.Mesh
	Transform mgl64.Mat4
}

// ProgressFunc receives a ratio in [0, 1] that never decreases and a
// short status. It must not block.
type ProgressFunc func(progress float64, status string)

func (fn ProgressFunc) report(progress float64, status string) {
	if fn != nil {
		fn(progress, status)
	}
}

// Tolerances control plane merging and the final weld.
type Tolerances struct {
	// PlaneDistance is the largest offset between planes considered equal.
	PlaneDistance float64
	// PlaneNormal is the largest per-component difference between normals
	// of planes considered equal.
	PlaneNormal float64
	// Weld is the distance under which result vertices are merged.
	Weld float64
}

// DefaultTolerances returns tolerances suited to the fixed-point
// resolution of the polygon package.
func DefaultTolerances() Tolerances {
	return Tolerances{
		PlaneDistance: 1e-6,
		PlaneNormal:   1e-6,
		Weld:          1.5 * polygon.Resolution,
	}
}

type faceInfo struct {
	// plane is the canonical plane index, -1 for degenerate faces.
	plane int
	// sign relates the face normal to the canonical plane normal.
	sign int
}

// WithDefaults returns t with every non-positive field replaced by the
// matching DefaultTolerances value.
func (t Tolerances) WithDefaults() Tolerances {
	def := DefaultTolerances()
	if !(t.PlaneDistance > 0) {
		t.PlaneDistance = def.PlaneDistance
	}
	if !(t.PlaneNormal > 0) {
		t.PlaneNormal = def.PlaneNormal
	}
	if !(t.Weld > 0) {
		t.Weld = def.Weld
	}
	return t
}

// Engine computes booleans between any number of meshes. An Engine is
// set up once and may Calculate several operations. It is not safe for
// concurrent use; independent engines share nothing.
type Engine struct {
	// Tolerances are read by Setup. Non-positive fields use defaults.
	Tolerances Tolerances

	tol    Tolerances

	meshes []*mesh.Mesh
	bihs   []*mesh.BIH
	faces  [][]faceInfo
	sorter *PlaneNormalXSorter
	frames []mesh.Frame
}

// NewEngine returns an engine using tol. Non-positive fields of tol are
// replaced by their defaults.
func NewEngine(tol Tolerances) *Engine {
	return &Engine{Tolerances: tol.WithDefaults()}
}

// Setup copies the operands into world space and builds the per-mesh
// hierarchies and the plane index. Caller meshes are not modified.
func (e *Engine) Setup(ctx context.Context, items []Item, progress ProgressFunc) error {
	e.meshes, e.bihs, e.faces, e.sorter, e.frames = nil, nil, nil, nil, nil
	tol := e.Tolerances.WithDefaults()
	if len(items) == 0 {
		return ErrNoMeshes
	}
	meshes := make([]*mesh.Mesh, len(items))
	bihs := make([]*mesh.BIH, len(items))
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if it.Mesh == nil {
			return fmt.Errorf("slicing: item %d has no mesh", i)
		}
		meshes[i] = it.Mesh.Placed(it.Transform)
		bihs[i] = mesh.NewBIH(meshes[i])
		progress.report(0.5*float64(i+1)/float64(len(items)), "setup")
	}

	// Coarse exact-ish dedup first, then the sorter merges near planes.
	type planeHash [4]int64
	const q = 1e9
	hash := func(p mesh.Plane) planeHash {
		return planeHash{
			int64(math.Round(p.Normal.X * q)), int64(math.Round(p.Normal.Y * q)),
			int64(math.Round(p.Normal.Z * q)), int64(math.Round(p.D * q)),
		}
	}
	// first plane seen per hash, the exact fallback when the tolerant
	// lookup misses.
	seen := make(map[planeHash]mesh.Plane)
	var unique []mesh.Plane
	canon := make([][]mesh.Plane, len(meshes))
	signs := make([][]int, len(meshes))
	for i, m := range meshes {
		if err := ctx.Err(); err != nil {
			return err
		}
		canon[i] = make([]mesh.Plane, len(m.Faces))
		signs[i] = make([]int, len(m.Faces))
		for fi := range m.Faces {
			p, ok := m.Plane(fi)
			if !ok {
				continue
			}
			c, s := p.Canonical()
			canon[i][fi], signs[i][fi] = c, int(s)
			if _, ok := seen[hash(c)]; !ok {
				seen[hash(c)] = c
				unique = append(unique, c)
			}
		}
	}
	sorter := NewPlaneNormalXSorter(unique)
	faces := make([][]faceInfo, len(meshes))
	for i, m := range meshes {
		faces[i] = make([]faceInfo, len(m.Faces))
		for fi := range m.Faces {
			faces[i][fi] = faceInfo{plane: -1}
			if signs[i][fi] == 0 {
				continue
			}
			idx, ok := sorter.Find(canon[i][fi], tol.PlaneDistance, tol.PlaneNormal)
			if !ok {
				idx, ok = sorter.Find(seen[hash(canon[i][fi])], 0, 0)
			}
			if !ok {
				return fmt.Errorf("slicing: plane of face %d of mesh %d not indexed", fi, i)
			}
			faces[i][fi] = faceInfo{plane: idx, sign: signs[i][fi]}
		}
	}
	frames := make([]mesh.Frame, sorter.Len())
	for i := range frames {
		frames[i] = sorter.Plane(i).Frame()
	}
	e.meshes, e.bihs, e.faces, e.sorter, e.frames = meshes, bihs, faces, sorter, frames
	e.tol = tol
	progress.report(1, "setup")
	return nil
}

// Meshes returns the world space operands built by Setup.
func (e *Engine) Meshes() []*mesh.Mesh { return e.meshes }

// Planes returns the number of canonical planes found by Setup.
func (e *Engine) Planes() int {
	if e.sorter == nil {
		return 0
	}
	return e.sorter.Len()
}

type sectionKey struct {
	plane, mesh int
	side        slicer.Side
}

// Calculate returns the result of op over the operands given to Setup.
// For Subtract the first operand is kept and the rest removed from it.
// On cancellation it returns nil and the context error; the engine stays
// set up.
func (e *Engine) Calculate(ctx context.Context, op boolean.Op, progress ProgressFunc) (*mesh.Mesh, error) {
	if e.meshes == nil {
		return nil, ErrNotSetup
	}
	if !op.Valid() {
		return nil, fmt.Errorf("slicing: invalid operation %v", op)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reg := NewCoPlanarFaces(e.sorter, e.tol.PlaneDistance, e.tol.PlaneNormal)
	cache := make(map[sectionKey]polygon.Polygons)
	section := func(plane, j int, side slicer.Side) polygon.Polygons {
		k := sectionKey{plane: plane, mesh: j, side: side}
		if s, ok := cache[k]; ok {
			return s
		}
		p := reg.Plane(plane)
		var f mesh.Frame
		if plane < len(e.frames) {
			f = e.frames[plane]
		} else {
			f = p.Frame()
		}
		s := slicer.Slice(e.meshes[j], e.bihs[j], p, f, side)
		cache[k] = s
		return s
	}
	b := builder{
		meshes: e.meshes,
		result: &mesh.Mesh{},
		snap:   newSnapper(e.meshes, e.bihs, e.tol).snap,
	}

	total := 0
	for _, m := range e.meshes {
		total += len(m.Faces)
	}
	done := 0
	for i, m := range e.meshes {
		for fi := range m.Faces {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			info := e.faces[i][fi]
			done++
			if info.plane < 0 {
				continue
			}
			plane := reg.Plane(info.plane)
			sec := func(j int, side slicer.Side) polygon.Polygons { return section(info.plane, j, side) }
			dests, outSign := b.face(op, i, fi, info.sign, e.frames[info.plane], sec)
			outPlane := plane
			if outSign < 0 {
				outPlane = plane.Flip()
			}
			if len(dests) == 0 {
				reg.StoreFaceAdd(outPlane, i, fi, -1)
			}
			for _, d := range dests {
				reg.StoreFaceAdd(outPlane, i, fi, d)
			}
			progress.report(0.9*float64(done)/float64(total), "faces")
		}
	}

	ws := &Workspace{
		Meshes:  e.meshes,
		Section: section,
		Result:  b.result,
		Remove:  make([]bool, len(b.result.Faces)),
		Snap:    b.snap,
	}
	keys := reg.Keys()
	for k, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reg.Resolve(op, key, ws)
		progress.report(0.9+0.05*float64(k+1)/float64(len(keys)), "coplanar")
	}
	b.result.RemoveFaces(ws.Remove)
	b.result.Clean(e.tol.Weld)
	progress.report(1, "done")
	return b.result, nil
}

// builder accumulates the per-face output.
type builder struct {
	meshes []*mesh.Mesh
	result *mesh.Mesh
	snap   SnapFunc
}

// face clips face fi of mesh i and appends its output. faceSign relates
// the face normal to the frame normal. It returns the result faces added
// and the orientation of the output relative to the frame normal.
func (b *builder) face(op boolean.Op, i, fi, faceSign int, f mesh.Frame, section func(j int, side slicer.Side) polygon.Polygons) (dests []int, outSign int) {
	m := b.meshes[i]
	outSign = faceSign
	if op == boolean.Subtract && i > 0 {
		outSign = -faceSign
	}
	loop := projectFace(m, fi, f)
	if loop == nil {
		return nil, outSign
	}
	own := polygon.Polygons{loop}
	res := clipRegion(op, i, len(b.meshes), slicer.Side(faceSign), own, section)
	switch {
	case len(res) == 0:
		return nil, outSign
	case len(res) == 1 && slices.Equal(res[0], loop):
		return []int{b.copyFace(m, fi, outSign != faceSign)}, outSign
	}
	return emit(b.result, f, polygon.Triangulate(res), float64(outSign), b.snap), outSign
}

// copyFace appends face fi of m to the result, reversed if flip is set.
func (b *builder) copyFace(m *mesh.Mesh, fi int, flip bool) int {
	v := m.Faces[fi].V
	i0 := b.result.AddVertex(m.Vertices[v[0]])
	i1 := b.result.AddVertex(m.Vertices[v[1]])
	i2 := b.result.AddVertex(m.Vertices[v[2]])
	if flip {
		i1, i2 = i2, i1
	}
	return b.result.AddFace(i0, i1, i2)
}

// projectFace returns face fi of m in frame coordinates as a normalized
// counter-clockwise loop, or nil if it has no area at fixed-point resolution.
func projectFace(m *mesh.Mesh, fi int, f mesh.Frame) polygon.Polygon {
	v := m.Faces[fi].V
	loop := polygon.Polygon{
		polygon.FromR2(f.Project(m.Vertices[v[0]])),
		polygon.FromR2(f.Project(m.Vertices[v[1]])),
		polygon.FromR2(f.Project(m.Vertices[v[2]])),
	}
	if loop.Area() < 0 {
		loop = loop.Reverse()
	}
	ps := polygon.Polygons{loop}.Normalize()
	if len(ps) == 0 {
		return nil
	}
	return ps[0]
}

// clipRegion applies the per-face rule of op for a region of mesh i whose
// faces point to side front of the plane. F and B below are the sections
// of other meshes just in front of and just behind the region.
//
//	union:       region - U F_j             (j != i)
//	intersect:   region ∩ B_j for all j      (j != i)
//	subtract 0:  region - U B_j             (j > 0)
//	subtract i:  (region ∩ F_0) - U F_j     (j > 0, j != i)
func clipRegion(op boolean.Op, i, n int, front slicer.Side, region polygon.Polygons, section func(j int, side slicer.Side) polygon.Polygons) polygon.Polygons {
	if len(region) == 0 {
		return nil
	}
	back := front.Opposite()
	cutters := func(side slicer.Side, from int) polygon.Polygons {
		var sets []polygon.Polygons
		for j := from; j < n; j++ {
			if j != i {
				sets = append(sets, section(j, side))
			}
		}
		return polygon.UnionAll(sets...)
	}
	difference := func(a, cut polygon.Polygons) polygon.Polygons {
		if len(cut) == 0 || len(a) == 0 {
			return a
		}
		return polygon.Clip(polygon.Difference, a, cut)
	}
	switch op {
	case boolean.Intersect:
		acc := region
		for j := 0; j < n && len(acc) > 0; j++ {
			if j != i {
				acc = polygon.Clip(polygon.Intersection, acc, section(j, back))
			}
		}
		return acc
	case boolean.Subtract:
		if i == 0 {
			return difference(region, cutters(back, 1))
		}
		return difference(polygon.Clip(polygon.Intersection, region, section(0, front)), cutters(front, 1))
	}
	return difference(region, cutters(front, 0))
}

// emit lifts fixed-point triangles into the frame's plane and appends
// them to result, facing along sign times the frame normal. Triangles of
// one call share vertices.
func emit(result *mesh.Mesh, f mesh.Frame, tris []polygon.Triangle, sign float64, snap SnapFunc) []int {
	expect := r3.Scale(sign, f.N)
	on := mesh.Plane{Normal: f.N, D: r3.Dot(f.N, f.Origin)}
	index := make(map[polygon.Point]int, len(tris))
	vertex := func(p polygon.Point) int {
		if vi, ok := index[p]; ok {
			return vi
		}
		v := f.Lift(p.R2())
		if snap != nil {
			v = snap(v, on)
		}
		vi := result.AddVertex(v)
		index[p] = vi
		return vi
	}
	dests := make([]int, 0, len(tris))
	for _, t := range tris {
		a, bb, c := vertex(t[0]), vertex(t[1]), vertex(t[2])
		if sign < 0 {
			bb, c = c, bb
		}
		fi := result.AddFace(a, bb, c)
		if face := &result.Faces[fi]; r3.Dot(face.Normal, expect) < 0 {
			face.V[1], face.V[2] = face.V[2], face.V[1]
			face.Normal = r3.Scale(-1, face.Normal)
		}
		dests = append(dests, fi)
	}
	return dests
}
