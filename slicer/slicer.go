// Package slicer computes planar cross sections of triangle meshes as
// fixed-point polygon sets.
package slicer

import (
	"math"

	"github.com/soypat/csg/mesh"
	"github.com/soypat/csg/polygon"
	"gonum.org/v1/gonum/spatial/r3"
)

// Side selects on which side of the plane the section is taken.
type Side int

const (
	// Front takes the section an infinitesimal distance along the plane normal.
	Front Side = 1
	// Back takes the section an infinitesimal distance against the plane normal.
	Back Side = -1
)

func (s Side) String() string {
	if s == Back {
		return "back"
	}
	return "front"
}

// Opposite returns the other side.
func (s Side) Opposite() Side { return -s }

// DefaultEpsilon is the distance under which a vertex is considered to
// lie on the slicing plane.
const DefaultEpsilon = 1e-9

// Slicer cuts a single mesh. The zero value is not usable; use New.
type Slicer struct {
	m   *mesh.Mesh
	bih *mesh.BIH
	// Epsilon is the on-plane tolerance for vertices.
	Epsilon float64
}

// New returns a Slicer for m. The hierarchy is optional, when nil every
// face of m is tested against the plane.
func New(m *mesh.Mesh, bih *mesh.BIH) *Slicer {
	return &Slicer{m: m, bih: bih, Epsilon: DefaultEpsilon}
}

// Slice returns the cross section of the mesh with plane p, taken an
// infinitesimal distance to the given side, in the coordinates of frame f.
// Solid regions are counter-clockwise when viewed from the tip of p.Normal.
//
// Vertices on the plane are treated as lying on the side opposite to the
// offset, so faces coplanar with p never contribute and edges lying in p
// contribute exactly once.
func (s *Slicer) Slice(p mesh.Plane, f mesh.Frame, side Side) polygon.Polygons {
	var segs []segment
	visit := func(fi int) {
		if seg, ok := s.cutFace(fi, p, f, side); ok {
			segs = append(segs, seg)
		}
	}
	if s.bih != nil {
		s.bih.Straddling(p, s.Epsilon, visit)
	} else {
		for fi := range s.m.Faces {
			visit(fi)
		}
	}
	if len(segs) == 0 {
		return nil
	}
	return polygon.CorrectWinding(chain(segs))
}

// Slice is shorthand for New(m, bih).Slice(p, f, side).
func Slice(m *mesh.Mesh, bih *mesh.BIH, p mesh.Plane, f mesh.Frame, side Side) polygon.Polygons {
	return New(m, bih).Slice(p, f, side)
}

type segment struct {
	a, b polygon.Point
}

// cutFace intersects face fi with the offset plane.
func (s *Slicer) cutFace(fi int, p mesh.Plane, f mesh.Frame, side Side) (segment, bool) {
	face := s.m.Faces[fi]
	if face.Normal == (r3.Vec{}) {
		return segment{}, false
	}
	var (
		v    [3]r3.Vec
		d    [3]float64
		sign [3]int
	)
	pos, neg := 0, 0
	for i, vi := range face.V {
		v[i] = s.m.Vertices[vi]
		d[i] = p.SignedDistance(v[i])
		switch {
		case math.Abs(d[i]) <= s.Epsilon:
			sign[i] = -int(side)
			d[i] = 0
		case d[i] > 0:
			sign[i] = 1
		default:
			sign[i] = -1
		}
		if sign[i] > 0 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return segment{}, false
	}
	var pts [2]r3.Vec
	n := 0
	for i := 0; i < 3; i++ {
		j := (i + 1) % 3
		if sign[i] == sign[j] {
			continue
		}
		switch {
		case d[i] == 0:
			pts[n] = v[i]
		case d[j] == 0:
			pts[n] = v[j]
		default:
			t := d[i] / (d[i] - d[j])
			pts[n] = r3.Add(v[i], r3.Scale(t, r3.Sub(v[j], v[i])))
		}
		n++
	}
	// solid lies to the left of the segment direction p.Normal x face.Normal.
	dir := r3.Cross(p.Normal, face.Normal)
	if r3.Dot(r3.Sub(pts[1], pts[0]), dir) < 0 {
		pts[0], pts[1] = pts[1], pts[0]
	}
	seg := segment{a: polygon.FromR2(f.Project(pts[0])), b: polygon.FromR2(f.Project(pts[1]))}
	if seg.a == seg.b {
		return segment{}, false
	}
	return seg, true
}

// chain links segments sharing endpoints into loops. Open chains with at
// least three points are closed, shorter ones are dropped.
func chain(segs []segment) polygon.Polygons {
	starts := make(map[polygon.Point][]int, len(segs))
	for i, sg := range segs {
		starts[sg.a] = append(starts[sg.a], i)
	}
	used := make([]bool, len(segs))
	next := func(pt polygon.Point) int {
		for _, i := range starts[pt] {
			if !used[i] {
				return i
			}
		}
		return -1
	}
	var loops polygon.Polygons
	for i := range segs {
		if used[i] {
			continue
		}
		used[i] = true
		first := segs[i].a
		loop := polygon.Polygon{first}
		end := segs[i].b
		for end != first {
			loop = append(loop, end)
			k := next(end)
			if k < 0 {
				break
			}
			used[k] = true
			end = segs[k].b
		}
		if len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	return loops
}
