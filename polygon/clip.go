package polygon

import (
	"sort"

	clipper "github.com/ctessum/go.clipper"
)

// Op is a boolean clipping operation.
type Op int

const (
	Union Op = iota
	Difference
	Intersection
)

func (op Op) String() string {
	switch op {
	case Union:
		return "union"
	case Difference:
		return "difference"
	case Intersection:
		return "intersection"
	}
	return "unknown"
}

func (op Op) clipType() clipper.ClipType {
	switch op {
	case Difference:
		return clipper.CtDifference
	case Intersection:
		return clipper.CtIntersection
	}
	return clipper.CtUnion
}

// Clip computes subject op clip. Both operands use the non-zero fill rule
// and the result is a normalized set of simple loops, counter-clockwise
// outers and clockwise holes.
func Clip(op Op, subject, clip Polygons) Polygons {
	switch {
	case len(subject) == 0 && op != Union:
		return nil
	case len(clip) == 0 && op == Intersection:
		return nil
	}
	c := clipper.NewClipper(clipper.IoStrictlySimple)
	c.AddPaths(toPaths(subject), clipper.PtSubject, true)
	c.AddPaths(toPaths(clip), clipper.PtClip, true)
	sol, ok := c.Execute1(op.clipType(), clipper.PftNonZero, clipper.PftNonZero)
	if !ok {
		return nil
	}
	return fromPaths(sol).Normalize()
}

// UnionAll returns the union of all sets.
func UnionAll(sets ...Polygons) Polygons {
	c := clipper.NewClipper(clipper.IoStrictlySimple)
	n := 0
	for _, s := range sets {
		if len(s) == 0 {
			continue
		}
		c.AddPaths(toPaths(s), clipper.PtSubject, true)
		n++
	}
	if n == 0 {
		return nil
	}
	sol, ok := c.Execute1(clipper.CtUnion, clipper.PftNonZero, clipper.PftNonZero)
	if !ok {
		return nil
	}
	return fromPaths(sol).Normalize()
}

// CorrectWinding orients loops by nesting depth, even depths counter-clockwise
// and odd depths clockwise, then unions them. It repairs loop sets whose
// orientation was lost, as happens with cross sections of inverted or
// inconsistently wound meshes.
func CorrectWinding(loops Polygons) Polygons {
	loops = loops.Normalize()
	if len(loops) == 0 {
		return nil
	}
	paths := toPaths(loops)
	oriented := make(Polygons, len(loops))
	for i, p := range loops {
		depth := 0
		for j := range loops {
			if i != j && contains(paths[j], p) {
				depth++
			}
		}
		if (depth%2 == 0) != p.CCW() {
			p = p.Reverse()
		}
		oriented[i] = p
	}
	return UnionAll(oriented)
}

// contains reports whether outer contains loop p, judged by the first
// vertex of p not lying on the boundary of outer.
func contains(outer clipper.Path, p Polygon) bool {
	if abs(clipper.Area(outer)) <= abs(p.Area()) {
		return false
	}
	for _, pt := range p {
		switch pointInPath(pt, outer) {
		case 1:
			return true
		case 0:
			return false
		}
	}
	return false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func pointInPath(pt Point, path clipper.Path) int {
	return clipper.PointInPolygon(&clipper.IntPoint{X: clipper.CInt(pt.X), Y: clipper.CInt(pt.Y)}, path)
}

func toPath(p Polygon) clipper.Path {
	path := make(clipper.Path, len(p))
	for i, pt := range p {
		path[i] = &clipper.IntPoint{X: clipper.CInt(pt.X), Y: clipper.CInt(pt.Y)}
	}
	return path
}

func toPaths(ps Polygons) clipper.Paths {
	paths := make(clipper.Paths, 0, len(ps))
	for _, p := range ps {
		if len(p) < 3 {
			continue
		}
		paths = append(paths, toPath(p))
	}
	return paths
}

func fromPaths(paths clipper.Paths) Polygons {
	ps := make(Polygons, 0, len(paths))
	for _, path := range paths {
		p := make(Polygon, len(path))
		for i, pt := range path {
			p[i] = Point{X: int64(pt.X), Y: int64(pt.Y)}
		}
		ps = append(ps, p)
	}
	return ps
}

// Equal reports whether a and b cover the same region.
func Equal(a, b Polygons) bool {
	return len(Clip(Difference, a, b)) == 0 && len(Clip(Difference, b, a)) == 0
}

// sortLoopsByArea sorts loops by decreasing absolute area.
func sortLoopsByArea(ps Polygons) {
	sort.SliceStable(ps, func(i, j int) bool {
		return abs(ps[i].Area()) > abs(ps[j].Area())
	})
}
