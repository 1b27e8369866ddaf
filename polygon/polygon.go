// Package polygon implements fixed-point 2D polygon sets, boolean
// clipping and triangulation.
//
// A Polygons value is interpreted with the non-zero fill rule:
// counter-clockwise loops add solid area, clockwise loops subtract it.
package polygon

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// Scale is the number of fixed-point units per model unit.
const Scale = 1000

// Resolution is the size of one fixed-point unit in model units.
const Resolution = 1.0 / Scale

// Point is a fixed-point 2D coordinate.
type Point struct {
	X, Y int64
}

// Polygon is a closed loop. The closing edge from the last point to the
// first is implicit.
type Polygon []Point

// Polygons is a set of loops filled with the non-zero rule.
type Polygons []Polygon

// FromR2 converts model coordinates to the nearest fixed-point coordinate.
func FromR2(v r2.Vec) Point {
	return Point{X: int64(math.Round(v.X * Scale)), Y: int64(math.Round(v.Y * Scale))}
}

// R2 converts p back to model coordinates.
func (p Point) R2() r2.Vec {
	return r2.Vec{X: float64(p.X) / Scale, Y: float64(p.Y) / Scale}
}

func (p Point) less(q Point) bool {
	return p.Y < q.Y || (p.Y == q.Y && p.X < q.X)
}

// cross returns the z component of (b-a) x (c-a).
func cross(a, b, c Point) float64 {
	return float64(b.X-a.X)*float64(c.Y-a.Y) - float64(b.Y-a.Y)*float64(c.X-a.X)
}

// Area returns the signed area in fixed-point units squared.
// Counter-clockwise loops have positive area.
func (p Polygon) Area() float64 {
	if len(p) < 3 {
		return 0
	}
	var a float64
	j := len(p) - 1
	for i := range p {
		a += float64(p[j].X)*float64(p[i].Y) - float64(p[i].X)*float64(p[j].Y)
		j = i
	}
	return a / 2
}

// CCW reports whether p is counter-clockwise.
func (p Polygon) CCW() bool { return p.Area() > 0 }

// Reverse returns p with opposite orientation.
func (p Polygon) Reverse() Polygon {
	r := make(Polygon, len(p))
	for i, pt := range p {
		r[len(p)-1-i] = pt
	}
	return r
}

// Clone returns a deep copy.
func (ps Polygons) Clone() Polygons {
	c := make(Polygons, len(ps))
	for i, p := range ps {
		c[i] = append(Polygon(nil), p...)
	}
	return c
}

// Area returns the signed area of the set, holes subtracted.
// Only meaningful for sets without overlapping loops.
func (ps Polygons) Area() float64 {
	var a float64
	for _, p := range ps {
		a += p.Area()
	}
	return a
}

// Winding returns the winding number of pt with respect to ps. Points on
// an edge report onEdge=true.
func (ps Polygons) Winding(pt Point) (winding int, onEdge bool) {
	for _, p := range ps {
		switch pointInLoop(pt, p) {
		case -1:
			onEdge = true
		case 1:
			if p.CCW() {
				winding++
			} else {
				winding--
			}
		}
	}
	return winding, onEdge
}

// Contains reports whether pt lies strictly inside the filled region of ps.
func (ps Polygons) Contains(pt Point) bool {
	w, onEdge := ps.Winding(pt)
	return w != 0 && !onEdge
}

// Normalize returns ps with degenerate loops dropped, consecutive duplicate
// points removed, each loop rotated to start at its lowest point and loops
// sorted. Equal regions built from the same operations normalize equally.
func (ps Polygons) Normalize() Polygons {
	out := make(Polygons, 0, len(ps))
	for _, p := range ps {
		q := make(Polygon, 0, len(p))
		for i, pt := range p {
			if i > 0 && pt == q[len(q)-1] {
				continue
			}
			q = append(q, pt)
		}
		for len(q) > 1 && q[0] == q[len(q)-1] {
			q = q[:len(q)-1]
		}
		if len(q) < 3 || q.Area() == 0 {
			continue
		}
		low := 0
		for i := range q {
			if q[i].less(q[low]) {
				low = i
			}
		}
		rotated := make(Polygon, 0, len(q))
		rotated = append(rotated, q[low:]...)
		out = append(out, append(rotated, q[:low]...))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a[0] != b[0] {
			return a[0].less(b[0])
		}
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a[1].less(b[1])
	})
	return out
}

// pointInLoop returns 0 if pt is outside p, 1 if inside and -1 if on the boundary.
func pointInLoop(pt Point, p Polygon) int {
	return pointInPath(pt, toPath(p))
}
