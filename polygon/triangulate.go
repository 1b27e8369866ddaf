package polygon

import (
	"math"
	"sort"
)

// Triangle is a counter-clockwise triangle in fixed-point coordinates.
type Triangle [3]Point

// Triangulate splits the filled region of ps into counter-clockwise
// triangles. The set is first simplified with a union so that outers are
// counter-clockwise and holes clockwise. Each hole is bridged into its
// enclosing outer loop and the result is ear clipped.
func Triangulate(ps Polygons) []Triangle {
	ps = UnionAll(ps)
	var outers, holes Polygons
	for _, p := range ps {
		if p.CCW() {
			outers = append(outers, p)
		} else {
			holes = append(holes, p)
		}
	}
	sortLoopsByArea(outers)
	// smallest enclosing outer owns the hole.
	owned := make([]Polygons, len(outers))
	for _, h := range holes {
		owner := -1
		for i := len(outers) - 1; i >= 0; i-- {
			if contains(toPath(outers[i]), h) {
				owner = i
				break
			}
		}
		if owner >= 0 {
			owned[owner] = append(owned[owner], h)
		}
	}
	var tris []Triangle
	for i, outer := range outers {
		loop := outer
		if len(owned[i]) > 0 {
			loop = bridgeHoles(outer, owned[i])
		}
		tris = earClip(loop, tris)
	}
	return tris
}

// bridgeHoles merges holes into outer by connecting each hole to a visible
// outer vertex with a zero width channel.
func bridgeHoles(outer Polygon, holes Polygons) Polygon {
	// Process holes right to left so earlier bridges do not block later ones.
	sort.SliceStable(holes, func(i, j int) bool {
		return maxX(holes[i]) > maxX(holes[j])
	})
	loop := append(Polygon(nil), outer...)
	for hi, h := range holes {
		m := 0
		for i, pt := range h {
			if pt.X > h[m].X || (pt.X == h[m].X && pt.Y < h[m].Y) {
				m = i
			}
		}
		rest := holes[hi+1:]
		b := findBridge(loop, h, m, rest)
		if b < 0 {
			// Unreachable for valid input. Keep the hole out of the loop.
			continue
		}
		merged := make(Polygon, 0, len(loop)+len(h)+2)
		merged = append(merged, loop[:b+1]...)
		for k := 0; k <= len(h); k++ {
			merged = append(merged, h[(m+k)%len(h)])
		}
		merged = append(merged, loop[b:]...)
		loop = merged
	}
	return loop
}

func maxX(p Polygon) int64 {
	x := p[0].X
	for _, pt := range p[1:] {
		if pt.X > x {
			x = pt.X
		}
	}
	return x
}

// findBridge returns the index of the loop vertex closest to h[m] such that
// the segment between them crosses no edge and runs through the region
// interior. It returns -1 if none exists.
func findBridge(loop, h Polygon, m int, others Polygons) int {
	mp := h[m]
	idx := make([]int, len(loop))
	for i := range idx {
		idx[i] = i
	}
	dist := func(i int) float64 {
		dx, dy := float64(loop[i].X-mp.X), float64(loop[i].Y-mp.Y)
		return dx*dx + dy*dy
	}
	sort.SliceStable(idx, func(a, b int) bool { return dist(idx[a]) < dist(idx[b]) })
	all := append(Polygons{loop, h}, others...)
	for _, i := range idx {
		p := loop[i]
		if p == mp {
			return i
		}
		if segmentBlocked(mp, p, all) {
			continue
		}
		// The channel must leave the hole into the solid and enter the
		// loop from its solid side.
		if !inCone(h, m, p) || !inCone(loop, i, mp) {
			continue
		}
		return i
	}
	return -1
}

// inCone reports whether q lies strictly inside the interior angle of
// polygon p at vertex i. For clockwise holes the interior is the solid
// outside the hole, matching the merged loop orientation.
func inCone(p Polygon, i int, q Point) bool {
	n := len(p)
	prev, cur, next := p[(i+n-1)%n], p[i], p[(i+1)%n]
	if cross(prev, cur, next) >= 0 {
		// convex corner
		return cross(cur, next, q) > 0 && cross(prev, cur, q) > 0
	}
	return !(cross(cur, next, q) <= 0 && cross(prev, cur, q) <= 0)
}

// segmentBlocked reports whether segment a-b properly crosses an edge of
// any loop or passes through a vertex other than its endpoints.
func segmentBlocked(a, b Point, loops Polygons) bool {
	for _, p := range loops {
		for i := range p {
			c, d := p[i], p[(i+1)%len(p)]
			if c != a && c != b && onSegment(a, b, c) {
				return true
			}
			if c == a || c == b || d == a || d == b {
				continue
			}
			if properCross(a, b, c, d) {
				return true
			}
		}
	}
	return false
}

func properCross(a, b, c, d Point) bool {
	d1 := cross(a, b, c)
	d2 := cross(a, b, d)
	d3 := cross(c, d, a)
	d4 := cross(c, d, b)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// onSegment reports whether c lies on the closed segment a-b.
func onSegment(a, b, c Point) bool {
	if cross(a, b, c) != 0 {
		return false
	}
	return math.Min(float64(a.X), float64(b.X)) <= float64(c.X) && float64(c.X) <= math.Max(float64(a.X), float64(b.X)) &&
		math.Min(float64(a.Y), float64(b.Y)) <= float64(c.Y) && float64(c.Y) <= math.Max(float64(a.Y), float64(b.Y))
}

// earClip triangulates a counter-clockwise, weakly simple loop and appends
// the triangles to dst.
func earClip(loop Polygon, dst []Triangle) []Triangle {
	n := len(loop)
	if n < 3 {
		return dst
	}
	next := make([]int, n)
	prev := make([]int, n)
	for i := range loop {
		next[i] = (i + 1) % n
		prev[i] = (i + n - 1) % n
	}
	remaining := n
	cur := 0
	stall := 0
	for remaining > 3 {
		if stall > remaining {
			// No ear found in a full pass, the loop is degenerate.
			// Fall back to a fan from the current vertex.
			break
		}
		a, b, c := prev[cur], cur, next[cur]
		turn := cross(loop[a], loop[b], loop[c])
		switch {
		case turn == 0 && !reverses(loop[a], loop[b], loop[c]):
			// collinear vertex contributes no area.
			next[a], prev[c] = c, a
			remaining--
			cur = a
			stall = 0
		case turn > 0 && isEar(loop, next, a, b, c):
			dst = append(dst, Triangle{loop[a], loop[b], loop[c]})
			next[a], prev[c] = c, a
			remaining--
			cur = a
			stall = 0
		default:
			cur = next[cur]
			stall++
		}
	}
	if remaining == 3 {
		a := cur
		b := next[a]
		c := next[b]
		if cross(loop[a], loop[b], loop[c]) > 0 {
			dst = append(dst, Triangle{loop[a], loop[b], loop[c]})
		}
		return dst
	}
	start := cur
	for v := next[next[start]]; v != start; v = next[v] {
		a, b, c := start, prev[v], v
		if cross(loop[a], loop[b], loop[c]) > 0 {
			dst = append(dst, Triangle{loop[a], loop[b], loop[c]})
		}
	}
	return dst
}

// reverses reports whether the path a-b-c doubles back on itself at b.
func reverses(a, b, c Point) bool {
	return float64(b.X-a.X)*float64(c.X-b.X)+float64(b.Y-a.Y)*float64(c.Y-b.Y) < 0
}

// isEar reports whether no other remaining vertex lies inside or on the
// triangle a, b, c. Vertices coincident with a corner are ignored since
// bridges duplicate points.
func isEar(loop Polygon, next []int, a, b, c int) bool {
	pa, pb, pc := loop[a], loop[b], loop[c]
	for v := next[c]; v != a; v = next[v] {
		p := loop[v]
		if p == pa || p == pb || p == pc {
			continue
		}
		if cross(pa, pb, p) >= 0 && cross(pb, pc, p) >= 0 && cross(pc, pa, p) >= 0 {
			return false
		}
	}
	return true
}
