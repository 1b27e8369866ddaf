package polygon_test

import (
	"math"
	"testing"

	"github.com/soypat/csg/polygon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func square(x0, y0, x1, y1 int64) polygon.Polygon {
	return polygon.Polygon{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func TestFixedPointConversion(t *testing.T) {
	p := polygon.FromR2(r2.Vec{X: 0.5, Y: -1.2344})
	assert.Equal(t, polygon.Point{X: 500, Y: -1234}, p)
	assert.Equal(t, r2.Vec{X: 0.5, Y: -1.234}, p.R2())
}

func TestClip(t *testing.T) {
	a := polygon.Polygons{square(0, 0, 10, 10)}
	b := polygon.Polygons{square(5, 0, 15, 10)}
	for _, test := range []struct {
		op   polygon.Op
		area float64
	}{
		{op: polygon.Union, area: 150},
		{op: polygon.Difference, area: 50},
		{op: polygon.Intersection, area: 50},
	} {
		t.Run(test.op.String(), func(t *testing.T) {
			got := polygon.Clip(test.op, a, b)
			require.Len(t, got, 1)
			assert.True(t, got[0].CCW())
			assert.Equal(t, test.area, got.Area())
		})
	}
}

func TestClipEmptyOperands(t *testing.T) {
	a := polygon.Polygons{square(0, 0, 10, 10)}
	assert.Empty(t, polygon.Clip(polygon.Intersection, a, nil))
	assert.Empty(t, polygon.Clip(polygon.Difference, nil, a))
	assert.Equal(t, 100.0, polygon.Clip(polygon.Difference, a, nil).Area())
	assert.Equal(t, 100.0, polygon.Clip(polygon.Union, nil, a).Area())
	assert.Empty(t, polygon.UnionAll())
	assert.Empty(t, polygon.Clip(polygon.Intersection, a, polygon.Polygons{square(20, 20, 30, 30)}))
}

func TestDifferenceCreatesHole(t *testing.T) {
	outer := polygon.Polygons{square(0, 0, 10, 10)}
	inner := polygon.Polygons{square(3, 3, 6, 6)}
	got := polygon.Clip(polygon.Difference, outer, inner)
	require.Len(t, got, 2)
	assert.Equal(t, 91.0, got.Area())
	assert.True(t, got.Contains(polygon.Point{X: 1, Y: 1}))
	assert.False(t, got.Contains(polygon.Point{X: 4, Y: 4}))
	w, onEdge := got.Winding(polygon.Point{X: 3, Y: 4})
	assert.True(t, onEdge)
	assert.Equal(t, 1, w)
}

func TestNonZeroFill(t *testing.T) {
	// two overlapping counter-clockwise loops fill their union.
	ps := polygon.Polygons{square(0, 0, 10, 10), square(5, 5, 15, 15)}
	assert.Equal(t, 175.0, polygon.UnionAll(ps).Area())
	// a clockwise loop inside a counter-clockwise one is a hole.
	ps = polygon.Polygons{square(0, 0, 10, 10), square(2, 2, 4, 4).Reverse()}
	assert.Equal(t, 96.0, polygon.UnionAll(ps).Area())
}

func TestNormalizeDeterministic(t *testing.T) {
	a := polygon.Polygons{square(0, 0, 1, 1), square(5, 5, 6, 6)}
	b := polygon.Polygons{
		{{X: 6, Y: 6}, {X: 5, Y: 6}, {X: 5, Y: 5}, {X: 6, Y: 5}},
		{{X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 0}},
	}
	assert.Equal(t, a.Normalize(), b.Normalize())
	assert.True(t, polygon.Equal(a, b))
}

func TestCorrectWinding(t *testing.T) {
	// outer clockwise, hole counter-clockwise: both wrong.
	loops := polygon.Polygons{square(0, 0, 10, 10).Reverse(), square(3, 3, 6, 6)}
	got := polygon.CorrectWinding(loops)
	assert.Equal(t, 91.0, got.Area())
	// island inside the hole is solid again.
	loops = append(loops, square(4, 4, 5, 5).Reverse())
	got = polygon.CorrectWinding(loops)
	assert.Equal(t, 92.0, got.Area())
}

func TestTriangulate(t *testing.T) {
	for _, test := range []struct {
		name string
		ps   polygon.Polygons
	}{
		{name: "square", ps: polygon.Polygons{square(0, 0, 10, 10)}},
		{name: "concave", ps: polygon.Polygons{{{0, 0}, {10, 0}, {10, 10}, {5, 3}, {0, 10}}}},
		{name: "hole", ps: polygon.Polygons{square(0, 0, 10, 10), square(3, 3, 6, 6).Reverse()}},
		{name: "two holes", ps: polygon.Polygons{square(0, 0, 20, 10), square(2, 2, 6, 6).Reverse(), square(12, 3, 15, 8).Reverse()}},
		{name: "disjoint", ps: polygon.Polygons{square(0, 0, 1, 1), square(3, 0, 4, 1)}},
		{name: "nested island", ps: polygon.Polygons{square(0, 0, 10, 10), square(2, 2, 8, 8).Reverse(), square(4, 4, 6, 6)}},
		{name: "comb", ps: polygon.Polygons{{{0, 0}, {9, 0}, {9, 5}, {8, 5}, {8, 1}, {6, 1}, {6, 5}, {5, 5}, {5, 1}, {3, 1}, {3, 5}, {2, 5}, {2, 1}, {0, 1}}}},
	} {
		t.Run(test.name, func(t *testing.T) {
			want := polygon.UnionAll(test.ps).Area()
			tris := polygon.Triangulate(test.ps)
			require.NotEmpty(t, tris)
			var area float64
			var pieces polygon.Polygons
			for _, tri := range tris {
				p := polygon.Polygon(tri[:])
				a := p.Area()
				assert.Greater(t, a, 0.0, "triangle %v not counter-clockwise", tri)
				area += a
				pieces = append(pieces, p)
			}
			assert.InDelta(t, want, area, 1e-9)
			// triangles must tile the region without overlap.
			assert.True(t, polygon.Equal(pieces, test.ps))
			assert.InDelta(t, want, polygon.UnionAll(pieces).Area(), 1e-9)
		})
	}
}

func TestTriangulateCircleWithHole(t *testing.T) {
	var outer, hole polygon.Polygon
	const n = 64
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / n
		outer = append(outer, polygon.FromR2(r2.Vec{X: 10 * math.Cos(a), Y: 10 * math.Sin(a)}))
		hole = append(hole, polygon.FromR2(r2.Vec{X: 2 + 3*math.Cos(-a), Y: 3 * math.Sin(-a)}))
	}
	ps := polygon.Polygons{outer, hole}
	tris := polygon.Triangulate(ps)
	var area float64
	for _, tri := range tris {
		area += polygon.Polygon(tri[:]).Area()
	}
	assert.InDelta(t, polygon.UnionAll(ps).Area(), area, 1e-6)
}
