package slicing_test

import (
	"context"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/soypat/csg/boolean"
	"github.com/soypat/csg/internal/d3"
	"github.com/soypat/csg/mesh"
	"github.com/soypat/csg/slicing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func unitCube() *mesh.Mesh { return mesh.Box(r3.Vec{}, d3.Elem(1)) }

func run(t testing.TB, op boolean.Op, items ...slicing.Item) *mesh.Mesh {
	t.Helper()
	e := slicing.NewEngine(slicing.DefaultTolerances())
	require.NoError(t, e.Setup(context.Background(), items, nil))
	m, err := e.Calculate(context.Background(), op, nil)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

func at(m *mesh.Mesh, x, y, z float64) slicing.Item {
	return slicing.Item{Mesh: m, Transform: mgl64.Translate3D(x, y, z)}
}

func TestHalfOverlapCubes(t *testing.T) {
	a := slicing.Item{Mesh: unitCube()}
	b := at(unitCube(), 0.5, 0, 0)
	for _, test := range []struct {
		op       boolean.Op
		min, max r3.Vec
		volume   float64
	}{
		{op: boolean.Union, min: r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}, max: r3.Vec{X: 1, Y: 0.5, Z: 0.5}, volume: 1.5},
		{op: boolean.Intersect, min: r3.Vec{X: 0, Y: -0.5, Z: -0.5}, max: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, volume: 0.5},
		{op: boolean.Subtract, min: r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}, max: r3.Vec{X: 0, Y: 0.5, Z: 0.5}, volume: 0.5},
	} {
		t.Run(test.op.String(), func(t *testing.T) {
			m := run(t, test.op, a, b)
			assert.True(t, m.IsClosed(), "result has %d open edges", m.OpenEdges())
			bb := m.Bounds()
			assert.True(t, d3.EqualWithin(bb.Min, test.min, 1e-9), "min %v", bb.Min)
			assert.True(t, d3.EqualWithin(bb.Max, test.max, 1e-9), "max %v", bb.Max)
			assert.InDelta(t, test.volume, m.Volume(), 1e-9)
		})
	}
}

func TestCallerMeshUntouched(t *testing.T) {
	a, b := unitCube(), unitCube()
	want := b.Copy()
	run(t, boolean.Union, slicing.Item{Mesh: a}, slicing.Item{Mesh: b, Transform: mgl64.Translate3D(0.5, 0, 0)})
	assert.Equal(t, want, b)
}

func TestCommutativity(t *testing.T) {
	a := slicing.Item{Mesh: unitCube()}
	b := at(unitCube(), 0.5, 0.25, 0.25)
	for _, op := range []boolean.Op{boolean.Union, boolean.Intersect} {
		ab := run(t, op, a, b)
		ba := run(t, op, b, a)
		assert.InDelta(t, ab.Volume(), ba.Volume(), 1e-9, op.String())
		assert.Equal(t, len(ab.Faces), len(ba.Faces), op.String())
	}
}

func TestComplementarity(t *testing.T) {
	a := slicing.Item{Mesh: unitCube()}
	b := at(unitCube(), 0.5, 0.25, 0.25)
	union := run(t, boolean.Union, a, b)
	inter := run(t, boolean.Intersect, a, b)
	sub := run(t, boolean.Subtract, a, b)
	for _, m := range []*mesh.Mesh{union, inter, sub} {
		assert.True(t, m.IsClosed(), "result has %d open edges", m.OpenEdges())
	}
	const overlap = 0.5 * 0.75 * 0.75
	assert.InDelta(t, overlap, inter.Volume(), 1e-9)
	assert.InDelta(t, 2-overlap, union.Volume(), 1e-9)
	assert.InDelta(t, 1-overlap, sub.Volume(), 1e-9)
}

func TestRotatedOperand(t *testing.T) {
	a := slicing.Item{Mesh: unitCube()}
	b := slicing.Item{Mesh: unitCube(), Transform: mgl64.Translate3D(0.5, 0, 0).Mul4(mgl64.HomogRotate3DZ(math.Pi / 5))}
	union := run(t, boolean.Union, a, b)
	inter := run(t, boolean.Intersect, a, b)
	assert.InDelta(t, 2, union.Volume()+inter.Volume(), 1e-2)
	assert.Greater(t, inter.Volume(), 0.2)
	assert.True(t, union.IsClosed(), "union has %d open edges", union.OpenEdges())
	assert.True(t, inter.IsClosed(), "intersection has %d open edges", inter.OpenEdges())
}

func TestClosureGeneralPosition(t *testing.T) {
	axis := mgl64.Vec3{1, 2, 3}.Normalize()
	for _, test := range []struct {
		name string
		a, b slicing.Item
	}{
		{
			name: "spheres",
			a:    slicing.Item{Mesh: mesh.UVSphere(r3.Vec{}, 1, 24, 12)},
			b:    at(mesh.UVSphere(r3.Vec{}, 1, 24, 12), 0.7, 0.13, 0.05),
		},
		{
			name: "tilted box",
			a:    slicing.Item{Mesh: unitCube()},
			b:    slicing.Item{Mesh: unitCube(), Transform: mgl64.Translate3D(0.4, 0.1, 0.2).Mul4(mgl64.HomogRotate3D(0.7, axis))},
		},
		{
			name: "sphere and prism",
			a:    slicing.Item{Mesh: mesh.UVSphere(r3.Vec{}, 1, 24, 12)},
			b:    at(mesh.Cylinder(r3.Vec{}, 0.6, 3, 16), 0.1, 0.05, 0),
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			va := test.a.Mesh.Volume()
			vb := test.b.Mesh.Volume()
			union := run(t, boolean.Union, test.a, test.b)
			inter := run(t, boolean.Intersect, test.a, test.b)
			sub := run(t, boolean.Subtract, test.a, test.b)
			rsub := run(t, boolean.Subtract, test.b, test.a)
			for _, r := range []struct {
				op string
				m  *mesh.Mesh
			}{{"union", union}, {"intersect", inter}, {"subtract", sub}, {"reverse subtract", rsub}} {
				assert.Zero(t, r.m.OpenEdges(), "%s has open edges", r.op)
				assert.True(t, r.m.IsClosed(), r.op)
			}
			assert.InDelta(t, va+vb, union.Volume()+inter.Volume(), 1e-3)
			assert.InDelta(t, va, sub.Volume()+inter.Volume(), 1e-3)
			assert.InDelta(t, vb, rsub.Volume()+inter.Volume(), 1e-3)
		})
	}
}

func TestZeroTolerancesUseDefaults(t *testing.T) {
	assert.Equal(t, slicing.DefaultTolerances(), slicing.Tolerances{}.WithDefaults())
	custom := slicing.Tolerances{PlaneDistance: 1e-4, PlaneNormal: -1, Weld: 2e-3}
	assert.Equal(t, slicing.Tolerances{PlaneDistance: 1e-4, PlaneNormal: 1e-6, Weld: 2e-3}, custom.WithDefaults())

	rot := mgl64.HomogRotate3D(0.7, mgl64.Vec3{1, 2, 3}.Normalize())
	items := []slicing.Item{
		{Mesh: unitCube(), Transform: rot},
		{Mesh: unitCube(), Transform: mgl64.Translate3D(3, 0, 0).Mul4(rot)},
	}
	for name, e := range map[string]*slicing.Engine{
		"constructor": slicing.NewEngine(slicing.Tolerances{}),
		"zero value":  {},
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, e.Setup(context.Background(), items, nil))
			m, err := e.Calculate(context.Background(), boolean.Union, nil)
			require.NoError(t, err)
			assert.Len(t, m.Faces, 24)
			assert.InDelta(t, 2, m.Volume(), 1e-9)
			assert.True(t, m.IsClosed())
		})
	}
	m, err := slicing.PerFace(context.Background(), items, boolean.Union, slicing.Tolerances{}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2, m.Volume(), 1e-9)
	assert.True(t, m.IsClosed())
}

func TestSelfOperation(t *testing.T) {
	a := slicing.Item{Mesh: unitCube()}
	for _, op := range []boolean.Op{boolean.Union, boolean.Intersect} {
		m := run(t, op, a, a)
		assert.InDelta(t, 1, m.Volume(), 1e-9, op.String())
		assert.True(t, m.IsClosed(), op.String())
	}
}

func TestDisjointUnion(t *testing.T) {
	a := slicing.Item{Mesh: unitCube()}
	b := at(unitCube(), 3, 0, 0)
	m := run(t, boolean.Union, a, b)
	assert.Len(t, m.Faces, 24)
	assert.InDelta(t, 2, m.Volume(), 1e-9)
	assert.True(t, m.IsClosed())
}

func TestSubtractNonOverlap(t *testing.T) {
	a := slicing.Item{Mesh: unitCube()}
	b := at(unitCube(), 3, 0, 0)
	m := run(t, boolean.Subtract, a, b)
	assert.Len(t, m.Vertices, 8)
	assert.Len(t, m.Faces, 12)
	assert.InDelta(t, 1, m.Volume(), 1e-9)
}

func TestCoplanarTouchingUnion(t *testing.T) {
	a := slicing.Item{Mesh: unitCube()}
	b := at(unitCube(), 1, 0, 0)
	m := run(t, boolean.Union, a, b)
	assert.True(t, m.IsClosed())
	assert.InDelta(t, 2, m.Volume(), 1e-9)
	assert.Len(t, m.Faces, 12)
	for i := range m.Faces {
		tri := m.Triangle(i)
		c := r3.Scale(1.0/3, r3.Add(tri[0], r3.Add(tri[1], tri[2])))
		assert.False(t, math.Abs(c.X-0.5) < 1e-9 && math.Abs(m.Faces[i].Normal.X) > 0.5, "internal face at shared plane")
	}
}

func TestThreeWaySubtract(t *testing.T) {
	a := slicing.Item{Mesh: mesh.Box(r3.Vec{}, r3.Vec{X: 3, Y: 1, Z: 1})}
	b := at(unitCube(), -1, 0, 0)
	c := at(unitCube(), 1, 0, 0)
	m := run(t, boolean.Subtract, a, b, c)
	assert.True(t, m.IsClosed())
	assert.InDelta(t, 1, m.Volume(), 1e-9)
	bb := m.Bounds()
	assert.InDelta(t, -0.5, bb.Min.X, 1e-9)
	assert.InDelta(t, 0.5, bb.Max.X, 1e-9)
}

func TestCancellation(t *testing.T) {
	e := slicing.NewEngine(slicing.DefaultTolerances())
	items := []slicing.Item{{Mesh: unitCube()}, at(unitCube(), 0.5, 0, 0)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Setup(ctx, items, nil), context.Canceled)

	require.NoError(t, e.Setup(context.Background(), items, nil))
	before := e.Meshes()[1].Copy()
	m, err := e.Calculate(ctx, boolean.Union, nil)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, e.Meshes()[1])

	// cancel partway through
	ctx, cancel = context.WithCancel(context.Background())
	calls := 0
	m, err = e.Calculate(ctx, boolean.Union, func(float64, string) {
		calls++
		if calls == 3 {
			cancel()
		}
	})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, context.Canceled)

	m, err = e.Calculate(context.Background(), boolean.Union, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, m.Volume(), 1e-9)
}

func TestProgressMonotonic(t *testing.T) {
	e := slicing.NewEngine(slicing.DefaultTolerances())
	var got []float64
	progress := func(p float64, _ string) { got = append(got, p) }
	require.NoError(t, e.Setup(context.Background(), []slicing.Item{{Mesh: unitCube()}, at(unitCube(), 0.5, 0, 0)}, nil))
	_, err := e.Calculate(context.Background(), boolean.Intersect, progress)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
	}
	assert.Equal(t, 1.0, got[len(got)-1])
}

func TestEngineErrors(t *testing.T) {
	e := slicing.NewEngine(slicing.DefaultTolerances())
	_, err := e.Calculate(context.Background(), boolean.Union, nil)
	assert.ErrorIs(t, err, slicing.ErrNotSetup)
	assert.ErrorIs(t, e.Setup(context.Background(), nil, nil), slicing.ErrNoMeshes)
	assert.Error(t, e.Setup(context.Background(), []slicing.Item{{}}, nil))
}

func TestPlaneDedup(t *testing.T) {
	e := slicing.NewEngine(slicing.DefaultTolerances())
	require.NoError(t, e.Setup(context.Background(), []slicing.Item{{Mesh: unitCube()}, at(unitCube(), 0.5, 0, 0)}, nil))
	// x = -0.5, 0, 0.5, 1 plus y and z planes at +-0.5.
	assert.Equal(t, 8, e.Planes())
}

func TestPerFace(t *testing.T) {
	a := slicing.Item{Mesh: unitCube()}
	b := at(unitCube(), 0.5, 0.25, 0.25)
	const overlap = 0.5 * 0.75 * 0.75
	for _, test := range []struct {
		op     boolean.Op
		volume float64
	}{
		{op: boolean.Union, volume: 2 - overlap},
		{op: boolean.Intersect, volume: overlap},
		{op: boolean.Subtract, volume: 1 - overlap},
	} {
		m, err := slicing.PerFace(context.Background(), []slicing.Item{a, b}, test.op, slicing.DefaultTolerances(), nil)
		require.NoError(t, err)
		assert.InDelta(t, test.volume, m.Volume(), 1e-9, test.op.String())
		assert.True(t, m.IsClosed(), test.op.String())
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := slicing.PerFace(ctx, []slicing.Item{a, b}, boolean.Union, slicing.DefaultTolerances(), nil)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkEngineSpheres(b *testing.B) {
	s := mesh.UVSphere(r3.Vec{}, 1, 32, 16)
	items := []slicing.Item{{Mesh: s}, at(s, 0.7, 0.1, 0)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := slicing.NewEngine(slicing.DefaultTolerances())
		if err := e.Setup(context.Background(), items, nil); err != nil {
			b.Fatal(err)
		}
		if _, err := e.Calculate(context.Background(), boolean.Union, nil); err != nil {
			b.Fatal(err)
		}
	}
}
