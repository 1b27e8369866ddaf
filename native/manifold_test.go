//go:build manifold

package native

import (
	"testing"

	"github.com/soypat/csg/boolean"
	"github.com/soypat/csg/internal/d3"
	"github.com/soypat/csg/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestBooleanCubes(t *testing.T) {
	require.True(t, Available())
	a := mesh.Box(r3.Vec{}, d3.Elem(1))
	b := mesh.Box(r3.Vec{X: 0.5}, d3.Elem(1))
	for _, test := range []struct {
		op         boolean.Op
		volume     float64
		minX, maxX float64
	}{
		{op: boolean.Union, volume: 1.5, minX: -0.5, maxX: 1},
		{op: boolean.Intersect, volume: 0.5, minX: 0, maxX: 0.5},
		{op: boolean.Subtract, volume: 0.5, minX: -0.5, maxX: 0},
	} {
		m, err := Boolean(a, b, test.op)
		require.NoError(t, err, test.op)
		assert.InDelta(t, test.volume, m.Volume(), 1e-5, test.op)
		bb := m.Bounds()
		assert.InDelta(t, test.minX, bb.Min.X, 1e-6, test.op)
		assert.InDelta(t, test.maxX, bb.Max.X, 1e-6, test.op)
		assert.True(t, m.IsClosed(), test.op)
	}
}

func TestBooleanRejectsOpenMesh(t *testing.T) {
	a := mesh.Box(r3.Vec{}, d3.Elem(1))
	open := a.Copy()
	open.Faces = open.Faces[1:]
	_, err := Boolean(a, open, boolean.Union)
	assert.Error(t, err)
}
