package implicit

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	"github.com/soypat/csg/boolean"
	"github.com/soypat/csg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Method is a surface extraction algorithm.
type Method int

const (
	MarchingCubes Method = iota
	DualContouring
)

func (m Method) String() string {
	if m == DualContouring {
		return "dual contouring"
	}
	return "marching cubes"
}

// MinFaces is the smallest face count of an operand that can enclose a volume.
const MinFaces = 4

// Combine returns the boolean combination of fields. Subtract removes
// the union of every following field from the first one. It returns nil
// when no fields are given.
func Combine(op boolean.Op, fields ...sdf.SDF3) sdf.SDF3 {
	switch {
	case len(fields) == 0:
		return nil
	case len(fields) == 1:
		return fields[0]
	}
	switch op {
	case boolean.Subtract:
		rest := fields[1]
		if len(fields) > 2 {
			rest = sdf.Union3D(fields[1:]...)
		}
		return sdf.Difference3D(fields[0], rest)
	case boolean.Intersect:
		acc := fields[0]
		for _, f := range fields[1:] {
			acc = sdf.Intersect3D(acc, f)
		}
		return acc
	}
	return sdf.Union3D(fields...)
}

// Extract renders the zero level set of f with resolution cells along the
// longest side of its bounding box. The result is welded and cleaned.
func Extract(ctx context.Context, f sdf.SDF3, resolution int, method Method) (*mesh.Mesh, error) {
	if resolution < 2 {
		return nil, fmt.Errorf("implicit: resolution %d too small", resolution)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var r render.Render3
	switch method {
	case DualContouring:
		r = render.NewDualContouringDefault(resolution)
	default:
		r = render.NewMarchingCubesUniform(resolution)
	}
	tris := render.ToTriangles(f, r)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bb := f.BoundingBox()
	long := math.Max(bb.Max.X-bb.Min.X, math.Max(bb.Max.Y-bb.Min.Y, bb.Max.Z-bb.Min.Z))
	rt := make([]r3.Triangle, 0, len(tris))
	for _, t := range tris {
		var tri r3.Triangle
		for j := 0; j < 3; j++ {
			tri[j] = r3.Vec{X: t[j].X, Y: t[j].Y, Z: t[j].Z}
		}
		rt = append(rt, tri)
	}
	return mesh.FromTriangles(rt, 1e-4*long/float64(resolution)), nil
}

// Options configure Boolean.
type Options struct {
	// InputResolution is the sampling resolution of each operand.
	InputResolution int
	// OutputResolution is the extraction resolution of the result.
	OutputResolution int
	Method           Method
	Sign             Sign
	// Logger receives warnings. Nil uses log.Default.
	Logger *log.Logger
}

// Boolean combines all meshes in one pass: each is sampled at the input
// resolution, the samples are combined and a surface is extracted at the
// output resolution. Operands with fewer than MinFaces faces are treated
// as empty. Meshes are expected in world coordinates and are not modified.
func Boolean(ctx context.Context, meshes []*mesh.Mesh, op boolean.Op, opts Options, progress func(float64, string)) (*mesh.Mesh, error) {
	if progress == nil {
		progress = func(float64, string) {}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(meshes) == 0 {
		return &mesh.Mesh{}, nil
	}
	solid := func(m *mesh.Mesh) bool { return m != nil && len(m.Faces) >= MinFaces }
	var operands []*mesh.Mesh
	switch op {
	case boolean.Intersect:
		for _, m := range meshes {
			if !solid(m) {
				return &mesh.Mesh{}, nil
			}
		}
		operands = meshes
	case boolean.Subtract:
		if !solid(meshes[0]) {
			return &mesh.Mesh{}, nil
		}
		operands = append(operands, meshes[0])
		for _, m := range meshes[1:] {
			if solid(m) {
				operands = append(operands, m)
			}
		}
	default:
		for _, m := range meshes {
			if solid(m) {
				operands = append(operands, m)
			}
		}
	}
	switch len(operands) {
	case 0:
		return &mesh.Mesh{}, nil
	case 1:
		return operands[0].Copy(), nil
	}

	fields := make([]sdf.SDF3, len(operands))
	for i, m := range operands {
		sign := opts.Sign
		if sign == SignAuto && !m.IsClosed() {
			logger.Printf("implicit: operand %d is not closed, using winding number sign", i)
			sign = SignWinding
		}
		g, err := Sample(ctx, FromMesh(m, sign), opts.InputResolution)
		if err != nil {
			return nil, err
		}
		fields[i] = g
		progress(0.8*float64(i+1)/float64(len(operands)), "sampling")
	}
	result, err := Extract(ctx, Combine(op, fields...), opts.OutputResolution, opts.Method)
	if err != nil {
		return nil, err
	}
	progress(1, "extracted")
	return result, nil
}
