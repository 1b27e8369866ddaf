package slicing

import (
	"context"
	"fmt"

	"github.com/soypat/csg/boolean"
	"github.com/soypat/csg/mesh"
	"github.com/soypat/csg/polygon"
	"github.com/soypat/csg/slicer"
)

// PerFace computes op like Engine but slices on each face's own plane,
// without a plane index, section cache or co-planar resolution. Regions
// shared by coplanar faces of different operands may be emitted twice.
func PerFace(ctx context.Context, items []Item, op boolean.Op, tol Tolerances, progress ProgressFunc) (*mesh.Mesh, error) {
	if len(items) == 0 {
		return nil, ErrNoMeshes
	}
	if !op.Valid() {
		return nil, fmt.Errorf("slicing: invalid operation %v", op)
	}
	tol = tol.WithDefaults()
	b := builder{result: &mesh.Mesh{}}
	var bihs []*mesh.BIH
	total := 0
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if it.Mesh == nil {
			return nil, fmt.Errorf("slicing: item %d has no mesh", i)
		}
		m := it.Mesh.Placed(it.Transform)
		b.meshes = append(b.meshes, m)
		bihs = append(bihs, mesh.NewBIH(m))
		total += len(m.Faces)
	}
	b.snap = newSnapper(b.meshes, bihs, tol).snap
	done := 0
	for i, m := range b.meshes {
		for fi := range m.Faces {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			done++
			p, ok := m.Plane(fi)
			if !ok {
				continue
			}
			f := p.Frame()
			section := func(j int, side slicer.Side) polygon.Polygons {
				return slicer.Slice(b.meshes[j], bihs[j], p, f, side)
			}
			b.face(op, i, fi, 1, f, section)
			progress.report(0.95*float64(done)/float64(total), "faces")
		}
	}
	b.result.Clean(tol.Weld)
	progress.report(1, "done")
	return b.result, nil
}
