package csg

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/soypat/csg/implicit"
	"github.com/soypat/csg/mesh"
	"github.com/soypat/csg/native"
	"github.com/soypat/csg/slicing"
)

// Strategy computes a boolean over operands. Implementations do not
// modify the operand meshes.
type Strategy interface {
	Boolean(ctx context.Context, items []Item, op Operation, progress ProgressFunc) (*mesh.Mesh, error)
}

// NewStrategy returns the strategy for opts.Mode. In Polygons mode the
// native library is tried first when available, falling back to the
// slicing engine on any error.
func NewStrategy(opts Options) (Strategy, error) {
	switch opts.Mode {
	case Polygons:
		exact := Slicing{Tolerances: opts.Tolerances}
		if !native.Available() {
			return exact, nil
		}
		return Fallback{Primary: Native{}, Secondary: exact, Logger: opts.logger()}, nil
	case Polygons2:
		return PerFace{Tolerances: opts.Tolerances}, nil
	case MarchingCubes, DualContouring:
		method := implicit.MarchingCubes
		if opts.Mode == DualContouring {
			method = implicit.DualContouring
		}
		return Implicit{Options: implicit.Options{
			InputResolution:  int(opts.InputResolution),
			OutputResolution: int(opts.OutputResolution),
			Method:           method,
			Logger:           opts.logger(),
		}}, nil
	}
	return nil, fmt.Errorf("csg: unknown processing mode %v", opts.Mode)
}

func report(progress ProgressFunc) func(float64, string) {
	if progress == nil {
		return func(float64, string) {}
	}
	return progress
}

// Slicing is the exact engine with plane indexing and co-planar resolution.
type Slicing struct {
	Tolerances slicing.Tolerances
}

func (s Slicing) Boolean(ctx context.Context, items []Item, op Operation, progress ProgressFunc) (*mesh.Mesh, error) {
	fn := report(progress)
	e := slicing.NewEngine(s.Tolerances)
	err := e.Setup(ctx, slicingItems(items), func(p float64, status string) { fn(0.1*p, status) })
	if err != nil {
		return nil, err
	}
	return e.Calculate(ctx, op, func(p float64, status string) { fn(0.1+0.9*p, status) })
}

// PerFace is the exact engine slicing each face on its own plane.
type PerFace struct {
	Tolerances slicing.Tolerances
}

func (s PerFace) Boolean(ctx context.Context, items []Item, op Operation, progress ProgressFunc) (*mesh.Mesh, error) {
	return slicing.PerFace(ctx, slicingItems(items), op, s.Tolerances, slicing.ProgressFunc(progress))
}

func slicingItems(items []Item) []slicing.Item {
	out := make([]slicing.Item, len(items))
	for i, it := range items {
		out[i] = slicing.Item{Mesh: it.Mesh, Transform: it.Transform}
	}
	return out
}

// Implicit combines all operands as sampled distance fields in one pass.
type Implicit struct {
	Options implicit.Options
}

func (s Implicit) Boolean(ctx context.Context, items []Item, op Operation, progress ProgressFunc) (*mesh.Mesh, error) {
	meshes := make([]*mesh.Mesh, len(items))
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meshes[i] = it.Mesh.Placed(it.Transform)
	}
	return implicit.Boolean(ctx, meshes, op, s.Options, report(progress))
}

// Native runs the boolean in the native library, folding pairwise from
// the left when given more than two operands.
type Native struct{}

func (Native) Boolean(ctx context.Context, items []Item, op Operation, progress ProgressFunc) (*mesh.Mesh, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	fn := report(progress)
	acc := items[0].Mesh.Placed(items[0].Transform)
	for i, it := range items[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := native.Boolean(acc, it.Mesh.Placed(it.Transform), op)
		if err != nil {
			return nil, err
		}
		acc = m
		fn(float64(i+1)/float64(len(items)-1), "native")
	}
	return acc, nil
}

// Fallback runs Primary and, when it fails for any reason other than
// cancellation, logs the error and runs Secondary.
type Fallback struct {
	Primary, Secondary Strategy
	// Logger receives the primary error. Nil uses log.Default.
	Logger *log.Logger
}

func (s Fallback) Boolean(ctx context.Context, items []Item, op Operation, progress ProgressFunc) (*mesh.Mesh, error) {
	m, err := s.Primary.Boolean(ctx, items, op, progress)
	if err == nil {
		return m, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("csg: %v, falling back", err)
	return s.Secondary.Boolean(ctx, items, op, progress)
}
