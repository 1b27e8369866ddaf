// Package csg combines triangle meshes with boolean operations.
//
// Do and DoArray place every operand in world space and dispatch to one of
// several strategies selected by ProcessingMode: an exact engine that
// slices faces against the planes of the other operands, a simpler per
// face variant, or an implicit path that samples signed distance fields
// and extracts a new surface.
package csg

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/soypat/csg/boolean"
	"github.com/soypat/csg/mesh"
	"github.com/soypat/csg/slicing"
)

// Operation is a boolean operation between solids.
type Operation = boolean.Op

const (
	Union     = boolean.Union
	Subtract  = boolean.Subtract
	Intersect = boolean.Intersect
)

// ErrNoItems is returned by DoArray when called without operands.
var ErrNoItems = errors.New("csg: no items")

// ProcessingMode selects the strategy used to compute a boolean.
type ProcessingMode int

const (
	// Polygons computes exact booleans, through the native library when
	// it is available and the slicing engine otherwise.
	Polygons ProcessingMode = iota
	// Polygons2 slices each face on its own plane without co-planar
	// resolution. Slower on co-planar heavy input.
	Polygons2
	// MarchingCubes samples each operand as an implicit function and
	// extracts the result with marching cubes.
	MarchingCubes
	// DualContouring is MarchingCubes with dual contouring extraction,
	// which keeps sharp features better.
	DualContouring
)

var modeNames = [...]string{
	Polygons:       "polygons",
	Polygons2:      "polygons2",
	MarchingCubes:  "marching-cubes",
	DualContouring: "dual-contouring",
}

func (m ProcessingMode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("ProcessingMode(%d)", int(m))
}

// Implicit reports whether m combines all operands in a single pass.
func (m ProcessingMode) Implicit() bool { return m == MarchingCubes || m == DualContouring }

// ParseMode returns the mode named s. Underscores and dashes are
// interchangeable and case is ignored.
func ParseMode(s string) (ProcessingMode, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for m, n := range modeNames {
		if n == name {
			return ProcessingMode(m), nil
		}
	}
	return 0, fmt.Errorf("csg: unknown processing mode %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ProcessingMode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Resolution is the number of grid cells along the longest side of a
// bounding box in the implicit modes.
type Resolution int

const (
	Res64  Resolution = 64
	Res128 Resolution = 128
	Res256 Resolution = 256
	Res512 Resolution = 512
)

// Valid reports whether r is one of the predefined resolutions.
func (r Resolution) Valid() bool {
	return r == Res64 || r == Res128 || r == Res256 || r == Res512
}

// ProgressFunc receives a ratio in [0, 1] that never decreases and a
// short status. It is called from the goroutine running the operation and
// must not block.
type ProgressFunc func(progress float64, status string)

// Item is an operand: a mesh in local coordinates and the transform
// placing it in the world. A zero Transform is the identity.
type Item struct {
	Mesh      *mesh.Mesh
	Transform mgl64.Mat4
}

// Options configure Do and DoArray.
type Options struct {
	Mode ProcessingMode
	// InputResolution is the sampling resolution of each operand in the
	// implicit modes.
	InputResolution Resolution
	// OutputResolution is the resolution the implicit result is
	// extracted at.
	OutputResolution Resolution
	Progress         ProgressFunc
	// Logger receives warnings such as a native library failure. Nil uses
	// log.Default.
	Logger     *log.Logger
	Tolerances slicing.Tolerances
}

// DefaultOptions returns exact polygon processing with 128 cell implicit
// resolutions and the slicing engine default tolerances.
func DefaultOptions() Options {
	return Options{
		Mode:             Polygons,
		InputResolution:  Res128,
		OutputResolution: Res128,
		Tolerances:       slicing.DefaultTolerances(),
	}
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// Do returns op applied to a and b. For Subtract b is removed from a.
// Caller meshes are never modified. On cancellation Do returns nil and
// the context error.
func Do(ctx context.Context, a, b Item, op Operation, opts Options) (*mesh.Mesh, error) {
	return DoArray(ctx, []Item{a, b}, op, opts)
}

// DoArray applies op across items. Exact modes fold pairwise from the
// left, so Subtract yields items[0] - items[1] - items[2] ... while the
// implicit modes combine every operand in one pass. A single item is
// returned placed in world space.
func DoArray(ctx context.Context, items []Item, op Operation, opts Options) (*mesh.Mesh, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if !op.Valid() {
		return nil, fmt.Errorf("csg: invalid operation %v", op)
	}
	for i, it := range items {
		if it.Mesh == nil {
			return nil, fmt.Errorf("csg: item %d has no mesh", i)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress := monotonic(opts.Progress)
	if len(items) == 1 {
		progress(1, "done")
		return items[0].Mesh.Placed(items[0].Transform), nil
	}
	s, err := NewStrategy(opts)
	if err != nil {
		return nil, err
	}
	if opts.Mode.Implicit() {
		return s.Boolean(ctx, items, op, progress)
	}

	steps := float64(len(items) - 1)
	acc := items[0]
	for i, next := range items[1:] {
		step := float64(i)
		m, err := s.Boolean(ctx, []Item{acc, next}, op, func(p float64, status string) {
			progress((step+p)/steps, status)
		})
		if err != nil {
			return nil, err
		}
		acc = Item{Mesh: m}
	}
	progress(1, "done")
	return acc.Mesh, nil
}

// monotonic wraps fn so reported progress never decreases and a nil
// fn is safe to call.
func monotonic(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(float64, string) {}
	}
	var last float64
	return func(p float64, status string) {
		if p < last {
			p = last
		}
		if p > 1 {
			p = 1
		}
		last = p
		fn(p, status)
	}
}
