//go:build manifold

package native

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"fmt"
	"strconv"
	"sync"
	"unsafe"

	"github.com/soypat/csg/boolean"
	"github.com/soypat/csg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// mu serializes calls into the library.
var mu sync.Mutex

// Available reports whether Boolean is backed by the native library.
func Available() bool { return strconv.IntSize == 64 }

// Boolean combines a and b with op. Inputs must be closed and
// consistently oriented. Library failures and panics are returned as errors.
func Boolean(a, b *mesh.Mesh, op boolean.Op) (result *mesh.Mesh, err error) {
	if !Available() {
		return nil, ErrUnavailable
	}
	if !op.Valid() {
		return nil, fmt.Errorf("native: invalid operation %v", op)
	}
	mu.Lock()
	defer mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("native: %v", r)
		}
	}()

	ma, err := toManifold(a)
	if err != nil {
		return nil, fmt.Errorf("native: first operand: %w", err)
	}
	defer C.manifold_delete_manifold(ma)
	mb, err := toManifold(b)
	if err != nil {
		return nil, fmt.Errorf("native: second operand: %w", err)
	}
	defer C.manifold_delete_manifold(mb)

	alloc := unsafe.Pointer(C.manifold_alloc_manifold())
	var out *C.ManifoldManifold
	switch op {
	case boolean.Subtract:
		out = C.manifold_difference(alloc, ma, mb)
	case boolean.Intersect:
		out = C.manifold_intersection(alloc, ma, mb)
	default:
		out = C.manifold_union(alloc, ma, mb)
	}
	defer C.manifold_delete_manifold(out)
	if st := C.manifold_status(out); st != C.MANIFOLD_NO_ERROR {
		return nil, fmt.Errorf("native: %v failed with status %d", op, int(st))
	}
	return fromManifold(out), nil
}

func toManifold(m *mesh.Mesh) (*C.ManifoldManifold, error) {
	verts, tris, err := flatten(m)
	if err != nil {
		return nil, err
	}
	gl := C.manifold_meshgl(unsafe.Pointer(C.manifold_alloc_meshgl()),
		(*C.float)(unsafe.Pointer(&verts[0])), C.size_t(len(m.Vertices)), 3,
		(*C.uint32_t)(unsafe.Pointer(&tris[0])), C.size_t(len(m.Faces)),
	)
	defer C.manifold_delete_meshgl(gl)
	ptr := C.manifold_of_meshgl(unsafe.Pointer(C.manifold_alloc_manifold()), gl)
	if st := C.manifold_status(ptr); st != C.MANIFOLD_NO_ERROR {
		C.manifold_delete_manifold(ptr)
		return nil, fmt.Errorf("not a manifold (status %d)", int(st))
	}
	return ptr, nil
}

func fromManifold(ptr *C.ManifoldManifold) *mesh.Mesh {
	gl := C.manifold_get_meshgl(unsafe.Pointer(C.manifold_alloc_meshgl()), ptr)
	defer C.manifold_delete_meshgl(gl)

	numVert := int(C.manifold_meshgl_num_vert(gl))
	numTri := int(C.manifold_meshgl_num_tri(gl))
	if numVert == 0 || numTri == 0 {
		return &mesh.Mesh{}
	}
	numProp := int(C.manifold_meshgl_num_prop(gl))
	props := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties((*C.float)(unsafe.Pointer(&props[0])), gl)
	indices := make([]uint32, 3*numTri)
	C.manifold_meshgl_tri_verts((*C.uint32_t)(unsafe.Pointer(&indices[0])), gl)

	verts := make([]r3.Vec, numVert)
	for i := range verts {
		p := props[i*numProp:]
		verts[i] = r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
	}
	faces := make([][3]int, numTri)
	for i := range faces {
		faces[i] = [3]int{int(indices[3*i]), int(indices[3*i+1]), int(indices[3*i+2])}
	}
	return mesh.New(verts, faces)
}
