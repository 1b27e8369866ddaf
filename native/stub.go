//go:build !manifold

package native

import (
	"github.com/soypat/csg/boolean"
	"github.com/soypat/csg/mesh"
)

// Available reports whether Boolean is backed by the native library.
func Available() bool { return false }

// Boolean returns ErrUnavailable.
func Boolean(a, b *mesh.Mesh, op boolean.Op) (*mesh.Mesh, error) {
	return nil, ErrUnavailable
}
