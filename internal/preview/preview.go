// Package preview renders meshes to shaded images.
package preview

import (
	"errors"
	"image"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/csg/internal/d3"
	"github.com/soypat/csg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// View places the camera. The mesh is fitted into the bi-unit cube
// centered at the origin before rendering.
type View struct {
	// what position (point) to look at
	LookAt r3.Vec
	// which way is up (direction)
	Up r3.Vec
	// where the camera/eye located at (point)
	Eye       r3.Vec
	Near, Far float64
}

// Isometric looks at the origin from the positive octant.
var Isometric = View{
	Up:   r3.Vec{Z: 1},
	Eye:  d3.Elem(2.4),
	Near: 1,
	Far:  10,
}

const (
	supersample = 2
	fovy        = 30 // vertical field of view in degrees
)

// Render draws m with a phong shader at width by height pixels.
func Render(m *mesh.Mesh, view View, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("preview: size must be positive")
	}
	if len(m.Faces) == 0 {
		return nil, mesh.ErrEmpty
	}
	tris := make([]*fauxgl.Triangle, len(m.Faces))
	for i := range m.Faces {
		t := m.Triangle(i)
		tris[i] = fauxgl.NewTriangleForPoints(vec(t[0]), vec(t[1]), vec(t[2]))
	}
	fm := fauxgl.NewTriangleMesh(tris)
	fm.BiUnitCube()

	eye := vec(view.Eye)
	light := fauxgl.V(-0.75, 1, 0.25).Normalize()
	ctx := fauxgl.NewContext(width*supersample, height*supersample)
	ctx.ClearColorBufferWith(fauxgl.HexColor("#FFF8E3"))
	aspect := float64(width) / float64(height)
	matrix := fauxgl.LookAt(eye, vec(view.LookAt), vec(view.Up)).Perspective(fovy, aspect, view.Near, view.Far)
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = fauxgl.HexColor("#468966")
	ctx.Shader = shader
	ctx.DrawMesh(fm)
	// downsample for antialiasing
	return resize.Resize(uint(width), uint(height), ctx.Image(), resize.Bilinear), nil
}

// Save renders m and writes it as a PNG file.
func Save(path string, m *mesh.Mesh, view View, width, height int) error {
	img, err := Render(m, view, width, height)
	if err != nil {
		return err
	}
	return fauxgl.SavePNG(path, img)
}

func vec(v r3.Vec) fauxgl.Vector { return fauxgl.V(v.X, v.Y, v.Z) }
