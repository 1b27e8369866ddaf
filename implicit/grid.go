package implicit

import (
	"context"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Grid is an implicit function sampled on a regular lattice and
// interpolated trilinearly between samples. Samples far from the surface
// hold a bound with the correct sign rather than the exact distance.
type Grid struct {
	origin r3.Vec
	h      float64
	n      [3]int
	values []float32
}

var _ sdf.SDF3 = (*Grid)(nil)

type cube struct {
	i, j, k int
	level   uint // side is 1 << level samples
}

// Sample evaluates f on a lattice with resolution cells along the longest
// side of its bounding box, padded by one cell. Space is visited as an
// octree and cubes whose center is farther from the surface than their
// half diagonal plus one cell are filled without further evaluation, so
// every cell holding a point closer than one cell to the surface is
// sampled exactly.
func Sample(ctx context.Context, f sdf.SDF3, resolution int) (*Grid, error) {
	if resolution < 2 {
		return nil, fmt.Errorf("implicit: resolution %d too small", resolution)
	}
	bb := f.BoundingBox()
	size := r3.Vec{X: bb.Max.X - bb.Min.X, Y: bb.Max.Y - bb.Min.Y, Z: bb.Max.Z - bb.Min.Z}
	long := math.Max(size.X, math.Max(size.Y, size.Z))
	if !(long > 0) || math.IsInf(long, 0) {
		return nil, fmt.Errorf("implicit: bad bounding box %v", bb)
	}
	h := long / float64(resolution)
	g := &Grid{
		origin: r3.Vec{X: bb.Min.X - h, Y: bb.Min.Y - h, Z: bb.Min.Z - h},
		h:      h,
		n: [3]int{
			int(math.Ceil(size.X/h)) + 3,
			int(math.Ceil(size.Y/h)) + 3,
			int(math.Ceil(size.Z/h)) + 3,
		},
	}
	g.values = make([]float32, g.n[0]*g.n[1]*g.n[2])
	for i := range g.values {
		g.values[i] = math32.NaN()
	}
	exact := make([]uint64, (len(g.values)+63)/64)

	var levels uint
	for 1<<levels < max(g.n[0], g.n[1], g.n[2])-1 {
		levels++
	}
	hdiag := make([]float64, levels+1)
	for l := range hdiag {
		s := float64(int(1)<<l) * h
		hdiag[l] = 0.5 * math.Sqrt(3*s*s)
	}

	eval := func(i, j, k int) {
		idx := g.index(i, j, k)
		if exact[idx/64]&(1<<(idx%64)) != 0 {
			return
		}
		exact[idx/64] |= 1 << (idx % 64)
		g.values[idx] = float32(f.Evaluate(g.point(i, j, k)))
	}
	fill := func(c cube, d float32) {
		s := 1 << c.level
		for k := c.k; k <= min(c.k+s, g.n[2]-1); k++ {
			for j := c.j; j <= min(c.j+s, g.n[1]-1); j++ {
				for i := c.i; i <= min(c.i+s, g.n[0]-1); i++ {
					if idx := g.index(i, j, k); math32.IsNaN(g.values[idx]) {
						g.values[idx] = d
					}
				}
			}
		}
	}

	todo := []cube{{level: levels}}
	for visited := 0; len(todo) > 0; visited++ {
		if visited%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		c := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		if c.i >= g.n[0]-1 || c.j >= g.n[1]-1 || c.k >= g.n[2]-1 {
			continue
		}
		if c.level == 0 {
			for _, o := range [8][3]int{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}} {
				eval(c.i+o[0], c.j+o[1], c.k+o[2])
			}
			continue
		}
		half := 1 << (c.level - 1)
		center := r3.Add(g.origin, r3.Scale(h, r3.Vec{X: float64(c.i + half), Y: float64(c.j + half), Z: float64(c.k + half)}))
		d := f.Evaluate(v3.Vec{X: center.X, Y: center.Y, Z: center.Z})
		if math.Abs(d) >= hdiag[c.level]+h {
			fill(c, float32(d))
			continue
		}
		l := c.level - 1
		for _, o := range [8][3]int{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}} {
			todo = append(todo, cube{i: c.i + o[0]*half, j: c.j + o[1]*half, k: c.k + o[2]*half, level: l})
		}
	}
	return g, nil
}

func (g *Grid) index(i, j, k int) int { return (k*g.n[1]+j)*g.n[0] + i }

func (g *Grid) point(i, j, k int) v3.Vec {
	return v3.Vec{
		X: g.origin.X + float64(i)*g.h,
		Y: g.origin.Y + float64(j)*g.h,
		Z: g.origin.Z + float64(k)*g.h,
	}
}

// Dims returns the number of samples along each axis.
func (g *Grid) Dims() [3]int { return g.n }

// Spacing returns the distance between neighbouring samples.
func (g *Grid) Spacing() float64 { return g.h }

// Evaluate interpolates the samples at p. Outside the lattice the
// distance to it is added to the nearest boundary value.
func (g *Grid) Evaluate(p v3.Vec) float64 {
	var (
		cell [3]int
		t    [3]float64
		out  float64
	)
	for a, x := range [3]float64{p.X, p.Y, p.Z} {
		o := [3]float64{g.origin.X, g.origin.Y, g.origin.Z}[a]
		u := (x - o) / g.h
		top := float64(g.n[a] - 1)
		switch {
		case u < 0:
			out += (u * g.h) * (u * g.h)
			u = 0
		case u > top:
			out += ((u - top) * g.h) * ((u - top) * g.h)
			u = top
		}
		c := min(int(u), g.n[a]-2)
		cell[a], t[a] = c, u-float64(c)
	}
	i, j, k := cell[0], cell[1], cell[2]
	v := func(di, dj, dk int) float64 { return float64(g.values[g.index(i+di, j+dj, k+dk)]) }
	lerp := func(a, b, t float64) float64 { return a + t*(b-a) }
	x00 := lerp(v(0, 0, 0), v(1, 0, 0), t[0])
	x10 := lerp(v(0, 1, 0), v(1, 1, 0), t[0])
	x01 := lerp(v(0, 0, 1), v(1, 0, 1), t[0])
	x11 := lerp(v(0, 1, 1), v(1, 1, 1), t[0])
	d := lerp(lerp(x00, x10, t[1]), lerp(x01, x11, t[1]), t[2])
	return d + math.Sqrt(out)
}

// BoundingBox returns the extent of the lattice.
func (g *Grid) BoundingBox() sdf.Box3 {
	return sdf.Box3{
		Min: v3.Vec{X: g.origin.X, Y: g.origin.Y, Z: g.origin.Z},
		Max: g.point(g.n[0]-1, g.n[1]-1, g.n[2]-1),
	}
}
