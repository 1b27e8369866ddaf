package mesh

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestBIHNearestMatchesBruteForce(t *testing.T) {
	m := UVSphere(r3.Vec{X: 0.3, Y: -0.2}, 1.5, 24, 12)
	bih := NewBIH(m)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		p := r3.Vec{X: 6*rng.Float64() - 3, Y: 6*rng.Float64() - 3, Z: 6*rng.Float64() - 3}
		got := bih.Nearest(p)
		want := math.MaxFloat64
		for fi := range m.Faces {
			want = math.Min(want, bih.closestOnFace(p, fi).Dist2)
		}
		if math.Abs(got.Dist2-want) > 1e-12 {
			t.Fatalf("point %v: got dist2 %g, brute force %g", p, got.Dist2, want)
		}
	}
}

func TestBIHSignedDistance(t *testing.T) {
	m := Box(r3.Vec{}, r3.Vec{X: 2, Y: 2, Z: 2})
	bih := NewBIH(m)
	for _, test := range []struct {
		p    r3.Vec
		want float64
	}{
		{p: r3.Vec{}, want: -1},
		{p: r3.Vec{X: 0.5}, want: -0.5},
		{p: r3.Vec{X: 3}, want: 2},
		{p: r3.Vec{Y: -1.25}, want: 0.25},
		// edge and vertex regions.
		{p: r3.Vec{X: 2, Y: 2}, want: math.Sqrt2},
		{p: r3.Vec{X: 2, Y: 2, Z: 2}, want: math.Sqrt(3)},
		{p: r3.Vec{X: 0.9, Y: 0.9, Z: 0.95}, want: -0.05},
	} {
		got := bih.SignedDistance(test.p)
		if math.Abs(got-test.want) > 1e-12 {
			t.Errorf("SignedDistance(%v) = %g, want %g", test.p, got, test.want)
		}
	}
}

func TestBIHStraddling(t *testing.T) {
	m := Box(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	bih := NewBIH(m)
	count := func(p Plane) int {
		n := 0
		bih.Straddling(p, 1e-9, func(int) { n++ })
		return n
	}
	if got := count(Plane{Normal: r3.Vec{Z: 1}, D: 0.25}); got != 8 {
		t.Errorf("mid plane: got %d faces, want 8 side faces", got)
	}
	// all faces touch the top plane except the two bottom faces.
	if got := count(Plane{Normal: r3.Vec{Z: 1}, D: 0.5}); got != 10 {
		t.Errorf("top plane: got %d faces, want 10", got)
	}
	if got := count(Plane{Normal: r3.Vec{Z: 1}, D: 2}); got != 0 {
		t.Errorf("far plane: got %d faces, want 0", got)
	}
}

func TestBIHNearestVertex(t *testing.T) {
	m := UVSphere(r3.Vec{}, 1, 16, 8)
	bih := NewBIH(m)
	for vi, v := range m.Vertices {
		p := r3.Add(v, r3.Vec{X: 1e-4})
		got, ok := bih.NearestVertex(p, 1e-3)
		if !ok || got != vi {
			t.Fatalf("vertex %d: got %d (ok=%v)", vi, got, ok)
		}
	}
	if _, ok := bih.NearestVertex(r3.Vec{}, 0.5); ok {
		t.Error("found vertex at sphere center")
	}
}

func BenchmarkBIHSignedDistance(b *testing.B) {
	m := UVSphere(r3.Vec{}, 1, 64, 32)
	bih := NewBIH(m)
	rng := rand.New(rand.NewSource(1))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bih.SignedDistance(r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()})
	}
}
