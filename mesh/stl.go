package mesh

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r3"
)

// Binary STL layout: an 80 byte comment, a little endian uint32 facet
// count, then one 50 byte record per facet.
const (
	stlCommentSize = 80
	stlFacetSize   = 50
)

// stlFacet holds the normal followed by the three corners of a record.
type stlFacet [4][3]float32

func (f *stlFacet) encode(b []byte) {
	_ = b[stlFacetSize-1]
	for i, v := range f {
		for j, c := range v {
			binary.LittleEndian.PutUint32(b[12*i+4*j:], math.Float32bits(c))
		}
	}
	// attribute byte count.
	b[48], b[49] = 0, 0
}

func (f *stlFacet) decode(b []byte) error {
	_ = b[stlFacetSize-1]
	for i := range f {
		for j := range f[i] {
			c := math.Float32frombits(binary.LittleEndian.Uint32(b[12*i+4*j:]))
			if math32.IsNaN(c) || math32.IsInf(c, 0) {
				return fmt.Errorf("non-finite value %v in facet", c)
			}
			f[i][j] = c
		}
	}
	return nil
}

func (f *stlFacet) triangle() r3.Triangle {
	var t r3.Triangle
	for i := range t {
		c := f[i+1]
		t[i] = r3.Vec{X: float64(c[0]), Y: float64(c[1]), Z: float64(c[2])}
	}
	return t
}

func single(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

// WriteSTL writes the faces of m to w in binary STL format.
func WriteSTL(w io.Writer, m *Mesh) error {
	if len(m.Faces) == 0 {
		return ErrEmpty
	}
	if uint64(len(m.Faces)) > math.MaxUint32 {
		return fmt.Errorf("%d faces do not fit a binary STL", len(m.Faces))
	}
	bw := bufio.NewWriter(w)
	var head [stlCommentSize + 4]byte
	binary.LittleEndian.PutUint32(head[stlCommentSize:], uint32(len(m.Faces)))
	if _, err := bw.Write(head[:]); err != nil {
		return err
	}
	var rec [stlFacetSize]byte
	for _, f := range m.Faces {
		facet := stlFacet{
			single(f.Normal),
			single(m.Vertices[f.V[0]]),
			single(m.Vertices[f.V[1]]),
			single(m.Vertices[f.V[2]]),
		}
		facet.encode(rec[:])
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadSTL reads a binary STL stream and welds vertices within tol.
// Stored normals are checked for finiteness but otherwise ignored, the
// corner order defines orientation.
func ReadSTL(r io.Reader, tol float64) (*Mesh, error) {
	var head [stlCommentSize + 4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, fmt.Errorf("reading STL header: %w", err)
	}
	count := binary.LittleEndian.Uint32(head[stlCommentSize:])
	if count == 0 {
		return nil, errors.New("STL header declares no facets")
	}
	var (
		rec   [stlFacetSize]byte
		facet stlFacet
	)
	tris := make([]r3.Triangle, 0, min(count, 1<<20))
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, rec[:]); err != nil {
			return nil, fmt.Errorf("facet %d of %d: %w", i, count, err)
		}
		if err := facet.decode(rec[:]); err != nil {
			return nil, fmt.Errorf("facet %d of %d: %w", i, count, err)
		}
		tris = append(tris, facet.triangle())
	}
	return FromTriangles(tris, tol), nil
}

// SaveSTL writes m to a binary STL file at path.
func SaveSTL(path string, m *Mesh) (err error) {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fp.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteSTL(fp, m)
}

// LoadSTL reads the binary STL file at path.
func LoadSTL(path string, tol float64) (*Mesh, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	m, err := ReadSTL(bufio.NewReader(fp), tol)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return m, nil
}
