package slicing

import (
	"sort"

	"github.com/soypat/csg/mesh"
)

// PlaneNormalXSorter indexes a set of planes by the X component of their
// normal so that near-equal planes can be found without hashing.
type PlaneNormalXSorter struct {
	planes []mesh.Plane
}

// NewPlaneNormalXSorter returns a sorter over a copy of planes. Planes
// with equal Normal.X keep their input order.
func NewPlaneNormalXSorter(planes []mesh.Plane) *PlaneNormalXSorter {
	s := &PlaneNormalXSorter{planes: append([]mesh.Plane(nil), planes...)}
	sort.SliceStable(s.planes, func(i, j int) bool {
		return s.planes[i].Normal.X < s.planes[j].Normal.X
	})
	return s
}

// Len returns the number of indexed planes.
func (s *PlaneNormalXSorter) Len() int { return len(s.planes) }

// Plane returns the i'th plane in sorted order.
func (s *PlaneNormalXSorter) Plane(i int) mesh.Plane { return s.planes[i] }

// Find returns the index of the first plane in sorted order that equals p
// within distTol along the normal and normalTol between normals.
func (s *PlaneNormalXSorter) Find(p mesh.Plane, distTol, normalTol float64) (int, bool) {
	lo := p.Normal.X - normalTol
	hi := p.Normal.X + normalTol
	start := sort.Search(len(s.planes), func(i int) bool {
		return s.planes[i].Normal.X >= lo
	})
	for i := start; i < len(s.planes) && s.planes[i].Normal.X <= hi; i++ {
		if s.planes[i].Equal(p, distTol, normalTol) {
			return i, true
		}
	}
	return -1, false
}
