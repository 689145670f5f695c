package common

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// IDSet is a compressed set of item ids
type IDSet struct {
	bm *roaring.Bitmap
}

// NewIDSet __
func NewIDSet() *IDSet {
	return &IDSet{bm: roaring.New()}
}

// Add returns false if id has been already in the set
func (s *IDSet) Add(id int) bool {
	return s.bm.CheckedAdd(uint32(id))
}

// Contains __
func (s *IDSet) Contains(id int) bool {
	return s.bm.Contains(uint32(id))
}

// Excluded makes IDSet usable as a range search filter
func (s *IDSet) Excluded(id int) bool {
	return s.bm.Contains(uint32(id))
}

// Len __
func (s *IDSet) Len() int {
	return int(s.bm.GetCardinality())
}

// Clear drops all ids
func (s *IDSet) Clear() {
	s.bm.Clear()
}
