package common

import (
	"sort"
)

// Item is a view of one vector inside the dataset arena
type Item struct {
	ID   int
	Data []byte
}

// Dataset holds all vectors in a single contiguous array;
// indexes and results refer to items by their 0-based id
type Dataset struct {
	dim   int
	data  []byte
	items []Item
}

// NewDataset wraps flat row-major data of len(data)/dim vectors
func NewDataset(dim int, data []byte) (*Dataset, error) {
	if dim <= 0 {
		return nil, NewConfigError("dimension", dim, "must be a positive integer")
	}
	if len(data) == 0 {
		return nil, ErrEmptyDataset
	}
	if len(data)%dim != 0 {
		return nil, &DimensionMismatchError{Expected: dim, Actual: len(data) % dim}
	}
	n := len(data) / dim
	ds := &Dataset{
		dim:   dim,
		data:  data,
		items: make([]Item, n),
	}
	for i := 0; i < n; i++ {
		ds.items[i] = Item{
			ID:   i,
			Data: data[i*dim : (i+1)*dim : (i+1)*dim],
		}
	}
	return ds, nil
}

// DatasetFromVectors copies vectors into a new arena
func DatasetFromVectors(vecs [][]byte) (*Dataset, error) {
	if len(vecs) == 0 {
		return nil, ErrEmptyDataset
	}
	dim := len(vecs[0])
	data := make([]byte, 0, dim*len(vecs))
	for _, v := range vecs {
		if len(v) != dim {
			return nil, &DimensionMismatchError{Expected: dim, Actual: len(v)}
		}
		data = append(data, v...)
	}
	return NewDataset(dim, data)
}

// Len returns number of items
func (ds *Dataset) Len() int {
	return len(ds.items)
}

// Dim returns the vectors dimension
func (ds *Dataset) Dim() int {
	return ds.dim
}

// Item returns item by id
func (ds *Dataset) Item(id int) Item {
	return ds.items[id]
}

// Vector returns components of the item with the given id
func (ds *Dataset) Vector(id int) []byte {
	return ds.items[id].Data
}

// Items returns all items in id order
func (ds *Dataset) Items() []Item {
	return ds.items
}

// Raw returns the underlying arena
func (ds *Dataset) Raw() []byte {
	return ds.data
}

// CheckVector validates that the query can be compared with the dataset items
func (ds *Dataset) CheckVector(vec []byte) error {
	if len(vec) != ds.dim {
		return &DimensionMismatchError{Expected: ds.dim, Actual: len(vec)}
	}
	return nil
}

// Neighbor is a search result entry
type Neighbor struct {
	ID       int `json:"id"`
	Distance int `json:"dist"`
}

// Filter lets the caller hide items from range search
type Filter interface {
	Excluded(id int) bool
}

// SortNeighbors orders neighbors by distance keeping the discovery order for ties
func SortNeighbors(neighbors []Neighbor) {
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
}

// RankedList holds at most n closest neighbors found so far, ascending by distance
type RankedList struct {
	n     int
	items []Neighbor
}

// NewRankedList __
func NewRankedList(n int) *RankedList {
	if n < 0 {
		n = 0
	}
	return &RankedList{
		n:     n,
		items: make([]Neighbor, 0, n),
	}
}

// Push inserts candidate if it is better than the worst one kept,
// returns false when the candidate has been rejected
func (l *RankedList) Push(nb Neighbor) bool {
	if l.n == 0 {
		return false
	}
	if len(l.items) == l.n {
		if nb.Distance >= l.items[l.n-1].Distance {
			return false
		}
		l.items = l.items[:l.n-1]
	}
	pos := sort.Search(len(l.items), func(i int) bool {
		return l.items[i].Distance > nb.Distance
	})
	l.items = append(l.items, Neighbor{})
	copy(l.items[pos+1:], l.items[pos:])
	l.items[pos] = nb
	return true
}

// Contains checks by a linear scan, lists are expected to be short
func (l *RankedList) Contains(id int) bool {
	for _, nb := range l.items {
		if nb.ID == id {
			return true
		}
	}
	return false
}

// Len returns number of real entries
func (l *RankedList) Len() int {
	return len(l.items)
}

// Cap returns the maximum number of entries
func (l *RankedList) Cap() int {
	return l.n
}

// Neighbors returns copy of the ranked entries
func (l *RankedList) Neighbors() []Neighbor {
	out := make([]Neighbor, len(l.items))
	copy(out, l.items)
	return out
}
