package hypercube

import (
	"math/rand"
	"sort"

	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/hasher"
	"github.com/gasparian/ann-clustering-go/vector"
	"github.com/rs/zerolog"
)

// MaxDimension bounds the cube, all 2^k vertices are materialized
const MaxDimension = 24

// Config holds parameters of the hypercube index
type Config struct {
	Dimension int // k
	Window    int
	// FRange bounds thresholds of the 0/1 projections,
	// nil means the whole range of hash values
	FRange *hasher.Range
	Logger zerolog.Logger
}

// Validate checks the config before anything gets allocated
func (c Config) Validate() error {
	if c.Dimension <= 0 || c.Dimension > MaxDimension {
		return common.NewConfigError("hypercube dimension", c.Dimension, "must be in [1, 24]")
	}
	if c.Window <= 0 {
		return common.NewConfigError("window", c.Window, "must be a positive integer")
	}
	return nil
}

// Index projects every item to one vertex of the k-dimensional binary cube
type Index struct {
	config   Config
	ds       *common.Dataset
	fns      []*hasher.HashFunction
	fs       []hasher.FFunction
	vertices [][]int32
}

// New builds one hash function and one projection per cube dimension
func New(ds *common.Dataset, config Config, rng *rand.Rand) (*Index, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if ds == nil || ds.Len() == 0 {
		return nil, common.ErrEmptyDataset
	}
	k := config.Dimension
	powers := hasher.NewPowers(ds.Dim(), hasher.Modulus(k))
	fRange := hasher.DefaultRange(powers.Mod())
	if config.FRange != nil {
		fRange = *config.FRange
	}
	idx := &Index{
		config:   config,
		ds:       ds,
		fns:      make([]*hasher.HashFunction, k),
		fs:       make([]hasher.FFunction, k),
		vertices: make([][]int32, 1<<k),
	}
	for i := 0; i < k; i++ {
		h, err := hasher.NewHashFunction(config.Window, powers, rng)
		if err != nil {
			return nil, err
		}
		idx.fns[i] = h
		idx.fs[i] = hasher.NewFFunction(fRange, rng)
	}
	for _, it := range ds.Items() {
		v := idx.Vertex(it.Data)
		idx.vertices[v] = append(idx.vertices[v], int32(it.ID))
		if (it.ID+1)%10000 == 0 {
			config.Logger.Debug().Int("items", it.ID+1).Msg("hypercube: inserting")
		}
	}
	config.Logger.Info().
		Int("dimension", k).
		Int("window", config.Window).
		Uint64("fmin", fRange.Min).
		Uint64("fmax", fRange.Max).
		Msg("hypercube: index built")
	return idx, nil
}

// Dataset __
func (idx *Index) Dataset() *common.Dataset {
	return idx.ds
}

// Dimension returns k
func (idx *Index) Dimension() int {
	return idx.config.Dimension
}

// Vertex concatenates projection bits, first dimension is the most significant bit
func (idx *Index) Vertex(x []byte) int {
	v := 0
	for i, h := range idx.fns {
		v = v<<1 | int(idx.fs[i].Map(h.Hash(x)))
	}
	return v
}

// ProbesAtDistance lists vertices of the k-cube at the given Hamming distance
// from start, in ascending order
func ProbesAtDistance(k, dist, start int) []int {
	if dist < 0 || dist > k {
		return nil
	}
	if dist == 0 {
		return []int{start}
	}
	limit := uint64(1) << uint(k)
	res := make([]int, 0)
	// iterate all k-bit masks with dist bits set (Gosper's hack)
	mask := uint64(1)<<uint(dist) - 1
	for mask < limit {
		res = append(res, start^int(mask))
		c := mask & -mask
		r := mask + c
		mask = (((r ^ mask) >> 2) / c) | r
	}
	sort.Ints(res)
	return res
}

// probeOrder returns up to probes vertices by increasing Hamming distance from start
func (idx *Index) probeOrder(start, probes int) []int {
	if probes <= 0 {
		probes = 1
	}
	k := idx.config.Dimension
	res := make([]int, 0, probes)
	for d := 0; d <= k && len(res) < probes; d++ {
		for _, v := range ProbesAtDistance(k, d, start) {
			res = append(res, v)
			if len(res) == probes {
				break
			}
		}
	}
	return res
}

// KNN returns at most n closest items from the probed vertices;
// stops after thresh examined items if thresh > 0
func (idx *Index) KNN(query []byte, n, probes, thresh int) []common.Neighbor {
	ranked := common.NewRankedList(n)
	examined := 0
	for _, v := range idx.probeOrder(idx.Vertex(query), probes) {
		for _, id := range idx.vertices[v] {
			if ranked.Contains(int(id)) {
				continue
			}
			ranked.Push(common.Neighbor{
				ID:       int(id),
				Distance: vector.ManhattanDistance(query, idx.ds.Vector(int(id))),
			})
			examined++
			if thresh > 0 && examined >= thresh {
				return ranked.Neighbors()
			}
		}
	}
	return ranked.Neighbors()
}

// RangeSearch returns all items of the probed vertices strictly inside the radius,
// ascending by distance; items hidden by filter are skipped, filter may be nil
func (idx *Index) RangeSearch(query []byte, radius, probes, thresh int, filter common.Filter) []common.Neighbor {
	res := make([]common.Neighbor, 0)
	examined := 0
	for _, v := range idx.probeOrder(idx.Vertex(query), probes) {
		for _, id := range idx.vertices[v] {
			if filter != nil && filter.Excluded(int(id)) {
				continue
			}
			dist := vector.ManhattanDistance(query, idx.ds.Vector(int(id)))
			if dist < radius {
				res = append(res, common.Neighbor{ID: int(id), Distance: dist})
			}
			examined++
			if thresh > 0 && examined >= thresh {
				common.SortNeighbors(res)
				return res
			}
		}
	}
	common.SortNeighbors(res)
	return res
}

// Occupancy returns number of non-empty vertices and the largest vertex size
func (idx *Index) Occupancy() (int, int) {
	nonEmpty, largest := 0, 0
	for _, b := range idx.vertices {
		if len(b) > 0 {
			nonEmpty++
		}
		if len(b) > largest {
			largest = len(b)
		}
	}
	return nonEmpty, largest
}
