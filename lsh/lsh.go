package lsh

import (
	"math/rand"
	"runtime"

	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/hasher"
	"github.com/gasparian/ann-clustering-go/vector"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// BucketRatio is the number of items per bucket the table size is derived from
const BucketRatio = 16

// Config holds parameters of the LSH index
type Config struct {
	HashCount  int // k, functions per amplified hash
	TableCount int // L
	Window     int
	Workers    int
	Logger     zerolog.Logger
}

// Validate checks the config before anything gets allocated
func (c Config) Validate() error {
	if c.HashCount <= 0 || c.HashCount > hasher.MaxFunctions {
		return common.NewConfigError("hash functions number", c.HashCount, "must be in [1, 32]")
	}
	if c.TableCount <= 0 {
		return common.NewConfigError("tables number", c.TableCount, "must be a positive integer")
	}
	if c.Window <= 0 {
		return common.NewConfigError("window", c.Window, "must be a positive integer")
	}
	return nil
}

type table struct {
	g       *hasher.AmplifiedHashFunction
	buckets [][]int32
}

// Index holds L hash tables over the same dataset
type Index struct {
	config Config
	ds     *common.Dataset
	size   int
	tables []table
}

// New builds all tables; hash functions are drawn from rng one table after another,
// so the same seed always gives the same index
func New(ds *common.Dataset, config Config, rng *rand.Rand) (*Index, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if ds == nil || ds.Len() == 0 {
		return nil, common.ErrEmptyDataset
	}
	size := ds.Len() / BucketRatio
	if size < 1 {
		size = 1
	}
	idx := &Index{
		config: config,
		ds:     ds,
		size:   size,
		tables: make([]table, config.TableCount),
	}
	powers := hasher.NewPowers(ds.Dim(), hasher.Modulus(config.HashCount))
	for i := range idx.tables {
		g, err := hasher.NewAmplifiedHashFunction(config.HashCount, config.Window, powers, rng)
		if err != nil {
			return nil, err
		}
		idx.tables[i] = table{
			g:       g,
			buckets: make([][]int32, size),
		}
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	eg := errgroup.Group{}
	eg.SetLimit(workers)
	for i := range idx.tables {
		i := i
		eg.Go(func() error {
			t := &idx.tables[i]
			for _, it := range ds.Items() {
				b := t.g.Hash(it.Data) % uint64(size)
				t.buckets[b] = append(t.buckets[b], int32(it.ID))
				if (it.ID+1)%10000 == 0 {
					config.Logger.Debug().Int("table", i).Int("items", it.ID+1).Msg("lsh: inserting")
				}
			}
			return nil
		})
	}
	eg.Wait()
	config.Logger.Info().
		Int("tables", config.TableCount).
		Int("hashes", config.HashCount).
		Int("buckets", size).
		Int("window", config.Window).
		Msg("lsh: index built")
	return idx, nil
}

// Dataset __
func (idx *Index) Dataset() *common.Dataset {
	return idx.ds
}

// TableSize returns number of buckets per table
func (idx *Index) TableSize() int {
	return idx.size
}

func (idx *Index) bucket(t int, query []byte) []int32 {
	tb := &idx.tables[t]
	return tb.buckets[tb.g.Hash(query)%uint64(idx.size)]
}

// KNN returns at most n closest candidates found in the query buckets of all tables;
// stops after thresh examined items if thresh > 0
func (idx *Index) KNN(query []byte, n, thresh int) []common.Neighbor {
	ranked := common.NewRankedList(n)
	examined := 0
	for t := range idx.tables {
		for _, id := range idx.bucket(t, query) {
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

// RangeSearch returns all candidates strictly inside the radius, ascending by distance;
// items hidden by filter are skipped, filter may be nil
func (idx *Index) RangeSearch(query []byte, radius, thresh int, filter common.Filter) []common.Neighbor {
	res := make([]common.Neighbor, 0)
	seen := common.NewIDSet()
	examined := 0
	for t := range idx.tables {
		for _, id := range idx.bucket(t, query) {
			if filter != nil && filter.Excluded(int(id)) {
				continue
			}
			if !seen.Add(int(id)) {
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
