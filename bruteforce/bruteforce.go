package bruteforce

import (
	"math/rand"
	"runtime"

	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/vector"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Index scans the whole dataset, serves as a ground truth for approximate indexes
type Index struct {
	ds *common.Dataset
}

// New __
func New(ds *common.Dataset) (*Index, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, common.ErrEmptyDataset
	}
	return &Index{ds: ds}, nil
}

// Dataset __
func (b *Index) Dataset() *common.Dataset {
	return b.ds
}

// KNN returns n closest items; scan stops after thresh items if thresh > 0
func (b *Index) KNN(query []byte, n, thresh int) []common.Neighbor {
	ranked := common.NewRankedList(n)
	for i, it := range b.ds.Items() {
		if thresh > 0 && i >= thresh {
			break
		}
		ranked.Push(common.Neighbor{
			ID:       it.ID,
			Distance: vector.ManhattanDistance(query, it.Data),
		})
	}
	return ranked.Neighbors()
}

// RangeSearch returns the first item found strictly inside the radius
func (b *Index) RangeSearch(query []byte, radius int) (common.Neighbor, bool) {
	for _, it := range b.ds.Items() {
		dist := vector.ManhattanDistance(query, it.Data)
		if dist < radius {
			return common.Neighbor{ID: it.ID, Distance: dist}, true
		}
	}
	return common.Neighbor{}, false
}

// RangeSearchAll returns every item strictly inside the radius, ascending by distance
func (b *Index) RangeSearchAll(query []byte, radius int) []common.Neighbor {
	res := make([]common.Neighbor, 0)
	for _, it := range b.ds.Items() {
		dist := vector.ManhattanDistance(query, it.Data)
		if dist < radius {
			res = append(res, common.Neighbor{ID: it.ID, Distance: dist})
		}
	}
	common.SortNeighbors(res)
	return res
}

// AverageDistance estimates typical Manhattan distance between items
// using pct share of the dataset
func AverageDistance(ds *common.Dataset, pct float64, rng *rand.Rand) (float64, error) {
	if ds == nil || ds.Len() == 0 {
		return 0, common.ErrEmptyDataset
	}
	if pct <= 0 || pct > 1 {
		return 0, common.NewConfigError("sample share", pct, "must be in (0, 1]")
	}
	sample := common.SampleIDs(ds.Len(), pct, rng)
	if len(sample) < 2 {
		return 0, nil
	}
	avgs := make([]float64, len(sample))
	g := errgroup.Group{}
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range sample {
		i := i
		g.Go(func() error {
			vec := ds.Vector(sample[i])
			sum := 0
			for j, id := range sample {
				if i == j {
					continue
				}
				sum += vector.ManhattanDistance(vec, ds.Vector(id))
			}
			avgs[i] = float64(sum) / float64(len(sample)-1)
			return nil
		})
	}
	g.Wait()
	return stat.Mean(avgs, nil), nil
}

// WindowSize scales the average distance, never returns less than 1
func WindowSize(avgDist, scale float64) int {
	w := int(avgDist * scale)
	if w < 1 {
		return 1
	}
	return w
}
