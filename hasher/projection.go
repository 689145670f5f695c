package hasher

import (
	"math"
	"math/rand"

	"github.com/gasparian/ann-clustering-go/common"
	"gonum.org/v1/gonum/stat"
)

// Range bounds the threshold of the 0/1 projection, both ends included
type Range struct {
	Min uint64
	Max uint64
}

// DefaultRange covers all the values a hash function with modulus mod can produce
func DefaultRange(mod uint64) Range {
	return Range{Min: 0, Max: mod - 1}
}

// FFunction maps hash value to a single bit
type FFunction struct {
	threshold uint64
}

// NewFFunction draws a threshold uniformly from r
func NewFFunction(r Range, rng *rand.Rand) FFunction {
	if r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	span := r.Max - r.Min + 1
	if span == 0 {
		// full uint64 range
		return FFunction{threshold: rng.Uint64()}
	}
	return FFunction{threshold: r.Min + uint64(rng.Int63n(int64(min(span, math.MaxInt64))))}
}

// Threshold __
func (f FFunction) Threshold() uint64 {
	return f.threshold
}

// Map returns 1 when value reaches the threshold
func (f FFunction) Map(value uint64) uint64 {
	if value >= f.threshold {
		return 1
	}
	return 0
}

// EstimateRange calculates mean +- std of raw hash outputs: every sampled item
// is hashed by k fresh functions and the average of its k values is taken
func EstimateRange(ds *common.Dataset, sample []int, k, window int, rng *rand.Rand) (Range, error) {
	if ds == nil || ds.Len() == 0 || len(sample) == 0 {
		return Range{}, common.ErrEmptyDataset
	}
	if k <= 0 || k > MaxFunctions {
		return Range{}, common.NewConfigError("hash functions number", k, "must be in [1, 32]")
	}
	powers := NewPowers(ds.Dim(), Modulus(k))
	fns := make([]*HashFunction, k)
	for i := range fns {
		h, err := NewHashFunction(window, powers, rng)
		if err != nil {
			return Range{}, err
		}
		fns[i] = h
	}
	avgs := make([]float64, len(sample))
	for i, id := range sample {
		vec := ds.Vector(id)
		var sum float64
		for _, h := range fns {
			sum += float64(h.Hash(vec))
		}
		avgs[i] = sum / float64(k)
	}
	mean, std := stat.PopMeanStdDev(avgs, nil)
	lo := math.Floor(mean - std)
	if lo < 0 {
		lo = 0
	}
	hi := math.Min(math.Floor(mean+std), float64(powers.Mod()-1))
	if hi < lo {
		hi = lo
	}
	return Range{
		Min: uint64(lo),
		Max: uint64(hi),
	}, nil
}
