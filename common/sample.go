package common

import (
	"math/rand"
	"sort"
)

// SampleIDs picks pct share of n ids without repetitions, ascending;
// at least two ids are returned when n allows it
func SampleIDs(n int, pct float64, rng *rand.Rand) []int {
	if n <= 0 {
		return nil
	}
	size := int(pct * float64(n))
	if size < 2 {
		size = 2
	}
	if size > n {
		size = n
	}
	ids := rng.Perm(n)[:size]
	sort.Ints(ids)
	return ids
}
