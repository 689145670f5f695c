package hypercube

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/gasparian/ann-clustering-go/bruteforce"
	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/hasher"
	"github.com/gasparian/ann-clustering-go/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testData(t *testing.T, seed int64, n, dim int) (*common.Dataset, int) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, n*dim)
	rng.Read(data)
	ds, err := common.NewDataset(dim, data)
	require.NoError(t, err)
	avg, err := bruteforce.AverageDistance(ds, 0.05, rng)
	require.NoError(t, err)
	return ds, bruteforce.WindowSize(avg, 1)
}

func binomial(n, k int) int {
	res := 1
	for i := 1; i <= k; i++ {
		res = res * (n - k + i) / i
	}
	return res
}

func TestProbesAtDistance(t *testing.T) {
	t.Parallel()
	for _, k := range []int{1, 3, 6, 10} {
		for _, start := range []int{0, 1, (1 << k) - 1, (1 << k) / 3} {
			assert.Equal(t, []int{start}, ProbesAtDistance(k, 0, start))
			assert.Equal(t, []int{start ^ (1<<k - 1)}, ProbesAtDistance(k, k, start), "antipodal vertex")
			total := 0
			for d := 0; d <= k; d++ {
				probes := ProbesAtDistance(k, d, start)
				require.Len(t, probes, binomial(k, d))
				require.True(t, sort.IntsAreSorted(probes))
				for _, p := range probes {
					require.True(t, p >= 0 && p < 1<<k)
					require.Equal(t, d, vector.HammingDistance(uint64(p), uint64(start)))
				}
				total += len(probes)
			}
			assert.Equal(t, 1<<k, total, "rings must cover the whole cube")
		}
	}
	assert.Nil(t, ProbesAtDistance(3, 4, 0))
	assert.Nil(t, ProbesAtDistance(3, -1, 0))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	for _, c := range []Config{
		{Dimension: 0, Window: 1},
		{Dimension: MaxDimension + 1, Window: 1},
		{Dimension: 3, Window: 0},
	} {
		assert.True(t, errors.Is(c.Validate(), common.ErrInvalidConfig), "%+v", c)
	}
	_, err := New(nil, Config{Dimension: 3, Window: 1}, rand.New(rand.NewSource(1)))
	assert.Equal(t, common.ErrEmptyDataset, err)
}

func TestVertices(t *testing.T) {
	t.Parallel()
	ds, w := testData(t, 1, 600, 16)
	k := 5
	idx, err := New(ds, Config{Dimension: k, Window: w}, rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	assert.Equal(t, k, idx.Dimension())

	seen := make(map[int32]bool)
	for v, bucket := range idx.vertices {
		for _, id := range bucket {
			require.False(t, seen[id], "item must be in exactly one vertex")
			seen[id] = true
			require.Equal(t, v, idx.Vertex(ds.Vector(int(id))))
		}
	}
	assert.Len(t, seen, ds.Len())
	for _, it := range ds.Items() {
		v := idx.Vertex(it.Data)
		require.True(t, v >= 0 && v < 1<<k)
	}
	nonEmpty, largest := idx.Occupancy()
	assert.Positive(t, nonEmpty)
	assert.LessOrEqual(t, largest, ds.Len())
}

func TestVertexBitOrder(t *testing.T) {
	t.Parallel()
	ds, w := testData(t, 3, 50, 8)
	// thresholds at the top of the range: only the largest hash value gives 1
	mod := hasher.Modulus(3)
	top := hasher.Range{Min: mod - 1, Max: mod - 1}
	idx, err := New(ds, Config{Dimension: 3, Window: w, FRange: &top}, rand.New(rand.NewSource(4)))
	require.NoError(t, err)
	for _, it := range ds.Items() {
		want := 0
		for _, h := range idx.fns {
			bit := 0
			if h.Hash(it.Data) == mod-1 {
				bit = 1
			}
			want = want<<1 | bit
		}
		require.Equal(t, want, idx.Vertex(it.Data))
	}
}

func TestProbeOrder(t *testing.T) {
	t.Parallel()
	ds, w := testData(t, 5, 100, 8)
	idx, err := New(ds, Config{Dimension: 4, Window: w}, rand.New(rand.NewSource(6)))
	require.NoError(t, err)
	order := idx.probeOrder(5, 7)
	require.Len(t, order, 7)
	assert.Equal(t, 5, order[0])
	for i := 1; i < len(order); i++ {
		assert.LessOrEqual(t,
			vector.HammingDistance(uint64(order[i-1]), 5),
			vector.HammingDistance(uint64(order[i]), 5))
	}
	assert.Len(t, idx.probeOrder(5, 100), 16, "sweep stops at the whole cube")
	assert.Len(t, idx.probeOrder(5, 0), 1)
}

func TestSearch(t *testing.T) {
	t.Parallel()
	ds, w := testData(t, 7, 1000, 32)
	exact, err := bruteforce.New(ds)
	require.NoError(t, err)
	idx, err := New(ds, Config{Dimension: 6, Window: w}, rand.New(rand.NewSource(8)))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 100; i++ {
		q := make([]byte, 32)
		rng.Read(q)
		truth := exact.KNN(q, 1, 0)
		prev := -1
		for _, probes := range []int{1, 2, 8, 64} {
			res := idx.KNN(q, 1, probes, 0)
			if probes == 64 {
				require.Len(t, res, 1)
				require.Equal(t, truth[0].Distance, res[0].Distance, "probing the whole cube is exhaustive")
			}
			if len(res) == 0 {
				continue
			}
			require.GreaterOrEqual(t, res[0].Distance, truth[0].Distance)
			if prev >= 0 {
				require.LessOrEqual(t, res[0].Distance, prev, "more probes must not hurt")
			}
			prev = res[0].Distance
		}

		rs := idx.RangeSearch(q, 2700, 4, 0, nil)
		for j, nb := range rs {
			require.Less(t, nb.Distance, 2700)
			require.Equal(t, vector.ManhattanDistance(q, ds.Vector(nb.ID)), nb.Distance)
			if j > 0 {
				require.LessOrEqual(t, rs[j-1].Distance, nb.Distance)
			}
		}
	}

	t.Run("Thresh", func(t *testing.T) {
		res := idx.RangeSearch(ds.Vector(0), 1<<30, 64, 10, nil)
		assert.Len(t, res, 10)
		knn := idx.KNN(ds.Vector(0), 50, 64, 5)
		assert.Len(t, knn, 5)
	})

	t.Run("Filter", func(t *testing.T) {
		marked := common.NewIDSet()
		for id := 0; id < ds.Len(); id += 2 {
			marked.Add(id)
		}
		res := idx.RangeSearch(ds.Vector(1), 1<<30, 64, 0, marked)
		assert.Len(t, res, ds.Len()/2)
		for _, nb := range res {
			assert.Equal(t, 1, nb.ID%2)
		}
	})
}
