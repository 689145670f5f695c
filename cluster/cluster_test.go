package cluster

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs generates perBlob points around every center, returns dataset and planted labels
func blobs(t *testing.T, rng *rand.Rand, centers [][]byte, perBlob, noise int) (*common.Dataset, []int) {
	t.Helper()
	vecs := make([][]byte, 0, len(centers)*perBlob)
	labels := make([]int, 0, len(centers)*perBlob)
	for ci, center := range centers {
		for i := 0; i < perBlob; i++ {
			v := make([]byte, len(center))
			for j := range v {
				val := int(center[j]) + rng.Intn(2*noise+1) - noise
				v[j] = byte(max(0, min(255, val)))
			}
			vecs = append(vecs, v)
			labels = append(labels, ci)
		}
	}
	ds, err := common.DatasetFromVectors(vecs)
	require.NoError(t, err)
	return ds, labels
}

func fourBlobs(t *testing.T, seed int64) (*common.Dataset, []int) {
	rng := rand.New(rand.NewSource(seed))
	centers := [][]byte{
		{20, 20, 20, 20, 20, 20, 20, 20},
		{230, 230, 230, 230, 20, 20, 20, 20},
		{20, 20, 20, 20, 230, 230, 230, 230},
		{230, 230, 230, 230, 230, 230, 230, 230},
	}
	return blobs(t, rng, centers, 50, 10)
}

func testConfig(k int) Config {
	cfg := DefaultConfig()
	cfg.Clusters = k
	cfg.Tolerance = 0
	cfg.MaxIterations = 50
	return cfg
}

// purity is a share of items whose cluster majority label matches the planted one
func purity(c *Clusterer, labels []int) float64 {
	correct := 0
	for _, center := range c.centers {
		counts := make(map[int]int)
		best := 0
		for _, id := range center.Members {
			counts[labels[id]]++
			if counts[labels[id]] > best {
				best = counts[labels[id]]
			}
		}
		correct += best
	}
	return float64(correct) / float64(len(labels))
}

func checkPartition(t *testing.T, c *Clusterer) {
	t.Helper()
	seen := make(map[int]bool)
	for _, center := range c.centers {
		for _, id := range center.Members {
			require.False(t, seen[id], "item %d assigned twice", id)
			seen[id] = true
		}
	}
	require.Len(t, seen, c.ds.Len(), "every item must be assigned")
}

func TestFourPoints(t *testing.T) {
	t.Parallel()
	ds, err := common.DatasetFromVectors([][]byte{{0, 0}, {1, 0}, {100, 100}, {101, 100}})
	require.NoError(t, err)
	for seed := int64(0); seed < 100; seed++ {
		c, err := New(ds, testConfig(2), rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		_, err = c.Run(context.Background(), Classic)
		require.NoError(t, err)

		byItem := make(map[int]int)
		for ci, center := range c.centers {
			for _, id := range center.Members {
				byItem[id] = ci
			}
		}
		require.Equal(t, byItem[0], byItem[1], "seed %d", seed)
		require.Equal(t, byItem[2], byItem[3], "seed %d", seed)
		require.NotEqual(t, byItem[0], byItem[2], "seed %d", seed)
		low := c.centers[byItem[0]].Components
		high := c.centers[byItem[2]].Components
		assert.LessOrEqual(t, vector.ManhattanDistance(low, []byte{0, 0}), 1)
		assert.LessOrEqual(t, vector.ManhattanDistance(high, []byte{100, 100}), 1)
	}
}

func TestSeeding(t *testing.T) {
	t.Parallel()
	ds, _ := fourBlobs(t, 1)
	for _, k := range []int{1, 2, 4, 10, 50} {
		c, err := New(ds, testConfig(k), rand.New(rand.NewSource(int64(k))))
		require.NoError(t, err)
		require.Len(t, c.centers, k)
		seen := make(map[string]bool)
		for _, center := range c.centers {
			key := string(center.Components)
			require.False(t, seen[key], "centroids must be distinct")
			seen[key] = true
		}
	}

	t.Run("Duplicates", func(t *testing.T) {
		vecs := make([][]byte, 0)
		for i := 0; i < 30; i++ {
			vecs = append(vecs, []byte{byte(i % 5 * 40)})
		}
		ds, err := common.DatasetFromVectors(vecs)
		require.NoError(t, err)
		c, err := New(ds, testConfig(5), rand.New(rand.NewSource(3)))
		require.NoError(t, err)
		assert.Len(t, c.SeedIDs(), 5)
		_, err = New(ds, testConfig(6), rand.New(rand.NewSource(3)))
		assert.Equal(t, ErrTooManyClusters, err)
		_, err = New(ds, testConfig(31), rand.New(rand.NewSource(3)))
		assert.Equal(t, ErrTooManyClusters, err)
	})

	t.Run("FirstIsUniform", func(t *testing.T) {
		vecs := make([][]byte, 10)
		for i := range vecs {
			vecs[i] = []byte{byte(i)}
		}
		ds, err := common.DatasetFromVectors(vecs)
		require.NoError(t, err)
		counts := make([]int, 10)
		for seed := int64(0); seed < 2000; seed++ {
			c, err := New(ds, testConfig(1), rand.New(rand.NewSource(seed)))
			require.NoError(t, err)
			counts[c.SeedIDs()[0]]++
		}
		for id, cnt := range counts {
			assert.True(t, cnt > 120 && cnt < 280, "id %d picked %d times", id, cnt)
		}
	})
}

func TestUniformFromMinP(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	for _, minP := range []float64{1, 0.5, 0.01, 1e-9, 1e-30, 0} {
		for i := 0; i < 100; i++ {
			r := uniformFromMinP(minP, rng)
			require.True(t, r > 0 && r <= 1, "minP=%v r=%v", minP, r)
		}
	}
	probs := []float64{0, 0.25, 0, 0.75, 0}
	assert.Equal(t, 1, pickIndex(probs, 0.1))
	assert.Equal(t, 1, pickIndex(probs, 0.25))
	assert.Equal(t, 3, pickIndex(probs, 0.26))
	assert.Equal(t, 3, pickIndex(probs, 1.0000001), "rounding must not pick a zero probability item")
}

func TestLloydConvergence(t *testing.T) {
	t.Parallel()
	ds, labels := fourBlobs(t, 2)
	c, err := New(ds, testConfig(4), rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	res, err := c.Run(context.Background(), Classic)
	require.NoError(t, err)
	assert.Less(t, res.Iterations, 50, "must converge before the iterations cap")
	assert.Equal(t, "Lloyds", res.Algorithm)
	checkPartition(t, c)
	assert.GreaterOrEqual(t, purity(c, labels), 0.95)
}

func TestReverseAssignment(t *testing.T) {
	t.Parallel()
	for _, method := range []Method{LSH, Hypercube} {
		t.Run(method.String(), func(t *testing.T) {
			ds, _ := fourBlobs(t, 3)
			c, err := New(ds, testConfig(4), rand.New(rand.NewSource(7)))
			require.NoError(t, err)

			require.NoError(t, c.prepareIndex(method))
			c.clear()
			require.NoError(t, c.reverse(context.Background(), method))
			assert.Equal(t, ds.Len(), c.marked.Len(), "every item must be marked")
			checkPartition(t, c)

			c.Reset()
			res, err := c.Run(context.Background(), method)
			require.NoError(t, err)
			checkPartition(t, c)
			assert.Equal(t, method.Algorithm(), res.Algorithm)
			total := 0
			for _, cl := range res.Clusters {
				total += cl.Size
			}
			assert.Equal(t, ds.Len(), total)
		})
	}
}

func TestReverseUnreachableItems(t *testing.T) {
	t.Parallel()
	ds, _ := fourBlobs(t, 5)
	cfg := testConfig(4)
	cfg.StallRatio = 0.01
	cfg.Hypercube = HypercubeParams{Dimension: 10, Probes: 1, MaxCandidates: 5}
	c, err := New(ds, cfg, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = c.Run(ctx, Hypercube)
	require.NoError(t, err, "reverse assignment must stop once no centroid gains items")
	checkPartition(t, c)

	cfg.StallRatio = 0
	_, err = New(ds, cfg, rand.New(rand.NewSource(3)))
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestReverseConflicts(t *testing.T) {
	t.Parallel()
	ds, err := common.DatasetFromVectors([][]byte{{0}, {10}, {17}, {30}})
	require.NoError(t, err)
	cfg := testConfig(2)
	cfg.Radius = 100
	cfg.Window = 1000
	c, err := New(ds, cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	c.centers[0].Components = []byte{0}
	c.centers[1].Components = []byte{30}
	require.NoError(t, c.prepareIndex(LSH))
	c.clear()
	require.NoError(t, c.reverse(context.Background(), LSH))
	// huge window puts everything in one bucket, both balls cover all items
	assert.ElementsMatch(t, []int{0, 1}, c.centers[0].Members)
	assert.ElementsMatch(t, []int{2, 3}, c.centers[1].Members)
}

func TestUpdate(t *testing.T) {
	t.Parallel()
	ds, err := common.DatasetFromVectors([][]byte{{0, 9}, {4, 1}, {10, 5}, {200, 200}})
	require.NoError(t, err)
	cfg := testConfig(2)
	c, err := New(ds, cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	c.centers[0].Components = []byte{1, 1}
	c.centers[0].Members = []int{0, 1, 2}
	c.centers[1].Components = []byte{50, 50}
	c.centers[1].Members = nil

	assert.True(t, c.update())
	assert.Equal(t, []byte{4, 5}, c.centers[0].Components, "componentwise median")
	assert.Equal(t, []byte{50, 50}, c.centers[1].Components, "empty cluster keeps its centroid")

	c.config.Tolerance = 3000
	c.centers[0].Components = []byte{0, 0}
	assert.False(t, c.update(), "move within tolerance is not a change")
	assert.Equal(t, []byte{4, 5}, c.centers[0].Components)
}

func TestSilhouette(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(4))
	ds, _ := blobs(t, rng, [][]byte{{30, 30}, {220, 220}}, 50, 15)
	c, err := New(ds, testConfig(2), rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	res, err := c.Run(context.Background(), Classic)
	require.NoError(t, err)
	per, total, err := c.Silhouette(context.Background())
	require.NoError(t, err)
	res.SetSilhouette(per, total)
	assert.Greater(t, total, 0.5)
	for _, s := range append(per, total) {
		assert.True(t, s >= -1 && s <= 1)
	}
	assert.Equal(t, per[0], c.centers[0].Silhouette)
	assert.Equal(t, total, res.Silhouette)

	t.Run("Singleton", func(t *testing.T) {
		ds, err := common.DatasetFromVectors([][]byte{{0}, {1}, {2}, {250}})
		require.NoError(t, err)
		c, err := New(ds, testConfig(2), rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		c.centers[0].Components = []byte{1}
		c.centers[0].Members = []int{0, 1, 2}
		c.centers[1].Components = []byte{250}
		c.centers[1].Members = []int{3}
		per, total, err := c.Silhouette(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0.0, per[1], "singleton cluster scores 0")
		assert.Greater(t, per[0], 0.9)
		assert.InDelta(t, per[0]*3/4, total, 1e-9)
	})
}

func TestReset(t *testing.T) {
	t.Parallel()
	ds, _ := fourBlobs(t, 6)
	c, err := New(ds, testConfig(4), rand.New(rand.NewSource(8)))
	require.NoError(t, err)
	initial := make([][]byte, 4)
	for i, id := range c.SeedIDs() {
		initial[i] = ds.Vector(id)
	}
	first, err := c.Run(context.Background(), Classic)
	require.NoError(t, err)
	c.Reset()
	for i, center := range c.centers {
		assert.Equal(t, initial[i], center.Components)
		assert.Empty(t, center.Members)
		assert.Zero(t, center.Silhouette)
	}
	assert.Zero(t, c.marked.Len())
	second, err := c.Run(context.Background(), Classic)
	require.NoError(t, err)
	assert.Equal(t, first.Clusters, second.Clusters, "same seeds must give the same clustering")
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()
	ds, _ := fourBlobs(t, 9)
	c, err := New(ds, testConfig(4), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	_, err = c.Run(context.Background(), Method(42))
	assert.Equal(t, unknownMethodErr, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Run(ctx, Classic)
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = New(nil, testConfig(2), rand.New(rand.NewSource(1)))
	assert.Equal(t, common.ErrEmptyDataset, err)

	bad := testConfig(2)
	bad.Hypercube.Dimension = 30
	_, err = New(ds, bad, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, DefaultConfig().Validate())
	mutations := []func(*Config){
		func(c *Config) { c.Clusters = 0 },
		func(c *Config) { c.LSH.HashCount = 0 },
		func(c *Config) { c.LSH.TableCount = -1 },
		func(c *Config) { c.Hypercube.Dimension = 0 },
		func(c *Config) { c.Hypercube.Probes = 0 },
		func(c *Config) { c.Hypercube.MaxCandidates = -1 },
		func(c *Config) { c.Tolerance = -1 },
		func(c *Config) { c.MaxIterations = -1 },
		func(c *Config) { c.MinReverseIterations = 0 },
		func(c *Config) { c.StallRatio = 2 },
		func(c *Config) { c.StallRatio = 0 },
		func(c *Config) { c.Radius = -1 },
		func(c *Config) { c.WindowSample = 0 },
		func(c *Config) { c.WindowScale = 0 },
	}
	for i, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.True(t, errors.Is(cfg.Validate(), common.ErrInvalidConfig), "mutation %d", i)
	}
}

func TestMethod(t *testing.T) {
	t.Parallel()
	for _, m := range Methods {
		parsed, err := ParseMethod(strings.ToLower(m.String()))
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMethod("kd-tree")
	assert.Error(t, err)
	assert.Equal(t, "Range Search Hypercube", Hypercube.Algorithm())
}

func TestWriteReport(t *testing.T) {
	t.Parallel()
	res := &Result{
		Algorithm: "Lloyds",
		Clusters: []ClusterResult{
			{Centroid: []byte{1, 2}, Size: 2, Members: []int{0, 3}, Silhouette: 0.5},
			{Centroid: []byte{9, 9}, Size: 1, Members: []int{1}, Silhouette: 0},
		},
		Silhouette: 0.25,
		Duration:   1500 * 1e6,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, res, true))
	want := "Algorithm: Lloyds\n" +
		"CLUSTER-1 {size: 2, centroid: [1, 2]}\n" +
		"CLUSTER-2 {size: 1, centroid: [9, 9]}\n" +
		"clustering_time: 1.5\n" +
		"Silhouette: [0.5, 0, 0.25]\n" +
		"CLUSTER-1 {centroid: [1, 2], 1, 4}\n" +
		"CLUSTER-2 {centroid: [9, 9], 2}\n"
	assert.Equal(t, want, buf.String())

	buf.Reset()
	require.NoError(t, WriteReport(&buf, res, false))
	assert.NotContains(t, buf.String(), "CLUSTER-1 {centroid")
}

func TestExperiment(t *testing.T) {
	t.Parallel()
	ds, _ := fourBlobs(t, 10)
	c, err := New(ds, testConfig(4), rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	runs := 0
	summaries, err := Experiment(context.Background(), c, Methods, 2, func(*Result) { runs++ })
	require.NoError(t, err)
	assert.Equal(t, 6, runs)
	require.Len(t, summaries, 3)
	for i, s := range summaries {
		assert.Equal(t, Methods[i], s.Method)
		assert.Equal(t, 2, s.Runs)
		assert.Len(t, s.AvgPerCluster, 4)
		assert.True(t, s.AvgSilhouette >= -1 && s.AvgSilhouette <= 1)
	}
	_, err = Experiment(context.Background(), c, Methods, 0, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
}

func TestSweepK(t *testing.T) {
	t.Parallel()
	ds, _ := fourBlobs(t, 12)
	res, err := SweepK(context.Background(), ds, testConfig(2), Classic, 2, 5, rand.New(rand.NewSource(13)))
	require.NoError(t, err)
	require.Len(t, res, 4)
	for i, s := range res {
		assert.Equal(t, i+2, s.Clusters)
	}
	_, err = SweepK(context.Background(), ds, testConfig(2), Classic, 3, 2, rand.New(rand.NewSource(13)))
	assert.Error(t, err)
}
