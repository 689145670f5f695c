package cluster

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"github.com/gasparian/ann-clustering-go/bruteforce"
	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/hypercube"
	"github.com/gasparian/ann-clustering-go/lsh"
	"github.com/gasparian/ann-clustering-go/vector"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrTooManyClusters is returned when the dataset has fewer distinct points than clusters requested
	ErrTooManyClusters = errors.New("number of clusters exceeds the number of distinct points")
)

// Center is a centroid with the items assigned to it during the last pass
type Center struct {
	Components []byte
	Members    []int
	Silhouette float64
	initial    []byte
}

// Clusterer is a clustering session: seeded centroids plus the live search index
// used by reverse assignment
type Clusterer struct {
	config  Config
	ds      *common.Dataset
	rng     *rand.Rand
	centers []*Center
	seeds   []int
	marked  *common.IDSet
	window  int
	live    Method
	lsh     *lsh.Index
	cube    *hypercube.Index
}

// New validates config and seeds centroids with k-means++
func New(ds *common.Dataset, config Config, rng *rand.Rand) (*Clusterer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if ds == nil || ds.Len() == 0 {
		return nil, common.ErrEmptyDataset
	}
	if config.Clusters > ds.Len() {
		return nil, ErrTooManyClusters
	}
	c := &Clusterer{
		config: config,
		ds:     ds,
		rng:    rng,
		marked: common.NewIDSet(),
		window: config.Window,
		live:   Classic,
	}
	if err := c.seed(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Clusterer) distance(x, y []byte) float64 {
	return c.config.Metric.Distance(x, y)
}

// uniformFromMinP draws from {1/inv, 2/inv, ..., 1} where inv = 1/minP,
// so the smallest probability still covers at least one step
func uniformFromMinP(minP float64, rng *rand.Rand) float64 {
	inv := int64(1)
	if minP > 0 {
		f := 1 / minP
		switch {
		case f > 1<<62:
			inv = 1 << 62
		case f >= 1:
			inv = int64(f)
		}
	}
	return float64(rng.Int63n(inv)+1) / float64(inv)
}

// pickIndex inverts the cumulative distribution, zero probabilities are never picked
func pickIndex(probs []float64, r float64) int {
	cum := 0.0
	last := -1
	for i, p := range probs {
		if p <= 0 {
			continue
		}
		last = i
		cum += p
		if cum >= r {
			return i
		}
	}
	return last
}

// seed picks the first centroid uniformly, the rest proportionally to the squared
// distance to the closest centroid already chosen
func (c *Clusterer) seed() error {
	n := c.ds.Len()
	k := c.config.Clusters
	first := c.rng.Intn(n)
	c.seeds = []int{first}
	minDist := make([]float64, n)
	for i := range minDist {
		minDist[i] = math.Inf(1)
	}
	probs := make([]float64, n)
	for len(c.seeds) < k {
		latest := c.ds.Vector(c.seeds[len(c.seeds)-1])
		sum := 0.0
		for i, it := range c.ds.Items() {
			d := c.distance(it.Data, latest)
			if d*d < minDist[i] {
				minDist[i] = d * d
			}
			sum += minDist[i]
		}
		if sum == 0 {
			return ErrTooManyClusters
		}
		minP := 1.0
		for i, d := range minDist {
			probs[i] = d / sum
			if probs[i] > 0 && probs[i] < minP {
				minP = probs[i]
			}
		}
		next := pickIndex(probs, uniformFromMinP(minP, c.rng))
		c.seeds = append(c.seeds, next)
	}
	c.centers = make([]*Center, k)
	for i, id := range c.seeds {
		vec := c.ds.Vector(id)
		c.centers[i] = &Center{
			Components: append([]byte(nil), vec...),
			initial:    append([]byte(nil), vec...),
		}
	}
	c.config.Logger.Debug().Ints("seeds", c.seeds).Msg("cluster: centroids seeded")
	return nil
}

// SeedIDs returns ids of items the centroids were seeded from
func (c *Clusterer) SeedIDs() []int {
	return append([]int(nil), c.seeds...)
}

// Centers returns the session centroids
func (c *Clusterer) Centers() []*Center {
	return c.centers
}

// Reset restores the seeded centroids and drops assignments and scores
func (c *Clusterer) Reset() {
	for _, center := range c.centers {
		center.Components = append([]byte(nil), center.initial...)
		center.Members = nil
		center.Silhouette = 0
	}
	c.marked.Clear()
}

func (c *Clusterer) clear() {
	for _, center := range c.centers {
		center.Members = center.Members[:0]
	}
	c.marked.Clear()
}

func (c *Clusterer) workers() int {
	if c.config.Workers > 0 {
		return c.config.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Run clusters the dataset with the given method until no centroid changes
func (c *Clusterer) Run(ctx context.Context, method Method) (*Result, error) {
	if err := method.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	if err := c.prepareIndex(method); err != nil {
		return nil, err
	}
	iterations := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.clear()
		var err error
		switch method {
		case Classic:
			err = c.lloyd(ctx, nil)
		case LSH, Hypercube:
			err = c.reverse(ctx, method)
		}
		if err != nil {
			return nil, err
		}
		changed := c.update()
		iterations++
		c.config.Logger.Debug().
			Str("method", method.String()).
			Int("iteration", iterations).
			Bool("changed", changed).
			Msg("cluster: iteration done")
		if !changed {
			break
		}
		if c.config.MaxIterations > 0 && iterations >= c.config.MaxIterations {
			c.config.Logger.Warn().Int("iterations", iterations).Msg("cluster: stopped before convergence")
			break
		}
	}
	elapsed := time.Since(start)
	c.config.Logger.Info().
		Str("method", method.String()).
		Int("iterations", iterations).
		Dur("elapsed", elapsed).
		Msg("cluster: converged")
	return c.result(method, elapsed, iterations), nil
}

// prepareIndex keeps a single live index, rebuilding it when the method switches
func (c *Clusterer) prepareIndex(method Method) error {
	if method == Classic || method == c.live {
		return nil
	}
	if c.window == 0 {
		avg, err := bruteforce.AverageDistance(c.ds, c.config.WindowSample, c.rng)
		if err != nil {
			return err
		}
		c.window = bruteforce.WindowSize(avg, c.config.WindowScale)
	}
	c.lsh, c.cube = nil, nil
	var err error
	switch method {
	case LSH:
		c.lsh, err = lsh.New(c.ds, lsh.Config{
			HashCount:  c.config.LSH.HashCount,
			TableCount: c.config.LSH.TableCount,
			Window:     c.window,
			Workers:    c.config.Workers,
			Logger:     c.config.Logger,
		}, c.rng)
	case Hypercube:
		c.cube, err = hypercube.New(c.ds, hypercube.Config{
			Dimension: c.config.Hypercube.Dimension,
			Window:    c.window,
			Logger:    c.config.Logger,
		}, c.rng)
	}
	if err != nil {
		c.live = Classic
		return err
	}
	c.live = method
	return nil
}

func (c *Clusterer) nearest(vec []byte, exclude int) int {
	best, bestDist := -1, math.Inf(1)
	for i, center := range c.centers {
		if i == exclude {
			continue
		}
		d := c.distance(vec, center.Components)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// lloyd assigns every item not hidden by skip to the nearest centroid
func (c *Clusterer) lloyd(ctx context.Context, skip common.Filter) error {
	n := c.ds.Len()
	assigned := make([]int, n)
	workers := c.workers()
	chunk := (n + workers - 1) / workers
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for from := 0; from < n; from += chunk {
		from := from
		to := min(from+chunk, n)
		eg.Go(func() error {
			for id := from; id < to; id++ {
				if skip != nil && skip.Excluded(id) {
					assigned[id] = -1
					continue
				}
				assigned[id] = c.nearest(c.ds.Vector(id), -1)
			}
			return ctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	for id, ci := range assigned {
		if ci < 0 {
			continue
		}
		c.centers[ci].Members = append(c.centers[ci].Members, id)
		c.marked.Add(id)
	}
	return nil
}

func (c *Clusterer) initialRadius() int {
	if c.config.Radius > 0 {
		return c.config.Radius
	}
	minDist := math.MaxInt
	for i := range c.centers {
		for j := i + 1; j < len(c.centers); j++ {
			d := vector.ManhattanDistance(c.centers[i].Components, c.centers[j].Components)
			if d < minDist {
				minDist = d
			}
		}
	}
	if minDist == math.MaxInt || minDist < 2 {
		return 1
	}
	return minDist / 2
}

func (c *Clusterer) rangeSearch(method Method, query []byte, radius int) []common.Neighbor {
	if method == LSH {
		return c.lsh.RangeSearch(query, radius, 0, c.marked)
	}
	return c.cube.RangeSearch(query, radius, c.config.Hypercube.Probes, c.config.Hypercube.MaxCandidates, c.marked)
}

type claim struct {
	center int
	dist   int
}

// reverse lets every centroid claim items around it with a doubling radius,
// conflicting claims go to the closer centroid; leftovers are assigned by lloyd
func (c *Clusterer) reverse(ctx context.Context, method Method) error {
	k := len(c.centers)
	radius := c.initialRadius()
	for iter := 1; ; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		claims := make(map[int]claim)
		for ci, center := range c.centers {
			for _, nb := range c.rangeSearch(method, center.Components, radius) {
				staged, ok := claims[nb.ID]
				if ok && staged.dist <= nb.Distance {
					continue
				}
				claims[nb.ID] = claim{center: ci, dist: nb.Distance}
			}
		}
		ids := make([]int, 0, len(claims))
		for id := range claims {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		gained := make([]bool, k)
		for _, id := range ids {
			cl := claims[id]
			c.marked.Add(id)
			c.centers[cl.center].Members = append(c.centers[cl.center].Members, id)
			gained[cl.center] = true
		}
		gainers := 0
		for _, g := range gained {
			if g {
				gainers++
			}
		}
		c.config.Logger.Debug().
			Int("iteration", iter).
			Int("radius", radius).
			Int("claimed", len(ids)).
			Int("gainers", gainers).
			Msg("cluster: reverse assignment")
		if c.marked.Len() == c.ds.Len() {
			break
		}
		stalled := gainers == 0 || float64(gainers) < c.config.StallRatio*float64(k)
		if stalled && iter >= c.config.MinReverseIterations {
			break
		}
		if radius < math.MaxInt/2 {
			radius *= 2
		}
	}
	return c.lloyd(ctx, c.marked)
}

// update replaces every centroid by the componentwise median of its members,
// reports whether any centroid moved further than the tolerance
func (c *Clusterer) update() bool {
	changed := false
	dim := c.ds.Dim()
	for _, center := range c.centers {
		m := len(center.Members)
		if m == 0 {
			continue
		}
		next := make([]byte, dim)
		values := make([]float64, m)
		for j := 0; j < dim; j++ {
			for i, id := range center.Members {
				values[i] = float64(c.ds.Vector(id)[j])
			}
			sort.Float64s(values)
			next[j] = byte(stat.Quantile(0.5, stat.Empirical, values, nil))
		}
		if vector.ManhattanDistance(next, center.Components) > c.config.Tolerance {
			changed = true
		}
		center.Components = next
	}
	return changed
}
