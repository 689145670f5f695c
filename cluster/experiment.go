package cluster

import (
	"context"
	"math/rand"
	"time"

	"github.com/gasparian/ann-clustering-go/common"
	"gonum.org/v1/gonum/floats"
)

// MethodSummary averages repeated runs of one method
type MethodSummary struct {
	Method        Method
	Runs          int
	AvgDuration   time.Duration
	AvgIterations float64
	AvgSilhouette float64
	AvgPerCluster []float64
}

// Experiment runs every method for the given number of epochs starting
// from the same seeded centroids; onRun is called after every scored run if not nil
func Experiment(ctx context.Context, c *Clusterer, methods []Method, epochs int, onRun func(*Result)) ([]MethodSummary, error) {
	if epochs <= 0 {
		return nil, common.NewConfigError("epochs", epochs, "must be a positive integer")
	}
	k := len(c.centers)
	durations := make([][]float64, len(methods))
	iterations := make([][]float64, len(methods))
	totals := make([][]float64, len(methods))
	perCluster := make([][]float64, len(methods))
	for i := range methods {
		perCluster[i] = make([]float64, k)
	}
	for epoch := 0; epoch < epochs; epoch++ {
		for i, method := range methods {
			c.Reset()
			res, err := c.Run(ctx, method)
			if err != nil {
				return nil, err
			}
			per, total, err := c.Silhouette(ctx)
			if err != nil {
				return nil, err
			}
			res.SetSilhouette(per, total)
			durations[i] = append(durations[i], float64(res.Duration))
			iterations[i] = append(iterations[i], float64(res.Iterations))
			totals[i] = append(totals[i], total)
			floats.Add(perCluster[i], per)
			if onRun != nil {
				onRun(res)
			}
		}
	}
	c.Reset()

	n := float64(epochs)
	summaries := make([]MethodSummary, len(methods))
	for i, method := range methods {
		floats.Scale(1/n, perCluster[i])
		summaries[i] = MethodSummary{
			Method:        method,
			Runs:          epochs,
			AvgDuration:   time.Duration(floats.Sum(durations[i]) / n),
			AvgIterations: floats.Sum(iterations[i]) / n,
			AvgSilhouette: floats.Sum(totals[i]) / n,
			AvgPerCluster: perCluster[i],
		}
	}
	return summaries, nil
}

// KSummary is the outcome of clustering with a particular number of clusters
type KSummary struct {
	Clusters   int
	Silhouette float64
	Duration   time.Duration
	Iterations int
}

// SweepK seeds and runs a new session for every number of clusters in [from, to]
func SweepK(ctx context.Context, ds *common.Dataset, config Config, method Method, from, to int, rng *rand.Rand) ([]KSummary, error) {
	if from <= 0 || to < from {
		return nil, common.NewConfigError("clusters range", [2]int{from, to}, "must be a non-empty positive range")
	}
	res := make([]KSummary, 0, to-from+1)
	for k := from; k <= to; k++ {
		config.Clusters = k
		c, err := New(ds, config, rng)
		if err != nil {
			return nil, err
		}
		run, err := c.Run(ctx, method)
		if err != nil {
			return nil, err
		}
		_, total, err := c.Silhouette(ctx)
		if err != nil {
			return nil, err
		}
		res = append(res, KSummary{
			Clusters:   k,
			Silhouette: total,
			Duration:   run.Duration,
			Iterations: run.Iterations,
		})
		config.Logger.Info().Int("k", k).Float64("silhouette", total).Msg("cluster: sweep step done")
	}
	return res, nil
}
