package cluster

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// silhouetteOf scores one item; singleton clusters and clusters
// without a populated neighbor cluster score 0
func (c *Clusterer) silhouetteOf(id, own int) float64 {
	members := c.centers[own].Members
	if len(members) <= 1 {
		return 0
	}
	vec := c.ds.Vector(id)
	second := c.nearest(vec, own)
	if second < 0 || len(c.centers[second].Members) == 0 {
		return 0
	}
	a := 0.0
	for _, other := range members {
		if other != id {
			a += c.distance(vec, c.ds.Vector(other))
		}
	}
	a /= float64(len(members) - 1)
	b := 0.0
	for _, other := range c.centers[second].Members {
		b += c.distance(vec, c.ds.Vector(other))
	}
	b /= float64(len(c.centers[second].Members))
	denom := max(a, b)
	if denom == 0 {
		return 0
	}
	return (b - a) / denom
}

// Silhouette scores the current assignment, returns per cluster scores and the overall one
func (c *Clusterer) Silhouette(ctx context.Context) ([]float64, float64, error) {
	type job struct {
		id, own int
	}
	jobs := make([]job, 0, c.ds.Len())
	for ci, center := range c.centers {
		for _, id := range center.Members {
			jobs = append(jobs, job{id: id, own: ci})
		}
	}
	scores := make([]float64, len(jobs))
	workers := c.workers()
	chunk := (len(jobs) + workers - 1) / workers
	if chunk == 0 {
		chunk = 1
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for from := 0; from < len(jobs); from += chunk {
		from := from
		to := min(from+chunk, len(jobs))
		eg.Go(func() error {
			for i := from; i < to; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				scores[i] = c.silhouetteOf(jobs[i].id, jobs[i].own)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}

	perCluster := make([]float64, len(c.centers))
	offset := 0
	for ci, center := range c.centers {
		m := len(center.Members)
		if m > 0 {
			perCluster[ci] = stat.Mean(scores[offset:offset+m], nil)
		}
		center.Silhouette = perCluster[ci]
		offset += m
	}
	total := 0.0
	if len(scores) > 0 {
		total = stat.Mean(scores, nil)
	}
	return perCluster, total, nil
}
