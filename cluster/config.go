package cluster

import (
	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/hasher"
	"github.com/gasparian/ann-clustering-go/hypercube"
	"github.com/gasparian/ann-clustering-go/vector"
	"github.com/rs/zerolog"
)

// LSHParams configures the index used by LSH reverse assignment
type LSHParams struct {
	HashCount  int
	TableCount int
}

// HypercubeParams configures the index used by Hypercube reverse assignment
type HypercubeParams struct {
	Dimension     int
	MaxCandidates int // items examined per range search, 0 means no limit
	Probes        int
}

// Config holds the clustering session parameters
type Config struct {
	Clusters  int
	LSH       LSHParams
	Hypercube HypercubeParams
	Metric    vector.Metric
	// Tolerance is the Manhattan distance a centroid must move to be considered changed
	Tolerance     int
	MaxIterations int // 0 means iterate until convergence
	// reverse assignment stops when fewer than StallRatio*K centroids gain points,
	// but never before MinReverseIterations
	MinReverseIterations int
	StallRatio           float64
	Radius               int // initial range search radius, 0 derives it from the seeds
	Window               int // 0 derives it from the average distance
	WindowSample         float64
	WindowScale          float64
	Workers              int
	Logger               zerolog.Logger
}

// DefaultConfig returns the default clustering parameters
func DefaultConfig() Config {
	return Config{
		Clusters: 10,
		LSH: LSHParams{
			HashCount:  4,
			TableCount: 3,
		},
		Hypercube: HypercubeParams{
			Dimension:     3,
			MaxCandidates: 10,
			Probes:        2,
		},
		Metric:               vector.Manhattan,
		Tolerance:            3000,
		MaxIterations:        300,
		MinReverseIterations: 3,
		StallRatio:           0.2,
		WindowSample:         0.05,
		WindowScale:          1,
		Logger:               zerolog.Nop(),
	}
}

// Validate checks every parameter, including the ones of indexes not built yet
func (c Config) Validate() error {
	switch {
	case c.Clusters <= 0:
		return common.NewConfigError("clusters number", c.Clusters, "must be a positive integer")
	case c.LSH.HashCount <= 0 || c.LSH.HashCount > hasher.MaxFunctions:
		return common.NewConfigError("lsh hash functions number", c.LSH.HashCount, "must be in [1, 32]")
	case c.LSH.TableCount <= 0:
		return common.NewConfigError("lsh tables number", c.LSH.TableCount, "must be a positive integer")
	case c.Hypercube.Dimension <= 0 || c.Hypercube.Dimension > hypercube.MaxDimension:
		return common.NewConfigError("hypercube dimension", c.Hypercube.Dimension, "must be in [1, 24]")
	case c.Hypercube.Probes <= 0:
		return common.NewConfigError("hypercube probes", c.Hypercube.Probes, "must be a positive integer")
	case c.Hypercube.MaxCandidates < 0:
		return common.NewConfigError("hypercube candidates", c.Hypercube.MaxCandidates, "can't be negative")
	case c.Tolerance < 0:
		return common.NewConfigError("tolerance", c.Tolerance, "can't be negative")
	case c.MaxIterations < 0:
		return common.NewConfigError("max iterations", c.MaxIterations, "can't be negative")
	case c.MinReverseIterations < 1:
		return common.NewConfigError("min reverse iterations", c.MinReverseIterations, "must be a positive integer")
	case c.StallRatio <= 0 || c.StallRatio > 1:
		return common.NewConfigError("stall ratio", c.StallRatio, "must be in (0, 1]")
	case c.Radius < 0:
		return common.NewConfigError("radius", c.Radius, "can't be negative")
	case c.Window < 0:
		return common.NewConfigError("window", c.Window, "can't be negative")
	case c.Window == 0 && (c.WindowSample <= 0 || c.WindowSample > 1):
		return common.NewConfigError("window sample", c.WindowSample, "must be in (0, 1]")
	case c.Window == 0 && c.WindowScale <= 0:
		return common.NewConfigError("window scale", c.WindowScale, "must be positive")
	}
	return nil
}
