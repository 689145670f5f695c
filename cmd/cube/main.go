package main

import (
	"flag"
	"os"

	"github.com/gasparian/ann-clustering-go/annbench"
	"github.com/gasparian/ann-clustering-go/cmd/internal/cli"
	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/hasher"
	"github.com/gasparian/ann-clustering-go/hypercube"
)

func main() {
	fs := flag.NewFlagSet("cube", flag.ExitOnError)
	var (
		shared       cli.Common
		bench        cli.Bench
		k, m, probes int
	)
	shared.Register(fs)
	fs.StringVar(&bench.Input, "d", "", "input dataset (idx, optionally .gz/.zst/.lz4, local or s3://)")
	fs.StringVar(&bench.Queries, "q", "", "query dataset")
	fs.StringVar(&bench.Output, "o", "", "output report")
	fs.IntVar(&k, "k", 14, "hypercube dimension")
	fs.IntVar(&m, "M", 10, "max number of candidates examined per query")
	fs.IntVar(&probes, "probes", 2, "max number of vertices visited per query")
	fs.IntVar(&bench.N, "N", 1, "number of nearest neighbors")
	fs.IntVar(&bench.Radius, "R", 1, "range search radius")
	fs.IntVar(&bench.Window, "w", 0, "hash window, 0 calibrates it from the dataset")
	fs.StringVar(&bench.Serve, "serve", "", "serve queries at the address after the report is written")
	fs.Parse(os.Args[1:])

	env, err := cli.Setup(fs, shared)
	if err != nil {
		cli.Exit(common.NewLogger(os.Stderr, "info", true), err)
	}
	defer env.Store.Close()

	cfg := env.Config
	if cli.IsSet(fs, "k") {
		cfg.Hypercube.Dimension = k
	}
	if cli.IsSet(fs, "M") {
		cfg.Hypercube.MaxCandidates = m
	}
	if cli.IsSet(fs, "probes") {
		cfg.Hypercube.Probes = probes
	}
	if !cli.IsSet(fs, "N") {
		bench.N = cfg.Hypercube.Neighbors
	}
	if !cli.IsSet(fs, "R") {
		bench.Radius = cfg.Hypercube.Radius
	}
	if !cli.IsSet(fs, "w") {
		bench.Window = cfg.Hypercube.Window
	}
	if !cli.IsSet(fs, "serve") {
		bench.Serve = cfg.Server.Address
	}
	if err := cfg.Validate(); err != nil {
		cli.Exit(env.Logger, err)
	}

	ctx, cancel := cli.Context()
	defer cancel()
	err = env.RunBench(ctx, bench, func(ds *common.Dataset, window int) (annbench.Searcher, error) {
		sample := common.SampleIDs(ds.Len(), cfg.WindowSample, env.Rng)
		fRange, err := hasher.EstimateRange(ds, sample, cfg.Hypercube.Dimension, window, env.Rng)
		if err != nil {
			return nil, err
		}
		logger := env.Logger.With().Str("index", "hypercube").Logger()
		idx, err := hypercube.New(ds, cfg.HypercubeParams(window, &fRange, logger), env.Rng)
		if err != nil {
			return nil, err
		}
		used, largest := idx.Occupancy()
		env.Logger.Info().
			Int("k", cfg.Hypercube.Dimension).
			Uint64("fMin", fRange.Min).
			Uint64("fMax", fRange.Max).
			Int("usedVertices", used).
			Int("largestVertex", largest).
			Msg("hypercube index built")
		return annbench.CubeSearcher{
			Index:  idx,
			Probes: cfg.Hypercube.Probes,
			Thresh: cfg.Hypercube.MaxCandidates,
		}, nil
	})
	if err != nil {
		cli.Exit(env.Logger, err)
	}
	env.Logger.Info().Str("output", bench.Output).Msg("report written")
}
