package main

import (
	"flag"
	"os"

	"github.com/gasparian/ann-clustering-go/annbench"
	"github.com/gasparian/ann-clustering-go/cmd/internal/cli"
	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/lsh"
)

func main() {
	fs := flag.NewFlagSet("lsh", flag.ExitOnError)
	var (
		shared cli.Common
		bench  cli.Bench
		k, l   int
	)
	shared.Register(fs)
	fs.StringVar(&bench.Input, "d", "", "input dataset (idx, optionally .gz/.zst/.lz4, local or s3://)")
	fs.StringVar(&bench.Queries, "q", "", "query dataset")
	fs.StringVar(&bench.Output, "o", "", "output report")
	fs.IntVar(&k, "k", 4, "hash functions per amplified hash")
	fs.IntVar(&l, "L", 5, "number of hash tables")
	fs.IntVar(&bench.N, "N", 1, "number of nearest neighbors")
	fs.IntVar(&bench.Radius, "R", 10000, "range search radius")
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
		cfg.LSH.HashCount = k
	}
	if cli.IsSet(fs, "L") {
		cfg.LSH.TableCount = l
	}
	if !cli.IsSet(fs, "N") {
		bench.N = cfg.LSH.Neighbors
	}
	if !cli.IsSet(fs, "R") {
		bench.Radius = cfg.LSH.Radius
	}
	if !cli.IsSet(fs, "w") {
		bench.Window = cfg.LSH.Window
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
		idx, err := lsh.New(ds, cfg.LSHParams(window, env.Logger.With().Str("index", "lsh").Logger()), env.Rng)
		if err != nil {
			return nil, err
		}
		env.Logger.Info().
			Int("k", cfg.LSH.HashCount).
			Int("L", cfg.LSH.TableCount).
			Int("tableSize", idx.TableSize()).
			Msg("lsh index built")
		return annbench.LSHSearcher{Index: idx}, nil
	})
	if err != nil {
		cli.Exit(env.Logger, err)
	}
	env.Logger.Info().Str("output", bench.Output).Msg("report written")
}
