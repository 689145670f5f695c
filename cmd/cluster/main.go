package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/gasparian/ann-clustering-go/cluster"
	"github.com/gasparian/ann-clustering-go/cmd/internal/cli"
	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/config"
	"github.com/gasparian/ann-clustering-go/dataset"
	"github.com/gasparian/ann-clustering-go/store"
)

var (
	badSweepErr = errors.New("sweep must look like <from>-<to>")
)

type options struct {
	input    string
	conf     string
	output   string
	method   string
	sweep    string
	complete bool
	epochs   int
}

func isViperFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}

func parseSweep(s string) (int, int, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, badSweepErr
	}
	f, err := strconv.Atoi(from)
	if err != nil {
		return 0, 0, badSweepErr
	}
	t, err := strconv.Atoi(to)
	if err != nil {
		return 0, 0, badSweepErr
	}
	return f, t, nil
}

func parseMethods(name string) ([]cluster.Method, error) {
	if strings.EqualFold(name, "all") {
		return cluster.Methods, nil
	}
	m, err := cluster.ParseMethod(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}
	return []cluster.Method{m}, nil
}

func applyClusterFile(cfg *config.Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return config.ParseClusterFile(f, &cfg.Cluster)
}

func main() {
	fs := flag.NewFlagSet("cluster", flag.ExitOnError)
	var (
		shared cli.Common
		opts   options
	)
	shared.Register(fs)
	fs.StringVar(&opts.input, "i", "", "input dataset (idx, optionally .gz/.zst/.lz4, local or s3://)")
	fs.StringVar(&opts.conf, "c", "", "cluster configuration, six line legacy format or yaml/json/toml")
	fs.StringVar(&opts.output, "o", "", "output report")
	fs.StringVar(&opts.method, "m", "Classic", "assignment method: Classic, LSH, Hypercube or all")
	fs.BoolVar(&opts.complete, "complete", false, "print members of every cluster")
	fs.IntVar(&opts.epochs, "epochs", 1, "number of runs per method")
	fs.StringVar(&opts.sweep, "sweep", "", "run once for every number of clusters in <from>-<to>")
	fs.Parse(os.Args[1:])

	if opts.conf != "" && isViperFile(opts.conf) && shared.Config == "" {
		shared.Config = opts.conf
	}
	env, err := cli.Setup(fs, shared)
	if err != nil {
		cli.Exit(common.NewLogger(os.Stderr, "info", true), err)
	}
	defer env.Store.Close()

	cfg := env.Config
	if opts.conf != "" && !isViperFile(opts.conf) {
		if err := applyClusterFile(cfg, opts.conf); err != nil {
			cli.Exit(env.Logger, err)
		}
	}
	if cli.IsSet(fs, "complete") {
		cfg.Cluster.Complete = opts.complete
	}
	if cli.IsSet(fs, "epochs") {
		cfg.Cluster.Epochs = opts.epochs
	}
	if err := cfg.Validate(); err != nil {
		cli.Exit(env.Logger, err)
	}

	ctx, cancel := cli.Context()
	defer cancel()
	if err := run(ctx, env, opts); err != nil {
		cli.Exit(env.Logger, err)
	}
	env.Logger.Info().Str("output", opts.output).Msg("report written")
}

func run(ctx context.Context, env *cli.Env, opts options) error {
	if opts.input == "" || opts.output == "" {
		return cli.ErrMissingPath
	}
	cfg := env.Config
	ds, err := dataset.Load(ctx, opts.input, cfg.S3Params())
	if err != nil {
		return fmt.Errorf("input dataset: %w", err)
	}
	env.Logger.Info().Int("items", ds.Len()).Int("dim", ds.Dim()).Msg("dataset loaded")

	cc, err := cfg.ClusterParams(env.Logger.With().Str("component", "cluster").Logger())
	if err != nil {
		return err
	}

	w, err := dataset.Create(opts.output)
	if err != nil {
		return err
	}
	if opts.sweep != "" {
		err = sweep(ctx, env, w, ds, cc, opts)
	} else {
		err = experiment(ctx, env, w, ds, cc, opts)
	}
	if err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func experiment(ctx context.Context, env *cli.Env, w io.Writer, ds *common.Dataset, cc cluster.Config, opts options) error {
	methods, err := parseMethods(opts.method)
	if err != nil {
		return err
	}
	c, err := cluster.New(ds, cc, env.Rng)
	if err != nil {
		return err
	}
	epochs := env.Config.Cluster.Epochs
	bar := pb.StartNew(len(methods) * epochs)
	first := true
	var runErr error
	summaries, err := cluster.Experiment(ctx, c, methods, epochs, func(res *cluster.Result) {
		bar.Increment()
		if runErr != nil {
			return
		}
		if !first {
			io.WriteString(w, "\n")
		}
		first = false
		if err := cluster.WriteReport(w, res, env.Config.Cluster.Complete); err != nil {
			runErr = err
			return
		}
		if err := store.PutJSON(env.Store, store.ClusteringsBucket, res.RunID, res); err != nil {
			runErr = err
		}
	})
	bar.Finish()
	if err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	for _, s := range summaries {
		env.Logger.Info().
			Str("method", s.Method.String()).
			Int("runs", s.Runs).
			Dur("avgDuration", s.AvgDuration).
			Float64("avgIterations", s.AvgIterations).
			Float64("avgSilhouette", s.AvgSilhouette).
			Msg("method summary")
	}
	return nil
}

func sweep(ctx context.Context, env *cli.Env, w io.Writer, ds *common.Dataset, cc cluster.Config, opts options) error {
	from, to, err := parseSweep(opts.sweep)
	if err != nil {
		return err
	}
	methods, err := parseMethods(opts.method)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	for _, method := range methods {
		summaries, err := cluster.SweepK(ctx, ds, cc, method, from, to, env.Rng)
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "Algorithm: %s\n", method.Algorithm())
		for _, s := range summaries {
			fmt.Fprintf(bw, "K: %d, Silhouette: %s, clustering_time: %s, iterations: %d\n",
				s.Clusters,
				strconv.FormatFloat(s.Silhouette, 'f', -1, 64),
				strconv.FormatFloat(s.Duration.Seconds(), 'f', -1, 64),
				s.Iterations,
			)
		}
	}
	return bw.Flush()
}
