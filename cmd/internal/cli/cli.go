package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/gasparian/ann-clustering-go/annbench"
	"github.com/gasparian/ann-clustering-go/app"
	"github.com/gasparian/ann-clustering-go/bruteforce"
	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/config"
	"github.com/gasparian/ann-clustering-go/dataset"
	"github.com/gasparian/ann-clustering-go/store"
	"github.com/gasparian/ann-clustering-go/store/kv"
	"github.com/gasparian/ann-clustering-go/store/purekv"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingPath is returned when a mandatory file flag is empty
	ErrMissingPath = errors.New("input, query and output paths are mandatory")
)

// Env holds everything a command needs after startup
type Env struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.Store
	Rng    *rand.Rand
}

// Common are the flags shared by every command
type Common struct {
	Config   string
	Seed     int64
	Store    string
	LogLevel string
}

// Register adds shared flags to the set
func (c *Common) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.Config, "config", "", "path to the yaml/json/toml config file")
	fs.Int64Var(&c.Seed, "seed", 0, "random seed, overrides the config value")
	fs.StringVar(&c.Store, "store", "", "pure-kv address to publish results to")
	fs.StringVar(&c.LogLevel, "log", "", "log level, overrides the config value")
}

// IsSet reports whether the flag was passed explicitly
func IsSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// Setup loads the config, applies shared flag overrides and opens the result store
func Setup(fs *flag.FlagSet, c Common) (*Env, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if IsSet(fs, "seed") {
		cfg.Seed = c.Seed
	}
	if IsSet(fs, "store") {
		cfg.Store.Address = c.Store
	}
	if IsSet(fs, "log") {
		cfg.Log.Level = c.LogLevel
	}
	logger := common.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
	st, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Env{
		Config: cfg,
		Logger: logger,
		Store:  st,
		Rng:    rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// OpenStore connects to pure-kv when the address is configured, otherwise keeps results in memory
func OpenStore(cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	if cfg.Store.Address == "" {
		return kv.NewKVStore(), nil
	}
	st := purekv.New(cfg.StoreParams())
	if err := st.Start(); err != nil {
		return nil, fmt.Errorf("pure-kv at %s: %w", cfg.Store.Address, err)
	}
	logger.Info().Str("address", cfg.Store.Address).Msg("publishing results to pure-kv")
	return st, nil
}

// Context is cancelled on SIGINT and SIGTERM
func Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Window returns the configured hash window or calibrates it from the dataset
func (e *Env) Window(ds *common.Dataset, configured int) (int, error) {
	if configured > 0 {
		return configured, nil
	}
	avg, err := bruteforce.AverageDistance(ds, e.Config.WindowSample, e.Rng)
	if err != nil {
		return 0, err
	}
	w := bruteforce.WindowSize(avg, e.Config.WindowScale)
	e.Logger.Info().Float64("avgDistance", avg).Int("window", w).Msg("hash window calibrated")
	return w, nil
}

// Bench describes a single benchmark run
type Bench struct {
	Input   string
	Queries string
	Output  string
	Window  int
	N       int
	Radius  int
	Serve   string
}

// BuildFunc builds the approximate searcher over ds
type BuildFunc func(ds *common.Dataset, window int) (annbench.Searcher, error)

// RunBench loads both datasets, compares the approximate searcher with brute force,
// writes the report, publishes the summary and optionally serves queries
func (e *Env) RunBench(ctx context.Context, b Bench, build BuildFunc) error {
	if b.Input == "" || b.Queries == "" || b.Output == "" {
		return ErrMissingPath
	}
	s3 := e.Config.S3Params()
	ds, err := dataset.Load(ctx, b.Input, s3)
	if err != nil {
		return fmt.Errorf("input dataset: %w", err)
	}
	queries, err := dataset.Load(ctx, b.Queries, s3)
	if err != nil {
		return fmt.Errorf("query dataset: %w", err)
	}
	e.Logger.Info().Int("items", ds.Len()).Int("queries", queries.Len()).Int("dim", ds.Dim()).Msg("datasets loaded")

	window, err := e.Window(ds, b.Window)
	if err != nil {
		return err
	}
	searcher, err := build(ds, window)
	if err != nil {
		return err
	}
	exact, err := bruteforce.New(ds)
	if err != nil {
		return err
	}

	bar := pb.StartNew(queries.Len())
	out, err := annbench.Compare(ctx, exact, searcher, queries, b.N, b.Radius, e.Config.Workers, func() {
		bar.Increment()
	})
	bar.Finish()
	if err != nil {
		return err
	}

	w, err := dataset.Create(b.Output)
	if err != nil {
		return err
	}
	if err := annbench.WriteReport(w, out); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	summary := out.Summary()
	e.Logger.Info().
		Str("runId", summary.RunID).
		Float64("precision", summary.Precision).
		Float64("recall", summary.Recall).
		Float64("avgRatio", summary.AvgRatio).
		Dur("avgApprox", summary.AvgApprox).
		Dur("avgExact", summary.AvgExact).
		Msg("benchmark done")
	if err := store.PutJSON(e.Store, store.BenchmarksBucket, summary.RunID, summary); err != nil {
		return err
	}

	if b.Serve == "" {
		return nil
	}
	srv := app.New(b.Serve, ds, []annbench.Searcher{annbench.ExactSearcher{Index: exact}, searcher}, e.Logger)
	err = srv.ListenAndServe(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Exit logs the error and terminates the process with non-zero code
func Exit(logger zerolog.Logger, err error) {
	logger.Error().Err(err).Msg("failed")
	os.Exit(1)
}
