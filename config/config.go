package config

import (
	"fmt"
	"strings"

	"github.com/gasparian/ann-clustering-go/cluster"
	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/dataset"
	"github.com/gasparian/ann-clustering-go/hasher"
	"github.com/gasparian/ann-clustering-go/hypercube"
	"github.com/gasparian/ann-clustering-go/lsh"
	"github.com/gasparian/ann-clustering-go/store/purekv"
	"github.com/gasparian/ann-clustering-go/vector"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. ANN_LSH_TABLES
const EnvPrefix = "ANN"

// Config holds all configuration of the tools
type Config struct {
	LSH          LSHConfig       `mapstructure:"lsh"`
	Hypercube    HypercubeConfig `mapstructure:"hypercube"`
	Cluster      ClusterConfig   `mapstructure:"cluster"`
	Log          LogConfig       `mapstructure:"log"`
	S3           S3Config        `mapstructure:"s3"`
	Store        StoreConfig     `mapstructure:"store"`
	Server       ServerConfig    `mapstructure:"server"`
	Seed         int64           `mapstructure:"seed"`
	Workers      int             `mapstructure:"workers"`
	WindowSample float64         `mapstructure:"window_sample"`
	WindowScale  float64         `mapstructure:"window_scale"`
}

// LSHConfig holds parameters of the LSH search tool
type LSHConfig struct {
	HashCount  int `mapstructure:"hashes"`
	TableCount int `mapstructure:"tables"`
	Neighbors  int `mapstructure:"neighbors"`
	Radius     int `mapstructure:"radius"`
	Window     int `mapstructure:"window"`
}

// HypercubeConfig holds parameters of the hypercube search tool
type HypercubeConfig struct {
	Dimension     int `mapstructure:"dimension"`
	MaxCandidates int `mapstructure:"max_candidates"`
	Probes        int `mapstructure:"probes"`
	Neighbors     int `mapstructure:"neighbors"`
	Radius        int `mapstructure:"radius"`
	Window        int `mapstructure:"window"`
}

// ClusterConfig holds parameters of the clustering tool
type ClusterConfig struct {
	Clusters             int             `mapstructure:"clusters"`
	Metric               string          `mapstructure:"metric"`
	Tolerance            int             `mapstructure:"tolerance"`
	MaxIterations        int             `mapstructure:"max_iterations"`
	MinReverseIterations int             `mapstructure:"min_reverse_iterations"`
	StallRatio           float64         `mapstructure:"stall_ratio"`
	Radius               int             `mapstructure:"radius"`
	Complete             bool            `mapstructure:"complete"`
	Epochs               int             `mapstructure:"epochs"`
	LSH                  LSHConfig       `mapstructure:"lsh"`
	Hypercube            HypercubeConfig `mapstructure:"hypercube"`
}

// LogConfig __
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// S3Config points to the object storage with datasets
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// StoreConfig holds pure-kv server address and rpc timeout in milliseconds,
// empty address means in-memory store
type StoreConfig struct {
	Address string `mapstructure:"address"`
	Timeout int    `mapstructure:"timeout"`
}

// ServerConfig __
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// Load reads optional config file and environment variables on top of defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with no file and no environment applied
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("lsh.hashes", 4)
	v.SetDefault("lsh.tables", 5)
	v.SetDefault("lsh.neighbors", 1)
	v.SetDefault("lsh.radius", 10000)
	v.SetDefault("lsh.window", 0)

	v.SetDefault("hypercube.dimension", 14)
	v.SetDefault("hypercube.max_candidates", 10)
	v.SetDefault("hypercube.probes", 2)
	v.SetDefault("hypercube.neighbors", 1)
	v.SetDefault("hypercube.radius", 1)
	v.SetDefault("hypercube.window", 0)

	v.SetDefault("cluster.clusters", 10)
	v.SetDefault("cluster.metric", vector.Manhattan.String())
	v.SetDefault("cluster.tolerance", 3000)
	v.SetDefault("cluster.max_iterations", 300)
	v.SetDefault("cluster.min_reverse_iterations", 3)
	v.SetDefault("cluster.stall_ratio", 0.2)
	v.SetDefault("cluster.radius", 0)
	v.SetDefault("cluster.complete", false)
	v.SetDefault("cluster.epochs", 1)
	v.SetDefault("cluster.lsh.hashes", 4)
	v.SetDefault("cluster.lsh.tables", 3)
	v.SetDefault("cluster.hypercube.dimension", 3)
	v.SetDefault("cluster.hypercube.max_candidates", 10)
	v.SetDefault("cluster.hypercube.probes", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.use_ssl", true)

	v.SetDefault("store.address", "")
	v.SetDefault("store.timeout", 500)

	v.SetDefault("server.address", "")

	v.SetDefault("seed", 1)
	v.SetDefault("workers", 0)
	v.SetDefault("window_sample", 0.05)
	v.SetDefault("window_scale", 1.0)
}

// Validate checks values which can't be checked later by the consumers
func (c *Config) Validate() error {
	switch {
	case c.LSH.HashCount <= 0 || c.LSH.HashCount > hasher.MaxFunctions:
		return common.NewConfigError("lsh.hashes", c.LSH.HashCount, "must be in [1, 32]")
	case c.LSH.TableCount <= 0:
		return common.NewConfigError("lsh.tables", c.LSH.TableCount, "must be a positive integer")
	case c.LSH.Neighbors <= 0:
		return common.NewConfigError("lsh.neighbors", c.LSH.Neighbors, "must be a positive integer")
	case c.LSH.Radius < 0:
		return common.NewConfigError("lsh.radius", c.LSH.Radius, "can't be negative")
	case c.Hypercube.Dimension <= 0 || c.Hypercube.Dimension > hypercube.MaxDimension:
		return common.NewConfigError("hypercube.dimension", c.Hypercube.Dimension, "must be in [1, 24]")
	case c.Hypercube.MaxCandidates < 0:
		return common.NewConfigError("hypercube.max_candidates", c.Hypercube.MaxCandidates, "can't be negative")
	case c.Hypercube.Probes <= 0:
		return common.NewConfigError("hypercube.probes", c.Hypercube.Probes, "must be a positive integer")
	case c.Hypercube.Neighbors <= 0:
		return common.NewConfigError("hypercube.neighbors", c.Hypercube.Neighbors, "must be a positive integer")
	case c.Hypercube.Radius < 0:
		return common.NewConfigError("hypercube.radius", c.Hypercube.Radius, "can't be negative")
	case c.Cluster.Epochs <= 0:
		return common.NewConfigError("cluster.epochs", c.Cluster.Epochs, "must be a positive integer")
	case c.Workers < 0:
		return common.NewConfigError("workers", c.Workers, "can't be negative")
	case c.WindowSample <= 0 || c.WindowSample > 1:
		return common.NewConfigError("window_sample", c.WindowSample, "must be in (0, 1]")
	case c.WindowScale <= 0:
		return common.NewConfigError("window_scale", c.WindowScale, "must be positive")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return common.NewConfigError("log.level", c.Log.Level, err.Error())
	}
	_, err := c.ClusterParams(zerolog.Nop())
	return err
}

// ClusterParams converts the cluster section into the clustering session config
func (c *Config) ClusterParams(logger zerolog.Logger) (cluster.Config, error) {
	metric, err := vector.ParseMetric(c.Cluster.Metric)
	if err != nil {
		return cluster.Config{}, common.NewConfigError("cluster.metric", c.Cluster.Metric, err.Error())
	}
	cc := cluster.DefaultConfig()
	cc.Clusters = c.Cluster.Clusters
	cc.Metric = metric
	cc.Tolerance = c.Cluster.Tolerance
	cc.MaxIterations = c.Cluster.MaxIterations
	cc.MinReverseIterations = c.Cluster.MinReverseIterations
	cc.StallRatio = c.Cluster.StallRatio
	cc.Radius = c.Cluster.Radius
	cc.LSH = cluster.LSHParams{
		HashCount:  c.Cluster.LSH.HashCount,
		TableCount: c.Cluster.LSH.TableCount,
	}
	cc.Hypercube = cluster.HypercubeParams{
		Dimension:     c.Cluster.Hypercube.Dimension,
		MaxCandidates: c.Cluster.Hypercube.MaxCandidates,
		Probes:        c.Cluster.Hypercube.Probes,
	}
	cc.WindowSample = c.WindowSample
	cc.WindowScale = c.WindowScale
	cc.Workers = c.Workers
	cc.Logger = logger
	if err := cc.Validate(); err != nil {
		return cluster.Config{}, err
	}
	return cc, nil
}

// LSHParams returns the index config for the given hash window
func (c *Config) LSHParams(window int, logger zerolog.Logger) lsh.Config {
	return lsh.Config{
		HashCount:  c.LSH.HashCount,
		TableCount: c.LSH.TableCount,
		Window:     window,
		Workers:    c.Workers,
		Logger:     logger,
	}
}

// HypercubeParams returns the index config for the given hash window and thresholds range
func (c *Config) HypercubeParams(window int, fRange *hasher.Range, logger zerolog.Logger) hypercube.Config {
	return hypercube.Config{
		Dimension: c.Hypercube.Dimension,
		Window:    window,
		FRange:    fRange,
		Logger:    logger,
	}
}

// S3Params __
func (c *Config) S3Params() dataset.S3Config {
	return dataset.S3Config{
		Endpoint:  c.S3.Endpoint,
		AccessKey: c.S3.AccessKey,
		SecretKey: c.S3.SecretKey,
		Region:    c.S3.Region,
		UseSSL:    c.S3.UseSSL,
	}
}

// StoreParams __
func (c *Config) StoreParams() purekv.Config {
	return purekv.Config{
		Address: c.Store.Address,
		Timeout: c.Store.Timeout,
	}
}
