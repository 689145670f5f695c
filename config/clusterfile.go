package config

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strconv"

	"github.com/gasparian/ann-clustering-go/common"
)

var (
	// ErrMissingClusters is returned when the first line has no clusters number
	ErrMissingClusters = errors.New("number of clusters is mandatory")

	intRe = regexp.MustCompile(`(-?[0-9]+)`)
)

type clusterField struct {
	name  string
	dst   func(c *ClusterConfig) *int
	valid func(v int) bool
	rule  string
}

var clusterFields = []clusterField{
	{
		name:  "number_of_clusters",
		dst:   func(c *ClusterConfig) *int { return &c.Clusters },
		valid: func(v int) bool { return v > 1 && v < 256 },
		rule:  "must be in (1, 256)",
	},
	{
		name:  "number_of_vector_hash_tables",
		dst:   func(c *ClusterConfig) *int { return &c.LSH.TableCount },
		valid: func(v int) bool { return v > 0 && v < 256 },
		rule:  "must be in (0, 256)",
	},
	{
		name:  "number_of_vector_hash_functions",
		dst:   func(c *ClusterConfig) *int { return &c.LSH.HashCount },
		valid: func(v int) bool { return v > 0 && v < 256 },
		rule:  "must be in (0, 256)",
	},
	{
		name:  "max_number_M_hypercube",
		dst:   func(c *ClusterConfig) *int { return &c.Hypercube.MaxCandidates },
		valid: func(v int) bool { return v > 0 },
		rule:  "must be a positive integer",
	},
	{
		name:  "number_of_hypercube_dimensions",
		dst:   func(c *ClusterConfig) *int { return &c.Hypercube.Dimension },
		valid: func(v int) bool { return v > 0 },
		rule:  "must be a positive integer",
	},
	{
		name:  "number_of_probes",
		dst:   func(c *ClusterConfig) *int { return &c.Hypercube.Probes },
		valid: func(v int) bool { return v > 0 },
		rule:  "must be a positive integer",
	},
}

// ParseClusterFile reads the legacy six line cluster configuration on top of dst.
// Every line holds one integer, only the first one is mandatory.
func ParseClusterFile(r io.Reader, dst *ClusterConfig) error {
	scanner := bufio.NewScanner(r)
	for i, field := range clusterFields {
		line := ""
		if scanner.Scan() {
			line = scanner.Text()
		}
		match := intRe.FindString(line)
		if match == "" {
			if i == 0 {
				return ErrMissingClusters
			}
			continue
		}
		v, err := strconv.Atoi(match)
		if err != nil || !field.valid(v) {
			return common.NewConfigError(field.name, match, field.rule)
		}
		*field.dst(dst) = v
	}
	return scanner.Err()
}
