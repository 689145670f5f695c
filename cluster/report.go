package cluster

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gasparian/ann-clustering-go/common"
)

// ClusterResult is a snapshot of a single cluster
type ClusterResult struct {
	Centroid   []byte  `json:"centroid"`
	Size       int     `json:"size"`
	Members    []int   `json:"members,omitempty"`
	Silhouette float64 `json:"silhouette"`
}

// Result is a snapshot of a clustering run
type Result struct {
	RunID      string          `json:"runId"`
	Method     Method          `json:"-"`
	Algorithm  string          `json:"algorithm"`
	Clusters   []ClusterResult `json:"clusters"`
	Silhouette float64         `json:"silhouette"`
	Duration   time.Duration   `json:"durationNs"`
	Iterations int             `json:"iterations"`
}

func (c *Clusterer) result(method Method, elapsed time.Duration, iterations int) *Result {
	res := &Result{
		RunID:      common.GetRandomID(),
		Method:     method,
		Algorithm:  method.Algorithm(),
		Clusters:   make([]ClusterResult, len(c.centers)),
		Duration:   elapsed,
		Iterations: iterations,
	}
	for i, center := range c.centers {
		res.Clusters[i] = ClusterResult{
			Centroid: append([]byte(nil), center.Components...),
			Size:     len(center.Members),
			Members:  append([]int(nil), center.Members...),
		}
	}
	return res
}

// SetSilhouette stores scores calculated for this run
func (r *Result) SetSilhouette(perCluster []float64, total float64) {
	for i := range r.Clusters {
		if i < len(perCluster) {
			r.Clusters[i].Silhouette = perCluster[i]
		}
	}
	r.Silhouette = total
}

func formatVector(v []byte) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.Itoa(int(val))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteReport writes the result in the line-oriented text format;
// item ids are printed 1-based as image numbers, complete adds the membership lists
func WriteReport(w io.Writer, r *Result, complete bool) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Algorithm: %s\n", r.Algorithm)
	for i, cl := range r.Clusters {
		fmt.Fprintf(bw, "CLUSTER-%d {size: %d, centroid: %s}\n", i+1, cl.Size, formatVector(cl.Centroid))
	}
	fmt.Fprintf(bw, "clustering_time: %s\n", formatFloat(r.Duration.Seconds()))
	scores := make([]string, 0, len(r.Clusters)+1)
	for _, cl := range r.Clusters {
		scores = append(scores, formatFloat(cl.Silhouette))
	}
	scores = append(scores, formatFloat(r.Silhouette))
	fmt.Fprintf(bw, "Silhouette: [%s]\n", strings.Join(scores, ", "))
	if complete {
		for i, cl := range r.Clusters {
			fmt.Fprintf(bw, "CLUSTER-%d {centroid: %s", i+1, formatVector(cl.Centroid))
			for _, id := range cl.Members {
				fmt.Fprintf(bw, ", %d", id+1)
			}
			bw.WriteString("}\n")
		}
	}
	return bw.Flush()
}
