package annbench

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/gasparian/ann-clustering-go/bruteforce"
	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gasparian/ann-clustering-go/hypercube"
	"github.com/gasparian/ann-clustering-go/lsh"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Searcher is an approximate index under benchmark
type Searcher interface {
	Name() string
	KNN(query []byte, n int) []common.Neighbor
	RangeSearch(query []byte, radius int) []common.Neighbor
}

// LSHSearcher adapts the lsh index
type LSHSearcher struct {
	Index  *lsh.Index
	Thresh int
}

// Name __
func (s LSHSearcher) Name() string {
	return "LSH"
}

// KNN __
func (s LSHSearcher) KNN(query []byte, n int) []common.Neighbor {
	return s.Index.KNN(query, n, s.Thresh)
}

// RangeSearch __
func (s LSHSearcher) RangeSearch(query []byte, radius int) []common.Neighbor {
	return s.Index.RangeSearch(query, radius, s.Thresh, nil)
}

// CubeSearcher adapts the hypercube index
type CubeSearcher struct {
	Index  *hypercube.Index
	Probes int
	Thresh int
}

// Name __
func (s CubeSearcher) Name() string {
	return "Hypercube"
}

// KNN __
func (s CubeSearcher) KNN(query []byte, n int) []common.Neighbor {
	return s.Index.KNN(query, n, s.Probes, s.Thresh)
}

// RangeSearch __
func (s CubeSearcher) RangeSearch(query []byte, radius int) []common.Neighbor {
	return s.Index.RangeSearch(query, radius, s.Probes, s.Thresh, nil)
}

// ExactSearcher exposes the brute-force index as a Searcher
type ExactSearcher struct {
	Index *bruteforce.Index
}

// Name __
func (s ExactSearcher) Name() string {
	return "Exact"
}

// KNN __
func (s ExactSearcher) KNN(query []byte, n int) []common.Neighbor {
	return s.Index.KNN(query, n, 0)
}

// RangeSearch __
func (s ExactSearcher) RangeSearch(query []byte, radius int) []common.Neighbor {
	return s.Index.RangeSearchAll(query, radius)
}

// Record holds results of a single query
type Record struct {
	Query      int
	Approx     []common.Neighbor
	Exact      []common.Neighbor
	InRange    []common.Neighbor
	ApproxTime time.Duration
	ExactTime  time.Duration
}

// Output holds results of the whole query batch, in query order
type Output struct {
	RunID   string
	Method  string
	N       int
	Radius  int
	Records []Record
}

// Summary aggregates the batch quality
type Summary struct {
	RunID      string        `json:"runId"`
	Method     string        `json:"method"`
	Queries    int           `json:"queries"`
	Precision  float64       `json:"precision"`
	Recall     float64       `json:"recall"`
	AvgRatio   float64       `json:"avgRatio"`
	MaxRatio   float64       `json:"maxRatio"`
	AvgApprox  time.Duration `json:"avgApproxNs"`
	AvgExact   time.Duration `json:"avgExactNs"`
	AvgInRange float64       `json:"avgInRange"`
}

// PrecisionRecall returns share of relevant predictions and share of found relevant items;
// groundTruth MUST BE SORTED
func PrecisionRecall(prediction, groundTruth []int) (float64, float64) {
	valid := 0
	for _, val := range prediction {
		idx := sort.SearchInts(groundTruth, val)
		if idx < len(groundTruth) && groundTruth[idx] == val {
			valid++
		}
	}
	precision := 0.0
	if len(prediction) > 0 {
		precision = float64(valid) / float64(len(prediction))
	}
	recall := 0.0
	if len(groundTruth) > 0 {
		recall = float64(valid) / float64(len(groundTruth))
	}
	return precision, recall
}

// Compare runs every query against the approximate and the exact index;
// queries are processed concurrently, onQuery is called after each one if not nil
func Compare(ctx context.Context, exact *bruteforce.Index, approx Searcher, queries *common.Dataset, n, radius, workers int, onQuery func()) (*Output, error) {
	if n <= 0 {
		return nil, common.NewConfigError("neighbors number", n, "must be a positive integer")
	}
	if queries == nil || queries.Len() == 0 {
		return nil, common.ErrEmptyDataset
	}
	if queries.Dim() != exact.Dataset().Dim() {
		return nil, &common.DimensionMismatchError{Expected: exact.Dataset().Dim(), Actual: queries.Dim()}
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := &Output{
		RunID:   common.GetRandomID(),
		Method:  approx.Name(),
		N:       n,
		Radius:  radius,
		Records: make([]Record, queries.Len()),
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, q := range queries.Items() {
		q := q
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec := Record{Query: q.ID}
			start := time.Now()
			rec.Approx = approx.KNN(q.Data, n)
			rec.ApproxTime = time.Since(start)
			start = time.Now()
			rec.Exact = exact.KNN(q.Data, n, 0)
			rec.ExactTime = time.Since(start)
			rec.InRange = approx.RangeSearch(q.Data, radius)
			out.Records[q.ID] = rec
			if onQuery != nil {
				onQuery()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func ids(neighbors []common.Neighbor) []int {
	res := make([]int, len(neighbors))
	for i, nb := range neighbors {
		res[i] = nb.ID
	}
	sort.Ints(res)
	return res
}

// Summary calculates mean precision/recall of the approximate ids,
// approximation ratio of distances and mean timings
func (o *Output) Summary() Summary {
	s := Summary{
		RunID:   o.RunID,
		Method:  o.Method,
		Queries: len(o.Records),
	}
	if len(o.Records) == 0 {
		return s
	}
	precisions := make([]float64, len(o.Records))
	recalls := make([]float64, len(o.Records))
	approxTimes := make([]float64, len(o.Records))
	exactTimes := make([]float64, len(o.Records))
	inRange := make([]float64, len(o.Records))
	ratios := make([]float64, 0, len(o.Records)*o.N)
	for i, rec := range o.Records {
		precisions[i], recalls[i] = PrecisionRecall(ids(rec.Approx), ids(rec.Exact))
		approxTimes[i] = float64(rec.ApproxTime)
		exactTimes[i] = float64(rec.ExactTime)
		inRange[i] = float64(len(rec.InRange))
		for j := 0; j < len(rec.Approx) && j < len(rec.Exact); j++ {
			if rec.Exact[j].Distance > 0 {
				ratios = append(ratios, float64(rec.Approx[j].Distance)/float64(rec.Exact[j].Distance))
			}
		}
	}
	q := float64(len(o.Records))
	s.Precision = floats.Sum(precisions) / q
	s.Recall = floats.Sum(recalls) / q
	s.AvgApprox = time.Duration(floats.Sum(approxTimes) / q)
	s.AvgExact = time.Duration(floats.Sum(exactTimes) / q)
	s.AvgInRange = floats.Sum(inRange) / q
	if len(ratios) > 0 {
		s.AvgRatio = floats.Sum(ratios) / float64(len(ratios))
		s.MaxRatio = floats.Max(ratios)
	}
	return s
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// WriteReport writes the line-oriented query report;
// ids are printed 1-based as image numbers
func WriteReport(w io.Writer, o *Output) error {
	bw := bufio.NewWriter(w)
	for _, rec := range o.Records {
		fmt.Fprintf(bw, "Query: %d\n", rec.Query+1)
		for j, nb := range rec.Approx {
			fmt.Fprintf(bw, "Nearest neighbor-%d: %d\n", j+1, nb.ID+1)
			fmt.Fprintf(bw, "distance%s: %d\n", o.Method, nb.Distance)
			if j < len(rec.Exact) {
				fmt.Fprintf(bw, "distanceTrue: %d\n", rec.Exact[j].Distance)
			}
		}
		fmt.Fprintf(bw, "t%s: %s\n", o.Method, seconds(rec.ApproxTime))
		fmt.Fprintf(bw, "tTrue: %s\n", seconds(rec.ExactTime))
		bw.WriteString("R-near neighbors:\n")
		for _, nb := range rec.InRange {
			fmt.Fprintf(bw, "%d\n", nb.ID+1)
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}
