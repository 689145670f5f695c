package vector

import (
	"errors"
	"math/bits"
	"strings"

	"gonum.org/v1/gonum/blas/blas64"
)

// Metric selects the distance used between a point and a centroid
type Metric int

// Available distance metrics; Manhattan is the one used by all the search indexes
const (
	Manhattan Metric = iota
	Euclidean
	Max
	NonZero
)

var (
	unknownMetricErr = errors.New("unknown distance metric")
)

func (m Metric) String() string {
	switch m {
	case Manhattan:
		return "manhattan"
	case Euclidean:
		return "euclidean"
	case Max:
		return "max"
	case NonZero:
		return "nonzero"
	}
	return "unknown"
}

// ParseMetric maps metric name to the Metric value
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "manhattan", "l1":
		return Manhattan, nil
	case "euclidean", "l2":
		return Euclidean, nil
	case "max", "chebyshev":
		return Max, nil
	case "nonzero", "non-zero":
		return NonZero, nil
	}
	return Manhattan, unknownMetricErr
}

// Distance calculates distance between two vectors of the same length
func (m Metric) Distance(x, y []byte) float64 {
	switch m {
	case Euclidean:
		return EuclideanDistance(x, y)
	case Max:
		return float64(MaxDistance(x, y))
	case NonZero:
		return float64(NonZeroDistance(x, y))
	}
	return float64(ManhattanDistance(x, y))
}

// ManhattanDistance is a sum of absolute component differences
func ManhattanDistance(x, y []byte) int {
	dist := 0
	for i := range x {
		d := int(x[i]) - int(y[i])
		if d < 0 {
			d = -d
		}
		dist += d
	}
	return dist
}

// EuclideanDistance calculates l2-distance between two vectors
func EuclideanDistance(x, y []byte) float64 {
	res := NewVec(ToFloat64(y))
	blas64.Axpy(-1.0, NewVec(ToFloat64(x)), res)
	return blas64.Nrm2(res)
}

// MaxDistance returns the largest absolute component difference
func MaxDistance(x, y []byte) int {
	dist := 0
	for i := range x {
		d := int(x[i]) - int(y[i])
		if d < 0 {
			d = -d
		}
		if d > dist {
			dist = d
		}
	}
	return dist
}

// NonZeroDistance counts components which differ
func NonZeroDistance(x, y []byte) int {
	dist := 0
	for i := range x {
		if x[i] != y[i] {
			dist++
		}
	}
	return dist
}

// HammingDistance counts differing bits of two hypercube vertices
func HammingDistance(x, y uint64) int {
	return bits.OnesCount64(x ^ y)
}

// NewVec creates new blas vector
func NewVec(data []float64) blas64.Vector {
	if data == nil {
		data = make([]float64, 0)
	}
	return blas64.Vector{
		N:    len(data),
		Inc:  1,
		Data: data,
	}
}

// ToFloat64 __
func ToFloat64(v []byte) []float64 {
	out := make([]float64, len(v))
	for i, val := range v {
		out[i] = float64(val)
	}
	return out
}
