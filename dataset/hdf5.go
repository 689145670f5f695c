//go:build hdf5

package dataset

import (
	"math"

	"github.com/gasparian/ann-clustering-go/common"
	"gonum.org/v1/hdf5"
)

// LoadHDF5 reads a 2d float table (ann-benchmarks layout) and clamps values to bytes
func LoadHDF5(fname, name string) (*common.Dataset, error) {
	f, err := hdf5.OpenFile(fname, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := f.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	defer table.Close()

	space := table.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, err
	}
	if len(dims) != 2 {
		return nil, common.NewConfigError("hdf5 table rank", len(dims), "must be 2")
	}
	values := make([]float32, space.SimpleExtentNPoints())
	if err := table.Read(&values); err != nil {
		return nil, err
	}
	data := make([]byte, len(values))
	for i, v := range values {
		data[i] = byte(math.Max(0, math.Min(255, math.Round(float64(v)))))
	}
	return common.NewDataset(int(dims[1]), data)
}
