//go:build !hdf5

package dataset

import (
	"errors"

	"github.com/gasparian/ann-clustering-go/common"
)

var (
	hdf5DisabledErr = errors.New("hdf5 support is not compiled in, rebuild with -tags hdf5")
)

// LoadHDF5 needs cgo and libhdf5, enabled by the hdf5 build tag
func LoadHDF5(fname, name string) (*common.Dataset, error) {
	return nil, hdf5DisabledErr
}
