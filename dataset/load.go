package dataset

import (
	"context"
	"path"
	"strings"

	"github.com/gasparian/ann-clustering-go/common"
)

// DefaultHDF5Dataset is the table read from ann-benchmarks files when uri has no fragment
const DefaultHDF5Dataset = "train"

// Load reads a dataset from a local path or an s3 uri;
// "file.hdf5#test" selects a table of an hdf5 file
func Load(ctx context.Context, uri string, s3 S3Config) (*common.Dataset, error) {
	base, fragment, _ := strings.Cut(uri, "#")
	if strings.EqualFold(path.Ext(base), ".hdf5") {
		if fragment == "" {
			fragment = DefaultHDF5Dataset
		}
		return LoadHDF5(base, fragment)
	}
	rc, err := Open(ctx, uri, s3)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	ds, _, err := ReadIDX(rc)
	return ds, err
}
