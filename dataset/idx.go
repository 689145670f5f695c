package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/gasparian/ann-clustering-go/common"
)

// ImagesMagic is the magic number of the unsigned byte image files
const ImagesMagic uint32 = 2051

const maxPayload = 1 << 32

var (
	// ErrBadMagic is returned for files which are not image sets
	ErrBadMagic = errors.New("unexpected magic number")
	// ErrTruncated is returned when the payload is shorter than the header says
	ErrTruncated = errors.New("dataset file is truncated")
)

// Header is the big-endian header of the image set file
type Header struct {
	Magic uint32
	Count uint32
	Rows  uint32
	Cols  uint32
}

// Dim returns the vector dimension
func (h Header) Dim() int {
	return int(h.Rows) * int(h.Cols)
}

// ReadIDX reads header and count*rows*cols bytes of pixels
func ReadIDX(r io.Reader) (*common.Dataset, Header, error) {
	var h Header
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, h, ErrTruncated
		}
		return nil, h, err
	}
	if h.Magic != ImagesMagic {
		return nil, h, fmt.Errorf("%w: %d", ErrBadMagic, h.Magic)
	}
	if h.Count == 0 {
		return nil, h, common.ErrEmptyDataset
	}
	if h.Rows == 0 || h.Cols == 0 {
		return nil, h, common.NewConfigError("image size", fmt.Sprintf("%dx%d", h.Rows, h.Cols), "must be positive")
	}
	total := uint64(h.Count) * uint64(h.Rows) * uint64(h.Cols)
	if total > maxPayload {
		return nil, h, common.NewConfigError("payload size", total, "too large")
	}
	data := make([]byte, total)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, h, ErrTruncated
		}
		return nil, h, err
	}
	ds, err := common.NewDataset(h.Dim(), data)
	if err != nil {
		return nil, h, err
	}
	return ds, h, nil
}

// WriteIDX writes dataset as rows x cols images
func WriteIDX(w io.Writer, ds *common.Dataset, rows, cols int) error {
	if rows*cols != ds.Dim() {
		return &common.DimensionMismatchError{Expected: ds.Dim(), Actual: rows * cols}
	}
	bw := bufio.NewWriter(w)
	h := Header{
		Magic: ImagesMagic,
		Count: uint32(ds.Len()),
		Rows:  uint32(rows),
		Cols:  uint32(cols),
	}
	if err := binary.Write(bw, binary.BigEndian, h); err != nil {
		return err
	}
	if _, err := bw.Write(ds.Raw()); err != nil {
		return err
	}
	return bw.Flush()
}
