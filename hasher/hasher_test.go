package hasher

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/gasparian/ann-clustering-go/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModEx(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		base := rng.Uint64() >> 1
		exp := uint64(rng.Intn(2000))
		m := uint64(rng.Int63n(1<<32)) + 1
		want := new(big.Int).Exp(
			new(big.Int).SetUint64(base),
			new(big.Int).SetUint64(exp),
			new(big.Int).SetUint64(m),
		)
		require.Equal(t, want.Uint64(), ModEx(base, exp, m), "base=%d exp=%d m=%d", base, exp, m)
	}
	assert.Equal(t, uint64(0), ModEx(5, 3, 1))
	assert.Equal(t, uint64(1), ModEx(5, 0, 7))
}

func TestModulusAndConcat(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint64(1<<8), Modulus(4))
	assert.Equal(t, uint64(1<<32), Modulus(1))
	assert.Equal(t, uint64(4), Modulus(14))
	assert.Equal(t, uint64(0xABCD), Concat(0xAB, 0xCD, 8))
	assert.Equal(t, uint64(0x1F), Concat(0x1, 0xFF, 4), "lower part must be cut to the given bits")
}

// literalHash computes the overflow-prone formula with arbitrary precision
func literalHash(x []byte, shifts []int, w int, m uint64) uint64 {
	sum := new(big.Int)
	mod := new(big.Int).SetUint64(m)
	d := len(x)
	for i := range x {
		a := big.NewInt(int64(floorDiv(int(x[i])-shifts[i], w)))
		p := new(big.Int).Exp(new(big.Int).SetUint64(Base), big.NewInt(int64(d-i-1)), nil)
		sum.Add(sum, a.Mul(a, p))
	}
	return sum.Mod(sum, mod).Uint64()
}

func TestHashFunction(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(11))
	dim := 12
	for _, k := range []int{1, 3, 4, 14} {
		powers := NewPowers(dim, Modulus(k))
		h, err := NewHashFunction(40, powers, rng)
		require.NoError(t, err)
		for _, s := range h.shifts {
			require.True(t, s >= 0 && s < 40)
		}
		for i := 0; i < 50; i++ {
			x := make([]byte, dim)
			rng.Read(x)
			v := h.Hash(x)
			require.Less(t, v, Modulus(k))
			require.Equal(t, v, h.Hash(x), "hash must be deterministic")
			require.Equal(t, literalHash(x, h.shifts, 40, Modulus(k)), v)
		}
	}

	_, err := NewHashFunction(0, NewPowers(dim, 16), rng)
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
	_, err = NewHashFunction(10, NewPowers(0, 16), rng)
	assert.Error(t, err)
}

func TestFloorDiv(t *testing.T) {
	t.Parallel()
	assert.Equal(t, -1, floorDiv(-1, 10))
	assert.Equal(t, -1, floorDiv(-10, 10))
	assert.Equal(t, -2, floorDiv(-11, 10))
	assert.Equal(t, 1, floorDiv(19, 10))
	assert.Equal(t, 0, floorDiv(0, 10))
}

func TestAmplifiedHashFunction(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(3))
	dim, k := 8, 4
	powers := NewPowers(dim, Modulus(k))
	g, err := NewAmplifiedHashFunction(k, 25, powers, rng)
	require.NoError(t, err)
	x := []byte{0, 10, 20, 30, 40, 50, 60, 250}
	var want uint64
	for _, h := range g.fns {
		want = want<<8 | h.Hash(x)
	}
	assert.Equal(t, want, g.Hash(x))
	assert.Less(t, g.Hash(x), uint64(1)<<32)

	_, err = NewAmplifiedHashFunction(0, 25, powers, rng)
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
	_, err = NewAmplifiedHashFunction(33, 25, powers, rng)
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
	_, err = NewAmplifiedHashFunction(3, 25, powers, rng)
	assert.Equal(t, powersModulusErr, err)
}

func TestFFunction(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 200; i++ {
		f := NewFFunction(Range{Min: 10, Max: 20}, rng)
		require.True(t, f.Threshold() >= 10 && f.Threshold() <= 20)
		assert.Equal(t, uint64(1), f.Map(20))
		assert.Equal(t, uint64(0), f.Map(9))
	}
	f := NewFFunction(Range{Min: 7, Max: 7}, rng)
	assert.Equal(t, uint64(7), f.Threshold())
	f = NewFFunction(Range{Min: 9, Max: 3}, rng)
	assert.True(t, f.Threshold() >= 3 && f.Threshold() <= 9)
	assert.Equal(t, Range{0, 3}, DefaultRange(4))
}

func TestEstimateRange(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(9))
	vecs := make([][]byte, 300)
	for i := range vecs {
		vecs[i] = make([]byte, 16)
		rng.Read(vecs[i])
	}
	ds, err := common.DatasetFromVectors(vecs)
	require.NoError(t, err)
	k := 4
	r, err := EstimateRange(ds, common.SampleIDs(ds.Len(), 0.5, rng), k, 30, rng)
	require.NoError(t, err)
	assert.LessOrEqual(t, r.Min, r.Max)
	assert.Less(t, r.Max, Modulus(k))

	_, err = EstimateRange(ds, nil, k, 30, rng)
	assert.Equal(t, common.ErrEmptyDataset, err)
	_, err = EstimateRange(ds, []int{0}, 0, 30, rng)
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
}
