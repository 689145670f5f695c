package hasher

import (
	"errors"
	"math/rand"

	"github.com/gasparian/ann-clustering-go/common"
)

// Base is a large prime-like constant used for per-dimension multipliers
const Base uint64 = 1<<32 - 5

// MaxFunctions bounds number of functions in one amplified group,
// since every function must keep at least one bit of the 32-bit code
const MaxFunctions = 32

var (
	emptyPowersErr   = errors.New("powers table is empty")
	powersModulusErr = errors.New("powers modulus does not match the number of functions")
)

// ModEx calculates base^exp mod m by squaring
func ModEx(base, exp, m uint64) uint64 {
	if m == 1 {
		return 0
	}
	if exp == 0 {
		return 1
	}
	half := ModEx(base, exp/2, m)
	res := (half * half) % m
	if exp%2 == 1 {
		res = (res * (base % m)) % m
	}
	return res
}

// Bits returns number of bits each of k concatenated functions may use
func Bits(k int) uint {
	return uint(32 / k)
}

// Modulus returns M = 2^(32/k)
func Modulus(k int) uint64 {
	return 1 << Bits(k)
}

// Concat appends the lower `bits` of lo to hi
func Concat(hi, lo uint64, bits uint) uint64 {
	return hi<<bits | lo&(1<<bits-1)
}

// Powers holds m^(dim-i-1) mod M for every dimension i;
// shared by all sibling hash functions with the same M
type Powers struct {
	mod    uint64
	values []uint64
}

// NewPowers precomputes multipliers for vectors of the given dimension
func NewPowers(dim int, mod uint64) *Powers {
	values := make([]uint64, dim)
	for i := range values {
		values[i] = ModEx(Base, uint64(dim-i-1), mod)
	}
	return &Powers{mod: mod, values: values}
}

// Mod __
func (p *Powers) Mod() uint64 {
	return p.mod
}

// Dim __
func (p *Powers) Dim() int {
	return len(p.values)
}

// HashFunction maps a vector to an integer in [0, M)
type HashFunction struct {
	window int
	shifts []int
	powers *Powers
}

// NewHashFunction draws shifts uniformly from [0, window)
func NewHashFunction(window int, powers *Powers, rng *rand.Rand) (*HashFunction, error) {
	if window <= 0 {
		return nil, common.NewConfigError("window", window, "must be a positive integer")
	}
	if powers == nil || powers.Dim() == 0 {
		return nil, emptyPowersErr
	}
	shifts := make([]int, powers.Dim())
	for i := range shifts {
		shifts[i] = rng.Intn(window)
	}
	return &HashFunction{
		window: window,
		shifts: shifts,
		powers: powers,
	}, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Hash accumulates floor((x_i - s_i) / W) * m^(d-i-1) modulo M
func (h *HashFunction) Hash(x []byte) uint64 {
	m := h.powers.mod
	var sum uint64
	for i, val := range x {
		a := int64(floorDiv(int(val)-h.shifts[i], h.window)) % int64(m)
		if a < 0 {
			a += int64(m)
		}
		sum = (sum + (uint64(a)*h.powers.values[i])%m) % m
	}
	return sum
}

// AmplifiedHashFunction concatenates outputs of k hash functions
type AmplifiedHashFunction struct {
	fns  []*HashFunction
	bits uint
}

// NewAmplifiedHashFunction creates k functions over shared powers table,
// the table modulus must be 2^(32/k)
func NewAmplifiedHashFunction(k, window int, powers *Powers, rng *rand.Rand) (*AmplifiedHashFunction, error) {
	if k <= 0 || k > MaxFunctions {
		return nil, common.NewConfigError("hash functions number", k, "must be in [1, 32]")
	}
	if powers == nil || powers.Dim() == 0 {
		return nil, emptyPowersErr
	}
	if powers.Mod() != Modulus(k) {
		return nil, powersModulusErr
	}
	g := &AmplifiedHashFunction{
		fns:  make([]*HashFunction, k),
		bits: Bits(k),
	}
	for i := range g.fns {
		h, err := NewHashFunction(window, powers, rng)
		if err != nil {
			return nil, err
		}
		g.fns[i] = h
	}
	return g, nil
}

// Hash returns the concatenated code
func (g *AmplifiedHashFunction) Hash(x []byte) uint64 {
	var code uint64
	for _, h := range g.fns {
		code = Concat(code, h.Hash(x), g.bits)
	}
	return code
}
