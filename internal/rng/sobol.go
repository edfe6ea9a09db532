package rng

import (
	"fmt"
	"sync/atomic"
)

const (
	sobolBits = 32

	// sobolSkip offsets every run past the degenerate start of the
	// sequence; scenario i reads point sobolSkip+i.
	sobolSkip = 4096

	// maxSobolDims bounds direction-number generation; beyond this the
	// search for primitive polynomials gets slow enough to refuse.
	maxSobolDims = 16384
)

// sobolProvider implements Quasi generation. Direction numbers are derived
// at construction time from primitive polynomials over GF(2) searched in
// degree order, with deterministic odd initial values, so runs reproduce
// exactly without any embedded coefficient table. Coordinate layout:
// dimension = step*sources + source, one point per scenario.
type sobolProvider struct {
	dirs    [][]uint32
	sources int
	draws   atomic.Uint64
}

func newSobolProvider(sources, steps int) (*sobolProvider, error) {
	dims := sources * steps
	if dims < 1 {
		dims = 1
	}
	if dims > maxSobolDims {
		return nil, fmt.Errorf("quasi generation needs %d coordinates (steps*sources), limit is %d", dims, maxSobolDims)
	}
	return &sobolProvider{dirs: directionNumbers(dims), sources: sources}, nil
}

func (p *sobolProvider) Draws() uint64 { return p.draws.Load() }

func (p *sobolProvider) Scenario(scenario int) Stream {
	return &sobolStream{provider: p, index: sobolSkip + uint64(scenario)}
}

type sobolStream struct {
	provider *sobolProvider
	index    uint64
}

func (s *sobolStream) Uniform(step, source int) float64 {
	s.provider.draws.Add(1)
	dim := step*s.provider.sources + source
	u := s.provider.point(s.index, dim)
	if u < minUniform {
		u = minUniform
	}
	return u
}

// point evaluates one coordinate of the index-th Sobol point via the
// gray-code XOR of direction numbers.
func (p *sobolProvider) point(index uint64, dim int) float64 {
	g := index ^ (index >> 1)
	var x uint32
	for k := 0; g != 0 && k < sobolBits; k++ {
		if g&1 != 0 {
			x ^= p.dirs[dim][k]
		}
		g >>= 1
	}
	return float64(x) * 0x1p-32
}

// directionNumbers builds the direction numbers for dims dimensions.
// Dimension 0 is the van der Corput sequence in base 2; every further
// dimension consumes the next primitive polynomial from the degree-ordered
// search.
func directionNumbers(dims int) [][]uint32 {
	dirs := make([][]uint32, dims)

	vdc := make([]uint32, sobolBits)
	for k := 0; k < sobolBits; k++ {
		vdc[k] = 1 << uint(sobolBits-1-k)
	}
	dirs[0] = vdc

	var search polySearch
	for d := 1; d < dims; d++ {
		poly, deg := search.next()
		dirs[d] = dimensionDirections(d, poly, deg)
	}
	return dirs
}

// dimensionDirections expands one polynomial into 32 direction numbers.
// Initial values m_1..m_deg must be odd with m_k < 2^k; they are drawn
// deterministically from the dimension index so every build of the same
// dimension count agrees bit for bit.
func dimensionDirections(dim int, poly uint64, deg int) []uint32 {
	m := make([]uint32, sobolBits+1) // 1-indexed
	for k := 1; k <= deg && k <= sobolBits; k++ {
		h := mix(0x536f626f6c, uint64(dim), uint64(k))
		m[k] = (uint32(h) & (1<<uint(k) - 1)) | 1
	}
	for k := deg + 1; k <= sobolBits; k++ {
		mk := m[k-deg] ^ (m[k-deg] << uint(deg))
		for i := 1; i < deg; i++ {
			if poly&(1<<uint(deg-i)) != 0 {
				mk ^= m[k-i] << uint(i)
			}
		}
		m[k] = mk
	}

	v := make([]uint32, sobolBits)
	for k := 1; k <= sobolBits; k++ {
		v[k-1] = m[k] << uint(sobolBits-k)
	}
	return v
}

// polySearch enumerates primitive polynomials over GF(2) in increasing
// degree, then increasing coefficient pattern. The polynomial is a bitmask
// with bit i holding the coefficient of x^i; leading and constant terms are
// always set.
type polySearch struct {
	deg    int
	middle uint64
}

func (s *polySearch) next() (poly uint64, deg int) {
	if s.deg == 0 {
		s.deg = 1
	}
	for {
		limit := uint64(1) << uint(s.deg-1)
		for ; s.middle < limit; s.middle++ {
			p := uint64(1)<<uint(s.deg) | s.middle<<1 | 1
			if isPrimitive(p, s.deg) {
				s.middle++
				return p, s.deg
			}
		}
		s.deg++
		s.middle = 0
	}
}

// isPrimitive reports whether p of the given degree is primitive over
// GF(2): x must have multiplicative order exactly 2^deg-1 in GF(2)[x]/(p).
func isPrimitive(p uint64, deg int) bool {
	order := uint64(1)<<uint(deg) - 1
	if polyPowMod(2, order, p, deg) != 1 {
		return false
	}
	for _, q := range primeFactors(order) {
		if polyPowMod(2, order/q, p, deg) == 1 {
			return false
		}
	}
	return true
}

// polyMulMod multiplies two GF(2) polynomials modulo p. Operands must
// already be reduced below degree deg.
func polyMulMod(a, b, p uint64, deg int) uint64 {
	top := uint64(1) << uint(deg)
	var r uint64
	for b != 0 {
		if b&1 != 0 {
			r ^= a
		}
		b >>= 1
		a <<= 1
		if a&top != 0 {
			a ^= p
		}
	}
	return r
}

func polyMod(a, p uint64, deg int) uint64 {
	for bit := 63; bit >= deg; bit-- {
		if a&(uint64(1)<<uint(bit)) != 0 {
			a ^= p << uint(bit-deg)
		}
	}
	return a
}

func polyPowMod(base, e, p uint64, deg int) uint64 {
	base = polyMod(base, p, deg)
	r := polyMod(1, p, deg)
	for e != 0 {
		if e&1 != 0 {
			r = polyMulMod(r, base, p, deg)
		}
		base = polyMulMod(base, base, p, deg)
		e >>= 1
	}
	return r
}

// primeFactors returns the distinct prime factors of n by trial division.
// The Mersenne numbers reached here stay far below the point where this
// would matter for build time.
func primeFactors(n uint64) []uint64 {
	var factors []uint64
	for f := uint64(2); f*f <= n; f++ {
		if n%f == 0 {
			factors = append(factors, f)
			for n%f == 0 {
				n /= f
			}
		}
	}
	if n > 1 {
		factors = append(factors, n)
	}
	return factors
}
