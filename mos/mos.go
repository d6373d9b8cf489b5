// Package mos generates moment-of-symmetry scales on a 2D lattice.
//
// A MOS is parameterized by counts of large and small steps (a, b), a mode
// rotation, an equave (log2 of the interval of equivalence) and a generator
// given as a fraction of the period. The implied affine transform places
// the lattice in tuning space; slicing the horizontal strip 0 <= y < 1 and
// ordering by x yields the scale path.
package mos

import (
	"fmt"
	"math"
)

// MOS is a moment-of-symmetry scale structure.
type MOS struct {
	A, B int // large / small step counts
	N    int // scale size, A+B
	A0   int // reduced step counts (repetitions divided out)
	B0   int
	N0   int

	Mode        int
	Repetitions int
	Depth       int // length of the Stern-Brocot path to (A0, B0)

	Equave    float64 // log2 frequency ratio of the equave
	Period    float64 // log2 frequency ratio of one period, Equave/Repetitions
	Generator float64 // generator as fraction of the period, in (0,1)

	Path []bool // Stern-Brocot path from (1,1) to (A0, B0)
	VGen Vec2i  // lattice vector of the generator

	ImpliedAffine Affine
}

// FromParams builds a MOS from explicit step counts.
func FromParams(a, b, mode int, equave, generator float64) (*MOS, error) {
	if a <= 0 || b <= 0 {
		return nil, fmt.Errorf("mos: step counts must be positive, got (%d, %d)", a, b)
	}
	if generator <= 0 || generator >= 1 {
		return nil, fmt.Errorf("mos: generator %v outside (0,1)", generator)
	}

	r := gcd(a, b)
	m := &MOS{
		A: a, B: b, N: a + b,
		A0: a / r, B0: b / r, N0: a/r + b/r,
		Mode:        mode,
		Repetitions: r,
		Equave:      equave,
		Period:      equave / float64(r),
		Generator:   generator,
	}
	m.Path = calcPath(m.A0, m.B0)
	m.Depth = len(m.Path)
	m.VGen = applyPath(m.Path, Vec2i{1, 0})
	m.ImpliedAffine = m.calcImpliedAffine()
	return m, nil
}

// FromG builds a MOS by walking the Stern-Brocot tree to the given depth,
// choosing a branch at each level according to the generator.
func FromG(depth, mode int, generator, equave float64, repetitions int) (*MOS, error) {
	if depth < 0 {
		return nil, fmt.Errorf("mos: negative depth %d", depth)
	}
	if generator <= 0 || generator >= 1 {
		return nil, fmt.Errorf("mos: generator %v outside (0,1)", generator)
	}
	if repetitions < 1 {
		return nil, fmt.Errorf("mos: repetitions must be >= 1, got %d", repetitions)
	}

	a0, b0 := 1, 1
	aLen := generator
	bLen := 1.0 - generator
	for i := 0; i < depth; i++ {
		if aLen > bLen {
			b0 += a0
			aLen -= bLen
		} else {
			a0 += b0
			bLen -= aLen
		}
	}
	return FromParams(a0*repetitions, b0*repetitions, mode, equave, generator)
}

// NodeInScale reports whether the lattice node is one of the N scale
// degrees of this MOS mode.
func (m *MOS) NodeInScale(v Vec2i) bool {
	d := v.X*m.B - v.Y*m.A + m.Mode
	return d >= 0 && d < m.N
}

// NodeScaleDegree returns the scale degree (0..N-1) within the period.
func (m *MOS) NodeScaleDegree(v Vec2i) int {
	return (v.X + v.Y + 256*m.N) % m.N
}

// NodeEquaveNr returns which equave the node falls in (0 = base).
func (m *MOS) NodeEquaveNr(v Vec2i) int {
	return (v.X+v.Y+256*m.N)/m.N - 256
}

// CoordToFreq maps a lattice coordinate to a frequency in Hz.
func (m *MOS) CoordToFreq(v Vec2i, baseFreqHz float64) float64 {
	return baseFreqHz * math.Exp2(m.ImpliedAffine.Apply(v).X)
}

// calcImpliedAffine places the lattice so the period vector spans Period in
// log2 frequency, the generator vector lands Generator*Period above the
// origin, and the strip coordinate centers mode rotation at 0 <= y < 1.
func (m *MOS) calcImpliedAffine() Affine {
	q := 0.5 / float64(m.N0)
	mode := float64(m.Mode)
	return affineFromThreeDots(
		Vec2d{0, 0},
		Vec2d{float64(m.VGen.X), float64(m.VGen.Y)},
		Vec2d{float64(m.A0), float64(m.B0)},
		Vec2d{0, q * (2*mode + 1)},
		Vec2d{m.Generator * m.Period, q * (2*mode + 3)},
		Vec2d{m.Period, q * (2*mode + 1)},
	)
}

// calcPath computes the Stern-Brocot descent from (a, b) down to (1, 1).
func calcPath(a, b int) []bool {
	var path []bool
	for a > 1 || b > 1 {
		if a > b {
			a -= b
			path = append(path, false)
		} else {
			b -= a
			path = append(path, true)
		}
	}
	// reverse: the walk is recorded bottom-up
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// applyPath walks a vector up the tree along the given path.
func applyPath(path []bool, v Vec2i) Vec2i {
	a, b := v.X, v.Y
	for _, p := range path {
		if p {
			b += a
		} else {
			a += b
		}
	}
	return Vec2i{a, b}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
