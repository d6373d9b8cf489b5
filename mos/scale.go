package mos

import (
	"fmt"
	"math"
)

// Node is one pitch of a materialized scale.
type Node struct {
	NaturalCoord Vec2i   // lattice coordinate
	TuningCoord  Vec2d   // image under the scale's affine transform
	PitchHz      float64 // frequency, baseFreq * 2^TuningCoord.X
}

// Scale is an ordered path of lattice nodes: all nodes whose transformed
// strip coordinate satisfies 0 <= y < 1, ordered by ascending x, with the
// lattice origin anchored at RootIdx.
type Scale struct {
	Nodes      []Node
	BaseFreqHz float64
	RootIdx    int
}

// stepSearchBound limits the lattice search for strip return vectors.
const stepSearchBound = 64

// ScaleFromAffine materializes n nodes of the scale defined by the affine
// transform, anchoring the lattice origin at index rootIdx. The transform
// must be normalized so the origin maps into the strip 0 <= y < 1.
func ScaleFromAffine(a Affine, baseFreqHz float64, n, rootIdx int) (*Scale, error) {
	if n <= 0 || rootIdx < 0 || rootIdx >= n {
		return nil, fmt.Errorf("mos: invalid scale shape n=%d root=%d", n, rootIdx)
	}
	up, down, ok := findStripSteps(a)
	if !ok {
		return nil, fmt.Errorf("mos: degenerate transform %+v, no strip step vectors", a)
	}

	s := &Scale{
		Nodes:      make([]Node, n),
		BaseFreqHz: baseFreqHz,
		RootIdx:    rootIdx,
	}

	root := Node{
		NaturalCoord: Vec2i{0, 0},
		TuningCoord:  a.Apply(Vec2i{0, 0}),
		PitchHz:      baseFreqHz,
	}
	s.Nodes[rootIdx] = root

	zu := a.applyLinear(up)
	zd := a.applyLinear(down)

	// By the three-gap theorem the next strip node in x order is reached
	// by the up vector, the down vector, or their sum.
	last := root
	for i := rootIdx + 1; i < n; i++ {
		switch {
		case inStrip(last.TuningCoord.Y + zu.Y):
			last.NaturalCoord = last.NaturalCoord.Add(up)
		case inStrip(last.TuningCoord.Y + zd.Y):
			last.NaturalCoord = last.NaturalCoord.Add(down)
		default:
			last.NaturalCoord = last.NaturalCoord.Add(up).Add(down)
		}
		last.TuningCoord = a.Apply(last.NaturalCoord)
		last.PitchHz = baseFreqHz * math.Exp2(last.TuningCoord.X)
		s.Nodes[i] = last
	}

	last = root
	for i := rootIdx - 1; i >= 0; i-- {
		switch {
		case inStrip(last.TuningCoord.Y - zu.Y):
			last.NaturalCoord = last.NaturalCoord.Sub(up)
		case inStrip(last.TuningCoord.Y - zd.Y):
			last.NaturalCoord = last.NaturalCoord.Sub(down)
		default:
			last.NaturalCoord = last.NaturalCoord.Sub(up).Sub(down)
		}
		last.TuningCoord = a.Apply(last.NaturalCoord)
		last.PitchHz = baseFreqHz * math.Exp2(last.TuningCoord.X)
		s.Nodes[i] = last
	}

	return s, nil
}

func inStrip(y float64) bool {
	return y >= 0 && y < 1
}

// findStripSteps returns the two return vectors of the strip: among all
// lattice vectors whose linear image has positive x, the one of minimal x
// with strip offset in [0, 1) and the one of minimal x with offset in
// (-1, 0]. The search is bounded; transforms produced by realistic tuning
// parameters have their return vectors well inside the bound.
func findStripSteps(a Affine) (up, down Vec2i, ok bool) {
	const eps = 1e-12
	bestUp := math.Inf(1)
	bestDown := math.Inf(1)
	var haveUp, haveDown bool

	for i := -stepSearchBound; i <= stepSearchBound; i++ {
		for j := -stepSearchBound; j <= stepSearchBound; j++ {
			if i == 0 && j == 0 {
				continue
			}
			z := a.applyLinear(Vec2i{i, j})
			if z.X <= eps {
				continue
			}
			if z.Y >= 0 && z.Y < 1 && z.X < bestUp {
				bestUp = z.X
				up = Vec2i{i, j}
				haveUp = true
			}
			if z.Y > -1 && z.Y <= 0 && z.X < bestDown {
				bestDown = z.X
				down = Vec2i{i, j}
				haveDown = true
			}
		}
	}
	return up, down, haveUp && haveDown
}
