// Package tuning builds the 128-key tuning table that drives retuning: one
// frequency per MIDI key, derived from a preset's generator-lattice
// parameters.
package tuning

import (
	"fmt"
	"io"
	"math"

	"go-retune/mos"
	"go-retune/preset"
)

// NumKeys is the size of the keyboard-indexed table.
const NumKeys = 128

// AnchorKey is the MIDI key pinned to the lattice origin, so the middle
// key of the keyboard sounds the preset's nominal root.
const AnchorKey = 60

// DefaultBaseFreqHz is 12-TET middle C.
const DefaultBaseFreqHz = 261.625565

// Entry is the tuning of a single MIDI key. A FrequencyHz of 0 means the
// key is undefined/out of range; CentsFromRoot is 0 in that case.
type Entry struct {
	MidiNote      int
	FrequencyHz   float64
	CentsFromRoot float64
	NaturalCoord  mos.Vec2i
	OnScale       bool
}

// Table is an immutable 128-entry tuning table, built once per
// (preset, base frequency) pair.
type Table struct {
	Entries [NumKeys]Entry

	// BaseFreqHz is the adjusted base frequency (after the preset's
	// base-tune shift) that cents are measured from.
	BaseFreqHz float64

	MOS    *mos.MOS
	Preset *preset.Preset
}

// Build materializes the tuning table for a preset.
//
// The preset's generator structure is materialized at its natural period
// size n, then the keyboard window is corrected for the preset's steps per
// period (strip axis stretched by n/steps) and phase (strip axis shifted
// by (offset-mode)/steps). Key 60 is anchored to the lattice origin.
func Build(p *preset.Preset, baseFreqHz float64) (*Table, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	depth := int(math.Round(p.Depth))
	m, err := mos.FromG(depth, p.Mode, p.Generator, p.Equave, 1)
	if err != nil {
		return nil, fmt.Errorf("tuning: preset %q: %w", p.Name, err)
	}

	steps := p.Steps()
	offset := p.Offset()
	sf := float64(m.N) / float64(steps)
	wo := float64(offset - p.Mode)

	// Rescale and translate only the strip row of the implied transform.
	// The log-frequency row passes through unchanged: the window correction
	// reinterprets which lattice nodes the keyboard selects, not their
	// pitches.
	ia := m.ImpliedAffine
	squeezed := mos.Affine{
		A: ia.A, B: ia.B, TX: ia.TX,
		C:  sf * ia.C,
		D:  sf * ia.D,
		TY: sf*ia.TY + wo/float64(steps),
	}

	adjusted := baseFreqHz * math.Exp2(p.BaseTune/12.0)

	scale, err := mos.ScaleFromAffine(squeezed, adjusted, NumKeys, AnchorKey)
	if err != nil {
		return nil, fmt.Errorf("tuning: preset %q: %w", p.Name, err)
	}

	t := &Table{
		BaseFreqHz: adjusted,
		MOS:        m,
		Preset:     p,
	}
	for i := 0; i < NumKeys; i++ {
		node := scale.Nodes[i]
		freq := node.PitchHz
		cents := 0.0
		if freq > 0 {
			cents = 1200.0 * math.Log2(freq/adjusted)
		} else {
			freq = 0
		}
		t.Entries[i] = Entry{
			MidiNote:      i,
			FrequencyHz:   freq,
			CentsFromRoot: cents,
			NaturalCoord:  node.NaturalCoord,
			OnScale:       m.NodeInScale(node.NaturalCoord),
		}
	}
	return t, nil
}

// Dump writes the table in a readable column format.
func (t *Table) Dump(w io.Writer) {
	p := t.Preset
	fmt.Fprintf(w, "Tuning table for preset: %s\n", p.Name)
	fmt.Fprintf(w, "MOS params: depth=%d, mode=%d, generator=%.6f, equave=%.6f\n",
		int(math.Round(p.Depth)), p.Mode, p.Generator, p.Equave)
	fmt.Fprintf(w, "Steps=%d, Offset=%d\n", p.Steps(), p.Offset())
	fmt.Fprintf(w, "%4s  %12s  %10s  %10s  %7s\n", "MIDI", "Freq (Hz)", "Cents", "Coord", "OnScale")
	fmt.Fprintln(w, "-------------------------------------------------------")
	for _, e := range t.Entries {
		marker := ""
		if e.OnScale {
			marker = "  *"
		}
		fmt.Fprintf(w, "%4d  %12.3f  %+10.3f  (%3d,%3d)%s\n",
			e.MidiNote, e.FrequencyHz, e.CentsFromRoot,
			e.NaturalCoord.X, e.NaturalCoord.Y, marker)
	}
}
