package tuning

import "math"

// Pitch bend constants for the 14-bit wheel value.
const (
	BendCenter = 8192
	BendMax    = 16383
)

// Quantize maps an exact frequency to the nearest MIDI note plus a 14-bit
// pitch bend value covering the remainder. bendRange is the bend range in
// semitones that the receiving synth has been configured with.
//
// A frequency <= 0 is the "silent/undefined" sentinel and quantizes to
// (0, BendCenter).
func Quantize(freqHz float64, bendRange int) (note uint8, bend uint16) {
	if freqHz <= 0 {
		return 0, BendCenter
	}

	exact := 69.0 + 12.0*math.Log2(freqHz/440.0)
	n := math.Round(exact)
	if n < 0 {
		n = 0
	} else if n > 127 {
		n = 127
	}

	bendSemitones := exact - n
	normalized := bendSemitones / float64(bendRange)
	b := math.Round(BendCenter + 8191*normalized)
	if b < 0 {
		b = 0
	} else if b > BendMax {
		b = BendMax
	}

	return uint8(n), uint16(b)
}
