// Package retune rewrites a standard MIDI event stream into an MPE stream
// that sounds a microtonal tuning table: every note moves to its own
// member channel and is preceded by a pitch bend placing it on the exact
// target frequency. Emitted bend values are signed offsets from the wheel
// center (-8192..8191).
package retune

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-retune/debug"
	"go-retune/tuning"
)

const (
	// managerChannel carries the MPE configuration and all non-note
	// channel messages.
	managerChannel = 0
	// drumChannel is reserved for GM percussion and never joins the pool.
	drumChannel = 9
	// poolSize is the number of member channels: 1-15 minus the drum
	// channel.
	poolSize = 14
)

// Retuner translates MIDI files against a fixed tuning table. It holds no
// per-run state; each Retune call uses a fresh channel allocator, so a
// single Retuner may convert any number of files.
type Retuner struct {
	table     *tuning.Table
	bendRange int
}

// New builds a Retuner. bendRange is the pitch bend range in semitones the
// output declares on every member channel; it must be positive.
func New(table *tuning.Table, bendRange int) (*Retuner, error) {
	if table == nil {
		return nil, fmt.Errorf("retune: nil tuning table")
	}
	if bendRange <= 0 || bendRange > 127 {
		return nil, fmt.Errorf("retune: pitch bend range %d out of range", bendRange)
	}
	return &Retuner{table: table, bendRange: bendRange}, nil
}

// Retune translates a MIDI file into its MPE rendition. The output has the
// same time format and track cardinality as the input, with the MPE
// configuration preamble prepended to the first track. Relative event
// timing is preserved; the injected bend of a note-on pair lands on the
// original tick and the note-on follows with a zero delta.
func (r *Retuner) Retune(src *smf.SMF) (*smf.SMF, error) {
	out := smf.New()
	out.TimeFormat = src.TimeFormat

	alloc := newAllocator()
	for i, track := range src.Tracks {
		var outTrack smf.Track
		if i == 0 {
			r.writePreamble(&outTrack)
		}
		eotDelta := r.retuneTrack(alloc, track, &outTrack)
		outTrack.Close(eotDelta)
		if err := out.Add(outTrack); err != nil {
			return nil, fmt.Errorf("retune: track %d: %w", i, err)
		}
	}
	debug.Log("retune", "retuned %d tracks, %d channels free at end", len(src.Tracks), len(alloc.free))
	return out, nil
}

// writePreamble emits the MPE configuration: an MPE Configuration Message
// (RPN 6) on the manager channel declaring 15 member channels, then the
// pitch bend range (RPN 0) on every member channel.
func (r *Retuner) writePreamble(track *smf.Track) {
	track.Add(0, midi.ControlChange(managerChannel, 101, 0))
	track.Add(0, midi.ControlChange(managerChannel, 100, 6))
	track.Add(0, midi.ControlChange(managerChannel, 6, 15))
	track.Add(0, midi.ControlChange(managerChannel, 38, 0))

	for _, ch := range poolChannels() {
		track.Add(0, midi.ControlChange(ch, 101, 0))
		track.Add(0, midi.ControlChange(ch, 100, 0))
		track.Add(0, midi.ControlChange(ch, 6, uint8(r.bendRange)))
		track.Add(0, midi.ControlChange(ch, 38, 0))
	}
}

// retuneTrack translates one track's events in order. It returns the delta
// of the input's end-of-track meta so the caller can close the output
// track on the same tick.
func (r *Retuner) retuneTrack(alloc *allocator, in smf.Track, out *smf.Track) uint32 {
	var eotDelta uint32
	for _, ev := range in {
		msg := ev.Message
		var ch, key, vel, cc, val, prog uint8

		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			if key > 127 {
				out.Add(ev.Delta, msg)
				continue
			}
			entry := r.table.Entries[key]
			newNote, bend := tuning.Quantize(entry.FrequencyHz, r.bendRange)
			member := alloc.acquire(key)
			// bend first, note-on on the same tick
			out.Add(ev.Delta, midi.Pitchbend(member, int16(int(bend)-tuning.BendCenter)))
			out.Add(0, midi.NoteOn(member, newNote, vel))
			debug.Log("retune", "note %d -> ch %d note %d bend %d", key, member, newNote, int(bend)-tuning.BendCenter)

		case msg.GetNoteEnd(&ch, &key):
			// note-off, or note-on with velocity 0
			var offVel uint8
			msg.GetNoteOff(&ch, &key, &offVel)

			newNote := key
			if key <= 127 {
				newNote, _ = tuning.Quantize(r.table.Entries[key].FrequencyHz, r.bendRange)
			}
			member, ok := alloc.release(key)
			if !ok {
				// unmatched note-off, keep its original channel
				member = ch
				alloc.requeue(member)
			}
			out.Add(ev.Delta, midi.NoteOffVelocity(member, newNote, offVel))

		case msg.GetControlChange(&ch, &cc, &val):
			out.Add(ev.Delta, midi.ControlChange(managerChannel, cc, val))

		case msg.GetProgramChange(&ch, &prog):
			out.Add(ev.Delta, midi.ProgramChange(managerChannel, prog))

		case msg.Is(smf.MetaEndOfTrackMsg):
			eotDelta = ev.Delta

		default:
			// meta and everything else passes through untouched
			out.Add(ev.Delta, msg)
		}
	}
	return eotDelta
}
