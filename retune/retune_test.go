package retune

import (
	"reflect"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-retune/preset"
	"go-retune/tuning"
)

func twelveTETTable(t *testing.T) *tuning.Table {
	t.Helper()
	p := &preset.Preset{
		Name:           "12-TET",
		Mode:           0,
		Depth:          3,
		Generator:      7.0 / 12.0,
		Equave:         1.0,
		StepsRaw:       12,
		OffsetRaw:      0.5,
		PitchBendRange: 48,
	}
	table, err := tuning.Build(p, tuning.DefaultBaseFreqHz)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return table
}

func newRetuner(t *testing.T) *Retuner {
	t.Helper()
	r, err := New(twelveTETTable(t), 48)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func makeSMF(t *testing.T, tracks ...smf.Track) *smf.SMF {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	for _, tr := range tracks {
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return s
}

// preambleLen is the MCM sequence plus one RPN sequence per member channel.
const preambleLen = 4 + poolSize*4

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, 48); err == nil {
		t.Error("nil table accepted")
	}
	if _, err := New(twelveTETTable(t), 0); err == nil {
		t.Error("zero bend range accepted")
	}
	if _, err := New(twelveTETTable(t), -2); err == nil {
		t.Error("negative bend range accepted")
	}
}

func TestRetunePreamble(t *testing.T) {
	r := newRetuner(t)

	var in smf.Track
	out, err := r.Retune(makeSMF(t, in))
	if err != nil {
		t.Fatalf("Retune: %v", err)
	}

	track := out.Tracks[0]
	if len(track) != preambleLen+1 { // +1 end of track
		t.Fatalf("track length = %d, want %d", len(track), preambleLen+1)
	}

	// MPE configuration message: RPN 6 = 15 member channels on the manager
	wantCC := []struct{ cc, val uint8 }{{101, 0}, {100, 6}, {6, 15}, {38, 0}}
	for i, w := range wantCC {
		var ch, cc, val uint8
		if !track[i].Message.GetControlChange(&ch, &cc, &val) {
			t.Fatalf("preamble event %d is not a CC", i)
		}
		if ch != 0 || cc != w.cc || val != w.val {
			t.Errorf("preamble event %d = ch%d cc%d val%d, want ch0 cc%d val%d",
				i, ch, cc, val, w.cc, w.val)
		}
	}

	// first member channel gets its bend range via RPN 0
	var ch, cc, val uint8
	if !track[4].Message.GetControlChange(&ch, &cc, &val) {
		t.Fatal("member RPN event is not a CC")
	}
	if ch != 1 || cc != 101 || val != 0 {
		t.Errorf("member RPN start = ch%d cc%d val%d, want ch1 cc101 val0", ch, cc, val)
	}
	track[6].Message.GetControlChange(&ch, &cc, &val)
	if ch != 1 || cc != 6 || val != 48 {
		t.Errorf("member bend range = ch%d cc%d val%d, want ch1 cc6 val48", ch, cc, val)
	}
}

func TestRetuneSingleNote(t *testing.T) {
	r := newRetuner(t)

	var in smf.Track
	in.Add(96, midi.NoteOn(0, 60, 100))
	in.Add(120, midi.NoteOff(0, 60))

	out, err := r.Retune(makeSMF(t, in))
	if err != nil {
		t.Fatalf("Retune: %v", err)
	}
	ev := out.Tracks[0][preambleLen:]

	// bend on the original tick, centered for an exact 12-TET target
	var ch uint8
	var rel int16
	var abs uint16
	if !ev[0].Message.GetPitchBend(&ch, &rel, &abs) {
		t.Fatalf("event 0 is %s, want pitch bend", ev[0].Message)
	}
	if ch != 1 || rel != 0 || ev[0].Delta != 96 {
		t.Errorf("bend = ch%d rel%d delta%d, want ch1 rel0 delta96", ch, rel, ev[0].Delta)
	}

	// note-on rides the same tick
	var key, vel uint8
	if !ev[1].Message.GetNoteStart(&ch, &key, &vel) {
		t.Fatalf("event 1 is %s, want note on", ev[1].Message)
	}
	if ch != 1 || key != 60 || vel != 100 || ev[1].Delta != 0 {
		t.Errorf("note on = ch%d key%d vel%d delta%d, want ch1 key60 vel100 delta0",
			ch, key, vel, ev[1].Delta)
	}

	// note-off addresses the same retuned note on the same channel
	if !ev[2].Message.GetNoteEnd(&ch, &key) {
		t.Fatalf("event 2 is %s, want note off", ev[2].Message)
	}
	if ch != 1 || key != 60 || ev[2].Delta != 120 {
		t.Errorf("note off = ch%d key%d delta%d, want ch1 key60 delta120", ch, key, ev[2].Delta)
	}
}

func TestRetuneNoteOnZeroVelocity(t *testing.T) {
	r := newRetuner(t)

	var in smf.Track
	in.Add(0, midi.NoteOn(0, 64, 90))
	in.Add(48, midi.NoteOn(0, 64, 0)) // running-status style release

	out, err := r.Retune(makeSMF(t, in))
	if err != nil {
		t.Fatalf("Retune: %v", err)
	}
	ev := out.Tracks[0][preambleLen:]

	var ch, key uint8
	if !ev[2].Message.GetNoteEnd(&ch, &key) {
		t.Fatalf("event 2 is %s, want note end", ev[2].Message)
	}
	if ch != 1 || key != 64 || ev[2].Delta != 48 {
		t.Errorf("note end = ch%d key%d delta%d, want ch1 key64 delta48", ch, key, ev[2].Delta)
	}
}

func TestRetuneRoundTripPairing(t *testing.T) {
	r := newRetuner(t)

	// every on/off pair must address the identical retuned note
	var in smf.Track
	notes := []uint8{21, 48, 60, 61, 66, 100, 127}
	for _, n := range notes {
		in.Add(0, midi.NoteOn(0, n, 80))
		in.Add(10, midi.NoteOff(0, n))
	}

	out, err := r.Retune(makeSMF(t, in))
	if err != nil {
		t.Fatalf("Retune: %v", err)
	}
	ev := out.Tracks[0][preambleLen:]

	for i := range notes {
		var ch, onKey, offKey, vel uint8
		if !ev[3*i+1].Message.GetNoteStart(&ch, &onKey, &vel) {
			t.Fatalf("pair %d: %s is not a note on", i, ev[3*i+1].Message)
		}
		if !ev[3*i+2].Message.GetNoteEnd(&ch, &offKey) {
			t.Fatalf("pair %d: %s is not a note end", i, ev[3*i+2].Message)
		}
		if onKey != offKey {
			t.Errorf("pair %d: on key %d != off key %d", i, onKey, offKey)
		}
	}
}

func TestRetuneChannelCycling(t *testing.T) {
	r := newRetuner(t)

	// sequential notes walk the FIFO pool instead of reusing channel 1
	var in smf.Track
	in.Add(0, midi.NoteOn(0, 60, 80))
	in.Add(10, midi.NoteOff(0, 60))
	in.Add(0, midi.NoteOn(0, 62, 80))
	in.Add(10, midi.NoteOff(0, 62))

	out, err := r.Retune(makeSMF(t, in))
	if err != nil {
		t.Fatalf("Retune: %v", err)
	}
	ev := out.Tracks[0][preambleLen:]

	var ch, key, vel uint8
	ev[1].Message.GetNoteStart(&ch, &key, &vel)
	if ch != 1 {
		t.Errorf("first note on ch %d, want 1", ch)
	}
	ev[4].Message.GetNoteStart(&ch, &key, &vel)
	if ch != 2 {
		t.Errorf("second note on ch %d, want 2", ch)
	}
}

func TestRetuneControlAndProgramToManager(t *testing.T) {
	r := newRetuner(t)

	var in smf.Track
	in.Add(5, midi.ControlChange(7, 64, 100))
	in.Add(7, midi.ProgramChange(3, 12))

	out, err := r.Retune(makeSMF(t, in))
	if err != nil {
		t.Fatalf("Retune: %v", err)
	}
	ev := out.Tracks[0][preambleLen:]

	var ch, cc, val, prog uint8
	if !ev[0].Message.GetControlChange(&ch, &cc, &val) {
		t.Fatalf("event 0 is %s, want CC", ev[0].Message)
	}
	if ch != 0 || cc != 64 || val != 100 || ev[0].Delta != 5 {
		t.Errorf("CC = ch%d cc%d val%d delta%d, want ch0 cc64 val100 delta5",
			ch, cc, val, ev[0].Delta)
	}
	if !ev[1].Message.GetProgramChange(&ch, &prog) {
		t.Fatalf("event 1 is %s, want program change", ev[1].Message)
	}
	if ch != 0 || prog != 12 || ev[1].Delta != 7 {
		t.Errorf("program = ch%d prog%d delta%d, want ch0 prog12 delta7", ch, prog, ev[1].Delta)
	}
}

func TestRetuneForwardsOtherEvents(t *testing.T) {
	r := newRetuner(t)

	var in smf.Track
	in.Add(0, smf.MetaTrackSequenceName("melody"))
	in.Add(12, midi.Pitchbend(2, 1000))

	out, err := r.Retune(makeSMF(t, in))
	if err != nil {
		t.Fatalf("Retune: %v", err)
	}
	ev := out.Tracks[0][preambleLen:]

	var name string
	if !ev[0].Message.GetMetaTrackName(&name) || name != "melody" {
		t.Errorf("meta not forwarded: %s", ev[0].Message)
	}

	var ch uint8
	var rel int16
	var abs uint16
	if !ev[1].Message.GetPitchBend(&ch, &rel, &abs) {
		t.Fatalf("event 1 is %s, want pitch bend", ev[1].Message)
	}
	if ch != 2 || rel != 1000 || ev[1].Delta != 12 {
		t.Errorf("passthrough bend = ch%d rel%d delta%d, want ch2 rel1000 delta12",
			ch, rel, ev[1].Delta)
	}
}

func TestRetuneMultiTrack(t *testing.T) {
	r := newRetuner(t)

	// the allocator is shared across tracks: an off in track 1 releases a
	// note opened in track 0
	var first, second smf.Track
	first.Add(0, midi.NoteOn(0, 60, 80))
	second.Add(30, midi.NoteOff(0, 60))

	out, err := r.Retune(makeSMF(t, first, second))
	if err != nil {
		t.Fatalf("Retune: %v", err)
	}
	if len(out.Tracks) != 2 {
		t.Fatalf("track count = %d, want 2", len(out.Tracks))
	}

	// preamble only on the first track
	var ch, cc, val uint8
	if out.Tracks[1][0].Message.GetControlChange(&ch, &cc, &val) {
		t.Error("second track starts with a CC; preamble leaked")
	}

	var key uint8
	if !out.Tracks[1][0].Message.GetNoteEnd(&ch, &key) {
		t.Fatalf("second track event 0 is %s, want note end", out.Tracks[1][0].Message)
	}
	if ch != 1 || key != 60 {
		t.Errorf("cross-track off = ch%d key%d, want ch1 key60", ch, key)
	}
}

func TestRetuneUnmatchedNoteOff(t *testing.T) {
	r := newRetuner(t)

	var in smf.Track
	in.Add(0, midi.NoteOff(4, 72)) // never opened

	out, err := r.Retune(makeSMF(t, in))
	if err != nil {
		t.Fatalf("Retune: %v", err)
	}
	ev := out.Tracks[0][preambleLen:]

	// keeps its original channel, note still retuned
	var ch, key uint8
	if !ev[0].Message.GetNoteEnd(&ch, &key) {
		t.Fatalf("event 0 is %s, want note end", ev[0].Message)
	}
	if ch != 4 || key != 72 {
		t.Errorf("unmatched off = ch%d key%d, want ch4 key72", ch, key)
	}
}

func TestRetuneRunsAreIndependent(t *testing.T) {
	r := newRetuner(t)

	var in smf.Track
	in.Add(0, midi.NoteOn(0, 60, 100))
	in.Add(10, midi.NoteOff(0, 60))

	first, err := r.Retune(makeSMF(t, in))
	if err != nil {
		t.Fatalf("first Retune: %v", err)
	}

	var in2 smf.Track
	in2.Add(0, midi.NoteOn(0, 60, 100))
	in2.Add(10, midi.NoteOff(0, 60))

	second, err := r.Retune(makeSMF(t, in2))
	if err != nil {
		t.Fatalf("second Retune: %v", err)
	}

	if !reflect.DeepEqual(first.Tracks, second.Tracks) {
		t.Error("identical inputs produced different outputs across runs")
	}
}

func TestRetunePreservesTimeFormat(t *testing.T) {
	r := newRetuner(t)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(96)
	var in smf.Track
	in.Close(0)
	if err := s.Add(in); err != nil {
		t.Fatalf("Add: %v", err)
	}

	out, err := r.Retune(s)
	if err != nil {
		t.Fatalf("Retune: %v", err)
	}
	if out.TimeFormat != smf.MetricTicks(96) {
		t.Errorf("time format = %v, want 96 ticks", out.TimeFormat)
	}
}
