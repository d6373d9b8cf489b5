package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"gitlab.com/gomidi/midi/v2/smf"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "play":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		port := ""
		if len(os.Args) > 3 {
			port = os.Args[3]
		}
		if err := play(os.Args[2], port); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	default:
		usage()
	}
}

func usage() {
	fmt.Println("Audition retuned MIDI files on a live port")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list               - List all MIDI output ports")
	fmt.Println("  play <file> [port] - Send a .mid file to a port (index or name substring)")
}

func listPorts() {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- midi.GetOutPorts()
	}()

	select {
	case outs := <-ch:
		for i, p := range outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! The MIDI backend is hung.")
	}
}

func findPort(spec string) (drivers.Out, error) {
	outs := midi.GetOutPorts()
	if len(outs) == 0 {
		return nil, fmt.Errorf("no MIDI output ports")
	}
	if spec == "" {
		return outs[0], nil
	}
	if idx, err := strconv.Atoi(spec); err == nil {
		if idx < 0 || idx >= len(outs) {
			return nil, fmt.Errorf("port index %d out of range", idx)
		}
		return outs[idx], nil
	}
	for _, p := range outs {
		if strings.Contains(strings.ToLower(p.String()), strings.ToLower(spec)) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no port matching %q", spec)
}

// timedMsg is one playable event at an absolute tick position.
type timedMsg struct {
	tick uint64
	msg  smf.Message
}

func play(path, portSpec string) error {
	s, err := smf.ReadFile(path)
	if err != nil {
		return err
	}

	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return fmt.Errorf("unsupported time format %v", s.TimeFormat)
	}

	bpm := 120.0
	if tc := s.TempoChanges(); len(tc) > 0 {
		bpm = tc[0].BPM
	}

	// merge all tracks into one absolute-time sequence
	var events []timedMsg
	for _, track := range s.Tracks {
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			if ev.Message.IsPlayable() {
				events = append(events, timedMsg{tick: abs, msg: ev.Message})
			}
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].tick < events[j].tick
	})

	outPort, err := findPort(portSpec)
	if err != nil {
		return err
	}
	fmt.Printf("Playing %s on %s (%.0f BPM, %d events)\n", path, outPort.String(), bpm, len(events))

	send, err := midi.SendTo(outPort)
	if err != nil {
		return err
	}

	var last uint64
	for _, ev := range events {
		if ev.tick > last {
			time.Sleep(ticks.Duration(bpm, uint32(ev.tick-last)))
			last = ev.tick
		}
		if err := send(midi.Message(ev.msg)); err != nil {
			return err
		}
	}

	// safety: release anything still sounding
	for ch := uint8(0); ch < 16; ch++ {
		send(midi.ControlChange(ch, 123, 0))
	}

	fmt.Println("Done!")
	return nil
}
