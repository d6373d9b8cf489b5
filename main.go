package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"

	"go-retune/config"
	"go-retune/debug"
	"go-retune/preset"
	"go-retune/retune"
	"go-retune/tui"
	"go-retune/tuning"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		presetPath = flag.String("preset", "", "PitchGrid preset XML file (required)")
		inputPath  = flag.String("input", "", "input MIDI file")
		outputPath = flag.String("output", "", "output MPE MIDI file")
		baseFreq   = flag.Float64("base-freq", 0, "base frequency in Hz (default: middle C = 261.625565)")
		bendRange  = flag.Int("pitch-bend-range", 0, "MPE pitch bend range in semitones (default: from preset)")
		dumpTable  = flag.Bool("dump-table", false, "print the tuning table and exit")
		browse     = flag.Bool("browse", false, "browse the tuning table interactively and exit")
		debugLog   = flag.Bool("debug", false, "log to ~/.config/go-retune/debug.log")
	)
	flag.Parse()

	if *debugLog {
		if err := debug.Enable(); err != nil {
			return err
		}
		defer debug.Disable()
	}

	if *presetPath == "" {
		flag.Usage()
		return fmt.Errorf("-preset is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// write the defaults on first run so there is a file to edit
	if path, perr := config.ConfigPath(); perr == nil {
		if _, serr := os.Stat(path); os.IsNotExist(serr) {
			if err := cfg.Save(); err != nil {
				return err
			}
		}
	}

	p, err := preset.Load(*presetPath)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Loaded preset: %s\n", p.Name)
	fmt.Fprintf(os.Stderr, "  steps=%d (raw=%.2f), offset=%d (raw=%.4f), mode=%d\n",
		p.Steps(), p.StepsRaw, p.Offset(), p.OffsetRaw, p.Mode)

	// precedence: flag, then config file, then preset/defaults
	base := cfg.BaseFreqHz
	if base == 0 {
		base = tuning.DefaultBaseFreqHz
	}
	if *baseFreq != 0 {
		base = *baseFreq
	}
	pbr := p.PitchBendRange
	if cfg.PitchBendRange != 0 {
		pbr = cfg.PitchBendRange
	}
	if *bendRange != 0 {
		pbr = *bendRange
	}
	fmt.Fprintf(os.Stderr, "  pitch bend range: ±%d semitones\n", pbr)

	table, err := tuning.Build(p, base)
	if err != nil {
		return err
	}

	if *dumpTable {
		table.Dump(os.Stdout)
		return nil
	}
	if *browse {
		return tui.Run(table, pbr)
	}

	if *inputPath == "" {
		return fmt.Errorf("-input is required unless -dump-table or -browse is used")
	}

	out := *outputPath
	if out == "" {
		out = withSuffix(*inputPath, cfg.OutputSuffix)
	}
	if out == *inputPath {
		out = withSuffix(*inputPath, "_retuned")
	}

	src, err := smf.ReadFile(*inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *inputPath, err)
	}

	r, err := retune.New(table, pbr)
	if err != nil {
		return err
	}
	dst, err := r.Retune(src)
	if err != nil {
		return err
	}

	if err := dst.WriteFile(out); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "Done! MPE file written to: %s\n", out)
	return nil
}

// withSuffix inserts a suffix before the .mid extension.
func withSuffix(path, suffix string) string {
	if strings.HasSuffix(path, ".mid") {
		return strings.TrimSuffix(path, ".mid") + suffix + ".mid"
	}
	return path + suffix
}
