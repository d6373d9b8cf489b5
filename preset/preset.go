// Package preset loads PitchGrid plugin presets: a flat record of tuning
// parameters extracted from the plugin's XML state dump.
package preset

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// Default parameter values, applied when a preset omits a field.
const (
	DefaultDepth          = 3.0
	DefaultGenerator      = 7.0 / 12.0
	DefaultEquave         = 1.0
	DefaultStepsRaw       = 12.0
	DefaultOffsetRaw      = 0.5
	DefaultBaseTune       = 0.0
	DefaultPitchBendRange = 48
	DefaultMode           = 1
)

// Preset is the flat tuning parameter record for one retuning run.
type Preset struct {
	Name      string
	Mode      int
	Depth     float64 // period count, rounded before use
	Generator float64 // generator as fraction of the period, in (0,1)
	Equave    float64 // log2 frequency ratio of the equave
	StepsRaw  float64 // keyboard steps per repeating unit, pre-rounding
	OffsetRaw float64 // phase shift as fraction of steps, pre-rounding
	BaseTune  float64 // semitone offset applied to the base frequency

	PitchBendRange int // MPE pitch bend range in semitones
}

// Default returns the preset the plugin starts from: 12-TET.
func Default() *Preset {
	return &Preset{
		Name:           "Default",
		Mode:           DefaultMode,
		Depth:          DefaultDepth,
		Generator:      DefaultGenerator,
		Equave:         DefaultEquave,
		StepsRaw:       DefaultStepsRaw,
		OffsetRaw:      DefaultOffsetRaw,
		BaseTune:       DefaultBaseTune,
		PitchBendRange: DefaultPitchBendRange,
	}
}

// Steps returns the keyboard steps per repeating unit.
func (p *Preset) Steps() int {
	return int(math.Round(p.StepsRaw))
}

// Offset returns the integer phase shift of the keyboard window.
func (p *Preset) Offset() int {
	return int(math.Round(p.OffsetRaw * float64(p.Steps())))
}

// Validate rejects parameter combinations the table builder cannot use.
func (p *Preset) Validate() error {
	if p.Steps() <= 0 {
		return fmt.Errorf("preset %q: steps must be positive, got %d (raw %v)", p.Name, p.Steps(), p.StepsRaw)
	}
	if p.PitchBendRange == 0 {
		return fmt.Errorf("preset %q: pitch bend range is 0", p.Name)
	}
	return nil
}

// element is a generic XML tree node; presets bury PARAMETERS/PARAM at
// varying depths depending on plugin version.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []element  `xml:",any"`
}

func (e *element) attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// find returns the first element with the given name, depth-first.
func (e *element) find(name string) *element {
	if e.XMLName.Local == name {
		return e
	}
	for i := range e.Children {
		if found := e.Children[i].find(name); found != nil {
			return found
		}
	}
	return nil
}

// findAll appends all elements with the given name, depth-first.
func (e *element) findAll(name string, out []*element) []*element {
	if e.XMLName.Local == name {
		out = append(out, e)
	}
	for i := range e.Children {
		out = e.Children[i].findAll(name, out)
	}
	return out
}

// Parse reads a PitchGrid preset XML document.
func Parse(r io.Reader) (*Preset, error) {
	var root element
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("preset: parse: %w", err)
	}

	p := Default()

	params := root.find("PARAMETERS")
	if params == nil {
		return nil, fmt.Errorf("preset: no PARAMETERS element")
	}
	if name, ok := params.attr("_currentPresetName"); ok {
		p.Name = name
	} else {
		p.Name = "Unknown"
	}
	if s, ok := params.attr("_mode"); ok {
		mode, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("preset: bad _mode %q: %w", s, err)
		}
		p.Mode = mode
	}

	values := map[string]float64{}
	for _, el := range root.findAll("PARAM", nil) {
		id, okID := el.attr("id")
		raw, okVal := el.attr("value")
		if !okID || !okVal {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("preset: bad value for %q: %w", id, err)
		}
		values[id] = v
	}

	if v, ok := values["depth"]; ok {
		p.Depth = v
	}
	if v, ok := values["skew"]; ok {
		p.Generator = v
	}
	if v, ok := values["stretch"]; ok {
		p.Equave = v
	}
	if v, ok := values["steps"]; ok {
		p.StepsRaw = v
	}
	if v, ok := values["offset"]; ok {
		p.OffsetRaw = v
	}
	if v, ok := values["base_tune"]; ok {
		p.BaseTune = v
	}
	if v, ok := values["midiPitchBendRange"]; ok {
		p.PitchBendRange = int(v)
	}

	return p, nil
}

// Load reads and parses a preset file.
func Load(path string) (*Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("preset: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
