// Package config loads and validates tokenizer configurations.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"moria.us/cptok/build/token"
)

// A BeatRange gives the resolution, in samples per beat, for durations from
// Start beats up to End beats.
type BeatRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
	Res   int `json:"res" yaml:"res"`
}

// A Config contains the tokenizer configuration.
type Config struct {
	PitchRange        [2]int           `json:"pitchRange" yaml:"pitchRange"`
	BeatRes           []BeatRange      `json:"beatRes" yaml:"beatRes"`
	NbVelocities      int              `json:"nbVelocities" yaml:"nbVelocities"`
	BeatResRest       []BeatRange      `json:"beatResRest" yaml:"beatResRest"`
	NbTempos          int              `json:"nbTempos" yaml:"nbTempos"`
	TempoRange        [2]float64       `json:"tempoRange" yaml:"tempoRange"`
	LogTempos         bool             `json:"logTempos" yaml:"logTempos"`
	TimeSignatures    []string         `json:"timeSignatures" yaml:"timeSignatures"`
	Programs          []int            `json:"programs" yaml:"programs"`
	UseChords         bool             `json:"useChords" yaml:"useChords"`
	UseRests          bool             `json:"useRests" yaml:"useRests"`
	UseTempos         bool             `json:"useTempos" yaml:"useTempos"`
	UseTimeSignatures bool             `json:"useTimeSignatures" yaml:"useTimeSignatures"`
	UsePrograms       bool             `json:"usePrograms" yaml:"usePrograms"`
	MinRestTicks      int              `json:"minRestTicks" yaml:"minRestTicks"`
	ChordMaps         map[string][]int `json:"chordMaps" yaml:"chordMaps"`
	ChordUnknown      [2]int           `json:"chordUnknown" yaml:"chordUnknown"`
	TimeDivision      int              `json:"timeDivision" yaml:"timeDivision"`
}

// Default returns the default configuration. No optional features are
// enabled.
func Default() *Config {
	programs := make([]int, 129)
	for i := range programs {
		programs[i] = i - 1
	}
	return &Config{
		PitchRange: [2]int{21, 109},
		BeatRes: []BeatRange{
			{0, 4, 8},
			{4, 12, 4},
		},
		NbVelocities: 32,
		BeatResRest: []BeatRange{
			{0, 1, 8},
			{1, 2, 4},
			{2, 12, 2},
		},
		NbTempos:   32,
		TempoRange: [2]float64{40, 250},
		TimeSignatures: []string{
			"3/8", "6/8", "12/8",
			"1/4", "2/4", "3/4", "4/4", "5/4", "6/4", "24/4",
		},
		Programs:     programs,
		ChordUnknown: [2]int{3, 6},
		TimeDivision: 480,
	}
}

// Load loads a configuration file. Keys missing from the file keep their
// default values. Files ending in .yaml or .yml are read as YAML, others as
// JSON.
func Load(name string) (*Config, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	c := Default()
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil {
			return nil, fmt.Errorf("invalid config %q: %v", name, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(c); err != nil {
			return nil, fmt.Errorf("invalid config %q: %v", name, err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %v", name, err)
	}
	return c, nil
}

// Features returns the optional token fields enabled by the configuration.
func (c *Config) Features() token.Features {
	return token.Features{
		Programs:       c.UsePrograms,
		Chords:         c.UseChords,
		Rests:          c.UseRests,
		Tempos:         c.UseTempos,
		TimeSignatures: c.UseTimeSignatures,
	}
}

func checkRanges(name string, rs []BeatRange) error {
	if len(rs) == 0 {
		return fmt.Errorf("%s is empty", name)
	}
	for _, r := range rs {
		if r.Start < 0 || r.End <= r.Start {
			return fmt.Errorf("%s: invalid beat range %d..%d", name, r.Start, r.End)
		}
		if r.Res <= 0 {
			return fmt.Errorf("%s: invalid resolution %d", name, r.Res)
		}
	}
	return nil
}

// Validate returns an error if the configuration cannot be used.
func (c *Config) Validate() error {
	if lo, hi := c.PitchRange[0], c.PitchRange[1]; lo < 0 || hi > 128 || hi <= lo {
		return fmt.Errorf("invalid pitch range %d..%d", lo, hi)
	}
	if err := checkRanges("beatRes", c.BeatRes); err != nil {
		return err
	}
	if err := checkRanges("beatResRest", c.BeatResRest); err != nil {
		return err
	}
	if c.NbVelocities <= 0 || c.NbVelocities > 127 {
		return fmt.Errorf("invalid number of velocities: %d", c.NbVelocities)
	}
	if c.UseTempos {
		if c.NbTempos <= 0 {
			return fmt.Errorf("invalid number of tempos: %d", c.NbTempos)
		}
		if lo, hi := c.TempoRange[0], c.TempoRange[1]; !(0 < lo && lo <= hi) {
			return fmt.Errorf("invalid tempo range %g..%g", lo, hi)
		}
	}
	if len(c.TimeSignatures) == 0 {
		return errors.New("no time signatures")
	}
	for _, s := range c.TimeSignatures {
		sig, err := token.ParseTimeSig(s)
		if err != nil {
			return err
		}
		if sig.Den&(sig.Den-1) != 0 {
			return fmt.Errorf("time signature %s: denominator is not a power of two", s)
		}
	}
	if c.UsePrograms && len(c.Programs) == 0 {
		return errors.New("usePrograms is set but there are no programs")
	}
	for _, p := range c.Programs {
		if p < -1 || p > 127 {
			return fmt.Errorf("invalid program: %d", p)
		}
	}
	if c.MinRestTicks < 0 {
		return fmt.Errorf("invalid minRestTicks: %d", c.MinRestTicks)
	}
	if c.TimeDivision <= 0 {
		return fmt.Errorf("invalid time division: %d", c.TimeDivision)
	}
	if res := maxRes(c.BeatRes); c.TimeDivision%res != 0 {
		return fmt.Errorf("time division %d is not divisible by beat resolution %d", c.TimeDivision, res)
	}
	for name, ivs := range c.ChordMaps {
		if len(ivs) < 3 {
			return fmt.Errorf("chord %q: fewer than three notes", name)
		}
	}
	return nil
}

// Warnings returns problems with the configuration which still allow
// tokenization.
func (c *Config) Warnings() []string {
	var ws []string
	if c.UseRests && c.UseTimeSignatures {
		ws = append(ws, "rests and time signatures are both enabled: "+
			"time signature changes during a rest are not marked until the rest ends")
	}
	return ws
}

func maxRes(rs []BeatRange) int {
	var n int
	for _, r := range rs {
		if r.Res > n {
			n = r.Res
		}
	}
	return n
}
