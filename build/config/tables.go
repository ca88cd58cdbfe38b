package config

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"moria.us/cptok/build/chord"
	"moria.us/cptok/build/token"
)

// DefaultTempo is the tempo, in beats per minute, of a piece without tempo
// changes.
const DefaultTempo = 120

// ErrDivision is returned for a time division which is not a multiple of the
// finest beat resolution.
var ErrDivision = errors.New("time division is not a multiple of the beat resolution")

// Tables contains the token values derived from a configuration. Tables are
// immutable once built.
type Tables struct {
	PitchMin    int // inclusive
	PitchMax    int // exclusive
	Velocities  []int
	Durations   []token.Ratio
	Rests       []token.Ratio
	Tempos      []float64
	TimeSigs    []token.TimeSig
	Programs    []int
	Chords      []string
	MaxRes      int
	NbPositions int
	MinRest     int // ticks at Division, 0 for the smallest rest
	Division    int // configured time division
}

// Tables builds the value tables for a valid configuration.
func (c *Config) Tables() (*Tables, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	t := Tables{
		PitchMin:   c.PitchRange[0],
		PitchMax:   c.PitchRange[1],
		Velocities: velocities(c.NbVelocities),
		Durations:  ratios(c.BeatRes),
		Rests:      ratios(c.BeatResRest),
		Programs:   append([]int(nil), c.Programs...),
		MaxRes:     maxRes(c.BeatRes),
		MinRest:    c.MinRestTicks,
		Division:   c.TimeDivision,
	}
	if c.UseTempos {
		t.Tempos = tempos(c.NbTempos, c.TempoRange, c.LogTempos)
	} else {
		t.Tempos = []float64{DefaultTempo}
	}
	var maxBeats int
	for _, s := range c.TimeSignatures {
		sig, err := token.ParseTimeSig(s)
		if err != nil {
			return nil, err
		}
		t.TimeSigs = append(t.TimeSigs, sig)
		if n := (4*sig.Num + sig.Den - 1) / sig.Den; n > maxBeats {
			maxBeats = n
		}
	}
	t.NbPositions = t.MaxRes * maxBeats
	if c.UseChords {
		maps := c.ChordMaps
		if maps == nil {
			maps = chord.DefaultMaps
		}
		t.Chords = chord.Labels(maps, c.ChordUnknown)
	}
	return &t, nil
}

// velocities returns n velocities spread evenly over 1..127.
func velocities(n int) []int {
	v := make([]int, n)
	for i := range v {
		v[i] = (i + 1) * 127 / n
	}
	return v
}

// ratios lists every duration on the grid of the beat ranges, excluding zero,
// followed by the end of the last range.
func ratios(rs []BeatRange) []token.Ratio {
	rs = append([]BeatRange(nil), rs...)
	sort.Slice(rs, func(i, j int) bool { return rs[i].Start < rs[j].Start })
	var d []token.Ratio
	for _, r := range rs {
		for beat := r.Start; beat < r.End; beat++ {
			for pos := 0; pos < r.Res; pos++ {
				if beat == 0 && pos == 0 {
					continue
				}
				d = append(d, token.Ratio{Beat: beat, Pos: pos, Res: r.Res})
			}
		}
	}
	last := rs[len(rs)-1]
	return append(d, token.Ratio{Beat: last.End, Pos: 0, Res: last.Res})
}

func tempos(n int, rng [2]float64, logScale bool) []float64 {
	lo, hi := rng[0], rng[1]
	t := make([]float64, n)
	for i := range t {
		var x float64
		switch {
		case n == 1:
			x = lo
		case logScale:
			x = lo * math.Pow(hi/lo, float64(i)/float64(n-1))
		default:
			x = lo + (hi-lo)*float64(i)/float64(n-1)
		}
		t[i] = math.Round(x*100) / 100
	}
	return t
}

// NearestVelocity returns the velocity value closest to v.
func (t *Tables) NearestVelocity(v int) int {
	best := t.Velocities[0]
	for _, x := range t.Velocities[1:] {
		if abs(x-v) < abs(best-v) {
			best = x
		}
	}
	return best
}

// NearestTempo returns the tempo value closest to bpm.
func (t *Tables) NearestTempo(bpm float64) float64 {
	best := t.Tempos[0]
	for _, x := range t.Tempos[1:] {
		if math.Abs(x-bpm) < math.Abs(best-bpm) {
			best = x
		}
	}
	return best
}

// DefaultTempo returns the tempo value closest to the standard 120 BPM.
func (t *Tables) DefaultTempo() float64 {
	return t.NearestTempo(DefaultTempo)
}

// HasTimeSig returns true if the time signature is in the vocabulary.
func (t *Tables) HasTimeSig(sig token.TimeSig) bool {
	for _, s := range t.TimeSigs {
		if s == sig {
			return true
		}
	}
	return false
}

// InPitchRange returns true if the pitch is in the vocabulary.
func (t *Tables) InPitchRange(p int) bool {
	return t.PitchMin <= p && p < t.PitchMax
}

// A Timing converts between durations and ticks for one time division.
type Timing struct {
	Division       int
	TicksPerSample int
	durTicks       []int
	restTicks      []int
	tables         *Tables
}

// Timing returns the tick tables for a time division, in ticks per beat.
func (t *Tables) Timing(division int) (*Timing, error) {
	if division <= 0 || division%t.MaxRes != 0 {
		return nil, fmt.Errorf("%w: %d (resolution %d)", ErrDivision, division, t.MaxRes)
	}
	tm := Timing{
		Division:       division,
		TicksPerSample: division / t.MaxRes,
		durTicks:       make([]int, len(t.Durations)),
		restTicks:      make([]int, len(t.Rests)),
		tables:         t,
	}
	for i, d := range t.Durations {
		tm.durTicks[i] = d.Ticks(division)
	}
	for i, r := range t.Rests {
		tm.restTicks[i] = r.Ticks(division)
	}
	return &tm, nil
}

// TicksPerBar returns the length of a bar in the time signature.
func (tm *Timing) TicksPerBar(sig token.TimeSig) int {
	return sig.TicksPerBar(tm.Division)
}

// Ticks returns the length of a duration or rest value.
func (tm *Timing) Ticks(r token.Ratio) int {
	return r.Ticks(tm.Division)
}

// NearestDuration returns the duration value closest to the given length.
func (tm *Timing) NearestDuration(ticks int) token.Ratio {
	best := 0
	for i, x := range tm.durTicks {
		if abs(x-ticks) < abs(tm.durTicks[best]-ticks) {
			best = i
		}
	}
	return tm.tables.Durations[best]
}

// MinRest returns the shortest gap, in ticks, which is encoded as rests. The
// configured minimum is scaled from the configured division to this one.
func (tm *Timing) MinRest() int {
	if t := tm.tables; t.MinRest > 0 {
		return t.MinRest * tm.Division / t.Division
	}
	return tm.restTicks[0]
}

// RestValues splits a gap into rest values, largest first. Each value is the
// largest rest which fits in what remains of the gap. A remainder shorter than
// the smallest rest is dropped.
func (tm *Timing) RestValues(ticks int) []token.Ratio {
	var rs []token.Ratio
	for ticks >= tm.restTicks[0] {
		i := sort.SearchInts(tm.restTicks, ticks+1) - 1
		rs = append(rs, tm.tables.Rests[i])
		ticks -= tm.restTicks[i]
	}
	return rs
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
