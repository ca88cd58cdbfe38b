// Package score contains the absolute-time representation of a piece of music
// exchanged with the tokenizer.
package score

import (
	"sort"
	"strconv"

	"moria.us/cptok/build/token"
)

var notes = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName returns the human-readable version of a note value.
func NoteName(value int) string {
	octave := value/12 - 1
	chromaticity := value % 12
	return notes[chromaticity] + strconv.Itoa(octave)
}

// A Note is a note with start and end times in ticks.
type Note struct {
	Start    int
	End      int
	Pitch    int
	Velocity int
}

// Duration returns the length of the note in ticks.
func (n Note) Duration() int { return n.End - n.Start }

// A Track is a sequence of notes played by one instrument.
type Track struct {
	Name    string
	Program int
	IsDrum  bool
	Notes   []Note
}

// A TempoChange sets the tempo, in beats per minute, from the given time.
type TempoChange struct {
	Time  int
	Tempo float64
}

// A TimeSignature sets the time signature from the given time.
type TimeSignature struct {
	Time int
	token.TimeSig
}

// A Score is a complete piece of music. All times are measured in ticks, with
// Division ticks per beat.
type Score struct {
	Division       int
	Tracks         []*Track
	Tempos         []TempoChange
	TimeSignatures []TimeSignature
}

// MaxTick returns the time at which the last note ends.
func (s *Score) MaxTick() int {
	var t int
	for _, tr := range s.Tracks {
		for _, n := range tr.Notes {
			if n.End > t {
				t = n.End
			}
		}
	}
	return t
}

// SortNotes sorts notes by start time, then pitch, then end time.
func SortNotes(ns []Note) {
	sort.SliceStable(ns, func(i, j int) bool {
		x, y := ns[i], ns[j]
		if x.Start != y.Start {
			return x.Start < y.Start
		}
		if x.Pitch != y.Pitch {
			return x.Pitch < y.Pitch
		}
		return x.End < y.End
	})
}

// SortTempos sorts tempo changes by time and keeps the last change at each
// time.
func SortTempos(ts []TempoChange) []TempoChange {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].Time < ts[j].Time })
	var r []TempoChange
	for _, t := range ts {
		if n := len(r); n > 0 && r[n-1].Time == t.Time {
			r[n-1] = t
			continue
		}
		r = append(r, t)
	}
	return r
}

// SortTimeSignatures sorts time signature changes by time and keeps the last
// change at each time.
func SortTimeSignatures(ts []TimeSignature) []TimeSignature {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].Time < ts[j].Time })
	var r []TimeSignature
	for _, t := range ts {
		if n := len(r); n > 0 && r[n-1].Time == t.Time {
			r[n-1] = t
			continue
		}
		r = append(r, t)
	}
	return r
}
