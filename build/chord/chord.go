// Package chord detects chords among simultaneous notes.
package chord

import (
	"sort"
	"strconv"

	"moria.us/cptok/build/score"
)

// DefaultMaps gives the intervals, in semitones above the root, of each known
// chord quality.
var DefaultMaps = map[string][]int{
	"min":      {0, 3, 7},
	"maj":      {0, 4, 7},
	"dim":      {0, 3, 6},
	"aug":      {0, 4, 8},
	"sus2":     {0, 2, 7},
	"sus4":     {0, 5, 7},
	"7dom":     {0, 4, 7, 10},
	"7min":     {0, 3, 7, 10},
	"7maj":     {0, 4, 7, 11},
	"7halfdim": {0, 3, 6, 10},
	"7dim":     {0, 3, 6, 9},
	"7aug":     {0, 4, 8, 11},
	"9maj":     {0, 4, 7, 10, 14},
	"9min":     {0, 4, 7, 10, 13},
}

// A Chord is a chord detected at a point in time.
type Chord struct {
	Time  int
	Label string
}

// Options controls chord detection.
type Options struct {
	// Maps gives the known chord qualities. DefaultMaps is used if nil.
	Maps map[string][]int
	// Unknown is the half-open range of note counts for which chords that
	// match no quality are labelled with their note count.
	Unknown [2]int
	// Tolerance is the largest difference between note onsets, in ticks,
	// for notes to belong to the same chord.
	Tolerance int
}

// Labels returns every chord label which can be produced with the given maps
// and range of unknown chord sizes.
func Labels(maps map[string][]int, unknown [2]int) []string {
	var ls []string
	for name := range maps {
		ls = append(ls, name)
	}
	sort.Strings(ls)
	for n := unknown[0]; n < unknown[1]; n++ {
		ls = append(ls, strconv.Itoa(n))
	}
	return ls
}

func sameIntervals(x, y []int) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func (o *Options) label(pitches []int) string {
	maps := o.Maps
	if maps == nil {
		maps = DefaultMaps
	}
	ivs := make([]int, len(pitches))
	for i, p := range pitches {
		ivs[i] = p - pitches[0]
	}
	var names []string
	for name := range maps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if sameIntervals(ivs, maps[name]) {
			return name
		}
	}
	if o.Unknown[0] <= len(pitches) && len(pitches) < o.Unknown[1] {
		return strconv.Itoa(len(pitches))
	}
	return ""
}

// Detect returns the chords formed by groups of notes starting together. The
// notes must be sorted by start time. Groups with fewer than three distinct
// pitches are not chords.
func Detect(notes []score.Note, opts Options) []Chord {
	var cs []Chord
	for i := 0; i < len(notes); {
		start := notes[i].Start
		j := i + 1
		for j < len(notes) && notes[j].Start-start <= opts.Tolerance {
			j++
		}
		seen := make(map[int]bool, j-i)
		var pitches []int
		for _, n := range notes[i:j] {
			if !seen[n.Pitch] {
				seen[n.Pitch] = true
				pitches = append(pitches, n.Pitch)
			}
		}
		if len(pitches) >= 3 {
			sort.Ints(pitches)
			if l := opts.label(pitches); l != "" {
				cs = append(cs, Chord{Time: start, Label: l})
			}
		}
		i = j
	}
	return cs
}
