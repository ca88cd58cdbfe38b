package cpword

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"moria.us/cptok/build/chord"
	"moria.us/cptok/build/config"
	"moria.us/cptok/build/score"
	"moria.us/cptok/build/token"
)

// An Event is a timed element of a track, before segmentation. Pitch,
// Velocity, and Duration events at the same time, optionally preceded by a
// Program event, describe one note.
type Event struct {
	Time  int
	Field token.Field
	End   int // note end, for Pitch events
}

// Kind returns the type of the event.
func (e Event) Kind() token.Kind { return e.Field.Kind() }

func (e Event) String() string {
	return fmt.Sprintf("%d:%s", e.Time, e.Field.Label())
}

// A Program identifies the instrument of a track.
type Program struct {
	Program int
	IsDrum  bool
}

// programOf returns the program of a track, as stored in Program fields.
func programOf(tr *score.Track) int {
	if tr.IsDrum {
		return -1
	}
	return tr.Program
}

// A Stream is the event stream of one token sequence.
type Stream struct {
	Program
	Events []Event
}

// rank orders events at the same time.
func rank(k token.Kind) int {
	switch k {
	case token.TimeSigKind:
		return 0
	case token.Tempo:
		return 1
	case token.Chord:
		return 2
	}
	return 3
}

func sortEvents(evs []Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		x, y := evs[i], evs[j]
		if x.Time != y.Time {
			return x.Time < y.Time
		}
		return rank(x.Kind()) < rank(y.Kind())
	})
}

// snap rounds a tick to the nearest multiple of the sample length.
func snap(tick, sample int) int {
	return (tick + sample/2) / sample * sample
}

// Events returns the event streams for a score: one per track, or a single
// stream if the tokenizer uses one token stream. Notes, tempos, and time
// signatures are first quantized to the vocabulary.
func (t *Tokenizer) Events(s *score.Score) ([]Stream, error) {
	tm, err := t.tables.Timing(s.Division)
	if err != nil {
		return nil, err
	}
	return t.events(s, tm), nil
}

func (t *Tokenizer) events(s *score.Score, tm *config.Timing) []Stream {
	global := t.globalEvents(s, tm)
	if t.OneTokenStream() {
		evs := append([]Event(nil), global...)
		for _, tr := range s.Tracks {
			if !t.hasProgram(programOf(tr)) {
				logrus.WithField("track", tr.Name).Warnf("dropping track with program %d", programOf(tr))
				continue
			}
			evs = t.trackEvents(evs, tr, tm)
		}
		sortEvents(evs)
		return []Stream{{Events: evs}}
	}
	streams := make([]Stream, 0, len(s.Tracks))
	for _, tr := range s.Tracks {
		evs := t.trackEvents(append([]Event(nil), global...), tr, tm)
		sortEvents(evs)
		streams = append(streams, Stream{
			Program: Program{Program: tr.Program, IsDrum: tr.IsDrum},
			Events:  evs,
		})
	}
	return streams
}

func (t *Tokenizer) hasProgram(p int) bool {
	for _, x := range t.tables.Programs {
		if x == p {
			return true
		}
	}
	return false
}

// globalEvents returns the time signature and tempo events shared by every
// track.
func (t *Tokenizer) globalEvents(s *score.Score, tm *config.Timing) []Event {
	var evs []Event
	if t.cfg.UseTimeSignatures {
		var sigs []score.TimeSignature
		for _, ts := range score.SortTimeSignatures(append([]score.TimeSignature(nil), s.TimeSignatures...)) {
			if !t.tables.HasTimeSig(ts.TimeSig) {
				logrus.WithField("time", ts.Time).Warnf("dropping time signature %s", ts.TimeSig)
				continue
			}
			ts.Time = snap(ts.Time, tm.TicksPerSample)
			sigs = appendSig(sigs, ts)
		}
		for _, ts := range sigs {
			evs = append(evs, Event{Time: ts.Time, Field: token.SigField(ts.TimeSig)})
		}
	}
	if t.cfg.UseTempos {
		tempos := score.SortTempos(append([]score.TempoChange(nil), s.Tempos...))
		if len(tempos) == 0 || tempos[0].Time > 0 {
			tempos = append([]score.TempoChange{{Time: 0, Tempo: config.DefaultTempo}}, tempos...)
		}
		var q []score.TempoChange
		for _, tc := range tempos {
			q = appendTempo(q, score.TempoChange{
				Time:  snap(tc.Time, tm.TicksPerSample),
				Tempo: t.tables.NearestTempo(tc.Tempo),
			})
		}
		for _, tc := range q {
			evs = append(evs, Event{Time: tc.Time, Field: token.TempoField(tc.Tempo)})
		}
	}
	return evs
}

// appendSig appends a time signature change, replacing a change at the same
// time and skipping repeats.
func appendSig(sigs []score.TimeSignature, ts score.TimeSignature) []score.TimeSignature {
	if n := len(sigs); n > 0 && sigs[n-1].Time == ts.Time {
		sigs = sigs[:n-1]
	}
	if n := len(sigs); n > 0 && sigs[n-1].TimeSig == ts.TimeSig {
		return sigs
	}
	return append(sigs, ts)
}

// appendTempo is appendSig for tempo changes.
func appendTempo(ts []score.TempoChange, tc score.TempoChange) []score.TempoChange {
	if n := len(ts); n > 0 && ts[n-1].Time == tc.Time {
		ts = ts[:n-1]
	}
	if n := len(ts); n > 0 && ts[n-1].Tempo == tc.Tempo {
		return ts
	}
	return append(ts, tc)
}

// quantizeNotes returns the notes of a track in the vocabulary, sorted. Each
// note starts on the sample grid and lasts for a duration value.
func (t *Tokenizer) quantizeNotes(ns []score.Note, tm *config.Timing) []score.Note {
	q := make([]score.Note, 0, len(ns))
	for _, n := range ns {
		if !t.tables.InPitchRange(n.Pitch) {
			continue
		}
		start := snap(n.Start, tm.TicksPerSample)
		q = append(q, score.Note{
			Start:    start,
			End:      start + tm.Ticks(tm.NearestDuration(n.End-n.Start)),
			Pitch:    n.Pitch,
			Velocity: t.tables.NearestVelocity(n.Velocity),
		})
	}
	score.SortNotes(q)
	out := q[:0]
	for _, n := range q {
		if k := len(out); k > 0 && out[k-1].Start == n.Start && out[k-1].Pitch == n.Pitch {
			continue
		}
		out = append(out, n)
	}
	return out
}

// trackEvents appends the chord and note events of a track.
func (t *Tokenizer) trackEvents(evs []Event, tr *score.Track, tm *config.Timing) []Event {
	notes := t.quantizeNotes(tr.Notes, tm)
	if t.cfg.UseChords && !tr.IsDrum {
		opts := chord.Options{
			Maps:    t.cfg.ChordMaps,
			Unknown: t.cfg.ChordUnknown,
		}
		if opts.Maps == nil {
			opts.Maps = chord.DefaultMaps
		}
		for _, c := range chord.Detect(notes, opts) {
			evs = append(evs, Event{Time: c.Time, Field: token.ChordField(c.Label)})
		}
	}
	program := programOf(tr)
	for _, n := range notes {
		if t.cfg.UsePrograms {
			evs = append(evs, Event{Time: n.Start, Field: token.IntField(token.Program, program)})
		}
		evs = append(evs,
			Event{Time: n.Start, Field: token.IntField(token.Pitch, n.Pitch), End: n.End},
			Event{Time: n.Start, Field: token.IntField(token.Velocity, n.Velocity)},
			Event{Time: n.Start, Field: token.RatioField(token.Duration, tm.NearestDuration(n.Duration()))},
		)
	}
	return evs
}
