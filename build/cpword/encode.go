package cpword

import (
	"sync"

	"moria.us/cptok/build/config"
	"moria.us/cptok/build/score"
	"moria.us/cptok/build/token"
)

// Encode converts a score into token sequences: one per track, or a single
// sequence if the tokenizer uses one token stream. Tracks are encoded
// concurrently.
func (t *Tokenizer) Encode(s *score.Score) ([][]token.Compound, error) {
	tm, err := t.tables.Timing(s.Division)
	if err != nil {
		return nil, err
	}
	streams := t.events(s, tm)
	seqs := make([][]token.Compound, len(streams))
	var wg sync.WaitGroup
	for i, st := range streams {
		wg.Add(1)
		go func(i int, evs []Event) {
			defer wg.Done()
			seqs[i] = t.segment(evs, tm)
		}(i, st.Events)
	}
	wg.Wait()
	return seqs, nil
}

// Programs returns the program of each sequence Encode produces for the
// score. It is nil if the tokenizer uses one token stream.
func (t *Tokenizer) Programs(s *score.Score) []Program {
	if t.OneTokenStream() {
		return nil
	}
	ps := make([]Program, len(s.Tracks))
	for i, tr := range s.Tracks {
		ps[i] = Program{Program: tr.Program, IsDrum: tr.IsDrum}
	}
	return ps
}

// EncodeTrack segments a time-ordered event stream into compound tokens. The
// events must be sorted by time, with global events before notes at the same
// time, as returned by Events.
func (t *Tokenizer) EncodeTrack(events []Event, division int) ([]token.Compound, error) {
	tm, err := t.tables.Timing(division)
	if err != nil {
		return nil, err
	}
	return t.segment(events, tm), nil
}

// initialState returns the grid state at the start of a stream, taking the
// time signature and tempo from global events at tick 0.
func (t *Tokenizer) initialState(events []Event, tm *config.Timing) *gridState {
	sig := token.DefaultTimeSig
	tempo := t.tables.DefaultTempo()
	f := t.layout.Features()
	for _, e := range events {
		if e.Time > 0 {
			break
		}
		switch e.Kind() {
		case token.TimeSigKind:
			if f.TimeSignatures {
				sig = e.Field.Sig()
			}
		case token.Tempo:
			if f.Tempos {
				tempo = e.Field.Tempo()
			}
		case token.Pitch, token.Velocity, token.Duration:
			return newGridState(tm, sig, tempo)
		}
	}
	return newGridState(tm, sig, tempo)
}

func (t *Tokenizer) segment(events []Event, tm *config.Timing) []token.Compound {
	l := t.layout
	f := l.Features()
	g := t.initialState(events, tm)
	var out []token.Compound
	for i, e := range events {
		switch e.Kind() {
		case token.Tempo:
			g.tempo = e.Field.Tempo()
		case token.Program:
			g.program = e.Field.Int()
			continue
		}

		if e.Time != g.prevTick {
			// Rests fill the gap since the last note ended.
			if f.Rests && e.Time-g.prevNoteEnd >= tm.MinRest() {
				g.prevTick = g.prevNoteEnd
				for _, r := range tm.RestValues(e.Time - g.prevTick) {
					out = append(out, l.Rest(r))
					g.prevTick += tm.Ticks(r)
				}
				g.catchUp(g.prevTick)
			}

			if n := g.barAt(e.Time) - g.bar; n > 0 {
				for j := 0; j < n; j++ {
					sig := g.sig
					if j == n-1 && e.Kind() == token.TimeSigKind {
						sig = e.Field.Sig()
					}
					out = append(out, l.Bar(sig))
				}
				g.advanceBars(n)
			}

			if e.Kind() != token.TimeSigKind {
				var chord string
				if e.Kind() == token.Chord {
					chord = e.Field.Text()
				}
				var tempo float64
				if f.Tempos {
					tempo = g.tempo
				}
				pos := (e.Time - g.tickAtBar) / tm.TicksPerSample
				out = append(out, l.Position(pos, chord, tempo))
			}
			g.prevTick = e.Time
		}

		switch e.Kind() {
		case token.TimeSigKind:
			g.changeSigAt(e.Time, e.Field.Sig())
			// The next event at this time still needs a Position.
			g.prevTick--
			g.noteEnd(e.Time)
		case token.Pitch:
			if i+2 < len(events) &&
				events[i+1].Kind() == token.Velocity &&
				events[i+2].Kind() == token.Duration {
				out = append(out, l.Note(
					e.Field.Int(),
					events[i+1].Field.Int(),
					events[i+2].Field.Ratio(),
					g.program))
				g.noteEnd(e.End)
			}
		case token.Tempo, token.Chord:
			g.noteEnd(e.Time)
		}
	}
	return out
}
