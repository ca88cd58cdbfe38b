package cpword

import (
	"fmt"
	"sync"

	"moria.us/cptok/build/config"
	"moria.us/cptok/build/score"
	"moria.us/cptok/build/token"
)

// A decoder rebuilds absolute times from one token sequence.
type decoder struct {
	layout token.Layout
	tm     *config.Timing
	g      *gridState
	tick   int

	// Only the designated sequence records tempo and time signature
	// changes.
	record bool
	tempos []score.TempoChange
	sigs   []score.TimeSignature

	notes    map[int][]score.Note
	programs []int // in order of first note
}

func (t *Tokenizer) newDecoder(tm *config.Timing, sig token.TimeSig, record bool) *decoder {
	d := decoder{
		layout: t.layout,
		tm:     tm,
		g:      newGridState(tm, sig, config.DefaultTempo),
		record: record,
		notes:  make(map[int][]score.Note),
	}
	if record {
		// The first tempo is moved to tick 0 when decoding finishes.
		d.tempos = []score.TempoChange{{Time: -1, Tempo: config.DefaultTempo}}
		d.sigs = []score.TimeSignature{{Time: 0, TimeSig: sig}}
	}
	return &d
}

// step consumes one token.
func (d *decoder) step(c token.Compound) {
	l := d.layout
	f := l.Features()
	g := d.g
	if c.IsNote() {
		pitch := l.Get(c, token.Pitch)
		vel := l.Get(c, token.Velocity)
		dur := l.Get(c, token.Duration)
		if pitch.IsAbsent() || vel.IsAbsent() || dur.IsAbsent() {
			return
		}
		var program int
		if f.Programs {
			p := l.Get(c, token.Program)
			if p.IsAbsent() {
				return
			}
			program = p.Int()
		}
		end := d.tick + d.tm.Ticks(dur.Ratio())
		if _, ok := d.notes[program]; !ok {
			d.programs = append(d.programs, program)
		}
		d.notes[program] = append(d.notes[program], score.Note{
			Start:    d.tick,
			End:      end,
			Pitch:    pitch.Int(),
			Velocity: vel.Int(),
		})
		g.noteEnd(end)
		return
	}
	if len(c) == 0 || c[token.FamilySlot].Text() != token.FamilyMetric {
		return
	}

	if bar := l.Get(c, token.Bar); !bar.IsAbsent() {
		g.bar++
		if g.bar > 0 {
			d.tick = g.tickAtBar + g.ticksPerBar
		}
		g.tickAtBar = d.tick
		if f.TimeSignatures {
			if sf := l.Get(c, token.TimeSigKind); !sf.IsAbsent() && sf.Sig() != g.sig {
				g.changeSigAtBar(sf.Sig())
				if d.record {
					d.sigs = append(d.sigs, score.TimeSignature{Time: d.tick, TimeSig: sf.Sig()})
				}
			}
		}
	} else if pos := l.Get(c, token.Position); !pos.IsAbsent() {
		if g.bar == -1 {
			g.bar = 0
		}
		d.tick = g.tickAtBar + pos.Int()*d.tm.TicksPerSample
		if f.Tempos && d.record {
			if tf := l.Get(c, token.Tempo); !tf.IsAbsent() {
				last := d.tempos[len(d.tempos)-1]
				if tf.Tempo() != last.Tempo && d.tick != last.Time {
					d.tempos = append(d.tempos, score.TempoChange{Time: d.tick, Tempo: tf.Tempo()})
				}
			}
		}
	} else if f.Rests {
		if rf := l.Get(c, token.Rest); !rf.IsAbsent() {
			if g.prevNoteEnd > d.tick {
				d.tick = g.prevNoteEnd
			}
			d.tick += d.tm.Ticks(rf.Ratio())
			g.catchUp(d.tick)
		}
	}
	g.noteEnd(d.tick)
}

// finishTempos returns the recorded tempo changes, starting at tick 0.
func (d *decoder) finishTempos() []score.TempoChange {
	ts := d.tempos
	if len(ts) > 1 {
		ts = ts[1:]
	}
	ts[0].Time = 0
	return ts
}

// initialSig returns the time signature of the first Bar token before any
// note.
func (t *Tokenizer) initialSig(seq []token.Compound) token.TimeSig {
	if !t.layout.Features().TimeSignatures {
		return token.DefaultTimeSig
	}
	for _, c := range seq {
		if c.IsNote() {
			break
		}
		if t.layout.Get(c, token.Bar).IsAbsent() {
			continue
		}
		if sf := t.layout.Get(c, token.TimeSigKind); !sf.IsAbsent() {
			return sf.Sig()
		}
		break
	}
	return token.DefaultTimeSig
}

// Decode converts token sequences back into a score. With one token stream,
// seqs must hold a single sequence and tracks are formed by program.
// Otherwise each sequence is a track, with its program taken from programs if
// given. Tempo and time signature changes come from the first sequence only.
// A division of 0 selects the configured division.
func (t *Tokenizer) Decode(seqs [][]token.Compound, programs []Program, division int) (*score.Score, error) {
	if division == 0 {
		division = t.cfg.TimeDivision
	}
	tm, err := t.tables.Timing(division)
	if err != nil {
		return nil, err
	}
	if t.OneTokenStream() && len(seqs) > 1 {
		return nil, fmt.Errorf("one token stream expected, got %d sequences", len(seqs))
	}
	if programs != nil && len(programs) != len(seqs) {
		return nil, fmt.Errorf("got %d programs for %d sequences", len(programs), len(seqs))
	}
	for i, seq := range seqs {
		for j, c := range seq {
			if err := t.layout.Check(c); err != nil {
				return nil, fmt.Errorf("sequence %d, token %d: %v", i, j, err)
			}
		}
	}

	s := score.Score{Division: division}
	if len(seqs) == 0 {
		s.Tempos = []score.TempoChange{{Time: 0, Tempo: config.DefaultTempo}}
		s.TimeSignatures = []score.TimeSignature{{Time: 0, TimeSig: token.DefaultTimeSig}}
		return &s, nil
	}

	sig := t.initialSig(seqs[0])
	decs := make([]*decoder, len(seqs))
	decs[0] = t.newDecoder(tm, sig, true)
	for _, c := range seqs[0] {
		decs[0].step(c)
	}
	var wg sync.WaitGroup
	for i := 1; i < len(seqs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := t.newDecoder(tm, sig, false)
			for _, c := range seqs[i] {
				d.step(c)
			}
			decs[i] = d
		}(i)
	}
	wg.Wait()

	s.Tempos = decs[0].finishTempos()
	s.TimeSignatures = decs[0].sigs
	if t.OneTokenStream() {
		d := decs[0]
		for _, p := range d.programs {
			tr := score.Track{Program: p, Notes: d.notes[p]}
			if p < 0 {
				tr.Program = 0
				tr.IsDrum = true
			}
			s.Tracks = append(s.Tracks, &tr)
		}
		return &s, nil
	}
	for i, d := range decs {
		tr := score.Track{Notes: d.notes[0]}
		if programs != nil {
			tr.Program = programs[i].Program
			tr.IsDrum = programs[i].IsDrum
		}
		s.Tracks = append(s.Tracks, &tr)
	}
	return &s, nil
}
