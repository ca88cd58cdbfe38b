package cpword

import (
	"errors"
	"testing"

	"moria.us/cptok/build/config"
	"moria.us/cptok/build/token"
)

func TestGraph(t *testing.T) {
	type testcase struct {
		f        token.Features
		from, to token.Kind
		allowed  bool
	}
	cases := []testcase{
		{token.Features{}, token.Bar, token.Position, true},
		{token.Features{}, token.Bar, token.Pitch, false},
		{token.Features{}, token.Position, token.Position, false},
		{token.Features{}, token.Pitch, token.Rest, false},
		{token.Features{}, token.Ignore, token.Pitch, true},
		{token.Features{}, token.Pitch, token.Ignore, true},
		{token.Features{}, token.Ignore, token.Ignore, true},
		{token.Features{Chords: true}, token.Pitch, token.Rest, true},
		{token.Features{Chords: true}, token.Rest, token.Bar, false},
		{token.Features{Rests: true}, token.Rest, token.Bar, true},
		{token.Features{Rests: true}, token.Position, token.Rest, false},
		{token.Features{Tempos: true}, token.Position, token.Bar, true},
		{token.Features{Tempos: true, Rests: true}, token.Position, token.Rest, true},
		{token.Features{Tempos: true}, token.Rest, token.Position, false},
		{token.Features{Rests: true}, padKind, token.Bar, false},
		{token.Features{Rests: true}, token.Bar, padKind, false},
		{token.Features{TimeSignatures: true}, token.Bar, token.TimeSigKind, false},
	}
	for _, c := range cases {
		g := NewGraph(c.f)
		if a := g.Allowed(c.from, c.to); a != c.allowed {
			t.Errorf("%+v: Allowed(%v, %v) = %t, expect %t", c.f, c.from, c.to, a, c.allowed)
		}
	}
	g := NewGraph(token.Features{})
	states := g.States()
	if len(states) != 4 {
		t.Errorf("States() = %v, expect 4 states", states)
	}
	if next := g.Next(token.Ignore); len(next) != len(states) {
		t.Errorf("Next(Ignore) = %v, expect %v", next, states)
	}
}

func TestErrorsEncoded(t *testing.T) {
	for _, c := range configs {
		t.Run(c.name, func(t *testing.T) {
			tk := newTokenizer(t, c.mod)
			seqs, err := tk.Encode(parseScore(t, testScore))
			if err != nil {
				t.Fatal(err)
			}
			scores, err := tk.ErrorsAll(seqs)
			if err != nil {
				t.Fatal(err)
			}
			for i, e := range scores {
				if e != 0 {
					t.Errorf("sequence %d: error ratio %v, expect 0", i, e)
				}
			}
		})
	}
}

func TestErrorsSwappedPositions(t *testing.T) {
	tk := newTokenizer(t, nil)
	seqs, err := tk.Encode(parseScore(t, testScore))
	if err != nil {
		t.Fatal(err)
	}
	seq := append([]token.Compound(nil), seqs[0]...)
	// Swap the first two Positions in a bar.
	var first = -1
	for i, c := range seq {
		if !tk.layout.Get(c, token.Bar).IsAbsent() {
			first = -1
			continue
		}
		if tk.layout.Get(c, token.Position).IsAbsent() {
			continue
		}
		if first < 0 {
			first = i
			continue
		}
		seq[first], seq[i] = seq[i], seq[first]
		break
	}
	e, err := tk.Errors(seq)
	if err != nil {
		t.Fatal(err)
	}
	if e <= 0 {
		t.Errorf("error ratio %v after swapping positions, expect > 0", e)
	}
}

func TestErrors(t *testing.T) {
	tk := newTokenizer(t, func(c *config.Config) { c.UseRests = true })
	l := tk.layout
	bar := l.Bar(token.DefaultTimeSig)
	pos := func(p int) token.Compound { return l.Position(p, "", 0) }
	n := func(p int) token.Compound { return l.Note(p, 100, beat, 0) }
	rest := l.Rest(token.Ratio{Beat: 1, Pos: 0, Res: 4})
	pad := make(token.Compound, l.Width())

	type testcase struct {
		name  string
		seq   []token.Compound
		ratio float64
	}
	cases := []testcase{
		{"empty", nil, 0},
		{"valid", []token.Compound{bar, pos(0), n(60), n(64), pos(4), n(60), rest, pos(2), n(60)}, 0},
		{"repeated pitch", []token.Compound{bar, pos(0), n(60), n(60)}, 0.25},
		{"position backward", []token.Compound{bar, pos(4), n(60), pos(2), n(62)}, 0.2},
		{"bad transition", []token.Compound{bar, n(60), pos(0), n(60)}, 0.25},
		{"padding", []token.Compound{bar, pos(0), n(60), pad, pad}, 0.4},
		{"after bar", []token.Compound{bar, pos(4), n(60), bar, pos(2), n(60)}, 0},
	}
	for _, c := range cases {
		e, err := tk.Errors(c.seq)
		if err != nil {
			t.Errorf("%s: %v", c.name, err)
			continue
		}
		if e != c.ratio {
			t.Errorf("%s: error ratio %v, expect %v", c.name, e, c.ratio)
		}
	}
}

func TestErrorsClassify(t *testing.T) {
	tk := newTokenizer(t, nil)
	l := tk.layout
	empty := l.Position(0, "", 0)
	empty[token.MetricSlot] = token.Absent()
	seq := []token.Compound{l.Bar(token.DefaultTimeSig), empty}
	_, err := tk.Errors(seq)
	var e *ClassifyError
	if !errors.As(err, &e) {
		t.Fatalf("Errors: %v, expect *ClassifyError", err)
	}
	if e.Index != 1 {
		t.Errorf("ClassifyError.Index = %d, expect 1", e.Index)
	}
	if _, err := tk.ErrorsAll([][]token.Compound{nil, seq}); !errors.As(err, &e) {
		t.Errorf("ErrorsAll: %v, expect *ClassifyError", err)
	}
	if _, err := tk.Errors([]token.Compound{seq[0][:2]}); err == nil {
		t.Error("Errors accepted short token")
	}
}

func TestRejected(t *testing.T) {
	tk := newTokenizer(t, nil)
	l := tk.layout
	bar := l.Bar(token.DefaultTimeSig)
	pos := func(p int) token.Compound { return l.Position(p, "", 0) }
	n := func(p int) token.Compound { return l.Note(p, 100, beat, 0) }
	seq := []token.Compound{bar, pos(4), n(60), pos(2), n(62), n(62)}
	bad, err := tk.Rejected(seq)
	if err != nil {
		t.Fatal(err)
	}
	expect := []bool{false, false, false, true, false, true}
	if len(bad) != len(expect) {
		t.Fatalf("Rejected: got %d marks, expect %d", len(bad), len(expect))
	}
	for i := range expect {
		if bad[i] != expect[i] {
			t.Errorf("Rejected[%d] = %t, expect %t", i, bad[i], expect[i])
		}
	}
	if bad, err := tk.Rejected(nil); err != nil || len(bad) != 0 {
		t.Errorf("Rejected(nil) = %v, %v (expect empty)", bad, err)
	}
}
