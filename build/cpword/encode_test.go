package cpword

import (
	"testing"

	"moria.us/cptok/build/config"
	"moria.us/cptok/build/score"
	"moria.us/cptok/build/token"
)

var beat = token.Ratio{Beat: 1, Pos: 0, Res: 8}

func TestEncodeGrid(t *testing.T) {
	tk := newTokenizer(t, nil)
	evs := append(note(0, 60, 100, beat, 480), note(480, 64, 100, beat, 480)...)
	seq, err := tk.EncodeTrack(evs, 480)
	if err != nil {
		t.Fatal(err)
	}
	checkLabels(t, seq, []string{
		"[Family_Metric Bar_None Ignore_None Ignore_None Ignore_None]",
		"[Family_Metric Position_0 Ignore_None Ignore_None Ignore_None]",
		"[Family_Note Ignore_None Pitch_60 Velocity_100 Duration_1.0.8]",
		"[Family_Metric Position_8 Ignore_None Ignore_None Ignore_None]",
		"[Family_Note Ignore_None Pitch_64 Velocity_100 Duration_1.0.8]",
	})
	s, err := tk.Decode([][]token.Compound{seq}, nil, 480)
	if err != nil {
		t.Fatal(err)
	}
	want := []score.Note{{Start: 0, End: 480, Pitch: 60, Velocity: 100}, {Start: 480, End: 960, Pitch: 64, Velocity: 100}}
	if len(s.Tracks) != 1 {
		t.Fatalf("got %d tracks, expect 1", len(s.Tracks))
	}
	checkNotes(t, "decoded", s.Tracks[0].Notes, want)
}

func TestEncodeRests(t *testing.T) {
	tk := newTokenizer(t, func(c *config.Config) { c.UseRests = true })
	evs := append(note(0, 60, 100, beat, 480), note(4320, 64, 100, beat, 480)...)
	seq, err := tk.EncodeTrack(evs, 480)
	if err != nil {
		t.Fatal(err)
	}
	checkLabels(t, seq, []string{
		"[Family_Metric Bar_None Ignore_None Ignore_None Ignore_None Ignore_None]",
		"[Family_Metric Position_0 Ignore_None Ignore_None Ignore_None Ignore_None]",
		"[Family_Note Ignore_None Pitch_60 Velocity_100 Duration_1.0.8 Ignore_None]",
		"[Family_Metric Ignore_None Ignore_None Ignore_None Ignore_None Rest_8.0.2]",
		"[Family_Metric Position_8 Ignore_None Ignore_None Ignore_None Ignore_None]",
		"[Family_Note Ignore_None Pitch_64 Velocity_100 Duration_1.0.8 Ignore_None]",
	})

	tm, err := tk.tables.Timing(480)
	if err != nil {
		t.Fatal(err)
	}
	d := tk.newDecoder(tm, token.DefaultTimeSig, true)
	var rests int
	for _, c := range seq {
		d.step(c)
		if r := tk.layout.Get(c, token.Rest); !r.IsAbsent() {
			rests += tm.Ticks(r.Ratio())
			if d.g.bar != 2 || d.g.tickAtBar != 3840 {
				t.Errorf("after rest: bar %d at tick %d, expect bar 2 at tick 3840", d.g.bar, d.g.tickAtBar)
			}
		}
	}
	if rests != 3840 {
		t.Errorf("rests total %d ticks, expect 3840", rests)
	}
	checkNotes(t, "decoded", d.notes[0], []score.Note{{Start: 0, End: 480, Pitch: 60, Velocity: 100}, {Start: 4320, End: 4800, Pitch: 64, Velocity: 100}})
}

func TestEncodeLeadingRest(t *testing.T) {
	tk := newTokenizer(t, func(c *config.Config) { c.UseRests = true })
	long := token.Ratio{Beat: 8, Pos: 0, Res: 4}
	evs := append(note(240, 60, 100, long, 480), note(2400, 64, 100, beat, 480)...)
	seq, err := tk.EncodeTrack(evs, 480)
	if err != nil {
		t.Fatal(err)
	}
	// The first bar is entered by the rest, so only the second bar has a
	// Bar token.
	checkLabels(t, seq, []string{
		"[Family_Metric Ignore_None Ignore_None Ignore_None Ignore_None Rest_0.4.8]",
		"[Family_Metric Position_4 Ignore_None Ignore_None Ignore_None Ignore_None]",
		"[Family_Note Ignore_None Pitch_60 Velocity_100 Duration_8.0.4 Ignore_None]",
		"[Family_Metric Bar_None Ignore_None Ignore_None Ignore_None Ignore_None]",
		"[Family_Metric Position_8 Ignore_None Ignore_None Ignore_None Ignore_None]",
		"[Family_Note Ignore_None Pitch_64 Velocity_100 Duration_1.0.8 Ignore_None]",
	})
	s, err := tk.Decode([][]token.Compound{seq}, nil, 480)
	if err != nil {
		t.Fatal(err)
	}
	checkNotes(t, "decoded", s.Tracks[0].Notes, []score.Note{{Start: 240, End: 4080, Pitch: 60, Velocity: 100}, {Start: 2400, End: 2880, Pitch: 64, Velocity: 100}})

	// A rest longer than a bar moves past it without a Bar token.
	evs = note(4320, 60, 100, beat, 480)
	seq, err = tk.EncodeTrack(evs, 480)
	if err != nil {
		t.Fatal(err)
	}
	checkLabels(t, seq, []string{
		"[Family_Metric Ignore_None Ignore_None Ignore_None Ignore_None Rest_9.0.2]",
		"[Family_Metric Position_8 Ignore_None Ignore_None Ignore_None Ignore_None]",
		"[Family_Note Ignore_None Pitch_60 Velocity_100 Duration_1.0.8 Ignore_None]",
	})
	s, err = tk.Decode([][]token.Compound{seq}, nil, 480)
	if err != nil {
		t.Fatal(err)
	}
	checkNotes(t, "decoded", s.Tracks[0].Notes, []score.Note{{Start: 4320, End: 4800, Pitch: 60, Velocity: 100}})
}

func TestEncodeShortRest(t *testing.T) {
	tk := newTokenizer(t, func(c *config.Config) {
		c.UseRests = true
		c.MinRestTicks = 960
	})
	// A gap of one beat is shorter than the minimum rest, so the second
	// note gets a Position instead.
	evs := append(note(0, 60, 100, beat, 480), note(960, 64, 100, beat, 480)...)
	seq, err := tk.EncodeTrack(evs, 480)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range seq {
		if !tk.layout.Get(c, token.Rest).IsAbsent() {
			t.Errorf("token %d is a rest: %s", i, c)
		}
	}
	if len(seq) != 5 || tk.layout.Get(seq[3], token.Position).Int() != 16 {
		t.Errorf("sequence = %v", labels(seq))
	}
}

func TestEncodeTruncated(t *testing.T) {
	tk := newTokenizer(t, nil)
	evs := append(note(0, 60, 100, beat, 480), note(480, 64, 100, beat, 480)[:2]...)
	seq, err := tk.EncodeTrack(evs, 480)
	if err != nil {
		t.Fatal(err)
	}
	var notes int
	for _, c := range seq {
		if c.IsNote() {
			notes++
		}
	}
	if notes != 1 {
		t.Errorf("got %d notes, expect 1: %v", notes, labels(seq))
	}
}

func TestEncodeTimeSig(t *testing.T) {
	tk := newTokenizer(t, func(c *config.Config) { c.UseTimeSignatures = true })
	evs := []Event{{Time: 0, Field: token.SigField(token.TimeSig{Num: 3, Den: 4})}}
	evs = append(evs, note(0, 60, 100, beat, 480)...)
	evs = append(evs, Event{Time: 1440, Field: token.SigField(token.TimeSig{Num: 6, Den: 8})})
	evs = append(evs, note(1440, 62, 100, beat, 480)...)
	seq, err := tk.EncodeTrack(evs, 480)
	if err != nil {
		t.Fatal(err)
	}
	checkLabels(t, seq, []string{
		"[Family_Metric Bar_None Ignore_None Ignore_None Ignore_None TimeSig_3/4]",
		"[Family_Metric Position_0 Ignore_None Ignore_None Ignore_None Ignore_None]",
		"[Family_Note Ignore_None Pitch_60 Velocity_100 Duration_1.0.8 Ignore_None]",
		"[Family_Metric Bar_None Ignore_None Ignore_None Ignore_None TimeSig_6/8]",
		"[Family_Metric Position_0 Ignore_None Ignore_None Ignore_None Ignore_None]",
		"[Family_Note Ignore_None Pitch_62 Velocity_100 Duration_1.0.8 Ignore_None]",
	})
}

func TestEncodeBadDivision(t *testing.T) {
	tk := newTokenizer(t, nil)
	if _, err := tk.EncodeTrack(nil, 100); err == nil {
		t.Error("EncodeTrack accepted division 100")
	}
	s := parseScore(t, testScore)
	s.Division = 0
	if _, err := tk.Encode(s); err == nil {
		t.Error("Encode accepted division 0")
	}
}

func TestEvents(t *testing.T) {
	tk := newTokenizer(t, func(c *config.Config) {
		c.UseChords = true
		c.UseTempos = true
		c.UseTimeSignatures = true
	})
	s := parseScore(t, testScore)
	streams, err := tk.Events(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(streams) != 2 {
		t.Fatalf("got %d streams, expect 2", len(streams))
	}
	if p := streams[1].Program; p.Program != 33 || p.IsDrum {
		t.Errorf("stream 1 program = %+v", p)
	}
	evs := streams[0].Events
	for i := 1; i < len(evs); i++ {
		x, y := evs[i-1], evs[i]
		if x.Time > y.Time || x.Time == y.Time && rank(x.Kind()) > rank(y.Kind()) {
			t.Errorf("event %d (%v) after %v", i, y, x)
		}
	}
	var kinds []token.Kind
	for _, e := range evs {
		if e.Time == 1920 {
			kinds = append(kinds, e.Kind())
		}
	}
	if len(kinds) == 0 || kinds[0] != token.Chord {
		t.Errorf("events at 1920 = %v, expect chord first", kinds)
	}
	var sigs, tempos int
	for _, e := range evs {
		switch e.Kind() {
		case token.TimeSigKind:
			sigs++
		case token.Tempo:
			tempos++
			if e.Time == 0 && e.Field.Tempo() != tk.tables.NearestTempo(96) {
				t.Errorf("tempo at 0 = %v", e.Field.Tempo())
			}
		}
	}
	if sigs != 2 || tempos != 2 {
		t.Errorf("got %d time signatures and %d tempos, expect 2 and 2", sigs, tempos)
	}
}

func TestQuantize(t *testing.T) {
	tk := newTokenizer(t, nil)
	tm, err := tk.tables.Timing(480)
	if err != nil {
		t.Fatal(err)
	}
	in := []score.Note{
		{Start: 29, End: 500, Pitch: 60, Velocity: 100},
		{Start: 31, End: 40, Pitch: 62, Velocity: 1},
		{Start: 0, End: 480, Pitch: 60, Velocity: 64},
		{Start: 0, End: 480, Pitch: 10, Velocity: 64},
	}
	want := []score.Note{
		{Start: 0, End: 480, Pitch: 60, Velocity: 99},
		{Start: 60, End: 120, Pitch: 62, Velocity: 3},
	}
	checkNotes(t, "quantizeNotes", tk.quantizeNotes(in, tm), want)
}

func TestOneStream(t *testing.T) {
	tk := newTokenizer(t, func(c *config.Config) { c.UsePrograms = true })
	s := parseScore(t, testScore)
	s.Tracks = append(s.Tracks, &score.Track{
		Name:   "drums",
		IsDrum: true,
		Notes:  []score.Note{{Start: 0, End: 240, Pitch: 36, Velocity: 127}},
	})
	seqs, err := tk.Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(seqs) != 1 {
		t.Fatalf("got %d sequences, expect 1", len(seqs))
	}
	programs := make(map[int]int)
	for _, c := range seqs[0] {
		if c.IsNote() {
			programs[tk.layout.Get(c, token.Program).Int()]++
		}
	}
	if programs[0] != 9 || programs[33] != 2 || programs[-1] != 1 {
		t.Errorf("notes by program = %v", programs)
	}
	if tk.Programs(s) != nil {
		t.Error("Programs returned programs for one token stream")
	}
}
