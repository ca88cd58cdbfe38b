package midi

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"moria.us/cptok/build/score"
	"moria.us/cptok/build/token"
)

func testScore() *score.Score {
	return &score.Score{
		Division: 480,
		Tracks: []*score.Track{
			{
				Name:    "piano",
				Program: 0,
				Notes: []score.Note{
					{Start: 0, End: 480, Pitch: 60, Velocity: 100},
					{Start: 480, End: 960, Pitch: 60, Velocity: 90},
					{Start: 480, End: 1440, Pitch: 64, Velocity: 80},
				},
			},
			{
				Name:   "drums",
				IsDrum: true,
				Notes:  []score.Note{{Start: 0, End: 120, Pitch: 36, Velocity: 127}},
			},
			{
				Name:    "bass",
				Program: 33,
				Notes:   []score.Note{{Start: 960, End: 1920, Pitch: 40, Velocity: 70}},
			},
		},
		Tempos: []score.TempoChange{{Time: 0, Tempo: 96}, {Time: 1920, Tempo: 120}},
		TimeSignatures: []score.TimeSignature{
			{Time: 0, TimeSig: token.TimeSig{Num: 4, Den: 4}},
			{Time: 1920, TimeSig: token.TimeSig{Num: 6, Den: 8}},
		},
	}
}

func TestWriteRead(t *testing.T) {
	in := testScore()
	var buf bytes.Buffer
	if err := Write(&buf, in); err != nil {
		t.Fatal(err)
	}
	out, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if out.Division != 480 {
		t.Errorf("Division = %d, expect 480", out.Division)
	}
	if len(out.Tracks) != len(in.Tracks) {
		t.Fatalf("got %d tracks, expect %d", len(out.Tracks), len(in.Tracks))
	}
	for i, want := range in.Tracks {
		got := out.Tracks[i]
		if got.Name != want.Name || got.Program != want.Program || got.IsDrum != want.IsDrum {
			t.Errorf("track %d = %q program %d drum %t, expect %q %d %t",
				i, got.Name, got.Program, got.IsDrum, want.Name, want.Program, want.IsDrum)
		}
		if len(got.Notes) != len(want.Notes) {
			t.Errorf("track %d: notes = %v, expect %v", i, got.Notes, want.Notes)
			continue
		}
		for j, n := range want.Notes {
			if got.Notes[j] != n {
				t.Errorf("track %d note %d = %+v, expect %+v", i, j, got.Notes[j], n)
			}
		}
	}
	if len(out.Tempos) != 2 || out.Tempos[0] != in.Tempos[0] || out.Tempos[1] != in.Tempos[1] {
		t.Errorf("Tempos = %v, expect %v", out.Tempos, in.Tempos)
	}
	if len(out.TimeSignatures) != 2 || out.TimeSignatures[1] != in.TimeSignatures[1] {
		t.Errorf("TimeSignatures = %v, expect %v", out.TimeSignatures, in.TimeSignatures)
	}
}

func TestWriteFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "test.mid")
	if err := WriteFile(name, testScore()); err != nil {
		t.Fatal(err)
	}
	s, err := ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	if n := s.MaxTick(); n != 1920 {
		t.Errorf("MaxTick = %d, expect 1920", n)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.mid")); err == nil {
		t.Error("ReadFile succeeded for missing file")
	}
}

func TestWriteErrors(t *testing.T) {
	s := testScore()
	s.Division = 0
	if err := Write(&bytes.Buffer{}, s); !errors.Is(err, errDivision) {
		t.Errorf("Write with division 0: %v", err)
	}
	s = testScore()
	for i := 0; i < 16; i++ {
		s.Tracks = append(s.Tracks, &score.Track{Program: i})
	}
	if err := Write(&bytes.Buffer{}, s); !errors.Is(err, errTooMany) {
		t.Errorf("Write with 19 tracks: %v", err)
	}
}

func TestTextString(t *testing.T) {
	type testcase struct {
		in, out string
	}
	cases := []testcase{
		{"Piano", "Piano"},
		{"Café", "Café"},
		{"Caf\xe9", "Café"},
		{"\x93Lead\x94", "“Lead”"},
	}
	for _, c := range cases {
		if s := textString(c.in); s != c.out {
			t.Errorf("textString(%q) = %q, expect %q", c.in, s, c.out)
		}
	}
}

func TestReadErrors(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("MThd"))); err == nil {
		t.Error("Read accepted truncated file")
	}
}
