package cpword

import (
	"testing"

	"moria.us/cptok/build/config"
	"moria.us/cptok/build/score"
	"moria.us/cptok/build/token"
)

// testScore has notes, velocities, and durations in the default vocabulary.
const testScore = `
@info
division: 480
tempo: 96
meter: 4/4

@track
name: piano
program: 0
velocity: 95

c4.480 e4.480@127 g4.960 |
c4/e4/g4.960 r960 |
r1920 |
M3/4 T120
a4.240 b4.240 r960 |
c5.1440 |

@track
name: bass
program: 33
velocity: 79

c2.1920 |
r1920 |
r1920 |
M3/4 T120
r1440 |
e2.480 r960 |
`

func newTokenizer(t *testing.T, mod func(c *config.Config)) *Tokenizer {
	t.Helper()
	cfg := config.Default()
	if mod != nil {
		mod(cfg)
	}
	tk, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return tk
}

func parseScore(t *testing.T, text string) *score.Score {
	t.Helper()
	s, err := score.Parse([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func note(time, pitch, vel int, dur token.Ratio, division int) []Event {
	return []Event{
		{Time: time, Field: token.IntField(token.Pitch, pitch), End: time + dur.Ticks(division)},
		{Time: time, Field: token.IntField(token.Velocity, vel)},
		{Time: time, Field: token.RatioField(token.Duration, dur)},
	}
}

func labels(seq []token.Compound) []string {
	s := make([]string, len(seq))
	for i, c := range seq {
		s[i] = c.String()
	}
	return s
}

func checkLabels(t *testing.T, seq []token.Compound, want []string) {
	t.Helper()
	got := labels(seq)
	if len(got) != len(want) {
		t.Errorf("got %d tokens, expect %d", len(got), len(want))
	}
	for i := 0; i < len(got) || i < len(want); i++ {
		var g, w string
		if i < len(got) {
			g = got[i]
		}
		if i < len(want) {
			w = want[i]
		}
		if g != w {
			t.Errorf("token %d = %s, expect %s", i, g, w)
		}
	}
}

var configs = []struct {
	name string
	mod  func(c *config.Config)
}{
	{"plain", nil},
	{"rests", func(c *config.Config) {
		c.UseRests = true
	}},
	{"meter", func(c *config.Config) {
		c.UseTempos = true
		c.UseTimeSignatures = true
		c.UseChords = true
	}},
	{"programs", func(c *config.Config) {
		c.UsePrograms = true
		c.UseRests = true
		c.UseTempos = true
	}},
	{"programs-meter", func(c *config.Config) {
		c.UsePrograms = true
		c.UseChords = true
		c.UseTempos = true
		c.UseTimeSignatures = true
	}},
}
