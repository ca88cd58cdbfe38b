package chord

import (
	"testing"

	"moria.us/cptok/build/score"
)

func notesAt(start int, pitches ...int) []score.Note {
	var ns []score.Note
	for _, p := range pitches {
		ns = append(ns, score.Note{Start: start, End: start + 480, Pitch: p, Velocity: 100})
	}
	return ns
}

func TestDetect(t *testing.T) {
	var ns []score.Note
	ns = append(ns, notesAt(0, 60, 64, 67)...)        // C major
	ns = append(ns, notesAt(480, 57, 60, 64)...)      // A minor
	ns = append(ns, notesAt(960, 60, 64)...)          // interval only
	ns = append(ns, notesAt(1440, 60, 61, 62)...)     // cluster
	ns = append(ns, notesAt(1920, 55, 59, 62, 65)...) // G7
	ns = append(ns, notesAt(2400, 60, 60, 64, 67)...) // doubled root
	cs := Detect(ns, Options{Unknown: [2]int{3, 6}})
	want := []Chord{
		{0, "maj"},
		{480, "min"},
		{1440, "3"},
		{1920, "7dom"},
		{2400, "maj"},
	}
	if len(cs) != len(want) {
		t.Fatalf("Detect = %v, expect %v", cs, want)
	}
	for i, c := range want {
		if cs[i] != c {
			t.Errorf("chord %d = %v, expect %v", i, cs[i], c)
		}
	}
	if cs := Detect(notesAt(0, 60, 61, 62), Options{}); len(cs) != 0 {
		t.Errorf("Detect without unknown range = %v, expect none", cs)
	}
}

func TestDetectTolerance(t *testing.T) {
	ns := []score.Note{
		{Start: 0, End: 480, Pitch: 60},
		{Start: 10, End: 480, Pitch: 64},
		{Start: 20, End: 480, Pitch: 67},
	}
	if cs := Detect(ns, Options{}); len(cs) != 0 {
		t.Errorf("Detect(tolerance 0) = %v, expect none", cs)
	}
	cs := Detect(ns, Options{Tolerance: 30})
	if len(cs) != 1 || cs[0] != (Chord{0, "maj"}) {
		t.Errorf("Detect(tolerance 30) = %v, expect [{0 maj}]", cs)
	}
}

func TestLabels(t *testing.T) {
	ls := Labels(map[string][]int{"maj": {0, 4, 7}, "min": {0, 3, 7}}, [2]int{3, 5})
	want := []string{"maj", "min", "3", "4"}
	if len(ls) != len(want) {
		t.Fatalf("Labels = %v, expect %v", ls, want)
	}
	for i := range want {
		if ls[i] != want[i] {
			t.Errorf("Labels = %v, expect %v", ls, want)
		}
	}
}
