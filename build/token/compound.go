package token

import (
	"fmt"
	"strings"
)

// A Compound is a compound token: one field per slot of a Layout.
type Compound []Field

// IsNote returns true if the token belongs to the Note family.
func (c Compound) IsNote() bool {
	return len(c) > 0 && c[FamilySlot].kind == Family && c[FamilySlot].text == FamilyNote
}

// Labels returns the label of each field.
func (c Compound) Labels() []string {
	s := make([]string, len(c))
	for i, f := range c {
		s[i] = f.Label()
	}
	return s
}

func (c Compound) String() string {
	return "[" + strings.Join(c.Labels(), " ") + "]"
}

// ParseCompound parses a compound token from its labels.
func ParseCompound(labels []string) (Compound, error) {
	c := make(Compound, len(labels))
	for i, s := range labels {
		f, err := ParseField(s)
		if err != nil {
			return nil, err
		}
		c[i] = f
	}
	return c, nil
}

// Check returns an error if the token does not have the layout's width or
// holds a field in the wrong slot.
func (l Layout) Check(c Compound) error {
	if len(c) != l.width {
		return fmt.Errorf("token has %d fields, expected %d", len(c), l.width)
	}
	for i, f := range c {
		if f.kind == Ignore {
			continue
		}
		want := l.kinds[i]
		if f.kind == want || (i == MetricSlot && f.kind == Bar) {
			continue
		}
		return fmt.Errorf("field %d: unexpected %s", i, f.Label())
	}
	return nil
}

func (l Layout) blank() Compound {
	c := make(Compound, l.width)
	c[FamilySlot] = FamilyField(FamilyMetric)
	return c
}

func (l Layout) set(c Compound, f Field) {
	if i := l.index[f.kind]; i >= 0 {
		c[i] = f
	}
}

// Bar returns a Bar token. The time signature is stored only if the layout has
// a TimeSig slot.
func (l Layout) Bar(sig TimeSig) Compound {
	c := l.blank()
	c[MetricSlot] = BarField()
	l.set(c, SigField(sig))
	return c
}

// Position returns a Position token at the given grid index. An empty chord
// and a non-positive tempo are left absent, as are fields the layout lacks.
func (l Layout) Position(pos int, chord string, tempo float64) Compound {
	c := l.blank()
	c[MetricSlot] = IntField(Position, pos)
	if chord != "" {
		l.set(c, ChordField(chord))
	}
	if tempo > 0 {
		l.set(c, TempoField(tempo))
	}
	return c
}

// Rest returns a Rest token. The layout must have a Rest slot.
func (l Layout) Rest(r Ratio) Compound {
	if l.index[Rest] < 0 {
		panic("token: layout has no Rest slot")
	}
	c := l.blank()
	l.set(c, RatioField(Rest, r))
	return c
}

// Note returns a Note token. The program is stored only if the layout has a
// Program slot.
func (l Layout) Note(pitch, velocity int, dur Ratio, program int) Compound {
	c := l.blank()
	c[FamilySlot] = FamilyField(FamilyNote)
	c[PitchSlot] = IntField(Pitch, pitch)
	c[VelocitySlot] = IntField(Velocity, velocity)
	c[DurationSlot] = RatioField(Duration, dur)
	l.set(c, IntField(Program, program))
	return c
}
