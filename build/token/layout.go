package token

// Features selects which optional fields are present in compound tokens.
type Features struct {
	Programs       bool
	Chords         bool
	Rests          bool
	Tempos         bool
	TimeSignatures bool
}

// Slots that every compound token has.
const (
	FamilySlot = iota
	MetricSlot // Bar or Position
	PitchSlot
	VelocitySlot
	DurationSlot

	numFixed
)

const maxWidth = numFixed + 5

// optionalKinds lists the optional fields in slot order.
var optionalKinds = [...]Kind{Program, Chord, Rest, Tempo, TimeSigKind}

// A Layout maps token types to slots in a compound token. A Layout is built
// once per configuration and shared by the encoder, decoder, and validator.
// Layouts are comparable; two tokenizers are compatible if their layouts are
// equal.
type Layout struct {
	features Features
	width    int
	index    [numKinds]int8
	kinds    [maxWidth]Kind
}

// NewLayout returns the layout for the given features.
func NewLayout(f Features) Layout {
	l := Layout{features: f}
	for i := range l.index {
		l.index[i] = -1
	}
	fixed := [numFixed]Kind{Family, Position, Pitch, Velocity, Duration}
	for i, k := range fixed {
		l.kinds[i] = k
		l.index[k] = int8(i)
	}
	l.index[Bar] = MetricSlot
	enabled := [...]bool{f.Programs, f.Chords, f.Rests, f.Tempos, f.TimeSignatures}
	n := numFixed
	for i, k := range optionalKinds {
		if enabled[i] {
			l.kinds[n] = k
			l.index[k] = int8(n)
			n++
		}
	}
	l.width = n
	return l
}

// Features returns the features the layout was built from.
func (l Layout) Features() Features { return l.features }

// Width returns the number of fields in a compound token.
func (l Layout) Width() int { return l.width }

// Index returns the slot holding the given kind, or -1 if the kind is not
// part of the layout.
func (l Layout) Index(k Kind) int {
	if k >= numKinds {
		return -1
	}
	return int(l.index[k])
}

// Has returns true if the layout has a slot for the given kind.
func (l Layout) Has(k Kind) bool { return l.Index(k) >= 0 }

// SlotKind returns the kind stored in a slot. Slot 1 reports Position, though
// it also holds Bar fields.
func (l Layout) SlotKind(slot int) Kind {
	if slot < 0 || slot >= l.width {
		return Ignore
	}
	return l.kinds[slot]
}

// Optional returns the optional kinds in slot order.
func (l Layout) Optional() []Kind {
	return append([]Kind(nil), l.kinds[numFixed:l.width]...)
}

// Get returns the field of the given kind, or an absent field if the layout
// has no slot for it.
func (l Layout) Get(c Compound, k Kind) Field {
	i := l.Index(k)
	if i < 0 || i >= len(c) {
		return Field{}
	}
	f := c[i]
	if k == Bar || k == Position {
		if f.kind != k {
			return Field{}
		}
	}
	return f
}
