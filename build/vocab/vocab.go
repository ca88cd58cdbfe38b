// Package vocab maps compound token fields to integer ids.
package vocab

import (
	"fmt"
	"strconv"

	"moria.us/cptok/build/config"
	"moria.us/cptok/build/token"
)

// Labels present in every slot.
const (
	PadLabel    = "PAD_None"
	IgnoreLabel = "Ignore_None"
)

// An Error is an unknown label or an id outside a slot's vocabulary.
type Error struct {
	Slot  int
	Label string
	ID    int
}

func (e *Error) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("slot %d: unknown token %q", e.Slot, e.Label)
	}
	return fmt.Sprintf("slot %d: id %d out of range", e.Slot, e.ID)
}

type slot struct {
	labels []string
	fields []token.Field
	ids    map[string]int
}

func (s *slot) add(label string) {
	var f token.Field
	if label != PadLabel && label != IgnoreLabel {
		var err error
		f, err = token.ParseField(label)
		if err != nil {
			panic("vocab: " + err.Error())
		}
	}
	s.ids[label] = len(s.labels)
	s.labels = append(s.labels, label)
	s.fields = append(s.fields, f)
}

// A Vocab is the vocabulary of each slot of a layout. Id 0 is padding in
// every slot.
type Vocab struct {
	layout token.Layout
	slots  []slot
}

// New returns the vocabulary for the value tables and layout of a
// tokenizer.
func New(tables *config.Tables, layout token.Layout) *Vocab {
	v := Vocab{
		layout: layout,
		slots:  make([]slot, layout.Width()),
	}
	for i := range v.slots {
		s := &v.slots[i]
		s.ids = make(map[string]int)
		s.add(PadLabel)
		if i != token.FamilySlot {
			s.add(IgnoreLabel)
		}
	}
	add := func(k token.Kind, label string) {
		v.slots[layout.Index(k)].add(label)
	}
	add(token.Family, token.FamilyField(token.FamilyMetric).Label())
	add(token.Family, token.FamilyField(token.FamilyNote).Label())
	add(token.Bar, token.BarField().Label())
	for i := 0; i < tables.NbPositions; i++ {
		add(token.Position, token.IntField(token.Position, i).Label())
	}
	for p := tables.PitchMin; p < tables.PitchMax; p++ {
		add(token.Pitch, token.IntField(token.Pitch, p).Label())
	}
	for _, x := range tables.Velocities {
		add(token.Velocity, token.IntField(token.Velocity, x).Label())
	}
	for _, r := range tables.Durations {
		add(token.Duration, token.RatioField(token.Duration, r).Label())
	}
	for _, k := range layout.Optional() {
		switch k {
		case token.Program:
			for _, p := range tables.Programs {
				add(k, token.IntField(token.Program, p).Label())
			}
		case token.Chord:
			for _, c := range tables.Chords {
				add(k, token.ChordField(c).Label())
			}
		case token.Rest:
			for _, r := range tables.Rests {
				add(k, token.RatioField(token.Rest, r).Label())
			}
		case token.Tempo:
			for _, t := range tables.Tempos {
				add(k, token.TempoField(t).Label())
			}
		case token.TimeSigKind:
			for _, s := range tables.TimeSigs {
				add(k, token.SigField(s).Label())
			}
		}
	}
	return &v
}

// Layout returns the layout of the vocabulary.
func (v *Vocab) Layout() token.Layout { return v.layout }

// Width returns the number of slots.
func (v *Vocab) Width() int { return len(v.slots) }

// Len returns the size of a slot's vocabulary.
func (v *Vocab) Len(slot int) int { return len(v.slots[slot].labels) }

// Labels returns the labels of a slot, in id order.
func (v *Vocab) Labels(slot int) []string {
	return append([]string(nil), v.slots[slot].labels...)
}

// ID returns the id of a label in a slot.
func (v *Vocab) ID(slot int, label string) (int, error) {
	id, ok := v.slots[slot].ids[label]
	if !ok {
		return 0, &Error{Slot: slot, Label: label}
	}
	return id, nil
}

// Label returns the label with the given id in a slot.
func (v *Vocab) Label(slot, id int) (string, error) {
	s := &v.slots[slot]
	if id < 0 || id >= len(s.labels) {
		return "", &Error{Slot: slot, ID: id}
	}
	return s.labels[id], nil
}

func (v *Vocab) checkWidth(n int) error {
	if n != len(v.slots) {
		return fmt.Errorf("token has %d fields, expected %d", n, len(v.slots))
	}
	return nil
}

// Encode returns the ids of a compound token's fields. An absent family
// encodes as padding, and other absent fields as Ignore.
func (v *Vocab) Encode(c token.Compound) ([]int, error) {
	if err := v.checkWidth(len(c)); err != nil {
		return nil, err
	}
	ids := make([]int, len(c))
	for i, f := range c {
		var label string
		switch {
		case !f.IsAbsent():
			label = f.Label()
		case i == token.FamilySlot:
			label = PadLabel
		default:
			label = IgnoreLabel
		}
		id, err := v.ID(i, label)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Decode returns the compound token with the given field ids.
func (v *Vocab) Decode(ids []int) (token.Compound, error) {
	if err := v.checkWidth(len(ids)); err != nil {
		return nil, err
	}
	c := make(token.Compound, len(ids))
	for i, id := range ids {
		s := &v.slots[i]
		if id < 0 || id >= len(s.fields) {
			return nil, &Error{Slot: i, ID: id}
		}
		c[i] = s.fields[id]
	}
	return c, nil
}

// EncodeSeq encodes a token sequence.
func (v *Vocab) EncodeSeq(seq []token.Compound) ([][]int, error) {
	out := make([][]int, len(seq))
	for i, c := range seq {
		ids, err := v.Encode(c)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		out[i] = ids
	}
	return out, nil
}

// DecodeSeq decodes a token sequence.
func (v *Vocab) DecodeSeq(ids [][]int) ([]token.Compound, error) {
	out := make([]token.Compound, len(ids))
	for i, x := range ids {
		c, err := v.Decode(x)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

// String returns a summary of the slot sizes.
func (v *Vocab) String() string {
	s := "vocab["
	for i := range v.slots {
		if i > 0 {
			s += " "
		}
		s += v.layout.SlotKind(i).String() + ":" + strconv.Itoa(v.Len(i))
	}
	return s + "]"
}
