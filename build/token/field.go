package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Family values.
const (
	FamilyMetric = "Metric"
	FamilyNote   = "Note"
)

// A Ratio is a duration measured in beats: Beat beats plus Pos/Res of a beat.
type Ratio struct {
	Beat int
	Pos  int
	Res  int
}

func (r Ratio) String() string {
	return strconv.Itoa(r.Beat) + "." + strconv.Itoa(r.Pos) + "." + strconv.Itoa(r.Res)
}

// Ticks returns the length of the duration with the given number of ticks per
// beat.
func (r Ratio) Ticks(division int) int {
	return (r.Beat*r.Res + r.Pos) * division / r.Res
}

// ParseRatio parses a ratio written as "beat.pos.res".
func ParseRatio(s string) (r Ratio, err error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return r, fmt.Errorf("invalid duration %q", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return r, fmt.Errorf("invalid duration %q", s)
		}
		v[i] = n
	}
	if v[2] == 0 {
		return r, fmt.Errorf("invalid duration %q: zero resolution", s)
	}
	return Ratio{v[0], v[1], v[2]}, nil
}

// A TimeSig is a time signature.
type TimeSig struct {
	Num int
	Den int
}

// DefaultTimeSig is used when a piece does not specify a time signature.
var DefaultTimeSig = TimeSig{4, 4}

func (s TimeSig) String() string {
	return strconv.Itoa(s.Num) + "/" + strconv.Itoa(s.Den)
}

// TicksPerBar returns the length of one bar with the given number of ticks
// per beat.
func (s TimeSig) TicksPerBar(division int) int {
	return division * 4 * s.Num / s.Den
}

// ParseTimeSig parses a time signature written as "num/den".
func ParseTimeSig(s string) (sig TimeSig, err error) {
	i := strings.IndexByte(s, '/')
	if i == -1 {
		return sig, fmt.Errorf("invalid time signature %q", s)
	}
	num, err := strconv.Atoi(s[:i])
	if err != nil {
		return sig, fmt.Errorf("invalid time signature %q", s)
	}
	den, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return sig, fmt.Errorf("invalid time signature %q", s)
	}
	if num <= 0 || den <= 0 {
		return sig, fmt.Errorf("invalid time signature %q", s)
	}
	return TimeSig{num, den}, nil
}

// A Field is one slot of a compound token. The zero Field is absent.
type Field struct {
	kind  Kind
	n     int
	ratio Ratio
	tempo float64
	sig   TimeSig
	text  string
}

// Absent returns an absent field.
func Absent() Field { return Field{} }

// FamilyField returns a Family field, FamilyMetric or FamilyNote.
func FamilyField(name string) Field { return Field{kind: Family, text: name} }

// BarField returns a Bar field.
func BarField() Field { return Field{kind: Bar} }

// IntField returns a Position, Pitch, Velocity, or Program field.
func IntField(k Kind, v int) Field {
	switch k {
	case Position, Pitch, Velocity, Program:
	default:
		panic("token: not an integer kind: " + k.String())
	}
	return Field{kind: k, n: v}
}

// RatioField returns a Duration or Rest field.
func RatioField(k Kind, r Ratio) Field {
	if k != Duration && k != Rest {
		panic("token: not a duration kind: " + k.String())
	}
	return Field{kind: k, ratio: r}
}

// TempoField returns a Tempo field.
func TempoField(bpm float64) Field { return Field{kind: Tempo, tempo: bpm} }

// SigField returns a TimeSig field.
func SigField(sig TimeSig) Field { return Field{kind: TimeSigKind, sig: sig} }

// ChordField returns a Chord field.
func ChordField(name string) Field { return Field{kind: Chord, text: name} }

// Kind returns the field type, Ignore if the field is absent.
func (f Field) Kind() Kind { return f.kind }

// IsAbsent returns true if the field carries no value.
func (f Field) IsAbsent() bool { return f.kind == Ignore }

// Int returns the value of a Position, Pitch, Velocity, or Program field.
func (f Field) Int() int { return f.n }

// Ratio returns the value of a Duration or Rest field.
func (f Field) Ratio() Ratio { return f.ratio }

// Tempo returns the value of a Tempo field.
func (f Field) Tempo() float64 { return f.tempo }

// Sig returns the value of a TimeSig field.
func (f Field) Sig() TimeSig { return f.sig }

// Text returns the value of a Family or Chord field.
func (f Field) Text() string { return f.text }

// Value returns the value part of the field label.
func (f Field) Value() string {
	switch f.kind {
	case Ignore, Bar:
		return "None"
	case Family, Chord:
		return f.text
	case Position, Pitch, Velocity, Program:
		return strconv.Itoa(f.n)
	case Duration, Rest:
		return f.ratio.String()
	case Tempo:
		return strconv.FormatFloat(f.tempo, 'f', -1, 64)
	case TimeSigKind:
		return f.sig.String()
	default:
		panic("token: bad kind: " + f.kind.String())
	}
}

// Label returns the field as a "Kind_Value" label.
func (f Field) Label() string {
	return f.kind.String() + "_" + f.Value()
}

func (f Field) String() string { return f.Label() }

// A LabelError is returned when a label cannot be parsed.
type LabelError struct {
	Label string
	Err   error
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("invalid token %q: %v", e.Label, e.Err)
}

func (e *LabelError) Unwrap() error { return e.Err }

// ParseField parses a "Kind_Value" label.
func ParseField(label string) (Field, error) {
	f, err := parseField(label)
	if err != nil {
		return Field{}, &LabelError{label, err}
	}
	return f, nil
}

func parseField(label string) (f Field, err error) {
	i := strings.IndexByte(label, '_')
	if i == -1 {
		return f, errors.New("missing '_'")
	}
	name, value := label[:i], label[i+1:]
	k, ok := ParseKind(name)
	if !ok {
		return f, fmt.Errorf("unknown type %q", name)
	}
	switch k {
	case Ignore, Bar:
		if value != "None" {
			return f, errors.New("expected None")
		}
		return Field{kind: k}, nil
	case Family:
		if value != FamilyMetric && value != FamilyNote {
			return f, fmt.Errorf("unknown family %q", value)
		}
		return FamilyField(value), nil
	case Chord:
		if value == "" {
			return f, errors.New("empty chord")
		}
		return ChordField(value), nil
	case Position, Pitch, Velocity, Program:
		n, err := strconv.Atoi(value)
		if err != nil {
			return f, err
		}
		return IntField(k, n), nil
	case Duration, Rest:
		r, err := ParseRatio(value)
		if err != nil {
			return f, err
		}
		return RatioField(k, r), nil
	case Tempo:
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return f, err
		}
		return TempoField(x), nil
	case TimeSigKind:
		sig, err := ParseTimeSig(value)
		if err != nil {
			return f, err
		}
		return SigField(sig), nil
	default:
		panic("token: bad kind: " + k.String())
	}
}
