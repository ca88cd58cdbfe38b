// Package token defines compound tokens: fixed-width records of fields, one
// slot per token type, laid out according to the enabled features.
package token

import "strconv"

// A Kind is the type of a field in a compound token.
type Kind uint8

// Field kinds. Ignore marks an absent field.
const (
	Ignore Kind = iota
	Family
	Bar
	Position
	Pitch
	Velocity
	Duration
	Program
	Chord
	Rest
	Tempo
	TimeSigKind

	numKinds
)

var kindNames = [numKinds]string{
	"Ignore",
	"Family",
	"Bar",
	"Position",
	"Pitch",
	"Velocity",
	"Duration",
	"Program",
	"Chord",
	"Rest",
	"Tempo",
	"TimeSig",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind returns the kind with the given name.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}
