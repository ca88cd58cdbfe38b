package cpword

import (
	"fmt"
	"sync"

	"moria.us/cptok/build/token"
)

// padKind is the type of a token without a family, such as padding. No token
// type may precede or follow it.
const padKind = token.Family

// A ClassifyError is returned when a token cannot be given a type.
type ClassifyError struct {
	Index int
	Token token.Compound
	Err   error
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("token %d %v: %v", e.Index, e.Token, e.Err)
}

func (e *ClassifyError) Unwrap() error { return e.Err }

// classify returns the type of a token and the field which determines it.
// Note tokens have the type of their pitch field.
func (t *Tokenizer) classify(c token.Compound) (token.Kind, token.Field, error) {
	l := t.layout
	if err := l.Check(c); err != nil {
		return 0, token.Field{}, err
	}
	fam := c[token.FamilySlot]
	if fam.IsAbsent() {
		return padKind, fam, nil
	}
	if c.IsNote() {
		f := c[token.PitchSlot]
		return f.Kind(), f, nil
	}
	if f := c[token.MetricSlot]; !f.IsAbsent() {
		return f.Kind(), f, nil
	}
	for _, k := range l.Optional() {
		if k == token.Program {
			continue
		}
		if f := l.Get(c, k); !f.IsAbsent() {
			return k, f, nil
		}
	}
	return 0, token.Field{}, fmt.Errorf("metric token has no value")
}

// Errors returns the fraction of tokens in a sequence which break the token
// grammar: a type which may not follow the previous type, a Position which
// does not move forward, or a pitch repeated at the same position. An empty
// sequence has no errors. A token whose type cannot be determined is an
// error of type *ClassifyError.
func (t *Tokenizer) Errors(seq []token.Compound) (float64, error) {
	bad, err := t.Rejected(seq)
	if err != nil || len(seq) == 0 {
		return 0, err
	}
	var nerr int
	for _, b := range bad {
		if b {
			nerr++
		}
	}
	return float64(nerr) / float64(len(seq)), nil
}

// Rejected marks the tokens in a sequence which Errors counts as errors. The
// first token is never marked.
func (t *Tokenizer) Rejected(seq []token.Compound) ([]bool, error) {
	bad := make([]bool, len(seq))
	if len(seq) == 0 {
		return bad, nil
	}
	prev, _, err := t.classify(seq[0])
	if err != nil {
		return nil, &ClassifyError{Index: 0, Token: seq[0], Err: err}
	}
	pos := -1
	pitches := make(map[int]map[int]bool) // by program
	for i := 1; i < len(seq); i++ {
		c := seq[i]
		k, f, err := t.classify(c)
		if err != nil {
			return nil, &ClassifyError{Index: i, Token: c, Err: err}
		}
		switch {
		case !t.graph.Allowed(prev, k):
			bad[i] = true
		case k == token.Bar:
			pos = -1
			clear(pitches)
		case k == token.Position:
			if f.Int() <= pos && prev != token.Rest {
				bad[i] = true
			} else {
				pos = f.Int()
				clear(pitches)
			}
		case k == token.Pitch:
			var program int
			if t.layout.Features().Programs {
				program = t.layout.Get(c, token.Program).Int()
			}
			ps := pitches[program]
			if ps == nil {
				ps = make(map[int]bool)
				pitches[program] = ps
			}
			if ps[f.Int()] {
				bad[i] = true
			} else {
				ps[f.Int()] = true
			}
		}
		prev = k
	}
	return bad, nil
}

// ErrorsAll scores several sequences concurrently. The first error, in
// sequence order, is returned.
func (t *Tokenizer) ErrorsAll(seqs [][]token.Compound) ([]float64, error) {
	scores := make([]float64, len(seqs))
	errs := make([]error, len(seqs))
	var wg sync.WaitGroup
	for i, seq := range seqs {
		wg.Add(1)
		go func(i int, seq []token.Compound) {
			defer wg.Done()
			scores[i], errs[i] = t.Errors(seq)
		}(i, seq)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
	}
	return scores, nil
}
