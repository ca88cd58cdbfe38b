// Package tokfile reads and writes files of compound token sequences.
//
// The binary format is a short header followed by a protobuf message:
//
//	message File {
//	  uint32 width = 1;
//	  repeated Sequence sequence = 2;
//	}
//	message Sequence {
//	  repeated uint32 ids = 1; // packed, width ids per token
//	  sint32 program = 2;
//	  bool drum = 3;
//	}
//
// The JSON format stores token labels instead of ids, and does not depend on
// the vocabulary.
package tokfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"moria.us/cptok/build/cpword"
	"moria.us/cptok/build/token"
	"moria.us/cptok/build/vocab"
)

const magic = "CPTK\x01"

// ErrFormat is returned for data which is not a token file.
var ErrFormat = errors.New("invalid token file")

// A Set is a group of token sequences produced from one score.
type Set struct {
	Width     int
	Sequences [][]token.Compound
	// Programs has one entry per sequence, or is nil if the sequences
	// carry programs in their tokens.
	Programs []cpword.Program
}

// NewSet returns the sequences encoded from a score.
func NewSet(tk *cpword.Tokenizer, seqs [][]token.Compound, programs []cpword.Program) *Set {
	return &Set{
		Width:     tk.Layout().Width(),
		Sequences: seqs,
		Programs:  programs,
	}
}

func (s *Set) check() error {
	if s.Programs != nil && len(s.Programs) != len(s.Sequences) {
		return fmt.Errorf("%d programs for %d sequences", len(s.Programs), len(s.Sequences))
	}
	for i, seq := range s.Sequences {
		for j, c := range seq {
			if len(c) != s.Width {
				return fmt.Errorf("sequence %d, token %d: %d fields, expected %d", i, j, len(c), s.Width)
			}
		}
	}
	return nil
}

func (s *Set) program(i int) (cpword.Program, bool) {
	if s.Programs == nil {
		return cpword.Program{}, false
	}
	return s.Programs[i], true
}

// Marshal returns the binary form of a set.
func Marshal(v *vocab.Vocab, s *Set) ([]byte, error) {
	if s.Width != v.Width() {
		return nil, fmt.Errorf("set has width %d, vocabulary has width %d", s.Width, v.Width())
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	buf := []byte(magic)
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(s.Width))
	var msg, ids []byte
	for i, seq := range s.Sequences {
		msg = msg[:0]
		ids = ids[:0]
		for j, c := range seq {
			x, err := v.Encode(c)
			if err != nil {
				return nil, fmt.Errorf("sequence %d, token %d: %w", i, j, err)
			}
			for _, id := range x {
				ids = protowire.AppendVarint(ids, uint64(id))
			}
		}
		if len(ids) > 0 {
			msg = protowire.AppendTag(msg, 1, protowire.BytesType)
			msg = protowire.AppendBytes(msg, ids)
		}
		if p, ok := s.program(i); ok {
			msg = protowire.AppendTag(msg, 2, protowire.VarintType)
			msg = protowire.AppendVarint(msg, protowire.EncodeZigZag(int64(p.Program)))
			if p.IsDrum {
				msg = protowire.AppendTag(msg, 3, protowire.VarintType)
				msg = protowire.AppendVarint(msg, protowire.EncodeBool(true))
			}
		}
		buf = protowire.AppendTag(buf, 2, protowire.BytesType)
		buf = protowire.AppendBytes(buf, msg)
	}
	return buf, nil
}

func wireError(n int) error {
	return fmt.Errorf("%w: %v", ErrFormat, protowire.ParseError(n))
}

// Unmarshal parses the binary form of a set.
func Unmarshal(v *vocab.Vocab, data []byte) (*Set, error) {
	if !bytes.HasPrefix(data, []byte(magic)) {
		return nil, fmt.Errorf("%w: bad header", ErrFormat)
	}
	data = data[len(magic):]
	var s Set
	var hasProgram bool
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, wireError(n)
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, wireError(n)
			}
			data = data[n:]
			s.Width = int(x)
		case num == 2 && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, wireError(n)
			}
			data = data[n:]
			seq, p, ok, err := unmarshalSeq(v, msg)
			if err != nil {
				return nil, fmt.Errorf("sequence %d: %w", len(s.Sequences), err)
			}
			s.Sequences = append(s.Sequences, seq)
			s.Programs = append(s.Programs, p)
			hasProgram = hasProgram || ok
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, wireError(n)
			}
			data = data[n:]
		}
	}
	if !hasProgram {
		s.Programs = nil
	}
	if s.Width != v.Width() {
		return nil, fmt.Errorf("file has width %d, vocabulary has width %d", s.Width, v.Width())
	}
	return &s, nil
}

func unmarshalSeq(v *vocab.Vocab, data []byte) (seq []token.Compound, p cpword.Program, hasProgram bool, err error) {
	var ids []int
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, p, false, wireError(n)
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, p, false, wireError(n)
			}
			data = data[n:]
			for len(packed) > 0 {
				x, n := protowire.ConsumeVarint(packed)
				if n < 0 {
					return nil, p, false, wireError(n)
				}
				packed = packed[n:]
				ids = append(ids, int(x))
			}
		case num == 2 && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, p, false, wireError(n)
			}
			data = data[n:]
			p.Program = int(protowire.DecodeZigZag(x))
			hasProgram = true
		case num == 3 && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, p, false, wireError(n)
			}
			data = data[n:]
			p.IsDrum = protowire.DecodeBool(x)
			hasProgram = true
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, p, false, wireError(n)
			}
			data = data[n:]
		}
	}
	w := v.Width()
	if len(ids)%w != 0 {
		return nil, p, false, fmt.Errorf("%w: %d ids is not a multiple of width %d", ErrFormat, len(ids), w)
	}
	seq = make([]token.Compound, 0, len(ids)/w)
	for i := 0; i < len(ids); i += w {
		c, err := v.Decode(ids[i : i+w])
		if err != nil {
			return nil, p, false, fmt.Errorf("token %d: %w", i/w, err)
		}
		seq = append(seq, c)
	}
	return seq, p, hasProgram, nil
}

type jsonSeq struct {
	Program *int       `json:"program,omitempty"`
	Drum    bool       `json:"drum,omitempty"`
	Tokens  [][]string `json:"tokens"`
}

type jsonSet struct {
	Width     int       `json:"width"`
	Sequences []jsonSeq `json:"sequences"`
}

// MarshalJSON returns the JSON form of a set.
func (s *Set) MarshalJSON() ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	js := jsonSet{
		Width:     s.Width,
		Sequences: make([]jsonSeq, len(s.Sequences)),
	}
	for i, seq := range s.Sequences {
		q := jsonSeq{Tokens: make([][]string, len(seq))}
		for j, c := range seq {
			q.Tokens[j] = c.Labels()
		}
		if p, ok := s.program(i); ok {
			program := p.Program
			q.Program = &program
			q.Drum = p.IsDrum
		}
		js.Sequences[i] = q
	}
	return json.Marshal(&js)
}

// UnmarshalJSON parses the JSON form of a set.
func (s *Set) UnmarshalJSON(data []byte) error {
	var js jsonSet
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&js); err != nil {
		return err
	}
	r := Set{Width: js.Width}
	var hasProgram bool
	for i, q := range js.Sequences {
		seq := make([]token.Compound, len(q.Tokens))
		for j, labels := range q.Tokens {
			c, err := token.ParseCompound(labels)
			if err != nil {
				return fmt.Errorf("sequence %d, token %d: %w", i, j, err)
			}
			seq[j] = c
		}
		var p cpword.Program
		if q.Program != nil {
			p.Program = *q.Program
			hasProgram = true
		}
		p.IsDrum = q.Drum
		r.Sequences = append(r.Sequences, seq)
		r.Programs = append(r.Programs, p)
	}
	if !hasProgram {
		r.Programs = nil
	}
	if err := r.check(); err != nil {
		return err
	}
	*s = r
	return nil
}

func isJSON(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}

// ReadFile reads a token file. Files ending in .json are read as JSON.
func ReadFile(name string, v *vocab.Vocab) (*Set, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	if isJSON(name) {
		var s Set
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if s.Width != v.Width() {
			return nil, fmt.Errorf("%s: file has width %d, vocabulary has width %d", name, s.Width, v.Width())
		}
		return &s, nil
	}
	s, err := Unmarshal(v, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// WriteFile writes a token file. Files ending in .json are written as JSON.
func WriteFile(name string, v *vocab.Vocab, s *Set) error {
	var data []byte
	var err error
	if isJSON(name) {
		data, err = json.MarshalIndent(s, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = Marshal(v, s)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0666)
}
