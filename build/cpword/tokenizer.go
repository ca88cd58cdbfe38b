// Package cpword converts between scores and CPWord compound token sequences.
//
// Each compound token is either a Metric token (a Bar, a Position on the
// sample grid, or a Rest) or a Note token (pitch, velocity, and duration).
// The encoder segments a time-ordered event stream on the bar and sample
// grid, the decoder rebuilds absolute times, and the validator scores a
// sequence against the grammar of token types.
package cpword

import (
	"github.com/sirupsen/logrus"

	"moria.us/cptok/build/config"
	"moria.us/cptok/build/token"
)

// A Tokenizer encodes and decodes CPWord sequences for one configuration. A
// Tokenizer is immutable and may be used from multiple goroutines.
type Tokenizer struct {
	cfg    config.Config
	tables *config.Tables
	layout token.Layout
	graph  *Graph
}

// New returns a tokenizer for the configuration. Configuration warnings are
// logged here, once.
func New(cfg *config.Config) (*Tokenizer, error) {
	tables, err := cfg.Tables()
	if err != nil {
		return nil, err
	}
	t := Tokenizer{
		cfg:    *cfg,
		tables: tables,
		layout: token.NewLayout(cfg.Features()),
		graph:  NewGraph(cfg.Features()),
	}
	if ws := cfg.Warnings(); len(ws) > 0 {
		log := logrus.WithField("width", t.layout.Width())
		for _, w := range ws {
			log.Warn(w)
		}
	}
	return &t, nil
}

// Layout returns the slot layout of the tokenizer's compound tokens.
func (t *Tokenizer) Layout() token.Layout { return t.layout }

// Tables returns the token value tables.
func (t *Tokenizer) Tables() *config.Tables { return t.tables }

// Graph returns the token type graph used by the validator.
func (t *Tokenizer) Graph() *Graph { return t.graph }

// Division returns the configured time division.
func (t *Tokenizer) Division() int { return t.cfg.TimeDivision }

// OneTokenStream returns true if all tracks are encoded into a single
// sequence, with the program of each note in its token.
func (t *Tokenizer) OneTokenStream() bool { return t.cfg.UsePrograms }
