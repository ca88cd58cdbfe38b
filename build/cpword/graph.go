package cpword

import (
	"sort"

	"moria.us/cptok/build/token"
)

// A Graph gives the token types which may follow each token type in a valid
// sequence.
type Graph struct {
	next map[token.Kind]map[token.Kind]bool
}

// NewGraph returns the type graph for a set of features.
func NewGraph(f token.Features) *Graph {
	g := Graph{next: make(map[token.Kind]map[token.Kind]bool)}
	g.add(token.Bar, token.Position, token.Bar)
	g.add(token.Position, token.Pitch)
	g.add(token.Pitch, token.Pitch, token.Bar, token.Position)
	if f.Chords {
		g.add(token.Rest, token.Rest, token.Position)
		g.add(token.Pitch, token.Rest)
	}
	if f.Rests {
		g.add(token.Rest, token.Rest, token.Position, token.Bar)
		g.add(token.Pitch, token.Rest)
	}
	if f.Tempos {
		g.add(token.Position, token.Position, token.Bar)
		if f.Rests {
			g.add(token.Position, token.Rest)
			g.add(token.Rest, token.Position)
		}
	}
	states := g.States()
	for _, k := range states {
		g.add(k, token.Ignore)
	}
	g.add(token.Ignore, states...)
	g.add(token.Ignore, token.Ignore)
	return &g
}

func (g *Graph) add(from token.Kind, to ...token.Kind) {
	s := g.next[from]
	if s == nil {
		s = make(map[token.Kind]bool)
		g.next[from] = s
	}
	for _, k := range to {
		s[k] = true
	}
}

// Allowed returns true if a token of type to may follow a token of type from.
func (g *Graph) Allowed(from, to token.Kind) bool {
	return g.next[from][to]
}

// States returns the token types in the graph, in order.
func (g *Graph) States() []token.Kind {
	ks := make([]token.Kind, 0, len(g.next))
	for k := range g.next {
		ks = append(ks, k)
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
	return ks
}

// Next returns the token types which may follow a type, in order.
func (g *Graph) Next(from token.Kind) []token.Kind {
	ks := make([]token.Kind, 0, len(g.next[from]))
	for k := range g.next[from] {
		ks = append(ks, k)
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
	return ks
}
