package cpword

import (
	"moria.us/cptok/build/config"
	"moria.us/cptok/build/token"
)

// gridState tracks bars and ticks while walking a track. It is owned by a
// single encoding or decoding pass.
type gridState struct {
	tm *config.Timing

	bar             int // -1 before the first bar
	tickAtBar       int
	tickAtSigChange int
	barAtSigChange  int
	sig             token.TimeSig
	ticksPerBar     int
	tempo           float64
	program         int
	prevTick        int
	prevNoteEnd     int
}

func newGridState(tm *config.Timing, sig token.TimeSig, tempo float64) *gridState {
	g := gridState{
		tm:       tm,
		bar:      -1,
		tempo:    tempo,
		prevTick: -1,
	}
	g.setSig(sig)
	return &g
}

func (g *gridState) setSig(sig token.TimeSig) {
	g.sig = sig
	g.ticksPerBar = g.tm.TicksPerBar(sig)
	if g.ticksPerBar <= 0 {
		panic("cpword: empty bar for time signature " + sig.String())
	}
}

// barAt returns the index of the bar containing the tick, counting from the
// last time signature change.
func (g *gridState) barAt(tick int) int {
	return g.barAtSigChange + (tick-g.tickAtSigChange)/g.ticksPerBar
}

// catchUp advances the current bar to the one containing the tick, without
// producing Bar tokens. A stream which starts with rests has no Bar token for
// its first bar.
func (g *gridState) catchUp(tick int) {
	if real := g.barAt(tick); real > g.bar {
		g.bar = real
		g.tickAtBar = g.tickAtSigChange + (real-g.barAtSigChange)*g.ticksPerBar
	}
}

// advanceBars moves forward n bars.
func (g *gridState) advanceBars(n int) {
	g.bar += n
	g.tickAtBar = g.tickAtSigChange + (g.bar-g.barAtSigChange)*g.ticksPerBar
}

// changeSigAt switches to a new time signature at the given tick, which need
// not be the start of a bar.
func (g *gridState) changeSigAt(tick int, sig token.TimeSig) {
	g.barAtSigChange += (tick - g.tickAtSigChange) / g.ticksPerBar
	g.tickAtSigChange = tick
	g.setSig(sig)
}

// changeSigAtBar switches to a new time signature at the start of the
// current bar.
func (g *gridState) changeSigAtBar(sig token.TimeSig) {
	g.tickAtSigChange = g.tickAtBar
	g.barAtSigChange = g.bar
	g.setSig(sig)
}

func (g *gridState) noteEnd(tick int) {
	if tick > g.prevNoteEnd {
		g.prevNoteEnd = tick
	}
}
