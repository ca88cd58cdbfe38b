package midi

import (
	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2/smf"

	"moria.us/cptok/build/score"
)

// channelNotes holds the notes of one channel of a track.
type channelNotes struct {
	channel uint8
	program int
	hasProg bool
	notes   []score.Note
}

// parseNotes groups the note on and note off events of a track into notes,
// by channel. Channels are returned in order of their first note.
func parseNotes(tr smf.Track, name string) []*channelNotes {
	log := logrus.StandardLogger().WithField("track", name)
	var chans []*channelNotes
	byChannel := make(map[uint8]*channelNotes)
	programs := make(map[uint8]int)
	getChannel := func(ch uint8) *channelNotes {
		c := byChannel[ch]
		if c == nil {
			c = &channelNotes{channel: ch}
			c.program, c.hasProg = programs[ch]
			byChannel[ch] = c
			chans = append(chans, c)
		}
		return c
	}
	active := make(map[uint16]int) // index in channel notes
	var time int
	for _, ev := range tr {
		time += int(ev.Delta)
		msg := ev.Message
		var ch, key, vel, prog uint8
		var on bool
		switch {
		case msg.GetNoteOn(&ch, &key, &vel):
			on = vel != 0
		case msg.GetNoteOff(&ch, &key, &vel):
		case msg.GetProgramChange(&ch, &prog):
			if c := byChannel[ch]; c != nil && !c.hasProg {
				c.program, c.hasProg = int(prog), true
			}
			programs[ch] = int(prog)
			continue
		default:
			continue
		}
		k := uint16(ch)<<8 | uint16(key)
		if on {
			if _, ok := active[k]; ok {
				log.Warnf("note double pressed: %s ch=%d", score.NoteName(int(key)), ch)
				continue
			}
			c := getChannel(ch)
			active[k] = len(c.notes)
			c.notes = append(c.notes, score.Note{
				Start:    time,
				End:      -1,
				Pitch:    int(key),
				Velocity: int(vel),
			})
		} else {
			idx, ok := active[k]
			if !ok {
				log.Warnf("note off for unpressed note: %s ch=%d", score.NoteName(int(key)), ch)
				continue
			}
			delete(active, k)
			byChannel[ch].notes[idx].End = time
		}
	}
	for k := range active {
		log.Warnf("missing note off for note: %s ch=%d", score.NoteName(int(k&255)), k>>8)
	}
	out := chans[:0]
	for _, c := range chans {
		ns := c.notes[:0]
		for _, n := range c.notes {
			if n.End >= 0 {
				ns = append(ns, n)
			}
		}
		if len(ns) > 0 {
			c.notes = ns
			score.SortNotes(c.notes)
			out = append(out, c)
		}
	}
	return out
}
