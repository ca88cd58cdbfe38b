// Package midi converts between Standard MIDI Files and scores.
package midi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"golang.org/x/text/encoding/charmap"

	"moria.us/cptok/build/score"
	"moria.us/cptok/build/token"
)

// DrumChannel is the channel reserved for percussion.
const DrumChannel = 9

var (
	errTimeFormat = errors.New("MIDI file uses SMPTE time, not ticks per beat")
	errDivision   = errors.New("time division does not fit in a MIDI file")
	errTooMany    = errors.New("too many tracks for MIDI channels")
)

// textString decodes MIDI text. Text which is not UTF-8 is read as
// Windows-1252, the usual encoding of older files.
func textString(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	d, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return d
}

// Read reads a Standard MIDI File. Each channel of each track with notes
// becomes a track of the score.
func Read(r io.Reader) (*score.Score, error) {
	f, err := smf.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	tf, ok := f.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errTimeFormat
	}
	s := score.Score{Division: int(tf.Resolution())}
	for i, tr := range f.Tracks {
		var name string
		var time int
		for _, ev := range tr {
			time += int(ev.Delta)
			var text string
			var bpm float64
			var num, den uint8
			switch {
			case ev.Message.GetMetaTrackName(&text):
				if name == "" {
					name = textString(text)
				}
			case ev.Message.GetMetaTempo(&bpm):
				s.Tempos = append(s.Tempos, score.TempoChange{Time: time, Tempo: bpm})
			case ev.Message.GetMetaMeter(&num, &den):
				if num == 0 || den == 0 {
					logrus.Warnf("track %d: invalid time signature %d/%d", i, num, den)
					continue
				}
				s.TimeSignatures = append(s.TimeSignatures, score.TimeSignature{
					Time:    time,
					TimeSig: token.TimeSig{Num: int(num), Den: int(den)},
				})
			}
		}
		if name == "" {
			name = fmt.Sprintf("track %d", i)
		}
		for _, c := range parseNotes(tr, name) {
			t := score.Track{
				Name:    name,
				Program: c.program,
				IsDrum:  c.channel == DrumChannel,
				Notes:   c.notes,
			}
			if t.IsDrum {
				t.Program = 0
			}
			s.Tracks = append(s.Tracks, &t)
		}
	}
	s.Tempos = score.SortTempos(s.Tempos)
	s.TimeSignatures = score.SortTimeSignatures(s.TimeSignatures)
	return &s, nil
}

// ReadFile reads a Standard MIDI File from disk.
func ReadFile(name string) (*score.Score, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	s, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// An event is a message at an absolute time.
type event struct {
	time  int
	order int // note offs before note ons
	msg   []byte
}

func addEvents(tr *smf.Track, evs []event) {
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].time != evs[j].time {
			return evs[i].time < evs[j].time
		}
		return evs[i].order < evs[j].order
	})
	var last int
	for _, e := range evs {
		tr.Add(uint32(e.time-last), e.msg)
		last = e.time
	}
	tr.Close(0)
}

// channels assigns a MIDI channel to each track. Drum tracks use the drum
// channel.
func channels(tracks []*score.Track) ([]uint8, error) {
	chs := make([]uint8, len(tracks))
	var next uint8
	for i, tr := range tracks {
		if tr.IsDrum {
			chs[i] = DrumChannel
			continue
		}
		if next == DrumChannel {
			next++
		}
		if next > 15 {
			return nil, errTooMany
		}
		chs[i] = next
		next++
	}
	return chs, nil
}

// Write writes a score as a format 1 Standard MIDI File. The first track holds
// the tempo and time signature changes.
func Write(w io.Writer, s *score.Score) error {
	if s.Division <= 0 || s.Division > 0x7fff {
		return fmt.Errorf("%w: %d", errDivision, s.Division)
	}
	chs, err := channels(s.Tracks)
	if err != nil {
		return err
	}
	f := smf.New()
	f.TimeFormat = smf.MetricTicks(s.Division)

	var conductor smf.Track
	var evs []event
	for _, ts := range s.TimeSignatures {
		evs = append(evs, event{time: ts.Time, msg: smf.MetaMeter(uint8(ts.Num), uint8(ts.Den))})
	}
	for _, tc := range s.Tempos {
		evs = append(evs, event{time: tc.Time, order: 1, msg: smf.MetaTempo(tc.Tempo)})
	}
	addEvents(&conductor, evs)
	if err := f.Add(conductor); err != nil {
		return err
	}

	for i, t := range s.Tracks {
		var tr smf.Track
		ch := chs[i]
		evs := []event{{time: 0, order: -1, msg: smf.MetaTrackSequenceName(t.Name)}}
		if !t.IsDrum {
			evs = append(evs, event{time: 0, msg: midi.ProgramChange(ch, uint8(t.Program))})
		}
		for _, n := range t.Notes {
			evs = append(evs,
				event{time: n.Start, order: 2, msg: midi.NoteOn(ch, uint8(n.Pitch), uint8(n.Velocity))},
				event{time: n.End, order: 1, msg: midi.NoteOff(ch, uint8(n.Pitch))},
			)
		}
		addEvents(&tr, evs)
		if err := f.Add(tr); err != nil {
			return err
		}
	}
	_, err = f.WriteTo(w)
	return err
}

// WriteFile writes a score to disk as a Standard MIDI File.
func WriteFile(name string, s *score.Score) error {
	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		return err
	}
	return os.WriteFile(name, buf.Bytes(), 0666)
}
