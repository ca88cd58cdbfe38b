package score

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"moria.us/cptok/build/token"
)

const (
	defaultDivision = 480
	defaultVelocity = 100
	minTempo        = 10
	maxTempo        = 400
)

// An Error is an error in a text score, with the line where it occurred.
type Error struct {
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// =============================================================================

// A prop is a "key: value" line at the head of a section.
type prop struct {
	lineno     int
	key, value string
}

type dataLine struct {
	lineno int
	text   string
}

type section struct {
	lineno int
	kind   string
	props  []prop
	lines  []dataLine
}

// splitLines splits text into lines ending in LF, CR LF, or CR.
func splitLines(data []byte) [][]byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
	return bytes.Split(data, []byte("\n"))
}

func checkText(text []byte) error {
	if !utf8.Valid(text) {
		return errors.New("invalid UTF-8")
	}
	for _, c := range text {
		if c < 32 && c != '\t' || c == 127 {
			return fmt.Errorf("invalid control character: 0x%02x", c)
		}
	}
	return nil
}

// A lexer groups the lines of a score into sections. A section starts with
// "@kind", followed by properties, a blank line, and data lines. Lines
// starting with ';' are comments.
type lexer struct {
	sections []*section
	cur      *section
	inData   bool
	keys     map[string]bool
}

func (lx *lexer) line(lineno int, text []byte) error {
	text = bytes.Trim(text, " \t")
	if len(text) == 0 {
		if lx.cur != nil {
			lx.inData = true
		}
		return nil
	}
	if err := checkText(text); err != nil {
		return err
	}
	switch {
	case text[0] == ';':
		return nil
	case text[0] == '@':
		return lx.start(lineno, string(bytes.Trim(text[1:], " \t")))
	case lx.cur == nil:
		return errors.New("expected directive before data")
	case lx.inData:
		lx.cur.lines = append(lx.cur.lines, dataLine{lineno, string(text)})
		return nil
	}
	return lx.prop(lineno, text)
}

func (lx *lexer) start(lineno int, kind string) error {
	if kind == "" {
		return errors.New("missing section kind")
	}
	lx.cur = &section{lineno: lineno, kind: kind}
	lx.sections = append(lx.sections, lx.cur)
	lx.inData = false
	lx.keys = make(map[string]bool)
	return nil
}

func (lx *lexer) prop(lineno int, text []byte) error {
	key, value, ok := bytes.Cut(text, []byte{':'})
	if !ok {
		return errors.New("expected ':' in property")
	}
	k := string(bytes.Trim(key, " \t"))
	if k == "" {
		return errors.New("empty key")
	}
	if lx.keys[k] {
		return fmt.Errorf("duplicate property: %q", k)
	}
	lx.keys[k] = true
	lx.cur.props = append(lx.cur.props, prop{lineno, k, string(bytes.Trim(value, " \t"))})
	return nil
}

func lex(data []byte) ([]*section, error) {
	var lx lexer
	for i, text := range splitLines(data) {
		if err := lx.line(i+1, text); err != nil {
			return nil, &Error{i + 1, err}
		}
	}
	return lx.sections, nil
}

// =============================================================================

type info struct {
	name     string
	division int
	tempo    float64
	meter    token.TimeSig
}

func parseTempo(value string) (float64, error) {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if !(minTempo <= n && n <= maxTempo) {
		return 0, fmt.Errorf("tempo %g is not in allowed range %d..%d", n, minTempo, maxTempo)
	}
	return n, nil
}

func (d *info) setProp(key, value string) error {
	switch key {
	case "name":
		d.name = value
		return nil
	case "division":
		n, err := strconv.ParseUint(value, 10, strconv.IntSize-1)
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.New("division may not be 0")
		}
		d.division = int(n)
		return nil
	case "tempo":
		n, err := parseTempo(value)
		if err != nil {
			return err
		}
		d.tempo = n
		return nil
	case "meter":
		sig, err := token.ParseTimeSig(value)
		if err != nil {
			return err
		}
		d.meter = sig
		return nil
	default:
		return fmt.Errorf("unknown property key: %q", key)
	}
}

type trackInfo struct {
	track    Track
	velocity int
}

func (tr *trackInfo) setProp(key, value string) error {
	switch key {
	case "name":
		tr.track.Name = value
		return nil
	case "program":
		if value == "drums" {
			tr.track.IsDrum = true
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		if n < 0 || n > 127 {
			return fmt.Errorf("program %d out of range", n)
		}
		tr.track.Program = n
		return nil
	case "velocity":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		if n < 1 || n > 127 {
			return fmt.Errorf("velocity %d out of range", n)
		}
		tr.velocity = n
		return nil
	default:
		return fmt.Errorf("unknown property key: %q", key)
	}
}

type noteParser struct {
	division int
	velocity int
	meter    token.TimeSig
	time     int
	bar      int
	barstart int
	notes    []Note
	tempos   []TempoChange
	meters   []TimeSignature
}

func (p *noteParser) parseLine(text string) error {
	for _, tok := range strings.Fields(text) {
		if err := p.parseToken(tok); err != nil {
			return &tokErr{tok, err}
		}
	}
	return nil
}

type tokErr struct {
	tok string
	err error
}

func (e *tokErr) Error() string {
	return fmt.Sprintf("invalid token %q: %v", e.tok, e.err)
}

func (p *noteParser) parseDur(text string) (int, error) {
	n, err := strconv.ParseUint(text, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("invalid length: %v", err)
	}
	if n == 0 {
		return 0, errors.New("zero length")
	}
	return int(n), nil
}

var baseNote = [7]int{9, 11, 0, 2, 4, 5, 7}

func trimByteFront(text string, b uint8) (int, string) {
	var pos int
	for pos < len(text) && text[pos] == b {
		pos++
	}
	return pos, text[pos:]
}

// parsePitch parses a pitch such as "c4", "f#3", or "bb2".
func parsePitch(text string) (int, error) {
	if len(text) == 0 {
		return 0, errors.New("missing pitch")
	}
	c := text[0]
	if c < 'a' || 'g' < c {
		return 0, fmt.Errorf("unknown note name %q", c)
	}
	value := baseNote[int(c)-'a']
	text = text[1:]
	var n int
	if n, text = trimByteFront(text, '#'); n > 0 {
		if n > 3 {
			return 0, errors.New("too many sharps")
		}
		value += n
	} else if n, text = trimByteFront(text, 'b'); n > 0 {
		if n > 3 {
			return 0, errors.New("too many flats")
		}
		value -= n
	}
	oct, err := strconv.ParseInt(text, 10, strconv.IntSize)
	if err != nil {
		return 0, fmt.Errorf("invalid octave: %v", err)
	}
	if oct < -1 || 9 < oct {
		return 0, fmt.Errorf("octave out of range: %d", oct)
	}
	value += 12 * (int(oct) + 1)
	if value < 0 || 127 < value {
		return 0, errors.New("note out of range")
	}
	return value, nil
}

func (p *noteParser) ticksPerBar() int {
	return p.meter.TicksPerBar(p.division)
}

func (p *noteParser) parseToken(text string) error {
	if len(text) == 0 {
		panic("empty token")
	}
	switch c := text[0]; c {
	case 'r':
		dur, err := p.parseDur(text[1:])
		if err != nil {
			return err
		}
		p.time += dur
		return nil
	case '~':
		dur, err := p.parseDur(text[1:])
		if err != nil {
			return err
		}
		var tied bool
		for i := range p.notes {
			if n := &p.notes[i]; n.End == p.time {
				n.End += dur
				tied = true
			}
		}
		if !tied {
			return errors.New("cannot tie without note")
		}
		p.time += dur
		return nil
	case '|':
		if text != "|" {
			return errors.New("unexpected character after |")
		}
		barend := p.barstart + p.ticksPerBar()
		if p.time != barend {
			return fmt.Errorf("short measure in measure %d", p.bar+1)
		}
		p.barstart = barend
		p.bar++
		return nil
	case 'T':
		bpm, err := parseTempo(text[1:])
		if err != nil {
			return err
		}
		p.tempos = append(p.tempos, TempoChange{Time: p.time, Tempo: bpm})
		return nil
	case 'M':
		sig, err := token.ParseTimeSig(text[1:])
		if err != nil {
			return err
		}
		if p.time != p.barstart {
			return fmt.Errorf("meter change inside measure %d", p.bar+1)
		}
		p.meter = sig
		p.meters = append(p.meters, TimeSignature{Time: p.time, TimeSig: sig})
		return nil
	case 'a', 'b', 'c', 'd', 'e', 'f', 'g':
		i := strings.IndexByte(text, '.')
		if i == -1 {
			return errors.New("missing duration")
		}
		pitchText, durText := text[:i], text[i+1:]
		vel := p.velocity
		if j := strings.IndexByte(durText, '@'); j != -1 {
			v, err := strconv.Atoi(durText[j+1:])
			if err != nil || v < 1 || v > 127 {
				return fmt.Errorf("invalid velocity %q", durText[j+1:])
			}
			vel = v
			durText = durText[:j]
		}
		dur, err := p.parseDur(durText)
		if err != nil {
			return err
		}
		for _, ps := range strings.Split(pitchText, "/") {
			pitch, err := parsePitch(ps)
			if err != nil {
				return err
			}
			p.notes = append(p.notes, Note{
				Start:    p.time,
				End:      p.time + dur,
				Pitch:    pitch,
				Velocity: vel,
			})
		}
		p.time += dur
		return nil
	default:
		return errors.New("unknown token")
	}
}

// Parse parses a text score.
func Parse(data []byte) (*Score, error) {
	ss, err := lex(data)
	if err != nil {
		return nil, err
	}
	sn := Score{Division: defaultDivision}
	inf := info{division: defaultDivision, meter: token.DefaultTimeSig}
	var hasinfo bool
	var tempos []TempoChange
	var meters []TimeSignature
	for _, s := range ss {
		switch s.kind {
		case "info":
			if hasinfo {
				return nil, &Error{s.lineno, errors.New("duplicate info section")}
			}
			for _, p := range s.props {
				if err := inf.setProp(p.key, p.value); err != nil {
					return nil, &Error{p.lineno, err}
				}
			}
			for _, l := range s.lines {
				return nil, &Error{l.lineno, errors.New("unexpected data in this section type")}
			}
			sn.Division = inf.division
			if inf.tempo != 0 {
				tempos = append(tempos, TempoChange{Time: 0, Tempo: inf.tempo})
			}
			meters = append(meters, TimeSignature{Time: 0, TimeSig: inf.meter})
			hasinfo = true
		case "track":
			if !hasinfo {
				return nil, &Error{s.lineno, errors.New("track without score info")}
			}
			tr := trackInfo{velocity: defaultVelocity}
			for _, p := range s.props {
				if err := tr.setProp(p.key, p.value); err != nil {
					return nil, &Error{p.lineno, err}
				}
			}
			np := noteParser{
				division: inf.division,
				velocity: tr.velocity,
				meter:    inf.meter,
			}
			for _, l := range s.lines {
				if err := np.parseLine(l.text); err != nil {
					return nil, &Error{l.lineno, err}
				}
			}
			SortNotes(np.notes)
			tr.track.Notes = np.notes
			sn.Tracks = append(sn.Tracks, &tr.track)
			tempos = append(tempos, np.tempos...)
			meters = append(meters, np.meters...)
		default:
			return nil, &Error{s.lineno, fmt.Errorf("unknown section: %q", s.kind)}
		}
	}
	if !hasinfo {
		return nil, errors.New("score has no @info section")
	}
	if len(sn.Tracks) == 0 {
		return nil, errors.New("score has no tracks")
	}
	sn.Tempos = SortTempos(tempos)
	sn.TimeSignatures = SortTimeSignatures(meters)
	return &sn, nil
}
