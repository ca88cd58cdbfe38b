// Package watcher tokenizes score files as they change.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"moria.us/cptok/build/cpword"
	"moria.us/cptok/build/midi"
	"moria.us/cptok/build/score"
	"moria.us/cptok/build/tokfile"
)

type bstate uint32

const (
	bstateNone bstate = iota
	bstateBuilding
	bstateCanceled
)

const rebuildDelay = 100 * time.Millisecond

// A State is the result of tokenizing a file.
type State struct {
	File    string
	Removed bool
	Set     *tokfile.Set
	Errors  []float64
	Err     error
}

// IsScoreName returns true if the file name is a score which can be
// tokenized.
func IsScoreName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mid", ".midi", ".txt":
		return true
	}
	return false
}

// ReadScore reads a MIDI file or a text score.
func ReadScore(name string) (*score.Score, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mid", ".midi":
		return midi.ReadFile(name)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	s, err := score.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// Tokenize reads and tokenizes a score file, and scores the resulting
// sequences with the validator.
func Tokenize(tk *cpword.Tokenizer, name string) *State {
	st := State{File: name}
	s, err := ReadScore(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			st.Removed = true
		}
		st.Err = err
		return &st
	}
	seqs, err := tk.Encode(s)
	if err != nil {
		st.Err = fmt.Errorf("%s: %w", name, err)
		return &st
	}
	st.Set = tokfile.NewSet(tk, seqs, tk.Programs(s))
	st.Errors, st.Err = tk.ErrorsAll(seqs)
	return &st
}

type watcher struct {
	dir    string
	tok    *cpword.Tokenizer
	output chan<- *State
	delay  debounce

	pending   map[string]bool
	building  map[string]bool
	bstate    bstate
	wantbuild bool

	cancelfunc context.CancelFunc
	bresult    chan *State
}

// Watch tokenizes every score in a directory, and then each score again when
// it changes. The channel is closed when the context is done or watching
// fails, in which case the last state holds the error.
func Watch(ctx context.Context, dir string, tk *cpword.Tokenizer) (<-chan *State, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	ch := make(chan *State, 1)
	w := watcher{
		dir:      dir,
		tok:      tk,
		output:   ch,
		pending:  make(map[string]bool),
		building: make(map[string]bool),
	}
	go w.watch(ctx)
	return ch, nil
}

func (w *watcher) watch(ctx context.Context) {
	defer close(w.output)
	if err := w.watchFunc(ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.output <- &State{Err: err}
	}
	if w.cancelfunc != nil {
		w.cancelfunc()
	}
}

func (w *watcher) watchFunc(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return err
	}
	ents, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, ent := range ents {
		if ent.Type().IsRegular() && IsScoreName(ent.Name()) {
			w.pending[filepath.Join(w.dir, ent.Name())] = true
		}
	}
	if len(w.pending) > 0 {
		w.triggerBuild()
	}
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher channel closed")
			}
			if ev.Op == fsnotify.Chmod || !IsScoreName(filepath.Base(ev.Name)) {
				continue
			}
			logrus.Debugf("changed: %s (%v)", ev.Name, ev.Op)
			w.cancelBuild()
			w.pending[ev.Name] = true
			w.triggerBuild()
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher channel closed")
			}
			return err
		case <-w.delay.c:
			if w.delay.fire() && w.wantbuild && w.bstate == bstateNone {
				w.startBuild(ctx)
			}
		case s, ok := <-w.bresult:
			if !ok {
				w.bresult = nil
				w.bstate = bstateNone
				if w.cancelfunc != nil {
					w.cancelfunc()
					w.cancelfunc = nil
				}
				if w.wantbuild && !w.delay.armed() {
					w.startBuild(ctx)
				}
				continue
			}
			if w.bstate == bstateBuilding {
				delete(w.building, s.File)
				w.output <- s
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// cancelBuild stops the running build. Files it has not finished are
// tokenized again by the next build.
func (w *watcher) cancelBuild() {
	switch w.bstate {
	case bstateNone, bstateCanceled:
	case bstateBuilding:
		w.cancelfunc()
		w.cancelfunc = nil
		w.bstate = bstateCanceled
		for name := range w.building {
			w.pending[name] = true
		}
		clear(w.building)
	default:
		panic("unknown state")
	}
	w.wantbuild = false
}

func (w *watcher) triggerBuild() {
	w.delay.arm(rebuildDelay)
	w.wantbuild = true
}

func (w *watcher) startBuild(ctx context.Context) {
	if w.bstate != bstateNone {
		panic("invalid state")
	}
	files := make([]string, 0, len(w.pending))
	for name := range w.pending {
		files = append(files, name)
		w.building[name] = true
	}
	sort.Strings(files)
	clear(w.pending)
	ctx, cancel := context.WithCancel(ctx)
	w.bresult = make(chan *State, 1)
	go w.build(ctx, files, w.bresult)
	w.cancelfunc = cancel
	w.bstate = bstateBuilding
	w.wantbuild = false
}

func (w *watcher) build(ctx context.Context, files []string, out chan<- *State) {
	defer close(out)
	for _, name := range files {
		if ctx.Err() != nil {
			return
		}
		s := Tokenize(w.tok, name)
		if s.Err != nil && !s.Removed {
			logrus.Errorln(s.Err)
		}
		select {
		case out <- s:
		case <-ctx.Done():
			return
		}
	}
}
