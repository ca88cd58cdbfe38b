package main

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"moria.us/cptok/build/watcher"
)

// files holds the latest state of each watched score and forwards new states
// to listeners.
type files struct {
	dir       string
	lock      sync.RWMutex
	data      map[string]*watcher.State
	listeners []chan<- *watcher.State
}

func (f *files) watch(ctx context.Context, ch <-chan *watcher.State) {
	for {
		s, ok := <-ch
		if !ok {
			if ctx.Err() == nil {
				logrus.Fatalln("watch channel closed")
			}
			return
		}
		if s.File == "" {
			logrus.Errorln("watcher:", s.Err)
			continue
		}

		f.lock.Lock()
		if f.data == nil {
			f.data = make(map[string]*watcher.State)
		}
		if s.Removed {
			delete(f.data, s.File)
		} else {
			f.data[s.File] = s
		}
		ls := f.listeners
		var pos int
		for _, l := range ls {
			select {
			case l <- s:
				ls[pos] = l
				pos++
			default:
				close(l)
			}
		}
		f.listeners = ls[:pos]
		for ; pos < len(ls); pos++ {
			ls[pos] = nil
		}
		f.lock.Unlock()
	}
}

// snapshot returns the latest states, ordered by file name.
func (f *files) snapshot() []*watcher.State {
	f.lock.RLock()
	ss := f.snapshotLocked()
	f.lock.RUnlock()
	return ss
}

func (f *files) snapshotLocked() []*watcher.State {
	ss := make([]*watcher.State, 0, len(f.data))
	for _, s := range f.data {
		ss = append(ss, s)
	}
	sort.Slice(ss, func(i, j int) bool { return ss[i].File < ss[j].File })
	return ss
}

// addListener registers a channel for new states and returns the current
// states. The channel is closed if the listener falls behind.
func (f *files) addListener(ch chan<- *watcher.State) []*watcher.State {
	if ch == nil {
		panic("nil channel")
	}

	f.lock.Lock()
	ss := f.snapshotLocked()
	f.listeners = append(f.listeners, ch)
	f.lock.Unlock()

	return ss
}

func (f *files) removeListener(ch chan<- *watcher.State) {
	f.lock.Lock()
	for i, l := range f.listeners {
		if l == ch {
			f.listeners[i] = f.listeners[len(f.listeners)-1]
			f.listeners[len(f.listeners)-1] = nil
			f.listeners = f.listeners[:len(f.listeners)-1]
			close(ch)
			break
		}
	}
	f.lock.Unlock()
}

// name returns the name of a file relative to the watched directory.
func (f *files) name(s *watcher.State) string {
	if rel, err := filepath.Rel(f.dir, s.File); err == nil {
		return filepath.ToSlash(rel)
	}
	return s.File
}
