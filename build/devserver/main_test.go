package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"moria.us/cptok/build/config"
	"moria.us/cptok/build/midi"
	"moria.us/cptok/build/tokfile"
	"moria.us/cptok/build/vocab"
	"moria.us/cptok/build/watcher"
)

const testScore = `
@info
division: 480

@track
name: piano

c4.480 e4.480 g4.960 |
`

func newTestHandler(t *testing.T, dir string) *handler {
	t.Helper()
	h, err := newHandler(config.Default(), dir)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func post(t *testing.T, h http.Handler, path, ctype string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	r.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func encode(t *testing.T, h *handler) []byte {
	t.Helper()
	w := post(t, h.routes(), "/api/encode", textType, []byte(testScore))
	if w.Code != http.StatusOK {
		t.Fatalf("encode: status %d: %s", w.Code, w.Body.String())
	}
	return w.Body.Bytes()
}

func TestEncodeDecode(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	data := encode(t, h)
	var set tokfile.Set
	if err := json.Unmarshal(data, &set); err != nil {
		t.Fatal(err)
	}
	if set.Width != h.vocab.Width() {
		t.Errorf("width = %d, expect %d", set.Width, h.vocab.Width())
	}
	if len(set.Sequences) != 1 {
		t.Fatalf("got %d sequences, expect 1", len(set.Sequences))
	}

	w := post(t, h.routes(), "/api/decode", jsonType, data)
	if w.Code != http.StatusOK {
		t.Fatalf("decode: status %d: %s", w.Code, w.Body.String())
	}
	if ctype := w.Header().Get("Content-Type"); ctype != midiType {
		t.Errorf("Content-Type = %q, expect %q", ctype, midiType)
	}
	s, err := midi.Read(w.Body)
	if err != nil {
		t.Fatal("midi.Read:", err)
	}
	if len(s.Tracks) != 1 {
		t.Fatalf("got %d tracks, expect 1", len(s.Tracks))
	}
	if n := len(s.Tracks[0].Notes); n != 3 {
		t.Errorf("got %d notes, expect 3", n)
	}
}

func TestEncodeMIDI(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	data := encode(t, h)
	w := post(t, h.routes(), "/api/decode", jsonType, data)
	if w.Code != http.StatusOK {
		t.Fatalf("decode: status %d", w.Code)
	}
	w2 := post(t, h.routes(), "/api/encode", midiType, w.Body.Bytes())
	if w2.Code != http.StatusOK {
		t.Fatalf("encode MIDI: status %d: %s", w2.Code, w2.Body.String())
	}
	var x, y tokfile.Set
	if err := json.Unmarshal(data, &x); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &y); err != nil {
		t.Fatal(err)
	}
	if len(x.Sequences) != len(y.Sequences) || len(x.Sequences[0]) != len(y.Sequences[0]) {
		t.Errorf("tokens differ after MIDI round trip")
	}
}

func TestErrors(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	data := encode(t, h)
	w := post(t, h.routes(), "/api/errors", jsonType, data)
	if w.Code != http.StatusOK {
		t.Fatalf("errors: status %d: %s", w.Code, w.Body.String())
	}
	var resp errorsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Errors) != 1 || resp.Errors[0] != 0 {
		t.Errorf("errors = %v, expect [0]", resp.Errors)
	}
}

func TestBadRequest(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	type testcase struct {
		path  string
		ctype string
		body  string
	}
	cases := []testcase{
		{"/api/encode", midiType, "not a MIDI file"},
		{"/api/encode", textType, "@track\nc4.xyz |\n"},
		{"/api/decode", jsonType, "{"},
		{"/api/decode", jsonType, `{"width":1,"sequences":[]}`},
		{"/api/errors", jsonType, `{"width":4,"extra":true}`},
	}
	for _, c := range cases {
		w := post(t, h.routes(), c.path, c.ctype, []byte(c.body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("POST %s %q: status %d, expect %d", c.path, c.body, w.Code, http.StatusBadRequest)
		}
	}
}

func TestVocab(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	w := get(t, h.routes(), "/api/vocab")
	if w.Code != http.StatusOK {
		t.Fatalf("vocab: status %d", w.Code)
	}
	var resp vocabResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Width != h.vocab.Width() || len(resp.Slots) != resp.Width {
		t.Fatalf("got width %d with %d slots, expect %d", resp.Width, len(resp.Slots), h.vocab.Width())
	}
	for i, s := range resp.Slots {
		if len(s.Labels) == 0 || s.Labels[0] != vocab.PadLabel {
			t.Errorf("slot %d (%s): first label is not %s", i, s.Kind, vocab.PadLabel)
		}
	}
}

func TestNotFound(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	w := get(t, h.routes(), "/missing")
	if w.Code != http.StatusNotFound {
		t.Errorf("status %d, expect %d", w.Code, http.StatusNotFound)
	}
	if ctype := w.Header().Get("Content-Type"); ctype != textType {
		t.Errorf("Content-Type = %q, expect %q", ctype, textType)
	}
}

// addFile tokenizes a file and stores its state in the handler.
func addFile(t *testing.T, h *handler, name, text string) {
	t.Helper()
	fname := filepath.Join(h.files.dir, name)
	if err := os.WriteFile(fname, []byte(text), 0666); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := make(chan *watcher.State, 1)
	ch <- watcher.Tokenize(h.tok, fname)
	close(ch)
	h.files.watch(ctx, ch)
}

func TestFiles(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	addFile(t, h, "song.txt", testScore)
	w := get(t, h.routes(), "/api/files")
	if w.Code != http.StatusOK {
		t.Fatalf("files: status %d", w.Code)
	}
	var ms []fileMessage
	if err := json.Unmarshal(w.Body.Bytes(), &ms); err != nil {
		t.Fatal(err)
	}
	if len(ms) != 1 {
		t.Fatalf("got %d files, expect 1", len(ms))
	}
	m := ms[0]
	if m.File != "song.txt" {
		t.Errorf("file = %q, expect %q", m.File, "song.txt")
	}
	if m.Error != "" {
		t.Errorf("error: %s", m.Error)
	}
	if m.Tokens == nil || len(m.Tokens.Sequences) != 1 {
		t.Errorf("missing tokens")
	}
}

func TestSocket(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	addFile(t, h, "song.txt", testScore)
	srv := httptest.NewServer(h.routes())
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket"
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatal("Dial:", err)
	}
	defer c.Close()
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatal("ReadMessage:", err)
	}
	var m fileMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.File != "song.txt" {
		t.Errorf("file = %q, expect %q", m.File, "song.txt")
	}
}
