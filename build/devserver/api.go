package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"moria.us/cptok/build/midi"
	"moria.us/cptok/build/score"
	"moria.us/cptok/build/tokfile"
)

const maxBody = 16 << 20

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
}

// readSet reads a JSON token set from the request body.
func (h *handler) readSet(w http.ResponseWriter, r *http.Request) (*tokfile.Set, error) {
	data, err := readBody(w, r)
	if err != nil {
		return nil, err
	}
	var s tokfile.Set
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Width != h.vocab.Width() {
		return nil, fmt.Errorf("tokens have width %d, vocabulary has width %d", s.Width, h.vocab.Width())
	}
	return &s, nil
}

func (h *handler) serveJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.serveError(w, r, err)
		return
	}
	h.serveData(w, r, jsonType, data)
}

// serveEncode tokenizes a score. The body is a MIDI file, or a text score if
// the content type is text/plain.
func (h *handler) serveEncode(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		h.serveBadRequest(w, r, err)
		return
	}
	var s *score.Score
	ctype, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ctype == "text/plain" {
		s, err = score.Parse(data)
	} else {
		s, err = midi.Read(bytes.NewReader(data))
	}
	if err != nil {
		h.serveBadRequest(w, r, err)
		return
	}
	seqs, err := h.tok.Encode(s)
	if err != nil {
		h.serveBadRequest(w, r, err)
		return
	}
	h.serveJSON(w, r, tokfile.NewSet(h.tok, seqs, h.tok.Programs(s)))
}

// serveDecode converts JSON tokens to a MIDI file.
func (h *handler) serveDecode(w http.ResponseWriter, r *http.Request) {
	set, err := h.readSet(w, r)
	if err != nil {
		h.serveBadRequest(w, r, err)
		return
	}
	s, err := h.tok.Decode(set.Sequences, set.Programs, 0)
	if err != nil {
		h.serveBadRequest(w, r, err)
		return
	}
	var b bytes.Buffer
	if err := midi.Write(&b, s); err != nil {
		h.serveError(w, r, err)
		return
	}
	h.serveData(w, r, midiType, b.Bytes())
}

type errorsResponse struct {
	Errors []float64 `json:"errors"`
}

// serveErrors returns the error ratio of each sequence in a JSON token set.
func (h *handler) serveErrors(w http.ResponseWriter, r *http.Request) {
	set, err := h.readSet(w, r)
	if err != nil {
		h.serveBadRequest(w, r, err)
		return
	}
	ratios, err := h.tok.ErrorsAll(set.Sequences)
	if err != nil {
		h.serveBadRequest(w, r, err)
		return
	}
	if ratios == nil {
		ratios = []float64{}
	}
	h.serveJSON(w, r, &errorsResponse{Errors: ratios})
}

type vocabSlot struct {
	Kind   string   `json:"kind"`
	Labels []string `json:"labels"`
}

type vocabResponse struct {
	Width int         `json:"width"`
	Slots []vocabSlot `json:"slots"`
}

func (h *handler) serveVocab(w http.ResponseWriter, r *http.Request) {
	v := h.vocab
	resp := vocabResponse{Width: v.Width()}
	for i := 0; i < v.Width(); i++ {
		resp.Slots = append(resp.Slots, vocabSlot{
			Kind:   v.Layout().SlotKind(i).String(),
			Labels: v.Labels(i),
		})
	}
	h.serveJSON(w, r, &resp)
}

// serveFiles returns the latest state of each watched score.
func (h *handler) serveFiles(w http.ResponseWriter, r *http.Request) {
	ss := h.files.snapshot()
	ms := make([]*fileMessage, len(ss))
	for i, s := range ss {
		ms[i] = h.fileMessage(s)
	}
	h.serveJSON(w, r, ms)
}
