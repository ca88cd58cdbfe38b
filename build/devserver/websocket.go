package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"moria.us/cptok/build/tokfile"
	"moria.us/cptok/build/watcher"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 60 * time.Second
)

var upgrader = websocket.Upgrader{}

type wshandler struct {
	handler *handler
	conn    *websocket.Conn
}

func (h *handler) serveSocket(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorln("Upgrade:", err)
		return
	}
	wh := wshandler{
		handler: h,
		conn:    c,
	}
	endch := make(chan struct{})
	go wh.read(endch)
	go wh.write(endch)
}

func (h *wshandler) read(endch chan struct{}) {
	defer close(endch)
	for {
		mt, _, err := h.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.Errorln("Websocket read:", err)
			}
			break
		}
		logrus.Infoln("Websocket message:", mt)
	}
}

func (h *wshandler) write(endch chan struct{}) {
	defer h.conn.Close()
	ch := make(chan *watcher.State, 10)
	ss := h.handler.files.addListener(ch)
	defer h.handler.files.removeListener(ch)
	for _, s := range ss {
		if err := h.send(s); err != nil {
			logrus.Error("Websocket send:", err)
			return
		}
	}
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return
			}
			if err := h.send(s); err != nil {
				logrus.Error("Websocket send:", err)
				return
			}
		case <-t.C:
			h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := h.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.Error("Websocket ping:", err)
				return
			}
		case <-endch:
			return
		}
	}
}

// A fileMessage reports the state of one score file.
type fileMessage struct {
	File    string       `json:"file"`
	Removed bool         `json:"removed,omitempty"`
	Error   string       `json:"error,omitempty"`
	Errors  []float64    `json:"errors,omitempty"`
	Tokens  *tokfile.Set `json:"tokens,omitempty"`
}

func (h *handler) fileMessage(s *watcher.State) *fileMessage {
	m := fileMessage{
		File:    h.files.name(s),
		Removed: s.Removed,
		Errors:  s.Errors,
		Tokens:  s.Set,
	}
	if s.Err != nil {
		m.Error = s.Err.Error()
	}
	return &m
}

func (h *wshandler) send(s *watcher.State) error {
	md, err := json.Marshal(h.handler.fileMessage(s))
	if err != nil {
		return err
	}
	h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return h.conn.WriteMessage(websocket.TextMessage, md)
}
