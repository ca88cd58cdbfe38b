package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"moria.us/cptok/build/config"
	"moria.us/cptok/build/cpword"
	"moria.us/cptok/build/vocab"
	"moria.us/cptok/build/watcher"
)

const (
	textType = "text/plain; charset=UTF-8"
	jsonType = "application/json"
	midiType = "audio/midi"
)

type handler struct {
	tok   *cpword.Tokenizer
	vocab *vocab.Vocab
	files files
}

func newHandler(cfg *config.Config, dir string) (*handler, error) {
	tk, err := cpword.New(cfg)
	if err != nil {
		return nil, err
	}
	return &handler{
		tok:   tk,
		vocab: vocab.New(tk.Tables(), tk.Layout()),
		files: files{dir: dir},
	}, nil
}

func (h *handler) watch(ctx context.Context) {
	ch, err := watcher.Watch(ctx, h.files.dir, h.tok)
	if err != nil {
		logrus.Fatalln("watcher.Watch:", err)
	}
	h.files.watch(ctx, ch)
}

func (h *handler) routes() http.Handler {
	mx := chi.NewMux()
	mx.Post("/api/encode", h.serveEncode)
	mx.Post("/api/decode", h.serveDecode)
	mx.Post("/api/errors", h.serveErrors)
	mx.Get("/api/vocab", h.serveVocab)
	mx.Get("/api/files", h.serveFiles)
	mx.Get("/socket", h.serveSocket)
	mx.NotFound(h.serveNotFound)
	return mx
}

func logResponse(r *http.Request, status int, msg string) {
	if status >= 400 {
		if msg == "" {
			msg = http.StatusText(status)
		}
		logrus.Errorln(status, r.URL, msg)
	} else if msg == "" {
		logrus.Infoln(status, r.URL)
	} else {
		logrus.Infoln(status, r.URL, msg)
	}
}

func (h *handler) serveStatus(w http.ResponseWriter, r *http.Request, status int, msg string) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d %s\n", status, http.StatusText(status))
	if msg != "" {
		fmt.Fprintln(&b, msg)
	}
	hdr := w.Header()
	hdr.Set("Content-Type", textType)
	hdr.Set("Content-Length", strconv.Itoa(b.Len()))
	hdr.Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	w.Write(b.Bytes())
}

func (h *handler) serveError(w http.ResponseWriter, r *http.Request, a ...interface{}) {
	const status = http.StatusInternalServerError
	msg := fmt.Sprint(a...)
	logResponse(r, status, msg)
	h.serveStatus(w, r, status, msg)
}

func (h *handler) serveBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	const status = http.StatusBadRequest
	msg := err.Error()
	logResponse(r, status, msg)
	h.serveStatus(w, r, status, msg)
}

func (h *handler) serveNotFound(w http.ResponseWriter, r *http.Request) {
	logResponse(r, http.StatusNotFound, "")
	h.serveStatus(w, r, http.StatusNotFound, fmt.Sprintf("Page not found: %q", r.URL))
}

func (h *handler) serveData(w http.ResponseWriter, r *http.Request, ctype string, data []byte) {
	logResponse(r, http.StatusOK, "")
	hdr := w.Header()
	hdr.Set("Content-Type", ctype)
	hdr.Set("Content-Length", strconv.Itoa(len(data)))
	hdr.Set("Cache-Control", "no-cache")
	w.Write(data)
}

func mainE() error {
	fHost := pflag.String("host", "localhost", "host to serve from, or * to bind to all local addresses")
	fPort := pflag.Int("port", 9013, "port to serve from")
	fDir := pflag.String("dir", ".", "directory of scores to watch")
	fConfig := pflag.String("config", "", "tokenizer configuration file")
	fVerbose := pflag.BoolP("verbose", "v", false, "show debug messages")
	pflag.Parse()
	if args := pflag.Args(); len(args) != 0 {
		return fmt.Errorf("unexpected argument: %q", args[0])
	}
	if *fVerbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Default()
	if *fConfig != "" {
		var err error
		cfg, err = config.Load(*fConfig)
		if err != nil {
			return err
		}
	}
	ctx := context.Background()
	log := logrus.StandardLogger()
	host := *fHost
	var addrs []net.IPAddr
	if host == "*" {
		addrs = []net.IPAddr{{IP: net.IPv6zero}}
		host = "localhost"
	} else {
		var err error
		rslv := net.DefaultResolver
		addrs, err = rslv.LookupIPAddr(ctx, host)
		if err != nil {
			return fmt.Errorf("could not look up host: %v", err)
		}
		if host == "" {
			host = "localhost"
		}
	}
	h, err := newHandler(cfg, *fDir)
	if err != nil {
		return err
	}
	go h.watch(ctx)
	s := http.Server{
		Handler:     h.routes(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	var root *url.URL
	for _, addr := range addrs {
		ta := net.TCPAddr{
			IP:   addr.IP,
			Zone: addr.Zone,
			Port: *fPort,
		}
		l, err := net.ListenTCP("tcp", &ta)
		if err != nil {
			return err
		}
		if root == nil {
			root = &url.URL{
				Scheme: "http",
				Host:   net.JoinHostPort(host, strconv.Itoa(*fPort)),
				Path:   "/",
			}
			log.Infoln("Serving on:", root)
		}
		go func(l *net.TCPListener) {
			err := s.Serve(l)
			log.Fatalln("serve:", err)
		}(l)
	}
	if root == nil {
		return errors.New("no address to serve on")
	}
	select {}
}

func main() {
	if err := mainE(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
