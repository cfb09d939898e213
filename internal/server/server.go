// Package server exposes the translation session over HTTP: control
// endpoints, the Server-Sent Events stream, the audio ingest websocket and
// the browser client page.
package server

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/translation-relay/internal/relay"
	"github.com/lexiqai/translation-relay/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configures the HTTP surface
type Options struct {
	DefaultInputLanguage  string
	DefaultOutputLanguage string

	// PollInterval bounds how long a stream waits on an empty queue before
	// checking whether the session is still running
	PollInterval time.Duration

	// KeepAlive is the idle time after which a comment frame is sent on a
	// stream. Zero disables keep-alive frames.
	KeepAlive time.Duration

	// AudioPush tells the client page to capture the microphone and push it
	// over /audio
	AudioPush bool

	// SampleRate is the PCM rate the page captures at. Defaults to 16000.
	SampleRate int
}

// Server holds the HTTP handlers
type Server struct {
	controller *session.Controller
	queue      *relay.Queue
	opts       Options
	logger     zerolog.Logger
	page       *template.Template
}

// New creates a server around the controller and the queue it fills
func New(controller *session.Controller, queue *relay.Queue, opts Options, logger zerolog.Logger) (*Server, error) {
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = relay.DefaultPollTimeout
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}

	return &Server{
		controller: controller,
		queue:      queue,
		opts:       opts,
		logger:     logger.With().Str("component", "server").Logger(),
		page:       page,
	}, nil
}

// Register adds the translation routes to mux
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /start_translation", s.handleStart)
	mux.HandleFunc("POST /stop_translation", s.handleStop)
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /audio", s.handleAudio)
}

// Handler returns a mux with the translation routes behind the request logger
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return RequestLogger(s.logger)(mux)
}
