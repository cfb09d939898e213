package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lexiqai/translation-relay/internal/session"
)

const maxControlBody = 1 << 16

// StartRequest is the optional body of POST /start_translation
type StartRequest struct {
	InputLanguage  string `json:"input_language"`
	OutputLanguage string `json:"output_language"`
}

// StatusResponse is the body of control endpoint replies
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type pageData struct {
	InputLanguage  string
	OutputLanguage string
	AudioPush      bool
	SampleRate     int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		InputLanguage:  s.opts.DefaultInputLanguage,
		OutputLanguage: s.opts.DefaultOutputLanguage,
		AudioPush:      s.opts.AudioPush,
		SampleRate:     s.opts.SampleRate,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to render page")
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	req, err := decodeStartRequest(r.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid start request body")
		writeJSON(w, http.StatusBadRequest, StatusResponse{Status: "error", Message: "invalid request body: " + err.Error()})
		return
	}

	if req.InputLanguage == "" {
		req.InputLanguage = s.opts.DefaultInputLanguage
	}
	if req.OutputLanguage == "" {
		req.OutputLanguage = s.opts.DefaultOutputLanguage
	}

	if err := s.controller.Restart(r.Context(), req.InputLanguage, req.OutputLanguage); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: "started"})
}

// decodeStartRequest accepts an empty body as "use the defaults"
func decodeStartRequest(body io.Reader) (StartRequest, error) {
	var req StartRequest

	dec := json.NewDecoder(io.LimitReader(body, maxControlBody))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return StartRequest{}, err
	}
	return req, nil
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.controller.Stop(r.Context())
	writeJSON(w, http.StatusOK, StatusResponse{Status: "stopped"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

// writeError maps controller errors onto HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, session.ErrNotConfigured):
		code = http.StatusInternalServerError
	case errors.Is(err, session.ErrProviderUnavailable):
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, StatusResponse{Status: "error", Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
