package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/translation-relay/internal/observability"
	"github.com/lexiqai/translation-relay/internal/session"
)

// maxAudioFrame bounds a single websocket message (one second of 48 kHz PCM16)
const maxAudioFrame = 96000

var upgrader = websocket.Upgrader{
	// The page is served by this same process; there is no cross-origin client
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
}

// handleAudio relays binary PCM frames from the browser to the running
// recognizer. The socket is closed when the session stops.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	if !s.controller.AcceptsAudio() {
		writeJSON(w, http.StatusConflict, StatusResponse{Status: "error", Message: "no running session accepts pushed audio"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to upgrade audio connection")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxAudioFrame)

	done := s.controller.Done()
	finished := make(chan struct{})
	defer close(finished)

	go func() {
		select {
		case <-done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			conn.Close()
		case <-finished:
		}
	}()

	logger.Info().Msg("Audio stream connected")
	var total int

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("Audio stream read error")
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		if err := s.controller.WriteAudio(data); err != nil {
			if errors.Is(err, session.ErrNotRunning) {
				break
			}
			observability.RecordError("audio_write_error", "audio")
			logger.Warn().Err(err).Msg("Failed to relay audio frame")
			continue
		}

		observability.RecordAudioBytes(len(data))
		total += len(data)
	}

	logger.Info().Int("bytes", total).Msg("Audio stream closed")
}
