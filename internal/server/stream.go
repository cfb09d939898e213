package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/translation-relay/internal/observability"
)

var keepAliveFrame = []byte(": keepalive\n\n")

// formatFrame renders one event-stream frame carrying a translation
func formatFrame(text string) ([]byte, error) {
	var value bytes.Buffer
	enc := json.NewEncoder(&value)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(text); err != nil {
		return nil, err
	}

	var frame bytes.Buffer
	frame.WriteString(`data: {"translation": `)
	frame.Write(bytes.TrimRight(value.Bytes(), "\n"))
	frame.WriteString("}\n\n")
	return frame.Bytes(), nil
}

// handleStream drains the relay queue to the client until the session stops
// or the client goes away. Opened while nothing runs, it ends at once with
// an empty body.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	rc := http.NewResponseController(w)

	// Server write timeouts must not cut a long-lived stream
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Warn().Err(err).Msg("Failed to clear stream write deadline")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Done is taken before the running check so a Stop in between is seen
	done := s.controller.Done()
	if !s.controller.Running() {
		return
	}

	if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return
	}

	observability.StreamOpened()
	defer observability.StreamClosed()

	ctx := r.Context()
	lastWrite := time.Now()
	sent := 0

	defer func() {
		logger.Debug().Int("frames", sent).Msg("Stream closed")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		default:
		}

		text, ok := s.queue.Pop(ctx, s.opts.PollInterval)
		if !ok {
			if s.opts.KeepAlive > 0 && time.Since(lastWrite) >= s.opts.KeepAlive {
				if err := s.write(rc, w, keepAliveFrame); err != nil {
					return
				}
				lastWrite = time.Now()
			}
			continue
		}

		observability.SetQueueDepth(s.queue.Len())

		frame, err := formatFrame(text)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to encode translation frame")
			continue
		}
		if err := s.write(rc, w, frame); err != nil {
			logger.Debug().Err(err).Msg("Stream client write failed")
			return
		}

		observability.RecordFrameSent()
		lastWrite = time.Now()
		sent++
	}
}

func (s *Server) write(rc *http.ResponseController, w http.ResponseWriter, frame []byte) error {
	if _, err := w.Write(frame); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
