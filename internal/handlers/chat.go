package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Outgoing message bounds, in characters after trimming.
const (
	minMessageLen = 1
	maxMessageLen = 2000
)

// HandleChat accepts the user's outgoing message through form data, validates its
// length, and forwards it to the session controller. Transcript growth streams to the
// page over SSE, so a successful submit has no response body.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := strings.TrimSpace(r.FormValue("message"))
	if utf8.RuneCountInString(msg) < minMessageLen {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}
	if utf8.RuneCountInString(msg) > maxMessageLen {
		http.Error(w, "Message is too long", http.StatusBadRequest)
		return
	}

	if err := m.controller.Submit(msg); err != nil {
		m.logger.Error("Failed to submit message", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleStop cancels the in-flight assistant reply.
func (m Main) HandleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.controller.Stop()
	w.WriteHeader(http.StatusNoContent)
}

// HandleReset clears the conversation and pushes the emptied transcript to connected
// clients so the user sees the cleared chat immediately.
func (m Main) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.controller.Reset()
	m.PublishTranscript(m.controller.Messages())

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("conversation cleared")); err != nil {
		m.logger.Error("Failed to write response", slog.String(errLoggerKey, err.Error()))
	}
}
