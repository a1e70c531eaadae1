package ws

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/contentgen/contentgen-backend/internal/auth"
)

// SSEHandler streams the same per-user events as the WebSocket hub for
// clients that prefer EventSource.
type SSEHandler struct {
	hub    *Hub
	logger *zap.SugaredLogger
}

func NewSSEHandler(hub *Hub, logger *zap.SugaredLogger) *SSEHandler {
	return &SSEHandler{hub: hub, logger: logger}
}

func (s *SSEHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cancel := s.hub.Subscribe(userID)
	defer cancel()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debugw("SSE client disconnected", "user", userID)
			return

		case payload := <-events:
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
