// Package notify decouples workflow outcomes from their delivery. The
// coordinator publishes events through a Sink; the ws hub fans them out
// to the owner's live connections.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event types published by the workflow coordinator.
const (
	EventGenerationStarted   = "generation.started"
	EventGenerationCompleted = "generation.completed"
	EventGenerationFailed    = "generation.failed"
	EventDraftSaved          = "draft.saved"
	EventDraftScheduled      = "draft.scheduled"
	EventDraftPublished      = "draft.published"
)

type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId"`
	Operation string    `json:"operation,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives events addressed to a single user.
type Sink interface {
	Publish(ctx context.Context, userID string, event Event)
}

// LogSink writes events to the log. It backs the hub in tests and is a
// reasonable default when no live transport is wired.
type LogSink struct {
	Logger *zap.SugaredLogger
}

func (s *LogSink) Publish(ctx context.Context, userID string, event Event) {
	s.Logger.Debugw("Notification",
		"user", userID,
		"type", event.Type,
		"session_id", event.SessionID,
		"operation", event.Operation,
		"message", event.Message,
	)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Publish(ctx context.Context, userID string, event Event) {}
