package goSession

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event types. They replace interactive alerts: a UI subscribes through
// an [AuditSink] and decides how to present each one.
const (
	EventLoginSuccess           = "login_success"
	EventLoginFailure           = "login_failure"
	EventRegisterSuccess        = "register_success"
	EventRegisterFailure        = "register_failure"
	EventLogout                 = "logout"
	EventRefreshSuccess         = "refresh_success"
	EventRefreshFailure         = "refresh_failure"
	EventSessionRestored        = "session_restored"
	EventSessionMissing         = "session_missing"
	EventPasswordResetRequested = "password_reset_requested"
	EventPasswordChanged        = "password_changed"
	EventPasswordChangeFailure  = "password_change_failure"
)

// AuditEvent is one notification about a session transition.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	SubjectID string            `json:"subject_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}

// SinkFunc adapts a function to [AuditSink].
type SinkFunc func(ctx context.Context, event AuditEvent)

func (f SinkFunc) Emit(ctx context.Context, event AuditEvent) { f(ctx, event) }
