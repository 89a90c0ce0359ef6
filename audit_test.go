package goSession

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/api"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func drainEvents(sink *ChannelSink) []AuditEvent {
	var events []AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	d := newDevAPI(t, nil)
	sink := &countingSink{}
	client := newTestClient(t, d, func(b *Builder) { b.WithAuditSink(sink) })

	if _, err := client.Login(context.Background(), api.LoginRequest{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("login: %v", err)
	}
	client.Logout(context.Background())
	_ = client.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no audit events while disabled, got %d", sink.Count())
	}
	if client.AuditDropped() != 0 {
		t.Fatal("expected zero dropped with audit disabled")
	}
}

func TestAuditLoginEventFields(t *testing.T) {
	d := newDevAPI(t, nil)
	sink := NewChannelSink(16)
	client := newTestClient(t, d, func(b *Builder) {
		cfg := DefaultConfig()
		cfg.API.BaseURL = d.url
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(sink)
	})

	ctx := WithRequestID(context.Background(), "req-42")
	if _, err := client.Login(ctx, api.LoginRequest{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("login: %v", err)
	}
	_ = client.Close()

	events := drainEvents(sink)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	ev := events[0]
	if ev.EventType != EventLoginSuccess || !ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.SubjectID != "1" || ev.RequestID != "req-42" {
		t.Fatalf("expected subject and request id, got %+v", ev)
	}
	if !ev.Timestamp.Equal(d.clock.Now().UTC()) {
		t.Fatalf("expected event stamped with client clock, got %v", ev.Timestamp)
	}
}

func TestAuditLoginFailureCodes(t *testing.T) {
	d := newDevAPI(t, nil)
	sink := NewChannelSink(16)
	client := newTestClient(t, d, func(b *Builder) {
		cfg := DefaultConfig()
		cfg.API.BaseURL = d.url
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(sink)
	})
	ctx := context.Background()

	_, _ = client.Login(ctx, api.LoginRequest{Email: "nope", Password: "x"})
	_, _ = client.Login(ctx, api.LoginRequest{Email: testEmail, Password: "wrong-horse"})
	_ = client.Close()

	events := drainEvents(sink)
	if len(events) != 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}
	if events[0].Error != string(auditErrValidation) {
		t.Fatalf("expected validation code, got %q", events[0].Error)
	}
	if events[1].Error != string(auditErrUnauthorized) {
		t.Fatalf("expected unauthorized code, got %q", events[1].Error)
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink, nil)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink, nil)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditBlockedEmitGivesUpOnContext(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink, nil)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	dispatcher.Emit(ctx, AuditEvent{EventType: "e3"})

	if dispatcher.Dropped() != 1 {
		t.Fatalf("expected one dropped event, got %d", dispatcher.Dropped())
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventRefreshSuccess,
		SubjectID: "u1",
		RequestID: "r1",
		Success:   true,
	}
	sink.Emit(context.Background(), event)
	sink.Emit(context.Background(), event)

	if !buf.Contains("refresh_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"subject_id\":\"u1\"") {
		t.Fatal("expected JSON log line to contain subject id")
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Fatalf("expected two lines, got %d", n)
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	sink := &countingSink{}
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, sink, nil)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	if sink.Count() != 1 {
		t.Fatalf("expected queued event flushed on close, got %d", sink.Count())
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	d := newDevAPI(t, nil)
	var buf syncBuffer
	client := newTestClient(t, d, func(b *Builder) {
		cfg := DefaultConfig()
		cfg.API.BaseURL = d.url
		cfg.Audit.Enabled = true
		cfg.Audit.BufferSize = 32
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(NewJSONWriterSink(&buf))
	})
	ctx := context.Background()

	if _, err := client.Login(ctx, api.LoginRequest{Email: testEmail, Password: testPassword}); err != nil {
		t.Fatalf("login: %v", err)
	}
	staleAccess, _, err := client.EnsureFreshCredentials(ctx)
	if err != nil {
		t.Fatalf("ensure fresh: %v", err)
	}
	d.clock.Advance(2 * time.Minute)
	freshAccess, _, err := client.EnsureFreshCredentials(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	_, _ = client.Login(ctx, api.LoginRequest{Email: testEmail, Password: "wrong-horse-secret"})
	client.Logout(ctx)
	_ = client.Close()

	out := buf.String()
	if out == "" {
		t.Fatal("expected audit output")
	}
	for _, needle := range []string{testPassword, "wrong-horse-secret", staleAccess, freshAccess} {
		if strings.Contains(out, needle) {
			t.Fatalf("sensitive value leaked in audit output: %q", needle)
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func (b *syncBuffer) Contains(v string) bool {
	return strings.Contains(b.String(), v)
}
