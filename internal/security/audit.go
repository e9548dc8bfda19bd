package security

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType categorizes audit events.
type EventType string

// Audit event types.
const (
	EventConversationCreate EventType = "conversation_create"
	EventConversationSwitch EventType = "conversation_switch"
	EventMemoryRecord       EventType = "memory_record"
	EventCompletion         EventType = "completion"
	EventCompletionFailure  EventType = "completion_failure"
	EventAuthSuccess        EventType = "auth_success"
	EventAuthFailure        EventType = "auth_failure"
	EventRateLimit          EventType = "rate_limit"
)

// AuditEvent is one JSONL audit record.
type AuditEvent struct {
	Timestamp      time.Time         `json:"timestamp"`
	Type           EventType         `json:"type"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Remote         string            `json:"remote,omitempty"`
	Detail         string            `json:"detail,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// AuditLoggerConfig configures the audit logger.
type AuditLoggerConfig struct {
	// Writer receives JSONL output. Nil disables writing.
	Writer io.Writer

	// Redactor, if non-nil, scrubs Detail and Metadata values.
	Redactor *Redactor

	// OnEvent, if non-nil, is called for every event.
	OnEvent func(AuditEvent)

	// Now overrides time.Now.
	Now func() time.Time
}

// AuditLogger writes structured audit events as JSONL.
// A nil *AuditLogger discards events.
type AuditLogger struct {
	writer   io.Writer
	redactor *Redactor
	onEvent  func(AuditEvent)
	now      func() time.Time
	mu       sync.Mutex
}

// NewAuditLogger creates an audit logger with the given configuration.
func NewAuditLogger(cfg AuditLoggerConfig) *AuditLogger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AuditLogger{
		writer:   cfg.Writer,
		redactor: cfg.Redactor,
		onEvent:  cfg.OnEvent,
		now:      now,
	}
}

// OpenAuditFile opens (or creates) path for appending audit records.
// The caller closes the returned file.
func OpenAuditFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("security: creating audit log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("security: opening audit log: %w", err)
	}
	return f, nil
}

// Log timestamps, redacts, and writes an event. The caller's Metadata map is
// never mutated.
func (l *AuditLogger) Log(event AuditEvent) {
	if l == nil {
		return
	}
	event.Timestamp = l.now()
	if len(event.Metadata) > 0 {
		event.Metadata = maps.Clone(event.Metadata)
	}

	if l.redactor != nil {
		event.Detail = l.redactor.Redact(event.Detail)
		for k, v := range event.Metadata {
			event.Metadata[k] = l.redactor.Redact(v)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.onEvent != nil {
		l.onEvent(event)
	}
	if l.writer != nil {
		_ = json.NewEncoder(l.writer).Encode(event)
	}
}
