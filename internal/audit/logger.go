package audit

import (
	"context"
	"log/slog"

	"smartbanker/backend/internal/telemetry"
	"smartbanker/backend/internal/telemetry/domain"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger records a single bank event. Used by the auth and ledger code paths.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, eventType, username string, metadata map[string]string)
}

// Logger implements AuditLogger by writing a structured log line and emitting the event
// asynchronously to the configured telemetry sinks.
type Logger struct {
	emitter     telemetry.EventEmitter
	source      string
	ipExtractor IPExtractor
	log         *slog.Logger
}

// NewLogger returns an AuditLogger tagging events with source. emitter may be nil; then events
// are only logged. ipExtractor may be nil; then ClientIP is used.
func NewLogger(emitter telemetry.EventEmitter, source string, ipExtractor IPExtractor) *Logger {
	if ipExtractor == nil {
		ipExtractor = ClientIP
	}
	return &Logger{emitter: emitter, source: source, ipExtractor: ipExtractor, log: slog.Default()}
}

// WithLogger sets the structured logger used for audit lines.
func (l *Logger) WithLogger(log *slog.Logger) *Logger {
	if log != nil {
		l.log = log
	}
	return l
}

// LogEvent records one event. Secrets must never be passed in metadata.
func (l *Logger) LogEvent(ctx context.Context, eventType, username string, metadata map[string]string) {
	if l == nil {
		return
	}
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if ip := l.ipExtractor(ctx); ip != "" {
		meta["ip"] = ip
	}
	event := domain.NewEvent(eventType, username, l.source, meta)
	l.log.InfoContext(ctx, "audit", "event_id", event.ID, "event_type", eventType, "username", username)
	telemetry.EmitAsync(l.emitter, ctx, event)
}
