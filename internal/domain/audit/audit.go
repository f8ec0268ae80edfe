// Package audit emits structured, redacted events describing every decision,
// tool call, and error a run produces. Sinks never see unredacted data, and
// a failing sink never changes a run's outcome.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/safety"
	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

// Sink receives redacted audit events.
type Sink interface {
	Write(ctx context.Context, event valueobject.AuditEvent) error
}

// Logger fans events out to its sinks after redaction. It is safe for
// concurrent use; one process-wide Logger serves all requests, with
// request/tenant identity carried per call via WithContext.
type Logger struct {
	mu       sync.RWMutex
	sinks    []Sink
	redactor safety.RedactorConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewLogger builds an audit logger over the given sinks. String-pattern
// redaction is always enabled so credential-shaped values inside free text
// get scrubbed too.
func NewLogger(redactor safety.RedactorConfig, logger *zap.Logger, sinks ...Sink) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	redactor.RedactStringPatterns = true
	return &Logger{
		sinks:    sinks,
		redactor: redactor,
		logger:   logger,
		now:      time.Now,
	}
}

// AddSink attaches an additional sink.
func (l *Logger) AddSink(sink Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink)
}

// Record redacts data and writes the event to every sink. Sink failures are
// logged out-of-band and never propagated.
func (l *Logger) Record(ctx context.Context, tenantID, requestID string, eventType valueobject.AuditEventType, data map[string]any) {
	redacted, _ := safety.Redact(data, l.redactor).(map[string]any)
	event := valueobject.AuditEvent{
		Timestamp: l.now(),
		TenantID:  tenantID,
		RequestID: requestID,
		EventType: eventType,
		Data:      redacted,
	}

	l.mu.RLock()
	sinks := l.sinks
	l.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Write(ctx, event); err != nil {
			l.logger.Warn("audit sink write failed",
				zap.String("eventType", string(eventType)),
				zap.Error(err),
			)
		}
	}
}

// Emitter binds a Logger to one request's identity, satisfying the cycle's
// AuditEmitter capability.
type Emitter struct {
	logger    *Logger
	tenantID  string
	requestID string
}

// WithContext returns an emitter stamped with the request's identity.
func (l *Logger) WithContext(tenantID, requestID string) *Emitter {
	return &Emitter{logger: l, tenantID: tenantID, requestID: requestID}
}

// Emit records one event under the bound identity.
func (e *Emitter) Emit(ctx context.Context, eventType valueobject.AuditEventType, data map[string]any) {
	e.logger.Record(ctx, e.tenantID, e.requestID, eventType, data)
}
