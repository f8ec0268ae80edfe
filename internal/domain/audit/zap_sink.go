package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

// ZapSink writes audit events as structured log lines: JSON objects with an
// ISO-8601 timestamp, identity fields, and the redacted data payload.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps a zap logger as an audit sink.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("audit")}
}

// Write emits the event at info level.
func (s *ZapSink) Write(_ context.Context, event valueobject.AuditEvent) error {
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("eventType", string(event.EventType)),
		zap.Any("data", event.Data),
	}
	if event.TenantID != "" {
		fields = append(fields, zap.String("tenantId", event.TenantID))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("requestId", event.RequestID))
	}
	s.logger.Info("audit_event", fields...)
	return nil
}
