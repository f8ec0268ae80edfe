package valueobject

import "time"

// AuditEventType enumerates the events the core emits to the audit sink
//.
type AuditEventType string

const (
	EventAgentDecision AuditEventType = "agent_decision"
	EventToolCall      AuditEventType = "tool_call"
	EventLLMRequest    AuditEventType = "llm_request"
	EventError         AuditEventType = "error"
	EventRunStart      AuditEventType = "run_start"
	EventRunProgress   AuditEventType = "run_progress"
	EventRunComplete   AuditEventType = "run_complete"
)

// AuditEvent is a single structured audit record. Data is redacted before
// any sink observes it.
type AuditEvent struct {
	Timestamp time.Time
	TenantID  string
	RequestID string
	EventType AuditEventType
	Data      map[string]any
}
