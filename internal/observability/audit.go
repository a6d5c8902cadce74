package observability

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AuditEvent represents a structured event for the audit log
type AuditEvent struct {
	RequestID string                 `json:"request_id,omitempty"`
	Method    string                 `json:"method,omitempty"`
	Principal string                 `json:"principal"`
	Resource  string                 `json:"resource,omitempty"`
	Outcome   string                 `json:"outcome"` // "success", "error", "unauthorized", "invalid_params"
	Latency   time.Duration          `json:"latency_ms"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// AuditLogger handles recording and persisting audit events
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var (
	auditMu   sync.Mutex
	auditInst *AuditLogger
)

// GetAuditLogger returns the global audit logger instance, defaulting to
// stderr until InitAuditLogger points it at a file
func GetAuditLogger() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditInst == nil {
		auditInst = &AuditLogger{
			logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
		}
	}
	return auditInst
}

// InitAuditLogger initializes the global audit logger with a specific file
func InitAuditLogger(path string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	auditMu.Lock()
	auditInst = &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}
	auditMu.Unlock()
	return nil
}

// Record emits an audit event to the log file
func (a *AuditLogger) Record(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("request_id", event.RequestID).
		Str("method", event.Method).
		Str("principal", event.Principal).
		Str("resource", event.Resource).
		Str("outcome", event.Outcome).
		Int64("latency_ms", event.Latency.Milliseconds())

	if event.Metadata != nil {
		entry = entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// RecordRPCAudit records a protocol request outcome. Every request is
// recorded regardless of outcome.
func RecordRPCAudit(requestID, method, principal, resource, outcome string, latency time.Duration) {
	GetAuditLogger().Record(AuditEvent{
		RequestID: requestID,
		Method:    method,
		Principal: principal,
		Resource:  resource,
		Outcome:   outcome,
		Latency:   latency,
	})
}

// RecordSecurityAudit records an authorization denial or auth failure
func RecordSecurityAudit(action, principal, outcome string, metadata map[string]interface{}) {
	GetAuditLogger().Record(AuditEvent{
		Method:    action,
		Principal: principal,
		Outcome:   outcome,
		Metadata:  metadata,
	})
}
