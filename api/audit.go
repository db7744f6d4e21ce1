package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditSetup            AuditEvent = "totp_setup"
	AuditSetupFailure     AuditEvent = "totp_setup_failure"
	AuditVerifySuccess    AuditEvent = "verify_success"
	AuditVerifyFailure    AuditEvent = "verify_failure"
	AuditVerifyLimited    AuditEvent = "verify_rate_limited"
	AuditSessionRejected  AuditEvent = "session_rejected"
	AuditProjectMutation  AuditEvent = "project_mutation"
	AuditProductMutation  AuditEvent = "product_mutation"
	AuditOrderMutation    AuditEvent = "order_mutation"
	AuditSettingsMutation AuditEvent = "settings_mutation"
	AuditImageUploaded    AuditEvent = "image_uploaded"
	AuditUploadRejected   AuditEvent = "upload_rejected"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry. Attempt counts and secret
// material never appear here.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
}

// logFailure logs a declined operation with its reason.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
