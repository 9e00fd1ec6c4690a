package instrumentation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Admin actions recorded in the audit log.
const (
	AuditImport         = "calendar_import"
	AuditSyncTriggered  = "calendar_sync_triggered"
	AuditCalendarChange = "calendar_id_changed"
	AuditBookingCancel  = "booking_cancelled"
	AuditBookingConfirm = "booking_confirmed"
	AuditAuthFailure    = "admin_auth_failed"
)

// AdminAction captures one administrative request for the audit log.
//
// RemoteAddr identifies the caller and is hashed unless the AuditLogger is
// configured to include PII.
type AdminAction struct {
	Action     string
	RemoteAddr string
	Target     string // booking id or calendar id

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewAdminAction starts timing an admin action.
func NewAdminAction(action, remoteAddr string) *AdminAction {
	return &AdminAction{
		Action:     action,
		RemoteAddr: remoteAddr,
		StartTime:  time.Now(),
	}
}

// WithTarget sets the affected resource.
func (a *AdminAction) WithTarget(target string) *AdminAction {
	a.Target = target
	return a
}

// WithSpanContext copies trace ids from the span in ctx.
func (a *AdminAction) WithSpanContext(ctx context.Context) *AdminAction {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		a.TraceID = sc.TraceID().String()
		a.SpanID = sc.SpanID().String()
	}
	return a
}

// Complete stops the timer and records the outcome.
func (a *AdminAction) Complete(err error) *AdminAction {
	a.Duration = time.Since(a.StartTime)
	a.Success = err == nil
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

// Status returns StatusSuccess or StatusError.
func (a *AdminAction) Status() string {
	if a.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the structured attributes for the action. The caller
// address is hashed unless includePII is set.
func (a *AdminAction) LogAttrs(includePII bool) []slog.Attr {
	caller := hashCaller(a.RemoteAddr)
	if includePII {
		caller = a.RemoteAddr
	}

	attrs := []slog.Attr{
		slog.String("action", a.Action),
		slog.String("caller", caller),
		slog.Duration("duration", a.Duration),
		slog.String("status", a.Status()),
	}
	if a.Target != "" {
		attrs = append(attrs, slog.String("target", a.Target))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID))
	}
	if a.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", a.SpanID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String("error", a.Error))
	}
	return attrs
}

func hashCaller(addr string) string {
	if addr == "" {
		return "unknown"
	}
	sum := sha256.Sum256([]byte(addr))
	return "client:" + hex.EncodeToString(sum[:8])
}

// AuditLogger writes admin actions to a dedicated audit stream.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger from config. A nil logger uses slog.Default.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With("component", "audit"),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// Log writes a completed admin action.
func (al *AuditLogger) Log(ctx context.Context, a *AdminAction) {
	if al == nil || !al.enabled {
		return
	}

	level := slog.LevelInfo
	msg := "admin_action"
	if !a.Success {
		level = slog.LevelWarn
		msg = "admin_action_failed"
	}
	al.logger.LogAttrs(ctx, level, msg, a.LogAttrs(al.includePII)...)
}
