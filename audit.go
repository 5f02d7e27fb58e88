package authclient

import (
	"context"
	"io"
	"log/slog"

	"github.com/MrEthical07/authclient/internal/audit"
	"github.com/google/uuid"
)

// Audit event types emitted by the Manager.
const (
	AuditBootstrap    = "bootstrap"
	AuditLogin        = "login"
	AuditLoginFailed  = "login_failed"
	AuditLogout       = "logout"
	AuditForcedLogout = "forced_logout"
	AuditRegister     = "register"
	AuditRefresh      = "refresh"
)

// AuditEvent is one session lifecycle record.
type AuditEvent = audit.Event

// AuditSink receives audit events on the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events on a channel, mostly for tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = audit.JSONWriterSink

// LogAuditSink writes audit events as slog records.
type LogAuditSink = audit.LogSink

// NewLogAuditSink returns a sink logging each event to l.
func NewLogAuditSink(l *slog.Logger) LogAuditSink {
	return audit.LogSink{Logger: l}
}

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *audit.Dispatcher {
	return audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}

// auditEvent builds an event for the given session fields. err, when
// non-nil, is recorded by classification only.
func auditEvent(ctx context.Context, kind string, user *UserProfile, epoch uint64, err error) AuditEvent {
	ev := AuditEvent{
		ID:        uuid.NewString(),
		EventType: kind,
		Epoch:     epoch,
		RequestID: RequestIDFromContext(ctx),
		Success:   err == nil,
	}
	if user != nil {
		ev.Username = user.Username
		ev.UserID = user.ID
	}
	if err != nil {
		ev.Error = KindOf(err).String()
	}
	return ev
}
