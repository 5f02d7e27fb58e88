package authclient

import (
	"context"
	"testing"
)

func withAuditSink(sink AuditSink) harnessOption {
	return func(b *Builder, _ *Config) { b.WithAuditSink(sink) }
}

func TestAuditRecordsSessionLifecycle(t *testing.T) {
	sink := NewChannelSink(32)
	h := newServerHarness(t, "", withAuditSink(sink))

	if err := h.client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.manager.Login(context.Background(), "alice", "wrong-password")
	h.manager.Login(context.Background(), "alice", "alice-password")
	h.manager.Logout(context.Background())
	h.client.Close()

	want := []struct {
		kind    string
		success bool
	}{
		{AuditBootstrap, true},
		{AuditLoginFailed, false},
		{AuditLogin, true},
		{AuditLogout, true},
	}
	for i, w := range want {
		select {
		case ev := <-sink.Events():
			if ev.EventType != w.kind || ev.Success != w.success {
				t.Fatalf("event %d: got %s/%v, want %s/%v", i, ev.EventType, ev.Success, w.kind, w.success)
			}
			if ev.ID == "" || ev.Timestamp.IsZero() {
				t.Fatalf("event %d missing id or timestamp: %+v", i, ev)
			}
			if w.kind != AuditBootstrap && ev.Username != "alice" {
				t.Fatalf("event %d: expected alice, got %q", i, ev.Username)
			}
			if w.kind == AuditLoginFailed && ev.Error != KindInvalidCredentials.String() {
				t.Fatalf("expected invalid credentials kind, got %q", ev.Error)
			}
		default:
			t.Fatalf("missing audit event %d (%s)", i, w.kind)
		}
	}
	if h.client.AuditDropped() != 0 {
		t.Fatalf("expected no dropped events")
	}
}

func TestAuditDisabledByDefault(t *testing.T) {
	h := newServerHarness(t, "")
	if err := h.client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h.client.AuditDropped() != 0 {
		t.Fatalf("disabled audit must report no drops")
	}
}

func TestAuditEventCarriesRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-9")
	ev := auditEvent(ctx, AuditLogin, &UserProfile{ID: 4, Username: "ada"}, 3, nil)
	if ev.RequestID != "req-9" || ev.UserID != 4 || ev.Epoch != 3 || !ev.Success {
		t.Fatalf("unexpected event: %+v", ev)
	}

	ev = auditEvent(ctx, AuditForcedLogout, nil, 5, &APIError{Kind: KindUnauthorized})
	if ev.Success || ev.Error != "unauthorized" || ev.Username != "" {
		t.Fatalf("unexpected failure event: %+v", ev)
	}
}
