package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Component: component, Output: buf})
}

func TestNew_AttachesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentLedger)

	logger.Info("Ledger fetched", FieldRows, 3)

	out := buf.String()
	if !strings.Contains(out, "component=ledger") {
		t.Errorf("output missing component: %s", out)
	}
	if !strings.Contains(out, "rows=3") {
		t.Errorf("output missing rows: %s", out)
	}
	if logger.Component() != ComponentLedger {
		t.Errorf("Component() = %q, want %q", logger.Component(), ComponentLedger)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)

	ctx := WithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Error("FromContext did not return the stored logger")
	}

	fallback := FromContext(context.Background())
	if fallback == nil || fallback.Component() != "unknown" {
		t.Errorf("fallback logger = %+v, want unknown component", fallback)
	}
}

func TestMiddleware_InjectsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)

	var seen *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if seen != logger {
		t.Error("handler did not receive the injected logger")
	}
}

func TestStructuredLogger_HTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusBadGateway, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newBufferLogger(&buf, ComponentHTTP))
		r := httptest.NewRequest(http.MethodGet, "/ui/ledger?q=x", nil)

		sl.LogHTTPEnd(context.Background(), r, "req-1", tt.status, 12, "10.0.0.1")

		out := buf.String()
		if !strings.Contains(out, tt.level) {
			t.Errorf("status %d: output %q missing %s", tt.status, out, tt.level)
		}
		if !strings.Contains(out, "request_id=req-1") {
			t.Errorf("status %d: output missing request id: %s", tt.status, out)
		}
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentAuth))

	sl.LogError(context.Background(), "Token exchange failed", errors.New("bad code"), OpCallback, nil)

	out := buf.String()
	for _, want := range []string{"level=ERROR", `error="bad code"`, "operation=callback"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestLogFields_WithSessionTruncates(t *testing.T) {
	f := NewFields().WithSession("0123456789abcdef")
	if f[FieldSession] != "01234567" {
		t.Errorf("session field = %v, want 01234567", f[FieldSession])
	}
}
