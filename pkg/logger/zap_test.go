package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetLoggerLevelFallsBackToDebug(t *testing.T) {
	l := &zapLogger{cfg: &ZapConfig{Level: "verbose"}}
	if got := l.getLoggerLevel(); got.String() != "debug" {
		t.Fatalf("expected debug fallback, got %s", got)
	}
}

func TestWithFieldsStoresScopedLogger(t *testing.T) {
	l := InitializeTestZapLogger()
	ctx := l.WithFields(context.Background(), "participant_id", int64(7))

	if ctx.Value(loggerKey{}) == nil {
		t.Fatal("expected scoped logger in context")
	}
	// Scoped logger must be usable without panicking.
	l.Infof(ctx, "hello %d", 1)
}

func TestHTTPLoggerCapturesStatus(t *testing.T) {
	l := NewNop()
	h := HTTPLogger(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Context().Value(loggerKey{}) == nil {
			t.Error("expected request context to carry logger fields")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relay/worlds", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
}
