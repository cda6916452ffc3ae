package sloghook

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactsKeys(t *testing.T) {
	var buf bytes.Buffer
	h := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), Options{})

	h.BackendError("set", "db:get:users:42", errors.New("boom"))
	out := buf.String()
	if strings.Contains(out, "users:42") {
		t.Fatalf("key should be redacted: %s", out)
	}
	if !strings.Contains(out, "querycache.backend_error") || !strings.Contains(out, "boom") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestSampling(t *testing.T) {
	var buf bytes.Buffer
	h := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), Options{
		SelfHealEvery: 3,
		Redact:        func(k string) string { return k },
	})
	for i := 0; i < 9; i++ {
		h.SelfHeal("k", "corrupt")
	}
	if n := strings.Count(buf.String(), "querycache.self_heal"); n != 3 {
		t.Fatalf("expected 3 sampled lines, got %d", n)
	}
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.InvalidateOutage("k", errors.New("a"), errors.New("b"))
	h.Lookup("users", "get", true)
}
