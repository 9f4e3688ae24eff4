//go:build !integration

package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithReference(ctx, "gym_ref")

	With(ctx, &base).Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{`"trace_id":"trace-1"`, `"user_id":"user-1"`, `"reference":"gym_ref"`} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
	if TraceID(ctx) != "trace-1" {
		t.Errorf("expected trace id round trip, got %q", TraceID(ctx))
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("member@example.com", false); got != "memb...om" {
		t.Errorf("unexpected redaction %q", got)
	}
	if got := Redact("short", false); got != "***" {
		t.Errorf("expected short values fully masked, got %q", got)
	}
	if got := Redact("member@example.com", true); got != "member@example.com" {
		t.Errorf("expected dev mode to keep value, got %q", got)
	}
}
