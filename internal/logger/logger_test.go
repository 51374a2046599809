package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"local", "dev", "docker", "prod"} {
		if _, err := NewLogger(env); err != nil {
			t.Errorf("env %s: unexpected error: %v", env, err)
		}
	}
}

func TestNewLogger_UnknownEnv(t *testing.T) {
	if _, err := NewLogger("staging"); err == nil {
		t.Fatal("expected an error for an unknown environment")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	if _, err := NewLogger("prod", "debug"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewLogger("prod", "verbose"); err == nil {
		t.Fatal("expected an error for an invalid level")
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := zap.NewNop()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("expected the stored logger back")
	}
}

func TestFromContext_Missing(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Error("missing logger must fall back to a nop logger, not nil")
	}
}
