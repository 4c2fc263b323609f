package logging

import (
	"context"
	"testing"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil config uses defaults", cfg: nil},
		{name: "json format", cfg: &Config{Level: "info", Format: "json"}},
		{name: "console format", cfg: &Config{Level: "debug", Format: "console"}},
		{name: "invalid level", cfg: &Config{Level: "shout", Format: "json"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v, want nil", err)
			}
			if logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestNewWithOTELProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() {
		_ = provider.Shutdown(context.Background())
	}()

	logger, err := New(&Config{Level: "info", Format: "json"}, provider)
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}

	// Entries go through both the stderr core and the bridge.
	logger.Info(context.Background(), "bridge active")
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() error = %v, want nil", err)
	}
}

func TestContextFields(t *testing.T) {
	t.Run("request id carried through context", func(t *testing.T) {
		logger := NewTestLogger()

		ctx := WithRequestID(context.Background(), "req-42")
		logger.Info(ctx, "handling request")

		entries := logger.FilterMessage("handling request").All()
		if len(entries) != 1 {
			t.Fatalf("got %d entries, want 1", len(entries))
		}

		found := false
		for _, field := range entries[0].Context {
			if field.Key == "request.id" && field.String == "req-42" {
				found = true
			}
		}
		if !found {
			t.Errorf("request.id field missing: %+v", entries[0].Context)
		}
	})

	t.Run("no request id no fields", func(t *testing.T) {
		if fields := ContextFields(context.Background()); len(fields) != 0 {
			t.Errorf("ContextFields() = %v, want empty", fields)
		}
	})

	t.Run("empty id not stored", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "")
		if got := RequestIDFromContext(ctx); got != "" {
			t.Errorf("RequestIDFromContext() = %q, want empty", got)
		}
	})
}

func TestTestLoggerAssertLogged(t *testing.T) {
	logger := NewTestLogger()
	logger.Warn(context.Background(), "model call slow", zap.Int("passages", 100))
	logger.AssertLogged(t, zapcore.WarnLevel, "model call slow")
}
