package logger

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

func resetLogger() {
	global = nil
	once = sync.Once{}
	extractorsMu.Lock()
	extractors = nil
	extractorsMu.Unlock()
}

func TestInit(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{"json info", "info", "json", zapcore.InfoLevel, false},
		{"console debug", "debug", "console", zapcore.DebugLevel, false},
		{"json warn", "warn", "json", zapcore.WarnLevel, false},
		{"invalid level", "invalid", "json", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLogger()
			err := Init(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init(%q, %q) error = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
				return
			}
			if !tt.wantErr && GetLevel() != tt.wantLevel {
				t.Errorf("GetLevel() = %v, want %v", GetLevel(), tt.wantLevel)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	resetLogger()
	if err := Init("info", "json"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel(debug) error = %v", err)
	}
	if GetLevel() != zapcore.DebugLevel {
		t.Errorf("GetLevel() = %v, want debug", GetLevel())
	}
	if err := SetLevel("bogus"); err == nil {
		t.Error("SetLevel(bogus) should fail")
	}
	if Level().Level() != zapcore.DebugLevel {
		t.Errorf("Level().Level() = %v, want debug", Level().Level())
	}
}

func TestL_PanicsWithoutInit(t *testing.T) {
	resetLogger()

	defer func() {
		if r := recover(); r == nil {
			t.Error("L() should panic without Init()")
		}
	}()

	L()
}

func TestCtx_AppliesExtractors(t *testing.T) {
	resetLogger()
	if err := Init("error", "json"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if Ctx(context.Background()) != L() {
		t.Error("Ctx() without extractors should return the global logger")
	}

	var calls int
	RegisterExtractor(func(ctx context.Context) []zap.Field {
		calls++
		if v, ok := ctx.Value(ctxKey{}).(string); ok {
			return []zap.Field{zap.String("request_id", v)}
		}
		return nil
	})

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	if Ctx(ctx) == L() {
		t.Error("Ctx() with request id should return a child logger")
	}
	if calls != 1 {
		t.Errorf("extractor calls = %d, want 1", calls)
	}
}

func TestLoggingFunctions(t *testing.T) {
	resetLogger()
	if err := Init("debug", "json"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Debug("test debug")
	Info("test info")
	Warn("test warn")
	Error("test error")
	Named("bus").Info("named")
	if With() == nil {
		t.Error("With() returned nil")
	}
	if S() == nil {
		t.Error("S() returned nil")
	}
}

func TestSync(t *testing.T) {
	resetLogger()
	if err := Sync(); err != nil {
		t.Errorf("Sync() without Init error = %v", err)
	}
}
