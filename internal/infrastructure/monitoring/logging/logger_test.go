package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// newObservedLogger returns a Logger whose entries are captured in memory.
func newObservedLogger() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &zapLogger{z: zap.New(core)}, logs
}

func TestNewLogger_JSONFormat(t *testing.T) {
	cfg := LogConfig{Level: "info", Format: "json"}
	l, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_TextFormat(t *testing.T) {
	cfg := LogConfig{Level: "debug", Format: "text"}
	l, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_EmptyConfigUsesDefaults(t *testing.T) {
	l, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_WithSampling(t *testing.T) {
	cfg := LogConfig{Level: "info", Format: "json", SamplingRate: 100}
	l, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_InvalidOutputPath(t *testing.T) {
	cfg := LogConfig{Output: "scheme://not-registered"}
	l, err := NewLogger(cfg)
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestParseLevel_KnownLevels(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
}

func TestParseLevel_UnknownDefaultsToInfo(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestZapLogger_EmitsAllLevels(t *testing.T) {
	l, logs := newObservedLogger()

	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	require.Equal(t, 4, logs.Len())
	entries := logs.All()
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "debug msg", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "error msg", entries[3].Message)
}

func TestZapLogger_TypedFields(t *testing.T) {
	l, logs := newObservedLogger()

	l.Info("msg",
		String("s", "v"),
		Int("i", 7),
		Int64("i64", int64(9)),
		Float64("f", 1.5),
		Bool("b", true),
		Duration("d", time.Second),
	)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "v", ctx["s"])
	assert.Equal(t, int64(7), ctx["i"])
	assert.Equal(t, int64(9), ctx["i64"])
	assert.Equal(t, 1.5, ctx["f"])
	assert.Equal(t, true, ctx["b"])
}

func TestErr_CapturesMessage(t *testing.T) {
	l, logs := newObservedLogger()

	l.Error("failed", Err(errors.New("boom")))

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "boom", ctx["error"])
}

func TestErr_NilError(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestZapLogger_With_AddsFieldsToChildOnly(t *testing.T) {
	l, logs := newObservedLogger()

	child := l.With(String("job_id", "j-1"))
	child.Info("child msg")
	l.Info("parent msg")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "j-1", logs.All()[0].ContextMap()["job_id"])
	assert.NotContains(t, logs.All()[1].ContextMap(), "job_id")
}

func TestZapLogger_Named(t *testing.T) {
	l, logs := newObservedLogger()

	l.Named("worker").Info("msg")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "worker", logs.All()[0].LoggerName)
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	// Must not panic.
	l.Debug("msg")
	l.Info("msg", String("k", "v"))
	l.Warn("msg")
	l.Error("msg", Err(errors.New("x")))
}

func TestNopLogger_WithAndNamed_ReturnSelf(t *testing.T) {
	l := NewNopLogger()
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("sub"))
}

func TestSetDefault_ReplacesGlobal(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, _ := newObservedLogger()
	SetDefault(l)
	assert.Equal(t, l, Default())
}

func TestSetDefault_IgnoresNil(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	SetDefault(nil)
	assert.NotNil(t, Default())
}

func TestNewLoggerFromCore(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewLoggerFromCore(core)
	l.Info("msg")
	assert.Equal(t, 1, logs.Len())
}
