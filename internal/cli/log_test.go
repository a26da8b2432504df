package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		level log.Level
		emit  func(*log.Logger)
		want  bool
	}{
		{"info at info", log.InfoLevel, func(l *log.Logger) { l.Info("ran kernel") }, true},
		{"debug at info", log.InfoLevel, func(l *log.Logger) { l.Debug("wrote traces") }, false},
		{"debug at debug", log.DebugLevel, func(l *log.Logger) { l.Debug("wrote traces") }, true},
		{"info at warn", log.WarnLevel, func(l *log.Logger) { l.Info("ran kernel") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.emit(newLogger(&buf, tt.level))
			assert.Equal(t, tt.want, buf.Len() > 0, "output %q", buf.String())
		})
	}
}

func TestNewLoggerReportsCallerAtDebug(t *testing.T) {
	var info, debug bytes.Buffer
	newLogger(&info, log.InfoLevel).Info("cache hit")
	newLogger(&debug, log.DebugLevel).Info("cache hit")

	assert.NotContains(t, info.String(), "log_test.go")
	assert.Contains(t, debug.String(), "log_test.go")
}

func TestSetLogLevelReportsCaller(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, log.InfoLevel)
	c.SetLogLevel(log.DebugLevel)

	c.Logger.Debug("rendered")
	assert.Contains(t, buf.String(), "rendered")
	assert.Contains(t, buf.String(), "log_test.go")
}

func TestTimerDone(t *testing.T) {
	var buf bytes.Buffer
	tm := startTimer(newLogger(&buf, log.InfoLevel))
	tm.done("rendered", "format", "svg", "cached", false)

	out := buf.String()
	assert.Contains(t, out, "rendered")
	assert.Contains(t, out, "format=svg")
	assert.Contains(t, out, "cached=false")
	assert.Contains(t, out, "took=")
}

func TestLoggerFromContext(t *testing.T) {
	assert.Same(t, log.Default(), loggerFromContext(context.Background()))

	var buf bytes.Buffer
	l := newLogger(&buf, log.InfoLevel).WithPrefix("matmul")
	got := loggerFromContext(withLogger(context.Background(), l))
	require.Same(t, l, got)

	got.Info("ran kernel", "values", 4)
	assert.Contains(t, buf.String(), "matmul")
	assert.Contains(t, buf.String(), "values=4")
}
