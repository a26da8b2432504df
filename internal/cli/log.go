package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns the logger shared by all commands. At debug level it
// also reports the calling file.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    level <= log.DebugLevel,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// timer measures one step of a command.
type timer struct {
	logger *log.Logger
	start  time.Time
}

func startTimer(l *log.Logger) timer {
	return timer{logger: l, start: time.Now()}
}

// done logs msg at info level with keyvals and the time taken under "took".
func (t timer) done(msg string, keyvals ...any) {
	t.logger.Info(msg, append(keyvals, "took", time.Since(t.start).Round(time.Millisecond))...)
}

type loggerKey struct{}

// withLogger attaches l to ctx for the pipeline calls of a command.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// loggerFromContext returns the logger attached by withLogger, or
// log.Default.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
