// Package log wraps a process-wide zerolog logger with the small set of
// helpers used across burnkit.
package log

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"
)

var (
	logger   zerolog.Logger
	loggerMu sync.RWMutex
)

func init() {
	// LOG_LEVEL lets tests and tools raise verbosity without touching code.
	Init(cmp.Or(os.Getenv("LOG_LEVEL"), LogLevelError), "stderr", nil)
}

// Logger returns a copy of the global logger.
func Logger() *zerolog.Logger {
	l := current()
	return &l
}

func current() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func replace(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// warnLevelWriter forwards only warn and above to the wrapped writer.
type warnLevelWriter struct {
	io.Writer
}

var _ zerolog.LevelWriter = (*warnLevelWriter)(nil)

func (w *warnLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel {
		return len(p), nil
	}
	return w.Writer.Write(p)
}

// Init configures the global logger. Output may be "stdout", "stderr" or a
// file path; paths ending in .json receive raw JSON lines while the console
// writer goes to stdout. If errorOutput is not nil, warnings and errors are
// also copied there without colors.
func Init(level, output string, errorOutput io.Writer) {
	var (
		out     io.Writer
		writers []io.Writer
	)
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			panic(fmt.Sprintf("cannot open log output %q: %v", output, err))
		}
		out = f
		if strings.HasSuffix(output, ".json") {
			writers = append(writers, f)
			out = os.Stdout
		}
	}
	writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: RFC3339Milli})
	if errorOutput != nil {
		writers = append(writers, &warnLevelWriter{zerolog.ConsoleWriter{
			Out:        errorOutput,
			TimeFormat: RFC3339Milli,
			NoColor:    true,
		}})
	}
	if len(writers) > 1 {
		out = zerolog.MultiLevelWriter(writers...)
	} else {
		out = writers[0]
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	// skip the frames added by this package so the caller is the real one
	zerolog.CallerSkipFrameCount = 3
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}
	l := zerolog.New(out).With().Timestamp().Caller().Logger()

	switch level {
	case LogLevelDebug:
		l = l.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		l = l.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		l = l.Level(zerolog.WarnLevel)
	case LogLevelError:
		l = l.Level(zerolog.ErrorLevel)
	default:
		panic(fmt.Sprintf("invalid log level: %q", level))
	}
	replace(l)
	l.Info().Msgf("logger ready at level %s on %s", level, output)
}

// Level returns the current log level name.
func Level() string {
	switch lvl := current().GetLevel(); lvl {
	case zerolog.DebugLevel:
		return LogLevelDebug
	case zerolog.InfoLevel:
		return LogLevelInfo
	case zerolog.WarnLevel:
		return LogLevelWarn
	case zerolog.ErrorLevel:
		return LogLevelError
	default:
		return lvl.String()
	}
}

// Debug logs at debug level.
func Debug(args ...any) {
	l := current()
	if l.GetLevel() > zerolog.DebugLevel {
		return
	}
	l.Debug().Msg(fmt.Sprint(args...))
}

// Info logs at info level.
func Info(args ...any) {
	l := current()
	l.Info().Msg(fmt.Sprint(args...))
}

// Warn logs at warn level.
func Warn(args ...any) {
	l := current()
	l.Warn().Msg(fmt.Sprint(args...))
}

// Error logs at error level.
func Error(args ...any) {
	l := current()
	l.Error().Msg(fmt.Sprint(args...))
}

// Fatal logs the message with a stack trace and exits.
func Fatal(args ...any) {
	l := current()
	l.Fatal().Msg(fmt.Sprint(args...) + "\n" + string(debug.Stack()))
	panic("unreachable")
}

func Debugf(template string, args ...any) {
	Logger().Debug().Msgf(template, args...)
}

func Infof(template string, args ...any) {
	Logger().Info().Msgf(template, args...)
}

func Warnf(template string, args ...any) {
	Logger().Warn().Msgf(template, args...)
}

func Errorf(template string, args ...any) {
	Logger().Error().Msgf(template, args...)
}

// Fatalf logs the formatted message with a stack trace and exits.
func Fatalf(template string, args ...any) {
	Logger().Fatal().Msgf(template+"\n"+string(debug.Stack()), args...)
}

// Debugw logs msg with alternating key/value pairs.
func Debugw(msg string, keyvalues ...any) {
	Logger().Debug().Fields(keyvalues).Msg(msg)
}

// Infow logs msg with alternating key/value pairs.
func Infow(msg string, keyvalues ...any) {
	Logger().Info().Fields(keyvalues).Msg(msg)
}

// Warnw logs msg with alternating key/value pairs.
func Warnw(msg string, keyvalues ...any) {
	Logger().Warn().Fields(keyvalues).Msg(msg)
}

// Errorw logs err under msg.
func Errorw(err error, msg string) {
	Logger().Error().Err(err).Msg(msg)
}

// Monitor logs a periodic status line with the given fields, without caller.
func Monitor(msg string, fields map[string]any) {
	l := current()
	l.Info().CallerSkipFrame(100).Fields(fields).Time("at", time.Now()).Msg(msg)
}
