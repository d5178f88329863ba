// Package logging provides structured logging for the bot and its CLI.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls where and how log lines are written.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Unknown values fall back to info.
	Level string

	// File enables a rotated log file in addition to the console.
	File string

	// JSON writes raw zerolog JSON to the console instead of the pretty writer.
	JSON bool

	// Console overrides the console destination. Defaults to stdout.
	Console io.Writer
}

// Logger wraps zerolog with the bot's output conventions.
type Logger struct {
	zlog   zerolog.Logger
	output io.Writer
	file   *FileWriter
	json   bool
}

// New creates a logger from opts. The caller should Close it to flush the log file.
func New(opts Options) *Logger {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	l := &Logger{json: opts.JSON}
	if opts.File != "" {
		l.file = NewFileWriter(opts.File)
	}
	l.SetOutput(console)
	l.zlog = l.zlog.Level(ParseLevel(opts.Level))
	return l
}

// NewDefaultCLILogger creates a console logger at info level.
func NewDefaultCLILogger() *Logger {
	return New(Options{Level: "info"})
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{zlog: zerolog.Nop(), output: io.Discard}
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) *Logger {
	child := *l
	child.zlog = l.zlog.With().Str("component", name).Logger()
	return &child
}

// SetOutput changes the console writer. The rotated file, if any, keeps
// receiving JSON lines.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w

	var console io.Writer = w
	if !l.json {
		console = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "15:04:05",
		}
	}

	var out io.Writer = console
	if l.file != nil {
		out = zerolog.MultiLevelWriter(console, l.file)
	}

	level := l.zlog.GetLevel()
	l.zlog = zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Output returns the current console writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Close flushes and closes the log file, if one is open.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Debugf logs a debug message with printf-style formatting.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
