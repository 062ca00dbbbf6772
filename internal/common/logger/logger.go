// Package logger configures the process-wide zerolog logger. Call sites use
// the leveled constructors here instead of importing zerolog directly.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets up the global logger. Production emits JSON lines on stdout;
// debug switches to the human-readable console writer and lowers the level.
func Init(service string, debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	log.Logger = zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()

	log.Info().Bool("debug", debug).Msg("Logger initialized")
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

// Error returns an error-level event; attach the cause with Err.
func Error() *zerolog.Event {
	return log.Error()
}

// Fatal logs and then exits the process.
func Fatal() *zerolog.Event {
	return log.Fatal()
}
