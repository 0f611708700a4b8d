package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger for packages that only pass loggers around.
type Logger = zerolog.Logger

// NewLogger builds the process logger. Every entry carries the component
// name ("api", "worker", ...). LOG_LEVEL overrides the level picked from
// APP_ENV.
func NewLogger(appEnv, component string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv, component, os.Getenv("LOG_LEVEL"))
}

func newLogger(out io.Writer, appEnv, component, levelName string) zerolog.Logger {
	dev := appEnv == "development"
	if dev {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(logLevel(dev, levelName)).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func logLevel(dev bool, name string) zerolog.Level {
	if name = strings.TrimSpace(name); name != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(name)); err == nil {
			return lvl
		}
	}
	if dev {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
