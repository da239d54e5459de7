package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup returns a logger writing to stderr. Dev mode switches to the console
// writer at debug level.
func Setup(dev bool) zerolog.Logger {
	return New(os.Stderr, dev)
}

// New returns a logger writing to w, JSON at info level unless dev is set.
func New(w io.Writer, dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, NoColor: true, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Caller().Logger()
	}

	return logger
}
