package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger: pretty console output in development, JSON
// elsewhere.
func New(environment string) zerolog.Logger {
	if environment == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger().
			Level(zerolog.DebugLevel)
	}
	return zerolog.New(os.Stderr).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)
}
