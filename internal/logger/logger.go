package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the process logger. Production output is JSON with the level
// under "severity" so Cloud Logging can parse it; development gets the
// console writer.
func New(environment string) zerolog.Logger {
	return NewWithWriter(environment, os.Stderr)
}

func NewWithWriter(environment string, w io.Writer) zerolog.Logger {
	zerolog.LevelFieldName = "severity"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(w).With().Timestamp().Logger()

	switch environment {
	case "development":
		return logger.Output(zerolog.ConsoleWriter{Out: w}).Level(zerolog.DebugLevel)
	case "test":
		return logger.Level(zerolog.WarnLevel)
	default:
		return logger.Level(zerolog.InfoLevel)
	}
}
