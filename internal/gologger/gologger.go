// Package gologger configures the shared zerolog logger for the engine.
// Set PRETTY=1 for console output and DEBUG=1 for debug-level logging.
package gologger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a timestamped JSON logger on stdout.
func NewLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if os.Getenv("PRETTY") == "1" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if os.Getenv("DEBUG") == "1" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	return logger
}
