package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel reads a zerolog level name, defaulting to info when level is empty
// or unknown.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.TrimSpace(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// New builds the process logger and installs it as the zerolog global.
// DEV gets a coloured console writer on stderr, every other environment JSON.
func New(level, env string) zerolog.Logger {
	var w io.Writer = os.Stderr
	if strings.EqualFold(env, "DEV") {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
