package logging_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-client/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":         zerolog.InfoLevel,
		"DEBUG":    zerolog.DebugLevel,
		" warn ":   zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"trace":    zerolog.TraceLevel,
		"disabled": zerolog.Disabled,
		"nonsense": zerolog.InfoLevel,
	}
	for in, want := range tests {
		require.Equal(t, want, logging.ParseLevel(in), "level %q", in)
	}
}

func TestNewAppliesLevel(t *testing.T) {
	logger := logging.New("error", "PROD")
	require.Equal(t, zerolog.ErrorLevel, logger.GetLevel())
}
