package testutils

import (
	"testing"

	"github.com/rs/zerolog"
)

// Logger returns a logger that writes through t.Log.
func Logger(t *testing.T) *zerolog.Logger {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	return &logger
}
