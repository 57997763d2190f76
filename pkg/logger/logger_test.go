package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewForwardsToSlog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l := New("telegram.api", base, slog.LevelDebug)
	l.Printf("Endpoint: %s", "getUpdates")

	out := buf.String()
	assert.Contains(t, out, "component=telegram.api")
	assert.Contains(t, out, "Endpoint: getUpdates")
	assert.Contains(t, out, "level=DEBUG")
}

func TestNewWithoutBase(t *testing.T) {
	t.Parallel()

	l := New("cli", nil, slog.LevelInfo)
	assert.Equal(t, "[cli] ", l.Prefix())
}
