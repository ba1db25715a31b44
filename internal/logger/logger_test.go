package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrade/config"
)

func TestNew_WritesRotatedFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "logs", "papertrade.log")

	l, err := New(config.LogConfig{Level: "info", Format: "json", OutputFile: out, Environment: "prod"})
	require.NoError(t, err)
	l.Info("hello")
	_ = l.Sync()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
