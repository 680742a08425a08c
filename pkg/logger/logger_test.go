package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	l := New(Config{Level: "chatty"})
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestNewFileOutputAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repair.log")
	l := New(Config{Level: "debug", Format: "json", Output: path})

	l.WithComponent("watch").Info("sweep complete")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"watch"`)
	assert.Contains(t, string(data), `"msg":"sweep complete"`)
}

func TestNewUnopenablePathFallsBackToStderr(t *testing.T) {
	l := New(Config{Output: filepath.Join(t.TempDir(), "missing-dir", "repair.log")})
	assert.Equal(t, os.Stderr, l.Out)
}
