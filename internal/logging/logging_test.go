package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(true, "info", &buf)

	logger.WithField("channel", "operator").Info("connected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "connected", entry["msg"])
	assert.Equal(t, "operator", entry["channel"])
}

func TestNew_LevelFallback(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New(false, "debug", &bytes.Buffer{}).GetLevel())
	assert.Equal(t, logrus.InfoLevel, New(false, "loud", &bytes.Buffer{}).GetLevel())
}

func TestOpenFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	f, err := OpenFile(dir, "console.log")
	require.NoError(t, err)
	defer f.Close()

	_, err = os.Stat(filepath.Join(dir, "console.log"))
	assert.NoError(t, err)
}
