package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParsesLevelAndFormat(t *testing.T) {
	log := New(LoggingConfig{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	_, ok := log.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok, "expected json formatter")
}

func TestNewFallsBackToInfo(t *testing.T) {
	log := New(LoggingConfig{Level: "loud", Format: "text"})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, ok := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok, "expected text formatter")
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	log := New(LoggingConfig{Format: "json"})
	log.SetOutput(&buf)

	log.Component("ledger").WithField("user_id", "u1").Info("credits granted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ledger", entry["component"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "credits granted", entry["msg"])
}

func TestNewDefaultName(t *testing.T) {
	assert.Equal(t, "wishes", NewDefault("wishes").Name())
	assert.Equal(t, "nop", NewNop().Name())
}
