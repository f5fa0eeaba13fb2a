package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_ByEnvironment(t *testing.T) {
	t.Cleanup(func() { Log = nil })

	Init("development", "")
	assert.Equal(t, logrus.DebugLevel, L().GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, L().Formatter)

	Init("production", "")
	assert.Equal(t, logrus.InfoLevel, L().GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, L().Formatter)

	Init("production", "warn")
	assert.Equal(t, logrus.WarnLevel, L().GetLevel())

	Init("production", "шумно")
	assert.Equal(t, logrus.InfoLevel, L().GetLevel())
}

func TestTrade_AddsTradeID(t *testing.T) {
	t.Cleanup(func() { Log = nil })
	Init("production", "")

	var buf bytes.Buffer
	SetOutput(&buf)
	Trade(42).Info("сделка обновлена")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, float64(42), line["trade_id"])
	assert.Equal(t, "сделка обновлена", line["msg"])
}
