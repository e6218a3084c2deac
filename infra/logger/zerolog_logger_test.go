package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(&buf, "json", "scheduler")
	l.Infow("schedule table built", map[string]any{"macrocycle": 2})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "scheduler", line["component"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, float64(2), line["macrocycle"])
	assert.Equal(t, "schedule table built", line["message"])
}

func TestZerologLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(&buf, "console", "test")
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
	assert.Contains(t, buf.String(), "info test")
	assert.Equal(t, 5, strings.Count(buf.String(), "\n"))
}

func TestConfigure(t *testing.T) {
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
		_ = Configure(Config{Level: "trace", Format: "json"})
		SetOutput(os.Stdout)
	})
	assert.Error(t, Configure(Config{Level: "loud"}))
	assert.Error(t, Configure(Config{Level: "info", Format: "xml"}))

	require.NoError(t, Configure(Config{Level: "warn", Format: "json"}))
	var buf bytes.Buffer
	SetOutput(&buf)
	l := New("api")
	l.Infof("hidden")
	l.Warnf("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
