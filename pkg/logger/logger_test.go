package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/lunaris/pkg/config"
)

// decodeLines parses one JSON object per written log line
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestNewWithWriter_StudyFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "staging", LogLevel: "info"}, &buf)

	log.WithFields(map[string]interface{}{
		"boundaries": 9,
		"clamped":    1,
	}).WithField("study", "eurusd").Info("timeline rebuilt")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "timeline rebuilt", entry["message"])
	assert.Equal(t, "lunaris", entry["service"])
	assert.Equal(t, "staging", entry["env"])
	assert.Equal(t, "eurusd", entry["study"])
	assert.EqualValues(t, 9, entry["boundaries"])
	assert.EqualValues(t, 1, entry["clamped"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "production", LogLevel: "warn"}, &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Debug("coarse sample")
	log.Info("phase started")
	log.Warn("phase started (clamped)")
	log.WithError(errors.New("step budget exhausted")).Error("timeline build failed")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "error", entries[1]["level"])
	assert.Equal(t, "step budget exhausted", entries[1]["error"])
}

func TestWithFieldDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&config.Config{Env: "development", LogLevel: "info"}, &buf)

	base.WithField("job", "timeline_refresh").Info("Job started")
	base.Info("Starting scheduler")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "timeline_refresh", entries[0]["job"])
	assert.NotContains(t, entries[1], "job")
}

func TestNew_ConsoleFormat(t *testing.T) {
	log := New(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "console"})
	require.NotNil(t, log)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestNop(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.WithError(errors.New("x")).WithField("a", 1).Error("discarded")
	})
}
