package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedErr struct{}

func (codedErr) Error() string     { return "busy" }
func (codedErr) ErrorCode() string { return "InUse" }

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelDebug, Format: FormatJSON, Output: &buf})

	ctx := ContextWithFields(context.Background(), String("uuid", "abc"))
	log.WithComponent("echo").WithFields(Int("stream", 1)).Info(ctx, "кадр записан",
		Duration("ptime", 20*time.Millisecond), Bool("ready", true))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "кадр записан", entry["message"])
	assert.Equal(t, "echo", entry["component"])
	assert.Equal(t, "abc", entry["uuid"])
	assert.EqualValues(t, 1, entry["stream"])
	assert.Equal(t, true, entry["ready"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Output: &buf})

	log.Debug(context.Background(), "скрыто")
	log.Info(context.Background(), "скрыто")
	log.Warn(context.Background(), "видно")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "видно", lines[0]["message"])
	assert.False(t, log.IsEnabled(LevelInfo))
	assert.True(t, log.IsEnabled(LevelError))
}

func TestLogErrorAddsErrorCode(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelInfo, Output: &buf})

	log.LogError(context.Background(), codedErr{}, "ошибка чтения")
	log.LogError(context.Background(), errors.New("plain"), "без кода")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "InUse", lines[0]["error_code"])
	assert.Equal(t, "busy", lines[0]["error"])
	_, hasCode := lines[1]["error_code"]
	assert.False(t, hasCode)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warning ", LevelWarn, false},
		{"trace", LevelTrace, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	log := Nop()
	assert.False(t, log.IsEnabled(LevelError))
	log.Error(context.Background(), "ничего", String("k", "v"))
	log.WithComponent("x").Info(context.Background(), "ничего")
}
