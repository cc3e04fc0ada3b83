package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/echo_endpoint/pkg/logging"
	"github.com/arzzra/echo_endpoint/pkg/media"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "echo.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "echo", cfg.Endpoint.Name)
	assert.Equal(t, 5*time.Second, cfg.Endpoint.Heartbeat)
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
[endpoint]
heartbeat = "250ms"

[core]
max_sessions = 0

[media]
transport = "UDP"
udp_addr = "127.0.0.1"
video = true
jitter_depth = 3
dtmf_type = "info"

[log]
level = "debug"
format = "console"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "echo", cfg.Endpoint.Name, "не заданный ключ остается по умолчанию")
	assert.Equal(t, 250*time.Millisecond, cfg.Endpoint.Heartbeat)
	assert.Zero(t, cfg.Core.MaxSessions, "явный ноль перекрывает значение по умолчанию")
	assert.Equal(t, TransportUDP, cfg.Media.Transport)
	assert.Equal(t, 20*time.Millisecond, cfg.Media.PTime)
	assert.Equal(t, logging.LevelDebug, cfg.Log.Level)
	assert.Equal(t, logging.FormatConsole, cfg.Log.Format)
	assert.Equal(t, Default().HTTP.Addr, cfg.HTTP.Addr)

	params := cfg.MediaParams()
	require.NotNil(t, params.Video)
	assert.Equal(t, 3, params.JitterDepth)
	assert.Equal(t, "127.0.0.1", params.LocalIP)
	assert.NotNil(t, cfg.TransportFactory())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad duration", "[endpoint]\nheartbeat = \"soon\"\n"},
		{"zero heartbeat", "[endpoint]\nheartbeat = \"0s\"\n"},
		{"bad name", "[endpoint]\nname = \"my/echo\"\n"},
		{"unknown transport", "[media]\ntransport = \"sctp\"\n"},
		{"negative jitter", "[media]\njitter_depth = -1\n"},
		{"bad dtmf", "[media]\ndtmf_type = \"smoke\"\n"},
		{"bad dscp", "[media]\ndscp = 64\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
		{"bad format", "[log]\nformat = \"xml\"\n"},
		{"unknown key", "[media]\ncodec = \"opus\"\n"},
		{"syntax", "[endpoint\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoopbackTransportFactory(t *testing.T) {
	factory := Default().TransportFactory()
	tr, err := factory("s1", media.TypeAudio)
	require.NoError(t, err)
	defer tr.Close()
	assert.True(t, tr.IsActive())
	assert.Nil(t, tr.LocalAddr())
}
