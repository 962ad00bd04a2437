package resocket

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resocket.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("File", func(t *testing.T) {
		path := writeConfigFile(t, `
endpoint = "wss://api.example.test/graphql"
sub_protocols = ["graphql-transport-ws", "graphql-ws"]
reconnect_interval = 2500
connect_timeout = "3s"
debug = true
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "wss://api.example.test/graphql", cfg.EndPoint)
		assert.Equal(t, []string{"graphql-transport-ws", "graphql-ws"}, cfg.SubProtocols)
		assert.Equal(t, 2500*time.Millisecond, cfg.ReconnectInterval)
		assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
		assert.True(t, cfg.Debug)
	})

	t.Run("Defaults", func(t *testing.T) {
		path := writeConfigFile(t, `endpoint = "ws://localhost:4000"`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, DefaultReconnectInterval, cfg.ReconnectInterval)
		assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
		assert.Empty(t, cfg.SubProtocols)
		assert.False(t, cfg.Debug)
	})

	t.Run("SingleProtocolString", func(t *testing.T) {
		path := writeConfigFile(t, `
endpoint = "ws://localhost:4000"
sub_protocols = "graphql-ws"
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"graphql-ws"}, cfg.SubProtocols)
	})

	t.Run("EnvOverridesFile", func(t *testing.T) {
		path := writeConfigFile(t, `
endpoint = "ws://from-file:4000"
reconnect_interval = 2500
`)
		t.Setenv("RESOCKET_ENDPOINT", "ws://from-env:4000")
		t.Setenv("RESOCKET_SUB_PROTOCOLS", "graphql-transport-ws, graphql-ws")
		t.Setenv("RESOCKET_CONNECT_TIMEOUT", "1.5s")
		t.Setenv("RESOCKET_RECONNECT_INTERVAL", "-1")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "ws://from-env:4000", cfg.EndPoint)
		assert.Equal(t, []string{"graphql-transport-ws", "graphql-ws"}, cfg.SubProtocols)
		assert.Equal(t, 1500*time.Millisecond, cfg.ConnectTimeout)
		assert.False(t, cfg.RetriesEnabled())
	})

	t.Run("EnvOnly", func(t *testing.T) {
		t.Setenv("RESOCKET_ENDPOINT", "ws://from-env:4000")
		t.Setenv("RESOCKET_CONNECT_TIMEOUT", "750")

		cfg, err := LoadConfig("")
		require.NoError(t, err)

		assert.Equal(t, "ws://from-env:4000", cfg.EndPoint)
		assert.Equal(t, 750*time.Millisecond, cfg.ConnectTimeout)
	})

	t.Run("MissingEndpoint", func(t *testing.T) {
		_, err := LoadConfig("")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load config file")
	})

	t.Run("BadDuration", func(t *testing.T) {
		path := writeConfigFile(t, `
endpoint = "ws://localhost:4000"
connect_timeout = "soon"
`)
		_, err := LoadConfig(path)
		require.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"Valid", DefaultConfig("ws://localhost"), ""},
		{"EmptyEndpoint", DefaultConfig(" "), "endpoint is required"},
		{"BadEndpoint", DefaultConfig("ws://[::1"), "invalid endpoint"},
		{"NegativeTimeout", Config{EndPoint: "ws://localhost", ConnectTimeout: -time.Second}, "connect_timeout"},
		{"BlankProtocol", Config{EndPoint: "ws://localhost", SubProtocols: []string{"a", ""}}, "sub_protocols[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	protocols := []string{"a"}
	cfg := Config{
		EndPoint:          "ws://localhost",
		SubProtocols:      protocols,
		ReconnectInterval: ReconnectDisabled,
	}.withDefaults()

	assert.Equal(t, ReconnectDisabled, cfg.ReconnectInterval)
	assert.False(t, cfg.RetriesEnabled())
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)

	protocols[0] = "changed"
	assert.Equal(t, []string{"a"}, cfg.SubProtocols)

	empty := DefaultConfig("ws://localhost").withDefaults()
	assert.NotNil(t, empty.SubProtocols)
	assert.Empty(t, empty.SubProtocols)
}

func TestEndPointURL(t *testing.T) {
	for in, want := range map[string]string{
		"http://localhost:4000/socket":   "ws://localhost:4000/socket",
		"https://example.test/graphql":   "wss://example.test/graphql",
		"wss://example.test/graphql?v=2": "wss://example.test/graphql?v=2",
	} {
		u, err := Config{EndPoint: in}.endPointURL()
		require.NoError(t, err)
		assert.Equal(t, want, u.String())
	}
}

func TestParseSubProtocols(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseSubProtocols(" a, ,b ,"))
	assert.Equal(t, []string{}, ParseSubProtocols(""))
}
