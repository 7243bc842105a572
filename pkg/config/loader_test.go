package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644))
	return dir
}

func TestInitializeDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Initialize(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "ws://127.0.0.1:8080/waapi", cfg.EndpointURL)
	assert.Equal(t, 1*time.Second, cfg.CallTimeout)
	assert.Equal(t, 30*time.Second, cfg.RPCTimeout)
	assert.Equal(t, 100000, cfg.MaxQueueSize)
	assert.Empty(t, cfg.StatusAddr)
}

func TestInitializeMergesUserValuesOverDefaults(t *testing.T) {
	dir := writeConfig(t, `
endpoint_url: "ws://wwise-host:9090/waapi"
rpc_timeout: 10s
status_addr: "127.0.0.1:9191"
`)

	cfg, err := Initialize(dir)
	require.NoError(t, err)

	assert.Equal(t, "ws://wwise-host:9090/waapi", cfg.EndpointURL)
	assert.Equal(t, 10*time.Second, cfg.RPCTimeout)
	assert.Equal(t, "127.0.0.1:9191", cfg.StatusAddr)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1*time.Second, cfg.CallTimeout)
	assert.Equal(t, 1024, cfg.MaxSubscriptionEvents)
}

func TestInitializeExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("WAAPI_HOST", "10.0.0.5")
	t.Setenv("WAAPI_PORT", "8095")

	dir := writeConfig(t, `endpoint_url: "ws://{{.WAAPI_HOST}}:{{.WAAPI_PORT}}/waapi"`)

	cfg, err := Initialize(dir)
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.5:8095/waapi", cfg.EndpointURL)
}

func TestInitializeRejectsInvalidYAML(t *testing.T) {
	dir := writeConfig(t, "endpoint_url: [unclosed")

	_, err := Initialize(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, configFileName, loadErr.File)
}

func TestInitializeValidatesValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		field   string
	}{
		{"negative rpc timeout", "rpc_timeout: -5s", "rpc_timeout"},
		{"negative poll interval", "poll_interval: -1ms", "poll_interval"},
		{"negative queue size", "max_queue_size: -1", "max_queue_size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeConfig(t, tc.content)

			_, err := Initialize(dir)
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestInitializeRejectsEmptyEndpoint(t *testing.T) {
	// An unset template variable expands to empty, tripping validation.
	dir := writeConfig(t, `endpoint_url: "{{.WWISE_MCP_UNSET_ENDPOINT}}"`)

	_, err := Initialize(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestExpandEnvLeavesPlainYAMLAlone(t *testing.T) {
	in := []byte(`endpoint_url: "ws://127.0.0.1:8080/waapi"`)
	assert.Equal(t, in, ExpandEnv(in))
}
