package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"MAX_REQUEST_TIMEOUT", "MAX_WORKER", "HEARTBEAT_INTERVAL",
		"MAX_REQUESTS_PER_SECOND", "INSTALL_METHOD", "REMOTE_INSTALL_HOST",
		"REMOTE_INSTALL_PORT", "REMOTE_INSTALL_KEY", "AWS_LAMBDA_PORT",
		"DIFY_PLUGIN_DAEMON_URL", "OTEL_EXPORTER_OTLP_ENDPOINT",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.MaxRequestTimeout)
	assert.Equal(t, 1000, cfg.MaxWorker)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, float64(0), cfg.MaxRequestsPerSecond)
	assert.Equal(t, InstallLocal, cfg.InstallMethod)
	assert.Equal(t, 5003, cfg.RemoteInstallPort)
	assert.Equal(t, 8080, cfg.AWSLambdaPort)
	assert.Equal(t, "http://localhost:5002", cfg.DifyPluginDaemonURL)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_WORKER", "42")
	t.Setenv("MAX_REQUESTS_PER_SECOND", "12.5")
	t.Setenv("INSTALL_METHOD", "remote")
	t.Setenv("REMOTE_INSTALL_HOST", "daemon.internal")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.MaxWorker)
	assert.Equal(t, 12.5, cfg.MaxRequestsPerSecond)
	assert.Equal(t, InstallRemote, cfg.InstallMethod)
	assert.Equal(t, "daemon.internal", cfg.RemoteInstallHost)
}

func TestLoadRejectsUnknownInstallMethod(t *testing.T) {
	clearEnv(t)
	t.Setenv("INSTALL_METHOD", "carrier_pigeon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresRemoteHostWhenRemote(t *testing.T) {
	clearEnv(t)
	t.Setenv("INSTALL_METHOD", "remote")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadIgnoresUnparseableNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_WORKER", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.MaxWorker)
}
