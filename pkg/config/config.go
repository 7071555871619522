// Package config loads the process-level settings (§6 "Configuration
// options") from the environment, the same os.Getenv-plus-strconv idiom
// the teacher's provider packages use for their own API key/base-URL
// config rather than reaching for a third-party config library (none of
// the example repos in the corpus import one).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// InstallMethod is which transport the process was launched under.
type InstallMethod string

const (
	InstallLocal     InstallMethod = "local"
	InstallRemote    InstallMethod = "remote"
	InstallAWSLambda InstallMethod = "aws_lambda"
)

// Config is the full set of §6 configuration options, loaded once at
// process startup.
type Config struct {
	// MaxRequestTimeout holds MAX_REQUEST_TIMEOUT. It is not passed to
	// the server, so dispatched handlers run without a deadline from it.
	MaxRequestTimeout time.Duration
	// MaxWorker bounds the worker pool's concurrency (§4.9).
	MaxWorker int
	// HeartbeatInterval is the keep-alive cadence (§4.10 step 3).
	HeartbeatInterval time.Duration
	// MaxRequestsPerSecond additionally shapes pool admission; 0 means
	// unlimited (§4.9's golang.org/x/time/rate wiring).
	MaxRequestsPerSecond float64

	InstallMethod InstallMethod

	RemoteInstallHost string
	RemoteInstallPort int
	RemoteInstallKey  string

	AWSLambdaPort int

	DifyPluginDaemonURL string

	// OTELExporterOTLPEndpoint, if set, enables telemetry export; empty
	// leaves telemetry disabled (pkg/telemetry.Settings.IsEnabled=false).
	OTELExporterOTLPEndpoint string
}

// Load reads every §6 option from the environment, applying the
// documented defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		MaxRequestTimeout:    durationSeconds("MAX_REQUEST_TIMEOUT", 300),
		MaxWorker:            intEnv("MAX_WORKER", 1000),
		HeartbeatInterval:    durationSeconds("HEARTBEAT_INTERVAL", 10),
		MaxRequestsPerSecond: floatEnv("MAX_REQUESTS_PER_SECOND", 0),

		InstallMethod: InstallMethod(stringEnv("INSTALL_METHOD", string(InstallLocal))),

		RemoteInstallHost: os.Getenv("REMOTE_INSTALL_HOST"),
		RemoteInstallPort: intEnv("REMOTE_INSTALL_PORT", 5003),
		RemoteInstallKey:  os.Getenv("REMOTE_INSTALL_KEY"),

		AWSLambdaPort: intEnv("AWS_LAMBDA_PORT", 8080),

		DifyPluginDaemonURL: stringEnv("DIFY_PLUGIN_DAEMON_URL", "http://localhost:5002"),

		OTELExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	switch cfg.InstallMethod {
	case InstallLocal, InstallRemote, InstallAWSLambda:
	default:
		return nil, fmt.Errorf("config: unrecognized INSTALL_METHOD %q", cfg.InstallMethod)
	}
	if cfg.InstallMethod == InstallRemote && cfg.RemoteInstallHost == "" {
		return nil, fmt.Errorf("config: REMOTE_INSTALL_HOST is required when INSTALL_METHOD=remote")
	}

	return cfg, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatEnv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func durationSeconds(key string, defSeconds int) time.Duration {
	return time.Duration(intEnv(key, defSeconds)) * time.Second
}
