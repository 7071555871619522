// Command pluginhost is the process entrypoint (component-adjacent to
// C10): it loads configuration, builds a registry, picks the transport
// the configured install method calls for, wires the dispatcher's
// fixed action set onto the executor, and runs the IO server until
// interrupted or the transport's stream ends. Structured the way the
// teacher's examples/gin-server and examples/chi-server main.go files
// set up their own listener + graceful-shutdown plumbing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pluginrt/plugin-go-sdk/pkg/config"
	"github.com/pluginrt/plugin-go-sdk/pkg/contract"
	"github.com/pluginrt/plugin-go-sdk/pkg/dispatcher"
	"github.com/pluginrt/plugin-go-sdk/pkg/executor"
	"github.com/pluginrt/plugin-go-sdk/pkg/pool"
	"github.com/pluginrt/plugin-go-sdk/pkg/registry"
	"github.com/pluginrt/plugin-go-sdk/pkg/server"
	"github.com/pluginrt/plugin-go-sdk/pkg/session"
	"github.com/pluginrt/plugin-go-sdk/pkg/telemetry"
	"github.com/pluginrt/plugin-go-sdk/pkg/transport"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("pluginhost: failed to load config", "error", err)
		os.Exit(1)
	}

	reg := registry.New()
	registerBuiltins(reg)

	d := dispatcher.New()
	server.RegisterRoutes(d, executor.New(reg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go waitForSignal(cancel, logger)

	if err := run(ctx, cfg, d, logger); err != nil {
		logger.Error("pluginhost: exited with error", "error", err)
		os.Exit(1)
	}
}

func waitForSignal(cancel context.CancelFunc, logger *slog.Logger) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	<-sigc
	logger.Info("pluginhost: received shutdown signal")
	cancel()
}

func run(ctx context.Context, cfg *config.Config, d *dispatcher.Dispatcher, logger *slog.Logger) error {
	telemetrySettings := telemetry.DefaultSettings()
	if cfg.OTELExporterOTLPEndpoint != "" {
		telemetrySettings = telemetrySettings.WithEnabled(true)
	}

	srvCfg := server.Config{
		Dispatcher:        d,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Pool:              poolConfig(cfg),
		Telemetry:         telemetrySettings,
		Logger:            logger,
	}

	switch cfg.InstallMethod {
	case config.InstallRemote:
		srvCfg.Mode = session.ModeRemote
		srvCfg.OrphanCheck = false
		return runTCP(ctx, cfg, srvCfg)
	case config.InstallAWSLambda:
		srvCfg.Mode = session.ModeServerless
		srvCfg.DaemonURL = cfg.DifyPluginDaemonURL
		srvCfg.HeartbeatInterval = 0
		return runHTTP(ctx, cfg, srvCfg)
	default:
		srvCfg.Mode = session.ModeLocal
		srvCfg.OrphanCheck = true
		return runStdio(ctx, srvCfg)
	}
}

func poolConfig(cfg *config.Config) pool.Config {
	return pool.Config{MaxWorkers: cfg.MaxWorker, RequestsPerSecond: cfg.MaxRequestsPerSecond}
}

func runStdio(ctx context.Context, srvCfg server.Config) error {
	tr := transport.NewStdio()
	defer tr.Close()

	srv := server.New(srvCfg, tr)
	return srv.Run(ctx, tr)
}

func runTCP(ctx context.Context, cfg *config.Config, srvCfg server.Config) error {
	tr, err := transport.NewTCP(transport.TCPConfig{
		Host: cfg.RemoteInstallHost,
		Port: cfg.RemoteInstallPort,
		Key:  cfg.RemoteInstallKey,
	})
	if err != nil {
		return err
	}
	defer tr.Close()

	srv := server.New(srvCfg, tr)
	return srv.Run(ctx, tr)
}

func runHTTP(ctx context.Context, cfg *config.Config, srvCfg server.Config) error {
	addr := ":" + strconv.Itoa(cfg.AWSLambdaPort)
	return transport.Serve(ctx, transport.HTTPConfig{Addr: addr}, func(tr transport.Transport) {
		srv := server.New(srvCfg, tr)
		_ = srv.Run(ctx, tr)
	})
}

// registerBuiltins wires the demo "basic_math/add" tool scenario S1
// exercises end to end, so the binary is runnable out of the box
// without a manifest on disk. A real deployment calls pkg/manifest.Load
// with its own Implementations instead.
func registerBuiltins(reg *registry.Registry) {
	reg.RegisterToolProvider("basic_math", contract.ToolProviderConfig{"name": "basic_math"}, map[string]contract.Tool{
		"add": addTool{},
	})
}

type addTool struct{}

func (addTool) ValidateCredentials(rt contract.RuntimeContext) error { return nil }

func (addTool) RuntimeParameters() map[string]interface{} {
	return map[string]interface{}{
		"a": map[string]interface{}{"type": "number", "required": true},
		"b": map[string]interface{}{"type": "number", "required": true},
	}
}

func (addTool) Invoke(rt contract.RuntimeContext, parameters map[string]interface{}) (<-chan contract.ToolMessage, <-chan error) {
	return contract.StreamTool(func(rt contract.RuntimeContext, parameters map[string]interface{}) ([]contract.ToolMessage, error) {
		a, _ := parameters["a"].(float64)
		b, _ := parameters["b"].(float64)
		return []contract.ToolMessage{contract.Text(fmt.Sprintf("The result is %v", a+b))}, nil
	})(rt, parameters)
}
