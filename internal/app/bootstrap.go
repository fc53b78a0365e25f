// Package app bootstraps and runs the testgate process: it loads
// configuration, initializes logging, builds the gateway server, and drives
// its lifecycle until shutdown.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"testgate/internal/config"
	"testgate/internal/gateway"
	"testgate/pkg/logging"
)

// Config holds the application configuration derived from CLI flags.
type Config struct {
	Debug bool

	// ConfigPath overrides the default configuration directory when set.
	ConfigPath string

	Version string
}

// NewConfig creates a new application configuration.
func NewConfig(debug bool, configPath, version string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
		Version:    version,
	}
}

// Application bootstraps and runs testgate. Two phases: NewApplication loads
// configuration and builds the gateway; Run drives it until shutdown.
type Application struct {
	config  *Config
	gateway *gateway.GatewayServer
}

// NewApplication performs the bootstrap sequence: logging, configuration,
// gateway construction.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	logging.Init(appLogLevel, os.Stdout)

	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}
	tgCfg, err := config.LoadConfig(configPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration from %s", configPath)
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	gw, err := gateway.NewGatewayServer(gateway.ServerConfig{
		Host:             tgCfg.Gateway.Host,
		SSEPort:          tgCfg.Gateway.SSEPort,
		HTTPPort:         tgCfg.Gateway.HTTPPort,
		SessionTimeout:   tgCfg.Gateway.SessionTimeout,
		MaxSessions:      tgCfg.Gateway.MaxSessions,
		UpstreamBaseURL:  tgCfg.Upstream.BaseURL,
		RequestTimeout:   tgCfg.Upstream.RequestTimeout,
		DebugCredentials: tgCfg.Upstream.DebugCredentials,
		LookupCacheSize:  tgCfg.Upstream.LookupCacheSize,
		Version:          cfg.Version,
	})
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize gateway server")
		return nil, fmt.Errorf("failed to initialize gateway server: %w", err)
	}

	return &Application{
		config:  cfg,
		gateway: gw,
	}, nil
}

// Run starts the gateway and blocks until the context is cancelled or a
// termination signal arrives, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.gateway.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	sse, streamable := a.gateway.Endpoints()
	logging.Info("Bootstrap", "Gateway ready: SSE %s, streamable HTTP %s", sse, streamable)

	<-ctx.Done()
	logging.Info("Bootstrap", "Shutting down")

	return a.gateway.Stop(context.Background())
}
