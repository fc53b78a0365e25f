package config

import "time"

// TestgateConfig is the top-level configuration structure for testgate.
type TestgateConfig struct {
	Upstream UpstreamConfig `yaml:"upstream"`
	Gateway  GatewayConfig  `yaml:"gateway"`
}

// UpstreamConfig describes how to reach the test-execution platform the
// gateway fronts.
type UpstreamConfig struct {
	BaseURL string `yaml:"baseURL,omitempty"` // Base URL of the upstream REST API (default: http://localhost:9090)

	// RequestTimeout bounds every outbound call. There is no retry: a call
	// either completes within the timeout or fails.
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty"` // (default: 30s)

	// DebugCredentials enables logging of truncated credential fingerprints.
	// Raw tokens and passwords are never logged regardless of this flag.
	DebugCredentials bool `yaml:"debugCredentials,omitempty"`

	// LookupCacheSize is the capacity of the process-wide name-to-id lookup
	// cache for reference lists.
	LookupCacheSize int `yaml:"lookupCacheSize,omitempty"` // (default: 256)
}

// GatewayConfig defines the inbound MCP surface.
type GatewayConfig struct {
	Host     string `yaml:"host,omitempty"`     // Host to bind to (default: localhost)
	SSEPort  int    `yaml:"ssePort,omitempty"`  // Port for the SSE transport (default: 8080)
	HTTPPort int    `yaml:"httpPort,omitempty"` // Port for the streamable HTTP transport (default: 8081)

	// SessionTimeout is the idle duration after which a connection's state is
	// discarded. Zero uses the default of 30 minutes.
	SessionTimeout time.Duration `yaml:"sessionTimeout,omitempty"`

	// MaxSessions caps concurrent connections per transport (0 = default).
	MaxSessions int `yaml:"maxSessions,omitempty"`
}

// Transport kind identifiers for the two inbound transports.
const (
	// TransportSSE is the Server-Sent Events push-stream transport. The
	// session ID is assigned at stream-open time.
	TransportSSE = "sse"
	// TransportStreamableHTTP is the request/response streamable HTTP
	// transport. The session ID is derived from the initialize message and
	// must be echoed on every follow-up message.
	TransportStreamableHTTP = "streamable-http"
)

// GetDefaultConfig returns the default configuration for testgate.
func GetDefaultConfig() TestgateConfig {
	return TestgateConfig{
		Upstream: UpstreamConfig{
			BaseURL:         "http://localhost:9090",
			RequestTimeout:  30 * time.Second,
			LookupCacheSize: 256,
		},
		Gateway: GatewayConfig{
			Host:           "localhost",
			SSEPort:        8080,
			HTTPPort:       8081,
			SessionTimeout: 30 * time.Minute,
		},
	}
}
