package gateway

import (
	"testing"
	"time"

	"testgate/internal/config"
)

func testServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "localhost",
		SSEPort:         18080,
		HTTPPort:        18081,
		SessionTimeout:  5 * time.Minute,
		UpstreamBaseURL: "http://upstream.test",
		RequestTimeout:  5 * time.Second,
		Version:         "test",
	}
}

func TestNewGatewayServer(t *testing.T) {
	g, err := NewGatewayServer(testServerConfig())
	if err != nil {
		t.Fatalf("NewGatewayServer failed: %v", err)
	}
	defer g.Registry(config.TransportSSE).Stop()
	defer g.Registry(config.TransportStreamableHTTP).Stop()

	if g.Tracker() == nil {
		t.Error("Expected a shared execution tracker")
	}
	if g.Registry(config.TransportSSE) == nil {
		t.Error("Expected an SSE registry")
	}
	if g.Registry(config.TransportStreamableHTTP) == nil {
		t.Error("Expected a streamable HTTP registry")
	}
	if g.Registry("carrier-pigeon") != nil {
		t.Error("Expected nil registry for unknown transport kind")
	}
	if g.Registry(config.TransportSSE) == g.Registry(config.TransportStreamableHTTP) {
		t.Error("The two transports must have independent registries")
	}
}

func TestGatewayServerEndpoints(t *testing.T) {
	g, err := NewGatewayServer(testServerConfig())
	if err != nil {
		t.Fatalf("NewGatewayServer failed: %v", err)
	}
	defer g.Registry(config.TransportSSE).Stop()
	defer g.Registry(config.TransportStreamableHTTP).Stop()

	sse, streamable := g.Endpoints()
	if sse != "http://localhost:18080/sse" {
		t.Errorf("Unexpected SSE endpoint %s", sse)
	}
	if streamable != "http://localhost:18081/mcp" {
		t.Errorf("Unexpected streamable HTTP endpoint %s", streamable)
	}
}

func TestGatewayServerStopWithoutStart(t *testing.T) {
	g, err := NewGatewayServer(testServerConfig())
	if err != nil {
		t.Fatalf("NewGatewayServer failed: %v", err)
	}

	if err := g.Stop(t.Context()); err == nil {
		t.Error("Expected error stopping a server that was never started")
	}
}
