package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"testgate/internal/config"
	"testgate/internal/execution"
	"testgate/internal/lookup"
	"testgate/internal/tools"
	"testgate/internal/upstream"
	"testgate/pkg/logging"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// ServerConfig collects everything the gateway server needs to run.
type ServerConfig struct {
	Host     string
	SSEPort  int
	HTTPPort int

	SessionTimeout time.Duration
	MaxSessions    int

	UpstreamBaseURL  string
	RequestTimeout   time.Duration
	DebugCredentials bool
	LookupCacheSize  int

	Version string
}

// GatewayServer fronts the upstream platform over the two inbound MCP
// transports. Each transport gets its own MCP server instance and its own
// connection registry, because the transports identify connections
// differently; the execution tracker and lookup cache are process-wide and
// shared by both.
type GatewayServer struct {
	config ServerConfig

	tracker *execution.Tracker
	lookup  *lookup.Cache

	sseRegistry  *ConnectionRegistry
	httpRegistry *ConnectionRegistry

	sseMCP  *server.MCPServer
	httpMCP *server.MCPServer

	sseServer            *server.SSEServer
	streamableHTTPServer *server.StreamableHTTPServer

	ctx        context.Context
	cancelFunc context.CancelFunc
	eg         *errgroup.Group
	mu         sync.RWMutex
}

// NewGatewayServer builds the gateway: the two connection registries, the
// shared execution tracker and lookup cache, and one MCP server per
// transport, each exposing the same tool set.
func NewGatewayServer(cfg ServerConfig) (*GatewayServer, error) {
	lookupCache, err := lookup.New(cfg.LookupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating lookup cache: %w", err)
	}

	g := &GatewayServer{
		config:  cfg,
		tracker: execution.NewTracker(),
		lookup:  lookupCache,
	}

	g.sseRegistry = NewConnectionRegistry(config.TransportSSE, g.buildClient, cfg.SessionTimeout, cfg.MaxSessions)
	g.httpRegistry = NewConnectionRegistry(config.TransportStreamableHTTP, g.buildClient, cfg.SessionTimeout, cfg.MaxSessions)

	g.sseMCP = g.newMCPServer(g.sseRegistry)
	g.httpMCP = g.newMCPServer(g.httpRegistry)

	return g, nil
}

// buildClient creates the per-connection upstream client. The credential
// header is resolved here, once, and stays immutable for the connection.
func (g *GatewayServer) buildClient(creds upstream.Credentials) *upstream.Client {
	client := upstream.NewClient(g.config.UpstreamBaseURL, creds, upstream.WithTimeout(g.config.RequestTimeout))

	if g.config.DebugCredentials {
		cc := client.Credentials()
		logging.Debug("Gateway", "Resolved credentials: scheme=%s fingerprint=%s", cc.Scheme, cc.Fingerprint)
	}
	return client
}

// newMCPServer builds one transport's MCP server, with session lifecycle
// hooks bound to that transport's connection registry.
func (g *GatewayServer) newMCPServer(registry *ConnectionRegistry) *server.MCPServer {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		creds := CredentialsFromContext(ctx)
		if _, err := registry.Open(session.SessionID(), creds); err != nil {
			logging.Error("Gateway", err, "Failed to open connection %s", logging.TruncateSessionID(session.SessionID()))
		}
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		registry.Close(session.SessionID())
	})

	s := server.NewMCPServer(
		"testgate",
		g.config.Version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)

	s.AddTools(tools.All(tools.Deps{
		Clients: registry,
		Tracker: g.tracker,
		Lookup:  g.lookup,
	})...)

	return s
}

// Start starts both transport servers. It returns once they are listening;
// serving continues in the background until Stop.
func (g *GatewayServer) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sseServer != nil || g.streamableHTTPServer != nil {
		return fmt.Errorf("gateway server already started")
	}
	g.ctx, g.cancelFunc = context.WithCancel(ctx)
	g.eg, _ = errgroup.WithContext(g.ctx)

	sseAddr := fmt.Sprintf("%s:%d", g.config.Host, g.config.SSEPort)
	baseURL := fmt.Sprintf("http://%s", sseAddr)
	g.sseServer = server.NewSSEServer(
		g.sseMCP,
		server.WithBaseURL(baseURL),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return WithCredentials(ctx, CredentialsFromRequest(r))
		}),
	)
	sseServer := g.sseServer
	g.eg.Go(func() error {
		logging.Info("Gateway", "Starting SSE transport on %s", sseAddr)
		if err := sseServer.Start(sseAddr); err != nil && err != http.ErrServerClosed {
			logging.Error("Gateway", err, "SSE server error")
			return err
		}
		return nil
	})

	httpAddr := fmt.Sprintf("%s:%d", g.config.Host, g.config.HTTPPort)
	g.streamableHTTPServer = server.NewStreamableHTTPServer(
		g.httpMCP,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return WithCredentials(ctx, CredentialsFromRequest(r))
		}),
	)
	streamableServer := g.streamableHTTPServer
	g.eg.Go(func() error {
		logging.Info("Gateway", "Starting streamable HTTP transport on %s", httpAddr)
		if err := streamableServer.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logging.Error("Gateway", err, "Streamable HTTP server error")
			return err
		}
		return nil
	})

	return nil
}

// Stop shuts down both transports and discards all connection state. The
// execution tracker is process state and is not cleared here.
func (g *GatewayServer) Stop(ctx context.Context) error {
	g.mu.Lock()
	sseServer := g.sseServer
	streamableServer := g.streamableHTTPServer
	cancelFunc := g.cancelFunc
	g.sseServer = nil
	g.streamableHTTPServer = nil
	g.mu.Unlock()

	if sseServer == nil && streamableServer == nil {
		return fmt.Errorf("gateway server not started")
	}

	logging.Info("Gateway", "Stopping gateway server")

	if cancelFunc != nil {
		cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if sseServer != nil {
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Gateway", err, "Error shutting down SSE server")
		}
	}
	if streamableServer != nil {
		if err := streamableServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Gateway", err, "Error shutting down streamable HTTP server")
		}
	}

	g.sseRegistry.Stop()
	g.httpRegistry.Stop()

	g.mu.Lock()
	eg := g.eg
	g.eg = nil
	g.mu.Unlock()
	if eg != nil {
		return eg.Wait()
	}
	return nil
}

// Tracker exposes the shared execution tracker.
func (g *GatewayServer) Tracker() *execution.Tracker {
	return g.tracker
}

// Registry returns the connection registry for a transport kind, or nil for
// an unknown kind.
func (g *GatewayServer) Registry(transportKind string) *ConnectionRegistry {
	switch transportKind {
	case config.TransportSSE:
		return g.sseRegistry
	case config.TransportStreamableHTTP:
		return g.httpRegistry
	default:
		return nil
	}
}

// Endpoints returns the inbound endpoint URLs, one per transport.
func (g *GatewayServer) Endpoints() (sse string, streamableHTTP string) {
	sse = fmt.Sprintf("http://%s:%d/sse", g.config.Host, g.config.SSEPort)
	streamableHTTP = fmt.Sprintf("http://%s:%d/mcp", g.config.Host, g.config.HTTPPort)
	return sse, streamableHTTP
}
