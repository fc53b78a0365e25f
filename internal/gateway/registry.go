package gateway

import (
	"fmt"
	"sync"
	"time"

	"testgate/internal/upstream"
	"testgate/pkg/logging"
)

// Connection ID validation constants.
const (
	// MaxConnectionIDLength is the maximum allowed length for connection IDs.
	// This prevents memory exhaustion using extremely long IDs.
	MaxConnectionIDLength = 256

	// DefaultMaxConnections is the default maximum number of concurrent
	// connections per registry.
	DefaultMaxConnections = 10000
)

// Connection is one logical client session against the gateway. It owns
// exactly one upstream client, and through it the connection's credential
// context and affinity token. It is created on connect and destroyed on
// disconnect; execution sessions are suite-scoped and survive it.
type Connection struct {
	ID            string
	TransportKind string
	OpenedAt      time.Time
	Client        *upstream.Client

	mu           sync.Mutex
	lastActivity time.Time
}

// Touch updates the last activity timestamp.
func (c *Connection) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
}

// LastActivity returns the last activity timestamp.
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// ClientBuilder builds the upstream client for a newly opened connection.
type ClientBuilder func(creds upstream.Credentials) *upstream.Client

// ConnectionRegistry indexes the gateway's connections for one transport
// kind. Two independent registries exist because the two transports identify
// connections differently: the SSE stream assigns its ID at stream-open time,
// the streamable HTTP stream assigns it on the first initialize message and
// reuses it for every follow-up message carrying that ID.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	connections map[string]*Connection

	transportKind string
	buildClient   ClientBuilder
	idleTimeout   time.Duration
	maxConns      int
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// NewConnectionRegistry creates a registry for one transport kind. The
// registry starts a background goroutine that discards idle connections;
// callers must call Stop when done.
func NewConnectionRegistry(transportKind string, buildClient ClientBuilder, idleTimeout time.Duration, maxConns int) *ConnectionRegistry {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}

	r := &ConnectionRegistry{
		connections:   make(map[string]*Connection),
		transportKind: transportKind,
		buildClient:   buildClient,
		idleTimeout:   idleTimeout,
		maxConns:      maxConns,
		stopCleanup:   make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// ValidateConnectionID checks a transport-assigned connection ID.
func ValidateConnectionID(id string) error {
	if id == "" {
		return &InvalidConnectionIDError{Reason: "connection ID cannot be empty"}
	}
	if len(id) > MaxConnectionIDLength {
		return &InvalidConnectionIDError{Reason: fmt.Sprintf("connection ID exceeds maximum length of %d", MaxConnectionIDLength)}
	}
	return nil
}

// Open creates a connection for a transport-assigned ID and builds its
// upstream client from the supplied credentials. Opening an already-open ID
// returns the existing connection: the streamable HTTP transport re-announces
// its session on follow-up messages.
func (r *ConnectionRegistry) Open(id string, creds upstream.Credentials) (*Connection, error) {
	if err := ValidateConnectionID(id); err != nil {
		logging.Warn("Registry", "Rejected invalid connection ID: %v", err)
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, exists := r.connections[id]; exists {
		conn.Touch()
		return conn, nil
	}

	if len(r.connections) >= r.maxConns {
		logging.Warn("Registry", "Connection limit reached (%d) on %s transport, rejecting %s",
			r.maxConns, r.transportKind, logging.TruncateSessionID(id))
		return nil, &ConnectionLimitExceededError{Limit: r.maxConns, Current: len(r.connections)}
	}

	conn := &Connection{
		ID:            id,
		TransportKind: r.transportKind,
		OpenedAt:      time.Now(),
		Client:        r.buildClient(creds),
		lastActivity:  time.Now(),
	}
	r.connections[id] = conn

	logging.Debug("Registry", "Opened %s connection %s (total: %d)",
		r.transportKind, logging.TruncateSessionID(id), len(r.connections))
	return conn, nil
}

// Get returns the connection for an ID. Unknown or closed IDs fail with
// *ConnectionNotFoundError rather than implicitly creating new state.
func (r *ConnectionRegistry) Get(id string) (*Connection, error) {
	if err := ValidateConnectionID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	conn, exists := r.connections[id]
	r.mu.RUnlock()

	if !exists {
		return nil, &ConnectionNotFoundError{ConnectionID: id}
	}
	conn.Touch()
	return conn, nil
}

// GetClient returns the upstream client owned by a connection.
func (r *ConnectionRegistry) GetClient(id string) (*upstream.Client, error) {
	conn, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return conn.Client, nil
}

// Close removes a connection and discards its upstream client, and with it
// the credential context and affinity token. In-flight upstream calls already
// issued are not cancelled; their results are dropped when they arrive.
// Execution sessions are suite-scoped and deliberately untouched.
func (r *ConnectionRegistry) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[id]; !exists {
		return
	}
	delete(r.connections, id)
	logging.Debug("Registry", "Closed %s connection %s (total: %d)",
		r.transportKind, logging.TruncateSessionID(id), len(r.connections))
}

// Count returns the number of open connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Stop discards every connection and halts the cleanup goroutine.
func (r *ConnectionRegistry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCleanup)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = make(map[string]*Connection)
	logging.Debug("Registry", "%s connection registry stopped", r.transportKind)
}

// minCleanupInterval prevents excessive cleanup frequency when the idle
// timeout is very short.
const minCleanupInterval = time.Second

func (r *ConnectionRegistry) cleanupLoop() {
	interval := r.idleTimeout / 2
	if interval < minCleanupInterval {
		interval = minCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCleanup:
			return
		}
	}
}

func (r *ConnectionRegistry) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	count := 0
	for id, conn := range r.connections {
		if now.Sub(conn.LastActivity()) > r.idleTimeout {
			delete(r.connections, id)
			count++
		}
	}
	if count > 0 {
		logging.Debug("Registry", "Cleaned up %d idle %s connections", count, r.transportKind)
	}
}

// ConnectionNotFoundError is returned for operations against a closed or
// unknown connection ID.
type ConnectionNotFoundError struct {
	ConnectionID string
}

func (e *ConnectionNotFoundError) Error() string {
	return "connection not found: " + logging.TruncateSessionID(e.ConnectionID)
}

// InvalidConnectionIDError is returned when a connection ID fails validation.
type InvalidConnectionIDError struct {
	Reason string
}

func (e *InvalidConnectionIDError) Error() string {
	return "invalid connection ID: " + e.Reason
}

// ConnectionLimitExceededError is returned when the registry is full.
type ConnectionLimitExceededError struct {
	Limit   int
	Current int
}

func (e *ConnectionLimitExceededError) Error() string {
	return fmt.Sprintf("connection limit exceeded: %d/%d connections", e.Current, e.Limit)
}
