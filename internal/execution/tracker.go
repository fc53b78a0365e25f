// Package execution tracks the stateful multi-step execution workflow of the
// upstream platform. Starting a suite execution produces response headers
// that later status and result calls must replay to address the same
// upstream execution context; the Tracker is where those headers live
// between calls.
//
// Tracker state is process-wide and keyed by suite ID only, not by
// connection. Two connections operating on the same suite share (and can
// clobber) each other's execution session; see DESIGN.md for the rationale.
package execution

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"testgate/pkg/logging"
)

// Session is the stored header context linking a start call to later result
// calls for one suite.
type Session struct {
	SuiteID   string
	Headers   http.Header
	StartedAt time.Time
}

// Tracker stores at most one execution session per suite. Starting a new
// execution for a suite discards the prior session unconditionally, from any
// connection. There is no queueing or versioning of concurrent runs.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*Session)}
}

// Start clears any prior session for the suite and marks the start time. The
// caller issues the upstream start call afterwards and records its response
// headers with Capture.
func (t *Tracker) Start(suiteID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, existed := t.sessions[suiteID]; existed {
		logging.Debug("Tracker", "Discarding prior execution session for suite %s", suiteID)
	}
	t.sessions[suiteID] = &Session{
		SuiteID:   suiteID,
		StartedAt: time.Now(),
	}
}

// Capture stores the subset of start-response headers needed to address the
// same upstream execution context on follow-up calls. Generic transport and
// caching headers are stripped; Set-Cookie fragments are merged into one
// Cookie header value.
func (t *Tracker) Capture(suiteID string, responseHeaders http.Header) {
	filtered := filterSessionHeaders(responseHeaders)

	t.mu.Lock()
	defer t.mu.Unlock()

	session, exists := t.sessions[suiteID]
	if !exists {
		session = &Session{SuiteID: suiteID, StartedAt: time.Now()}
		t.sessions[suiteID] = session
	}
	session.Headers = filtered
}

// HeadersFor returns the stored headers for a suite's active execution
// session. A suite without one fails with *NoSessionError so the caller gets
// an actionable message instead of silently empty data.
func (t *Tracker) HeadersFor(suiteID string) (http.Header, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	session, exists := t.sessions[suiteID]
	if !exists || session.Headers == nil {
		return nil, &NoSessionError{SuiteID: suiteID}
	}
	return session.Headers.Clone(), nil
}

// Clear removes the suite's session, if any.
func (t *Tracker) Clear(suiteID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, suiteID)
}

// Count returns the number of active sessions.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// strippedHeaders are generic transport and caching headers that do not
// address the upstream execution context and must not be replayed.
var strippedHeaders = map[string]struct{}{
	"Content-Type":      {},
	"Content-Length":    {},
	"Content-Encoding":  {},
	"Transfer-Encoding": {},
	"Cache-Control":     {},
	"Expires":           {},
	"Pragma":            {},
	"Date":              {},
	"Connection":        {},
	"Keep-Alive":        {},
	"Vary":              {},
	"Server":            {},
	"Set-Cookie":        {}, // merged into Cookie below, never replayed raw
}

func filterSessionHeaders(responseHeaders http.Header) http.Header {
	filtered := make(http.Header)
	for name, values := range responseHeaders {
		if _, strip := strippedHeaders[http.CanonicalHeaderKey(name)]; strip {
			continue
		}
		for _, v := range values {
			filtered.Add(name, v)
		}
	}

	// Session cookie fragments become one Cookie header value.
	var pairs []string
	for _, raw := range responseHeaders.Values("Set-Cookie") {
		pair, _, _ := strings.Cut(raw, ";")
		pair = strings.TrimSpace(pair)
		if strings.Contains(pair, "=") {
			pairs = append(pairs, pair)
		}
	}
	if len(pairs) > 0 {
		filtered.Set("Cookie", strings.Join(pairs, "; "))
	}

	return filtered
}

// NoSessionError is returned when a result-fetch call targets a suite with
// no active execution session.
type NoSessionError struct {
	SuiteID string
}

func (e *NoSessionError) Error() string {
	return "no active execution session for suite " + e.SuiteID + "; start one first"
}
