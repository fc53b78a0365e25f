package upstream

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// sessionCookieName is the cookie the upstream platform uses to tie requests
// to its server-side session context.
const sessionCookieName = "JSESSIONID"

// AffinityStore captures the upstream session cookie and replays it on
// subsequent outbound calls from the same connection. The stored value is
// last-write-wins and has no expiry: it lives as long as the owning Client.
type AffinityStore struct {
	mu         sync.Mutex
	cookie     string // name=value, attributes discarded
	capturedAt time.Time
}

// NewAffinityStore returns an empty store.
func NewAffinityStore() *AffinityStore {
	return &AffinityStore{}
}

// OnResponse inspects response headers for the upstream session cookie and,
// when present, stores just the name=value pair, overwriting any prior value.
func (s *AffinityStore) OnResponse(h http.Header) {
	for _, raw := range h.Values("Set-Cookie") {
		pair := cookiePair(raw)
		if pair == "" {
			continue
		}
		name, _, _ := strings.Cut(pair, "=")
		if !strings.EqualFold(name, sessionCookieName) {
			continue
		}
		s.mu.Lock()
		s.cookie = pair
		s.capturedAt = time.Now()
		s.mu.Unlock()
	}
}

// ApplyTo attaches the stored cookie to an outbound request. If the request
// already carries an explicit Cookie header the stored value is appended
// rather than overwriting it.
func (s *AffinityStore) ApplyTo(h http.Header) {
	s.mu.Lock()
	cookie := s.cookie
	s.mu.Unlock()

	if cookie == "" {
		return
	}
	if existing := h.Get("Cookie"); existing != "" {
		h.Set("Cookie", existing+"; "+cookie)
		return
	}
	h.Set("Cookie", cookie)
}

// Cookie returns the currently stored name=value pair, or "" when none has
// been captured yet.
func (s *AffinityStore) Cookie() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cookie
}

// cookiePair strips cookie attributes (Path, HttpOnly, ...) from a raw
// Set-Cookie value, leaving only name=value.
func cookiePair(raw string) string {
	pair, _, _ := strings.Cut(raw, ";")
	pair = strings.TrimSpace(pair)
	if !strings.Contains(pair, "=") {
		return ""
	}
	return pair
}
