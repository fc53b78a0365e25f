package upstream

import (
	"net/http"
	"testing"
)

func TestAffinityStoreCapturesSessionCookie(t *testing.T) {
	s := NewAffinityStore()

	resp := make(http.Header)
	resp.Add("Set-Cookie", "JSESSIONID=abc123; Path=/; HttpOnly")
	s.OnResponse(resp)

	if got := s.Cookie(); got != "JSESSIONID=abc123" {
		t.Errorf("Expected cookie attributes stripped, got %q", got)
	}
}

func TestAffinityStoreLastWriteWins(t *testing.T) {
	s := NewAffinityStore()

	first := make(http.Header)
	first.Add("Set-Cookie", "JSESSIONID=first")
	s.OnResponse(first)

	second := make(http.Header)
	second.Add("Set-Cookie", "JSESSIONID=second; Secure")
	s.OnResponse(second)

	if got := s.Cookie(); got != "JSESSIONID=second" {
		t.Errorf("Expected last-write-wins, got %q", got)
	}
}

func TestAffinityStoreIgnoresOtherCookies(t *testing.T) {
	s := NewAffinityStore()

	resp := make(http.Header)
	resp.Add("Set-Cookie", "theme=dark; Path=/")
	s.OnResponse(resp)

	if got := s.Cookie(); got != "" {
		t.Errorf("Expected no capture for non-session cookie, got %q", got)
	}
}

func TestAffinityStoreApplyToEmptyWhenNothingStored(t *testing.T) {
	s := NewAffinityStore()

	out := make(http.Header)
	s.ApplyTo(out)

	if got := out.Get("Cookie"); got != "" {
		t.Errorf("Expected no cookie header, got %q", got)
	}
}

func TestAffinityStoreApplyToSetsCookie(t *testing.T) {
	s := NewAffinityStore()
	resp := make(http.Header)
	resp.Add("Set-Cookie", "JSESSIONID=abc123; Path=/")
	s.OnResponse(resp)

	out := make(http.Header)
	s.ApplyTo(out)

	if got := out.Get("Cookie"); got != "JSESSIONID=abc123" {
		t.Errorf("Expected stored cookie applied, got %q", got)
	}
}

func TestAffinityStoreAppendsToExistingCookieHeader(t *testing.T) {
	s := NewAffinityStore()
	resp := make(http.Header)
	resp.Add("Set-Cookie", "JSESSIONID=abc123")
	s.OnResponse(resp)

	out := make(http.Header)
	out.Set("Cookie", "EXECUTION=xyz")
	s.ApplyTo(out)

	if got := out.Get("Cookie"); got != "EXECUTION=xyz; JSESSIONID=abc123" {
		t.Errorf("Expected append to explicit cookie header, got %q", got)
	}
}
