package upstream

import (
	"encoding/base64"
	"net/http"
	"testing"
)

func TestResolveCredentialsTokenWins(t *testing.T) {
	// A token wins regardless of any username/password also supplied.
	cases := []Credentials{
		{Token: "abc123"},
		{Token: "abc123", Username: "alice"},
		{Token: "abc123", Username: "alice", Password: "s3cret"},
		{Token: "abc123", Password: "s3cret"},
	}

	for _, creds := range cases {
		cc := ResolveCredentials(creds)
		if cc.Scheme != SchemeToken {
			t.Errorf("Expected token scheme for %+v, got %s", creds, cc.Scheme)
		}

		h := make(http.Header)
		cc.Apply(h)
		if got := h.Get("Authorization"); got != "Token abc123" {
			t.Errorf("Expected 'Token abc123', got %q", got)
		}
	}
}

func TestResolveCredentialsBasic(t *testing.T) {
	cc := ResolveCredentials(Credentials{Username: "alice", Password: "s3cret"})
	if cc.Scheme != SchemeBasic {
		t.Fatalf("Expected basic scheme, got %s", cc.Scheme)
	}

	h := make(http.Header)
	cc.Apply(h)
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:s3cret"))
	if got := h.Get("Authorization"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestResolveCredentialsNone(t *testing.T) {
	cc := ResolveCredentials(Credentials{})
	if cc.Scheme != SchemeNone {
		t.Errorf("Expected none scheme, got %s", cc.Scheme)
	}

	h := make(http.Header)
	cc.Apply(h)
	if got := h.Get("Authorization"); got != "" {
		t.Errorf("Expected no authorization header, got %q", got)
	}
}

func TestResolveCredentialsPartialBasicDegradesToNone(t *testing.T) {
	// Partial credentials are not an error: the upstream rejects the request
	// itself if it requires authentication.
	for _, creds := range []Credentials{
		{Username: "alice"},
		{Password: "s3cret"},
	} {
		cc := ResolveCredentials(creds)
		if cc.Scheme != SchemeNone {
			t.Errorf("Expected none scheme for %+v, got %s", creds, cc.Scheme)
		}

		h := make(http.Header)
		cc.Apply(h)
		if got := h.Get("Authorization"); got != "" {
			t.Errorf("Expected no authorization header for %+v, got %q", creds, got)
		}
	}
}

func TestCredentialContextFingerprintHidesSecret(t *testing.T) {
	cc := ResolveCredentials(Credentials{Token: "very-secret-token"})
	if cc.Fingerprint == "" {
		t.Fatal("Expected a fingerprint")
	}
	if cc.Fingerprint == "very-secret-token" {
		t.Error("Fingerprint must not equal the raw token")
	}
	if len(cc.Fingerprint) >= len("very-secret-token") {
		t.Errorf("Expected truncated fingerprint, got %q", cc.Fingerprint)
	}
}
