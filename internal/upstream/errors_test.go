package upstream

import (
	"net/http"
	"strings"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		code int
		want StatusFamily
	}{
		{http.StatusUnauthorized, FamilyAuth},
		{http.StatusForbidden, FamilyAuth},
		{http.StatusNotFound, FamilyNotFound},
		{http.StatusGone, FamilyNotFound},
		{http.StatusBadRequest, FamilyValidation},
		{http.StatusUnprocessableEntity, FamilyValidation},
		{http.StatusInternalServerError, FamilyServer},
		{http.StatusBadGateway, FamilyServer},
		{http.StatusMovedPermanently, FamilyOther},
	}

	for _, c := range cases {
		if got := classifyStatus(c.code); got != c.want {
			t.Errorf("classifyStatus(%d) = %s, want %s", c.code, got, c.want)
		}
	}
}

func TestExtractErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"message field", `{"message":"boom"}`, "boom"},
		{"error field", `{"error":"broken"}`, "broken"},
		{"nested errors", `{"errors":[{"message":"first"},{"message":"second"}]}`, "first"},
		{"detail field", `{"detail":"why"}`, "why"},
		{"message preferred", `{"message":"msg","error":"err"}`, "msg"},
		{"empty body", ``, ""},
		{"unstructured", `<html>oops</html>`, ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := extractErrorMessage([]byte(c.body)); got != c.want {
				t.Errorf("extractErrorMessage(%q) = %q, want %q", c.body, got, c.want)
			}
		})
	}
}

func TestErrorStringNeverContainsCredentials(t *testing.T) {
	err := newUpstreamError("result list", "project 1", http.StatusUnauthorized, []byte(`{"message":"bad token"}`))

	msg := err.Error()
	if !strings.Contains(msg, "auth") {
		t.Errorf("Expected status family in message, got %q", msg)
	}
	if !strings.Contains(msg, "project 1") {
		t.Errorf("Expected resource in message, got %q", msg)
	}
	if !strings.Contains(msg, "401") {
		t.Errorf("Expected status code in message, got %q", msg)
	}
}
