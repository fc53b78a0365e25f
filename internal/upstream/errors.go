package upstream

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// StatusFamily classifies a non-2xx upstream response so callers can act on
// the failure without parsing status codes themselves.
type StatusFamily string

const (
	// FamilyAuth covers 401 and 403.
	FamilyAuth StatusFamily = "auth"
	// FamilyNotFound covers 404 and 410.
	FamilyNotFound StatusFamily = "not_found"
	// FamilyValidation covers the remaining 4xx codes.
	FamilyValidation StatusFamily = "validation"
	// FamilyServer covers 5xx codes.
	FamilyServer StatusFamily = "server"
	// FamilyOther covers everything else (unexpected 1xx/3xx).
	FamilyOther StatusFamily = "other"
)

func classifyStatus(code int) StatusFamily {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return FamilyAuth
	case code == http.StatusNotFound || code == http.StatusGone:
		return FamilyNotFound
	case code >= 400 && code < 500:
		return FamilyValidation
	case code >= 500:
		return FamilyServer
	default:
		return FamilyOther
	}
}

// Error is a classified upstream failure. It carries enough structure for a
// caller to act on (status family, resource, operation) but never raw
// credential material.
type Error struct {
	Operation  string
	Resource   string
	StatusCode int
	Family     StatusFamily
	Message    string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "upstream %s failed (%s, status %d)", e.Operation, e.Family, e.StatusCode)
	if e.Resource != "" {
		fmt.Fprintf(&b, " for %s", e.Resource)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

// newUpstreamError builds an Error from a non-2xx response, preferring the
// upstream's own structured error payload when one is present.
func newUpstreamError(operation, resource string, statusCode int, body []byte) *Error {
	return &Error{
		Operation:  operation,
		Resource:   resource,
		StatusCode: statusCode,
		Family:     classifyStatus(statusCode),
		Message:    extractErrorMessage(body),
	}
}

// extractErrorMessage pulls a human-readable message out of the upstream's
// error payload. The platform is not consistent about the field it uses.
func extractErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	for _, path := range []string{"message", "error", "errors.0.message", "detail"} {
		if msg := gjson.GetBytes(body, path); msg.Exists() && msg.String() != "" {
			return msg.String()
		}
	}
	return ""
}
