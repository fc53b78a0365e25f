package gateway

import (
	"context"
	"net/http"
	"strings"

	"testgate/internal/upstream"
)

type contextKey int

const credentialsKey contextKey = iota

// CredentialsFromRequest extracts connection credentials from an inbound
// transport request.
//
// Accepted forms, in order: an Authorization header of `Token <value>` or
// `Bearer <value>` (Bearer is translated to the platform's Token scheme for
// outbound use), then the named query parameters token or username/password
// as a fallback for transports that cannot set headers.
func CredentialsFromRequest(r *http.Request) upstream.Credentials {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if scheme, value, found := strings.Cut(auth, " "); found {
			switch strings.ToLower(scheme) {
			case "token", "bearer":
				return upstream.Credentials{Token: strings.TrimSpace(value)}
			}
		}
	}

	query := r.URL.Query()
	if token := query.Get("token"); token != "" {
		return upstream.Credentials{Token: token}
	}
	return upstream.Credentials{
		Username: query.Get("username"),
		Password: query.Get("password"),
	}
}

// WithCredentials stores credentials on the context for later pickup by the
// session-registration hook.
func WithCredentials(ctx context.Context, creds upstream.Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey, creds)
}

// CredentialsFromContext returns the credentials stored by the transport
// context function, or the empty credentials when none were supplied.
func CredentialsFromContext(ctx context.Context) upstream.Credentials {
	creds, _ := ctx.Value(credentialsKey).(upstream.Credentials)
	return creds
}
