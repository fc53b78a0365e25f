package upstream

import (
	"encoding/base64"
	"net/http"
	"sync"

	"testgate/pkg/logging"
)

// CredentialScheme identifies how a connection authenticates against the
// upstream platform.
type CredentialScheme string

const (
	// SchemeToken authenticates with the platform's API token scheme.
	SchemeToken CredentialScheme = "token"
	// SchemeBasic authenticates with username and password.
	SchemeBasic CredentialScheme = "basic"
	// SchemeNone sends no authorization header. The upstream rejects the
	// request itself if it requires authentication.
	SchemeNone CredentialScheme = "none"
)

// Credentials is the raw credential material supplied by a connection.
// Any combination of fields may be empty.
type Credentials struct {
	Token    string
	Username string
	Password string
}

// CredentialContext is the resolved, immutable credential state of one
// connection. The header value is built once at connection open and never
// refreshed. Raw material is not reachable from this type; diagnostics use
// the fingerprint only.
type CredentialContext struct {
	Scheme      CredentialScheme
	Fingerprint string

	headerValue string
}

// warnedConfigs tracks credential configurations that have already produced a
// warning, so partial credentials are logged once per unique configuration
// rather than once per request.
var warnedConfigs sync.Map

// ResolveCredentials turns raw credentials into a CredentialContext.
//
// Precedence is fixed: a token wins regardless of any username or password
// also supplied; otherwise username and password together select the basic
// scheme; anything else resolves to none. A username without a password (or
// the reverse) is not an error, it degrades to none with a one-time warning.
func ResolveCredentials(creds Credentials) CredentialContext {
	switch {
	case creds.Token != "":
		return CredentialContext{
			Scheme:      SchemeToken,
			Fingerprint: logging.Fingerprint(creds.Token),
			headerValue: "Token " + creds.Token,
		}

	case creds.Username != "" && creds.Password != "":
		raw := creds.Username + ":" + creds.Password
		return CredentialContext{
			Scheme:      SchemeBasic,
			Fingerprint: logging.Fingerprint(raw),
			headerValue: "Basic " + base64.StdEncoding.EncodeToString([]byte(raw)),
		}

	case creds.Username != "" || creds.Password != "":
		fp := logging.Fingerprint(creds.Username + ":" + creds.Password)
		if _, seen := warnedConfigs.LoadOrStore(fp, struct{}{}); !seen {
			logging.Warn("Credentials", "Partial basic credentials supplied (config %s), proceeding unauthenticated", fp)
		}
		return CredentialContext{Scheme: SchemeNone, Fingerprint: fp}

	default:
		return CredentialContext{Scheme: SchemeNone}
	}
}

// Apply attaches the resolved authorization header to an outbound request.
// It is a no-op for the none scheme.
func (c CredentialContext) Apply(h http.Header) {
	if c.headerValue == "" {
		return
	}
	h.Set("Authorization", c.headerValue)
}
