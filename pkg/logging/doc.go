// Package logging provides the structured logging system for testgate.
//
// It wraps Go's standard slog package with subsystem-tagged helpers so that
// every log line carries a consistent category (Gateway, Upstream, Tracker,
// Registry, Config, Bootstrap). Initialize once at startup:
//
//	logging.Init(logging.LevelInfo, os.Stdout)
//
//	logging.Info("Bootstrap", "Gateway starting up")
//	logging.Error("Upstream", err, "Request to %s failed", url)
//
// Sensitive material never reaches logs directly: session IDs go through
// TruncateSessionID and credential secrets through Fingerprint, which yields
// a short SHA-256 digest suitable for correlating configurations without
// exposing them.
package logging
