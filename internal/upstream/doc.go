// Package upstream is the outbound HTTP boundary of testgate.
//
// Every call to the test-execution platform flows through a Client. A Client
// is owned by exactly one gateway connection and bundles the connection's
// resolved credentials with its affinity state (the upstream session cookie).
// Outbound request mutation is an explicit ordered pipeline of stages so that
// the ordering and idempotence of each mutation can be tested in isolation:
// credential attach, affinity attach, correlation header, request logging.
//
// The package also hosts the data-shaping layers that sit directly on the
// wire format: the response shape normalizer, which collapses the three list
// response shapes the platform can produce into one canonical page, and the
// pagination reconciler, which re-windows caller-filtered results that the
// platform cannot filter server-side.
package upstream
