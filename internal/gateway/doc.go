// Package gateway is the inbound boundary of testgate: the MCP servers for
// the two transports and the per-transport connection registries.
//
// The SSE transport assigns a session ID at stream-open time and exposes a
// companion message endpoint parameterized by it; the streamable HTTP
// transport derives its session ID from the initialize message and requires
// it on every follow-up message. The two registries are independent because
// of these different identification rules, but both feed the same shared
// execution tracker and lookup cache.
//
// Per-connection state (credential context, affinity token) lives inside the
// upstream client owned by each connection and dies with it. Operations on
// one connection may execute concurrently; there is no per-connection
// serialization, so callers must not assume FIFO completion order for
// overlapping calls.
package gateway
