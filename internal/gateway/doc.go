// Package gateway composes a toolgate process.
//
// # Overview
//
// New builds every component from a config.Config in dependency order:
//
//  1. The audit store (optional, database.path)
//  2. The tool registry with the built-in tools, then frozen
//  3. One dispatcher shared by every transport
//  4. The stdio transport on the process's stdin and stdout
//  5. The SSE session manager and its chi router
//  6. The gRPC health service (optional, server.grpc_addr)
//
// # HTTP Routes
//
//   - GET /health - liveness, {"status":"UP",...}
//   - GET / - service description and endpoint links
//   - GET, POST, DELETE on transports.sse.path - the SSE transport
//
// # Lifecycle
//
// Run starts the enabled transports and blocks. It stops when the context is
// canceled, when a server fails, or when stdin closes and
// transports.stdio.exit_on_eof is set. A fatal stdio error while HTTP is up
// only stops stdio. Shutdown then closes the HTTP server, every SSE session,
// the gRPC server, the Tailscale node, and the store, within five seconds.
//
// With tailscale.enabled the HTTP server listens on :80 of a tsnet node
// instead of server.http_addr.
package gateway
