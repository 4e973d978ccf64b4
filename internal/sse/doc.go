// Package sse serves tool invocations to many concurrent HTTP clients.
//
// # Protocol
//
// A client opens a stream with GET on the endpoint (default /mcp). The first
// event names its session:
//
//	event: session
//	data: {"sessionId":"6f1c...","messageEndpoint":"/mcp?sessionId=6f1c..."}
//
// The session id is also returned in the Mcp-Session-Id response header.
// Requests are POSTed to the same path with the session id in the body, the
// Mcp-Session-Id header, or the sessionId query parameter. A valid POST is
// answered with 202 and the response arrives on the stream:
//
//	event: message
//	data: {"requestId":"r1","toolName":"get_hello","result":"Hello from toolgate!"}
//
// POST failures are answered synchronously:
//
//	404  UnknownSessionError  session missing or closed
//	400  MalformedFrameError  body not a request object
//	413  MalformedFrameError  body over 1MB
//	429  SessionBusyError     session inbound queue full
//
// DELETE with the session id closes the session (204, or 404 if unknown).
//
// # Sessions
//
// Each session has one worker goroutine that dispatches its requests in
// arrival order, so responses within a session never reorder and never reach
// another session. A session ends when its stream disconnects, a DELETE
// arrives, it stays idle past the idle timeout, or the Manager is closed.
// Queued output is discarded at teardown.
package sse
