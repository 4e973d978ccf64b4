// Package dispatch turns a decoded Request into exactly one Response.
//
// The dispatcher resolves the tool in the frozen registry, binds the raw
// arguments, runs the handler under a deadline, and encodes the result.
// Every failure is reported as an ErrorBody with a stable Kind:
//
//	UnknownToolError       tool name not registered
//	MissingParameterError  required parameter absent or null (Param set)
//	TypeMismatchError      argument not coercible (Param set)
//	HandlerExecutionError  handler error, panic, timeout, or unencodable result
//
// Transports add UnknownSessionError, MalformedFrameError and
// SessionBusyError for failures that happen before dispatch.
package dispatch
