// ABOUTME: Wire envelope types shared by every transport: request, response, error body.
// ABOUTME: Error kinds are stable strings clients branch on.

package dispatch

import "encoding/json"

// Kind classifies an error response. Values are stable across releases.
type Kind string

const (
	KindUnknownTool      Kind = "UnknownToolError"
	KindMissingParameter Kind = "MissingParameterError"
	KindTypeMismatch     Kind = "TypeMismatchError"
	KindHandlerExecution Kind = "HandlerExecutionError"
	KindUnknownSession   Kind = "UnknownSessionError"
	KindMalformedFrame   Kind = "MalformedFrameError"
	KindSessionBusy      Kind = "SessionBusyError"
)

// ErrorBody is the error half of a Response.
type ErrorBody struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

// Request is one tool invocation as decoded by a transport.
type Request struct {
	RequestID json.RawMessage `json:"requestId"`
	ToolName  string          `json:"toolName"`
	Arguments map[string]any  `json:"arguments,omitempty"`

	Transport string `json:"-"`
	SessionID string `json:"-"`
}

// Response carries exactly one of Result or Error.
// RequestID is echoed verbatim from the request.
type Response struct {
	RequestID json.RawMessage `json:"requestId"`
	ToolName  string          `json:"toolName"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ErrorBody      `json:"error,omitempty"`
}

// OK reports whether the response carries a result.
func (r Response) OK() bool {
	return r.Error == nil
}

// ErrorResponse builds an error envelope. Transports use it for failures
// that happen before dispatch, such as malformed frames.
func ErrorResponse(requestID json.RawMessage, toolName string, kind Kind, message string) Response {
	return Response{
		RequestID: normalizeID(requestID),
		ToolName:  toolName,
		Error:     &ErrorBody{Kind: kind, Message: message},
	}
}

// normalizeID maps an absent requestId to JSON null.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
