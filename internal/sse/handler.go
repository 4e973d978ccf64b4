// ABOUTME: HTTP side of the SSE transport: GET opens a stream, POST submits, DELETE closes.
// ABOUTME: POST answers 202 immediately; the response arrives later on the session's stream.

package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/2389/toolgate/internal/dispatch"
)

// MaxRequestBodySize is the maximum allowed size for POST bodies (1MB).
const MaxRequestBodySize = 1 << 20

// SessionHeader carries the session id on POST and DELETE.
const SessionHeader = "Mcp-Session-Id"

// DefaultKeepaliveInterval is how often an idle stream gets a comment line.
const DefaultKeepaliveInterval = 15 * time.Second

// HandlerConfig contains configuration options for the Handler.
type HandlerConfig struct {
	Path              string        // default "/mcp"
	KeepaliveInterval time.Duration // negative disables keepalives
	Logger            *slog.Logger
}

// Handler serves the SSE transport endpoints.
type Handler struct {
	manager   *Manager
	path      string
	keepalive time.Duration
	logger    *slog.Logger
}

// NewHandler creates the HTTP handler for a session manager.
func NewHandler(m *Manager, cfg HandlerConfig) *Handler {
	path := cfg.Path
	if path == "" {
		path = "/mcp"
	}
	keepalive := cfg.KeepaliveInterval
	if keepalive == 0 {
		keepalive = DefaultKeepaliveInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		manager:   m,
		path:      path,
		keepalive: keepalive,
		logger:    logger.With("component", "sse"),
	}
}

// Path returns the endpoint path the handler is mounted at.
func (h *Handler) Path() string {
	return h.path
}

// RegisterRoutes mounts GET, POST and DELETE on the configured path.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get(h.path, h.handleStream)
	r.Post(h.path, h.handlePost)
	r.Delete(h.path, h.handleDelete)
}

// sessionEvent is the first event on every stream.
type sessionEvent struct {
	SessionID       string `json:"sessionId"`
	MessageEndpoint string `json:"messageEndpoint"`
}

// acceptedBody is returned for a queued POST.
type acceptedBody struct {
	Status    string          `json:"status"`
	RequestID json.RawMessage `json:"requestId"`
}

// postMessage is the POST body: a request plus the session it belongs to.
type postMessage struct {
	SessionID string `json:"sessionId,omitempty"`
	dispatch.Request
}

// handleStream opens a session and streams its responses until the client
// goes away or the session is torn down.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sess, err := h.manager.Create()
	if err != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.manager.Remove(sess.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set(SessionHeader, sess.ID)
	w.WriteHeader(http.StatusOK)

	endpoint := h.path + "?sessionId=" + url.QueryEscape(sess.ID)
	if err := writeSSEEvent(w, "session", sessionEvent{SessionID: sess.ID, MessageEndpoint: endpoint}); err != nil {
		h.logger.Warn("stream write failed", "session_id", sess.ID, "error", err)
		return
	}
	flusher.Flush()

	var tick <-chan time.Time
	if h.keepalive > 0 {
		ticker := time.NewTicker(h.keepalive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("client disconnected", "session_id", sess.ID)
			return

		case <-sess.Done():
			return

		case resp := <-sess.Outbound():
			if err := writeSSEEvent(w, "message", resp); err != nil {
				h.logger.Warn("stream write failed", "session_id", sess.ID, "error", err)
				return
			}
			flusher.Flush()
			sess.touch()

		case <-tick:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				h.logger.Debug("keepalive failed", "session_id", sess.ID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// handlePost validates and queues one request for its session.
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.sendError(w, http.StatusRequestEntityTooLarge,
				dispatch.ErrorResponse(nil, "", dispatch.KindMalformedFrame, "request body too large"))
			return
		}
		h.sendError(w, http.StatusBadRequest,
			dispatch.ErrorResponse(nil, "", dispatch.KindMalformedFrame, "failed to read request body"))
		return
	}

	msg, err := decodePost(body)
	if err != nil {
		id := gjson.GetBytes(body, "requestId")
		var rawID json.RawMessage
		if id.Exists() && json.Valid([]byte(id.Raw)) {
			rawID = json.RawMessage(id.Raw)
		}
		h.sendError(w, http.StatusBadRequest,
			dispatch.ErrorResponse(rawID, gjson.GetBytes(body, "toolName").String(), dispatch.KindMalformedFrame, err.Error()))
		return
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = sessionIDFromRequest(r)
	}
	if sessionID == "" {
		h.sendError(w, http.StatusBadRequest,
			dispatch.ErrorResponse(msg.RequestID, msg.ToolName, dispatch.KindMalformedFrame, "sessionId is required"))
		return
	}

	err = h.manager.Submit(sessionID, msg.Request)
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionBusy):
		h.sendError(w, http.StatusTooManyRequests,
			dispatch.ErrorResponse(msg.RequestID, msg.ToolName, dispatch.KindSessionBusy, err.Error()))
		return
	default:
		h.sendError(w, http.StatusNotFound,
			dispatch.ErrorResponse(msg.RequestID, msg.ToolName, dispatch.KindUnknownSession, err.Error()))
		return
	}

	h.logger.Debug("request accepted",
		"session_id", sessionID,
		"tool_name", msg.ToolName,
		"request_id", string(msg.RequestID),
	)
	reqID := msg.RequestID
	if len(reqID) == 0 {
		reqID = json.RawMessage("null")
	}
	sendJSON(w, http.StatusAccepted, acceptedBody{Status: "accepted", RequestID: reqID})
}

// handleDelete closes a session on request.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromRequest(r)
	if sessionID == "" {
		h.sendError(w, http.StatusBadRequest,
			dispatch.ErrorResponse(nil, "", dispatch.KindMalformedFrame, "missing "+SessionHeader))
		return
	}

	if !h.manager.Remove(sessionID) {
		h.sendError(w, http.StatusNotFound,
			dispatch.ErrorResponse(nil, "", dispatch.KindUnknownSession, fmt.Sprintf("%v: '%s'", ErrUnknownSession, sessionID)))
		return
	}

	h.logger.Info("session terminated by client", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// decodePost parses a POST body. toolName is required; arguments must be an object.
func decodePost(body []byte) (*postMessage, error) {
	var msg postMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid request body: trailing data after object")
	}
	if msg.ToolName == "" {
		return nil, errors.New("invalid request body: toolName is required")
	}
	return &msg, nil
}

func sessionIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("sessionId")
}

// writeSSEEvent writes a single SSE event to the response writer.
func writeSSEEvent(w io.Writer, event string, data any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal SSE data: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, dataJSON)
	return err
}

func (h *Handler) sendError(w http.ResponseWriter, status int, resp dispatch.Response) {
	h.logger.Debug("rejecting request",
		"status", status,
		"kind", resp.Error.Kind,
		"error", resp.Error.Message,
	)
	sendJSON(w, status, resp)
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
