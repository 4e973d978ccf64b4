// ABOUTME: End-to-end tests for the SSE transport over httptest servers
// ABOUTME: Covers the session event, async delivery, ordering, isolation, and HTTP error statuses

package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/toolgate/internal/dispatch"
	"github.com/2389/toolgate/internal/tools"
)

type sseEvent struct {
	Event string
	Data  string
}

// stream is an open GET /mcp connection.
type stream struct {
	sessionID string
	events    chan sseEvent
	cancel    context.CancelFunc
}

func (s *stream) next(t *testing.T) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-s.events:
		if !ok {
			t.Fatal("stream closed")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for SSE event")
		return sseEvent{}
	}
}

func (s *stream) nextResponse(t *testing.T) dispatch.Response {
	t.Helper()
	ev := s.next(t)
	require.Equal(t, "message", ev.Event)
	var resp dispatch.Response
	require.NoError(t, json.Unmarshal([]byte(ev.Data), &resp))
	return resp
}

func newTestServer(t *testing.T, mcfg ManagerConfig, hcfg HandlerConfig) (*httptest.Server, *Manager) {
	t.Helper()
	if mcfg.Invoker == nil {
		reg := tools.NewRegistry(nil)
		reg.MustRegister(tools.ToolDefinition{
			Name:       "echo",
			Parameters: []tools.ParameterSpec{{Name: "msg", Type: tools.TypeString, Required: true}},
			Handler: func(_ context.Context, args tools.Args) (any, error) {
				return args.String("msg"), nil
			},
		})
		reg.Freeze()
		mcfg.Invoker = dispatch.New(dispatch.Config{Registry: reg})
	}

	m := NewManager(mcfg)
	h := NewHandler(m, hcfg)
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		m.Close()
		srv.Close()
	})
	return srv, m
}

func openStream(t *testing.T, srv *httptest.Server) *stream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/mcp", nil)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	s := &stream{events: make(chan sseEvent, 32), cancel: cancel}
	go func() {
		defer close(s.events)
		defer resp.Body.Close()
		rd := bufio.NewReader(resp.Body)
		var ev sseEvent
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				if ev.Event != "" {
					s.events <- ev
				}
				ev = sseEvent{}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "event: "):
				ev.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.Data = strings.TrimPrefix(line, "data: ")
			}
		}
	}()
	t.Cleanup(cancel)

	first := s.next(t)
	require.Equal(t, "session", first.Event)
	var se sessionEvent
	require.NoError(t, json.Unmarshal([]byte(first.Data), &se))
	require.NotEmpty(t, se.SessionID)
	assert.Equal(t, se.SessionID, resp.Header.Get(SessionHeader))
	assert.Equal(t, "/mcp?sessionId="+se.SessionID, se.MessageEndpoint)
	s.sessionID = se.SessionID
	return s
}

func post(t *testing.T, srv *httptest.Server, body string, header map[string]string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), "body: %s", data)
	}
	return resp.StatusCode, out
}

func echoBody(sessionID, requestID, msg string) string {
	return fmt.Sprintf(`{"sessionId":%q,"requestId":%q,"toolName":"echo","arguments":{"msg":%q}}`, sessionID, requestID, msg)
}

func errorKind(t *testing.T, body map[string]any) string {
	t.Helper()
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok, "body has no error: %v", body)
	kind, _ := errBody["kind"].(string)
	return kind
}

func TestHandler_RoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, ManagerConfig{}, HandlerConfig{})
	s := openStream(t, srv)

	status, body := post(t, srv, echoBody(s.sessionID, "r1", "hello"), nil)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, "r1", body["requestId"])

	resp := s.nextResponse(t)
	assert.Equal(t, `"r1"`, string(resp.RequestID))
	assert.Equal(t, "echo", resp.ToolName)
	assert.JSONEq(t, `"hello"`, string(resp.Result))
}

func TestHandler_SessionFromHeaderAndQuery(t *testing.T) {
	srv, _ := newTestServer(t, ManagerConfig{}, HandlerConfig{})
	s := openStream(t, srv)

	status, _ := post(t, srv, `{"requestId":"h","toolName":"echo","arguments":{"msg":"x"}}`,
		map[string]string{SessionHeader: s.sessionID})
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, `"h"`, string(s.nextResponse(t).RequestID))

	resp, err := srv.Client().Post(srv.URL+"/mcp?sessionId="+s.sessionID, "application/json",
		strings.NewReader(`{"requestId":"q","toolName":"echo","arguments":{"msg":"x"}}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, `"q"`, string(s.nextResponse(t).RequestID))
}

func TestHandler_DispatchErrorsDeliveredOnStream(t *testing.T) {
	srv, _ := newTestServer(t, ManagerConfig{}, HandlerConfig{})
	s := openStream(t, srv)

	body := fmt.Sprintf(`{"sessionId":%q,"requestId":"m","toolName":"echo","arguments":{}}`, s.sessionID)
	status, _ := post(t, srv, body, nil)
	require.Equal(t, http.StatusAccepted, status)

	resp := s.nextResponse(t)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dispatch.KindMissingParameter, resp.Error.Kind)
	assert.Equal(t, "msg", resp.Error.Param)
}

func TestHandler_OrderingWithinSession(t *testing.T) {
	srv, _ := newTestServer(t, ManagerConfig{}, HandlerConfig{})
	s := openStream(t, srv)

	for i := 0; i < 10; i++ {
		status, _ := post(t, srv, echoBody(s.sessionID, fmt.Sprintf("r%d", i), fmt.Sprintf("m%d", i)), nil)
		require.Equal(t, http.StatusAccepted, status)
	}
	for i := 0; i < 10; i++ {
		resp := s.nextResponse(t)
		assert.Equal(t, fmt.Sprintf(`"r%d"`, i), string(resp.RequestID))
	}
}

func TestHandler_SessionIsolation(t *testing.T) {
	srv, _ := newTestServer(t, ManagerConfig{}, HandlerConfig{})
	a := openStream(t, srv)
	b := openStream(t, srv)
	require.NotEqual(t, a.sessionID, b.sessionID)

	status, _ := post(t, srv, echoBody(a.sessionID, "for-a", "A"), nil)
	require.Equal(t, http.StatusAccepted, status)
	status, _ = post(t, srv, echoBody(b.sessionID, "for-b", "B"), nil)
	require.Equal(t, http.StatusAccepted, status)

	ra := a.nextResponse(t)
	rb := b.nextResponse(t)
	assert.Equal(t, `"for-a"`, string(ra.RequestID))
	assert.JSONEq(t, `"A"`, string(ra.Result))
	assert.Equal(t, `"for-b"`, string(rb.RequestID))
	assert.JSONEq(t, `"B"`, string(rb.Result))

	select {
	case ev := <-a.events:
		t.Fatalf("unexpected extra event on session a: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandler_PostErrors(t *testing.T) {
	srv, _ := newTestServer(t, ManagerConfig{}, HandlerConfig{})
	s := openStream(t, srv)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   string
		wantID     any
	}{
		{"unknown session", echoBody("does-not-exist", "u1", "x"), http.StatusNotFound, "UnknownSessionError", "u1"},
		{"malformed json", `{"requestId":"m1","toolName":`, http.StatusBadRequest, "MalformedFrameError", "m1"},
		{"not json", `hello`, http.StatusBadRequest, "MalformedFrameError", nil},
		{"missing toolName", fmt.Sprintf(`{"sessionId":%q,"requestId":"t1"}`, s.sessionID), http.StatusBadRequest, "MalformedFrameError", "t1"},
		{"missing session", `{"requestId":"s1","toolName":"echo"}`, http.StatusBadRequest, "MalformedFrameError", "s1"},
		{"trailing brace", fmt.Sprintf(`{"sessionId":%q,"requestId":"b1","toolName":"echo"}}`, s.sessionID), http.StatusBadRequest, "MalformedFrameError", "b1"},
		{"trailing bracket", fmt.Sprintf(`{"sessionId":%q,"requestId":"b2","toolName":"echo"}]`, s.sessionID), http.StatusBadRequest, "MalformedFrameError", "b2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, srv, tt.body, nil)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantKind, errorKind(t, body))
			assert.Equal(t, tt.wantID, body["requestId"])
		})
	}
}

func TestHandler_BodyTooLarge(t *testing.T) {
	m := NewManager(ManagerConfig{Invoker: echoInvoker()})
	defer m.Close()
	r := chi.NewRouter()
	NewHandler(m, HandlerConfig{}).RegisterRoutes(r)

	largeBody := `{"pad":"` + strings.Repeat("x", MaxRequestBodySize) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(largeBody))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "MalformedFrameError", errorKind(t, body))
}

func TestHandler_Busy(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	inv := invokerFunc(func(ctx context.Context, req dispatch.Request) dispatch.Response {
		entered <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return dispatch.Response{RequestID: req.RequestID, ToolName: req.ToolName, Result: json.RawMessage(`1`)}
	})
	srv, _ := newTestServer(t, ManagerConfig{Invoker: inv, QueueSize: 1}, HandlerConfig{})
	defer close(release)
	s := openStream(t, srv)

	status, _ := post(t, srv, echoBody(s.sessionID, "1", "x"), nil)
	require.Equal(t, http.StatusAccepted, status)
	<-entered
	status, _ = post(t, srv, echoBody(s.sessionID, "2", "x"), nil)
	require.Equal(t, http.StatusAccepted, status)

	status, body := post(t, srv, echoBody(s.sessionID, "3", "x"), nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "SessionBusyError", errorKind(t, body))
}

func TestHandler_Delete(t *testing.T) {
	srv, m := newTestServer(t, ManagerConfig{}, HandlerConfig{})
	s := openStream(t, srv)

	del := func(id string) int {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/mcp", nil)
		require.NoError(t, err)
		if id != "" {
			req.Header.Set(SessionHeader, id)
		}
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusBadRequest, del(""))
	assert.Equal(t, http.StatusNoContent, del(s.sessionID))
	assert.Equal(t, http.StatusNotFound, del(s.sessionID))
	assert.Equal(t, 0, m.Count())

	// the stream ends once its session is gone
	select {
	case _, ok := <-s.events:
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not end after DELETE")
	}

	status, body := post(t, srv, echoBody(s.sessionID, "late", "x"), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "UnknownSessionError", errorKind(t, body))
}

func TestHandler_DisconnectReleasesSession(t *testing.T) {
	srv, m := newTestServer(t, ManagerConfig{}, HandlerConfig{})
	s := openStream(t, srv)
	require.Equal(t, 1, m.Count())

	s.cancel()
	require.Eventually(t, func() bool { return m.Count() == 0 }, 3*time.Second, 10*time.Millisecond)

	status, _ := post(t, srv, echoBody(s.sessionID, "gone", "x"), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandler_Keepalive(t *testing.T) {
	srv, _ := newTestServer(t, ManagerConfig{}, HandlerConfig{KeepaliveInterval: 20 * time.Millisecond})

	resp, err := srv.Client().Get(srv.URL + "/mcp")
	require.NoError(t, err)
	defer resp.Body.Close()

	rd := bufio.NewReader(resp.Body)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		line, err := rd.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, ": keepalive") {
			return
		}
	}
	t.Fatal("no keepalive comment received")
}

func TestHandler_CustomPath(t *testing.T) {
	srv, _ := newTestServer(t, ManagerConfig{}, HandlerConfig{Path: "/tools/stream"})

	resp, err := srv.Client().Get(srv.URL + "/mcp")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWriteSSEEvent(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, writeSSEEvent(&sb, "message", map[string]string{"a": "b"}))
	assert.Equal(t, "event: message\ndata: {\"a\":\"b\"}\n\n", sb.String())
}
