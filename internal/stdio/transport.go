// ABOUTME: Stdio transport: one request frame in, one response frame out, strictly in sequence.
// ABOUTME: Malformed frames are answered when a requestId can be salvaged, otherwise dropped.

package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"github.com/2389/toolgate/internal/dispatch"
	"github.com/2389/toolgate/internal/store"
)

// State is the position of the transport in its read/dispatch/write cycle.
type State int32

const (
	StateIdle State = iota
	StateReadingFrame
	StateDispatching
	StateWritingFrame
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateReadingFrame:
		return "ReadingFrame"
	case StateDispatching:
		return "Dispatching"
	case StateWritingFrame:
		return "WritingFrame"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Invoker runs a request to completion. *dispatch.Dispatcher satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, req dispatch.Request) dispatch.Response
}

// Config contains configuration options for the Transport.
type Config struct {
	MaxFrameBytes int
	Logger        *slog.Logger
}

// Transport serves a single client over a reader/writer pair, normally the
// process's stdin and stdout.
type Transport struct {
	invoker Invoker
	reader  *FrameReader
	writer  *FrameWriter
	logger  *slog.Logger
	state   atomic.Int32
}

// New creates a Transport reading requests from in and writing responses to out.
func New(invoker Invoker, in io.Reader, out io.Writer, cfg Config) *Transport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		invoker: invoker,
		reader:  NewFrameReader(in, cfg.MaxFrameBytes),
		writer:  NewFrameWriter(out),
		logger:  logger.With("component", "stdio"),
	}
}

// State reports the current state.
func (t *Transport) State() State {
	return State(t.state.Load())
}

func (t *Transport) setState(s State) {
	t.state.Store(int32(s))
}

type readResult struct {
	frame []byte
	err   error
}

// Serve runs the read/dispatch/write loop until end of input, a fatal I/O
// error, or ctx cancellation. End of input and cancellation return nil.
func (t *Transport) Serve(ctx context.Context) error {
	defer t.setState(StateClosed)

	// Reads happen on a separate goroutine so a blocked read does not pin
	// Serve after ctx is cancelled. One frame is read per pull.
	pull := make(chan struct{})
	frames := make(chan readResult, 1)
	defer close(pull)
	go func() {
		for range pull {
			frame, err := t.reader.ReadFrame()
			frames <- readResult{frame: frame, err: err}
		}
	}()

	t.logger.Info("stdio transport serving")
	for {
		t.setState(StateIdle)
		if ctx.Err() != nil {
			t.logger.Info("stdio transport stopping", "reason", ctx.Err())
			return nil
		}

		t.setState(StateReadingFrame)
		pull <- struct{}{}

		var res readResult
		select {
		case res = <-frames:
		case <-ctx.Done():
			t.logger.Info("stdio transport stopping", "reason", ctx.Err())
			return nil
		}

		var resp dispatch.Response
		switch {
		case res.err == nil:
			var ok bool
			resp, ok = t.handleFrame(ctx, res.frame)
			if !ok {
				continue
			}
		case errors.Is(res.err, io.EOF):
			t.logger.Info("stdio input closed")
			return nil
		case errors.Is(res.err, ErrFrameTooLarge):
			var ok bool
			resp, ok = t.malformed(res.frame, res.err)
			if !ok {
				continue
			}
		default:
			t.logger.Error("stdio read failed", "error", res.err)
			return fmt.Errorf("reading frame: %w", res.err)
		}

		t.setState(StateWritingFrame)
		if err := t.writer.WriteFrame(resp); err != nil {
			t.logger.Error("stdio write failed", "error", err)
			return fmt.Errorf("writing frame: %w", err)
		}
	}
}

// handleFrame decodes and dispatches one frame. ok is false when there is
// nothing to send back.
func (t *Transport) handleFrame(ctx context.Context, frame []byte) (dispatch.Response, bool) {
	req, err := decodeRequest(frame)
	if err != nil {
		return t.malformed(frame, err)
	}

	t.setState(StateDispatching)
	req.Transport = store.TransportStdio
	return t.invoker.Invoke(ctx, req), true
}

// malformed answers a bad frame with MalformedFrameError when a requestId can
// be recovered from the raw bytes.
func (t *Transport) malformed(frame []byte, cause error) (dispatch.Response, bool) {
	id := gjson.GetBytes(frame, "requestId")
	if !id.Exists() || !json.Valid([]byte(id.Raw)) {
		t.logger.Warn("dropping malformed frame without requestId",
			"error", cause,
			"bytes", len(frame),
		)
		return dispatch.Response{}, false
	}

	toolName := gjson.GetBytes(frame, "toolName").String()
	t.logger.Warn("malformed frame",
		"request_id", id.Raw,
		"error", cause,
	)
	return dispatch.ErrorResponse(json.RawMessage(id.Raw), toolName, dispatch.KindMalformedFrame, cause.Error()), true
}

// decodeRequest parses one frame. The frame must be a single JSON object with a
// string toolName; arguments, when present, must be an object.
func decodeRequest(frame []byte) (dispatch.Request, error) {
	var req dispatch.Request

	dec := json.NewDecoder(bytes.NewReader(frame))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request frame: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return req, errors.New("invalid request frame: trailing data after object")
	}
	if req.ToolName == "" {
		return req, errors.New("invalid request frame: toolName is required")
	}
	return req, nil
}
