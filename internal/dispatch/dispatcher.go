// ABOUTME: Dispatcher resolves a tool, binds its arguments, runs the handler, and builds the envelope.
// ABOUTME: Every failure becomes a structured error response; nothing escapes as a transport fault.

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/toolgate/internal/store"
	"github.com/2389/toolgate/internal/tools"
)

// DefaultTimeout bounds a handler when neither the tool nor the config sets one.
const DefaultTimeout = 30 * time.Second

const timedOutMessage = "tool execution timed out"

// Recorder receives one audit record per invocation.
type Recorder interface {
	RecordInvocation(ctx context.Context, inv *store.Invocation) error
}

// Config contains configuration options for the Dispatcher.
type Config struct {
	Registry *tools.Registry
	Logger   *slog.Logger
	Timeout  time.Duration
	Recorder Recorder // optional
}

// Dispatcher is stateless apart from the read-only registry and is safe for
// concurrent use by any number of transports and sessions.
type Dispatcher struct {
	registry *tools.Registry
	logger   *slog.Logger
	timeout  time.Duration
	recorder Recorder
}

// New creates a Dispatcher. The registry should already be frozen.
func New(cfg Config) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		registry: cfg.Registry,
		logger:   logger.With("component", "dispatch"),
		timeout:  timeout,
		recorder: cfg.Recorder,
	}
}

// Registry returns the registry this dispatcher resolves tools against.
func (d *Dispatcher) Registry() *tools.Registry {
	return d.registry
}

// Invoke runs one request to completion and always returns exactly one response.
func (d *Dispatcher) Invoke(ctx context.Context, req Request) Response {
	start := time.Now()
	resp := d.invoke(ctx, req)
	elapsed := time.Since(start)

	if resp.OK() {
		d.logger.Debug("tool invoked",
			"tool_name", req.ToolName,
			"request_id", string(resp.RequestID),
			"transport", req.Transport,
			"duration", elapsed,
		)
	} else {
		d.logger.Info("tool invocation failed",
			"tool_name", req.ToolName,
			"request_id", string(resp.RequestID),
			"transport", req.Transport,
			"kind", resp.Error.Kind,
			"error", resp.Error.Message,
		)
	}

	d.record(ctx, req, resp, elapsed)
	return resp
}

func (d *Dispatcher) invoke(ctx context.Context, req Request) Response {
	resp := Response{
		RequestID: normalizeID(req.RequestID),
		ToolName:  req.ToolName,
	}

	def, err := d.registry.Lookup(req.ToolName)
	if err != nil {
		resp.Error = &ErrorBody{Kind: KindUnknownTool, Message: err.Error()}
		return resp
	}

	args, err := tools.Bind(def, req.Arguments)
	if err != nil {
		resp.Error = bindError(err)
		return resp
	}

	timeout := d.timeout
	if def.Timeout > 0 {
		timeout = def.Timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := runHandler(callCtx, def.Handler, args)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			msg = timedOutMessage
		}
		resp.Error = &ErrorBody{Kind: KindHandlerExecution, Message: msg}
		return resp
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		resp.Error = &ErrorBody{
			Kind:    KindHandlerExecution,
			Message: fmt.Sprintf("encoding result: %v", err),
		}
		return resp
	}
	resp.Result = encoded
	return resp
}

// runHandler converts a handler panic into an error.
func runHandler(ctx context.Context, h tools.Handler, args tools.Args) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, args)
}

func bindError(err error) *ErrorBody {
	var missing *tools.MissingParameterError
	if errors.As(err, &missing) {
		return &ErrorBody{Kind: KindMissingParameter, Message: err.Error(), Param: missing.Param}
	}
	var mismatch *tools.TypeMismatchError
	if errors.As(err, &mismatch) {
		return &ErrorBody{Kind: KindTypeMismatch, Message: err.Error(), Param: mismatch.Param}
	}
	return &ErrorBody{Kind: KindHandlerExecution, Message: err.Error()}
}

func (d *Dispatcher) record(ctx context.Context, req Request, resp Response, elapsed time.Duration) {
	if d.recorder == nil {
		return
	}

	inv := &store.Invocation{
		RequestID: string(resp.RequestID),
		ToolName:  req.ToolName,
		Transport: req.Transport,
		SessionID: req.SessionID,
		Duration:  elapsed,
	}
	if resp.Error != nil {
		inv.ErrorKind = string(resp.Error.Kind)
		inv.ErrorMessage = resp.Error.Message
	}

	// The caller may already be gone; the audit row is still wanted.
	if err := d.recorder.RecordInvocation(context.WithoutCancel(ctx), inv); err != nil {
		d.logger.Warn("failed to record invocation",
			"tool_name", req.ToolName,
			"error", err,
		)
	}
}
