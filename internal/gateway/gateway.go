// ABOUTME: Gateway composes the registry, dispatcher, store, and both transports into one process
// ABOUTME: Manages listener setup, concurrent transport lifecycles, and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"tailscale.com/tsnet"

	"github.com/2389/toolgate/internal/builtins"
	"github.com/2389/toolgate/internal/config"
	"github.com/2389/toolgate/internal/dispatch"
	"github.com/2389/toolgate/internal/sse"
	"github.com/2389/toolgate/internal/stdio"
	"github.com/2389/toolgate/internal/store"
	"github.com/2389/toolgate/internal/tools"
)

// shutdownTimeout bounds graceful shutdown once Run decides to stop.
const shutdownTimeout = 5 * time.Second

// Options carries process-level inputs that do not belong in the config file.
type Options struct {
	Version string
	Stdin   io.Reader // default os.Stdin
	Stdout  io.Writer // default os.Stdout
}

// Gateway owns every long-lived component of a toolgate process.
// Transports that are disabled in config leave their fields nil.
type Gateway struct {
	config  *config.Config
	logger  *slog.Logger
	version string
	started time.Time

	registry   *tools.Registry
	dispatcher *dispatch.Dispatcher
	store      *store.SQLiteStore // nil when auditing is off

	stdio *stdio.Transport

	manager     *sse.Manager
	sseHandler  *sse.Handler
	httpServer  *http.Server
	mcpEndpoint string

	grpcServer   *grpc.Server
	healthServer *health.Server

	tsnetServer *tsnet.Server
}

// initStore opens the audit database, honoring TOOLGATE_DB_PATH over the config.
// An empty path disables auditing and returns a nil store.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("TOOLGATE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	if dbPath == "" {
		return nil, nil
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New builds a Gateway from configuration. Nothing listens until Run.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Server.Version
	if version == "" {
		version = opts.Version
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw := &Gateway{
		config:  cfg,
		logger:  logger.With("component", "gateway"),
		version: version,
		started: time.Now(),
		store:   s,
	}

	if err := gw.buildDispatcher(logger); err != nil {
		_ = gw.closeStore()
		return nil, err
	}

	if cfg.Transports.Stdio.Enabled {
		in, out := opts.Stdin, opts.Stdout
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stdout
		}
		gw.stdio = stdio.New(gw.dispatcher, in, out, stdio.Config{
			MaxFrameBytes: cfg.Transports.Stdio.MaxFrameBytes,
			Logger:        logger,
		})
	}

	if cfg.Transports.SSE.Enabled {
		gw.buildHTTP(logger)
	}

	if cfg.Server.GRPCAddr != "" && cfg.Transports.SSE.Enabled {
		gw.grpcServer, gw.healthServer = newHealthGRPCServer()
	}

	return gw, nil
}

// buildDispatcher registers the built-in tools, freezes the registry, and
// wires the dispatcher to the audit store.
func (g *Gateway) buildDispatcher(logger *slog.Logger) error {
	g.registry = tools.NewRegistry(logger)

	deps := builtins.Deps{
		ServiceName: g.config.Server.Name,
		Version:     g.version,
		StartedAt:   g.started,
		// The manager is built after the dispatcher it depends on.
		Sessions: func() int {
			if g.manager == nil {
				return 0
			}
			return g.manager.Count()
		},
	}
	var recorder dispatch.Recorder
	if g.store != nil {
		deps.Stats = g.store
		recorder = g.store
	}

	if err := builtins.Register(g.registry, deps); err != nil {
		return fmt.Errorf("registering built-in tools: %w", err)
	}
	g.registry.Freeze()

	g.dispatcher = dispatch.New(dispatch.Config{
		Registry: g.registry,
		Logger:   logger,
		Timeout:  g.config.Dispatch.HandlerTimeout,
		Recorder: recorder,
	})
	return nil
}

// buildHTTP creates the session manager and the HTTP server fronting it.
func (g *Gateway) buildHTTP(logger *slog.Logger) {
	sseCfg := g.config.Transports.SSE

	g.manager = sse.NewManager(sse.ManagerConfig{
		Invoker:     g.dispatcher,
		QueueSize:   sseCfg.QueueSize,
		IdleTimeout: sseCfg.IdleTimeout,
		Logger:      logger,
	})

	keepalive := sseCfg.KeepaliveInterval
	if keepalive == 0 {
		keepalive = -1 // zero in config means off
	}
	g.sseHandler = sse.NewHandler(g.manager, sse.HandlerConfig{
		Path:              sseCfg.Path,
		KeepaliveInterval: keepalive,
		Logger:            logger,
	})
	g.mcpEndpoint = "http://" + g.config.Server.HTTPAddr + g.sseHandler.Path()

	g.httpServer = &http.Server{
		Addr:              g.config.Server.HTTPAddr,
		Handler:           g.newRouter(logger.With("component", "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Open streams only end once their sessions do.
	g.httpServer.RegisterOnShutdown(g.manager.Close)
}

// Registry exposes the frozen tool registry.
func (g *Gateway) Registry() *tools.Registry {
	return g.registry
}

// Handler returns the HTTP handler, or nil when the SSE transport is disabled.
func (g *Gateway) Handler() http.Handler {
	if g.httpServer == nil {
		return nil
	}
	return g.httpServer.Handler
}

// Run starts the enabled transports and blocks until the context is canceled,
// a server fails, or stdin closes with exit_on_eof set.
// Returns nil on graceful shutdown, or the error that stopped the gateway.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)

	if g.httpServer != nil {
		httpLn, grpcLn, err := g.setupListeners(ctx)
		if err != nil {
			_ = g.gracefulShutdown()
			return err
		}
		g.startServers(httpLn, grpcLn, errCh)
	}

	stdinClosed := g.startStdio(ctx, errCh)

	serverErr := g.waitForShutdownSignal(ctx, errCh, stdinClosed)
	cancel()

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// startStdio runs the stdio transport in the background. The returned channel
// closes when end-of-input should stop the process; it is nil when stdio is off.
func (g *Gateway) startStdio(ctx context.Context, errCh chan<- error) <-chan struct{} {
	if g.stdio == nil {
		return nil
	}

	stdinClosed := make(chan struct{})
	standalone := g.httpServer == nil

	go func() {
		err := g.stdio.Serve(ctx)
		switch {
		case err != nil && standalone:
			errCh <- fmt.Errorf("stdio transport: %w", err)
		case err != nil:
			// HTTP keeps serving without it.
			g.logger.Error("stdio transport stopped", "error", err)
		case ctx.Err() != nil:
		case g.config.Transports.Stdio.ExitOnEOF || standalone:
			g.logger.Info("stdin closed, shutting down")
			close(stdinClosed)
		default:
			g.logger.Info("stdin closed, stdio transport stopped")
		}
	}()

	return stdinClosed
}

// startServers starts the HTTP and optional gRPC servers in goroutines.
func (g *Gateway) startServers(httpLn, grpcLn net.Listener, errCh chan<- error) {
	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String(), "mcp_path", g.sseHandler.Path())
		if err := g.httpServer.Serve(httpLn); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	if g.grpcServer != nil && grpcLn != nil {
		markServing(g.healthServer)
		go func() {
			g.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := g.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}
}

// waitForShutdownSignal waits for context cancellation, end of stdin, or a server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error, stdinClosed <-chan struct{}) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case <-stdinClosed:
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		g.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (g *Gateway) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		g.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The caller's context is already canceled by the time this runs.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops every component and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error

	if g.healthServer != nil {
		g.healthServer.Shutdown()
	}
	if g.httpServer != nil {
		errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	}
	if g.manager != nil {
		g.manager.Close()
	}
	if g.grpcServer != nil {
		g.shutdownGRPCServer(ctx)
	}
	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", g.closeStore())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

func (g *Gateway) closeStore() error {
	if g.store == nil {
		return nil
	}
	err := g.store.Close()
	g.store = nil
	return err
}
