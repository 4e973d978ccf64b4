// ABOUTME: HTTP routing for the gateway: chi middleware, health and root endpoints, SSE transport mount
// ABOUTME: Requests are logged through slog rather than chi's stdlib logger

package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
}

// rootResponse is the body of GET /.
type rootResponse struct {
	Message        string   `json:"message"`
	MCPEndpoint    string   `json:"mcpEndpoint"`
	HealthEndpoint string   `json:"healthEndpoint"`
	Transports     []string `json:"transports"`
}

// newRouter builds the chi router serving /health, / and the SSE endpoints.
func (g *Gateway) newRouter(logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth)
	r.Get("/", g.handleRoot)
	g.sseHandler.RegisterRoutes(r)

	return r
}

// requestLogger logs one line per request once the handler returns.
// SSE streams are logged when the client disconnects.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
					"remote", r.RemoteAddr,
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "UP",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   g.config.Server.Name,
		Version:   g.version,
	})
}

func (g *Gateway) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Message:        g.config.Server.Name + " is running",
		MCPEndpoint:    g.mcpEndpoint,
		HealthEndpoint: "/health",
		Transports:     g.transports(),
	})
}

// transports names the enabled transports in a stable order.
func (g *Gateway) transports() []string {
	var names []string
	if g.stdio != nil {
		names = append(names, "stdio")
	}
	if g.httpServer != nil {
		names = append(names, "sse")
	}
	return names
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
