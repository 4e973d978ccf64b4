// ABOUTME: get_system_info tool: service status, Go runtime figures, uptime, sessions, audit counters.
// ABOUTME: infoType selects the report; invocations needs the audit store.

package builtins

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/2389/toolgate/internal/tools"
)

var errNoDatabase = errors.New("invocation statistics require a configured database")

type systemInfo struct {
	deps Deps
}

func (s *systemInfo) handle(ctx context.Context, args tools.Args) (any, error) {
	infoType := strings.ToLower(strings.TrimSpace(args.String("infoType")))

	switch infoType {
	case "status":
		return map[string]any{
			"status":  "OK",
			"service": s.deps.ServiceName,
			"version": s.deps.Version,
		}, nil

	case "runtime":
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		return map[string]any{
			"goVersion":     runtime.Version(),
			"os":            runtime.GOOS,
			"arch":          runtime.GOARCH,
			"numCPU":        runtime.NumCPU(),
			"numGoroutine":  runtime.NumGoroutine(),
			"heapAllocByte": mem.HeapAlloc,
		}, nil

	case "uptime":
		up := time.Since(s.deps.StartedAt)
		return map[string]any{
			"startedAt":     s.deps.StartedAt.UTC().Format(time.RFC3339),
			"uptime":        up.Round(time.Second).String(),
			"uptimeSeconds": int64(up.Seconds()),
		}, nil

	case "sessions":
		active := 0
		if s.deps.Sessions != nil {
			active = s.deps.Sessions()
		}
		return map[string]any{"activeSessions": active}, nil

	case "invocations":
		if s.deps.Stats == nil {
			return nil, errNoDatabase
		}
		stats, err := s.deps.Stats.InvocationStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading invocation stats: %w", err)
		}
		return stats, nil

	default:
		return nil, fmt.Errorf("unsupported infoType '%s' (want status, runtime, uptime, sessions, or invocations)", infoType)
	}
}
