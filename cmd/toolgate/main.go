// ABOUTME: Entry point for the toolgate tool-invocation server
// ABOUTME: Subcommands run the transports, list tools, probe health, and show the audit log

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/toolgate/internal/builtins"
	"github.com/2389/toolgate/internal/config"
	"github.com/2389/toolgate/internal/gateway"
	"github.com/2389/toolgate/internal/store"
	"github.com/2389/toolgate/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _              _             _
 | |_ ___   ___ | | __ _  __ _| |_ ___
 | __/ _ \ / _ \| |/ _' |/ _' | __/ _ \
 | || (_) | (_) | | (_| | (_| | ||  __/
  \__\___/ \___/|_|\__, |\__,_|\__\___|
                   |___/
`

// getConfigPath returns the path to the config file.
// Priority: TOOLGATE_CONFIG env var > XDG_CONFIG_HOME/toolgate/config.yaml > ~/.config/toolgate/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("TOOLGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "toolgate", "config.yaml")
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: toolgate <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                          Run every transport enabled in config")
	fmt.Fprintln(w, "  stdio                          Run only the stdio transport")
	fmt.Fprintln(w, "  tools                          List the tool catalog")
	fmt.Fprintln(w, "  health                         Check a running server's health")
	fmt.Fprintln(w, "  invocations [--tool NAME] [--kind KIND] [--failed] [--limit N]")
	fmt.Fprintln(w, "                                 Show recent audit log entries")
	fmt.Fprintln(w, "  version                        Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "stdio":
		err = runStdio(ctx)
	case "tools":
		err = runTools(os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "invocations":
		err = runInvocations(ctx, os.Args[2:], os.Stdout)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, falling back to defaults when it does not exist.
func loadConfig() (*config.Config, string, bool, error) {
	configPath := getConfigPath()
	cfg, found, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, configPath, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, found, nil
}

func runServe(ctx context.Context) error {
	cfg, configPath, found, err := loadConfig()
	if err != nil {
		return err
	}

	// Stdout carries stdio frames; everything human-facing goes to stderr.
	printBanner(os.Stderr, cfg, configPath, found)

	logger := setupLogger(cfg.Logging, os.Stderr)
	logger.Info("starting toolgate",
		"config", configPath,
		"config_found", found,
		"stdio", cfg.Transports.Stdio.Enabled,
		"sse", cfg.Transports.SSE.Enabled,
		"http_addr", cfg.Server.HTTPAddr,
	)

	return runGateway(ctx, cfg, logger)
}

// runStdio serves only the stdio transport. This is the mode desktop MCP
// clients use when they spawn the binary directly, so it prints no banner.
func runStdio(ctx context.Context) error {
	cfg, configPath, found, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Transports.SSE.Enabled = false
	cfg.Transports.Stdio.Enabled = true

	logger := setupLogger(cfg.Logging, os.Stderr)
	logger.Debug("starting toolgate stdio", "config", configPath, "config_found", found)

	return runGateway(ctx, cfg, logger)
}

func runGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// A stdio peer that closes stdout must only end the stdio transport.
	// With SIGPIPE ignored the write fails with EPIPE instead of killing the process.
	signal.Ignore(syscall.SIGPIPE)

	gw, err := gateway.New(cfg, logger, gateway.Options{Version: version})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	return gw.Run(ctx)
}

func printBanner(w io.Writer, cfg *config.Config, configPath string, found bool) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(w, banner)
	gray.Fprintf(w, "    version: %s\n\n", version)

	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Config:    %s", configPath)
	if !found {
		yellow.Fprint(w, " (not found, using defaults)")
	}
	fmt.Fprintln(w)

	if cfg.Transports.Stdio.Enabled {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintln(w, "stdio:     stdin/stdout")
	}
	if cfg.Transports.SSE.Enabled {
		green.Fprint(w, "    ▶ ")
		if cfg.Tailscale.Enabled {
			fmt.Fprintf(w, "SSE:       ")
			cyan.Fprint(w, cfg.Tailscale.Hostname)
			fmt.Fprintf(w, "%s", cfg.Transports.SSE.Path)
			if cfg.Tailscale.Ephemeral {
				gray.Fprint(w, " (ephemeral)")
			}
			fmt.Fprintln(w)
		} else {
			fmt.Fprintf(w, "SSE:       http://%s%s\n", cfg.Server.HTTPAddr, cfg.Transports.SSE.Path)
		}
	}
	if cfg.Server.GRPCAddr != "" && cfg.Transports.SSE.Enabled {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "gRPC:      %s (health)\n", cfg.Server.GRPCAddr)
	}
	if cfg.Database.Path != "" {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Audit:     %s\n", cfg.Database.Path)
	}

	fmt.Fprintln(w)
}

// runTools prints the catalog the server would advertise.
func runTools(w io.Writer) error {
	cfg, _, _, err := loadConfig()
	if err != nil {
		return err
	}

	reg := tools.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := builtins.Register(reg, builtins.Deps{ServiceName: cfg.Server.Name, Version: version}); err != nil {
		return fmt.Errorf("building registry: %w", err)
	}
	reg.Freeze()

	printCatalog(w, reg.Catalog())
	return nil
}

func printCatalog(w io.Writer, catalog []tools.Info) {
	name := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)
	yellow := color.New(color.FgYellow)

	for _, info := range catalog {
		name.Fprint(w, info.Name)
		fmt.Fprintf(w, "  %s\n", info.Description)

		required := make(map[string]bool, len(info.InputSchema.Required))
		for _, r := range info.InputSchema.Required {
			required[r] = true
		}
		for _, p := range paramNames(info) {
			prop := info.InputSchema.Properties[p]
			fmt.Fprintf(w, "    %s ", p)
			gray.Fprintf(w, "(%s)", prop.Type)
			if required[p] {
				yellow.Fprint(w, " required")
			}
			if prop.Description != "" {
				fmt.Fprintf(w, "  %s", prop.Description)
			}
			fmt.Fprintln(w)
		}
	}
}

// paramNames lists required parameters first, then the rest in sorted order.
func paramNames(info tools.Info) []string {
	names := append([]string(nil), info.InputSchema.Required...)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	var optional []string
	for n := range info.InputSchema.Properties {
		if !seen[n] {
			optional = append(optional, n)
		}
	}
	slices.Sort(optional)
	return append(names, optional...)
}

func runHealth(ctx context.Context) error {
	cfg, _, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}

	fmt.Printf("healthy (%s %s, status %s)\n", body.Service, body.Version, body.Status)
	return nil
}

// parseInvocationArgs parses the invocations subcommand flags.
// Supports both "--flag value" and "--flag=value" formats.
func parseInvocationArgs(args []string) (store.InvocationFilter, error) {
	var f store.InvocationFilter

	for i := 0; i < len(args); i++ {
		arg := args[i]
		key, value, hasValue := strings.Cut(arg, "=")

		switch key {
		case "--failed":
			if hasValue {
				return f, fmt.Errorf("--failed takes no value")
			}
			f.Failed = true
			continue
		case "--tool", "--kind", "--limit":
		default:
			if strings.HasPrefix(arg, "-") {
				return f, fmt.Errorf("unknown flag: %s", arg)
			}
			return f, fmt.Errorf("unexpected argument: %s", arg)
		}

		if !hasValue {
			if i+1 >= len(args) {
				return f, fmt.Errorf("%s requires a value", key)
			}
			value = args[i+1]
			i++
		}

		switch key {
		case "--tool":
			tool := value
			f.ToolName = &tool
		case "--kind":
			kind := value
			f.ErrorKind = &kind
		case "--limit":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return f, fmt.Errorf("--limit must be a positive integer, got %q", value)
			}
			f.Limit = n
		}
	}

	return f, nil
}

// runInvocations prints recent audit records, newest first.
func runInvocations(ctx context.Context, args []string, w io.Writer) error {
	filter, err := parseInvocationArgs(args)
	if err != nil {
		return err
	}

	cfg, configPath, _, err := loadConfig()
	if err != nil {
		return err
	}
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("TOOLGATE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	if dbPath == "" {
		return fmt.Errorf("no audit database configured (set database.path in %s)", configPath)
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	invs, err := s.ListInvocations(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing invocations: %w", err)
	}

	printInvocations(w, invs)
	return nil
}

func printInvocations(w io.Writer, invs []store.Invocation) {
	if len(invs) == 0 {
		fmt.Fprintln(w, "no invocations recorded")
		return
	}

	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	for _, inv := range invs {
		gray.Fprintf(w, "%s ", inv.Timestamp.Local().Format("2006-01-02 15:04:05"))
		if inv.Succeeded() {
			green.Fprint(w, "ok   ")
		} else {
			red.Fprint(w, "fail ")
		}
		fmt.Fprintf(w, "%-16s %-5s %8s", inv.ToolName, inv.Transport, inv.Duration.Round(time.Microsecond))
		if !inv.Succeeded() {
			red.Fprintf(w, "  %s: %s", inv.ErrorKind, inv.ErrorMessage)
		}
		fmt.Fprintln(w)
	}
}
