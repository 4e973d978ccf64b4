// ABOUTME: Listener setup for the HTTP and gRPC servers over plain TCP or a Tailscale tsnet node
// ABOUTME: Tailscale mode ignores server addresses and serves on the tailnet instead

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"
)

// defaultGRPCPort is used on the tailnet when grpc_addr has no usable port.
const defaultGRPCPort = "50051"

// setupListeners creates listeners based on configuration (Tailscale or TCP).
// grpcLn is nil when the gRPC health service is disabled.
func (g *Gateway) setupListeners(ctx context.Context) (httpLn, grpcLn net.Listener, err error) {
	if g.config.Tailscale.Enabled {
		g.warnIgnoredAddresses()
		return g.setupTailscaleListeners(ctx)
	}
	return g.setupTCPListeners()
}

// setupTCPListeners creates standard TCP listeners for HTTP and gRPC.
func (g *Gateway) setupTCPListeners() (httpLn, grpcLn net.Listener, err error) {
	g.logger.Info("starting gateway",
		"http_addr", g.config.Server.HTTPAddr,
		"grpc_addr", g.config.Server.GRPCAddr,
	)

	httpLn, err = net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	// Report the bound port when the config asked for :0.
	g.mcpEndpoint = "http://" + httpLn.Addr().String() + g.sseHandler.Path()

	if g.grpcServer == nil {
		return httpLn, nil, nil
	}

	grpcLn, err = net.Listen("tcp", g.config.Server.GRPCAddr)
	if err != nil {
		_ = httpLn.Close()
		return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
	}
	return httpLn, grpcLn, nil
}

// warnIgnoredAddresses logs a warning if server addresses are configured but Tailscale is enabled.
func (g *Gateway) warnIgnoredAddresses() {
	if g.config.Server.HTTPAddr != "" {
		g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
			"http_addr", g.config.Server.HTTPAddr,
		)
	}
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "toolgate", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// tailnetGRPCPort picks the port for the gRPC listener on the tailnet.
func tailnetGRPCPort(grpcAddr string) string {
	_, port, err := net.SplitHostPort(grpcAddr)
	if err != nil || port == "" || port == "0" {
		return defaultGRPCPort
	}
	return port
}

// setupTailscaleListeners brings up a tsnet node and listens on it.
// HTTP is served on :80 of the node.
func (g *Gateway) setupTailscaleListeners(ctx context.Context) (httpLn, grpcLn net.Listener, err error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
		Logf: func(format string, args ...any) {
			g.logger.Debug(fmt.Sprintf(format, args...), "source", "tsnet")
		},
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("starting tailscale: %w", err)
	}

	g.logTailscaleStatus(tsCfg.Hostname, status)
	g.updateEndpointFromStatus(status)

	httpLn, err = g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		return nil, nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}

	if g.grpcServer == nil {
		return httpLn, nil, nil
	}

	grpcLn, err = g.tsnetServer.Listen("tcp", ":"+tailnetGRPCPort(g.config.Server.GRPCAddr))
	if err != nil {
		_ = httpLn.Close()
		return nil, nil, fmt.Errorf("listening on tailscale gRPC port: %w", err)
	}
	return httpLn, grpcLn, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// updateEndpointFromStatus points the advertised endpoint at the node's DNS name.
func (g *Gateway) updateEndpointFromStatus(status *ipnstate.Status) {
	host := g.config.Tailscale.Hostname
	if status.Self != nil && status.Self.DNSName != "" {
		host = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	g.mcpEndpoint = "http://" + host + g.sseHandler.Path()
}
