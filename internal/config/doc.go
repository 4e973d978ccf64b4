// Package config handles configuration loading for toolgate.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension)
// with environment variable expansion. Every field has a default, so a
// missing file is not an error for LoadOrDefault.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TOOLGATE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/toolgate/config.yaml
//  3. ~/.config/toolgate/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8081"  # SSE transport and /health
//	  grpc_addr: ""                # gRPC health service, empty disables
//	  name: "toolgate"
//
//	transports:
//	  stdio:
//	    enabled: true
//	    exit_on_eof: true
//	    max_frame_bytes: 1048576
//	  sse:
//	    enabled: true
//	    path: "/mcp"
//	    queue_size: 64
//	    idle_timeout: "30m"        # 0 disables idle reaping
//	    keepalive_interval: "15s"  # 0 disables keepalive comments
//
//	dispatch:
//	  handler_timeout: "30s"
//
//	database:
//	  path: ""                     # invocation audit log, empty disables
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// The same keys work in TOML using [server], [transports.sse] and so on.
package config
