// mcp-server is the loopback MCP endpoint: it binds a port in a
// configured range, speaks the WebSocket + JSON-RPC protocol described
// by pkg/mcpserver, and dispatches tool calls into pkg/demoregistry's
// stand-in for a host editor's real tool table.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"mcploop/pkg/demoregistry"
	"mcploop/pkg/jsonrpc"
	"mcploop/pkg/mcpserver"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	portMin := envInt("MCPLOOP_PORT_MIN", 9000)
	portMax := envInt("MCPLOOP_PORT_MAX", 9100)
	authToken := os.Getenv("MCPLOOP_AUTH_TOKEN")
	keepaliveMS := envInt64("MCPLOOP_KEEPALIVE_INTERVAL_MS", 0)
	writeTimeoutMS := envInt64("MCPLOOP_WRITE_TIMEOUT_MS", 0)
	readTimeoutMS := envInt64("MCPLOOP_READ_TIMEOUT_MS", 0)

	if authToken == "" {
		logger.Warn("no auth token configured; accepting any client on the loopback listener")
	}

	hooks := mcpserver.Hooks{
		OnConnect: func(c *mcpserver.Client) {
			logger.Info("client connected", "client_id", c.ID)
		},
		OnMessage: func(c *mcpserver.Client, payload []byte) {
			logger.Debug("client message", "client_id", c.ID, "bytes", len(payload))
		},
		OnDisconnect: func(c *mcpserver.Client, code uint16, reason string) {
			logger.Info("client disconnected", "client_id", c.ID, "code", code, "reason", reason)
		},
		OnError: func(c *mcpserver.Client, message string) {
			logger.Warn("client error", "client_id", c.ID, "error", message)
		},
	}

	srv := mcpserver.New(mcpserver.Config{
		AuthToken:           authToken,
		Info:                jsonrpc.ServerInfo{Name: "mcploop", Version: "0.1.0"},
		Hooks:               hooks,
		KeepaliveIntervalMS: keepaliveMS,
		WriteTimeout:        time.Duration(writeTimeoutMS) * time.Millisecond,
		ReadTimeout:         time.Duration(readTimeoutMS) * time.Millisecond,
	})

	registry := demoregistry.New(srv.Dispatcher(), logger)
	srv.Dispatcher().SetRegistry(registry)

	port, err := srv.Start(portMin, portMax)
	if err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	logger.Info("listening", "port", port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Error("shutdown timed out")
		os.Exit(1)
	}

	logger.Info("stopped")
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(name string, fallback int64) int64 {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
