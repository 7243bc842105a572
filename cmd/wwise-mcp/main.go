// wwise-mcp bridges an MCP client speaking stdio to the Wwise Authoring API.
// Logs go to stderr; stdout carries MCP protocol traffic only.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wwise-tools/wwise-mcp/pkg/api"
	"github.com/wwise-tools/wwise-mcp/pkg/config"
	"github.com/wwise-tools/wwise-mcp/pkg/mcpserver"
	"github.com/wwise-tools/wwise-mcp/pkg/plan"
	"github.com/wwise-tools/wwise-mcp/pkg/session"
	"github.com/wwise-tools/wwise-mcp/pkg/verbs"
	"github.com/wwise-tools/wwise-mcp/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "."),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("No .env file loaded, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting wwise-mcp",
		"version", version.GitCommit,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Create the Authoring session and attempt an initial connection.
	// Wwise may not be running yet; connect_to_wwise can establish the
	// session later, so a failure here is not fatal.
	sess := session.New(cfg)
	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.RPCTimeout)
	if info, err := sess.Connect(connectCtx); err != nil {
		slog.Warn("Initial Wwise connection failed, waiting for connect_to_wwise",
			"endpoint", cfg.EndpointURL, "error", err)
	} else {
		slog.Info("Connected to Wwise", "project", info["name"])
	}
	connectCancel()

	// 3. Build the command surface and plan runner
	registry := verbs.NewRegistry()
	runner := plan.NewRunner(sess, registry)
	mcpServer := mcpserver.New(registry, runner)

	// 4. Start the status API when configured (non-blocking)
	var statusServer *api.Server
	errCh := make(chan error, 1)
	if cfg.StatusAddr != "" {
		statusServer = api.NewServer(cfg.StatusAddr, sess)
		go func() {
			if err := statusServer.Start(); err != nil {
				slog.Error("Status API error", "error", err)
				errCh <- err
			}
		}()
	}

	// 5. Serve MCP on stdio until the client disconnects
	mcpCtx, mcpCancel := context.WithCancel(ctx)
	defer mcpCancel()
	mcpDone := make(chan error, 1)
	go func() {
		mcpDone <- mcpServer.Run(mcpCtx, &mcpsdk.StdioTransport{})
	}()

	// 6. Wait for shutdown signal, client disconnect, or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-mcpDone:
		if err != nil {
			slog.Error("MCP server stopped", "error", err)
		} else {
			slog.Info("MCP client disconnected")
		}
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 7. Graceful shutdown: drop the Authoring session first, then the
	// status server within the shutdown budget.
	mcpCancel()
	sess.Disconnect()
	slog.Info("Authoring session closed")

	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
		defer cancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Status API shutdown error", "error", err)
		}
	}

	slog.Info("Shutdown complete")
}
