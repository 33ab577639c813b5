package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alucardeht/ghview-bridge/internal/config"
	"github.com/alucardeht/ghview-bridge/internal/ipc"
	"github.com/alucardeht/ghview-bridge/internal/logger"
	"github.com/alucardeht/ghview-bridge/internal/mcp"
	"github.com/alucardeht/ghview-bridge/internal/tools"
	"github.com/alucardeht/ghview-bridge/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.ghview/config.toml)")
	socketPath := flag.String("socket", "", "Local channel endpoint of the ghview host")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ghview-mcp %s\n", version.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *socketPath != "" {
		cfg.SocketPath = *socketPath
	}

	// stdout carries the protocol; logs never go there.
	logCloser, err := logger.Setup(cfg.LogSettings())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handleSignals(cancel, logCloser)

	log := logger.ForComponent("main")
	client := ipc.NewClient(cfg.SocketPath)
	awaitHost(ctx, client, cfg)

	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewScreenshotTool(client)); err != nil {
		log.Error("failed to register tools", "error", err)
		os.Exit(1)
	}

	server := mcp.NewServer(registry, mcp.ServerConfig{
		CallTimeout: cfg.RequestTimeout,
		Logger:      logger.ForComponent("mcp"),
	})

	log.Info("ghview-mcp started", "version", version.Version, "socket", cfg.SocketPath)
	if err := server.ProcessStream(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		log.Error("stdio loop failed", "error", err)
		os.Exit(1)
	}
}

// awaitHost waits up to cfg.WaitForHost for the ghview endpoint. The tool
// server still starts without it: every call re-checks the endpoint.
func awaitHost(ctx context.Context, client *ipc.Client, cfg *config.Config) {
	log := logger.ForComponent("main")
	if client.Available() {
		return
	}

	if cfg.WaitForHost <= 0 {
		log.Warn("ghview is not running; screenshot calls fail until it starts", "socket", cfg.SocketPath)
		return
	}

	log.Info("waiting for ghview", "socket", cfg.SocketPath, "timeout", cfg.WaitForHost)
	waitCtx, cancel := context.WithTimeout(ctx, cfg.WaitForHost)
	defer cancel()

	if err := ipc.WaitForEndpoint(waitCtx, cfg.SocketPath); err != nil {
		log.Warn("ghview did not start in time", "error", err)
	}
}

func handleSignals(cancel context.CancelFunc, closer io.Closer) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, shutdownSignals()...)

	go func() {
		<-sigChan
		cancel()
		closer.Close()
		os.Exit(0)
	}()
}
