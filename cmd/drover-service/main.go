// Package main provides the entry point for drover-service.
//
// drover-service is a standalone service providing:
// - REST API for observing projects, plans, and sessions
// - MCP server for AI assistant integration
// - State watchers over every registered project
//
// Usage:
//
//	drover-service                  Start the service (default)
//	drover-service serve            Start the service
//	drover-service version          Show version
//	drover-service status           Show service status
//	drover-service stop             Stop the running service
//	drover-service mcp              Start MCP server (stdio mode)
package main

import (
	"fmt"
	"os"

	"github.com/drover-dev/drover/internal/api"
	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/logger"
	"github.com/drover-dev/drover/internal/mcp"
	"github.com/drover-dev/drover/internal/project"
	"github.com/drover-dev/drover/internal/service"
)

// version is set via -ldflags at build time
var version = "dev"

func main() {
	api.SetVersion(version)

	if len(os.Args) < 2 {
		// Default: start service
		if err := cmdServe(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var err error
	switch os.Args[1] {
	case "serve", "start":
		err = cmdServe()
	case "version", "-v", "--version":
		cmdVersion()
	case "status":
		err = cmdStatus()
	case "stop":
		err = cmdStop()
	case "mcp", "mcp-server":
		err = cmdMCP()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`drover-service - Session orchestration observability service

Usage:
  drover-service [command]

Commands:
  serve         Start the service (default)
  version       Show version information
  status        Show service status
  stop          Stop the running service
  mcp           Start MCP server (stdio mode for assistant integration)
  help          Show this help

Configuration:
  Config file: ~/.drover-service/config.yaml (or $APPDATA/drover-service on Windows)

Examples:
  drover-service                  Start the service
  drover-service mcp              Start MCP server
  curl localhost:8460/health      Check service health
  curl localhost:8460/projects    List registered projects`)
}

func cmdVersion() {
	fmt.Printf("drover-service version %s\n", version)
}

func setup() (*config.Config, *project.Registry, *project.Manager, error) {
	cfg, err := config.Load(config.DefaultConfigPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	registry := project.NewRegistry(cfg)
	if err := registry.Load(); err != nil {
		return nil, nil, nil, fmt.Errorf("load registry: %w", err)
	}

	manager := project.NewManager(cfg, registry)
	return cfg, registry, manager, nil
}

func cmdServe() error {
	cfg, registry, manager, err := setup()
	if err != nil {
		return err
	}

	if running, pid := service.IsRunning(cfg); running {
		return fmt.Errorf("service already running (PID %d)", pid)
	}

	logger.SetupLogger(cfg)
	defer logger.Stop()

	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("initialize manager: %w", err)
	}
	defer manager.Shutdown()

	apiServer := api.NewServer(cfg, registry, manager)
	daemon := service.NewDaemon(cfg)

	if err := daemon.Start(apiServer.Handler()); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Printf("drover-service v%s started on %s\n", version, cfg.Address())
	fmt.Printf("API: http://%s/projects\n", cfg.Address())

	daemon.Wait()
	return nil
}

func cmdStatus() error {
	cfg, err := config.Load(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	running, pid := service.IsRunning(cfg)
	if running {
		fmt.Printf("drover-service: running (PID %d)\n", pid)
		fmt.Printf("Address: %s\n", cfg.Address())
	} else {
		fmt.Println("drover-service: stopped")
	}
	return nil
}

func cmdStop() error {
	cfg, err := config.Load(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	running, pid := service.IsRunning(cfg)
	if !running {
		fmt.Println("drover-service is not running")
		return nil
	}

	fmt.Printf("Stopping drover-service (PID %d)...\n", pid)
	if err := service.StopRunning(cfg); err != nil {
		return err
	}

	fmt.Println("drover-service stopped")
	return nil
}

func cmdMCP() error {
	_, registry, manager, err := setup()
	if err != nil {
		return err
	}

	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("initialize manager: %w", err)
	}
	defer manager.Shutdown()

	return mcp.NewServer(registry, manager).ServeStdio()
}
