// Package main provides the ocean WMS HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.ngs.io/ocean-wms/internal/app"
	"go.ngs.io/ocean-wms/internal/config"
	httpHandler "go.ngs.io/ocean-wms/internal/http"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("ocean-wms version %s\n", version)
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting ocean WMS server", "version", version)
	logger.Info("config", "port", cfg.Port)
	logger.Info("config", "datasets_file", cfg.DatasetsFile)
	logger.Info("config", "cache_dir", cfg.CacheDir)
	logger.Info("config", "registry_path", cfg.RegistryPath)
	logger.Info("config", "max_size", fmt.Sprintf("%dx%d", cfg.MaxWidth, cfg.MaxHeight))
	logger.Info("config", "render_timeout", cfg.RenderTimeout.String())
	logger.Info("config", "topology_memory_entries", cfg.TopologyMemoryEntries)
	if len(cfg.CORSAllowedOrigins) > 0 {
		logger.Info("config", "cors_allowed_origins", strings.Join(cfg.CORSAllowedOrigins, ","))
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.VariableDefaultsCSV != "" {
		n, err := a.ImportDefaults(ctx, cfg.VariableDefaultsCSV)
		if err != nil {
			return err
		}
		logger.Info("variable defaults imported", "path", cfg.VariableDefaultsCSV, "count", n)
	}
	if err := a.RegisterAll(ctx); err != nil {
		logger.Warn("some datasets are unavailable", "error", err)
	}

	router := httpHandler.SetupRouter(a.Service, httpHandler.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server listening", "addr", srv.Addr)
	logger.Info("endpoints",
		"health", "GET /health",
		"datasets", "GET /v1/datasets",
		"wms", "GET /wms/datasets/:dataset",
		"cache", "GET|DELETE /wms/datasets/:dataset/cache",
		"update", "POST /wms/datasets/:dataset/update")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RenderTimeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Ocean WMS Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  ocean-wms [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help            Show this help message")
	fmt.Println("  -version         Show version information")
	fmt.Println("  -config <file>   YAML config file; environment variables override it")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT                      Server port (default: 8080)")
	fmt.Println("  DATASETS_FILE             Dataset catalog YAML (default: ./data/datasets.yaml)")
	fmt.Println("  CACHE_DIR                 Topology and image cache root (default: ./data/cache)")
	fmt.Println("  REGISTRY_PATH             Layer registry SQLite file (default: ./data/registry.db)")
	fmt.Println("  VARIABLE_DEFAULTS_CSV     Global color-scale defaults imported at startup (optional)")
	fmt.Println("  MAX_WIDTH, MAX_HEIGHT     Largest image size in pixels (default: 4096)")
	fmt.Println("  RENDER_TIMEOUT            Per-request render budget (default: 30s)")
	fmt.Println("  TOPOLOGY_MEMORY_ENTRIES   Topologies kept in memory (default: 16)")
	fmt.Println("  CORS_ALLOWED_ORIGINS      Comma-separated list of allowed origins (default: all origins)")
	fmt.Println("  LOG_LEVEL                 error, warn, info or debug (default: info)")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start server with default settings")
	fmt.Println("  ocean-wms")
	fmt.Println()
	fmt.Println("  # Start server on custom port")
	fmt.Println("  PORT=3000 ocean-wms")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET    /health                          Health check")
	fmt.Println("  GET    /v1/datasets                     List datasets")
	fmt.Println("  GET    /wms/datasets/:dataset           GetCapabilities, GetMap, GetFeatureInfo, GetMetadata")
	fmt.Println("  GET    /wms/datasets/:dataset/cache     Report whether a topology is cached")
	fmt.Println("  DELETE /wms/datasets/:dataset/cache     Clear the topology and image cache")
	fmt.Println("  POST   /wms/datasets/:dataset/update    Rebuild the topology and refresh layers")
	fmt.Println()
}
