package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nikogura/mcp-bench/pkg/mcp"
	"github.com/nikogura/mcp-bench/pkg/mcp/auth"
	"github.com/nikogura/mcp-bench/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMCPAddr     = ":8081"
	defaultMetricsAddr = ":9090"
	defaultIdleTimeout = 5 * time.Minute
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	addr := envOrDefault("MCP_ADDR", defaultMCPAddr)
	metricsAddr := envOrDefault("METRICS_ADDR", defaultMetricsAddr)

	idleTimeout := defaultIdleTimeout
	if raw := os.Getenv("SESSION_IDLE_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			logger.Error("invalid SESSION_IDLE_TIMEOUT", slog.String("value", raw), slog.String("error", err.Error()))
			os.Exit(1)
		}
		idleTimeout = parsed
	}

	authChain, err := auth.NewChainFromConfig(authConfigFromEnv(), logger)
	if err != nil {
		logger.Error("invalid auth configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Build the frozen tool registry. Duplicate names are a configuration
	// bug and abort before serving begins.
	registry := mcp.NewRegistry()

	toolset := mcp.NewToolset(&http.Client{Timeout: 10 * time.Second})

	err = toolset.RegisterAll(registry)
	if err != nil {
		logger.Error("tool registration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dispatcher := mcp.NewDispatcher(registry, logger)
	manager := mcp.NewSessionManager(dispatcher, idleTimeout, logger)
	server := mcp.NewHTTPServer(registry, manager, addr, authChain, logger)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return server.Start(groupCtx)
	})

	group.Go(func() error {
		return metricsServer.Start(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	if err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// envOrDefault reads an environment variable with a fallback.
func envOrDefault(key, fallback string) (value string) {
	value = os.Getenv(key)
	if value == "" {
		value = fallback
	}

	return value
}

// authConfigFromEnv assembles the optional auth configuration. With none of
// the variables set, the MCP endpoint stays unauthenticated, which is the
// benchmark default.
func authConfigFromEnv() (config auth.Config) {
	config = auth.Config{
		StaticToken: os.Getenv("MCP_AUTH_TOKEN"),
		JWTSecret:   os.Getenv("MCP_JWT_SECRET"),
	}

	// MCP_API_KEYS is a comma-separated list of key=username pairs.
	if raw := os.Getenv("MCP_API_KEYS"); raw != "" {
		config.APIKeys = make(map[string]string)
		for _, pair := range strings.Split(raw, ",") {
			key, username, found := strings.Cut(pair, "=")
			if found {
				config.APIKeys[strings.TrimSpace(key)] = strings.TrimSpace(username)
			}
		}
	}

	return config
}
