// Package mcp parses MCP command flags and runs the stdio server, with an
// optional HTTP metrics listener.
package mcp

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/louisbranch/storyweave/internal/consistency"
	"github.com/louisbranch/storyweave/internal/mcp"
	"github.com/louisbranch/storyweave/internal/platform/otel"
	"github.com/louisbranch/storyweave/internal/storage/sqlite"
	"github.com/louisbranch/storyweave/internal/telemetry"
)

// Config holds MCP command configuration.
type Config struct {
	Storage     string `env:"STORYWEAVE_STORAGE_PATH" envDefault:"storyweave.db"`
	MetricsAddr string `env:"STORYWEAVE_METRICS_ADDR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "path to SQLite database")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (optional)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP server on stdio until the context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "mcp")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	store, err := sqlite.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close storage: %v", err)
		}
	}()

	checker := consistency.NewChecker(consistency.Config{
		Reports:   store,
		Telemetry: telemetry.NewEmitter(store),
	})
	server, err := mcp.New(mcp.Config{
		Checker:   checker,
		Scenarios: store,
		Reports:   store,
	})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr)
		defer stopMetrics()
	}

	return server.Run(ctx)
}

func serveMetrics(addr string) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics listener: %v", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics shutdown: %v", err)
		}
	}
}
