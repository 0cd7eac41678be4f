// homee-tap connects to a homee hub and prints decoded updates to the console.
// Usage: go run ./cmd/homee-tap --config configs/homee-exporter.yaml
//
// Credentials come from the config file, which may reference variables from
// the environment or a .env file (e.g. HOMEE_PASSWORD).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bioharz/homee-exporter/internal/bootstrap"
	"github.com/bioharz/homee-exporter/internal/config"
	"github.com/bioharz/homee-exporter/internal/connection"
	"github.com/bioharz/homee-exporter/internal/model"
	"github.com/bioharz/homee-exporter/internal/router"
	"github.com/bioharz/homee-exporter/internal/shutdown"
)

func main() {
	configPath := flag.String("config", "configs/homee-exporter.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full node JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if err := config.LoadEnv(); err != nil {
		logger.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hooks := shutdown.New(logger)

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		hooks.Run()
		cancel()
	}()

	wsURL, err := bootstrap.ConnectionURL(ctx, cfg.Homee, logger)
	if err != nil {
		logger.Error("failed to resolve hub connection", "error", err)
		os.Exit(1)
	}

	p := &printer{out: os.Stdout, verbose: *verbose}
	rtr := router.NewRouter(router.RouterConfig{OnlyGroup: cfg.Metrics.OnlyGroup}, p, logger)
	ctrl := connection.NewController(bootstrap.ControllerConfig(cfg, wsURL), rtr, hooks, logger,
		connection.WithURLRefresh(bootstrap.URLRefresh(cfg.Homee, logger)),
	)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := rtr.Stats()
				status := ctrl.Status()
				logger.Info("stats",
					"state", status.State,
					"session", status.Session,
					"last_pong", status.LastPong,
					"received", stats.MessagesReceived,
					"routed", stats.MessagesRouted,
					"decode_errors", stats.DecodeErrors,
					"unrecognized", stats.Unrecognized,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	if err := ctrl.Run(ctx); err != nil {
		logger.Error("connection ended", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// printer writes decoded updates to the console.
type printer struct {
	out     io.Writer
	verbose bool
}

func (p *printer) UpdateMetrics(nodes []model.Node, onlyGroup int) {
	for _, n := range nodes {
		if p.verbose {
			data, _ := json.MarshalIndent(n, "", "  ")
			fmt.Fprintf(p.out, "[NODE] %s\n", data)
			continue
		}
		fmt.Fprintf(p.out, "[NODE] id=%d name=%q state=%d profile=%d attributes=%d\n",
			n.ID, n.Name, n.State, n.Profile, len(n.Attributes))
	}
}

func (p *printer) UpdateRelationships(rels []model.Relationship) {
	groups := make(map[int64]int)
	for _, r := range rels {
		groups[r.GroupID]++
	}
	fmt.Fprintf(p.out, "[RELATIONSHIPS] count=%d groups=%d\n", len(rels), len(groups))
}
