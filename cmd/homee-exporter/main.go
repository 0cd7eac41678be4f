package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bioharz/homee-exporter/internal/bootstrap"
	"github.com/bioharz/homee-exporter/internal/config"
	"github.com/bioharz/homee-exporter/internal/connection"
	"github.com/bioharz/homee-exporter/internal/metrics"
	"github.com/bioharz/homee-exporter/internal/router"
	"github.com/bioharz/homee-exporter/internal/shutdown"
	"github.com/bioharz/homee-exporter/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/homee-exporter.yaml", "path to config file")
	envFile := flag.String("env-file", "", "path to .env file (default: ./.env if present)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Name, version.String())
		return
	}

	if err := run(*configPath, *envFile); err != nil {
		slog.Error("homee-exporter failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	if err := config.LoadEnv(envFiles...); err != nil {
		return err
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging
	logger := bootstrap.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting homee-exporter",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Exit hooks close the hub connection with "going away" before the
	// context is cancelled.
	hooks := shutdown.New(logger)
	defer hooks.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			hooks.Run()
			cancel()
		case <-ctx.Done():
		}
	}()

	exporter := metrics.NewExporter(logger)

	rtr := router.NewRouter(
		router.RouterConfig{OnlyGroup: cfg.Metrics.OnlyGroup},
		exporter,
		logger,
		router.WithRecorder(exporter),
	)

	wsURL, err := bootstrap.ConnectionURL(ctx, cfg.Homee, logger)
	if err != nil {
		return err
	}

	ctrl := connection.NewController(
		bootstrap.ControllerConfig(cfg, wsURL),
		rtr,
		hooks,
		logger,
		connection.WithObserver(exporter),
		connection.WithURLRefresh(bootstrap.URLRefresh(cfg.Homee, logger)),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Metrics.Address, cfg.Metrics.Port)
	srv := metrics.NewServer(addr, cfg.Metrics.Path, exporter.Registry(), newHealthHandler(ctrl, rtr), logger)
	if err := srv.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ctrl.Run(gctx)
	})

	g.Go(srv.Serve)

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("homee-exporter running",
		"metrics_url", fmt.Sprintf("http://%s%s", srv.Addr(), cfg.Metrics.Path),
		"only_group", cfg.Metrics.OnlyGroup,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("homee-exporter stopped")
	return nil
}
