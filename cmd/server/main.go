package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gihan9a/braidtrack/internal/config"
	_ "gihan9a/braidtrack/internal/game"
	"gihan9a/braidtrack/internal/server"
	"gihan9a/braidtrack/internal/tls"
)

func main() {
	// Parse command line flags and get configuration
	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("Error parsing configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// Set up the TLS certificate if needed
	if cfg.TLS.Enabled && cfg.TLS.GenerateCert {
		if err := tls.EnsureCertificate(cfg.TLS.CertFile, cfg.TLS.KeyFile); err != nil {
			log.Fatalf("Failed to set up TLS certificate: %v", err)
		}
	}

	hub, err := server.NewHub(cfg, server.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create hub: %v", err)
	}
	defer hub.Close()

	if err := hub.LoadSeeds(); err != nil {
		log.Fatalf("Failed to load seed files: %v", err)
	}

	// Set up watchers for the seed directory
	if err := hub.SetupWatchers(); err != nil {
		log.Fatalf("Failed to set up file watchers: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: hub.SetupRoutes(),
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logger.Info("Hub running", "addr", srv.Addr, "tls", cfg.TLS.Enabled, "seed_dir", cfg.SeedDir,
		"resources", len(hub.Resources()), "publish_interval", cfg.PublishInterval)

	if cfg.TLS.Enabled {
		err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
