// Package main is the entry point for the AlphaView portfolio engine.
// It wires the databases, repositories, and services, provisions the static
// operator identities, and runs the background jobs until shutdown.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/alphaview/alphaview/internal/config"
	"github.com/alphaview/alphaview/internal/di"
	"github.com/alphaview/alphaview/internal/domain"
	"github.com/alphaview/alphaview/internal/modules/auth"
	"github.com/alphaview/alphaview/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting AlphaView")

	// Operator identities come from the environment; the tokens themselves
	// are never logged
	resolver := auth.NewStaticResolver()
	if token := os.Getenv("ALPHAVIEW_ADMIN_TOKEN"); token != "" {
		resolver.Register(token, domain.Principal{ID: "admin", Role: domain.RoleAdmin})
		log.Info().Str("role", string(domain.RoleAdmin)).Msg("Operator registered")
	}
	if token := os.Getenv("ALPHAVIEW_VIEWER_TOKEN"); token != "" {
		resolver.Register(token, domain.Principal{ID: "viewer", Role: domain.RoleViewer})
		log.Info().Str("role", string(domain.RoleViewer)).Msg("Operator registered")
	}

	// No market data vendor is wired here; deployments embed the engine and
	// inject their own feed, or run without scheduled refreshes
	container, err := di.Wire(cfg, resolver, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	container.Scheduler.Start()
	log.Info().Msg("AlphaView started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
}
