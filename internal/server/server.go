// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires the service together and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/hubauth/internal/auth"
	"codeberg.org/oliverandrich/hubauth/internal/config"
	"codeberg.org/oliverandrich/hubauth/internal/database"
	"codeberg.org/oliverandrich/hubauth/internal/kvstore"
	"codeberg.org/oliverandrich/hubauth/internal/repository"
	"codeberg.org/oliverandrich/hubauth/internal/services/account"
	"codeberg.org/oliverandrich/hubauth/internal/services/email"
	"codeberg.org/oliverandrich/hubauth/internal/services/otp"
	"codeberg.org/oliverandrich/hubauth/internal/services/sms"
	"codeberg.org/oliverandrich/hubauth/internal/token"
	"codeberg.org/oliverandrich/hubauth/internal/ws"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	if migrateErr := database.RunMigrations(db.DB); migrateErr != nil {
		return fmt.Errorf("failed to migrate database: %w", migrateErr)
	}

	repo := repository.New(db)

	// Ephemeral store
	redisClient, err := kvstore.NewClient(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			slog.Error("failed to close redis client", "error", closeErr)
		}
	}()

	// Token codec and session store
	codec, err := token.NewCodec(cfg.Auth.Secret, cfg.Auth.SigningMethod)
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}
	sessions := kvstore.ForSessions(redisClient, &cfg.Auth)

	// Outbound delivery
	mailer, err := email.NewService(&cfg.SMTP)
	if err != nil {
		return fmt.Errorf("failed to create mail service: %w", err)
	}
	smsSender := sms.NewLogSender()

	// Services
	otpSvc := otp.NewService(redisClient, &cfg.Auth, codec, cfg.Server.BaseURL, mailer, smsSender)
	accounts := account.NewService(repo, codec, sessions, otpSvc, &cfg.Auth)
	resolver := auth.NewResolver(codec, sessions, repo)

	// Chat hub
	hub := ws.NewHub(repo)
	go hub.Run()
	defer hub.Shutdown()
	gate := ws.NewGate(hub, resolver)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	setupRoutes(e, accounts, resolver, gate)

	return startWithGracefulShutdown(ctx, e, cfg)
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("server running", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
