package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/api"
	"github.com/example/chat-storefront/internal/app"
	"github.com/example/chat-storefront/internal/auth"
	"github.com/example/chat-storefront/internal/config"
	"github.com/example/chat-storefront/internal/logging"
)

const recoverInterval = time.Minute

func main() {
	cfg, err := config.Load()
	logger := logging.Must(cfg.LogLevel, cfg.LogFormat).Named("api")
	defer logger.Sync()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if err := cfg.RequireJWT(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}
	defer a.Close()

	admin := auth.Admin{Email: cfg.AdminEmail, PasswordHash: cfg.AdminPasswordHash}
	if !admin.Configured() {
		logger.Warn("ADMIN_EMAIL or ADMIN_PASSWORD_HASH not set, admin login disabled")
	}

	handler := api.NewHandler(api.Config{
		Chat:    a.Dispatcher,
		Catalog: a.Catalog,
		Orders:  a.Orders,
		History: a.History,
		JWT:     auth.NewJWTService(cfg.JWTSecret, 12*time.Hour),
		Admin:   admin,
		Logger:  logger,
	})
	e := api.NewServer(handler)

	// Purchases interrupted by a crash are compensated in the background.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runRecovery(ctx, a, logger)
	}()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", zap.String("addr", cfg.HTTPAddr), zap.String("vendor_id", cfg.VendorID))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	wg.Wait()
}

func runRecovery(ctx context.Context, a *app.App, logger *zap.Logger) {
	ticker := time.NewTicker(recoverInterval)
	defer ticker.Stop()

	for {
		n, err := a.Purchaser.Recover(ctx, a.Config.RecoverAfter)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Error("purchase recovery failed", zap.Error(err))
		case n > 0:
			logger.Info("recovered interrupted purchases", zap.Int("closed", n))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
