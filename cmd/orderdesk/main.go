// Package main запускает HTTP-сервер сервиса orderdesk.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/mmeshcher/orderdesk/internal/config"
	"github.com/mmeshcher/orderdesk/internal/handler"
	"github.com/mmeshcher/orderdesk/internal/middleware"
	"github.com/mmeshcher/orderdesk/internal/notify"
	"github.com/mmeshcher/orderdesk/internal/repository"
	"github.com/mmeshcher/orderdesk/internal/service"
)

const notificationDedupTTL = 24 * time.Hour

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	locale, err := language.Parse(cfg.InvoiceLocale)
	if err != nil {
		sugar.Fatalw("invalid invoice locale", "locale", cfg.InvoiceLocale, "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	composer, err := notify.NewComposer()
	if err != nil {
		sugar.Fatalw("notification templates error", "error", err.Error())
	}

	var dispatcher notify.Dispatcher
	if cfg.NotifyWebhookURL != "" {
		dispatcher = notify.NewWebhookDispatcher(cfg.NotifyWebhookURL, composer)
	} else {
		dispatcher = notify.NewLogDispatcher(composer, logger)
	}

	if cfg.RedisAddr != "" {
		locker := notify.NewRedisLocker(cfg.RedisAddr)
		defer locker.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := locker.Ping(pingCtx); err != nil {
			sugar.Warnw("redis unavailable, notifications may repeat", "addr", cfg.RedisAddr, "error", err.Error())
		}
		cancel()

		dispatcher = notify.NewDedupDispatcher(dispatcher, locker, notificationDedupTTL, logger)
	}

	svc := service.NewService(repo, dispatcher, logger, service.Options{
		Carrier:       cfg.DefaultCarrier,
		CarrierPrefix: cfg.CarrierPrefix,
		TransitTime:   time.Duration(cfg.TransitDays) * 24 * time.Hour,
		InvoiceLocale: locale,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	if cfg.AuthSecret == "" {
		token, err := authMiddleware.IssueToken("bootstrap-admin", 24*time.Hour)
		if err != nil {
			sugar.Fatalw("issue bootstrap token", "error", err.Error())
		}
		sugar.Warnw("AUTH_SECRET is not set, using an ephemeral key", "bootstrap_token", token)
	}

	h := handler.NewHandler(svc, logger, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting orderdesk server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
	}
}
