package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/app"
	"github.com/example/chat-storefront/internal/config"
	"github.com/example/chat-storefront/internal/email"
	"github.com/example/chat-storefront/internal/infrastructure/kafka"
	"github.com/example/chat-storefront/internal/logging"
	"github.com/example/chat-storefront/internal/notification"
)

func main() {
	cfg, err := config.Load()
	logger := logging.Must(cfg.LogLevel, cfg.LogFormat).Named("notifier")
	defer logger.Sync()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required")
	}
	if cfg.VendorEmail == "" {
		logger.Warn("VENDOR_EMAIL not set, notices will be skipped")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The notifier only reads orders; it never publishes.
	brokers := cfg.KafkaBrokers
	readOnly := cfg
	readOnly.KafkaBrokers = nil
	a, err := app.Build(ctx, readOnly, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}
	defer a.Close()

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(emailSvc, a.Orders, cfg.VendorEmail, logger)

	consumer := kafka.NewConsumer(brokers, cfg.KafkaTopic, cfg.KafkaGroup, logger)
	defer consumer.Close()

	go func() {
		logger.Info("starting event consumer",
			zap.Strings("brokers", brokers),
			zap.String("topic", cfg.KafkaTopic),
			zap.String("group", cfg.KafkaGroup),
			zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort))
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
			logger.Error("consumer error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
}
