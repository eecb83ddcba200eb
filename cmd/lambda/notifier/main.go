package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/app"
	"github.com/example/chat-storefront/internal/config"
	"github.com/example/chat-storefront/internal/email"
	"github.com/example/chat-storefront/internal/infrastructure/kafka"
	"github.com/example/chat-storefront/internal/logging"
	"github.com/example/chat-storefront/internal/notification"
)

type batchHandler struct {
	handle kafka.MessageHandler
	logger *zap.Logger
}

// process handles an MSK batch. Lambda cannot retry single Kafka records,
// so any failure fails the whole batch.
func (b *batchHandler) process(ctx context.Context, event events.KafkaEvent) error {
	var errs []error
	total := 0
	for partition, records := range event.Records {
		for _, record := range records {
			total++
			key, err := base64.StdEncoding.DecodeString(record.Key)
			if err != nil {
				key = nil
			}
			value, err := base64.StdEncoding.DecodeString(record.Value)
			if err != nil {
				b.logger.Error("failed to decode record",
					zap.String("partition", partition), zap.Int64("offset", record.Offset), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s@%d: %w", partition, record.Offset, err))
				continue
			}

			if err := b.handle(ctx, key, value); err != nil {
				b.logger.Error("failed to process record",
					zap.String("partition", partition), zap.Int64("offset", record.Offset), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s@%d: %w", partition, record.Offset, err))
			}
		}
	}

	b.logger.Info("batch processed", zap.Int("records", total), zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func main() {
	cfg, err := config.Load()
	logger := logging.Must(cfg.LogLevel, cfg.LogFormat).Named("lambda-notifier")
	defer logger.Sync()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	cfg.KafkaBrokers = nil
	a, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}
	defer a.Close()

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	h := notification.NewHandler(emailSvc, a.Orders, cfg.VendorEmail, logger)

	logger.Info("initialized", zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort))
	b := &batchHandler{handle: h.HandleEvent, logger: logger}
	lambda.Start(b.process)
}
