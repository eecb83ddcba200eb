package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/config"
	"github.com/example/chat-storefront/internal/email"
	"github.com/example/chat-storefront/internal/infrastructure/kafka"
	"github.com/example/chat-storefront/internal/infrastructure/kinesis"
	"github.com/example/chat-storefront/internal/logging"
	"github.com/example/chat-storefront/internal/notification"
)

// watcher turns product-table stream records into StockLow events for the
// notification handler.
type watcher struct {
	handle    kafka.MessageHandler
	threshold int
	vendorID  string
	logger    *zap.Logger
}

func (w *watcher) process(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	var failures []events.KinesisBatchItemFailure
	fail := func(record events.KinesisEventRecord) {
		failures = append(failures, events.KinesisBatchItemFailure{ItemIdentifier: record.Kinesis.SequenceNumber})
	}

	raised := 0
	for _, record := range kinesisEvent.Records {
		change, err := kinesis.ConvertFromKinesisRecord(record)
		if err != nil {
			w.logger.Error("failed to convert record", zap.String("event_id", record.EventID), zap.Error(err))
			fail(record)
			continue
		}
		if change == nil || (w.vendorID != "" && change.VendorID != w.vendorID) {
			continue
		}

		event, low, err := change.LowStockEvent(w.threshold)
		if err != nil {
			w.logger.Error("failed to build event", zap.String("product_id", change.ProductID), zap.Error(err))
			fail(record)
			continue
		}
		if !low {
			continue
		}

		raw, err := json.Marshal(event)
		if err != nil {
			fail(record)
			continue
		}
		if err := w.handle(ctx, []byte(change.ProductID), raw); err != nil {
			w.logger.Error("failed to notify", zap.String("product_id", change.ProductID), zap.Error(err))
			fail(record)
			continue
		}
		raised++
	}

	w.logger.Info("records processed",
		zap.Int("records", len(kinesisEvent.Records)),
		zap.Int("low_stock", raised),
		zap.Int("failed", len(failures)))
	return events.KinesisEventResponse{BatchItemFailures: failures}, nil
}

func main() {
	cfg, err := config.Load()
	logger := logging.Must(cfg.LogLevel, cfg.LogFormat).Named("lambda-stockwatch")
	defer logger.Sync()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.VendorEmail == "" {
		logger.Warn("VENDOR_EMAIL not set, low-stock notices will be dropped")
	}

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	// Stock events never look orders up.
	h := notification.NewHandler(emailSvc, nil, cfg.VendorEmail, logger)

	w := &watcher{handle: h.HandleEvent, threshold: cfg.LowStockThreshold, vendorID: cfg.VendorID, logger: logger}
	lambda.Start(w.process)
}
