// Package app wires stores, services and the chat engine from Config. Every
// binary builds its dependencies through Build.
package app

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/config"
	"github.com/example/chat-storefront/internal/conversation"
	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/domain/history"
	"github.com/example/chat-storefront/internal/domain/order"
	"github.com/example/chat-storefront/internal/events"
	"github.com/example/chat-storefront/internal/infrastructure/kafka"
	"github.com/example/chat-storefront/internal/infrastructure/store"
	"github.com/example/chat-storefront/internal/intent"
	"github.com/example/chat-storefront/internal/payment"
	"github.com/example/chat-storefront/internal/policy"
	"github.com/example/chat-storefront/internal/purchase"
	"github.com/example/chat-storefront/internal/search"
	"github.com/example/chat-storefront/internal/session"
)

type App struct {
	Config config.Config
	Logger *zap.Logger

	CatalogStore catalog.Store
	OrderStore   order.Store
	Catalog      *catalog.Service
	Orders       *order.Service
	History      history.Store
	Sessions     session.Store
	Intents      purchase.IntentLog
	Publisher    events.Publisher

	Purchaser  *purchase.Orchestrator
	Dispatcher *conversation.Dispatcher

	closers []func() error
}

// Build connects every backend named by cfg. Unset backends fall back to
// in-memory stores so a bare environment still runs.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.openPublisher()

	a.Catalog = catalog.NewService(a.CatalogStore, a.Publisher, logger, cfg.LowStockThreshold)
	a.Orders = order.NewService(a.OrderStore, a.Publisher, logger)

	if err := a.buildEngine(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config
	log := a.Logger.Named("app")

	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL, cfg.VendorID)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.CatalogStore = store.NewSQLCatalog(db)
		a.OrderStore = store.NewSQLOrders(db)
		a.History = store.NewSQLHistory(db)
		a.Intents = store.NewSQLIntentLog(db)
		log.Info("using SQL stores", zap.String("dialect", string(db.Dialect())))
	} else {
		a.CatalogStore = store.NewMemoryCatalog()
		a.OrderStore = store.NewMemoryOrders()
		a.History = store.NewMemoryHistory()
		a.Intents = store.NewMemoryIntentLog()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	if cfg.DynamoTable != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		a.CatalogStore = store.NewDynamoCatalog(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable, cfg.VendorID)
		log.Info("using DynamoDB catalog", zap.String("table", cfg.DynamoTable))
	}

	if cfg.CatalogTTL > 0 {
		a.CatalogStore = store.NewCachedCatalog(a.CatalogStore, cfg.CatalogTTL)
	}

	if cfg.RedisAddr != "" {
		client, err := store.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		a.Sessions = store.NewRedisSessions(client, cfg.SessionTTL)
		log.Info("using redis sessions", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.SessionTTL))
	} else {
		a.Sessions = store.NewMemorySessions()
	}
	return nil
}

func (a *App) openPublisher() {
	if len(a.Config.KafkaBrokers) == 0 {
		a.Publisher = events.NopPublisher{}
		return
	}
	producer := kafka.NewProducer(a.Config.KafkaBrokers, a.Config.KafkaTopic, a.Logger)
	a.closers = append(a.closers, producer.Close)
	a.Publisher = producer
	a.Logger.Named("app").Info("publishing events to kafka",
		zap.Strings("brokers", a.Config.KafkaBrokers),
		zap.String("topic", a.Config.KafkaTopic))
}

func (a *App) buildEngine(ctx context.Context) error {
	cfg := a.Config

	scoring, err := search.LoadConfig(cfg.ScoringFile)
	if err != nil {
		return err
	}

	policyContent := policy.DefaultPolicy
	if cfg.PolicyFile != "" {
		raw, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			return fmt.Errorf("read policy file: %w", err)
		}
		policyContent = string(raw)
	}
	quota, err := policy.NewQuotaEngine(ctx, policyContent, policy.Limits{
		MaxQuantityPerOrder: cfg.MaxQuantityPerOrder,
		MaxPendingOrders:    cfg.MaxPendingOrders,
	}, a.Orders)
	if err != nil {
		return err
	}

	var links payment.LinkGenerator
	if cfg.PaymentGatewayURL != "" {
		gw, err := payment.NewGatewayLinks(cfg.PaymentGatewayURL)
		if err != nil {
			return err
		}
		links = gw
	}

	a.Purchaser = purchase.NewOrchestrator(purchase.Deps{
		Catalog: a.CatalogStore,
		Orders:  a.Orders,
		History: a.History,
		Intents: a.Intents,
		Links:   links,
		Quota:   quota,
		Bank:    cfg.Bank,
	}, a.Logger)

	a.Dispatcher = conversation.NewDispatcher(conversation.Deps{
		Classifier:    intent.NewClassifier(intent.DefaultVocabulary(), cfg.FuzzyThreshold),
		Resolver:      search.NewResolver(scoring),
		Catalog:       a.CatalogStore,
		Orders:        a.Orders,
		History:       a.History,
		Sessions:      a.Sessions,
		Purchaser:     a.Purchaser,
		MaxCandidates: cfg.MaxCandidates,
	}, a.Logger)
	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
