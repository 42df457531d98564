package console

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/payvide/payworker/pkg/cache"
	"github.com/payvide/payworker/pkg/config"
	"github.com/payvide/payworker/pkg/crypto"
	"github.com/payvide/payworker/pkg/database"
	databasedriver "github.com/payvide/payworker/pkg/driver/database"
	"github.com/payvide/payworker/pkg/driver/memory"
	redisdriver "github.com/payvide/payworker/pkg/driver/redis"
	sqsdriver "github.com/payvide/payworker/pkg/driver/sqs"
	"github.com/payvide/payworker/pkg/gateway"
	"github.com/payvide/payworker/pkg/mail"
	"github.com/payvide/payworker/pkg/payment"
	"github.com/payvide/payworker/pkg/queue"
	"github.com/payvide/payworker/pkg/telemetry"
	"github.com/payvide/payworker/pkg/token"
)

// App wires configuration into the queue driver, the payment service
// and its handlers. Commands share one App per process.
type App struct {
	Cfg            *config.Config
	DB             *sql.DB
	Driver         queue.Driver
	FailedProvider queue.FailedJobProvider
	Publisher      *queue.Publisher
	Service        *payment.Service
	Handlers       *payment.Handlers
	Adapter        *gateway.Adapter
}

func buildApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	telemetry.SetGlobalLogger(cfg.App.Env)

	db, err := database.NewFactory().Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	driver, err := buildDriver(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	failedProvider := databasedriver.NewDatabaseFailedJobProvider(db, "")

	publisher := queue.NewPublisher(driver)
	publisher.SetDefaults(cfg.Queue.MaxAttempts, backoffFromConfig(cfg))

	enc := crypto.NewEncryptor(cfg.Crypto)
	tokens := token.NewService(cfg.Token)
	adapter := gateway.NewAdapter(cfg.Gateway)

	mailer, err := mail.NewMailer(cfg.Mail)
	if err != nil {
		return nil, fmt.Errorf("building mailer: %w", err)
	}

	events := payment.NewDispatcher(publisher, cfg.Queue.Default)
	svc := payment.NewService(payment.NewSQLStore(db), enc, tokens, events,
		cfg.Payment.TimeoutMinutes, cfg.Payment.RetentionDays)

	if cfg.Cache.Store == "redis" {
		rdb := redisdriver.NewRedisDriver(cfg.Redis)
		svc.WithDedupCache(cache.NewRedisStore(rdb.Client))
	}

	handlers := payment.NewHandlers(svc, adapter, mailer)
	handlers.Register()

	return &App{
		Cfg:            cfg,
		DB:             db,
		Driver:         driver,
		FailedProvider: failedProvider,
		Publisher:      publisher,
		Service:        svc,
		Handlers:       handlers,
		Adapter:        adapter,
	}, nil
}

func buildDriver(ctx context.Context, cfg *config.Config, db *sql.DB) (queue.Driver, error) {
	switch cfg.Queue.Driver {
	case "memory":
		return memory.NewDriver(), nil
	case "redis":
		return redisdriver.NewRedisDriver(cfg.Redis), nil
	case "database":
		return databasedriver.NewDatabaseDriver(cfg.Database, db), nil
	case "sqs":
		client, err := config.LoadSQSClient(ctx, cfg.SQS)
		if err != nil {
			return nil, fmt.Errorf("loading SQS client: %w", err)
		}
		// A single queue URL collapses the priority tiers; point
		// per-tier URLs here if the deployment has them.
		urls := make(map[queue.Priority]string, len(queue.Tiers()))
		for _, tier := range queue.Tiers() {
			urls[tier] = cfg.SQS.QueueURL
		}
		return sqsdriver.NewSQSDriver(client, urls), nil
	default:
		return nil, fmt.Errorf("unsupported queue driver: %s", cfg.Queue.Driver)
	}
}

func backoffFromConfig(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Queue.BackoffMs) * time.Millisecond
}
