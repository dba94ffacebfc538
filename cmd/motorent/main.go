package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"motorent/internal/app/commands"
	draftsapp "motorent/internal/app/handlers/drafts"
	"motorent/internal/app/middleware"
	"motorent/internal/app/outbox"
	"motorent/internal/app/policies"
	"motorent/internal/app/queries"
	"motorent/internal/app/uow"
	domainlistings "motorent/internal/domain/listings"
	"motorent/internal/infra/backendapi"
	"motorent/internal/infra/broker/kafka"
	"motorent/internal/infra/config"
	mongodb "motorent/internal/infra/db/mongo"
	ginserver "motorent/internal/infra/http/gin"
	"motorent/internal/infra/netclient"
	"motorent/internal/infra/obs"
	infraoutbox "motorent/internal/infra/outbox"
	"motorent/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("dev", "info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, app.health, app.handlers)

	go func() {
		if err := app.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox worker stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode, "backend", cfg.Backend.BaseURL)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	worker   *infraoutbox.Worker
	closers  []func(context.Context) error
}

// storage groups the persistence ports for the selected storage mode.
type storage struct {
	drafts      domainlistings.DraftRepository
	idempotency middleware.IdempotencyStore
	outbox      outbox.Outbox
	source      infraoutbox.Source
	// units is nil when draft writes and outbox records cannot share a transaction.
	units uow.UoWFactory
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{health: obs.HealthHandlers{Checks: map[string]obs.Check{}, Timeout: 2 * time.Second}}

	client, err := newBackendClient(cfg.Backend, logger)
	if err != nil {
		return nil, err
	}
	gateway := &backendapi.ListingsGateway{Client: client, Logger: logger}
	app.health.Checks["backend"] = func(ctx context.Context) error {
		if !gateway.IsConnected(ctx) {
			return policies.ErrBackendUnavailable
		}
		return nil
	}

	store, err := app.openStorage(ctx, cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}

	handlers := &draftsapp.Handlers{
		Drafts:   store.drafts,
		Outbox:   store.outbox,
		Encoder:  outbox.JSONEventEncoder{},
		Gateway:  gateway,
		Location: cfg.Timezone,
		Logger:   logger,
	}
	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	draftsapp.Register(commandBus, queryBus, handlers)

	auth := draftsapp.OwnerAuthorizer{Drafts: store.drafts}
	pipeline := []middleware.CommandMiddleware{
		middleware.Logging(logger),
		middleware.Authorization(auth),
		middleware.Validation(draftsapp.PayloadValidator{}),
		middleware.Idempotency(store.idempotency, nil),
	}
	if store.units != nil {
		pipeline = append(pipeline, middleware.Transaction(store.units, draftsapp.TxOptions))
	}
	pipeline = append(pipeline, middleware.OutboxFlush(store.outbox))
	commandBusWithMiddleware := middleware.ChainCommands(commandBus, pipeline...)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus, middleware.QueryAuthorization(auth))

	producer, err := app.openProducer(cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	app.worker = &infraoutbox.Worker{
		Store:       store.source,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}

	app.handlers = ginserver.Handlers{
		Drafts: ginserver.DraftHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
		},
		Identity:  ginserver.Identity(),
		RateLimit: ginserver.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger).Middleware(),
	}
	return app, nil
}

func newBackendClient(cfg config.BackendConfig, logger *slog.Logger) (*netclient.Client, error) {
	clientCfg := netclient.Config{
		BaseURL:           cfg.BaseURL,
		MaxAttempts:       cfg.MaxAttempts,
		BaseDelay:         cfg.BaseDelay,
		RetryClientErrors: cfg.RetryAll4xx,
		HealthPath:        cfg.HealthPath,
		HealthTimeout:     cfg.HealthTimeout,
		DedupeInFlight:    cfg.DedupeInFlight,
		DefaultHeaders:    http.Header{"User-Agent": []string{"motorent-bff"}},
	}
	if strings.EqualFold(cfg.Backoff, "exponential") {
		clientCfg.Backoff = netclient.ExponentialBackoff(cfg.BaseDelay, 30*time.Second)
	}
	return netclient.New(clientCfg, netclient.WithLogger(logger))
}

func (a *application) openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	if cfg.StorageMode != "mongo" {
		box := memory.NewOutbox()
		logger.Info("using in-memory storage")
		return storage{
			drafts:      memory.NewDraftRepository(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			outbox:      box,
			source:      box,
		}, nil
	}

	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, err
	}
	a.closers = append(a.closers, client.Close)
	a.health.Checks["mongo"] = client.Ping

	drafts, err := mongodb.NewDraftRepository(ctx, client.DB)
	if err != nil {
		return storage{}, err
	}
	idem, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		return storage{}, err
	}
	box, err := infraoutbox.NewStore(ctx, client.DB)
	if err != nil {
		return storage{}, err
	}
	st := storage{drafts: drafts, idempotency: idem, outbox: box, source: box}
	if cfg.MongoTransactions {
		st.units = mongodb.Factory{DB: client.DB}
	}
	logger.Info("using mongo storage", "database", cfg.MongoDB, "transactions", cfg.MongoTransactions)
	return st, nil
}

func (a *application) openProducer(cfg config.Config, logger *slog.Logger) (infraoutbox.Producer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("no kafka brokers configured, outbox events are logged only")
		return infraoutbox.LogProducer{Logger: logger}, nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
	return producer, nil
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}
