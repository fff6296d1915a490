package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"resort/internal/app/commands"
	"resort/internal/app/dto"
	availabilityapp "resort/internal/app/handlers/availability"
	bookingapp "resort/internal/app/handlers/booking"
	"resort/internal/app/middleware"
	"resort/internal/app/notify"
	"resort/internal/app/outbox"
	"resort/internal/app/policies"
	"resort/internal/app/queries"
	"resort/internal/app/uow"
	"resort/internal/domain/pricing"
	"resort/internal/infra/broker/kafka"
	rediscache "resort/internal/infra/cache/redis"
	"resort/internal/infra/config"
	mongodb "resort/internal/infra/db/mongo"
	ginserver "resort/internal/infra/http/gin"
	"resort/internal/infra/inbox"
	infranotify "resort/internal/infra/notify"
	"resort/internal/infra/obs"
	infraoutbox "resort/internal/infra/outbox"
	"resort/internal/infra/payments"
	"resort/internal/infra/storage/memory"
	"resort/internal/infra/validation"
)

type application struct {
	cfg        config.Config
	handlers   ginserver.Handlers
	uow        uow.UoWFactory
	commands   commands.Bus
	probes     map[string]obs.Probe
	queue      infraoutbox.Queue
	inbox      kafka.Inbox
	dispatcher *notify.Dispatcher
	metrics    *obs.Metrics

	closers []func(context.Context) error
	wg      sync.WaitGroup
}

// persistence bundles what the selected store provides.
type persistence struct {
	factory uow.UoWFactory
	box     interface {
		outbox.Outbox
		infraoutbox.Queue
	}
	inbox kafka.Inbox
	mongo *mongodb.Client
}

func openPersistence(ctx context.Context, cfg config.Config) (persistence, error) {
	if cfg.Store != config.StoreMongo {
		return persistence{
			factory: memory.Factory{Store: memory.NewStore()},
			box:     memory.NewOutbox(),
			inbox:   inbox.NewMemory(),
		}, nil
	}
	client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return persistence{}, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		return persistence{}, fmt.Errorf("mongo indexes: %w", err)
	}
	box, err := infraoutbox.NewStore(ctx, client.DB)
	if err != nil {
		return persistence{}, fmt.Errorf("outbox store: %w", err)
	}
	seen, err := inbox.NewStore(ctx, client.DB, cfg.KafkaGroupID)
	if err != nil {
		return persistence{}, fmt.Errorf("inbox store: %w", err)
	}
	return persistence{factory: mongodb.Factory{DB: client.DB}, box: box, inbox: seen, mongo: client}, nil
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *obs.Metrics) (*application, error) {
	store, err := openPersistence(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &application{
		cfg:     cfg,
		uow:     store.factory,
		queue:   store.box,
		inbox:   store.inbox,
		metrics: metrics,
		probes:  map[string]obs.Probe{},
	}
	if store.mongo != nil {
		app.probes["mongo"] = store.mongo.Ping
		app.closers = append(app.closers, store.mongo.Close)
	}

	idem, err := app.idempotencyStore(ctx, store)
	if err != nil {
		return nil, err
	}

	app.dispatcher = &notify.Dispatcher{
		Notifier: buildNotifier(cfg, logger),
		UoW:      store.factory,
		Logger:   logger,
		Timeout:  cfg.NotifyTimeout,
		Async:    cfg.NotifyAsync,
		OnFailure: func(kind notify.Kind) {
			metrics.ObserveNotificationFailure(string(kind))
		},
	}

	encoder := outbox.JSONEventEncoder{}
	calculator := pricing.NewCalculator(pricing.Rates(cfg.Pricing))

	payHandler := &bookingapp.PaymentsHandler{
		UoWFactory: store.factory,
		Outbox:     store.box,
		Encoder:    encoder,
		Attempts:   cfg.TxMaxAttempts,
	}
	if cfg.PaymentSecret != "" {
		sandbox, err := payments.NewSandbox(cfg.PaymentSecret)
		if err != nil {
			return nil, err
		}
		payHandler.Gateway = sandbox
	} else {
		logger.Warn("payment gateway disabled", "reason", "PAYMENT_SANDBOX_SECRET not set")
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		UoWFactory: store.factory,
		Validator:  bookingapp.AvailabilityValidator{RequireFutureCheckIn: cfg.RequireFutureCheckIn},
		Pricing:    calculator,
		Outbox:     store.box,
		Encoder:    encoder,
		Attempts:   cfg.TxMaxAttempts,
		NewID:      uuid.NewString,
	})
	commands.RegisterHandler(commandBus, bookingapp.CancelBookingCommand{}.Key(), &bookingapp.CancelBookingHandler{
		UoWFactory: store.factory,
		Payments:   payHandler.Gateway,
		Outbox:     store.box,
		Encoder:    encoder,
		Attempts:   cfg.TxMaxAttempts,
	})
	commands.RegisterHandler(commandBus, bookingapp.TransitionBookingCommand{}.Key(), &bookingapp.TransitionBookingHandler{
		UoWFactory: store.factory,
		Outbox:     store.box,
		Encoder:    encoder,
		Attempts:   cfg.TxMaxAttempts,
	})
	commands.RegisterHandler(commandBus, bookingapp.StartPaymentCommand{}.Key(), commands.HandlerFunc[bookingapp.StartPaymentCommand, dto.PaymentOrder](payHandler.Start))
	commands.RegisterHandler(commandBus, bookingapp.ConfirmPaymentCommand{}.Key(), commands.HandlerFunc[bookingapp.ConfirmPaymentCommand, bookingapp.PaymentResult](payHandler.Confirm))
	commands.RegisterHandler(commandBus, bookingapp.RecordPaymentEventCommand{}.Key(), commands.HandlerFunc[bookingapp.RecordPaymentEventCommand, bookingapp.PaymentResult](payHandler.Record))

	validator := validation.New()
	authorizer := policies.RoleAuthorizer{}
	app.commands = middleware.ChainCommands(
		commandBus,
		middleware.Validation(validator),
		middleware.Authorization(authorizer),
		middleware.Idempotency(idem, nil),
		middleware.Notifications(app.dispatcher),
		middleware.Observe(metrics, logger),
		middleware.Transaction(store.factory, nil, cfg.TxMaxAttempts),
		middleware.OutboxFlush(store.box),
	)

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, bookingapp.ListMyBookingsQuery{}.Key(), &bookingapp.ListMyBookingsHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, availabilityapp.GetAvailabilityQuery{}.Key(), &availabilityapp.GetAvailabilityHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, availabilityapp.OccupancyReportQuery{}.Key(), &availabilityapp.OccupancyReportHandler{UoWFactory: store.factory})
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(authorizer),
	)
	logger.Debug("buses ready", "commands", commandBus.Keys(), "queries", queryBus.Keys())

	app.handlers = ginserver.Handlers{
		Booking:      ginserver.BookingHandler{Commands: app.commands, Queries: queryBusWithMiddleware, Logger: logger},
		Availability: ginserver.AvailabilityHandler{Queries: queryBusWithMiddleware, Logger: logger},
		Me:           ginserver.MeHandler{Queries: queryBusWithMiddleware, Logger: logger},
	}
	return app, nil
}

func (a *application) idempotencyStore(ctx context.Context, store persistence) (middleware.IdempotencyStore, error) {
	switch a.cfg.IdempotencyStore {
	case config.StoreMongo:
		return mongodb.NewIdempotencyStore(ctx, store.mongo.DB, a.cfg.IdempotencyTTL)
	case "redis":
		rs, err := rediscache.NewIdempotencyStore(ctx, rediscache.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
			TTL:      a.cfg.IdempotencyTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("redis idempotency store: %w", err)
		}
		a.probes["redis"] = rs.Ping
		a.closers = append(a.closers, func(context.Context) error { return rs.Close() })
		return rs, nil
	default:
		mem := memory.NewIdempotencyStore()
		mem.TTL = a.cfg.IdempotencyTTL
		return mem, nil
	}
}

func buildNotifier(cfg config.Config, logger *slog.Logger) policies.Notifier {
	switch cfg.Notifier {
	case config.NotifierMailjet:
		return infranotify.NewMailjet(infranotify.MailjetConfig{
			APIKey:    cfg.MailjetAPIKey,
			SecretKey: cfg.MailjetSecret,
			FromEmail: cfg.MailFromAddress,
			FromName:  cfg.MailFromName,
		})
	case config.NotifierLog:
		return infranotify.Log{Logger: logger}
	default:
		return nil
	}
}

// startBackground launches the outbox relay and the payment event consumer.
// Both need Kafka; without it events stay in the outbox store.
func (a *application) startBackground(ctx context.Context, logger *slog.Logger) {
	if !a.cfg.KafkaEnabled() {
		logger.Info("kafka disabled, outbox events stay local")
		return
	}
	producer, err := kafka.NewProducer(a.cfg.KafkaBrokers, nil)
	if err != nil {
		logger.Error("kafka producer unavailable, outbox relay not started", "error", err)
		return
	}
	a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
	worker := &infraoutbox.Worker{
		Queue:       a.queue,
		Producer:    producer,
		Interval:    a.cfg.OutboxPollInterval,
		TopicPrefix: a.cfg.KafkaTopicPrefix,
		ID:          "outbox-" + uuid.NewString(),
		Backoff:     a.cfg.RetryBackoff,
		Observer:    a.metrics,
		Logger:      logger.With("component", "outbox"),
	}
	a.goBackground(func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("outbox worker stopped", "error", err)
		}
	})

	consumer, err := kafka.NewConsumer(a.cfg.KafkaBrokers, a.cfg.KafkaGroupID, nil, kafka.PaymentEvents{
		Bus:    a.commands,
		Inbox:  a.inbox,
		Logger: logger.With("component", "payment-events"),
	}, logger)
	if err != nil {
		logger.Error("kafka consumer unavailable", "error", err)
		return
	}
	a.closers = append(a.closers, func(context.Context) error { return consumer.Close() })
	a.goBackground(func() {
		if err := consumer.Run(ctx, []string{a.cfg.Topic(a.cfg.PaymentTopic)}); err != nil && ctx.Err() == nil {
			logger.Error("payment consumer stopped", "error", err)
		}
	})
}

func (a *application) goBackground(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// wait blocks until background loops and in-flight notifications finish.
func (a *application) wait() {
	a.wg.Wait()
	if a.dispatcher != nil {
		a.dispatcher.Wait()
	}
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}
