package main

import (
	"context"
	"errors"
	"fmt"

	kurrentclient "github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/terraskye/cinema/choreography"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	kurrentbus "github.com/terraskye/cinema/eventbus/kurrentdb"
	memorybus "github.com/terraskye/cinema/eventbus/memory"
	"github.com/terraskye/cinema/eventbus/rabbitmq"
	"github.com/terraskye/cinema/eventstore/disk"
	kurrentstore "github.com/terraskye/cinema/eventstore/kurrentdb"
	"github.com/terraskye/cinema/eventstore/memory"
	"github.com/terraskye/cinema/internal/config"
	"github.com/terraskye/cinema/internal/httpapi"
	"github.com/terraskye/cinema/otel"
	"github.com/terraskye/cinema/reservation"
	"github.com/terraskye/cinema/reservation/redisstore"
	"github.com/terraskye/cinema/reservation/sqlstore"
	"github.com/terraskye/cinema/show"
	"github.com/terraskye/cinema/wallet"
)

const feedBuffer = 1024

type app struct {
	http         *echo.Echo
	orchestrator *reservation.Orchestrator
	commands     *cqrs.CommandBus
	events       cqrs.EventStore
	bus          cqrs.EventBus
	stopRelay  context.CancelFunc
	closers      []func() error
}

func build(ctx context.Context, cfg config.Config, logger *logrus.Entry) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close(logger)
		}
	}()

	var client *kurrentclient.Client
	if cfg.EventStore == "kurrentdb" {
		if client, err = kurrentstore.Dial(cfg.KurrentDBURL); err != nil {
			return nil, err
		}
	}

	var feed <-chan *cqrs.Envelope
	switch cfg.EventStore {
	case "file":
		fs, err := disk.NewFileStore(cfg.EventStoreDir, feedBuffer)
		if err != nil {
			return nil, err
		}
		a.events, feed = fs, fs.Events()
	case "kurrentdb":
		a.events = kurrentstore.NewEventStore(client)
	default:
		ms := memory.NewMemoryStore(feedBuffer)
		a.events, feed = ms, ms.Events()
	}
	a.events = otel.NewTelemetryStore(a.events)

	var publisher cqrs.EventPublisher
	switch cfg.EventBus {
	case "rabbitmq":
		rb, err := rabbitmq.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, err
		}
		a.bus, publisher = rb, rb
	case "kurrentdb":
		a.bus = kurrentbus.NewEventBus(client)
	default:
		mb := memorybus.NewEventBus(feedBuffer)
		a.bus, publisher = mb, mb
	}
	if feed != nil && publisher != nil {
		// only events appended after start-up are relayed
		head, err := logHead(ctx, a.events)
		if err != nil {
			return nil, err
		}
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		a.stopRelay = cancel
		go func() {
			_ = cqrs.Relay(fctx, a.events, feed, publisher,
				cqrs.WithRelayFrom(head),
				cqrs.WithRelayErrors(func(err error) {
					logger.WithError(err).Warn("event relay failed")
				}),
			)
		}()
	}
	a.bus = otel.WithEventBusTelemetry(a.bus)
	go func(errs <-chan error) {
		for err := range errs {
			logger.WithError(err).Error("event bus")
		}
	}(a.bus.Errors())

	a.commands = cqrs.NewCommandBus(cfg.CommandBuffer, cfg.CommandShards)

	var showOpts []show.Option
	var walletOpts []wallet.Option
	if cfg.SnapshotEvery > 0 {
		showOpts = append(showOpts, show.WithSnapshots(memory.NewSnapshotStore[*show.Show](), cfg.SnapshotEvery))
		walletOpts = append(walletOpts, wallet.WithSnapshots(memory.NewSnapshotStore[wallet.Wallet](), cfg.SnapshotEvery))
	}
	shows := show.Register(a.commands, a.events, logger.WithField("aggregate", "show"), showOpts...)
	wallets := wallet.Register(a.commands, a.events, logger.WithField("aggregate", "wallet"), walletOpts...)

	queries := cqrs.NewQueryBus()
	show.RegisterQueries(queries, shows, logger)
	wallet.RegisterQueries(queries, wallets, logger)

	deps := httpapi.Deps{
		Shows:   shows,
		Wallets: wallets,
		Queries: queries,
		Logger:  logger.WithField("component", "http"),
	}

	switch cfg.SagaMode {
	case "choreography":
		if _, err := choreography.Register(ctx, a.bus, choreography.Deps{
			Seats:    shows,
			Wallets:  wallets,
			Logger:   logger.WithField("component", "choreography"),
			Attempts: cfg.StepAttempts,
		}); err != nil {
			return nil, err
		}
		logger.Info("seat reservations run as a choreography")
	default:
		store, err := a.openSagaStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.orchestrator = reservation.NewOrchestrator(store, shows, wallets,
			reservation.WithLogger(logger.WithField("component", "orchestrator")),
			reservation.WithStepTimeout(cfg.StepTimeout),
			reservation.WithAttempts(cfg.StepAttempts),
		)
		reservation.RegisterQueries(queries, a.orchestrator, logger)
		deps.Reservations = a.orchestrator

		resumed, err := a.orchestrator.Resume(ctx)
		if err != nil {
			return nil, fmt.Errorf("resume seat reservations: %w", err)
		}
		logger.WithField("resumed", resumed).Info("seat reservations run as an orchestration")
	}

	a.http = httpapi.New(deps)
	return a, nil
}

// logHead returns the global version of the last stored event.
func logHead(ctx context.Context, store cqrs.EventStore) (uint64, error) {
	it, err := store.LoadFromAll(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("read event log: %w", err)
	}
	var head uint64
	for it.Next(ctx) {
		head = it.Value().GlobalVersion
	}
	if err := it.Err(); err != nil {
		return 0, fmt.Errorf("read event log: %w", err)
	}
	return head, nil
}

func (a *app) openSagaStore(ctx context.Context, cfg config.Config) (reservation.Store, error) {
	switch cfg.SagaStore {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return redisstore.New(rdb), nil
	case "postgres", "mysql":
		s, err := sqlstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return reservation.NewMemoryStore(), nil
	}
}

// shutdown stops taking requests and lets running sagas park.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	if err := a.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if a.orchestrator != nil {
		if err := a.orchestrator.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("orchestrator close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *app) close(logger *logrus.Entry) {
	if a.commands != nil {
		a.commands.Stop()
	}
	if a.stopRelay != nil {
		a.stopRelay()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			logger.WithError(err).Warn("close event bus")
		}
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			logger.WithError(err).Warn("close event store")
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.WithError(err).Warn("close saga store")
		}
	}
}
