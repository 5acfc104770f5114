package cmd

import (
	"context"
	"fmt"
	"time"

	"parimutuel/application"
	"parimutuel/config"
	"parimutuel/database"
	"parimutuel/domain/interfaces"
	"parimutuel/domain/services"
	"parimutuel/infrastructure"
	"parimutuel/infrastructure/observability"
	"parimutuel/logging"
	"parimutuel/repository"

	log "github.com/sirupsen/logrus"
)

const serviceName = "parimutuel"

// eventTransport is the publisher the engine writes to plus the subscriber
// the in-process handlers attach to
type eventTransport interface {
	interfaces.EventPublisher
	interfaces.EventSubscriber
}

// Run starts the engine and its workers and blocks until ctx is cancelled
func Run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.WithField("environment", cfg.Environment).Info("Starting parimutuel engine...")

	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	log.Info("Applying database migrations...")
	if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ledger := repository.NewAccountLedgerRepository(db)
	records := repository.NewSettlementRecordRepository(db)

	transport, durable, closeTransport, err := newEventTransport(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer closeTransport()

	recorder := application.NewSettlementRecorder(records)
	if err := application.RegisterApplicationSubscriptions(transport, durable, recorder, metrics.HandleEvent); err != nil {
		return err
	}

	clock := infrastructure.SystemClock{}
	engine := services.NewPoolService(ledger, transport, clock, infrastructure.UUIDGenerator{}, services.PoolServiceConfig{
		LedgerCallTimeout: cfg.LedgerCallTimeout,
		MultiplierPlaces:  cfg.MultiplierPlaces,
	})

	lockWatcher := application.NewLockWatchWorker(engine, transport, clock)
	stopLockWatcher := lockWatcher.Start(ctx, cfg.LockWatchInterval)

	log.WithFields(log.Fields{
		"ledgerCallTimeout": cfg.LedgerCallTimeout,
		"lockWatchInterval": cfg.LockWatchInterval,
		"multiplierPlaces":  cfg.MultiplierPlaces,
	}).Info("Parimutuel engine is running")

	<-ctx.Done()

	log.Info("Shutting down parimutuel engine...")
	stopLockWatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if bus, ok := transport.(*infrastructure.EventBus); ok {
		done := make(chan struct{})
		go func() {
			bus.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Warn("Shutdown timeout exceeded while draining event handlers")
		}
	}

	if err := metrics.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics provider")
	}

	log.Info("Shutdown completed")
	return nil
}

// Reconcile retries every ledger credit recorded as failed, once
func Reconcile(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	reconciler := application.NewCreditReconciler(
		repository.NewSettlementRecordRepository(db),
		repository.NewAccountLedgerRepository(db),
	)

	report, err := reconciler.Run(ctx)
	if err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d credits still failing: %v", len(report.Failed), report.Failed)
	}
	return nil
}

// Migrate runs a migrate subcommand: up, down [steps] or status
func Migrate(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parimutuel migrate [up|down|status] [args...]")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	url := cfg.GetDatabaseURL()

	switch args[0] {
	case "up":
		return database.MigrateUp(url)
	case "down":
		steps := "1"
		if len(args) > 1 {
			steps = args[1]
		}
		return database.MigrateDown(url, steps)
	case "status":
		return database.MigrateStatus(url)
	default:
		return fmt.Errorf("unknown migration command: %s", args[0])
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.Environment); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newEventTransport connects to NATS when servers are configured and falls
// back to the in-process bus otherwise. The durable subscriber is nil for
// the in-process bus.
func newEventTransport(ctx context.Context, cfg *config.Config, metrics *observability.MetricsProvider) (eventTransport, interfaces.DurableEventSubscriber, func(), error) {
	if cfg.NATSServers == "" {
		log.Info("No NATS servers configured, events stay in-process")
		return infrastructure.NewEventBus(), nil, func() {}, nil
	}

	client := infrastructure.NewNATSClient(cfg.NATSServers, serviceName)
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, nil, nil, err
	}

	mapper := infrastructure.NewEventSubjectMapper()
	publisher := infrastructure.NewNATSEventPublisher(
		observability.NewInstrumentedPublisher(client, metrics),
		mapper,
		serviceName,
	)
	if err := publisher.EnsurePoolEventStream(client); err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}

	return publisher, infrastructure.NewNATSEventSubscriber(client, mapper), func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}, nil
}
