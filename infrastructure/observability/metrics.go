package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parimutuel/config"
	"parimutuel/domain/events"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider owns the meter provider and the engine's instruments
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	poolsCreatedCounter   metric.Int64Counter
	poolsOpenGauge        metric.Int64UpDownCounter
	poolsLockedCounter    metric.Int64Counter
	poolsSettledCounter   metric.Int64Counter
	poolsCancelledCounter metric.Int64Counter
	wagersPlacedCounter   metric.Int64Counter
	wagersStakedCounter   metric.Int64Counter
	payoutsCounter        metric.Int64Counter
	houseTakeCounter      metric.Int64Counter
	failedCreditsCounter  metric.Int64Counter
	natsPublishedCounter  metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize builds the exporter selected by the configuration
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	var exporter sdkmetric.Exporter
	var err error
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(dialCtx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
	)
	if err := mp.start(reader); err != nil {
		return err
	}

	otel.SetMeterProvider(mp.meterProvider)
	log.Info("Metrics provider initialized successfully")
	return nil
}

// InitializeWithReader wires the provider to reader instead of an exporter
func (mp *MetricsProvider) InitializeWithReader(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.start(reader)
}

// start requires mp.mu held
func (mp *MetricsProvider) start(reader sdkmetric.Reader) error {
	// Schemaless so the merge keeps whatever schema the SDK default carries
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	mp.meter = mp.meterProvider.Meter("parimutuel")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	return nil
}

func (mp *MetricsProvider) createInstruments() error {
	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&mp.poolsCreatedCounter, PoolsCreatedTotal, "Total number of pools opened", "1"},
		{&mp.poolsLockedCounter, PoolsLockedTotal, "Total number of pools observed past their lock time", "1"},
		{&mp.poolsSettledCounter, PoolsSettledTotal, "Total number of pools settled", "1"},
		{&mp.poolsCancelledCounter, PoolsCancelledTotal, "Total number of pools cancelled", "1"},
		{&mp.wagersPlacedCounter, WagersPlacedTotal, "Total number of accepted wagers", "1"},
		{&mp.wagersStakedCounter, WagersStakedTotal, "Sum of accepted principals in minor units", "{minor_unit}"},
		{&mp.payoutsCounter, PayoutsTotal, "Sum of payouts and refunds in minor units", "{minor_unit}"},
		{&mp.houseTakeCounter, HouseTakeTotal, "Sum of house takes in minor units", "{minor_unit}"},
		{&mp.failedCreditsCounter, FailedCreditTotal, "Total number of ledger credits that failed during settlement", "1"},
		{&mp.natsPublishedCounter, NATSMessagesPublishedTotal, "Total number of NATS messages published", "1"},
	}

	for _, c := range counters {
		counter, err := mp.meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.target = counter
	}

	var err error
	mp.poolsOpenGauge, err = mp.meter.Int64UpDownCounter(
		PoolsOpen,
		metric.WithDescription("Current number of pools that are neither settled nor cancelled"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create open pools gauge: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the meter provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// HandleEvent records the metrics carried by a pool event. It is registered
// as a local handler for every event type.
func (mp *MetricsProvider) HandleEvent(ctx context.Context, event events.Event) error {
	if !mp.isEnabled() {
		return nil
	}

	switch e := event.(type) {
	case events.PoolCreatedEvent:
		mp.poolsCreatedCounter.Add(ctx, 1)
		mp.poolsOpenGauge.Add(ctx, 1)

	case events.WagerPlacedEvent:
		attrs := metric.WithAttributes(attribute.String(LabelOutcome, e.OutcomeID))
		mp.wagersPlacedCounter.Add(ctx, 1, attrs)
		mp.wagersStakedCounter.Add(ctx, int64(e.Principal), attrs)

	case events.PoolLockedEvent:
		mp.poolsLockedCounter.Add(ctx, 1)

	case events.PoolSettledEvent:
		if e.Result == nil {
			return nil
		}
		mp.poolsOpenGauge.Add(ctx, -1)
		mp.poolsSettledCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.Bool(LabelNoWinners, e.Result.NoWinners)))
		mp.payoutsCounter.Add(ctx, int64(e.Result.TotalPaid),
			metric.WithAttributes(attribute.String(LabelKind, "payout")))
		mp.houseTakeCounter.Add(ctx, int64(e.Result.HouseTake))
		mp.recordFailedCredits(ctx, "payout", len(e.Result.FailedCredits))

	case events.PoolCancelledEvent:
		if e.Result == nil {
			return nil
		}
		mp.poolsOpenGauge.Add(ctx, -1)
		mp.poolsCancelledCounter.Add(ctx, 1)
		mp.payoutsCounter.Add(ctx, int64(e.Result.TotalRefunded),
			metric.WithAttributes(attribute.String(LabelKind, "refund")))
		mp.recordFailedCredits(ctx, "refund", len(e.Result.FailedCredits))
	}

	return nil
}

func (mp *MetricsProvider) recordFailedCredits(ctx context.Context, kind string, n int) {
	if n == 0 {
		return
	}
	mp.failedCreditsCounter.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String(LabelKind, kind)))
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(subject string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelSubject, subject),
		),
	)
}

// isEnabled reports whether instruments exist
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meterProvider != nil
}
