package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tournevent/cargoconnect/internal/config"
	"github.com/tournevent/cargoconnect/internal/events"
	"github.com/tournevent/cargoconnect/internal/shipment"
	"github.com/tournevent/cargoconnect/internal/storage/filesystem"
	"github.com/tournevent/cargoconnect/internal/storage/memory"
	"github.com/tournevent/cargoconnect/internal/storage/mongodb"
	"github.com/tournevent/cargoconnect/internal/telemetry"
	"github.com/tournevent/cargoconnect/pkg/cargoconnect"
	"github.com/tournevent/cargoconnect/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// app holds the wired service and everything that must be closed with it.
type app struct {
	cfg      *config.Config
	logger   *otelzap.Logger
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	service  *shipment.Service

	closers []func(context.Context) error
}

type backends struct {
	orders shipper.OrderSource
	types  shipper.PackageTypeResolver
	status shipper.StatusSink
	labels shipper.BlobStore
}

func newApp(ctx context.Context, envFile string) (*app, error) {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return nil, err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func(context.Context) error {
		_ = logger.Sync()
		return nil
	})

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		a.closers = append(a.closers, tracerShutdown)
	}
	tracer := otel.Tracer(cfg.ServiceName)

	a.registry, a.metrics = initMetrics()

	b, err := a.initBackends(ctx)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}

	publisher := a.initPublisher()
	carrier := initCarrier(cfg, logger, tracer, a.metrics)

	a.service = shipment.New(cfg.Shipment(), shipment.Deps{
		Carrier:      carrier,
		Orders:       b.orders,
		PackageTypes: b.types,
		Labels:       b.labels,
		Status:       b.status,
		Events:       publisher,
		Logger:       logger,
		Tracer:       tracer,
		Metrics:      a.metrics,
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
	a.closers = nil
}

func loadConfig(envFile string) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
	return shutdown, err
}

func initMetrics() (*prometheus.Registry, *telemetry.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, telemetry.NewMetrics(reg)
}

func initCarrier(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer, metrics cargoconnect.Metrics) shipper.Carrier {
	return cargoconnect.New(cfg.CargoConnect(), logger, tracer).WithMetrics(metrics)
}

func (a *app) initBackends(ctx context.Context) (*backends, error) {
	b := &backends{}
	var db *mongo.Database

	switch a.cfg.StorageBackend {
	case config.StorageMongoDB:
		client, database, err := mongodb.Connect(ctx, a.cfg.MongoURI, a.cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Disconnect)
		db = database

		orders, err := mongodb.NewOrderRepository(ctx, db)
		if err != nil {
			return nil, err
		}
		status, err := mongodb.NewStatusStore(ctx, db)
		if err != nil {
			return nil, err
		}
		b.orders, b.types, b.status = orders, orders, status
	default:
		a.logger.Warn("Using in-memory order and status storage; data is lost on exit")
		orders := memory.NewOrderStore()
		b.orders, b.types, b.status = orders, orders, memory.NewStatusStore()
	}

	switch a.cfg.LabelStore {
	case config.LabelStoreGridFS:
		bucket, err := mongodb.NewLabelBucket(db, a.cfg.LabelBucket)
		if err != nil {
			return nil, err
		}
		b.labels = bucket
	case config.LabelStoreFilesystem:
		store, err := filesystem.NewBlobStore(a.cfg.LabelDir)
		if err != nil {
			return nil, err
		}
		b.labels = store
	default:
		b.labels = memory.NewBlobStore()
	}
	return b, nil
}

func (a *app) initPublisher() events.Publisher {
	kafkaCfg, ok := a.cfg.Kafka()
	if !ok {
		return events.Nop{}
	}
	p := events.NewKafkaPublisher(kafkaCfg)
	a.closers = append(a.closers, func(context.Context) error { return p.Close() })
	a.logger.Info("Publishing shipment events to Kafka",
		zap.Strings("brokers", kafkaCfg.Brokers),
		zap.String("topic", kafkaCfg.Topic),
	)
	return p
}
