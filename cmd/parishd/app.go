package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	"parishnet/internal/aggregation"
	aggmetrics "parishnet/internal/aggregation/metrics"
	consentstore "parishnet/internal/consent/store"
	hierarchystore "parishnet/internal/hierarchy/store"
	networkservice "parishnet/internal/network/service"
	"parishnet/internal/platform/config"
	"parishnet/internal/platform/httpserver"
	"parishnet/internal/platform/postgres"
	platformredis "parishnet/internal/platform/redis"
	querymetrics "parishnet/internal/query/metrics"
	queryservice "parishnet/internal/query/service"
	audit "parishnet/pkg/platform/audit"
	"parishnet/pkg/platform/audit/publishers/compliance"
	"parishnet/pkg/platform/audit/publishers/ops"
	"parishnet/pkg/platform/audit/store/failover"
	kafkastore "parishnet/pkg/platform/audit/store/kafka"
	"parishnet/pkg/platform/audit/store/memory"
	auditpostgres "parishnet/pkg/platform/audit/store/postgres"
	"parishnet/pkg/platform/circuit"
)

type entityStore interface {
	aggregation.EntityStore
	networkservice.EntityStore
	queryservice.EntityReader
}

type consentRegistry interface {
	aggregation.ConsentReader
	networkservice.ConsentRegistry
	queryservice.ConsentReader
}

// app holds every wired component of one process.
type app struct {
	logger   *slog.Logger
	entities entityStore
	consents consentRegistry
	locker   aggregation.Locker
	engine   *aggregation.Engine
	network  *networkservice.Service
	query    *queryservice.Service
	ops      *ops.Tracker
	health   map[string]httpserver.HealthCheck

	closers []func() error
}

// buildApp opens the configured backends and wires the services.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (a *app, err error) {
	a = &app{logger: logger, health: map[string]httpserver.HealthCheck{}}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var db *sql.DB
	if cfg.NeedsPostgres() || cfg.Postgres.URL != "" {
		db, err = postgres.Open(ctx, cfg.Postgres.URL, postgres.PoolConfig{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.health["postgres"] = db.PingContext
		if cfg.Postgres.AutoMigrate {
			applied, err := postgres.ApplyMigrations(ctx, db)
			if err != nil {
				return nil, err
			}
			if len(applied) > 0 {
				logger.InfoContext(ctx, "migrations applied", "versions", applied)
			}
		}
	}

	if err := a.openEntities(ctx, cfg, db); err != nil {
		return nil, err
	}
	if err := a.openConsents(ctx, cfg, db); err != nil {
		return nil, err
	}
	auditStore, err := a.openAudit(ctx, cfg, db, reg)
	if err != nil {
		return nil, err
	}

	if cfg.Store.Backend == config.StorePostgres {
		a.locker = hierarchystore.NewPostgresLocker(db)
	} else {
		a.locker = aggregation.NewShardedLocker(cfg.Locking.Timeout)
	}

	publisher := compliance.New(auditStore,
		compliance.WithLogger(logger),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)
	a.ops = ops.New(auditStore,
		ops.WithLogger(logger),
		ops.WithMetrics(ops.NewMetrics(reg)),
		ops.WithBufferSize(cfg.Audit.OpsBuffer),
	)
	// Close drains the ops queue, so it must run before the stores close.
	a.closers = append([]func() error{a.ops.Close}, a.closers...)

	a.engine = aggregation.New(a.entities, a.consents,
		aggregation.WithLogger(logger),
		aggregation.WithMetrics(aggmetrics.New(reg)),
		aggregation.WithLocker(a.locker),
	)
	a.network = networkservice.New(a.entities, a.consents, a.engine,
		networkservice.WithLogger(logger),
		networkservice.WithComplianceAuditor(publisher),
		networkservice.WithOpsAuditor(a.ops),
		networkservice.WithLocker(a.locker),
	)
	a.query = queryservice.New(a.entities, a.consents,
		queryservice.WithLogger(logger),
		queryservice.WithMetrics(querymetrics.New(reg)),
	)
	return a, nil
}

func (a *app) openEntities(ctx context.Context, cfg *config.Config, db *sql.DB) error {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		a.entities = hierarchystore.NewInMemory()
	case config.StoreSQLite:
		store, err := hierarchystore.NewSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		a.entities = store
	case config.StorePostgres:
		a.entities = hierarchystore.NewPostgres(db)
	case config.StoreS3:
		store, err := hierarchystore.NewS3(ctx, hierarchystore.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
		if err != nil {
			return err
		}
		a.entities = store
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return nil
}

func (a *app) openConsents(ctx context.Context, cfg *config.Config, db *sql.DB) error {
	switch cfg.Consent.Backend {
	case config.ConsentMemory:
		a.consents = consentstore.NewInMemory()
	case config.ConsentRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		a.health["redis"] = client.Health
		a.consents = consentstore.NewRedis(client.Client)
	case config.ConsentPostgres:
		a.consents = consentstore.NewPostgres(db)
	default:
		return fmt.Errorf("unknown consent backend %q", cfg.Consent.Backend)
	}
	return nil
}

// openAudit prefers Kafka. With a database configured as well, events divert
// to Postgres while the broker circuit is open.
func (a *app) openAudit(ctx context.Context, cfg *config.Config, db *sql.DB, reg prometheus.Registerer) (audit.Store, error) {
	if len(cfg.Audit.KafkaBrokers) > 0 {
		client, err := kafkastore.NewClient(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaClientID)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			client.Close()
			return nil
		})
		a.health["kafka"] = func(ctx context.Context) error { return pingKafka(ctx, client) }
		if err := kafkastore.EnsureTopic(ctx, client, cfg.Audit.KafkaTopic, 3, 1); err != nil {
			return nil, err
		}
		primary := kafkastore.New(client, cfg.Audit.KafkaTopic)
		if db == nil {
			return primary, nil
		}
		return failover.New(primary, auditpostgres.New(db),
			failover.WithLogger(a.logger),
			failover.WithBreaker(circuit.New("audit-kafka",
				circuit.WithFailureThreshold(cfg.Audit.FailoverThreshold),
			)),
			failover.WithProbeInterval(cfg.Audit.FailoverProbe),
			failover.WithRegisterer(reg),
		), nil
	}
	if db != nil {
		return auditpostgres.New(db), nil
	}
	a.logger.WarnContext(ctx, "audit events are kept in memory only")
	return memory.NewInMemoryStore(), nil
}

func pingKafka(ctx context.Context, client *kgo.Client) error {
	return client.Ping(ctx)
}

// Close releases resources in order: queued audit events first, then stores.
func (a *app) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
