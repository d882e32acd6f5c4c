package main

import (
	"context"
	"fmt"
	"io"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/config"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/infra/kafka/producer"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/model"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/processor"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/registry"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/repository/artifact"
	filesvc "github.com/Lalitha-balijepalli/FileFlexor/internal/service/file"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/storage"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/storage/file"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/storage/object"
)

// area is what both storage backends provide for one area.
type area interface {
	Save(ctx context.Context, name string, src io.Reader) (int64, error)
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	Stat(ctx context.Context, name string) (storage.Info, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]storage.Info, error)
}

type publisher interface {
	Publish(ctx context.Context, e model.Event) error
}

// app holds the components shared by the serve and sweep commands.
type app struct {
	cfg      *config.Config
	strategy retry.Strategy
	registry *registry.Registry
	service  *filesvc.Service
	db       *dbpg.DB
	producer *producer.Producer
}

func retryStrategy(cfg *config.Config) retry.Strategy {
	return retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, strategy: retryStrategy(cfg)}

	intake, results, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	store, err := a.openRegistryStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.registry = registry.New(store, nil)
	a.registry.Track(storage.AreaIntake, intake, cfg.Cleanup.UploadTTL)
	a.registry.Track(storage.AreaResults, results, cfg.Cleanup.ResultTTL)

	// Left as a nil interface when events are disabled.
	var pub publisher
	if cfg.Kafka.Enabled {
		a.producer = producer.New(&cfg.Kafka, a.strategy)
		pub = a.producer
		zlog.Logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing file events")
	}

	a.service = filesvc.NewService(
		intake, results,
		processor.New(intake, results),
		a.registry,
		pub,
		cfg.Upload,
		cfg.Cleanup,
	)
	a.registry.OnExpire(a.service.NotifyExpired)

	return a, nil
}

func (a *app) openStorage(ctx context.Context) (area, area, error) {
	switch a.cfg.Storage.Backend {
	case "minio":
		m := a.cfg.Storage.MinIO
		client, err := object.NewClient(ctx, m.Endpoint, m.AccessKey, m.SecretKey, m.BucketName, m.UseSSL, a.strategy)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to storage: %w", err)
		}
		zlog.Logger.Info().Str("endpoint", m.Endpoint).Str("bucket", m.BucketName).Msg("using object storage")

		return client.Area(storage.AreaIntake), client.Area(storage.AreaResults), nil
	default:
		intake, err := file.NewStorage(a.cfg.Storage.IntakeDir)
		if err != nil {
			return nil, nil, err
		}
		results, err := file.NewStorage(a.cfg.Storage.ResultsDir)
		if err != nil {
			return nil, nil, err
		}
		zlog.Logger.Info().Str("intake", intake.Dir()).Str("results", results.Dir()).Msg("using local storage")

		return intake, results, nil
	}
}

func (a *app) openRegistryStore(ctx context.Context) (registry.Store, error) {
	if a.cfg.Registry.Backend != "postgres" {
		return registry.NewMemoryStore(), nil
	}

	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(a.cfg.Database.Slaves))
	for _, s := range a.cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(a.cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db

	repo := artifact.NewRepository(db)
	err = retry.Do(func() error {
		return repo.EnsureSchema(ctx)
	}, a.strategy)
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// close releases the database and Kafka clients.
func (a *app) close() {
	if a.db != nil {
		if err := a.db.Master.Close(); err != nil {
			zlog.Logger.Printf("failed to close master DB: %v", err)
		}
		for i, s := range a.db.Slaves {
			if err := s.Close(); err != nil {
				zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
			}
		}
	}

	if a.producer != nil {
		if err := a.producer.Client.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
		}
	}
}
