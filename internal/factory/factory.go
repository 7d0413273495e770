package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"payshield-service/internal/audit"
	"payshield-service/internal/bucketing"
	"payshield-service/internal/client"
	"payshield-service/internal/config"
	"payshield-service/internal/encryption"
	"payshield-service/internal/metrics"
	"payshield-service/internal/repository/postgres"
	redisrepo "payshield-service/internal/repository/redis"
	"payshield-service/internal/service"
	"payshield-service/internal/storage"
	"payshield-service/internal/tls"
	"payshield-service/internal/util"
)

const initTimeout = 30 * time.Second

// Factory owns every connection and the storage core built on them.
// Postgres is mandatory; the cache may start degraded; audit sinks are optional.
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	postgresClient   *client.PostgresClient
	redisClient      *client.RedisClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Managers
	encryptionManager *encryption.EncryptionManager
	bucketingManager  *bucketing.BucketingManager

	// Storage core
	store       *postgres.Store
	cacheState  *storage.CacheState
	oauthRepo   *storage.OAuthTokenRepository
	vendorRepo  *storage.VendorProfileRepository
	attemptRepo *storage.VerificationAttemptRepository
	maintenance *storage.MaintenanceScheduler
	health      *storage.HealthReporter

	serviceFactory *service.ServiceFactory

	bgCancel  context.CancelFunc
	bgDone    sync.WaitGroup
	closeOnce sync.Once
}

// NewFactory connects to every configured dependency and assembles the
// storage core. cfg may be nil, in which case the environment is loaded.
func NewFactory(ctx context.Context, cfg *config.Config) (*Factory, error) {
	if cfg == nil {
		cfg = config.LoadConfig()
	}
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := metrics.Register(nil); err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	f := &Factory{config: cfg}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewTLSManager(cfg.Server, cfg.Environment)
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	if err := f.initializeClients(initCtx); err != nil {
		f.closeClients()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	if err := f.initializeStorage(initCtx); err != nil {
		f.closeClients()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("cache_driver", cfg.Redis.Driver),
		util.Bool("cache_degraded", f.cacheState.Degraded()),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)
	return f, nil
}

// initializeClients opens Postgres (fatal on failure), Redis (degraded start
// allowed) and whichever audit backends are enabled (skipped on failure).
func (f *Factory) initializeClients(ctx context.Context) error {
	pg, err := client.NewPostgresClient(ctx, f.config, util.Get())
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	f.postgresClient = pg

	if f.config.Redis.Driver == "redis" {
		rc, err := client.NewRedisClient(f.config, util.Get())
		if rc == nil {
			return fmt.Errorf("redis: %w", err)
		}
		f.redisClient = rc
		if err != nil {
			util.Warn("Redis unreachable at startup, starting with the cache degraded", util.ErrorField(err))
		}
	}

	if f.config.KMS.Enabled {
		kmsClient, err := encryption.NewKMSClient(ctx, f.config)
		if err != nil {
			return fmt.Errorf("kms: %w", err)
		}
		f.encryptionManager = encryption.NewEncryptionManager(f.config, kmsClient)
	} else {
		util.Warn("KMS disabled, oauth tokens are stored unsealed")
	}

	f.initializeAuditClients(ctx)
	return nil
}

func (f *Factory) initializeAuditClients(ctx context.Context) {
	if f.config.Kafka.Enabled {
		if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
			util.Warn("Kafka producer initialization failed, proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	if f.config.Elasticsearch.Enabled {
		if es, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
			util.Warn("Elasticsearch initialization failed, proceeding without it", util.ErrorField(err))
		} else {
			f.esClient = es
		}
	}

	if f.config.Clickhouse.Enabled {
		if ch, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
			util.Warn("ClickHouse initialization failed, proceeding without it", util.ErrorField(err))
		} else if err := ch.HealthCheck(ctx); err != nil {
			util.Warn("ClickHouse unhealthy at startup, proceeding without it", util.ErrorField(err))
			_ = ch.Close()
		} else {
			f.clickhouseClient = ch
		}
	}
}

func (f *Factory) initializeStorage(ctx context.Context) error {
	cfg := f.config

	f.store = postgres.NewStore(f.postgresClient)
	if cfg.Postgres.AutoMigrate {
		if err := f.store.Migrate(ctx, postgres.Migrations()); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}

	var cache storage.RecordCache
	switch {
	case f.redisClient != nil:
		cache = redisrepo.NewRecordCache(f.redisClient)
	case cfg.Redis.Driver == "memory":
		cache = redisrepo.NewMemoryCache(cfg.Storage.VerificationTTL)
	}
	f.cacheState = storage.NewCacheState(cache, cfg.Redis.OperationTimeout)
	if cache != nil {
		if err := f.cacheState.Probe(ctx); err != nil {
			util.Warn("cache probe failed at startup", util.ErrorField(err))
		}
	}

	f.bucketingManager = bucketing.NewBucketingManager(cfg)

	var sealer storage.TokenSealer
	if f.encryptionManager != nil {
		sealer = f.encryptionManager
	}
	f.oauthRepo = storage.NewOAuthTokenRepository(f.store, f.cacheState, cfg.Storage.OAuthTTL, sealer)
	f.vendorRepo = storage.NewVendorProfileRepository(f.store, f.cacheState, cfg.Storage.VendorTTL)
	f.attemptRepo = storage.NewVerificationAttemptRepository(f.store, f.cacheState,
		cfg.Storage.VerificationTTL, cfg.Storage.HistoryLimit, f.observers(ctx)...)

	f.maintenance = storage.NewMaintenanceScheduler(f.oauthRepo, cfg.Storage.SweepInterval)
	f.health = storage.NewHealthReporter(f.cacheState, f.store)
	f.serviceFactory = service.NewServiceFactory(f.vendorRepo, f.attemptRepo, f.oauthRepo)
	return nil
}

func (f *Factory) observers(ctx context.Context) []storage.AttemptObserver {
	var out []storage.AttemptObserver
	if f.kafkaProducer != nil {
		out = append(out, audit.NewKafkaSink(f.kafkaProducer, f.bucketingManager))
	}
	if f.clickhouseClient != nil {
		sink := audit.NewClickHouseSink(f.clickhouseClient, f.bucketingManager)
		if err := sink.EnsureTable(ctx); err != nil {
			util.Warn("ClickHouse audit table unavailable, skipping sink", util.ErrorField(err))
		} else {
			out = append(out, sink)
		}
	}
	if f.esClient != nil {
		out = append(out, audit.NewElasticsearchSink(f.esClient, f.bucketingManager))
	}
	for _, o := range out {
		util.Info("verification audit sink enabled", util.String("sink", o.Name()))
	}
	return out
}

// Start launches the cache monitor and the maintenance scheduler.
// Both stop on Close.
func (f *Factory) Start(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(ctx)
	f.bgCancel = cancel

	f.bgDone.Add(2)
	go func() {
		defer f.bgDone.Done()
		f.cacheState.Monitor(bgCtx, f.config.Redis.ProbeInterval)
	}()
	go func() {
		defer f.bgDone.Done()
		f.maintenance.Run(bgCtx)
	}()
}

// HealthCheck probes every connection the factory holds, keyed by name.
// Only failures appear in the map.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if err := f.postgresClient.HealthCheck(ctx); err != nil {
		healthErrors["postgres"] = err
	}
	if err := f.cacheState.Probe(ctx); err != nil {
		healthErrors["cache"] = err
	}
	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}
	if f.esClient != nil {
		if err := f.esClient.HealthCheck(ctx); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}
	return healthErrors
}

// Close stops background work, waits for pending cache writes and audit
// notifications, then closes every client. It is safe to call more than once.
func (f *Factory) Close() error {
	var errs []error
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		if f.bgCancel != nil {
			f.bgCancel()
		}
		f.bgDone.Wait()
		if f.attemptRepo != nil {
			f.attemptRepo.Wait()
		}
		if f.cacheState != nil {
			f.cacheState.Wait()
		}

		errs = f.closeClients()
		util.Info("Factory shutdown completed")
		util.Sync()
	})
	return errors.Join(errs...)
}

func (f *Factory) closeClients() []error {
	var errs []error

	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	if f.esClient != nil {
		f.esClient.Close()
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	if f.redisClient != nil {
		if err := f.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if f.postgresClient != nil {
		f.postgresClient.Close()
	}
	if f.encryptionManager != nil {
		f.encryptionManager.ClearCache()
	}
	return errs
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	return f.serviceFactory
}

func (f *Factory) Health() *storage.HealthReporter {
	return f.health
}

func (f *Factory) Maintenance() *storage.MaintenanceScheduler {
	return f.maintenance
}

func (f *Factory) Store() *postgres.Store {
	return f.store
}

func (f *Factory) OAuthTokens() *storage.OAuthTokenRepository {
	return f.oauthRepo
}

func (f *Factory) VendorProfiles() *storage.VendorProfileRepository {
	return f.vendorRepo
}

func (f *Factory) VerificationAttempts() *storage.VerificationAttemptRepository {
	return f.attemptRepo
}
