package di

import (
	"fmt"

	drepo "CoinPull/internal/domain/repository"
	"CoinPull/internal/handler/api"
	internalrepo "CoinPull/internal/repository"
	"CoinPull/internal/service/coingecko"
	"CoinPull/internal/service/dashboard"
	"CoinPull/internal/usecase"
	pkgcache "CoinPull/pkg/cache"
	pkgch "CoinPull/pkg/clickhouse"
	"CoinPull/pkg/config"
	xhttp "CoinPull/pkg/http"
	pkgkafka "CoinPull/pkg/kafka"
	applogger "CoinPull/pkg/logger"
	"CoinPull/pkg/metrics"
	"CoinPull/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) drepo.Metrics {
	return metrics.New(reg)
}

// ProvidePriceStore creates the store selected by store.type. The ClickHouse connection is
// opened lazily; Initialize verifies it and creates the table.
func ProvidePriceStore(cfg *config.Config, l *applogger.Logger) (drepo.PriceStore, error) {
	if cfg.Store.Type == "memory" {
		return internalrepo.NewMemoryStore(nil), nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return internalrepo.NewClickHouseStore(client, cfg.ClickHouse.Table, l), nil
}

// ProvidePublisher mirrors inserted points to Kafka when brokers are configured.
func ProvidePublisher(cfg *config.Config, reg *prometheus.Registry) (drepo.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return internalrepo.NoopPublisher{}, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoTopicCreation(cfg.Kafka.AutoCreate),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideCache creates the Redis cache when enabled, otherwise an in-process one.
// It backs the seed lock and the last seed summary.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideFetcher creates the CoinGecko client.
func ProvideFetcher(cfg *config.Config, l *applogger.Logger) drepo.PriceFetcher {
	return coingecko.NewClient(coingecko.Config{
		APIKey:          cfg.CoinGecko.APIKey,
		ProBaseURL:      cfg.CoinGecko.ProBaseURL,
		PublicBaseURL:   cfg.CoinGecko.PublicBaseURL,
		Timeout:         cfg.CoinGecko.Timeout,
		RateLimitPerMin: cfg.CoinGecko.RateLimitPerMin,
		MaxRetries:      cfg.CoinGecko.MaxRetries,
		InitialBackoff:  cfg.CoinGecko.InitialBackoff,
		MaxBackoff:      cfg.CoinGecko.MaxBackoff,
	}, l)
}

func ProvideDashboard(l *applogger.Logger) *dashboard.Dashboard {
	return dashboard.New(dashboard.NewHub(l), l)
}

func ProvideIngestion(
	fetcher drepo.PriceFetcher,
	store drepo.PriceStore,
	pub drepo.Publisher,
	m drepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Ingestion {
	return usecase.NewIngestion(fetcher, store, pub, m, l, usecase.IngestionConfig{
		HistoryDays: cfg.Ingest.HistoryDays,
		Concurrency: cfg.Ingest.Concurrency,
	})
}

func ProvideSeedRunner(ing *usecase.Ingestion, c pkgcache.Service, dash *dashboard.Dashboard, l *applogger.Logger, cfg *config.Config) *usecase.SeedRunner {
	return usecase.NewSeedRunner(ing, c, c, dash, l, cfg.Ingest.LockTTL)
}

func ProvideLivePoller(
	fetcher drepo.PriceFetcher,
	store drepo.PriceStore,
	dash *dashboard.Dashboard,
	pub drepo.Publisher,
	m drepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.LivePoller {
	return usecase.NewLivePoller(fetcher, store, usecase.NewMovers(), dash, pub, m, l, usecase.LiveConfig{
		Assets:        cfg.Ingest.Assets,
		QuoteCurrency: cfg.Ingest.QuoteCurrency,
		Interval:      cfg.Live.Interval,
		AssetsPerTick: cfg.Live.AssetsPerTick,
		SeriesLimit:   cfg.Live.SeriesLimit,
		Window:        cfg.Analytics.Window,
		TopLimit:      cfg.Analytics.TopLimit,
	})
}

func ProvideHandler(
	l *applogger.Logger,
	store drepo.PriceStore,
	seeds *usecase.SeedRunner,
	live *usecase.LivePoller,
	dash *dashboard.Dashboard,
	cfg *config.Config,
) *api.PricesEchoHandler {
	return api.NewPricesEchoHandler(l, store, usecase.NewMovers(), seeds, live, dash, api.HandlerConfig{
		Assets:     cfg.Ingest.Assets,
		Quote:      cfg.Ingest.QuoteCurrency,
		TargetRows: cfg.Ingest.TargetRows,
		ClearFirst: cfg.Ingest.ClearFirst,
		Window:     cfg.Analytics.Window,
	})
}

func ProvideHTTPServer(h *api.PricesEchoHandler, l *applogger.Logger, reg *prometheus.Registry, cfg *config.Config) *xhttp.Server {
	return xhttp.NewServer(h, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithRegistry(reg, reg),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	store drepo.PriceStore,
	pub drepo.Publisher,
	c pkgcache.Service,
	dash *dashboard.Dashboard,
	seeds *usecase.SeedRunner,
	live *usecase.LivePoller,
	srv *xhttp.Server,
) *server.App {
	return server.New(cfg, l, store, pub, c, dash, seeds, live, srv)
}
