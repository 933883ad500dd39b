package di

import (
	"fmt"

	"github.com/finbridge/finbridge/internal/domain/repository"
	"github.com/finbridge/finbridge/internal/handler/api"
	internalrepo "github.com/finbridge/finbridge/internal/repository"
	"github.com/finbridge/finbridge/internal/service/edgar"
	"github.com/finbridge/finbridge/internal/service/finnhub"
	"github.com/finbridge/finbridge/internal/service/fmp"
	"github.com/finbridge/finbridge/internal/usecase"
	"github.com/finbridge/finbridge/pkg/cache"
	pkgch "github.com/finbridge/finbridge/pkg/clickhouse"
	"github.com/finbridge/finbridge/pkg/config"
	xhttp "github.com/finbridge/finbridge/pkg/http"
	pkgkafka "github.com/finbridge/finbridge/pkg/kafka"
	applogger "github.com/finbridge/finbridge/pkg/logger"
	"github.com/finbridge/finbridge/pkg/metrics"
	"github.com/finbridge/finbridge/pkg/server"
)

// ProvideLogger creates the process logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRegistry builds the registry with every enabled provider.
// Construction errors (missing credentials) surface here, at startup.
func ProvideRegistry(cfg *config.Config, log *applogger.Logger) (*usecase.ProviderRegistry, error) {
	reg := usecase.NewProviderRegistry(log)

	if cfg.Providers.Edgar.Enabled {
		p, err := edgar.New(edgar.Options{
			UserAgent: cfg.Providers.Edgar.UserAgent,
			BaseURL:   cfg.Providers.Edgar.BaseURL,
			Timeout:   cfg.Providers.Edgar.Timeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("edgar provider: %w", err)
		}
		if err := reg.Register(p, cfg.Providers.Edgar.Primary); err != nil {
			return nil, err
		}
	}

	if cfg.Providers.FMP.Enabled {
		p, err := fmp.New(fmp.Options{
			APIKey:  cfg.Providers.FMP.APIKey,
			BaseURL: cfg.Providers.FMP.BaseURL,
			Timeout: cfg.Providers.FMP.Timeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("fmp provider: %w", err)
		}
		if err := reg.Register(p, cfg.Providers.FMP.Primary); err != nil {
			return nil, err
		}
	}

	if cfg.Providers.Finnhub.Enabled {
		p, err := finnhub.New(finnhub.Options{
			APIKey:       cfg.Providers.Finnhub.APIKey,
			BaseURL:      cfg.Providers.Finnhub.BaseURL,
			WebSocketURL: cfg.Providers.Finnhub.WebSocketURL,
			Timeout:      cfg.Providers.Finnhub.Timeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("finnhub provider: %w", err)
		}
		if err := reg.Register(p, cfg.Providers.Finnhub.Primary); err != nil {
			return nil, err
		}
	}

	if reg.Count() == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}
	return reg, nil
}

// ProvideComposite builds the router from the registry with the
// configured priorities.
func ProvideComposite(cfg *config.Config, reg *usecase.ProviderRegistry, log *applogger.Logger, m repository.Metrics) *usecase.CompositeProvider {
	comp := usecase.NewCompositeProvider(log, m)

	priorities := map[string]int{
		"edgar":   cfg.Providers.Edgar.Priority,
		"fmp":     cfg.Providers.FMP.Priority,
		"finnhub": cfg.Providers.Finnhub.Priority,
	}
	for _, p := range reg.GetAll() {
		comp.AddProvider(p, priorities[p.Name()])
	}
	return comp
}

// ProvideCache creates the edge cache: Redis fronted by an in-process
// layer when enabled, otherwise in-process memory alone.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Cache.Redis.Enabled {
		c, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Cache.Redis.Host),
			cache.WithRedisPort(cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix("finbridge"),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return cache.NewLayeredCache(c), nil
	}
	return cache.NewMemoryCache(), nil
}

// ProvideClickHouseClient dials ClickHouse when enabled; nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideFinancialStore creates the metrics store over ClickHouse.
func ProvideFinancialStore(ch *pkgch.Client, log *applogger.Logger) repository.FinancialStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseFinancialStore(ch, "financial_metrics", log)
}

// ProvidePublisher creates the Kafka publisher when enabled.
func ProvidePublisher(cfg *config.Config) (repository.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideIngester wires the scheduled fetch loop when enabled.
func ProvideIngester(
	cfg *config.Config,
	comp *usecase.CompositeProvider,
	store repository.FinancialStore,
	pub repository.Publisher,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Ingester {
	if !cfg.Ingestion.Enabled {
		return nil
	}
	return usecase.NewIngester(comp, store, pub, m, log,
		cfg.Ingestion.Interval, cfg.Ingestion.Tickers, cfg.Ingestion.Concepts)
}

// ProvideQuoteCollector wires the live quote stream when Finnhub and
// ingestion are both enabled.
func ProvideQuoteCollector(cfg *config.Config, m repository.Metrics, log *applogger.Logger) *usecase.QuoteCollector {
	if !cfg.Providers.Finnhub.Enabled || !cfg.Ingestion.Enabled {
		return nil
	}
	stream := finnhub.NewQuoteStream(
		cfg.Providers.Finnhub.APIKey,
		cfg.Providers.Finnhub.WebSocketURL,
		cfg.Ingestion.Tickers,
		0,
	)
	return usecase.NewQuoteCollector(stream, m, log)
}

// ProvideHandler creates the HTTP gateway handler.
func ProvideHandler(
	cfg *config.Config,
	log *applogger.Logger,
	comp *usecase.CompositeProvider,
	reg *usecase.ProviderRegistry,
	c cache.Service,
) xhttp.Handler {
	return api.NewGatewayHandler(log, comp, reg, c, cfg.Cache.TTL)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	ingester *usecase.Ingester,
	collector *usecase.QuoteCollector,
	store repository.FinancialStore,
	pub repository.Publisher,
	ch *pkgch.Client,
) *server.App {
	return server.New(cfg, log, handler, ingester, collector, store, pub, ch)
}
