package di

import (
	"context"
	"fmt"
	"time"

	"FeatPull/internal/domain/repository"
	"FeatPull/internal/handler/api"
	mid "FeatPull/internal/middleware"
	internalrepo "FeatPull/internal/repository"
	"FeatPull/internal/service/coingecko"
	"FeatPull/internal/service/fred"
	"FeatPull/internal/service/ratelimit"
	"FeatPull/internal/service/yahoo"
	"FeatPull/internal/usecase"
	"FeatPull/pkg/cache"
	pkgch "FeatPull/pkg/clickhouse"
	"FeatPull/pkg/config"
	xhttp "FeatPull/pkg/http"
	pkgkafka "FeatPull/pkg/kafka"
	applogger "FeatPull/pkg/logger"
	"FeatPull/pkg/metrics"
	"FeatPull/pkg/server"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideHTTPClient creates the outbound client shared by all upstream providers.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Equity.Timeout))
}

// ProvideEquitySource selects the equity backend and wraps it with rate-limit retries.
func ProvideEquitySource(cfg *config.Config, h *xhttp.Client, m repository.Metrics, l *applogger.Logger) (repository.EquitySource, error) {
	var next repository.EquitySource
	switch cfg.Equity.Backend {
	case "financego":
		next = yahoo.NewChartClient(l.Component("yahoo"))
	case "http":
		next = yahoo.New(
			yahoo.WithBaseURL(cfg.Equity.BaseURL),
			yahoo.WithHTTPClient(h),
			yahoo.WithMinInterval(cfg.Equity.MinInterval),
			yahoo.WithLimiter(ratelimit.New()),
			yahoo.WithLogger(l.Component("yahoo")),
		)
	default:
		return nil, fmt.Errorf("unknown equity backend %q", cfg.Equity.Backend)
	}
	return mid.NewResilientFetcher(next,
		mid.WithMaxAttempts(cfg.Equity.MaxAttempts),
		mid.WithSourceName("equity"),
		mid.WithRetryLogger(l.Component("retry")),
		mid.WithRetryMetrics(m),
	), nil
}

// ProvideMacroSource creates the FRED client.
func ProvideMacroSource(cfg *config.Config, h *xhttp.Client, l *applogger.Logger) repository.MacroSource {
	return fred.New(cfg.Macro.BaseURL, h, l.Component("fred"))
}

// ProvideCryptoSource creates the CoinGecko client.
func ProvideCryptoSource(cfg *config.Config, h *xhttp.Client, l *applogger.Logger) repository.CryptoSource {
	return coingecko.New(cfg.Crypto.BaseURL, h, l.Component("coingecko"))
}

// ProvideFeatureAssembler creates the feature assembler use case.
func ProvideFeatureAssembler(
	cfg *config.Config,
	equity repository.EquitySource,
	macro repository.MacroSource,
	m repository.Metrics,
	l *applogger.Logger,
) (*usecase.FeatureAssembler, error) {
	return usecase.NewFeatureAssembler(usecase.AssemblerConfig{
		Primary:      cfg.Equity.Primary,
		Auxiliary:    cfg.Equity.Tickers,
		FX:           cfg.Macro.FX,
		Indexes:      cfg.Macro.Indexes,
		ReturnPeriod: cfg.Features.ReturnPeriod,
		WindowDays:   cfg.Features.WindowDays,
	}, equity, macro, m, l.Component("assembler"))
}

// ProvideBitcoinHistory creates the BTC history use case.
func ProvideBitcoinHistory(crypto repository.CryptoSource, m repository.Metrics, l *applogger.Logger) *usecase.BitcoinHistory {
	return usecase.NewBitcoinHistory(crypto, m, l)
}

// ProvideClickHouseClient creates a ClickHouse client when the sink is enabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	c := cfg.Sinks.ClickHouse
	if !c.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(c.Host),
		pkgch.WithPort(c.Port),
		pkgch.WithDatabase(c.Database),
		pkgch.WithCredentials(c.User, c.Password),
		pkgch.WithHTTP(c.UseHTTP),
		pkgch.WithAsyncInsert(c.AsyncInsert, c.WaitForAsync),
		pkgch.WithTimeouts(c.DialTimeout, c.ReadTimeout),
		pkgch.WithMaxExecutionTime(c.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideKafkaProducer creates a Kafka producer when the sink is enabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	k := cfg.Sinks.Kafka
	if !k.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithMaxAttempts(k.MaxAttempts),
		pkgkafka.WithBatching(k.BatchSize, k.BatchTimeout),
		pkgkafka.WithTimeouts(k.WriteTimeout, k.ReadTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideSinks assembles the enabled dataset sinks in write order: CSV, ClickHouse, Kafka.
// The ClickHouse schema is created here so a build never writes into missing tables.
func ProvideSinks(
	cfg *config.Config,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	l *applogger.Logger,
) ([]repository.DatasetSink, error) {
	var sinks []repository.DatasetSink
	if cfg.Sinks.CSV.Enabled {
		sinks = append(sinks, internalrepo.NewCSVSink(cfg.Sinks.CSV.Dir, l))
	}
	if chClient != nil {
		store := internalrepo.NewCHDatasetStore(chClient.DB(), cfg.Sinks.ClickHouse.Database)
		store.SetLogger(l)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := chClient.InitSchema(ctx, store.Schema()); err != nil {
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		sinks = append(sinks, store)
	}
	if producer != nil {
		k := cfg.Sinks.Kafka
		sinks = append(sinks, internalrepo.NewKafkaDatasetPublisher(producer, k.FeaturesTopic, k.PricesTopic, l))
	}
	return sinks, nil
}

// ProvideLocker returns the Redis build lock when enabled, else an in-process one.
func ProvideLocker(cfg *config.Config, l *applogger.Logger) (repository.Locker, func(), error) {
	if !cfg.Lock.Enabled {
		return cache.NewMemoryLocker(), func() {}, nil
	}
	locker, err := cache.NewRedisLocker(
		cache.WithRedisAddr(cfg.Lock.Addr),
		cache.WithRedisPassword(cfg.Lock.Password),
		cache.WithRedisDB(cfg.Lock.DB),
		cache.WithRedisPrefix(cfg.Lock.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis locker: %w", err)
	}
	cleanup := func() {
		if err := locker.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	return locker, cleanup, nil
}

// ProvideDatasetExporter creates the export use case.
func ProvideDatasetExporter(
	cfg *config.Config,
	assembler *usecase.FeatureAssembler,
	bitcoin *usecase.BitcoinHistory,
	sinks []repository.DatasetSink,
	locker repository.Locker,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.DatasetExporter {
	return usecase.NewDatasetExporter(assembler, bitcoin, sinks, locker, cfg.Lock.TTL, m, l.Component("exporter"))
}

// ProvideDatasetsHandler creates the HTTP handler for dataset routes.
func ProvideDatasetsHandler(
	l *applogger.Logger,
	assembler *usecase.FeatureAssembler,
	bitcoin *usecase.BitcoinHistory,
	exporter *usecase.DatasetExporter,
) *api.DatasetsEchoHandler {
	return api.NewDatasetsEchoHandler(l.Component("http"), assembler, bitcoin).WithExporter(exporter)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	exporter *usecase.DatasetExporter,
	handler *api.DatasetsEchoHandler,
) *server.App {
	return server.New(cfg, l, exporter, handler)
}
