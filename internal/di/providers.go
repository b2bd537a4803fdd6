package di

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/handler/api"
	mid "LoadCast/internal/middleware"
	internalrepo "LoadCast/internal/repository"
	"LoadCast/internal/service/alertstream"
	icache "LoadCast/internal/service/cache"
	"LoadCast/internal/service/ratelimit"
	"LoadCast/internal/services/anomaly"
	"LoadCast/internal/services/capability"
	"LoadCast/internal/services/ensemble"
	"LoadCast/internal/services/forecasters"
	"LoadCast/internal/services/holiday"
	"LoadCast/internal/services/prepare"
	"LoadCast/internal/services/residual"
	"LoadCast/internal/services/tbats"
	"LoadCast/internal/usecase"
	"LoadCast/pkg/cache"
	pkgch "LoadCast/pkg/clickhouse"
	"LoadCast/pkg/config"
	xhttp "LoadCast/pkg/http"
	pkgkafka "LoadCast/pkg/kafka"
	applogger "LoadCast/pkg/logger"
	"LoadCast/pkg/metrics"
	"LoadCast/pkg/queue"
	"LoadCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse connected", applogger.String("database", cfg.ClickHouse.Database))

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

// ProvideKafkaProducer creates a Kafka producer. When an error topic is set,
// aggregated error logs are shipped through it.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Logging.ErrorTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.FlushEvery,
			CountThreshold: 100,
			Topic:          cfg.Logging.ErrorTopic,
			Publisher:      producer,
		})
	}
	return producer, func() {
		l.RemoveCollector()
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}, nil
}

// ProvideRedisClient returns nil when Redis is disabled.
func ProvideRedisClient(cfg *config.Config, l *applogger.Logger) (*redis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	l.Info("redis connected", applogger.String("addr", cfg.Redis.Addr))
	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}, nil
}

// ProvideCache layers the in-process cache over Redis when it is available.
func ProvideCache(cfg *config.Config, rc *redis.Client) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemorySize),
			cache.WithMemoryMaxTTL(cfg.Cache.MemoryTTL),
		)
	}
	return cache.NewLayeredCache(
		cache.NewRedisCacheFromClient(rc, cfg.Redis.Prefix),
		cache.WithLayeredMemorySize(cfg.Cache.MemorySize),
		cache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
	)
}

// ProvideSeriesStore creates the ClickHouse reader of daily series and customer readings.
func ProvideSeriesStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) domrepo.SeriesStore {
	s := internalrepo.NewCHSeriesStore(ch, cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

// ProvideResultStore creates the ClickHouse writer of forecasts and reports.
func ProvideResultStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) domrepo.ResultStore {
	s := internalrepo.NewCHResultStore(ch, cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

// ProvidePublisher creates the Kafka publisher of forecasts, reports and alerts.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) domrepo.Publisher {
	p := internalrepo.NewKafkaPublisher(producer, internalrepo.Topics{
		Forecasts: cfg.Kafka.Topics.Forecasts,
		Reports:   cfg.Kafka.Topics.Reports,
		Alerts:    cfg.Kafka.Topics.Alerts,
	})
	p.SetLogger(l)
	return p
}

// ProvideCapabilities probes the optional model backends once.
func ProvideCapabilities(cfg *config.Config, l *applogger.Logger) *capability.Registry {
	return capability.Resolve(cfg.Capabilities, capability.DefaultProbes(), l)
}

// ProvideHolidayCalendar loads the statically configured holidays.
func ProvideHolidayCalendar(cfg *config.Config) (*holiday.Calendar, error) {
	cal, err := holiday.NewStatic(cfg.Holidays.Static)
	if err != nil {
		return nil, fmt.Errorf("holiday calendar: %w", err)
	}
	return cal, nil
}

// ProvideHolidayProvider returns nil when no provider URL is configured.
func ProvideHolidayProvider(cfg *config.Config) service.HolidayProvider {
	if cfg.Holidays.ProviderURL == "" {
		return nil
	}
	return holiday.NewHTTPProvider(cfg.Holidays.ProviderURL, cfg.Holidays.Country, cfg.Holidays.Timeout)
}

// ProvideForecasterFactories builds the constructors of every model kind.
func ProvideForecasterFactories(cfg *config.Config, caps *capability.Registry, cal *holiday.Calendar, l *applogger.Logger) map[models.ModelKind]service.ForecasterFactory {
	opts := forecasters.DefaultOptions()
	opts.SeasonalTrend = tbats.Config{
		SeasonalPeriods: cfg.Forecast.SeasonalPeriods,
		UseTrend:        cfg.Forecast.UseTrend,
		UseDampedTrend:  cfg.Forecast.UseDampedTrend,
		UseARMAErrors:   cfg.Forecast.UseARMAErrors,
		Seed:            cfg.Forecast.SimulationSeed,
	}
	opts.Holidays = cal
	return forecasters.Factories(opts, caps, l)
}

// ProvideModelRegistry creates the in-memory store of fitted pipelines.
func ProvideModelRegistry(cfg *config.Config, l *applogger.Logger) *icache.ModelRegistry[*usecase.FittedPipeline] {
	return icache.NewModelRegistry[*usecase.FittedPipeline](cfg.Forecast.ModelCacheSize, cfg.Forecast.ModelCacheTTL,
		func(entity string, _ *usecase.FittedPipeline) {
			l.Debug("fitted models evicted", applogger.String("entity", entity))
		})
}

// ProvideForecastPipeline wires the forecasting use case.
func ProvideForecastPipeline(
	cfg *config.Config,
	l *applogger.Logger,
	store domrepo.SeriesStore,
	results domrepo.ResultStore,
	pub domrepo.Publisher,
	c cache.Service,
	registry *icache.ModelRegistry[*usecase.FittedPipeline],
	factories map[models.ModelKind]service.ForecasterFactory,
	caps *capability.Registry,
	cal *holiday.Calendar,
	provider service.HolidayProvider,
	m domrepo.Metrics,
) *usecase.ForecastPipeline {
	weights := make(map[models.ModelKind]float64, len(cfg.Forecast.Weights))
	for k, w := range cfg.Forecast.Weights {
		weights[models.ModelKind(k)] = w
	}
	return usecase.NewForecastPipeline(usecase.PipelineDeps{
		Store:     store,
		Results:   results,
		Publisher: pub,
		Cache:     c,
		Registry:  registry,
		Preparer:  prepare.New(prepare.WithLogger(l)),
		Factories: factories,
		Caps:      caps,
		Calendar:  cal,
		Provider:  provider,
		Metrics:   m,
		Logger:    l,
	}, usecase.PipelineConfig{
		Horizon:    cfg.Forecast.Horizon,
		Confidence: cfg.Forecast.Confidence,
		Weights:    weights,
		Strategy:   ensemble.Strategy(cfg.Forecast.Weighting),
		CVFolds:    cfg.Forecast.CVFolds,
		CacheTTL:   cfg.Forecast.CacheTTL,
		Forest: residual.ForestParams{
			Trees:    cfg.Residual.Trees,
			MaxDepth: cfg.Residual.MaxDepth,
			MinSplit: cfg.Residual.MinSplit,
			MinLeaf:  cfg.Residual.MinLeaf,
			Seed:     cfg.Residual.Seed,
		},
		TestFraction: cfg.Residual.TestFraction,
		ArtifactDir:  cfg.Residual.ArtifactDir,
	})
}

// ProvideAlertHub returns nil when WebSocket alert push is disabled.
func ProvideAlertHub(cfg *config.Config, l *applogger.Logger) *alertstream.Hub {
	if !cfg.Alerts.WebSocket {
		return nil
	}
	return alertstream.NewHub(
		alertstream.WithLogger(l),
		alertstream.WithPingInterval(cfg.Alerts.PingInterval),
		alertstream.WithBuffer(cfg.Alerts.Buffer),
	)
}

// ProvideAlertPipeline fans real-time alerts out to Kafka and WebSocket subscribers.
func ProvideAlertPipeline(cfg *config.Config, l *applogger.Logger, m domrepo.Metrics, pub domrepo.Publisher, hub *alertstream.Hub) *mid.AlertPipeline {
	sinks := []mid.Sink{
		mid.SinkFunc(func(ctx context.Context, a models.RealTimeAlert) error {
			return pub.PublishAlerts(ctx, []models.RealTimeAlert{a})
		}),
	}
	if hub != nil {
		sinks = append(sinks, hub)
	}
	return mid.NewAlertPipeline(m, sinks,
		mid.WithThrottle(cfg.Anomaly.AlertRate, cfg.Anomaly.AlertBurst),
		mid.WithPipelineLogger(l),
	)
}

// ProvideAnomalyScanner wires the anomaly use case.
func ProvideAnomalyScanner(
	cfg *config.Config,
	l *applogger.Logger,
	store domrepo.SeriesStore,
	results domrepo.ResultStore,
	pub domrepo.Publisher,
	alerts *mid.AlertPipeline,
	m domrepo.Metrics,
) *usecase.AnomalyScanner {
	return usecase.NewAnomalyScanner(usecase.ScannerDeps{
		Store:     store,
		Results:   results,
		Publisher: pub,
		Detector:  anomaly.New(anomaly.WithLogger(l), anomaly.WithObserver(m)),
		Alerts:    alerts,
		Metrics:   m,
		Logger:    l,
	}, cfg.Anomaly.RealtimeThreshold).WithDefaults(models.Sensitivity(cfg.Anomaly.Sensitivity), cfg.Anomaly.TopN)
}

// ProvideJobQueue returns nil when the Redis queue is disabled. The queue both
// accepts jobs from HTTP and runs them.
func ProvideJobQueue(cfg *config.Config, l *applogger.Logger, rc *redis.Client, p *usecase.ForecastPipeline, s *usecase.AnomalyScanner) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		JobTimeout: cfg.Queue.JobTimeout,
	}, rc, queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Queue.Name))
	q.RegisterJobs(usecase.Jobs(p, s, l))
	return q
}

// ProvideKafkaConsumer returns nil when the jobs topic consumer is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled || cfg.Kafka.Topics.Jobs == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TracingHook(),
		pkgkafka.HookFuncs{
			Err: func(ctx context.Context, topic string, _ kafka.Message, _ []byte, err error) {
				m.RecordError("kafka_" + topic)
				l.Warn("kafka job failed",
					applogger.String("topic", topic),
					applogger.String("trace_id", pkgkafka.TraceID(ctx)),
					applogger.Error(err),
				)
			},
		},
	))
	return consumer, nil
}

// ProvideKafkaJobsHandler handles forecast and scan requests from the jobs topic.
func ProvideKafkaJobsHandler(cfg *config.Config, l *applogger.Logger, p *usecase.ForecastPipeline, s *usecase.AnomalyScanner, m domrepo.Metrics) *usecase.KafkaJobsHandler {
	return usecase.NewKafkaJobsHandler(cfg.Kafka.Topics.Jobs, p, s, m, l)
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

// ProvideHTTPServer registers every HTTP handler on the Echo server.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	p *usecase.ForecastPipeline,
	s *usecase.AnomalyScanner,
	q *queue.RedisQueue,
	caps *capability.Registry,
	hub *alertstream.Hub,
	ch *pkgch.Client,
	rc *redis.Client,
) *xhttp.Server {
	checks := map[string]api.HealthChecker{"clickhouse": ch}
	if rc != nil {
		checks["redis"] = healthFunc(func(ctx context.Context) error { return rc.Ping(ctx).Err() })
	}
	var stream echo.HandlerFunc
	if hub != nil {
		stream = hub.ServeWS
	}
	handlers := []xhttp.Handler{
		api.NewForecastHandler(l, p, ratelimit.New(cfg.Server.TrainRate, cfg.Server.TrainBurst)),
		api.NewAnomalyHandler(l, s),
		api.NewSystemHandler(caps, checks, stream),
	}
	if q != nil {
		handlers = append(handlers, api.NewJobsHandler(l, q))
	}

	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithServerLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	return xhttp.NewServer(handlers, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaJobsHandler,
	q *queue.RedisQueue,
	alerts *mid.AlertPipeline,
	s *usecase.AnomalyScanner,
	hub *alertstream.Hub,
) *server.App {
	c := server.Components{
		HTTP:     srv,
		Consumer: consumer,
		Queue:    q,
		Alerts:   alerts,
		Scanner:  s,
		Hub:      hub,
	}
	if consumer != nil {
		c.Jobs = kh
	}
	return server.New(cfg, l, c)
}

// Core is the subset of the graph used by one-shot CLI commands.
type Core struct {
	Log          *applogger.Logger
	Pipeline     *usecase.ForecastPipeline
	Scanner      *usecase.AnomalyScanner
	Capabilities *capability.Registry
}

// ProvideCore bundles the use cases for the CLI.
func ProvideCore(l *applogger.Logger, p *usecase.ForecastPipeline, s *usecase.AnomalyScanner, caps *capability.Registry) *Core {
	return &Core{Log: l, Pipeline: p, Scanner: s, Capabilities: caps}
}
