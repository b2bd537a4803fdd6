package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"LoadCast/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowRequest     time.Duration `yaml:"slow_request"`
		CORS            bool          `yaml:"cors"`
		// TrainRate and TrainBurst throttle model-fitting requests per client.
		TrainRate  float64 `yaml:"train_rate"`
		TrainBurst int     `yaml:"train_burst"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
		// ErrorTopic enables publishing aggregated error logs to Kafka when set.
		ErrorTopic string        `yaml:"error_topic"`
		FlushEvery time.Duration `yaml:"flush_every"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Topics       struct {
			Forecasts string `yaml:"forecasts"`
			Reports   string `yaml:"reports"`
			Alerts    string `yaml:"alerts"`
			Jobs      string `yaml:"jobs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Cache struct {
		MemorySize int           `yaml:"memory_size"`
		MemoryTTL  time.Duration `yaml:"memory_ttl"`
	} `yaml:"cache"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Name       string        `yaml:"name"`
		Workers    int           `yaml:"workers"`
		MaxRetries int           `yaml:"max_retries"`
		RetryDelay time.Duration `yaml:"retry_delay"`
		JobTimeout time.Duration `yaml:"job_timeout"`
	} `yaml:"queue"`
	Capabilities map[string]bool `yaml:"capabilities"`
	Forecast     struct {
		Horizon         int                `yaml:"horizon"`
		Confidence      float64            `yaml:"confidence"`
		SeasonalPeriods []int              `yaml:"seasonal_periods"`
		UseTrend        bool               `yaml:"use_trend"`
		UseDampedTrend  bool               `yaml:"use_damped_trend"`
		UseARMAErrors   bool               `yaml:"use_arma_errors"`
		Weights         map[string]float64 `yaml:"weights"`
		Weighting       string             `yaml:"weighting"`
		CVFolds         int                `yaml:"cv_folds"`
		CacheTTL        time.Duration      `yaml:"cache_ttl"`
		ModelCacheSize  int                `yaml:"model_cache_size"`
		ModelCacheTTL   time.Duration      `yaml:"model_cache_ttl"`
		SimulationSeed  int64              `yaml:"simulation_seed"`
	} `yaml:"forecast"`
	Residual struct {
		Trees        int     `yaml:"trees"`
		MaxDepth     int     `yaml:"max_depth"`
		MinSplit     int     `yaml:"min_split"`
		MinLeaf      int     `yaml:"min_leaf"`
		Seed         int64   `yaml:"seed"`
		TestFraction float64 `yaml:"test_fraction"`
		ArtifactDir  string  `yaml:"artifact_dir"`
	} `yaml:"residual"`
	Anomaly struct {
		Sensitivity       string        `yaml:"sensitivity"`
		TopN              int           `yaml:"top_n"`
		RealtimeThreshold float64       `yaml:"realtime_threshold"`
		AlertRate         float64       `yaml:"alert_rate"`
		AlertBurst        int           `yaml:"alert_burst"`
		ScanInterval      time.Duration `yaml:"scan_interval"`
		ScanDays          int           `yaml:"scan_days"`
	} `yaml:"anomaly"`
	Alerts struct {
		WebSocket    bool          `yaml:"websocket"`
		PingInterval time.Duration `yaml:"ping_interval"`
		Buffer       int           `yaml:"buffer"`
	} `yaml:"alerts"`
	Holidays struct {
		Static      []string      `yaml:"static"`
		ProviderURL string        `yaml:"provider_url"`
		Country     string        `yaml:"country"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"holidays"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("LOADCAST_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOADCAST_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("LOADCAST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOADCAST_ARTIFACT_DIR"); v != "" {
		c.Residual.ArtifactDir = v
	}
	if v := os.Getenv("LOADCAST_WEIGHTING"); v != "" {
		c.Forecast.Weighting = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitNonEmpty(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.SlowRequest == 0 {
		c.Server.SlowRequest = 10 * time.Second
	}
	if c.Server.TrainRate == 0 {
		c.Server.TrainRate = 0.5
	}
	if c.Server.TrainBurst == 0 {
		c.Server.TrainBurst = 4
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Forecast.Horizon == 0 {
		c.Forecast.Horizon = 30
	}
	if c.Forecast.Confidence == 0 {
		c.Forecast.Confidence = 0.95
	}
	if len(c.Forecast.SeasonalPeriods) == 0 {
		c.Forecast.SeasonalPeriods = []int{7, 365}
		c.Forecast.UseTrend = true
		c.Forecast.UseARMAErrors = true
	}
	if c.Forecast.Weighting == "" {
		c.Forecast.Weighting = "fixed"
	}
	if c.Forecast.CVFolds == 0 {
		c.Forecast.CVFolds = 5
	}
	if c.Forecast.CacheTTL == 0 {
		c.Forecast.CacheTTL = 15 * time.Minute
	}
	if c.Forecast.ModelCacheSize == 0 {
		c.Forecast.ModelCacheSize = 128
	}
	if c.Forecast.ModelCacheTTL == 0 {
		c.Forecast.ModelCacheTTL = time.Hour
	}
	if c.Forecast.SimulationSeed == 0 {
		c.Forecast.SimulationSeed = 42
	}
	if c.Residual.Trees == 0 {
		c.Residual.Trees = 100
	}
	if c.Residual.MaxDepth == 0 {
		c.Residual.MaxDepth = 10
	}
	if c.Residual.MinSplit == 0 {
		c.Residual.MinSplit = 2
	}
	if c.Residual.MinLeaf == 0 {
		c.Residual.MinLeaf = 1
	}
	if c.Residual.Seed == 0 {
		c.Residual.Seed = 42
	}
	if c.Residual.TestFraction == 0 {
		c.Residual.TestFraction = 0.2
	}
	if c.Residual.ArtifactDir == "" {
		c.Residual.ArtifactDir = "models"
	}
	if c.Anomaly.Sensitivity == "" {
		c.Anomaly.Sensitivity = "medium"
	}
	if c.Anomaly.TopN == 0 {
		c.Anomaly.TopN = 20
	}
	if c.Anomaly.RealtimeThreshold == 0 {
		c.Anomaly.RealtimeThreshold = 2.0
	}
	if c.Anomaly.AlertRate == 0 {
		c.Anomaly.AlertRate = 1
	}
	if c.Anomaly.AlertBurst == 0 {
		c.Anomaly.AlertBurst = 3
	}
	if c.Anomaly.ScanDays == 0 {
		c.Anomaly.ScanDays = 30
	}
	if c.Alerts.PingInterval == 0 {
		c.Alerts.PingInterval = 30 * time.Second
	}
	if c.Alerts.Buffer == 0 {
		c.Alerts.Buffer = 64
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "loadcast"
	}
	if c.Cache.MemorySize == 0 {
		c.Cache.MemorySize = 1024
	}
	if c.Cache.MemoryTTL == 0 {
		c.Cache.MemoryTTL = 5 * time.Minute
	}
	if c.Queue.RetryDelay == 0 {
		c.Queue.RetryDelay = 10 * time.Second
	}
	if c.Queue.JobTimeout == 0 {
		c.Queue.JobTimeout = 10 * time.Minute
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "loadcast:jobs"
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = 3
	}
	if c.Holidays.Timeout == 0 {
		c.Holidays.Timeout = 5 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Forecast.Horizon < 1 || c.Forecast.Horizon > 365 {
		return fmt.Errorf("forecast.horizon must be in [1, 365], got %d", c.Forecast.Horizon)
	}
	if c.Forecast.Confidence <= 0 || c.Forecast.Confidence >= 1 {
		return fmt.Errorf("forecast.confidence must be in (0, 1), got %v", c.Forecast.Confidence)
	}
	if c.Forecast.Weighting != "fixed" && c.Forecast.Weighting != "inverse_error" {
		return fmt.Errorf("forecast.weighting must be 'fixed' or 'inverse_error', got '%s'", c.Forecast.Weighting)
	}
	if c.Forecast.CVFolds < 2 {
		return fmt.Errorf("forecast.cv_folds must be at least 2, got %d", c.Forecast.CVFolds)
	}
	for k, w := range c.Forecast.Weights {
		if w < 0 {
			return fmt.Errorf("forecast.weights[%s] must be non-negative", k)
		}
	}
	for _, p := range c.Forecast.SeasonalPeriods {
		if p < 2 {
			return fmt.Errorf("forecast.seasonal_periods entries must be >= 2, got %d", p)
		}
	}
	if c.Residual.TestFraction <= 0 || c.Residual.TestFraction >= 1 {
		return fmt.Errorf("residual.test_fraction must be in (0, 1), got %v", c.Residual.TestFraction)
	}
	switch c.Anomaly.Sensitivity {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("anomaly.sensitivity must be low, medium or high, got '%s'", c.Anomaly.Sensitivity)
	}
	if c.Anomaly.TopN < 1 {
		return fmt.Errorf("anomaly.top_n must be positive")
	}
	for _, d := range c.Holidays.Static {
		if _, ok := util.ParseDate(d); !ok {
			return fmt.Errorf("holidays.static: invalid date %q", d)
		}
	}
	if c.Server.TrainRate < 0 || c.Server.TrainBurst < 0 {
		return fmt.Errorf("server.train_rate and server.train_burst must be non-negative")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue.enabled requires redis.enabled")
	}
	return nil
}
