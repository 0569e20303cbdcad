package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"5m"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Equity struct {
		Backend     string        `yaml:"backend" default:"http" validate:"oneof=http financego"`
		BaseURL     string        `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"omitempty,url"`
		Primary     string        `yaml:"primary" default:"NVDA" validate:"required"`
		Tickers     []string      `yaml:"tickers" validate:"dive,required"`
		MaxAttempts int           `yaml:"max_attempts" default:"6" validate:"gte=1"`
		Timeout     time.Duration `yaml:"timeout" default:"30s"`
		MinInterval time.Duration `yaml:"min_interval" default:"500ms"`
	} `yaml:"equity"`
	Macro struct {
		BaseURL string   `yaml:"base_url" default:"https://fred.stlouisfed.org" validate:"omitempty,url"`
		FX      []string `yaml:"fx" validate:"dive,required"`
		Indexes []string `yaml:"indexes" validate:"dive,required"`
	} `yaml:"macro"`
	Crypto struct {
		BaseURL string `yaml:"base_url" default:"https://api.coingecko.com/api/v3" validate:"omitempty,url"`
		Days    int    `yaml:"days" default:"60" validate:"gte=1,lte=365"`
	} `yaml:"crypto"`
	Features struct {
		ReturnPeriod int `yaml:"return_period" default:"5" validate:"gte=1"`
		WindowDays   int `yaml:"window_days" default:"365" validate:"gte=1"`
	} `yaml:"features"`
	Sinks struct {
		CSV struct {
			Enabled bool   `yaml:"enabled" default:"true"`
			Dir     string `yaml:"dir" default:"data"`
		} `yaml:"csv"`
		ClickHouse struct {
			Enabled          bool          `yaml:"enabled"`
			Host             string        `yaml:"host" default:"localhost"`
			Port             int           `yaml:"port" default:"9000"`
			Database         string        `yaml:"database" default:"default"`
			User             string        `yaml:"user" default:"default"`
			Password         string        `yaml:"password"`
			UseHTTP          bool          `yaml:"use_http"`
			AsyncInsert      bool          `yaml:"async_insert"`
			WaitForAsync     bool          `yaml:"wait_for_async_insert"`
			DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		} `yaml:"clickhouse"`
		Kafka struct {
			Enabled       bool          `yaml:"enabled"`
			Brokers       []string      `yaml:"brokers"`
			FeaturesTopic string        `yaml:"features_topic" default:"features"`
			PricesTopic   string        `yaml:"prices_topic" default:"btc-prices"`
			RequiredAcks  int           `yaml:"required_acks" default:"-1"`
			Compression   string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
			MaxAttempts   int           `yaml:"max_attempts" default:"3"`
			BatchSize     int           `yaml:"batch_size" default:"100"`
			BatchTimeout  time.Duration `yaml:"batch_timeout" default:"50ms"`
			WriteTimeout  time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout   time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"kafka"`
	} `yaml:"sinks"`
	Lock struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"featpull:"`
		TTL      time.Duration `yaml:"ttl" default:"15m"`
	} `yaml:"lock"`
}

// Default returns the built-in configuration: NVDA predicted from five
// semiconductor and platform peers, two FX pairs and three indexes.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	c.Equity.Tickers = []string{"AVGO", "TSM", "ORCL", "AMD", "META"}
	c.Macro.FX = []string{"DEXJPUS", "DEXUSUK"}
	c.Macro.Indexes = []string{"SP500", "DJIA", "VIXCLS"}
	return &c
}

// Load reads and parses a YAML configuration file.
// Unset fields fall back to Default.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path starts from Default.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c = Default()
	} else if c, err = Load(path); err != nil {
		return nil, err
	}

	if v := os.Getenv("FEATPULL_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("EQUITY_BACKEND"); v != "" {
		c.Equity.Backend = v
	}
	if v := os.Getenv("PRIMARY_TICKER"); v != "" {
		c.Equity.Primary = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Lock.Addr = v
		c.Lock.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.Sinks.ClickHouse.Host = v
		c.Sinks.ClickHouse.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Sinks.Kafka.Brokers = strings.Split(v, ",")
		c.Sinks.Kafka.Enabled = true
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		c.Sinks.CSV.Dir = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Sinks.Kafka.Enabled && len(c.Sinks.Kafka.Brokers) == 0 {
		return fmt.Errorf("sinks.kafka.brokers cannot be empty when kafka is enabled")
	}
	for _, t := range c.Equity.Tickers {
		if t == c.Equity.Primary {
			return fmt.Errorf("equity.tickers must not repeat the primary ticker %s", t)
		}
	}
	return nil
}
