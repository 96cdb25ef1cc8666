package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	CoinGecko struct {
		APIKey          string        `yaml:"api_key"`
		ProBaseURL      string        `yaml:"pro_base_url" default:"https://pro-api.coingecko.com/api/v3"`
		PublicBaseURL   string        `yaml:"public_base_url" default:"https://api.coingecko.com/api/v3"`
		Timeout         time.Duration `yaml:"timeout" default:"30s"`
		RateLimitPerMin int           `yaml:"rate_limit_per_min"`
		MaxRetries      int           `yaml:"max_retries" default:"3"`
		InitialBackoff  time.Duration `yaml:"initial_backoff" default:"1s"`
		MaxBackoff      time.Duration `yaml:"max_backoff" default:"30s"`
	} `yaml:"coingecko"`
	Store struct {
		Type string `yaml:"type" default:"clickhouse"`
	} `yaml:"store"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		Table            string        `yaml:"table" default:"price_points"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"coinpull.prices"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"snappy"`
		BatchSize    int           `yaml:"batch_size" default:"500"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		Async        bool          `yaml:"async"`
		AutoCreate   bool          `yaml:"auto_create_topic"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		Prefix       string        `yaml:"prefix" default:"coinpull"`
		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
	} `yaml:"redis"`
	Ingest struct {
		Assets        []string      `yaml:"assets" default:"[\"bitcoin\",\"ethereum\",\"solana\"]"`
		QuoteCurrency string        `yaml:"quote_currency" default:"usd"`
		HistoryDays   int           `yaml:"history_days" default:"365"`
		TargetRows    int64         `yaml:"target_rows" default:"500000"`
		ClearFirst    bool          `yaml:"clear_first"`
		Concurrency   int           `yaml:"concurrency"`
		LockTTL       time.Duration `yaml:"lock_ttl" default:"30m"`
	} `yaml:"ingest"`
	Live struct {
		Interval      time.Duration `yaml:"interval" default:"30s"`
		AssetsPerTick int           `yaml:"assets_per_tick" default:"10"`
		SeriesLimit   int           `yaml:"series_limit" default:"500"`
		AutoStart     bool          `yaml:"auto_start"`
	} `yaml:"live"`
	Analytics struct {
		Window   time.Duration `yaml:"window" default:"24h"`
		TopLimit int           `yaml:"top_limit" default:"20"`
	} `yaml:"analytics"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		c.CoinGecko.APIKey = v
	}
	if v := os.Getenv("ASSETS"); v != "" {
		c.Ingest.Assets = splitList(v)
	}
	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Enabled = true
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Store.Type != "clickhouse" && c.Store.Type != "memory" {
		return fmt.Errorf("store.type must be 'clickhouse' or 'memory', got '%s'", c.Store.Type)
	}
	if len(c.Ingest.Assets) == 0 {
		return fmt.Errorf("ingest.assets cannot be empty")
	}
	if c.Ingest.QuoteCurrency == "" {
		return fmt.Errorf("ingest.quote_currency is required")
	}
	if c.Ingest.HistoryDays <= 0 {
		return fmt.Errorf("ingest.history_days must be positive, got %d", c.Ingest.HistoryDays)
	}
	if c.Live.Interval <= 0 {
		return fmt.Errorf("live.interval must be positive")
	}
	if c.Live.AssetsPerTick <= 0 {
		return fmt.Errorf("live.assets_per_tick must be positive")
	}
	if c.Analytics.Window <= 0 {
		return fmt.Errorf("analytics.window must be positive")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
