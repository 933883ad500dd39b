package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Providers struct {
		Edgar struct {
			Enabled   bool          `yaml:"enabled"`
			UserAgent string        `yaml:"user_agent"`
			BaseURL   string        `yaml:"base_url"`
			Timeout   time.Duration `yaml:"timeout"`
			Priority  int           `yaml:"priority"`
			Primary   bool          `yaml:"primary"`
		} `yaml:"edgar"`
		FMP struct {
			Enabled  bool          `yaml:"enabled"`
			APIKey   string        `yaml:"api_key"`
			BaseURL  string        `yaml:"base_url"`
			Timeout  time.Duration `yaml:"timeout"`
			Priority int           `yaml:"priority"`
			Primary  bool          `yaml:"primary"`
		} `yaml:"fmp"`
		Finnhub struct {
			Enabled      bool          `yaml:"enabled"`
			APIKey       string        `yaml:"api_key"`
			BaseURL      string        `yaml:"base_url"`
			WebSocketURL string        `yaml:"websocket_url"`
			Timeout      time.Duration `yaml:"timeout"`
			Priority     int           `yaml:"priority"`
			Primary      bool          `yaml:"primary"`
		} `yaml:"finnhub"`
	} `yaml:"providers"`
	Ingestion struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"`
		Tickers  []string      `yaml:"tickers"`
		Concepts []string      `yaml:"concepts"`
	} `yaml:"ingestion"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		MaxAttempts  int           `yaml:"max_attempts"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
	Cache struct {
		TTL   time.Duration `yaml:"ttl"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
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

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables. Provider API keys always win from the environment so
// config files can stay secret-free.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FMP_API_KEY"); v != "" {
		c.Providers.FMP.APIKey = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Providers.Finnhub.APIKey = v
	}
	if v := os.Getenv("EDGAR_USER_AGENT"); v != "" {
		c.Providers.Edgar.UserAgent = v
	}
	if v := os.Getenv("INGESTION_TICKERS"); v != "" {
		c.Ingestion.Tickers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

// Validate checks if the configuration is valid. Provider credential
// problems surface here, at startup, never on the first request.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if !c.Providers.Edgar.Enabled && !c.Providers.FMP.Enabled && !c.Providers.Finnhub.Enabled {
		return fmt.Errorf("at least one provider must be enabled")
	}
	if c.Providers.Edgar.Enabled && c.Providers.Edgar.UserAgent == "" {
		return fmt.Errorf("providers.edgar.user_agent is required (SEC fair-access policy)")
	}
	if c.Providers.FMP.Enabled && c.Providers.FMP.APIKey == "" {
		return fmt.Errorf("providers.fmp.api_key is required")
	}
	if c.Providers.Finnhub.Enabled && c.Providers.Finnhub.APIKey == "" {
		return fmt.Errorf("providers.finnhub.api_key is required")
	}
	if c.Ingestion.Enabled && len(c.Ingestion.Tickers) == 0 {
		return fmt.Errorf("ingestion.tickers cannot be empty when ingestion is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
