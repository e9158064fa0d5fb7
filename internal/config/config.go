package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the order agent.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Source    SourceConfig    `yaml:"source"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig controls listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	HTTPAddress     string        `yaml:"httpAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout" validate:"gte=0"`
}

// SourceConfig configures the upstream raw order provider.
type SourceConfig struct {
	BaseURL       string        `yaml:"baseURL" validate:"omitempty,url"`
	OrdersPath    string        `yaml:"ordersPath"`
	OrderPath     string        `yaml:"orderPath"`
	Limit         int           `yaml:"limit" validate:"gte=0"`
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
	RetryAttempts int           `yaml:"retryAttempts" validate:"gte=1,lte=10"`
	RetryDelay    time.Duration `yaml:"retryDelay" validate:"gte=0"`
}

// ExtractorConfig configures the LLM extraction capability and chunking.
type ExtractorConfig struct {
	BaseURL           string            `yaml:"baseURL" validate:"omitempty,url"`
	EndpointPath      string            `yaml:"endpointPath"`
	Model             string            `yaml:"model" validate:"required"`
	APIKey            string            `yaml:"apiKey"`
	APIKeyEnv         string            `yaml:"apiKeyEnv"`
	Temperature       float64           `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens         int               `yaml:"maxTokens" validate:"gte=0"`
	CallTimeout       time.Duration     `yaml:"callTimeout" validate:"gt=0"`
	ChunkThreshold    int               `yaml:"chunkThresholdTokens" validate:"gt=0"`
	Concurrency       int               `yaml:"concurrency" validate:"gte=1,lte=32"`
	RequestsPerSecond float64           `yaml:"requestsPerSecond" validate:"gte=0"`
	CacheTTL          time.Duration     `yaml:"cacheTTL" validate:"gte=0"`
	Headers           map[string]string `yaml:"headers"`
}

// ScoringConfig selects the reorder model inputs.
type ScoringConfig struct {
	CatalogPath      string `yaml:"catalogPath"`
	TrainingDataPath string `yaml:"trainingDataPath"`
	SyntheticSamples int    `yaml:"syntheticSamples" validate:"gte=0"`
	Seed             int64  `yaml:"seed"`
}

// HistoryConfig controls run persistence. An empty DSN keeps history in memory.
type HistoryConfig struct {
	DSN            string `yaml:"dsn"`
	Table          string `yaml:"table" validate:"omitempty,max=63"`
	MaxConns       int32  `yaml:"maxConns" validate:"gte=0"`
	MemoryCapacity int    `yaml:"memoryCapacity" validate:"gte=0"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls caching of extraction results.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Backend      string        `yaml:"backend" validate:"omitempty,oneof=memory redis"`
	Addr         string        `yaml:"addr" validate:"required_if=Backend redis"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db" validate:"gte=0"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ORDER_AGENT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ResolveAPIKey returns the configured key or, failing that, the named environment variable.
func (e ExtractorConfig) ResolveAPIKey() string {
	if e.APIKey != "" {
		return e.APIKey
	}
	if e.APIKeyEnv != "" {
		return os.Getenv(e.APIKeyEnv)
	}
	return ""
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8000",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Source: SourceConfig{
			BaseURL:       "http://localhost:5001",
			OrdersPath:    "/api/orders",
			OrderPath:     "/api/order",
			Timeout:       10 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
		},
		Extractor: ExtractorConfig{
			BaseURL:        "https://openrouter.ai/api/v1",
			EndpointPath:   "/chat/completions",
			Model:          "openai/gpt-oss-120b:exacto",
			APIKeyEnv:      "OPENROUTER_API_KEY",
			Temperature:    0,
			MaxTokens:      8192,
			CallTimeout:    120 * time.Second,
			ChunkThreshold: 4000,
			Concurrency:    1,
			CacheTTL:       10 * time.Minute,
		},
		Scoring: ScoringConfig{
			CatalogPath:      "configs/scoring/default.yaml",
			TrainingDataPath: "data/training_data.csv",
			SyntheticSamples: 5000,
			Seed:             42,
		},
		History: HistoryConfig{Table: "order_runs", MemoryCapacity: 500},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			Backend:      "memory",
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ORDER_AGENT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("ORDER_AGENT_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("ORDER_AGENT_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("ORDER_AGENT_SOURCE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("ORDER_AGENT_SOURCE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Source.Limit = n
		}
	}
	if v := os.Getenv("ORDER_AGENT_SOURCE_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Source.RetryAttempts = n
		}
	}
	if v := os.Getenv("ORDER_AGENT_SOURCE_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Source.RetryDelay = d
		}
	}
	if v := os.Getenv("ORDER_AGENT_LLM_BASE_URL"); v != "" {
		cfg.Extractor.BaseURL = v
	}
	if v := os.Getenv("ORDER_AGENT_LLM_MODEL"); v != "" {
		cfg.Extractor.Model = v
	}
	if v := os.Getenv("ORDER_AGENT_LLM_API_KEY"); v != "" {
		cfg.Extractor.APIKey = v
	}
	if v := os.Getenv("ORDER_AGENT_LLM_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Extractor.CallTimeout = d
		}
	}
	if v := os.Getenv("ORDER_AGENT_LLM_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Extractor.Concurrency = n
		}
	}
	if v := os.Getenv("ORDER_AGENT_SCORING_CATALOG"); v != "" {
		cfg.Scoring.CatalogPath = v
	}
	if v := os.Getenv("ORDER_AGENT_TRAINING_DATA"); v != "" {
		cfg.Scoring.TrainingDataPath = v
	}
	if v := os.Getenv("ORDER_AGENT_HISTORY_DSN"); v != "" {
		cfg.History.DSN = v
	}
	if v := os.Getenv("ORDER_AGENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ORDER_AGENT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("ORDER_AGENT_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("ORDER_AGENT_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("ORDER_AGENT_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("ORDER_AGENT_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("ORDER_AGENT_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("ORDER_AGENT_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("ORDER_AGENT_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
}
