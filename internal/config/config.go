package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Scraper ScraperConfig `yaml:"scraper" mapstructure:"scraper"`
	Quality QualityConfig `yaml:"quality" mapstructure:"quality"`
	Vector  VectorConfig  `yaml:"vector" mapstructure:"vector"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ScraperConfig holds readability-scraper service settings.
type ScraperConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// QualityConfig holds content-quality service settings.
type QualityConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// VectorConfig holds vector index service settings.
type VectorConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Index   string `yaml:"index" mapstructure:"index"`
}

// EnrichConfig configures pipeline retry and timeout behavior.
type EnrichConfig struct {
	TimeoutMs      int `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	MaxRetries     int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMs int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// AuthConfig configures capability-token signing.
type AuthConfig struct {
	CapabilitySecret  string `yaml:"capability_secret" mapstructure:"capability_secret"`
	CapabilityTTLMins int    `yaml:"capability_ttl_mins" mapstructure:"capability_ttl_mins"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CARDSTASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("scraper.base_url", "https://scrape.cardstash.app")
	v.SetDefault("scraper.timeout_secs", 30)
	v.SetDefault("quality.base_url", "https://quality.cardstash.app")
	v.SetDefault("quality.timeout_secs", 30)
	v.SetDefault("vector.base_url", "https://vector.cardstash.app")
	v.SetDefault("vector.index", "cards")
	v.SetDefault("enrich.timeout_ms", 50000)
	v.SetDefault("enrich.max_retries", 2)
	v.SetDefault("enrich.retry_backoff_ms", 1000)
	v.SetDefault("auth.capability_ttl_mins", 15)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
