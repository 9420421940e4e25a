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
	State    StateConfig    `yaml:"state" mapstructure:"state"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Health   HealthConfig   `yaml:"health" mapstructure:"health"`
	Proxy    ProxyConfig    `yaml:"proxy" mapstructure:"proxy"`
	Yelp     YelpConfig     `yaml:"yelp" mapstructure:"yelp"`
	Google   GoogleConfig   `yaml:"google" mapstructure:"google"`
	Hunter   HunterConfig   `yaml:"hunter" mapstructure:"hunter"`
	Snov     SnovConfig     `yaml:"snov" mapstructure:"snov"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StateConfig configures the dedup state backend.
type StateConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OutputConfig configures result sinks.
type OutputConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	Manifest           string  `yaml:"manifest" mapstructure:"manifest"`
	Workers            int     `yaml:"workers" mapstructure:"workers"`
	MaxAttemptsPerUnit int     `yaml:"max_attempts_per_unit" mapstructure:"max_attempts_per_unit"`
	RequestsPerSecond  float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// HealthConfig configures per-instance failure handling.
type HealthConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownBaseSecs int `yaml:"cooldown_base_secs" mapstructure:"cooldown_base_secs"`
	CooldownMaxSecs  int `yaml:"cooldown_max_secs" mapstructure:"cooldown_max_secs"`
}

// ProxyConfig configures outbound proxy rotation.
type ProxyConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// YelpConfig holds Yelp Fusion API settings.
type YelpConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PageLimit   int    `yaml:"page_limit" mapstructure:"page_limit"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// HunterConfig holds Hunter.io API settings.
type HunterConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SnovConfig holds Snov.io API settings.
type SnovConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the control server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("state.driver", "sqlite")
	v.SetDefault("state.path", "leadgen_state.db")
	v.SetDefault("output.dir", "out")
	v.SetDefault("output.format", "jsonl")
	v.SetDefault("pipeline.manifest", "instances.yaml")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.max_attempts_per_unit", 5)
	v.SetDefault("pipeline.requests_per_second", 3.0)
	v.SetDefault("health.failure_threshold", 3)
	v.SetDefault("health.cooldown_base_secs", 30)
	v.SetDefault("health.cooldown_max_secs", 3600)
	v.SetDefault("proxy.enabled", true)
	v.SetDefault("yelp.base_url", "https://api.yelp.com/v3")
	v.SetDefault("yelp.timeout_secs", 15)
	v.SetDefault("yelp.page_limit", 50)
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.timeout_secs", 15)
	v.SetDefault("hunter.base_url", "https://api.hunter.io/v2")
	v.SetDefault("hunter.timeout_secs", 20)
	v.SetDefault("snov.base_url", "https://api.snov.io/v2")
	v.SetDefault("snov.timeout_secs", 20)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
