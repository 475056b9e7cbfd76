// Package config loads application configuration from file and environment.
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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Google   GoogleConfig   `yaml:"google" mapstructure:"google"`
	Smarty   SmartyConfig   `yaml:"smarty" mapstructure:"smarty"`
	USPS     USPSConfig     `yaml:"usps" mapstructure:"usps"`
	PropData PropDataConfig `yaml:"propdata" mapstructure:"propdata"`
	Parcels  ParcelsConfig  `yaml:"parcels" mapstructure:"parcels"`
	Policy   PolicyConfig   `yaml:"policy" mapstructure:"policy"`
	Enrich   EnrichConfig   `yaml:"enrich" mapstructure:"enrich"`
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Serve    ServeConfig    `yaml:"serve" mapstructure:"serve"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures TTLs for the lookup cache.
type CacheConfig struct {
	RawTTLHours      int `yaml:"raw_ttl_hours" mapstructure:"raw_ttl_hours"`
	PropertyTTLHours int `yaml:"property_ttl_hours" mapstructure:"property_ttl_hours"`
	SweepSecs        int `yaml:"sweep_secs" mapstructure:"sweep_secs"`
}

// GoogleConfig holds Google Geocoding API credentials.
type GoogleConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// SmartyConfig holds Smarty US Street API credentials.
type SmartyConfig struct {
	AuthID    string `yaml:"auth_id" mapstructure:"auth_id"`
	AuthToken string `yaml:"auth_token" mapstructure:"auth_token"`
}

// USPSConfig holds USPS Addresses API credentials.
type USPSConfig struct {
	Token string `yaml:"token" mapstructure:"token"`
}

// PropDataConfig configures the property-data provider.
type PropDataConfig struct {
	Key        string  `yaml:"key" mapstructure:"key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit  float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// ParcelsConfig configures the parcel/GIS search backends.
type ParcelsConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"` // "arcgis" or "postgres"
	ArcGISURL     string `yaml:"arcgis_url" mapstructure:"arcgis_url"`
	MaxCandidates int    `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// PolicyConfig configures per-tenant allow-list loading.
type PolicyConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// EnrichConfig configures the orchestrator loop.
type EnrichConfig struct {
	BaseBatchSize  int `yaml:"base_batch_size" mapstructure:"base_batch_size"`
	BatchCeiling   int `yaml:"batch_ceiling" mapstructure:"batch_ceiling"`
	HeavyCeiling   int `yaml:"heavy_ceiling" mapstructure:"heavy_ceiling"`
	MaxAttempts    int `yaml:"max_attempts" mapstructure:"max_attempts"`
	Workers        int `yaml:"workers" mapstructure:"workers"`
	SubBatchSize   int `yaml:"sub_batch_size" mapstructure:"sub_batch_size"`
	DelayMillis    int `yaml:"delay_millis" mapstructure:"delay_millis"`
	TargetDefault  int `yaml:"target_default" mapstructure:"target_default"`
	TimeoutMinutes int `yaml:"timeout_minutes" mapstructure:"timeout_minutes"`
}

// SourceConfig configures filing-record source adapters.
type SourceConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	File    string `yaml:"file" mapstructure:"file"`
}

// ServeConfig configures the HTTP API server.
type ServeConfig struct {
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
	v.SetEnvPrefix("FILINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("cache.raw_ttl_hours", 24)
	v.SetDefault("cache.property_ttl_hours", 168)
	v.SetDefault("cache.sweep_secs", 60)
	v.SetDefault("propdata.base_url", "https://api.propertydata.example.com/v1")
	v.SetDefault("propdata.rate_limit", 10.0)
	v.SetDefault("propdata.max_retries", 3)
	v.SetDefault("parcels.provider", "postgres")
	v.SetDefault("parcels.max_candidates", 50)
	v.SetDefault("enrich.base_batch_size", 25)
	v.SetDefault("enrich.batch_ceiling", 200)
	v.SetDefault("enrich.heavy_ceiling", 500)
	v.SetDefault("enrich.max_attempts", 5)
	v.SetDefault("enrich.workers", 5)
	v.SetDefault("enrich.sub_batch_size", 10)
	v.SetDefault("enrich.delay_millis", 150)
	v.SetDefault("enrich.target_default", 25)
	v.SetDefault("enrich.timeout_minutes", 30)

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
