package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Provider holds the credentials for one scan provider. A provider without
// a base URL or key is left unconfigured.
type Provider struct {
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	APIKey  string `yaml:"api_key"`
}

func (p Provider) Enabled() bool { return p.BaseURL != "" && p.APIKey != "" }

type Config struct {
	Env              string        `yaml:"env" validate:"required,oneof=development test staging production"`
	ListenAddr       string        `yaml:"listen_addr" validate:"required"`
	DatabaseURL      string        `yaml:"database_url" validate:"required"`
	SyncWorkers      int           `yaml:"sync_workers" validate:"gte=0,lte=64"`
	SyncPollInterval time.Duration `yaml:"sync_poll_interval" validate:"gt=0"`
	LogLevel         string        `yaml:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat        string        `yaml:"log_format" validate:"oneof=json console"`

	LegacyScan      Provider      `yaml:"legacy_scan"`
	BrokerScan      Provider      `yaml:"broker_scan"`
	ProviderRPS     float64       `yaml:"provider_rps" validate:"gte=0"`
	ProviderTimeout time.Duration `yaml:"provider_timeout" validate:"gt=0"`

	WebhookSecret  string `yaml:"webhook_secret"`
	DefaultCountry string `yaml:"default_country" validate:"len=2,alpha"`

	AdditionalRemovalStatuses bool `yaml:"additional_removal_statuses"`
	PremiumEnabled            bool `yaml:"premium_enabled"`
	MaxScansThreshold         int  `yaml:"max_scans_threshold" validate:"gt=0"`
	BrokerCoverageCount       int  `yaml:"broker_coverage_count" validate:"gt=0"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Env:                 "development",
		ListenAddr:          ":8080",
		SyncPollInterval:    500 * time.Millisecond,
		LogLevel:            "info",
		LogFormat:           "json",
		ProviderRPS:         5,
		ProviderTimeout:     15 * time.Second,
		DefaultCountry:      "us",
		MaxScansThreshold:   35000,
		BrokerCoverageCount: 190,
	}
}

// Load reads the process environment. See LoadFrom.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds the configuration from defaults, then the YAML file named
// by EXPOSURE_CONFIG if set, then individual environment variables, and
// validates the result.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	if path, ok := lookup("EXPOSURE_CONFIG"); ok && path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	env := envReader{lookup: lookup}
	env.stringVar("APP_ENV", &cfg.Env)
	env.stringVar("LISTEN_ADDR", &cfg.ListenAddr)
	env.stringVar("DATABASE_URL", &cfg.DatabaseURL)
	env.intVar("SYNC_WORKERS", &cfg.SyncWorkers)
	env.durationVar("SYNC_POLL_INTERVAL", &cfg.SyncPollInterval)
	env.stringVar("LOG_LEVEL", &cfg.LogLevel)
	env.stringVar("LOG_FORMAT", &cfg.LogFormat)
	env.stringVar("LEGACY_SCAN_API_BASE", &cfg.LegacyScan.BaseURL)
	env.stringVar("LEGACY_SCAN_API_KEY", &cfg.LegacyScan.APIKey)
	env.stringVar("BROKER_SCAN_API_BASE", &cfg.BrokerScan.BaseURL)
	env.stringVar("BROKER_SCAN_API_KEY", &cfg.BrokerScan.APIKey)
	env.floatVar("PROVIDER_RPS", &cfg.ProviderRPS)
	env.durationVar("PROVIDER_TIMEOUT", &cfg.ProviderTimeout)
	env.stringVar("WEBHOOK_SECRET", &cfg.WebhookSecret)
	env.stringVar("DEFAULT_COUNTRY", &cfg.DefaultCountry)
	env.boolVar("ADDITIONAL_REMOVAL_STATUSES", &cfg.AdditionalRemovalStatuses)
	env.boolVar("PREMIUM_ENABLED", &cfg.PremiumEnabled)
	env.intVar("MAX_SCANS_THRESHOLD", &cfg.MaxScansThreshold)
	env.intVar("BROKER_COVERAGE_COUNT", &cfg.BrokerCoverageCount)
	if err := errors.Join(env.errs...); err != nil {
		return cfg, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	return v, ok && v != ""
}

func (e *envReader) stringVar(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) intVar(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) floatVar(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}

func (e *envReader) boolVar(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (e *envReader) durationVar(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}
