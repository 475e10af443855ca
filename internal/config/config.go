package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the service configuration.
type Config struct {
	DatabaseURL      string
	HTTPAddr         string
	JWTSecret        string
	LogLevel         string
	LogFormat        string
	ApprovalRequired bool
	CalcMaxParallel  int
	FetchTimeout     time.Duration
	Cache            CacheConfig
	Scheduler        SchedulerConfig
	PolicyFile       string
	Policy           Policy
}

// CacheConfig configures the Redis stats cache.
type CacheConfig struct {
	Enabled  bool
	RedisURL string
	TTL      time.Duration
}

// SchedulerConfig configures the daily recalculation.
type SchedulerConfig struct {
	Enabled bool
	DailyAt string
}

// Policy is the commission policy file.
type Policy struct {
	SystemRate     float64           `yaml:"system_rate"`
	RateMode       string            `yaml:"rate_mode"`
	SourceStrategy string            `yaml:"source_strategy"`
	BonusTiers     []BonusTierConfig `yaml:"bonus_tiers"`
}

// BonusTierConfig is one volume bonus tier.
type BonusTierConfig struct {
	MinVolume    float64 `yaml:"min_volume"`
	Amount       float64 `yaml:"amount"`
	RatePerLitre float64 `yaml:"rate_per_litre"`
}

// Load reads .env (if present), the environment and the optional policy file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("PG_DSN", "")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("AUTH_JWT_SECRET", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("APPROVAL_REQUIRED", true)
	v.SetDefault("CALC_MAX_PARALLEL", 4)
	v.SetDefault("AGGREGATOR_FETCH_TIMEOUT", "10s")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CACHE_STATS_TTL", "60s")
	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("SCHEDULER_DAILY_AT", "01:00")
	v.SetDefault("COMMISSION_POLICY_FILE", "")
	v.SetDefault("SYSTEM_COMMISSION_RATE", 0.05)
	v.SetDefault("RATE_MODE", "percentage")
	v.SetDefault("SOURCE_STRATEGY", "tank_stock_first")
	v.AutomaticEnv()

	cfg := Config{
		DatabaseURL:      v.GetString("DATABASE_URL"),
		HTTPAddr:         v.GetString("HTTP_ADDR"),
		JWTSecret:        v.GetString("AUTH_JWT_SECRET"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),
		ApprovalRequired: v.GetBool("APPROVAL_REQUIRED"),
		CalcMaxParallel:  v.GetInt("CALC_MAX_PARALLEL"),
		FetchTimeout:     v.GetDuration("AGGREGATOR_FETCH_TIMEOUT"),
		Cache: CacheConfig{
			Enabled:  v.GetBool("CACHE_ENABLED"),
			RedisURL: v.GetString("REDIS_URL"),
			TTL:      v.GetDuration("CACHE_STATS_TTL"),
		},
		Scheduler: SchedulerConfig{
			Enabled: v.GetBool("SCHEDULER_ENABLED"),
			DailyAt: v.GetString("SCHEDULER_DAILY_AT"),
		},
		PolicyFile: v.GetString("COMMISSION_POLICY_FILE"),
		Policy: Policy{
			SystemRate:     v.GetFloat64("SYSTEM_COMMISSION_RATE"),
			RateMode:       v.GetString("RATE_MODE"),
			SourceStrategy: v.GetString("SOURCE_STRATEGY"),
		},
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = v.GetString("PG_DSN")
	}

	if cfg.PolicyFile != "" {
		policy, err := LoadPolicy(cfg.PolicyFile, cfg.Policy)
		if err != nil {
			return cfg, err
		}
		cfg.Policy = policy
	}
	return cfg, nil
}

// LoadPolicy reads a YAML policy file over defaults. Unset fields keep the defaults.
func LoadPolicy(path string, defaults Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaults, fmt.Errorf("read policy file: %w", err)
	}
	policy := defaults
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return defaults, fmt.Errorf("parse policy file: %w", err)
	}
	if policy.SystemRate == 0 {
		policy.SystemRate = defaults.SystemRate
	}
	if strings.TrimSpace(policy.RateMode) == "" {
		policy.RateMode = defaults.RateMode
	}
	if strings.TrimSpace(policy.SourceStrategy) == "" {
		policy.SourceStrategy = defaults.SourceStrategy
	}
	return policy, nil
}

// Validate checks settings required to serve traffic.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL or PG_DSN is required")
	}
	if c.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	if c.CalcMaxParallel <= 0 {
		return errors.New("CALC_MAX_PARALLEL must be positive")
	}
	if c.Cache.Enabled && c.Cache.RedisURL == "" {
		return errors.New("REDIS_URL is required when CACHE_ENABLED")
	}
	if c.Policy.SystemRate < 0 {
		return errors.New("system commission rate must not be negative")
	}
	for i, tier := range c.Policy.BonusTiers {
		if tier.MinVolume < 0 || tier.Amount < 0 || tier.RatePerLitre < 0 {
			return fmt.Errorf("bonus tier %d: negative value", i)
		}
	}
	return nil
}
