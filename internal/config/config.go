package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Insights    InsightsConfig  `mapstructure:"insights"`
	Security    SecurityConfig  `mapstructure:"security"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL string `mapstructure:"cache_ttl"`
}

// InsightsConfig is the entire tunable surface of the discovery engine.
// It is immutable once loaded; validation happens here, never at the
// detector call sites.
type InsightsConfig struct {
	Trend        TrendConfig       `mapstructure:"trend"`
	Anomaly      AnomalyConfig     `mapstructure:"anomaly"`
	Correlation  CorrelationConfig `mapstructure:"correlation"`
	Forecast     ForecastConfig    `mapstructure:"forecast"`
	MaxWorkers   int               `mapstructure:"max_workers"`
	FetchTimeout string            `mapstructure:"fetch_timeout"`
}

type TrendConfig struct {
	MinChangePct  float64 `mapstructure:"min_change_pct"`
	WindowDays    int     `mapstructure:"window_days"`
	MinConfidence float64 `mapstructure:"min_confidence"`
}

type AnomalyConfig struct {
	ZThreshold   float64 `mapstructure:"z_threshold"`
	BaselineDays int     `mapstructure:"baseline_days"`
	MinPoints    int     `mapstructure:"min_points"`
}

type CorrelationConfig struct {
	MinStrength   float64 `mapstructure:"min_strength"`
	LagAnalysis   bool    `mapstructure:"lag_analysis"`
	MaxLagDays    int     `mapstructure:"max_lag_days"`
	FDRCorrection bool    `mapstructure:"fdr_correction"`
	FDRAlpha      float64 `mapstructure:"fdr_alpha"`
}

type ForecastConfig struct {
	HorizonDays int `mapstructure:"horizon_days"`
}

type SecurityConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry  string `mapstructure:"jwt_expiry"`
	APIKeyHash string `mapstructure:"api_key_hash" json:"-" yaml:"-"`
	BcryptCost int    `mapstructure:"bcrypt_cost"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" json:"-" yaml:"-"`
	ChatID   string `mapstructure:"chat_id"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// CacheTTLDuration returns the parsed series cache lifetime. Load has
// already validated the string.
func (c RedisConfig) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// FetchTimeoutDuration returns the parsed per-metric fetch deadline.
// Load has already validated the string.
func (c InsightsConfig) FetchTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN environment variable: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if config.Environment != "development" && config.Security.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	if config.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(config.Security.JWTExpiry); err != nil {
			return nil, fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}

	if config.Security.BcryptCost < bcrypt.MinCost || config.Security.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, config.Security.BcryptCost)
	}

	if _, err := time.ParseDuration(config.Redis.CacheTTL); err != nil {
		return nil, fmt.Errorf("invalid redis cache TTL: %w", err)
	}

	if err := ValidateInsights(config.Insights); err != nil {
		return nil, err
	}

	return &config, nil
}

// ValidateInsights rejects out-of-range engine options. Detection never
// runs against an invalid configuration.
func ValidateInsights(cfg InsightsConfig) error {
	if cfg.Trend.MinChangePct < 0 {
		return fmt.Errorf("insights.trend.min_change_pct must be non-negative, got %g", cfg.Trend.MinChangePct)
	}
	if cfg.Trend.WindowDays <= 0 {
		return fmt.Errorf("insights.trend.window_days must be positive, got %d", cfg.Trend.WindowDays)
	}
	if cfg.Trend.MinConfidence < 0 || cfg.Trend.MinConfidence > 1 {
		return fmt.Errorf("insights.trend.min_confidence must be in [0,1], got %g", cfg.Trend.MinConfidence)
	}
	if cfg.Anomaly.ZThreshold <= 0 {
		return fmt.Errorf("insights.anomaly.z_threshold must be positive, got %g", cfg.Anomaly.ZThreshold)
	}
	if cfg.Anomaly.BaselineDays <= 0 {
		return fmt.Errorf("insights.anomaly.baseline_days must be positive, got %d", cfg.Anomaly.BaselineDays)
	}
	if cfg.Anomaly.MinPoints < 2 {
		return fmt.Errorf("insights.anomaly.min_points must be at least 2, got %d", cfg.Anomaly.MinPoints)
	}
	if cfg.Correlation.MinStrength < 0 || cfg.Correlation.MinStrength > 1 {
		return fmt.Errorf("insights.correlation.min_strength must be in [0,1], got %g", cfg.Correlation.MinStrength)
	}
	if cfg.Correlation.MaxLagDays < 0 {
		return fmt.Errorf("insights.correlation.max_lag_days must be non-negative, got %d", cfg.Correlation.MaxLagDays)
	}
	if cfg.Correlation.FDRAlpha <= 0 || cfg.Correlation.FDRAlpha > 1 {
		return fmt.Errorf("insights.correlation.fdr_alpha must be in (0,1], got %g", cfg.Correlation.FDRAlpha)
	}
	if cfg.Forecast.HorizonDays <= 0 {
		return fmt.Errorf("insights.forecast.horizon_days must be positive, got %d", cfg.Forecast.HorizonDays)
	}
	if cfg.MaxWorkers < 0 {
		return fmt.Errorf("insights.max_workers must be non-negative, got %d", cfg.MaxWorkers)
	}
	if _, err := time.ParseDuration(cfg.FetchTimeout); err != nil {
		return fmt.Errorf("invalid insights.fetch_timeout: %w", err)
	}
	return nil
}

// DefaultInsights returns the engine defaults used when no config file is
// present.
func DefaultInsights() InsightsConfig {
	return InsightsConfig{
		Trend: TrendConfig{
			MinChangePct:  5.0,
			WindowDays:    14,
			MinConfidence: 0.7,
		},
		Anomaly: AnomalyConfig{
			ZThreshold:   2.5,
			BaselineDays: 30,
			MinPoints:    10,
		},
		Correlation: CorrelationConfig{
			MinStrength:   0.6,
			LagAnalysis:   false,
			MaxLagDays:    0,
			FDRCorrection: false,
			FDRAlpha:      0.05,
		},
		Forecast: ForecastConfig{
			HorizonDays: 7,
		},
		MaxWorkers:   0,
		FetchTimeout: "10s",
	}
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "insight_engine")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", "5m")

	defaults := DefaultInsights()
	viper.SetDefault("insights.trend.min_change_pct", defaults.Trend.MinChangePct)
	viper.SetDefault("insights.trend.window_days", defaults.Trend.WindowDays)
	viper.SetDefault("insights.trend.min_confidence", defaults.Trend.MinConfidence)
	viper.SetDefault("insights.anomaly.z_threshold", defaults.Anomaly.ZThreshold)
	viper.SetDefault("insights.anomaly.baseline_days", defaults.Anomaly.BaselineDays)
	viper.SetDefault("insights.anomaly.min_points", defaults.Anomaly.MinPoints)
	viper.SetDefault("insights.correlation.min_strength", defaults.Correlation.MinStrength)
	viper.SetDefault("insights.correlation.lag_analysis", defaults.Correlation.LagAnalysis)
	viper.SetDefault("insights.correlation.max_lag_days", defaults.Correlation.MaxLagDays)
	viper.SetDefault("insights.correlation.fdr_correction", defaults.Correlation.FDRCorrection)
	viper.SetDefault("insights.correlation.fdr_alpha", defaults.Correlation.FDRAlpha)
	viper.SetDefault("insights.forecast.horizon_days", defaults.Forecast.HorizonDays)
	viper.SetDefault("insights.max_workers", defaults.MaxWorkers)
	viper.SetDefault("insights.fetch_timeout", defaults.FetchTimeout)

	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiry", "24h")
	viper.SetDefault("security.api_key_hash", "")
	viper.SetDefault("security.bcrypt_cost", 12)

	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
}
