package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
	"github.com/TheLoudSteve/epl-forecast/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Logging       logging.Config      `mapstructure:"logging"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Source        SourceConfig        `mapstructure:"source"`
	Forecast      ForecastConfig      `mapstructure:"forecast"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
	Delivery      DeliveryConfig      `mapstructure:"delivery"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Export        ExportConfig        `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// IsDevelopment reports whether the environment allows dry-run delivery.
func (a AppConfig) IsDevelopment() bool {
	switch strings.ToLower(a.Environment) {
	case "development", "dev", "test", "local":
		return true
	}
	return false
}

// DatabaseConfig encapsulates PostgreSQL connectivity. When DSN is empty and
// SecretARN is set, credentials are read from AWS Secrets Manager.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	SecretARN       string        `mapstructure:"secret_arn"`
	Region          string        `mapstructure:"region"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// QueryTimeout bounds each store call made while notifying.
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// Configured reports whether any database source is set.
func (d DatabaseConfig) Configured() bool {
	return d.DSN != "" || d.SecretARN != ""
}

// SchedulerConfig governs refresh cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
}

// SourceConfig describes the standings API.
type SourceConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIToken          string        `mapstructure:"api_token"`
	Competition       string        `mapstructure:"competition"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`
}

// ForecastConfig controls the projection and snapshot history.
type ForecastConfig struct {
	Season         string         `mapstructure:"season"`
	GamesPerSeason int            `mapstructure:"games_per_season"`
	SnapshotTTL    time.Duration  `mapstructure:"snapshot_ttl"`
	Zones          forecast.Zones `mapstructure:"zones"`
}

// RateLimitConfig holds per-user notification thresholds.
type RateLimitConfig struct {
	MaxPerHour      int           `mapstructure:"max_per_hour"`
	MaxPerDay       int           `mapstructure:"max_per_day"`
	MinSpacing      time.Duration `mapstructure:"min_spacing"`
	DuplicateWindow time.Duration `mapstructure:"duplicate_window"`
	Cooldown        time.Duration `mapstructure:"cooldown"`
	RecordTTL       time.Duration `mapstructure:"record_ttl"`
}

// DeliveryConfig configures the push platform.
type DeliveryConfig struct {
	Enabled                bool          `mapstructure:"enabled"`
	PlatformApplicationARN string        `mapstructure:"platform_application_arn"`
	Region                 string        `mapstructure:"region"`
	Sandbox                bool          `mapstructure:"sandbox"`
	Timeout                time.Duration `mapstructure:"timeout"`
	DryRun                 bool          `mapstructure:"dry_run"`
}

// NotificationsConfig toggles the notification pipeline.
type NotificationsConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Workers  int  `mapstructure:"workers"`
	PageSize int  `mapstructure:"page_size"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EPLFORECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "eplforecast")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.secret_arn", "")
	v.SetDefault("database.region", "us-east-1")
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.query_timeout", "3s")

	v.SetDefault("scheduler.interval", "2h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x45504c46))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", true)

	v.SetDefault("source.base_url", "https://api.football-data.org/v4")
	v.SetDefault("source.api_token", "")
	v.SetDefault("source.competition", "PL")
	v.SetDefault("source.requests_per_minute", 10)
	v.SetDefault("source.request_timeout", "30s")
	v.SetDefault("source.user_agent", "")
	v.SetDefault("source.retry_attempts", 3)
	v.SetDefault("source.retry_base_delay", "2s")
	v.SetDefault("source.retry_max_delay", "8s")

	v.SetDefault("forecast.season", "2024-25")
	v.SetDefault("forecast.games_per_season", forecast.GamesPerSeason)
	v.SetDefault("forecast.snapshot_ttl", "2160h")
	zones := forecast.DefaultZones()
	v.SetDefault("forecast.zones.title", zones.Title)
	v.SetDefault("forecast.zones.champions_league", zones.ChampionsLeague)
	v.SetDefault("forecast.zones.europa", zones.Europa)
	v.SetDefault("forecast.zones.relegation_from", zones.RelegationFrom)
	v.SetDefault("forecast.zones.league_size", zones.LeagueSize)

	v.SetDefault("ratelimit.max_per_hour", 5)
	v.SetDefault("ratelimit.max_per_day", 20)
	v.SetDefault("ratelimit.min_spacing", "5m")
	v.SetDefault("ratelimit.duplicate_window", "1h")
	v.SetDefault("ratelimit.cooldown", "30m")
	v.SetDefault("ratelimit.record_ttl", "168h")

	v.SetDefault("delivery.enabled", true)
	v.SetDefault("delivery.platform_application_arn", "")
	v.SetDefault("delivery.region", "us-east-1")
	v.SetDefault("delivery.sandbox", false)
	v.SetDefault("delivery.timeout", "5s")
	v.SetDefault("delivery.dry_run", false)

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.workers", 4)
	v.SetDefault("notifications.page_size", 100)

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Forecast.Season == "" {
		return fmt.Errorf("forecast.season is required")
	}
	if c.Forecast.GamesPerSeason <= 0 {
		return fmt.Errorf("forecast.games_per_season must be greater than zero")
	}
	if err := c.Forecast.Zones.Validate(); err != nil {
		return fmt.Errorf("forecast.%w", err)
	}
	if c.RateLimit.MaxPerHour <= 0 || c.RateLimit.MaxPerDay <= 0 {
		return fmt.Errorf("ratelimit caps must be greater than zero")
	}
	if c.RateLimit.MaxPerDay < c.RateLimit.MaxPerHour {
		return fmt.Errorf("ratelimit.max_per_day must be at least ratelimit.max_per_hour")
	}
	if c.RateLimit.MinSpacing < 0 || c.RateLimit.DuplicateWindow < 0 || c.RateLimit.Cooldown < 0 {
		return fmt.Errorf("ratelimit windows cannot be negative")
	}
	if c.Source.RetryAttempts < 1 {
		return fmt.Errorf("source.retry_attempts must be at least 1")
	}
	if c.Notifications.Workers < 0 {
		return fmt.Errorf("notifications.workers cannot be negative")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be greater than zero")
	}
	if c.Delivery.Timeout <= 0 {
		return fmt.Errorf("delivery.timeout must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
