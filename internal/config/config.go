package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Last-sync stores.
const (
	LastSyncStoreSettings = "settings"
	LastSyncStoreRedis    = "redis"
)

// Duration is a time.Duration decoded from strings such as "30m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig      `toml:"server"`
	Metrics  MetricsConfig     `toml:"metrics"`
	Logging  LoggingConfig     `toml:"logging"`
	Database DatabaseConfig    `toml:"database"`
	Google   GoogleConfig      `toml:"google"`
	Sync     SyncConfig        `toml:"sync"`
	Redis    RedisConfig       `toml:"redis"`
	Business BusinessConfig    `toml:"business"`
	Admin    AdminConfig       `toml:"admin"`
	Services map[string]string `toml:"services"` // service id -> display name
}

type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// GoogleConfig holds the service account credentials. A configuration
// without an e-mail or key runs with calendar synchronization disconnected.
type GoogleConfig struct {
	ServiceAccountEmail string `toml:"service_account_email"`
	PrivateKey          string `toml:"private_key"`
	PrivateKeyFile      string `toml:"private_key_file"`
	CalendarID          string `toml:"calendar_id"`
	TokenURL            string `toml:"token_url"`
	Endpoint            string `toml:"endpoint"`
}

type SyncConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      Duration `toml:"interval"`
	WindowDays    int      `toml:"window_days"`
	LastSyncStore string   `toml:"last_sync_store"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Key      string `toml:"key"`
}

type BusinessConfig struct {
	Timezone    string   `toml:"timezone"`
	Open        string   `toml:"open"`
	Close       string   `toml:"close"`
	StepMinutes int      `toml:"step_minutes"`
	Weekdays    []string `toml:"weekdays"` // empty means every day
}

type AdminConfig struct {
	PasswordHash string `toml:"password_hash"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration{15 * time.Second},
			WriteTimeout:    Duration{30 * time.Second},
			ShutdownTimeout: Duration{30 * time.Second},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Driver: DriverMemory,
		},
		Sync: SyncConfig{
			Enabled:       true,
			Interval:      Duration{30 * time.Minute},
			WindowDays:    90,
			LastSyncStore: LastSyncStoreSettings,
		},
		Business: BusinessConfig{
			Timezone:    "UTC",
			Open:        "09:00",
			Close:       "17:00",
			StepMinutes: 30,
		},
		Services: map[string]string{},
	}
}

// Load reads the TOML file at path (skipped when empty), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables resolved by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *Duration) {
		if v, ok := lookup(key); ok && v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			}
		}
	}

	str("BOOKINGSYNC_ADDR", &c.Server.Addr)
	str("BOOKINGSYNC_METRICS_ADDR", &c.Metrics.Addr)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_DSN", &c.Database.DSN)
	str("GOOGLE_SERVICE_ACCOUNT_EMAIL", &c.Google.ServiceAccountEmail)
	str("GOOGLE_SERVICE_ACCOUNT_PRIVATE_KEY", &c.Google.PrivateKey)
	str("GOOGLE_SERVICE_ACCOUNT_KEY_FILE", &c.Google.PrivateKeyFile)
	str("GOOGLE_CALENDAR_ID", &c.Google.CalendarID)
	str("GOOGLE_TOKEN_URL", &c.Google.TokenURL)
	str("CALENDAR_API_ENDPOINT", &c.Google.Endpoint)
	boolean("SYNC_ENABLED", &c.Sync.Enabled)
	duration("SYNC_INTERVAL", &c.Sync.Interval)
	integer("SYNC_WINDOW_DAYS", &c.Sync.WindowDays)
	str("SYNC_LAST_SYNC_STORE", &c.Sync.LastSyncStore)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)
	str("BUSINESS_TIMEZONE", &c.Business.Timezone)
	str("BUSINESS_OPEN", &c.Business.Open)
	str("BUSINESS_CLOSE", &c.Business.Close)
	str("ADMIN_PASSWORD_HASH", &c.Admin.PasswordHash)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics address cannot be empty when metrics are enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (must be text or json)", c.Logging.Format)
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Sync.Interval.Duration <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.WindowDays <= 0 {
		return fmt.Errorf("sync window must be at least one day, got %d", c.Sync.WindowDays)
	}
	switch c.Sync.LastSyncStore {
	case LastSyncStoreSettings:
	case LastSyncStoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis last-sync store")
		}
	default:
		return fmt.Errorf("unsupported last-sync store %q", c.Sync.LastSyncStore)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	open, err := time.Parse("15:04", c.Business.Open)
	if err != nil {
		return fmt.Errorf("invalid business opening time %q", c.Business.Open)
	}
	closing, err := time.Parse("15:04", c.Business.Close)
	if err != nil {
		return fmt.Errorf("invalid business closing time %q", c.Business.Close)
	}
	if !closing.After(open) {
		return fmt.Errorf("business closing time %s must be after opening time %s", c.Business.Close, c.Business.Open)
	}
	if c.Business.StepMinutes <= 0 {
		return fmt.Errorf("slot step must be positive, got %d", c.Business.StepMinutes)
	}
	if _, err := c.Weekdays(); err != nil {
		return err
	}

	if c.Google.PrivateKey != "" && c.Google.PrivateKeyFile != "" {
		return fmt.Errorf("google private_key and private_key_file are mutually exclusive")
	}
	return nil
}

// Location returns the business time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid business timezone %q: %w", c.Business.Timezone, err)
	}
	return loc, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// Weekdays returns the open days. Nil means every day.
func (c *Config) Weekdays() ([]time.Weekday, error) {
	if len(c.Business.Weekdays) == 0 {
		return nil, nil
	}
	out := make([]time.Weekday, 0, len(c.Business.Weekdays))
	for _, name := range c.Business.Weekdays {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("invalid weekday %q", name)
		}
		out = append(out, wd)
	}
	return out, nil
}

// ServiceAccountKey returns the PEM private key, reading PrivateKeyFile when
// set. An empty result means no key is configured.
func (c *Config) ServiceAccountKey() (string, error) {
	if c.Google.PrivateKeyFile == "" {
		return c.Google.PrivateKey, nil
	}
	data, err := os.ReadFile(c.Google.PrivateKeyFile)
	if err != nil {
		return "", fmt.Errorf("failed to read service account key: %w", err)
	}
	return string(data), nil
}
