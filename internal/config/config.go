package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SUBS_DATABASE_URL.
const EnvPrefix = "SUBS_"

type RuntimeConfig struct {
	Dev bool
}

type AppConfig struct {
	Name    string `yaml:"name" env:"NAME"`
	Version string `yaml:"version" env:"VERSION"`
	Commit  string `yaml:"commit" env:"COMMIT"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LEVEL"`       // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"FORMAT"`     // json|console
	Sampling bool   `yaml:"sampling" env:"SAMPLING"` // enable sampling in prod
}

type HTTPConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string `yaml:"url" env:"URL"`
	MaxConns        int32  `yaml:"max_conns" env:"MAX_CONNS"`
	MigrationsTable string `yaml:"migrations_table" env:"MIGRATIONS_TABLE"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// RedisConfig is optional; an empty URL disables the per-account lock and
// the invoice rate limit.
type RedisConfig struct {
	URL      string        `yaml:"url" env:"URL"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	LockTTL  time.Duration `yaml:"lock_ttl" env:"LOCK_TTL"`
	// InvoiceLimit caps invoices a user may request per InvoiceWindow; 0 disables it.
	InvoiceLimit  int           `yaml:"invoice_limit" env:"INVOICE_LIMIT"`
	InvoiceWindow time.Duration `yaml:"invoice_window" env:"INVOICE_WINDOW"`
}

type AuthConfig struct {
	AccessTokenSecret   string `yaml:"access_token_secret" env:"ACCESS_TOKEN_SECRET"`
	AccessTokenAudience string `yaml:"access_token_audience" env:"ACCESS_TOKEN_AUDIENCE"`
	SuperuserPermission string `yaml:"superuser_permission" env:"SUPERUSER_PERMISSION"`
	BillingPermission   string `yaml:"billing_permission" env:"BILLING_PERMISSION"`
}

// BillingConfig configures the billing service client. An empty BaseURL
// selects the in-memory client.
type BillingConfig struct {
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries uint64        `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryBase  time.Duration `yaml:"retry_base" env:"RETRY_BASE"`
	TokenURL   string        `yaml:"token_url" env:"TOKEN_URL"`
	ClientID   string        `yaml:"client_id" env:"CLIENT_ID"`
	Username   string        `yaml:"username" env:"USERNAME"`
	Password   string        `yaml:"password" env:"PASSWORD"`
}

// SchedulerConfig drives the background workers. The payment reconciler only
// runs against a real billing service.
type SchedulerConfig struct {
	StatsInterval       time.Duration `yaml:"stats_interval" env:"STATS_INTERVAL"`
	ReconcileInterval   time.Duration `yaml:"reconcile_interval" env:"RECONCILE_INTERVAL"`
	ReconcileStaleAfter time.Duration `yaml:"reconcile_stale_after" env:"RECONCILE_STALE_AFTER"`
	ReconcileBatch      int           `yaml:"reconcile_batch" env:"RECONCILE_BATCH"`
}

type Config struct {
	App       AppConfig       `yaml:"app" envPrefix:"APP_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	HTTP      HTTPConfig      `yaml:"http" envPrefix:"HTTP_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Billing   BillingConfig   `yaml:"billing" envPrefix:"BILLING_"`
	Scheduler SchedulerConfig `yaml:"scheduler" envPrefix:"SCHEDULER_"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Load builds the configuration from, in increasing precedence: the YAML file
// at path (skipped when path is empty), a .env file in the working directory
// and SUBS_* environment variables. Defaults fill whatever is still unset.
func Load(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "Subscription API"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "dev"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 3000
	}
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 15*time.Second)
	cfg.HTTP.ShutdownTimeout = orDefault(cfg.HTTP.ShutdownTimeout, 10*time.Second)
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.MigrationsTable == "" {
		cfg.Database.MigrationsTable = "goose_db_version"
	}
	cfg.Redis.LockTTL = orDefault(cfg.Redis.LockTTL, 10*time.Second)
	cfg.Redis.InvoiceWindow = orDefault(cfg.Redis.InvoiceWindow, time.Hour)
	if cfg.Auth.SuperuserPermission == "" {
		cfg.Auth.SuperuserPermission = "subscriptions:admin"
	}
	if cfg.Auth.BillingPermission == "" {
		cfg.Auth.BillingPermission = "billing:webhook"
	}
	cfg.Billing.Timeout = orDefault(cfg.Billing.Timeout, 15*time.Second)
	cfg.Billing.RetryBase = orDefault(cfg.Billing.RetryBase, 200*time.Millisecond)
	if cfg.Billing.MaxRetries == 0 {
		cfg.Billing.MaxRetries = 5
	}
	cfg.Scheduler.StatsInterval = orDefault(cfg.Scheduler.StatsInterval, time.Minute)
	cfg.Scheduler.ReconcileInterval = orDefault(cfg.Scheduler.ReconcileInterval, time.Minute)
	cfg.Scheduler.ReconcileStaleAfter = orDefault(cfg.Scheduler.ReconcileStaleAfter, 10*time.Minute)
	if cfg.Scheduler.ReconcileBatch <= 0 {
		cfg.Scheduler.ReconcileBatch = 200
	}
}

// Validate performs minimal validation.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Auth.AccessTokenSecret == "" {
		return errors.New("auth.access_token_secret is required")
	}
	if c.Billing.TokenURL != "" && c.Billing.Username == "" {
		return errors.New("billing.username is required when billing.token_url is set")
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
