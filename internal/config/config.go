package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"

	"github.com/2beens/contactdesk/pkg"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	DefaultPort          = 3000
	DefaultSQLitePath    = "./data.sqlite"
	DefaultSessionSecret = "change-this-secret"
	DefaultStoreTimeout  = 5 * time.Second
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port" env:"PORT, overwrite"`
	StaticDir   string `toml:"static_dir"`

	// sessions
	SessionSecret string `toml:"session_secret" env:"SESSION_SECRET, overwrite"`
	SessionStore  string `toml:"session_store"`
	SecureCookies bool   `toml:"secure_cookies"`

	// store
	DBDriver         string        `toml:"db_driver" env:"CONTACTDESK_DB_DRIVER, overwrite"`
	SQLitePath       string        `toml:"sqlite_path" env:"CONTACTDESK_SQLITE_PATH, overwrite"`
	PostgresHost     string        `toml:"postgres_host"`
	PostgresPort     string        `toml:"postgres_port"`
	PostgresDBName   string        `toml:"postgres_db_name"`
	PostgresUser     string        `toml:"postgres_user"`
	PostgresPassword string        `toml:"-" env:"CONTACTDESK_POSTGRES_PASS, overwrite"`
	StoreTimeout     time.Duration `toml:"store_timeout"`
	SkipAdminSeed    bool          `toml:"skip_admin_seed"`

	// redis
	RedisHost     string `toml:"redis_host"`
	RedisPort     string `toml:"redis_port"`
	RedisPassword string `toml:"-" env:"CONTACTDESK_REDIS_PASS, overwrite"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	SentryDSN     string `toml:"-" env:"SENTRY_DSN, overwrite"`

	// telemetry
	HoneycombEnabled      bool   `toml:"honeycomb_enabled" env:"HONEYCOMB_ENABLED, overwrite"`
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Load reads the env section of the TOML file at path, applies environment
// variable overrides and fills in defaults. A missing file is not an error,
// the service then runs on defaults and environment variables alone.
func Load(env, path string) (*Config, error) {
	return load(env, path, envconfig.OsLookuper())
}

func load(env, path string, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	fileExists, err := pkg.PathExists(path, false)
	if err != nil {
		return nil, fmt.Errorf("check config file: %w", err)
	}

	if fileExists {
		var tomlConfig Toml
		if _, err := toml.DecodeFile(path, &tomlConfig); err != nil {
			return nil, fmt.Errorf("decode config file: %w", err)
		}

		envCfg, err := tomlConfig.Get(env)
		if err != nil {
			return nil, err
		}
		if envCfg == nil {
			return nil, fmt.Errorf("config file %s has no section for env: %s", path, env)
		}
		cfg = envCfg
	} else if _, err := (&Toml{}).Get(env); err != nil {
		return nil, err
	}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("process env vars: %w", err)
	}

	cfg.applyDefaults(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults(env string) {
	if c.Environment == "" {
		c.Environment = strings.ToLower(env)
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.SessionSecret == "" {
		c.SessionSecret = DefaultSessionSecret
	}
	if c.SessionStore == "" {
		c.SessionStore = SessionStoreMemory
	}
	if c.DBDriver == "" {
		c.DBDriver = DriverSQLite
	}
	if c.SQLitePath == "" {
		c.SQLitePath = DefaultSQLitePath
	}
	if c.PostgresHost == "" {
		c.PostgresHost = "localhost"
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
	if c.PostgresDBName == "" {
		c.PostgresDBName = "contactdesk"
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.RedisHost == "" {
		c.RedisHost = "localhost"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "9091"
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown db driver: %s", c.DBDriver)
	}

	switch c.SessionStore {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return fmt.Errorf("unknown session store: %s", c.SessionStore)
	}

	return nil
}

// UsingDefaultSecret reports whether sessions are signed with the
// well-known fallback secret.
func (c *Config) UsingDefaultSecret() bool {
	return c.SessionSecret == DefaultSessionSecret
}
