package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment   string              `mapstructure:"environment"` // "dev" or "prod"
	CoinMarketCap CoinMarketCapConfig `mapstructure:"coinmarketcap"`
	Store         StoreConfig         `mapstructure:"store"`
	Export        ExportConfig        `mapstructure:"export"`
	Schedule      ScheduleConfig      `mapstructure:"schedule"`
	Redis         RedisConfig         `mapstructure:"redis"`
	API           APIConfig           `mapstructure:"api"`
	Log           LogConfig           `mapstructure:"log"`
}

type CoinMarketCapConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	Limit   int           `mapstructure:"limit"`   // number of listings per snapshot
	Convert string        `mapstructure:"convert"` // reporting currency, e.g. "USD"

	APIKeyParameter string `mapstructure:"api_key_parameter"` // SSM parameter holding the key in prod
}

// StoreConfig selects the relational backend.
type StoreConfig struct {
	Driver         string         `mapstructure:"driver"`          // "postgres" or "sqlite"
	SQLitePath     string         `mapstructure:"sqlite_path"`     // database file for the sqlite driver
	CreateDatabase bool           `mapstructure:"create_database"` // create the postgres database if missing
	Postgres       PostgresConfig `mapstructure:"postgres"`
}

type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 runs the pipeline once and exits
}

type RedisConfig struct {
	URL string        `mapstructure:"url"` // empty disables the query cache
	TTL time.Duration `mapstructure:"ttl"`
}

type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("coinmarketcap.base_url", "https://pro-api.coinmarketcap.com/v1")
	v.SetDefault("coinmarketcap.api_key", "")
	v.SetDefault("coinmarketcap.timeout", 10*time.Second)
	v.SetDefault("coinmarketcap.limit", 100)
	v.SetDefault("coinmarketcap.convert", "USD")
	v.SetDefault("coinmarketcap.api_key_parameter", "CRYPTOETL_CMC_API_KEY")

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "cryptocurrency_data.db")
	v.SetDefault("store.create_database", false)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.dbname", "cryptoetl")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("store.postgres.timezone", "UTC")
	v.SetDefault("store.postgres.ssm_prefix", "CRYPTOETL_")
	v.SetDefault("store.postgres.max_open_conns", 10)
	v.SetDefault("store.postgres.max_idle_conns", 5)
	v.SetDefault("store.postgres.conn_max_lifetime", time.Hour)

	v.SetDefault("export.output_dir", "exports")
	v.SetDefault("schedule.interval", time.Duration(0))
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "")
}

// Load loads application configuration using Viper.
// It reads .env, then config.yaml from dir (if set), ./config or the directory next to the
// executable, and finally overrides with environment variables (e.g., STORE_DRIVER).
// A missing config.yaml is not an error; defaults apply.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("config")
	if ex, err := os.Executable(); err == nil {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}

	// Support environment variables with dot notation (e.g., COINMARKETCAP_API_KEY)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("coinmarketcap.api_key", "COINMARKETCAP_API_KEY", "CMC_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = cfg.Environment
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported store.driver: %q", c.Store.Driver)
	}
	if c.CoinMarketCap.Limit < 1 || c.CoinMarketCap.Limit > 5000 {
		return fmt.Errorf("coinmarketcap.limit must be within [1, 5000], got %d", c.CoinMarketCap.Limit)
	}
	if c.Schedule.Interval < 0 {
		return fmt.Errorf("schedule.interval must not be negative, got %s", c.Schedule.Interval)
	}
	if c.Export.OutputDir == "" {
		return errors.New("export.output_dir is required")
	}
	return nil
}

// ResolveAPIKey returns the CoinMarketCap key, reading it from Parameter Store in prod.
func (c *CoinMarketCapConfig) ResolveAPIKey(env string) string {
	if env == "prod" && c.APIKeyParameter != "" {
		if key := getParameterStoreValue(c.APIKeyParameter, true); key != "" {
			return key
		}
	}
	return c.APIKey
}
